package broker

import "fmt"

// ErrorKind enumerates the closed error taxonomy every handler must
// translate driver/cache failures into before replying. No error ever
// crosses a reply channel as anything other than *Error.
type ErrorKind string

const (
	// AdapterError means no adapter is present, or re-initialization failed.
	AdapterError ErrorKind = "adapter_error"
	// AdapterNotPowered means the adapter is present but powered off.
	AdapterNotPowered ErrorKind = "adapter_not_powered"
	// NotFound means an identifier is unknown, an address was unchooseable,
	// or an enumeration that was required to be non-empty came back empty.
	NotFound ErrorKind = "not_found"
	// Security means the requested service UUID is not in the per-device
	// allowed-services set.
	Security ErrorKind = "security"
	// Network means a connect/disconnect transaction timed out.
	Network ErrorKind = "network"
	// NotSupported means a read/write targeted an attribute id that is
	// neither a cached characteristic nor a cached descriptor, or the
	// driver rejected the operation.
	NotSupported ErrorKind = "not_supported"
	// TypeError carries a short English message: discovery-start failure,
	// filter canonicalization failure, test-setup failure, or an unknown
	// test data-set name.
	TypeError ErrorKind = "type_error"
)

// Error is the only error type sent on a broker reply channel.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is allows errors.Is to compare *Error values by Kind alone, so callers can
// write errors.Is(err, broker.ErrNotFound) without matching Message.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for the common, message-less cases. Handlers that need a
// message (TypeError) construct an *Error literal directly.
var (
	ErrAdapterError      = &Error{Kind: AdapterError}
	ErrAdapterNotPowered = &Error{Kind: AdapterNotPowered}
	ErrNotFound          = &Error{Kind: NotFound}
	ErrSecurity          = &Error{Kind: Security}
	ErrNetwork           = &Error{Kind: Network}
	ErrNotSupported      = &Error{Kind: NotSupported}
)

func typeErr(message string) *Error {
	return &Error{Kind: TypeError, Message: message}
}
