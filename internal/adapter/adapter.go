// Package adapter defines the thin, injectable capability the broker uses
// to talk to a host Bluetooth stack. It is intentionally synchronous and
// fallible: every primitive maps to one GATT operation and returns an error
// the broker can normalize into its closed taxonomy.
package adapter

import "context"

// DeviceSnapshot is the broker's view of a discovered device. It is a value
// type, not a live handle: the broker re-queries the adapter by address
// whenever it needs fresh state (connectedness, RSSI, ...).
type DeviceSnapshot struct {
	Address     string
	Name        string
	Connectable bool
	Connected   bool
	UUIDs       []string
	Appearance  *uint16
	TxPower     *int8
	RSSI        *int8
	ManufData   []byte
	ServiceData map[string][]byte
}

// ServiceSnapshot describes one GATT service as reported by the driver.
type ServiceSnapshot struct {
	ID        string
	UUID      string
	IsPrimary bool
	Includes  []string // IDs of included services
}

// CharacteristicSnapshot describes one GATT characteristic. Flags are the
// raw, driver-reported property strings (e.g. "read", "write_without_response");
// translating them into the broker's fixed bit set is the broker's job, not
// the adapter's.
type CharacteristicSnapshot struct {
	ID    string
	UUID  string
	Flags []string
}

// DescriptorSnapshot describes one GATT descriptor.
type DescriptorSnapshot struct {
	ID   string
	UUID string
}

// DiscoverySession is a bounded scan started by the adapter. The broker
// always stops it on every exit path, including errors, per the resource
// discipline in the design notes.
type DiscoverySession interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Adapter is the capability surface the broker depends on. Production code
// is backed by the goble package; tests and the scripted test harness are
// backed by the mock package.
type Adapter interface {
	// Present reports whether the host adapter is visible at all. In test
	// mode a mock adapter may report present=false to exercise the
	// AdapterError path.
	Present(ctx context.Context) (bool, error)
	Powered(ctx context.Context) (bool, error)
	Discoverable(ctx context.Context) (bool, error)
	Name(ctx context.Context) (string, error)

	// Address identifies the adapter itself. A failing Address query is
	// the broker's signal to re-initialize the adapter handle.
	Address(ctx context.Context) (string, error)

	CreateDiscoverySession(ctx context.Context) (DiscoverySession, error)
	Devices(ctx context.Context) ([]DeviceSnapshot, error)

	Connect(ctx context.Context, address string) error
	Disconnect(ctx context.Context, address string) error
	IsConnected(ctx context.Context, address string) (bool, error)

	Services(ctx context.Context, deviceAddress string) ([]ServiceSnapshot, error)
	IncludedServices(ctx context.Context, serviceID string) ([]ServiceSnapshot, error)
	Characteristics(ctx context.Context, serviceID string) ([]CharacteristicSnapshot, error)
	Descriptors(ctx context.Context, characteristicID string) ([]DescriptorSnapshot, error)

	// ReadValue/WriteValue operate on a driver-assigned attribute id that
	// may denote either a characteristic or a descriptor; the adapter
	// resolves it against whichever attribute namespace it owns.
	ReadValue(ctx context.Context, attributeID string) ([]byte, error)
	WriteValue(ctx context.Context, attributeID string, value []byte) error
}
