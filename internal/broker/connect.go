package broker

import (
	"context"
	"time"

	"github.com/srg/blebroker/internal/adapter"
)

// awaitConnectionState issues the connect or disconnect call and then polls
// IsConnected until it reflects the requested state, the adapter reports an
// error, or the transaction timeout elapses — mirroring the upstream
// gatt_server_connect/disconnect's poll loop. In test mode a single
// iteration always suffices, since the mock adapter flips state
// synchronously inside Connect/Disconnect.
func awaitConnectionState(ctx context.Context, a adapter.Adapter, address string, want bool, pollInterval, timeout time.Duration) error {
	var op func(context.Context, string) error
	if want {
		op = a.Connect
	} else {
		op = a.Disconnect
	}

	if err := op(ctx, address); err != nil {
		return ErrAdapterError
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		connected, err := a.IsConnected(ctx, address)
		if err != nil {
			return ErrAdapterError
		}
		if connected == want {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrNetwork
		}

		select {
		case <-ctx.Done():
			return ErrNetwork
		case <-ticker.C:
		}
	}
}
