package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blebroker/internal/adapter/mock"
)

// stuckAdapter wraps a mock.Adapter but never reports the connected state
// the caller asked for, so awaitConnectionState's poll loop can only time
// out, exercising the connect transaction's timeout-to-Network path.
type stuckAdapter struct {
	*mock.Adapter
}

func (s *stuckAdapter) IsConnected(context.Context, string) (bool, error) {
	return false, nil
}

func TestAwaitConnectionStateSucceedsImmediately(t *testing.T) {
	a := mock.New()
	a.AddDevice("00:00:00:00:00:01", "Widget", true, nil)

	err := awaitConnectionState(context.Background(), a, "00:00:00:00:00:01", true, 5*time.Millisecond, time.Second)
	require.NoError(t, err)

	connected, err := a.IsConnected(context.Background(), "00:00:00:00:00:01")
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestAwaitConnectionStateTimesOut(t *testing.T) {
	a := mock.New()
	a.AddDevice("00:00:00:00:00:01", "Widget", true, nil)
	stuck := &stuckAdapter{Adapter: a}

	err := awaitConnectionState(context.Background(), stuck, "00:00:00:00:00:01", true, 2*time.Millisecond, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestAwaitConnectionStateRespectsContextCancellation(t *testing.T) {
	a := mock.New()
	a.AddDevice("00:00:00:00:00:01", "Widget", true, nil)
	stuck := &stuckAdapter{Adapter: a}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := awaitConnectionState(ctx, stuck, "00:00:00:00:00:01", true, 2*time.Millisecond, time.Second)
	require.Error(t, err)
}
