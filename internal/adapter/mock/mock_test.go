package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blebroker/internal/fixtures"
)

func TestNewAdapterDefaults(t *testing.T) {
	ctx := context.Background()
	a := New()

	present, err := a.Present(ctx)
	require.NoError(t, err)
	assert.True(t, present)

	devices, err := a.Devices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestAddDeviceAndDiscover(t *testing.T) {
	ctx := context.Background()
	a := New()
	a.AddDevice("00:00:00:00:00:01", "Widget", true, []string{"00001800-0000-1000-8000-00805f9b34fb"})

	devices, err := a.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Widget", devices[0].Name)
	assert.True(t, devices[0].Connectable)
	assert.False(t, devices[0].Connected)
}

func TestConnectDisconnectRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := New()
	a.AddDevice("00:00:00:00:00:01", "Widget", true, nil)

	connected, err := a.IsConnected(ctx, "00:00:00:00:00:01")
	require.NoError(t, err)
	assert.False(t, connected)

	require.NoError(t, a.Connect(ctx, "00:00:00:00:00:01"))
	connected, err = a.IsConnected(ctx, "00:00:00:00:00:01")
	require.NoError(t, err)
	assert.True(t, connected)

	require.NoError(t, a.Disconnect(ctx, "00:00:00:00:00:01"))
	connected, err = a.IsConnected(ctx, "00:00:00:00:00:01")
	require.NoError(t, err)
	assert.False(t, connected)
}

func TestConnectUnknownDevice(t *testing.T) {
	ctx := context.Background()
	a := New()
	assert.Error(t, a.Connect(ctx, "no-such-address"))
}

func TestSetPoweredAndPresent(t *testing.T) {
	ctx := context.Background()
	a := New()
	a.SetPowered(true)
	a.SetPresent(false)

	powered, err := a.Powered(ctx)
	require.NoError(t, err)
	assert.True(t, powered)

	present, err := a.Present(ctx)
	require.NoError(t, err)
	assert.False(t, present)
}

// TestNewFromConfigBuildsFullTree exercises the CompletedAdapter topology's
// three-tier build, used by the broker's scripted Test harness.
func TestNewFromConfigBuildsFullTree(t *testing.T) {
	ctx := context.Background()
	cfg, err := fixtures.Lookup("CompletedAdapter")
	require.NoError(t, err)

	a := NewFromConfig(cfg)

	devices, err := a.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	services, err := a.Services(ctx, devices[0].Address)
	require.NoError(t, err)
	require.Len(t, services, 2)
	assert.True(t, services[0].IsPrimary)

	chars, err := a.Characteristics(ctx, services[0].ID)
	require.NoError(t, err)
	require.Len(t, chars, 2)

	value, err := a.ReadValue(ctx, chars[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, value)

	heartRate := services[1]
	heartRateChars, err := a.Characteristics(ctx, heartRate.ID)
	require.NoError(t, err)
	require.Len(t, heartRateChars, 3)

	descriptors, err := a.Descriptors(ctx, heartRateChars[0].ID)
	require.NoError(t, err)
	require.Len(t, descriptors, 1)

	descValue, err := a.ReadValue(ctx, descriptors[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{14}, descValue)
}

func TestWriteValueOnUnknownAttribute(t *testing.T) {
	ctx := context.Background()
	a := New()
	assert.Error(t, a.WriteValue(ctx, "no-such-id", []byte{1}))
}

func TestWriteValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg, err := fixtures.Lookup("ExcludedForWritesCharacteristicAdapter")
	require.NoError(t, err)
	a := NewFromConfig(cfg)

	devices, err := a.Devices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	services, err := a.Services(ctx, devices[0].Address)
	require.NoError(t, err)
	require.Len(t, services, 1)

	chars, err := a.Characteristics(ctx, services[0].ID)
	require.NoError(t, err)
	require.Len(t, chars, 1)

	require.NoError(t, a.WriteValue(ctx, chars[0].ID, []byte{42}))
	value, err := a.ReadValue(ctx, chars[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{42}, value)
}

func TestDiscoverySessionStartFailure(t *testing.T) {
	ctx := context.Background()
	cfg, err := fixtures.Lookup("FailStartDiscoveryAdapter")
	require.NoError(t, err)
	a := NewFromConfig(cfg)

	session, err := a.CreateDiscoverySession(ctx)
	require.NoError(t, err)
	assert.Error(t, session.Start(ctx))
}
