package broker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/internal/adapter/mock"
	"github.com/srg/blebroker/internal/fixtures"
	"github.com/srg/blebroker/internal/testutil"
)

// TestCacheCoherence exercises the coherence invariant: every non-root
// cached identifier resolves a parent-pointer entry to a cached parent.
func TestCacheCoherence(t *testing.T) {
	ctx := context.Background()
	cfg, err := fixtures.Lookup("CompletedAdapter")
	require.NoError(t, err)
	a := mock.NewFromConfig(cfg)

	c := newCache()
	c.putDevice("dev-1", mustSnapshot(t, ctx, a, "00:00:00:00:00:09"))

	svcs, err := c.lookupServices(ctx, a, "dev-1")
	require.NoError(t, err)
	_ = svcs

	var checked int
	c.services.Range(func(svcID string, _ adapter.ServiceSnapshot) bool {
		checked++
		parent, ok := c.serviceParent.Get(svcID)
		require.True(t, ok, "service %s must have a parent pointer", svcID)
		_, cached := c.devices.Get(parent)
		assert.True(t, cached, "service %s's parent device must be cached", svcID)
		return true
	})
	assert.Positive(t, checked, "expected at least one cached service")
}

// TestCachePopulatesOnce ensures a repeated lookup of the same tier returns
// the same services as the first lookup.
func TestCachePopulatesOnce(t *testing.T) {
	ctx := context.Background()
	a := mock.New()
	a.AddDevice("00:00:00:00:00:09", "Heart Rate Device", true, nil)

	c := newCache()
	c.putDevice("dev-1", mustSnapshot(t, ctx, a, "00:00:00:00:00:09"))

	first, err := c.lookupServices(ctx, a, "dev-1")
	require.NoError(t, err)
	second, err := c.lookupServices(ctx, a, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestCacheDescribeSnapshot exercises Describe against a whole cache-graph
// snapshot rather than asserting tier by tier, using the CompletedAdapter
// topology's deterministic driver-assigned ids.
func TestCacheDescribeSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg, err := fixtures.Lookup("CompletedAdapter")
	require.NoError(t, err)
	a := mock.NewFromConfig(cfg)

	c := newCache()
	c.putDevice("dev-1", mustSnapshot(t, ctx, a, "00:00:00:00:00:09"))

	svcs, err := c.lookupServices(ctx, a, "dev-1")
	require.NoError(t, err)
	require.Len(t, svcs, 2)

	_, err = c.characteristics(ctx, a, svcs[0].ID)
	require.NoError(t, err)

	want := strings.Join([]string{
		"characteristic char-2 parent=svc-1 uuid=00002a00-0000-1000-8000-00805f9b34fb",
		"characteristic char-3 parent=svc-1 uuid=00002a02-0000-1000-8000-00805f9b34fb",
		"device dev-1 address=00:00:00:00:00:09",
		"service svc-1 parent=dev-1 uuid=00001800-0000-1000-8000-00805f9b34fb",
		"service svc-4 parent=dev-1 uuid=0000180d-0000-1000-8000-00805f9b34fb",
	}, "\n")

	testutil.AssertTextEqual(t, c.Describe(), want)
}

func mustSnapshot(t *testing.T, ctx context.Context, a *mock.Adapter, address string) adapter.DeviceSnapshot {
	t.Helper()
	devices, err := a.Devices(ctx)
	require.NoError(t, err)
	for _, d := range devices {
		if d.Address == address {
			return d
		}
	}
	t.Fatalf("device %s not found", address)
	return adapter.DeviceSnapshot{}
}
