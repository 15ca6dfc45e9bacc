package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/blebroker/internal/adapter"
)

func TestMatchesFilter(t *testing.T) {
	dev := adapter.DeviceSnapshot{
		Address: "00:00:00:00:00:02",
		Name:    "Heart Rate Device",
		UUIDs:   []string{"00001800-0000-1000-8000-00805f9b34fb", "0000180d-0000-1000-8000-00805f9b34fb"},
	}

	cases := []struct {
		name string
		f    ScanFilter
		want bool
	}{
		{"empty filter matches nothing", ScanFilter{}, false},
		{"exact name matches", ScanFilter{Name: "Heart Rate Device"}, true},
		{"wrong name rejects", ScanFilter{Name: "Glucose Device"}, false},
		{"name prefix matches", ScanFilter{NamePrefix: "Heart"}, true},
		{"required service present", ScanFilter{Services: []string{"0000180d-0000-1000-8000-00805f9b34fb"}}, true},
		{"required service absent", ScanFilter{Services: []string{"00001808-0000-1000-8000-00805f9b34fb"}}, false},
		{"uuid normalization ignores case and dashes", ScanFilter{Services: []string{"0000180D00001000800000805F9B34FB"}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, matchesFilter(dev, tc.f))
		})
	}
}

func TestMatchesFilterNamePrefixOnUnnamedDevice(t *testing.T) {
	dev := adapter.DeviceSnapshot{Address: "00:00:00:00:00:03"}
	assert.False(t, matchesFilter(dev, ScanFilter{NamePrefix: "Heart"}))
}

func TestMatchesFiltersSequenceRule(t *testing.T) {
	dev := adapter.DeviceSnapshot{Address: "a", Name: "Heart Rate Device"}

	assert.False(t, matchesFilters(dev, nil), "empty sequence matches nothing")

	assert.False(t, matchesFilters(dev, []ScanFilter{{}, {Name: "Heart Rate Device"}}),
		"any empty-or-invalid filter in the sequence voids the whole sequence")

	assert.True(t, matchesFilters(dev, []ScanFilter{{Name: "Heart Rate Device"}}))
}

// TestFilterCompositionLaw exercises the composition law: if F matches d, any
// sequence containing F as a suffix also matches d.
func TestFilterCompositionLaw(t *testing.T) {
	dev := adapter.DeviceSnapshot{Address: "a", Name: "Heart Rate Device"}
	f := ScanFilter{Name: "Heart Rate Device"}
	assert.True(t, matchesFilters(dev, []ScanFilter{f}))
	assert.True(t, matchesFilters(dev, []ScanFilter{{Name: "Glucose Device"}, f}))
}

func TestHasManufacturerID(t *testing.T) {
	assert.True(t, hasManufacturerID([]byte{0x4c, 0x00, 0x01, 0x02}, 0x004c))
	assert.False(t, hasManufacturerID([]byte{0x01}, 0x004c))
}
