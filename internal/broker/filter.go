package broker

import (
	"encoding/binary"
	"strings"

	"github.com/srg/blebroker/internal/adapter"
)

// isEmptyOrInvalid reports whether a filter carries no constraints at all.
// Such a filter can never match anything, mirroring the upstream
// BluetoothScanfilter::is_empty_or_invalid check.
func isEmptyOrInvalid(f ScanFilter) bool {
	return f.Name == "" && f.NamePrefix == "" && len(f.Services) == 0 &&
		len(f.ManufacturerIDs) == 0 && len(f.ServiceDataUUID) == 0
}

// matchesFilter evaluates a single scan filter against a device snapshot
// name/name-prefix match exactly/by-prefix when set,
// every required service UUID must be advertised, and manufacturer/service
// data constraints (when present) are conjunctive alongside the rest.
func matchesFilter(dev adapter.DeviceSnapshot, f ScanFilter) bool {
	if isEmptyOrInvalid(f) {
		return false
	}

	if f.Name != "" && dev.Name != f.Name {
		return false
	}

	if f.NamePrefix != "" {
		if dev.Name == "" || !strings.HasPrefix(dev.Name, f.NamePrefix) {
			return false
		}
	}

	for _, required := range f.Services {
		if !containsUUID(dev.UUIDs, required) {
			return false
		}
	}

	for _, mid := range f.ManufacturerIDs {
		if !hasManufacturerID(dev.ManufData, mid) {
			return false
		}
	}

	for _, uuid := range f.ServiceDataUUID {
		found := false
		for key := range dev.ServiceData {
			if normalizeUUID(key) == normalizeUUID(uuid) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// matchesFilters applies the filter sequence rule: any
// filter in the sequence that is itself empty-or-invalid makes the whole
// sequence match nothing; otherwise the sequence matches if any
// constituent filter matches.
func matchesFilters(dev adapter.DeviceSnapshot, filters []ScanFilter) bool {
	if len(filters) == 0 {
		return false
	}
	for _, f := range filters {
		if isEmptyOrInvalid(f) {
			return false
		}
	}
	for _, f := range filters {
		if matchesFilter(dev, f) {
			return true
		}
	}
	return false
}

func containsUUID(haystack []string, needle string) bool {
	n := normalizeUUID(needle)
	for _, u := range haystack {
		if normalizeUUID(u) == n {
			return true
		}
	}
	return false
}

// hasManufacturerID reports whether raw manufacturer data begins with the
// little-endian company identifier, per the Bluetooth manufacturer-data AD
// structure layout.
func hasManufacturerID(data []byte, id uint16) bool {
	if len(data) < 2 {
		return false
	}
	return binary.LittleEndian.Uint16(data[:2]) == id
}

// normalizeUUID lowercases a UUID and strips dashes, matching the
// ingress-normalization rule. Comparisons throughout the broker go through
// this function so callers never need to pre-normalize.
func normalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}
