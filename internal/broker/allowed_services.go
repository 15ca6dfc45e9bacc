package broker

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// allowedServices is the per-device permission registry:
// once a service UUID is granted to an origin for a device (by surfacing
// through an accepted RequestDevice's optionalServices/filters), it stays
// granted for the device's lifetime in this broker process. Grants only
// ever accumulate; nothing here ever un-grants a service, mirroring the
// upstream BluetoothDevice allowed services set.
//
// Insertion order is kept (via go-ordered-map, the same structure the
// teacher's mock peripheral suite uses for its deterministic fixtures) so
// that listing a device's grants for diagnostics reflects grant order
// rather than map iteration order.
type allowedServices struct {
	mu        sync.Mutex
	perDevice map[string]*orderedmap.OrderedMap[string, struct{}]
}

func newAllowedServices() *allowedServices {
	return &allowedServices{perDevice: make(map[string]*orderedmap.OrderedMap[string, struct{}])}
}

// grant adds uuid to the set of services allowed for deviceID, creating the
// device's entry if this is its first grant.
func (a *allowedServices) grant(deviceID, uuid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.perDevice[deviceID]
	if !ok {
		m = orderedmap.New[string, struct{}]()
		a.perDevice[deviceID] = m
	}
	m.Set(normalizeUUID(uuid), struct{}{})
}

// grantAll is a convenience for RequestDevice, which grants every service
// uuid surfaced through the filters/optionalServices union in one call.
func (a *allowedServices) grantAll(deviceID string, uuids []string) {
	for _, uuid := range uuids {
		a.grant(deviceID, uuid)
	}
}

// isAllowed reports whether uuid has ever been granted for deviceID.
func (a *allowedServices) isAllowed(deviceID, uuid string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.perDevice[deviceID]
	if !ok {
		return false
	}
	_, ok = m.Get(normalizeUUID(uuid))
	return ok
}

// list returns deviceID's granted service UUIDs in grant order, for
// diagnostics and tests.
func (a *allowedServices) list(deviceID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.perDevice[deviceID]
	if !ok {
		return nil
	}
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
