package broker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cornelk/hashmap"

	"github.com/srg/blebroker/internal/adapter"
)

// cache is the identifier-and-cache graph: four tiers of driver-assigned
// handles (device/service/characteristic/descriptor), each keyed by its
// own id, plus the parent pointers needed to walk back up the tree and the
// address index used to resolve RequestDevice results back to a live
// device id. It never evicts; entries live until a Test request replaces
// the whole cache.
type cache struct {
	devices         *hashmap.Map[string, adapter.DeviceSnapshot]
	services        *hashmap.Map[string, adapter.ServiceSnapshot]
	characteristics *hashmap.Map[string, adapter.CharacteristicSnapshot]
	descriptors     *hashmap.Map[string, adapter.DescriptorSnapshot]

	deviceByAddress *hashmap.Map[string, string] // address -> device id

	serviceParent        *hashmap.Map[string, string] // service id -> device id
	characteristicParent *hashmap.Map[string, string] // characteristic id -> service id
	descriptorParent     *hashmap.Map[string, string] // descriptor id -> characteristic id

	deviceServices            *hashmap.Map[string, []string] // device id -> service ids, populated
	serviceCharacteristics    *hashmap.Map[string, []string] // service id -> characteristic ids, populated
	characteristicDescriptors *hashmap.Map[string, []string] // characteristic id -> descriptor ids, populated
}

func newCache() *cache {
	return &cache{
		devices:         hashmap.New[string, adapter.DeviceSnapshot](),
		services:        hashmap.New[string, adapter.ServiceSnapshot](),
		characteristics: hashmap.New[string, adapter.CharacteristicSnapshot](),
		descriptors:     hashmap.New[string, adapter.DescriptorSnapshot](),

		deviceByAddress: hashmap.New[string, string](),

		serviceParent:        hashmap.New[string, string](),
		characteristicParent: hashmap.New[string, string](),
		descriptorParent:     hashmap.New[string, string](),

		deviceServices:            hashmap.New[string, []string](),
		serviceCharacteristics:    hashmap.New[string, []string](),
		characteristicDescriptors: hashmap.New[string, []string](),
	}
}

// putDevice registers or refreshes a device snapshot under a broker-minted
// id, recording the address index used by RequestDevice's re-scan path.
func (c *cache) putDevice(id string, snap adapter.DeviceSnapshot) {
	c.devices.Set(id, snap)
	c.deviceByAddress.Set(snap.Address, id)
}

func (c *cache) deviceIDForAddress(address string) (string, bool) {
	return c.deviceByAddress.Get(address)
}

func (c *cache) device(id string) (adapter.DeviceSnapshot, bool) {
	return c.devices.Get(id)
}

// lookupServices returns the device's primary services, fetching and
// caching them from the adapter on first access. Subsequent calls are
// served entirely from cache.
func (c *cache) lookupServices(ctx context.Context, a adapter.Adapter, deviceID string) ([]adapter.ServiceSnapshot, error) {
	if ids, ok := c.deviceServices.Get(deviceID); ok {
		return c.resolveServices(ids), nil
	}

	dev, ok := c.device(deviceID)
	if !ok {
		return nil, nil
	}

	snaps, err := a.Services(ctx, dev.Address)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snaps))
	for _, s := range snaps {
		c.services.Set(s.ID, s)
		c.serviceParent.Set(s.ID, deviceID)
		ids = append(ids, s.ID)
	}
	c.deviceServices.Set(deviceID, ids)
	return snaps, nil
}

func (c *cache) resolveServices(ids []string) []adapter.ServiceSnapshot {
	out := make([]adapter.ServiceSnapshot, 0, len(ids))
	for _, id := range ids {
		if s, ok := c.services.Get(id); ok {
			out = append(out, s)
		}
	}
	return out
}

func (c *cache) service(id string) (adapter.ServiceSnapshot, bool) {
	return c.services.Get(id)
}

// includedServices returns the included services of a service. It queries
// the adapter on every call and caches each result with its parent
// pointer; unlike lookupServices, a repeated call is not served from cache.
func (c *cache) includedServices(ctx context.Context, a adapter.Adapter, serviceID string) ([]adapter.ServiceSnapshot, error) {
	snaps, err := a.IncludedServices(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	for _, s := range snaps {
		c.services.Set(s.ID, s)
		if _, ok := c.serviceParent.Get(s.ID); !ok {
			// included services nest under their including service for
			// cache-walking purposes; they are not a device's direct child.
			c.serviceParent.Set(s.ID, serviceID)
		}
	}
	return snaps, nil
}

// characteristics returns a service's characteristics, populating the cache
// on first access.
func (c *cache) characteristics(ctx context.Context, a adapter.Adapter, serviceID string) ([]adapter.CharacteristicSnapshot, error) {
	if ids, ok := c.serviceCharacteristics.Get(serviceID); ok {
		return c.resolveCharacteristics(ids), nil
	}

	snaps, err := a.Characteristics(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snaps))
	for _, ch := range snaps {
		c.characteristics.Set(ch.ID, ch)
		c.characteristicParent.Set(ch.ID, serviceID)
		ids = append(ids, ch.ID)
	}
	c.serviceCharacteristics.Set(serviceID, ids)
	return snaps, nil
}

func (c *cache) resolveCharacteristics(ids []string) []adapter.CharacteristicSnapshot {
	out := make([]adapter.CharacteristicSnapshot, 0, len(ids))
	for _, id := range ids {
		if ch, ok := c.characteristics.Get(id); ok {
			out = append(out, ch)
		}
	}
	return out
}

func (c *cache) characteristic(id string) (adapter.CharacteristicSnapshot, bool) {
	return c.characteristics.Get(id)
}

// descriptors returns a characteristic's descriptors, populating the cache
// on first access.
func (c *cache) descriptors(ctx context.Context, a adapter.Adapter, characteristicID string) ([]adapter.DescriptorSnapshot, error) {
	if ids, ok := c.characteristicDescriptors.Get(characteristicID); ok {
		return c.resolveDescriptors(ids), nil
	}

	snaps, err := a.Descriptors(ctx, characteristicID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snaps))
	for _, d := range snaps {
		c.descriptors.Set(d.ID, d)
		c.descriptorParent.Set(d.ID, characteristicID)
		ids = append(ids, d.ID)
	}
	c.characteristicDescriptors.Set(characteristicID, ids)
	return snaps, nil
}

func (c *cache) resolveDescriptors(ids []string) []adapter.DescriptorSnapshot {
	out := make([]adapter.DescriptorSnapshot, 0, len(ids))
	for _, id := range ids {
		if d, ok := c.descriptors.Get(id); ok {
			out = append(out, d)
		}
	}
	return out
}

func (c *cache) descriptor(id string) (adapter.DescriptorSnapshot, bool) {
	return c.descriptors.Get(id)
}

// Describe renders the whole cache graph as deterministic, sorted
// multi-line text: one line per cached identifier, qualified by its
// parent pointer. It exists so a test can diff a full graph snapshot in
// one assertion instead of walking each tier by hand.
func (c *cache) Describe() string {
	var lines []string

	c.devices.Range(func(id string, snap adapter.DeviceSnapshot) bool {
		lines = append(lines, fmt.Sprintf("device %s address=%s", id, snap.Address))
		return true
	})
	c.services.Range(func(id string, snap adapter.ServiceSnapshot) bool {
		parent, _ := c.serviceParent.Get(id)
		lines = append(lines, fmt.Sprintf("service %s parent=%s uuid=%s", id, parent, snap.UUID))
		return true
	})
	c.characteristics.Range(func(id string, snap adapter.CharacteristicSnapshot) bool {
		parent, _ := c.characteristicParent.Get(id)
		lines = append(lines, fmt.Sprintf("characteristic %s parent=%s uuid=%s", id, parent, snap.UUID))
		return true
	})
	c.descriptors.Range(func(id string, snap adapter.DescriptorSnapshot) bool {
		parent, _ := c.descriptorParent.Get(id)
		lines = append(lines, fmt.Sprintf("descriptor %s parent=%s uuid=%s", id, parent, snap.UUID))
		return true
	})

	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
