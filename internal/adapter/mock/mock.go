// Package mock implements adapter.Adapter entirely in memory, driven by a
// fixtures.AdapterConfig. It is the adapter the broker's scripted Test
// harness swaps in, and the adapter unit tests build directly when they
// need a topology the named fixtures don't cover.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/internal/fixtures"
)

type characteristic struct {
	snapshot adapter.CharacteristicSnapshot
	value    []byte
}

type service struct {
	snapshot adapter.ServiceSnapshot
	charIDs  []string
}

type device struct {
	snapshot   adapter.DeviceSnapshot
	serviceIDs []string
	connected  bool
}

// Adapter is a deterministic, in-memory adapter.Adapter.
type Adapter struct {
	mu sync.Mutex

	present      bool
	powered      bool
	discoverable bool
	name         string
	address      string

	discoveryStartError bool

	devices         map[string]*device                    // by address
	deviceOrder     []string
	services        map[string]*service                   // by service id
	characteristics map[string]*characteristic            // by characteristic id
	descriptors     map[string]adapter.DescriptorSnapshot
	descriptorValue map[string][]byte
	descriptorOwner map[string]string                     // descriptor id -> owning characteristic id
	descriptorIDs   map[string][]string                   // characteristic id -> descriptor ids, in build order

	nextID uint64
}

// New builds an empty, powered-off mock adapter.
func New() *Adapter {
	return &Adapter{
		present:         true,
		address:         "mock-adapter-0",
		devices:         make(map[string]*device),
		services:        make(map[string]*service),
		characteristics: make(map[string]*characteristic),
		descriptors:     make(map[string]adapter.DescriptorSnapshot),
		descriptorValue: make(map[string][]byte),
		descriptorOwner: make(map[string]string),
		descriptorIDs:   make(map[string][]string),
	}
}

// NewFromConfig builds a mock adapter reflecting a named fixtures topology.
func NewFromConfig(cfg fixtures.AdapterConfig) *Adapter {
	a := New()
	a.present = cfg.Present
	a.powered = cfg.Powered
	a.discoverable = cfg.Discoverable
	a.name = cfg.Name
	a.discoveryStartError = cfg.DiscoveryStartError

	for _, dc := range cfg.Devices {
		a.addDevice(dc)
	}
	return a
}

func (a *Adapter) genID(prefix string) string {
	a.nextID++
	return fmt.Sprintf("%s-%d", prefix, a.nextID)
}

func (a *Adapter) addDevice(dc fixtures.DeviceConfig) {
	dev := &device{
		snapshot: adapter.DeviceSnapshot{
			Address:     dc.Address,
			Name:        dc.Name,
			Connectable: dc.Connectable,
			UUIDs:       append([]string(nil), dc.UUIDs...),
		},
	}
	a.devices[dc.Address] = dev
	a.deviceOrder = append(a.deviceOrder, dc.Address)

	for _, sc := range dc.Services {
		svcID := a.genID("svc")
		svc := &service{snapshot: adapter.ServiceSnapshot{ID: svcID, UUID: sc.UUID, IsPrimary: true}}
		a.services[svcID] = svc
		dev.serviceIDs = append(dev.serviceIDs, svcID)

		for _, cc := range sc.Characteristics {
			charID := a.genID("char")
			ch := &characteristic{
				snapshot: adapter.CharacteristicSnapshot{ID: charID, UUID: cc.UUID, Flags: append([]string(nil), cc.Properties...)},
				value:    append([]byte(nil), cc.Value...),
			}
			a.characteristics[charID] = ch
			svc.charIDs = append(svc.charIDs, charID)

			for _, dcCfg := range cc.Descriptors {
				descID := a.genID("desc")
				a.descriptors[descID] = adapter.DescriptorSnapshot{ID: descID, UUID: dcCfg.UUID}
				a.descriptorValue[descID] = append([]byte(nil), dcCfg.Value...)
				a.descriptorOwner[descID] = charID
				a.descriptorIDs[charID] = append(a.descriptorIDs[charID], descID)
			}
		}
	}
}

// AddDevice registers a device directly (used by tests that build a
// topology by hand rather than through fixtures).
func (a *Adapter) AddDevice(address, name string, connectable bool, uuids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addDevice(fixtures.DeviceConfig{Address: address, Name: name, Connectable: connectable, UUIDs: uuids})
}

// SetPowered/SetPresent let tests flip adapter state mid-scenario.
func (a *Adapter) SetPowered(v bool) { a.mu.Lock(); a.powered = v; a.mu.Unlock() }
func (a *Adapter) SetPresent(v bool) { a.mu.Lock(); a.present = v; a.mu.Unlock() }

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) Present(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.present, nil
}

func (a *Adapter) Powered(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.powered, nil
}

func (a *Adapter) Discoverable(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.discoverable, nil
}

func (a *Adapter) Name(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name, nil
}

func (a *Adapter) Address(context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.address, nil
}

type discoverySession struct{ shouldFail bool }

func (s *discoverySession) Start(context.Context) error {
	if s.shouldFail {
		return fmt.Errorf("mock: discovery session failed to start")
	}
	return nil
}

func (s *discoverySession) Stop(context.Context) error { return nil }

func (a *Adapter) CreateDiscoverySession(context.Context) (adapter.DiscoverySession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return &discoverySession{shouldFail: a.discoveryStartError}, nil
}

func (a *Adapter) Devices(context.Context) ([]adapter.DeviceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]adapter.DeviceSnapshot, 0, len(a.deviceOrder))
	for _, addr := range a.deviceOrder {
		dev := a.devices[addr]
		snap := dev.snapshot
		snap.Connected = dev.connected
		out = append(out, snap)
	}
	return out, nil
}

func (a *Adapter) Connect(_ context.Context, address string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	dev, ok := a.devices[address]
	if !ok {
		return fmt.Errorf("mock: unknown device %q", address)
	}
	dev.connected = true
	return nil
}

func (a *Adapter) Disconnect(_ context.Context, address string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	dev, ok := a.devices[address]
	if !ok {
		return fmt.Errorf("mock: unknown device %q", address)
	}
	dev.connected = false
	return nil
}

func (a *Adapter) IsConnected(_ context.Context, address string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dev, ok := a.devices[address]
	if !ok {
		return false, fmt.Errorf("mock: unknown device %q", address)
	}
	return dev.connected, nil
}

func (a *Adapter) Services(_ context.Context, deviceAddress string) ([]adapter.ServiceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	dev, ok := a.devices[deviceAddress]
	if !ok {
		return nil, nil
	}
	out := make([]adapter.ServiceSnapshot, 0, len(dev.serviceIDs))
	for _, id := range dev.serviceIDs {
		out = append(out, a.services[id].snapshot)
	}
	return out, nil
}

func (a *Adapter) IncludedServices(_ context.Context, serviceID string) ([]adapter.ServiceSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	svc, ok := a.services[serviceID]
	if !ok {
		return nil, nil
	}
	out := make([]adapter.ServiceSnapshot, 0, len(svc.snapshot.Includes))
	for _, id := range svc.snapshot.Includes {
		if incl, ok := a.services[id]; ok {
			out = append(out, incl.snapshot)
		}
	}
	return out, nil
}

func (a *Adapter) Characteristics(_ context.Context, serviceID string) ([]adapter.CharacteristicSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	svc, ok := a.services[serviceID]
	if !ok {
		return nil, nil
	}
	out := make([]adapter.CharacteristicSnapshot, 0, len(svc.charIDs))
	for _, id := range svc.charIDs {
		out = append(out, a.characteristics[id].snapshot)
	}
	return out, nil
}

func (a *Adapter) Descriptors(_ context.Context, characteristicID string) ([]adapter.DescriptorSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.characteristics[characteristicID]; !ok {
		return nil, nil
	}
	ids := a.descriptorIDs[characteristicID]
	out := make([]adapter.DescriptorSnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, a.descriptors[id])
	}
	return out, nil
}

func (a *Adapter) ReadValue(_ context.Context, attributeID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.characteristics[attributeID]; ok {
		return append([]byte(nil), ch.value...), nil
	}
	if v, ok := a.descriptorValue[attributeID]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, fmt.Errorf("mock: unknown attribute %q", attributeID)
}

func (a *Adapter) WriteValue(_ context.Context, attributeID string, value []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ch, ok := a.characteristics[attributeID]; ok {
		ch.value = append([]byte(nil), value...)
		return nil
	}
	if _, ok := a.descriptorValue[attributeID]; ok {
		a.descriptorValue[attributeID] = append([]byte(nil), value...)
		return nil
	}
	return fmt.Errorf("mock: unknown attribute %q", attributeID)
}
