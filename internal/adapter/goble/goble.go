// Package goble is the production adapter.Adapter, backed by
// github.com/go-ble/ble: a default-device factory that can be swapped in
// tests, raw ble.Property flags surfaced as strings for the broker to
// translate, and chunked writes sized to the ATT_MTU default payload.
package goble

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blebroker/internal/adapter"
)

const (
	// writeChunkSize keeps writes within the default ATT_MTU payload
	// (23 bytes minus a 3-byte header).
	writeChunkSize = 20
	writeChunkGap  = 10 * time.Millisecond
)

// DeviceFactory builds the platform ble.Device. It is a package variable,
// not a constant function, so tests can swap it for a fake.
var DeviceFactory func() (ble.Device, error)

type attrKind int

const (
	kindService attrKind = iota
	kindCharacteristic
	kindDescriptor
)

// attrHandle resolves an adapter-minted id back to the go-ble object it
// names, plus the address of the connection it lives under.
type attrHandle struct {
	address string
	kind    attrKind
	svc     *ble.Service
	char    *ble.Characteristic
	desc    *ble.Descriptor
}

// Adapter implements adapter.Adapter against a live Bluetooth controller.
// Every GATT tier (services/characteristics/descriptors) is discovered by
// dialing the device, since go-ble exposes no standalone GATT browse call
// independent of a connection.
type Adapter struct {
	logger *logrus.Logger

	mu         sync.Mutex
	bleDevice  ble.Device
	discovered map[string]ble.Advertisement // address -> last advertisement

	connMu   sync.Mutex
	conns    map[string]ble.Client   // address -> live connection
	profiles map[string]*ble.Profile // address -> discovered profile, cached post-connect

	attrMu   sync.Mutex
	attrByID map[string]attrHandle // driver id -> resolved attribute handle
	nextID   uint64
}

// New builds a goble Adapter. logger may be nil.
func New(logger *logrus.Logger) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Adapter{
		logger:     logger,
		discovered: make(map[string]ble.Advertisement),
		conns:      make(map[string]ble.Client),
		profiles:   make(map[string]*ble.Profile),
		attrByID:   make(map[string]attrHandle),
	}
}

var _ adapter.Adapter = (*Adapter)(nil)

func (a *Adapter) ensureDevice() (ble.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bleDevice != nil {
		return a.bleDevice, nil
	}
	if DeviceFactory == nil {
		return nil, fmt.Errorf("goble: no platform device factory registered")
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("goble: create device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	a.bleDevice = dev
	return dev, nil
}

func (a *Adapter) Present(context.Context) (bool, error) {
	_, err := a.ensureDevice()
	return err == nil, nil
}

func (a *Adapter) Powered(context.Context) (bool, error) {
	_, err := a.ensureDevice()
	if err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Discoverable(context.Context) (bool, error) { return true, nil }

func (a *Adapter) Name(context.Context) (string, error) { return "goble-adapter", nil }

func (a *Adapter) Address(context.Context) (string, error) {
	if _, err := a.ensureDevice(); err != nil {
		return "", err
	}
	return "local", nil
}

type discoverySession struct {
	a      *Adapter
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *discoverySession) Start(ctx context.Context) error {
	dev, err := s.a.ensureDevice()
	if err != nil {
		return err
	}

	scanCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		_ = dev.Scan(scanCtx, true, func(adv ble.Advertisement) {
			s.a.mu.Lock()
			s.a.discovered[adv.Addr().String()] = adv
			s.a.mu.Unlock()
		})
	}()
	return nil
}

func (s *discoverySession) Stop(context.Context) error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

func (a *Adapter) CreateDiscoverySession(context.Context) (adapter.DiscoverySession, error) {
	return &discoverySession{a: a}, nil
}

func (a *Adapter) Devices(context.Context) ([]adapter.DeviceSnapshot, error) {
	a.mu.Lock()
	snapshot := make(map[string]ble.Advertisement, len(a.discovered))
	for addr, adv := range a.discovered {
		snapshot[addr] = adv
	}
	a.mu.Unlock()

	out := make([]adapter.DeviceSnapshot, 0, len(snapshot))
	for addr, adv := range snapshot {
		snap := adapter.DeviceSnapshot{
			Address:     addr,
			Name:        adv.LocalName(),
			Connectable: adv.Connectable(),
			ManufData:   adv.ManufacturerData(),
			ServiceData: make(map[string][]byte),
		}
		for _, uuid := range adv.Services() {
			snap.UUIDs = append(snap.UUIDs, uuid.String())
		}
		for _, sd := range adv.ServiceData() {
			snap.ServiceData[sd.UUID.String()] = sd.Data
		}
		if tx := adv.TxPowerLevel(); tx != 127 {
			v := int8(tx)
			snap.TxPower = &v
		}
		rssi := int8(adv.RSSI())
		snap.RSSI = &rssi

		a.connMu.Lock()
		_, connected := a.conns[addr]
		a.connMu.Unlock()
		snap.Connected = connected

		out = append(out, snap)
	}
	return out, nil
}

func (a *Adapter) Connect(ctx context.Context, address string) error {
	if _, err := a.ensureDevice(); err != nil {
		return err
	}

	a.connMu.Lock()
	if _, ok := a.conns[address]; ok {
		a.connMu.Unlock()
		return nil
	}
	a.connMu.Unlock()

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return fmt.Errorf("goble: dial %s: %w", address, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return fmt.Errorf("goble: discover profile for %s: %w", address, err)
	}

	a.connMu.Lock()
	a.conns[address] = client
	a.profiles[address] = profile
	a.connMu.Unlock()
	return nil
}

func (a *Adapter) Disconnect(_ context.Context, address string) error {
	a.connMu.Lock()
	client, ok := a.conns[address]
	delete(a.conns, address)
	delete(a.profiles, address)
	a.connMu.Unlock()

	if !ok {
		return nil
	}
	return client.CancelConnection()
}

func (a *Adapter) IsConnected(_ context.Context, address string) (bool, error) {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	_, ok := a.conns[address]
	return ok, nil
}

func (a *Adapter) genID(prefix string) string {
	a.attrMu.Lock()
	defer a.attrMu.Unlock()
	a.nextID++
	return fmt.Sprintf("%s-%d", prefix, a.nextID)
}

func (a *Adapter) putHandle(id string, h attrHandle) {
	a.attrMu.Lock()
	a.attrByID[id] = h
	a.attrMu.Unlock()
}

func (a *Adapter) getHandle(id string) (attrHandle, bool) {
	a.attrMu.Lock()
	defer a.attrMu.Unlock()
	h, ok := a.attrByID[id]
	return h, ok
}

// Services discovers and registers the device's top-level services,
// characteristics, and descriptors in one pass — go-ble's DiscoverProfile
// returns the full tree, so there is no cheaper partial enumeration.
func (a *Adapter) Services(_ context.Context, deviceAddress string) ([]adapter.ServiceSnapshot, error) {
	a.connMu.Lock()
	profile, ok := a.profiles[deviceAddress]
	a.connMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("goble: %s is not connected", deviceAddress)
	}

	out := make([]adapter.ServiceSnapshot, 0, len(profile.Services))
	for _, svc := range profile.Services {
		svcID := a.genID("svc")
		a.putHandle(svcID, attrHandle{address: deviceAddress, kind: kindService, svc: svc})
		out = append(out, adapter.ServiceSnapshot{ID: svcID, UUID: svc.UUID.String(), IsPrimary: true})

		for _, ch := range svc.Characteristics {
			charID := a.genID("char")
			a.putHandle(charID, attrHandle{address: deviceAddress, kind: kindCharacteristic, char: ch})

			for _, d := range ch.Descriptors {
				descID := a.genID("desc")
				a.putHandle(descID, attrHandle{address: deviceAddress, kind: kindDescriptor, desc: d})
			}
		}
	}
	return out, nil
}

// IncludedServices is unimplemented for the goble backend: go-ble's
// DiscoverProfile does not surface include definitions distinctly from
// top-level services.
func (a *Adapter) IncludedServices(context.Context, string) ([]adapter.ServiceSnapshot, error) {
	return nil, nil
}

func (a *Adapter) Characteristics(_ context.Context, serviceID string) ([]adapter.CharacteristicSnapshot, error) {
	handle, ok := a.getHandle(serviceID)
	if !ok || handle.kind != kindService {
		return nil, fmt.Errorf("goble: unknown service id %q", serviceID)
	}

	a.attrMu.Lock()
	defer a.attrMu.Unlock()

	out := make([]adapter.CharacteristicSnapshot, 0, len(handle.svc.Characteristics))
	for id, h := range a.attrByID {
		if h.kind != kindCharacteristic || h.address != handle.address {
			continue
		}
		for _, ch := range handle.svc.Characteristics {
			if ch == h.char {
				out = append(out, adapter.CharacteristicSnapshot{ID: id, UUID: ch.UUID.String(), Flags: propertyFlags(ch.Property)})
			}
		}
	}
	return out, nil
}

func (a *Adapter) Descriptors(_ context.Context, characteristicID string) ([]adapter.DescriptorSnapshot, error) {
	handle, ok := a.getHandle(characteristicID)
	if !ok || handle.kind != kindCharacteristic {
		return nil, fmt.Errorf("goble: unknown characteristic id %q", characteristicID)
	}

	a.attrMu.Lock()
	defer a.attrMu.Unlock()

	out := make([]adapter.DescriptorSnapshot, 0, len(handle.char.Descriptors))
	for id, h := range a.attrByID {
		if h.kind != kindDescriptor || h.address != handle.address {
			continue
		}
		for _, d := range handle.char.Descriptors {
			if d == h.desc {
				out = append(out, adapter.DescriptorSnapshot{ID: id, UUID: d.UUID.String()})
			}
		}
	}
	return out, nil
}

func (a *Adapter) ReadValue(_ context.Context, attributeID string) ([]byte, error) {
	handle, ok := a.getHandle(attributeID)
	if !ok {
		return nil, fmt.Errorf("goble: unknown attribute id %q", attributeID)
	}

	a.connMu.Lock()
	client, ok := a.conns[handle.address]
	a.connMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("goble: %s is not connected", handle.address)
	}

	switch handle.kind {
	case kindCharacteristic:
		return client.ReadCharacteristic(handle.char)
	case kindDescriptor:
		return client.ReadDescriptor(handle.desc)
	default:
		return nil, fmt.Errorf("goble: attribute %q is not readable", attributeID)
	}
}

func (a *Adapter) WriteValue(_ context.Context, attributeID string, value []byte) error {
	handle, ok := a.getHandle(attributeID)
	if !ok {
		return fmt.Errorf("goble: unknown attribute id %q", attributeID)
	}

	a.connMu.Lock()
	client, ok := a.conns[handle.address]
	a.connMu.Unlock()
	if !ok {
		return fmt.Errorf("goble: %s is not connected", handle.address)
	}

	switch handle.kind {
	case kindCharacteristic:
		return writeChunked(value, func(chunk []byte) error {
			return client.WriteCharacteristic(handle.char, chunk, false)
		})
	case kindDescriptor:
		return writeChunked(value, func(chunk []byte) error {
			return client.WriteDescriptor(handle.desc, chunk)
		})
	default:
		return fmt.Errorf("goble: attribute %q is not writable", attributeID)
	}
}

func writeChunked(data []byte, write func([]byte) error) error {
	for len(data) > 0 {
		n := len(data)
		if n > writeChunkSize {
			n = writeChunkSize
		}
		if err := write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if len(data) > 0 {
			time.Sleep(writeChunkGap)
		}
	}
	return nil
}

// propertyFlags turns ble.Property bit flags into the broker's raw flag
// string vocabulary, rendered as strings rather than a Properties struct
// since the broker, not the adapter, owns the final bit-set shape.
func propertyFlags(p ble.Property) []string {
	var flags []string
	if p&ble.CharBroadcast != 0 {
		flags = append(flags, "broadcast")
	}
	if p&ble.CharRead != 0 {
		flags = append(flags, "read")
	}
	if p&ble.CharWriteNR != 0 {
		flags = append(flags, "write_without_response")
	}
	if p&ble.CharWrite != 0 {
		flags = append(flags, "write")
	}
	if p&ble.CharNotify != 0 {
		flags = append(flags, "notify")
	}
	if p&ble.CharIndicate != 0 {
		flags = append(flags, "indicate")
	}
	if p&ble.CharSignedWrite != 0 {
		flags = append(flags, "authenticated_signed_writes")
	}
	return flags
}
