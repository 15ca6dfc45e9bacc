package broker

import (
	"context"
	"time"

	"github.com/srg/blebroker/internal/adapter"
)

func ptrString(s string) *string { return &s }

func snapshotToDeviceMessage(id string, snap adapter.DeviceSnapshot) DeviceMessage {
	msg := DeviceMessage{ID: id, Appearance: snap.Appearance, TxPower: snap.TxPower, RSSI: snap.RSSI}
	if snap.Name != "" {
		msg.Name = ptrString(snap.Name)
	}
	return msg
}

func serviceToMessage(s adapter.ServiceSnapshot) ServiceMessage {
	return ServiceMessage{UUID: s.UUID, IsPrimary: s.IsPrimary, InstanceID: s.ID}
}

func characteristicToMessage(c adapter.CharacteristicSnapshot) CharacteristicMessage {
	return CharacteristicMessage{UUID: c.UUID, InstanceID: c.ID, Properties: translateProperties(c.Flags)}
}

func descriptorToMessage(d adapter.DescriptorSnapshot) DescriptorMessage {
	return DescriptorMessage{UUID: d.UUID, InstanceID: d.ID}
}

// handleRequestDevice runs the discovery transaction: start a
// session, sleep the discovery window, enumerate devices (registering
// every newly seen address), filter, hand the survivors to the chooser,
// then union the accepted request's service UUIDs into the allowed-set.
func (b *Broker) handleRequestDevice(ctx context.Context, r RequestDevice) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[DeviceMessage]{Err: err}
		return
	}

	session, err := a.CreateDiscoverySession(ctx)
	if err != nil {
		r.Reply <- Reply[DeviceMessage]{Err: typeErr("Failed to create discovery session")}
		return
	}
	if err := session.Start(ctx); err != nil {
		r.Reply <- Reply[DeviceMessage]{Err: typeErr("Failed to start discovery")}
		return
	}

	b.sleepDiscoveryWindow(ctx)
	_ = session.Stop(ctx)

	snaps, err := a.Devices(ctx)
	if err != nil {
		r.Reply <- Reply[DeviceMessage]{Err: ErrAdapterError}
		return
	}

	candidates := make([]adapter.DeviceSnapshot, 0, len(snaps))
	for _, snap := range snaps {
		id, ok := b.cache.deviceIDForAddress(snap.Address)
		if !ok {
			newID, genErr := generateDeviceID(func(candidate string) bool {
				_, exists := b.cache.device(candidate)
				return exists
			})
			if genErr != nil {
				r.Reply <- Reply[DeviceMessage]{Err: ErrAdapterError}
				return
			}
			id = newID
		}
		b.cache.putDevice(id, snap)

		if r.AcceptAllDevices || matchesFilters(snap, r.Filters) {
			candidates = append(candidates, snap)
		}
	}

	if len(candidates) == 0 {
		r.Reply <- Reply[DeviceMessage]{Err: ErrNotFound}
		return
	}

	chosen, ok, err := b.chooser.Choose(ctx, candidates)
	if err != nil {
		r.Reply <- Reply[DeviceMessage]{Err: typeErr("Chooser failed")}
		return
	}
	if !ok {
		r.Reply <- Reply[DeviceMessage]{Err: ErrNotFound}
		return
	}

	deviceID, ok := b.cache.deviceIDForAddress(chosen.Address)
	if !ok {
		r.Reply <- Reply[DeviceMessage]{Err: ErrNotFound}
		return
	}

	grants := make([]string, 0, len(r.Filters)+len(r.OptionalServices))
	for _, f := range r.Filters {
		grants = append(grants, f.Services...)
	}
	grants = append(grants, r.OptionalServices...)
	b.allowed.grantAll(deviceID, grants)

	r.Reply <- Reply[DeviceMessage]{Value: snapshotToDeviceMessage(deviceID, chosen)}
}

func (b *Broker) sleepDiscoveryWindow(ctx context.Context) {
	if b.testing.Load() {
		return
	}
	timer := time.NewTimer(b.cfg.DiscoveryWindow)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (b *Broker) handleConnect(ctx context.Context, r GATTServerConnect) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[bool]{Err: err}
		return
	}

	dev, ok := b.cache.device(r.DeviceID)
	if !ok {
		r.Reply <- Reply[bool]{Err: ErrNotFound}
		return
	}

	connected, err := a.IsConnected(ctx, dev.Address)
	if err != nil {
		r.Reply <- Reply[bool]{Err: ErrAdapterError}
		return
	}
	if connected {
		r.Reply <- Reply[bool]{Value: true}
		return
	}

	if err := b.awaitConnection(ctx, a, dev.Address, true); err != nil {
		r.Reply <- Reply[bool]{Err: err}
		return
	}
	r.Reply <- Reply[bool]{Value: true}
}

func (b *Broker) handleDisconnect(ctx context.Context, r GATTServerDisconnect) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[bool]{Err: err}
		return
	}

	dev, ok := b.cache.device(r.DeviceID)
	if !ok {
		r.Reply <- Reply[bool]{Err: ErrNotFound}
		return
	}

	connected, err := a.IsConnected(ctx, dev.Address)
	if err != nil {
		r.Reply <- Reply[bool]{Err: ErrAdapterError}
		return
	}
	if !connected {
		r.Reply <- Reply[bool]{Value: false}
		return
	}

	if err := b.awaitConnection(ctx, a, dev.Address, false); err != nil {
		r.Reply <- Reply[bool]{Err: err}
		return
	}
	r.Reply <- Reply[bool]{Value: false}
}

// awaitConnection collapses the poll loop to a single iteration in test
// mode so tests stay deterministic; the mock adapter's Connect/Disconnect
// flips state synchronously anyway.
func (b *Broker) awaitConnection(ctx context.Context, a adapter.Adapter, address string, want bool) error {
	pollInterval := b.cfg.ConnectionPollInterval
	timeout := b.cfg.TransactionTimeout
	if b.testing.Load() {
		timeout = 0
	}
	return awaitConnectionState(ctx, a, address, want, pollInterval, timeout)
}

func (b *Broker) handleGetPrimaryService(ctx context.Context, r GetPrimaryService) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[ServiceMessage]{Err: err}
		return
	}

	if !b.allowed.isAllowed(r.DeviceID, r.UUID) {
		r.Reply <- Reply[ServiceMessage]{Err: ErrSecurity}
		return
	}

	svcs, err := b.cache.lookupServices(ctx, a, r.DeviceID)
	if err != nil {
		r.Reply <- Reply[ServiceMessage]{Err: ErrAdapterError}
		return
	}

	for _, s := range svcs {
		if normalizeUUID(s.UUID) == normalizeUUID(r.UUID) && s.IsPrimary {
			r.Reply <- Reply[ServiceMessage]{Value: serviceToMessage(s)}
			return
		}
	}
	r.Reply <- Reply[ServiceMessage]{Err: ErrNotFound}
}

func (b *Broker) handleGetPrimaryServices(ctx context.Context, r GetPrimaryServices) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[[]ServiceMessage]{Err: err}
		return
	}

	if r.UUID != nil && !b.allowed.isAllowed(r.DeviceID, *r.UUID) {
		r.Reply <- Reply[[]ServiceMessage]{Err: ErrSecurity}
		return
	}

	svcs, err := b.cache.lookupServices(ctx, a, r.DeviceID)
	if err != nil {
		r.Reply <- Reply[[]ServiceMessage]{Err: ErrAdapterError}
		return
	}

	var out []ServiceMessage
	for _, s := range svcs {
		if !s.IsPrimary {
			continue
		}
		if r.UUID != nil && normalizeUUID(s.UUID) != normalizeUUID(*r.UUID) {
			continue
		}
		out = append(out, serviceToMessage(s))
	}
	if len(out) == 0 {
		r.Reply <- Reply[[]ServiceMessage]{Err: ErrNotFound}
		return
	}
	r.Reply <- Reply[[]ServiceMessage]{Value: out}
}

func (b *Broker) handleGetIncludedService(ctx context.Context, r GetIncludedService) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[ServiceMessage]{Err: err}
		return
	}

	svcs, err := b.cache.includedServices(ctx, a, r.ServiceID)
	if err != nil {
		r.Reply <- Reply[ServiceMessage]{Err: ErrAdapterError}
		return
	}
	for _, s := range svcs {
		if normalizeUUID(s.UUID) == normalizeUUID(r.UUID) {
			r.Reply <- Reply[ServiceMessage]{Value: serviceToMessage(s)}
			return
		}
	}
	r.Reply <- Reply[ServiceMessage]{Err: ErrNotFound}
}

func (b *Broker) handleGetIncludedServices(ctx context.Context, r GetIncludedServices) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[[]ServiceMessage]{Err: err}
		return
	}

	svcs, err := b.cache.includedServices(ctx, a, r.ServiceID)
	if err != nil {
		r.Reply <- Reply[[]ServiceMessage]{Err: ErrAdapterError}
		return
	}

	var out []ServiceMessage
	for _, s := range svcs {
		if r.UUID != nil && normalizeUUID(s.UUID) != normalizeUUID(*r.UUID) {
			continue
		}
		out = append(out, serviceToMessage(s))
	}
	if len(out) == 0 {
		r.Reply <- Reply[[]ServiceMessage]{Err: ErrNotFound}
		return
	}
	r.Reply <- Reply[[]ServiceMessage]{Value: out}
}

func (b *Broker) handleGetCharacteristic(ctx context.Context, r GetCharacteristic) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[CharacteristicMessage]{Err: err}
		return
	}

	chars, err := b.cache.characteristics(ctx, a, r.ServiceID)
	if err != nil {
		r.Reply <- Reply[CharacteristicMessage]{Err: ErrAdapterError}
		return
	}
	for _, c := range chars {
		if normalizeUUID(c.UUID) == normalizeUUID(r.UUID) {
			r.Reply <- Reply[CharacteristicMessage]{Value: characteristicToMessage(c)}
			return
		}
	}
	r.Reply <- Reply[CharacteristicMessage]{Err: ErrNotFound}
}

func (b *Broker) handleGetCharacteristics(ctx context.Context, r GetCharacteristics) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[[]CharacteristicMessage]{Err: err}
		return
	}

	chars, err := b.cache.characteristics(ctx, a, r.ServiceID)
	if err != nil {
		r.Reply <- Reply[[]CharacteristicMessage]{Err: ErrAdapterError}
		return
	}

	var out []CharacteristicMessage
	for _, c := range chars {
		if r.UUID != nil && normalizeUUID(c.UUID) != normalizeUUID(*r.UUID) {
			continue
		}
		out = append(out, characteristicToMessage(c))
	}
	if len(out) == 0 {
		r.Reply <- Reply[[]CharacteristicMessage]{Err: ErrNotFound}
		return
	}
	r.Reply <- Reply[[]CharacteristicMessage]{Value: out}
}

func (b *Broker) handleGetDescriptor(ctx context.Context, r GetDescriptor) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[DescriptorMessage]{Err: err}
		return
	}

	descs, err := b.cache.descriptors(ctx, a, r.CharacteristicID)
	if err != nil {
		r.Reply <- Reply[DescriptorMessage]{Err: ErrAdapterError}
		return
	}
	for _, d := range descs {
		if normalizeUUID(d.UUID) == normalizeUUID(r.UUID) {
			r.Reply <- Reply[DescriptorMessage]{Value: descriptorToMessage(d)}
			return
		}
	}
	r.Reply <- Reply[DescriptorMessage]{Err: ErrNotFound}
}

func (b *Broker) handleGetDescriptors(ctx context.Context, r GetDescriptors) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[[]DescriptorMessage]{Err: err}
		return
	}

	descs, err := b.cache.descriptors(ctx, a, r.CharacteristicID)
	if err != nil {
		r.Reply <- Reply[[]DescriptorMessage]{Err: ErrAdapterError}
		return
	}

	var out []DescriptorMessage
	for _, d := range descs {
		if r.UUID != nil && normalizeUUID(d.UUID) != normalizeUUID(*r.UUID) {
			continue
		}
		out = append(out, descriptorToMessage(d))
	}
	if len(out) == 0 {
		r.Reply <- Reply[[]DescriptorMessage]{Err: ErrNotFound}
		return
	}
	r.Reply <- Reply[[]DescriptorMessage]{Value: out}
}

// handleReadValue tries the characteristic namespace first, then the
// descriptor namespace. A driver error on a found attribute is
// folded into an empty success reply rather than propagated, matching the
// upstream behavior this is grounded on.
func (b *Broker) handleReadValue(ctx context.Context, r ReadValue) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[[]byte]{Err: err}
		return
	}

	if _, ok := b.cache.characteristic(r.AttributeID); ok {
		value, readErr := a.ReadValue(ctx, r.AttributeID)
		if readErr != nil {
			r.Reply <- Reply[[]byte]{Value: []byte{}}
			return
		}
		r.Reply <- Reply[[]byte]{Value: value}
		return
	}

	if _, ok := b.cache.descriptor(r.AttributeID); ok {
		value, readErr := a.ReadValue(ctx, r.AttributeID)
		if readErr != nil {
			r.Reply <- Reply[[]byte]{Value: []byte{}}
			return
		}
		r.Reply <- Reply[[]byte]{Value: value}
		return
	}

	r.Reply <- Reply[[]byte]{Err: ErrNotSupported}
}

func (b *Broker) handleWriteValue(ctx context.Context, r WriteValue) {
	a, err := b.resolveAdapter(ctx)
	if err != nil {
		r.Reply <- Reply[bool]{Err: err}
		return
	}

	_, isChar := b.cache.characteristic(r.AttributeID)
	_, isDesc := b.cache.descriptor(r.AttributeID)
	if !isChar && !isDesc {
		r.Reply <- Reply[bool]{Err: ErrNotSupported}
		return
	}

	if err := a.WriteValue(ctx, r.AttributeID, r.Value); err != nil {
		r.Reply <- Reply[bool]{Err: ErrNotSupported}
		return
	}
	r.Reply <- Reply[bool]{Value: true}
}
