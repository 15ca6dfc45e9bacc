// Package broker implements the request/reply dispatcher described in the
// design notes above internal/broker: a single-threaded loop that mediates
// discovery, GATT enumeration, and read/write requests against an injected
// adapter.Adapter, translating every failure into the closed error
// taxonomy of errors.go before it ever reaches a reply channel.
package broker

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/pkg/config"
)

// AdapterFactory builds a fresh adapter handle. The broker calls it lazily
// on first use and again whenever the current handle's Address query
// fails, mirroring the upstream get_or_create_adapter re-initialization
// path.
type AdapterFactory func() adapter.Adapter

// Broker is the dispatcher: one goroutine reading from requests, serially
// calling into the cache, allowed-services registry, chooser, and adapter.
type Broker struct {
	cfg    *config.Config
	logger *logrus.Logger

	adapterFactory AdapterFactory
	adapter        adapter.Adapter

	cache   *cache
	allowed *allowedServices
	chooser Chooser

	requests chan Request
	testing  atomic.Bool
}

// New builds a Broker. chooser may be nil, in which case AutoFirstChooser
// is used — the same default the test harness relies on.
func New(cfg *config.Config, logger *logrus.Logger, factory AdapterFactory, chooser Chooser) *Broker {
	if chooser == nil {
		chooser = AutoFirstChooser{}
	}
	return &Broker{
		cfg:            cfg,
		logger:         logger,
		adapterFactory: factory,
		cache:          newCache(),
		allowed:        newAllowedServices(),
		chooser:        chooser,
		requests:       make(chan Request, 16),
	}
}

// Requests returns the channel callers send Request values on.
func (b *Broker) Requests() chan<- Request { return b.requests }

// IsTesting reports whether the broker is currently in scripted-test mode.
func (b *Broker) IsTesting() bool { return b.testing.Load() }

// Run drains requests until an Exit request arrives, the channel is
// closed, or ctx is canceled. It is meant to run in its own goroutine; the
// dispatcher itself is never called concurrently from two goroutines.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-b.requests:
			if !ok {
				return
			}
			if _, isExit := req.(Exit); isExit {
				return
			}
			b.dispatch(ctx, req)
		}
	}
}

func (b *Broker) dispatch(ctx context.Context, req Request) {
	b.logger.WithField("request", requestName(req)).Debug("dispatching request")

	switch r := req.(type) {
	case RequestDevice:
		b.handleRequestDevice(ctx, r)
	case GATTServerConnect:
		b.handleConnect(ctx, r)
	case GATTServerDisconnect:
		b.handleDisconnect(ctx, r)
	case GetPrimaryService:
		b.handleGetPrimaryService(ctx, r)
	case GetPrimaryServices:
		b.handleGetPrimaryServices(ctx, r)
	case GetIncludedService:
		b.handleGetIncludedService(ctx, r)
	case GetIncludedServices:
		b.handleGetIncludedServices(ctx, r)
	case GetCharacteristic:
		b.handleGetCharacteristic(ctx, r)
	case GetCharacteristics:
		b.handleGetCharacteristics(ctx, r)
	case GetDescriptor:
		b.handleGetDescriptor(ctx, r)
	case GetDescriptors:
		b.handleGetDescriptors(ctx, r)
	case ReadValue:
		b.handleReadValue(ctx, r)
	case WriteValue:
		b.handleWriteValue(ctx, r)
	case Test:
		b.handleTest(ctx, r)
	}
}

func requestName(req Request) string {
	switch req.(type) {
	case RequestDevice:
		return "RequestDevice"
	case GATTServerConnect:
		return "GATTServerConnect"
	case GATTServerDisconnect:
		return "GATTServerDisconnect"
	case GetPrimaryService:
		return "GetPrimaryService"
	case GetPrimaryServices:
		return "GetPrimaryServices"
	case GetIncludedService:
		return "GetIncludedService"
	case GetIncludedServices:
		return "GetIncludedServices"
	case GetCharacteristic:
		return "GetCharacteristic"
	case GetCharacteristics:
		return "GetCharacteristics"
	case GetDescriptor:
		return "GetDescriptor"
	case GetDescriptors:
		return "GetDescriptors"
	case ReadValue:
		return "ReadValue"
	case WriteValue:
		return "WriteValue"
	case Test:
		return "Test"
	default:
		return "unknown"
	}
}

// resolveAdapter implements the adapter gate: lazily create the
// adapter handle, re-create it if its address query fails, then reject on
// absence or power-off before any handler touches the GATT surface.
func (b *Broker) resolveAdapter(ctx context.Context) (adapter.Adapter, error) {
	if b.adapter == nil {
		b.adapter = b.adapterFactory()
	} else if _, err := b.adapter.Address(ctx); err != nil {
		b.logger.WithError(err).Warn("adapter address query failed, re-initializing")
		b.adapter = b.adapterFactory()
	}

	a := b.adapter

	present, err := a.Present(ctx)
	if err != nil {
		b.logger.WithError(err).Warn("adapter presence query failed")
		return nil, ErrAdapterError
	}
	if !present {
		return nil, ErrAdapterError
	}

	powered, err := a.Powered(ctx)
	if err != nil {
		b.logger.WithError(err).Warn("adapter power query failed")
		return nil, ErrAdapterError
	}
	if !powered {
		return nil, ErrAdapterNotPowered
	}

	return a, nil
}
