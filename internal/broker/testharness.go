package broker

import (
	"context"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/internal/adapter/mock"
	"github.com/srg/blebroker/internal/fixtures"
)

// handleTest looks up the named topology, rebuilds a fresh
// mock adapter from it, reset the cache and allowed-services registry (a
// fresh topology has no relationship to whatever the previous one cached),
// and flip the process-wide testing flag on.
func (b *Broker) handleTest(_ context.Context, r Test) {
	cfg, err := fixtures.Lookup(r.DataSetName)
	if err != nil {
		r.Reply <- Reply[bool]{Err: typeErr("Wrong data set name was provided")}
		return
	}

	newAdapter := mock.NewFromConfig(cfg)

	b.adapter = newAdapter
	b.cache = newCache()
	b.allowed = newAllowedServices()
	b.adapterFactory = func() adapter.Adapter { return newAdapter }
	b.testing.Store(true)

	r.Reply <- Reply[bool]{Value: true}
}
