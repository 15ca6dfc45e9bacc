package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/blebroker/internal/adapter"
	"github.com/srg/blebroker/internal/adapter/mock"
	"github.com/srg/blebroker/internal/broker"
	"github.com/srg/blebroker/internal/fixtures"
	"github.com/srg/blebroker/pkg/config"
)

// configureLogger builds a logrus.Logger from the --log-level persistent
// flag.
func configureLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelStr, err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return logger, nil
}

// startBroker builds and runs a broker against an empty mock adapter,
// returning it along with a cancel func that stops the dispatcher
// goroutine. Callers send a Test request first if they want a named
// topology loaded.
func startBroker(cmd *cobra.Command) (*broker.Broker, context.CancelFunc, error) {
	logger, err := configureLogger(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg := config.DefaultConfig()
	factory := func() adapter.Adapter { return mock.New() }
	b := broker.New(cfg, logger, factory, broker.AutoFirstChooser{})

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	return b, cancel, nil
}

// send is a generic request/reply helper: it posts req onto the broker
// and returns whatever arrives on reply.
func send[T any](b *broker.Broker, req broker.Request, reply chan broker.Reply[T]) (T, error) {
	b.Requests() <- req
	r := <-reply
	return r.Value, r.Err
}

func knownTopologies() []string {
	return fixtures.Names()
}
