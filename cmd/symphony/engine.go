package main

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/config"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/failure"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/scheduler"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// defaultProviderBudget is the calls-per-minute ceiling handed to each
// configured market-data provider absent a more specific operator
// setting (spec.md §6 names provider priorities, not per-provider
// budgets, so one conservative default covers both SourceA/SourceB).
const defaultProviderBudget = 60

// engine bundles every collaborator a scheduler/worker/beat/run-once
// invocation shares, built once per process from the same config and
// data directory.
type engine struct {
	logger  *zap.Logger
	cfg     types.EngineConfig
	store   *store.Store
	facade  *marketdata.Facade
	broker  *broker.PaperBroker
	handler *failure.Handler
	bus     *events.EventBus
	sched   *scheduler.Scheduler
}

// buildEngine wires the full collaborator graph from a config file path
// (may be empty, falling back to defaults) and a data directory.
func buildEngine(logger *zap.Logger, configPath, dataDir string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(logger, dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	providers := make(map[string]marketdata.Provider, len(cfg.ProviderPriorities))
	budgets := make(map[string]int, len(cfg.ProviderPriorities))
	for _, name := range cfg.ProviderPriorities {
		providers[name] = marketdata.NewHTTPProvider(name, providerBaseURL(name), logger)
		budgets[name] = defaultProviderBudget
	}
	facade := marketdata.New(marketdata.Config{
		ProviderPriorities: cfg.ProviderPriorities,
		CacheTTLs:          cfg.CacheTTLs,
		MaxConcurrentFetch: cfg.WorkerConcurrency,
	}, providers, budgets, logger)

	// The Broker port is paper-trading only per spec.md §6; a live venue
	// adapter would satisfy the same broker.Broker interface and slot in
	// here without any scheduler/executor change.
	brk := broker.NewPaperBroker(decimal.NewFromInt(100000), facadePriceSource{facade}, logger)

	bus := events.NewEventBus(logger, events.DefaultEventBusConfig())
	if err := bus.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("starting event bus: %w", err)
	}

	handler := failure.NewHandler(brk, types.DefaultKillSwitchConfig(), logger).WithEventBus(bus)

	brokers := func(ctx context.Context, u types.User) (broker.Broker, error) { return brk, nil }
	sched := scheduler.New(logger, cfg, st, facade, handler, bus, brokers)

	return &engine{logger: logger, cfg: cfg, store: st, facade: facade, broker: brk, handler: handler, bus: bus, sched: sched}, nil
}

// facadePriceSource adapts the Market-Data Facade to the paper
// broker's PriceSource port, so fills happen at the same quote the
// rest of the engine sees rather than a second independent feed.
type facadePriceSource struct{ facade *marketdata.Facade }

func (f facadePriceSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	q, err := f.facade.Quote(ctx, ticker)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return q.Price, nil
}

// newService wraps the engine's Scheduler in the cron-driven Service
// for the `scheduler` and `beat` commands.
func (e *engine) newService() (*scheduler.Service, error) {
	return scheduler.NewService(e.sched, e.logger, e.cfg.WindowStartHHMM, e.cfg.Timezone, e.cfg.WindowLength)
}

func providerBaseURL(name string) string {
	if v := os.Getenv("SYMPHONY_PROVIDER_" + name + "_URL"); v != "" {
		return v
	}
	return "https://" + name + ".example.com"
}
