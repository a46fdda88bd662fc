// Package scheduler implements the Daily Scheduler (C9, spec.md §4.9):
// it drives one rebalance window end to end, fanning out eligible
// symphonies onto a bounded worker pool adapted from internal/workers,
// and wires the wall-clock T-5/T/T+10 sequence on top of robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/arbiter"
	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/internal/evaluator"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/execution"
	"github.com/atlas-desktop/trading-backend/internal/failure"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/internal/planner"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/internal/tree"
	"github.com/atlas-desktop/trading-backend/internal/workers"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// defaultMetricWindow bounds how much history Indicators fetches per
// ticker when a manifest's own per-requirement windows aren't threaded
// through individually; it comfortably covers every metric window the
// tree package allows (spec.md §4.3 bounds these to <= 252).
const defaultMetricWindow = 252

// BrokerFactory returns (creating if needed) the broker connection for
// a user. Kept as an injected function so tests and a real deployment
// can both supply their own venue without the scheduler knowing which.
type BrokerFactory func(ctx context.Context, user types.User) (broker.Broker, error)

// Scheduler owns one rebalance window's worth of orchestration: the
// control flow named in spec.md §4.9's numbered sequence.
type Scheduler struct {
	logger  *zap.Logger
	cfg     types.EngineConfig
	store   *store.Store
	facade  *marketdata.Facade
	handler *failure.Handler
	bus     *events.EventBus
	brokers BrokerFactory

	lastMu       sync.Mutex
	lastAsOf     time.Time
	lastWindowOK bool
}

// New wires a Scheduler from its already-constructed collaborators.
func New(logger *zap.Logger, cfg types.EngineConfig, st *store.Store, facade *marketdata.Facade, handler *failure.Handler, bus *events.EventBus, brokers BrokerFactory) *Scheduler {
	return &Scheduler{logger: logger, cfg: cfg, store: st, facade: facade, handler: handler, bus: bus, brokers: brokers}
}

// WindowResult summarizes one RunWindow call for CLI/operator reporting.
type WindowResult struct {
	Attempted int
	Succeeded int
	Skipped   int
	Failed    int
}

// RunWindow executes spec.md §4.9's steps 1-5 for asOf, a single wall-
// clock trigger. It is deadline-bound: no new symphony dispatch begins
// once deadline is reached, and in-flight executors stop submitting
// new orders at (deadline - 30s) per the Trade Executor's own rule.
func (s *Scheduler) RunWindow(ctx context.Context, asOf time.Time, deadline time.Time) (*WindowResult, error) {
	windowStart := time.Now()
	defer func() {
		metrics.WindowDuration.Observe(time.Since(windowStart).Seconds())
	}()

	s.handler.ResetWindow()

	active := s.store.Symphonies.ListActive()
	eligibleOwners := make(map[string]bool)
	for _, u := range s.store.Users.ListWithBrokerCreds() {
		eligibleOwners[u.ID] = true
	}

	var candidates []types.Symphony
	for _, sym := range active {
		if eligibleOwners[sym.OwnerID] {
			candidates = append(candidates, sym)
		}
	}

	// Step 1 (T-5): warm the cache for the ticker union across every
	// candidate symphony. Warmup failures are logged, never fatal.
	s.warmupTickers(ctx, candidates, asOf)

	result := &WindowResult{}
	batchSize := s.cfg.WorkerConcurrency
	if batchSize <= 0 {
		batchSize = 8
	}

	pool := workers.NewPool(s.logger, &workers.PoolConfig{
		Name:            "scheduler",
		NumWorkers:      batchSize,
		QueueSize:       len(candidates) + 1,
		TaskTimeout:     s.cfg.SymphonyHardTimeout,
		ShutdownTimeout: 30 * time.Second,
		PanicRecovery:   true,
	})
	pool.Start()
	defer pool.Stop()
	batcher := workers.NewBatchProcessor(pool, batchSize)

	items := make([]interface{}, len(candidates))
	for i, sym := range candidates {
		items[i] = sym
	}

	_ = batcher.ProcessBatch(items, func(item interface{}) error {
		if time.Now().After(deadline) {
			result.Skipped++
			return nil
		}
		sym := item.(types.Symphony)
		result.Attempted++
		outcome, err := s.runSymphony(ctx, sym, asOf, deadline)
		if err != nil {
			result.Failed++
			metrics.SymphonyEvaluations.WithLabelValues("eval_error").Inc()
			s.handler.Handle(ctx, sym.ID, sym.OwnerID, err)
			return err
		}
		if outcome == outcomeSkipped {
			result.Skipped++
			metrics.SymphonyEvaluations.WithLabelValues("skipped").Inc()
		} else {
			result.Succeeded++
			metrics.SymphonyEvaluations.WithLabelValues("ok").Inc()
		}
		return nil
	})

	s.lastMu.Lock()
	s.lastAsOf = asOf
	s.lastWindowOK = result.Failed == 0
	s.lastMu.Unlock()

	return result, nil
}

// LastWindowResult reports the as-of time and success flag of the most
// recently completed RunWindow, for the /healthz liveness endpoint.
func (s *Scheduler) LastWindowResult() (ok bool, asOf time.Time) {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastWindowOK, s.lastAsOf
}

// ReconcilePositions runs the post-window reconciliation pass (the
// tail of runSymphony, step 5 of spec.md §4.9) on demand for every
// active, broker-eligible symphony, for the `reconcile-positions`
// operator command.
func (s *Scheduler) ReconcilePositions(ctx context.Context) error {
	asOf := time.Now()
	for _, sym := range s.store.Symphonies.ListActive() {
		user, ok := s.store.Users.Get(sym.OwnerID)
		if !ok || !user.HasBrokerCreds {
			continue
		}
		brk, err := s.brokers(ctx, user)
		if err != nil {
			s.logger.Error("reconcile-positions: acquire broker failed", zap.String("symphony", sym.ID), zap.Error(err))
			continue
		}
		s.reconcile(ctx, brk, sym.ID, sym.OwnerID, asOf)
	}
	return nil
}

type symphonyOutcome int

const (
	outcomeExecuted symphonyOutcome = iota
	outcomeSkipped
)

// runSymphony carries one symphony strictly sequentially through
// fetch -> evaluate -> plan -> submit -> poll (spec.md §5 "Ordering
// guarantees"). It never panics; every failure is a returned error for
// RunWindow to route through the Failure Handler.
func (s *Scheduler) runSymphony(ctx context.Context, sym types.Symphony, asOf, deadline time.Time) (symphonyOutcome, error) {
	root, err := tree.Parse(sym.TreeJSON)
	if err != nil {
		return outcomeSkipped, engineerr.Wrap(engineerr.KindEvalError, "parse symphony tree", err)
	}
	if err := tree.Validate(root); err != nil {
		return outcomeSkipped, err
	}

	positions := s.store.Positions.ListBySymphony(sym.ID)
	positionPtrs := make([]*types.Position, len(positions))
	for i := range positions {
		positionPtrs[i] = &positions[i]
	}

	eligible, reason := arbiter.Decide(&sym, positionPtrs, asOf)
	s.logger.Info("eligibility decision", zap.String("symphony", sym.ID), zap.Bool("eligible", eligible), zap.String("reason", reason))
	if !eligible {
		return outcomeSkipped, nil
	}

	dataCtx, err := s.buildDataContext(ctx, root, asOf)
	if err != nil {
		return outcomeSkipped, err
	}

	evalResult, err := evaluator.Evaluate(root, dataCtx, evaluator.DefaultAllocationConstraint())
	if err != nil {
		return outcomeSkipped, engineerr.Wrap(engineerr.KindEvalError, "evaluate symphony", err)
	}

	brk, err := s.brokers(ctx, types.User{ID: sym.OwnerID, HasBrokerCreds: true})
	if err != nil {
		return outcomeSkipped, engineerr.Wrap(engineerr.KindBrokerUnreachable, "acquire broker connection", err)
	}

	account, err := brk.Account(ctx)
	if err != nil {
		return outcomeSkipped, engineerr.Wrap(engineerr.KindBrokerUnreachable, "fetch account", err)
	}
	brokerPositions, err := brk.ListPositions(ctx)
	if err != nil {
		return outcomeSkipped, engineerr.Wrap(engineerr.KindBrokerUnreachable, "fetch broker positions", err)
	}

	plannerPositions := make([]planner.Position, len(brokerPositions))
	for i, p := range brokerPositions {
		plannerPositions[i] = planner.Position{Ticker: p.Ticker, Quantity: p.Quantity, Price: p.CurrentPrice}
	}

	referencePrices := make(map[string]decimal.Decimal, len(evalResult.Weights))
	for ticker := range evalResult.Weights {
		if ticker == "cash" {
			continue
		}
		snap, ok := dataCtx.Snapshot(ticker)
		if !ok {
			return outcomeSkipped, engineerr.New(engineerr.KindDataUnavailable, fmt.Sprintf("no reference price for %s", ticker))
		}
		referencePrices[ticker] = snap.CurrentPrice
	}

	intents := planner.Plan(account.Equity, plannerPositions, evalResult.Weights, referencePrices, account.BuyingPower, s.cfg.MinOrderDollars)

	executor := execution.NewSymphonyExecutor(brk, s.logger, time.Second).WithEventBus(s.bus)
	execResult, err := executor.Run(ctx, sym.ID, intents, deadline)
	if err != nil {
		return outcomeExecuted, err
	}

	for ticker, pos := range execResult.UpdatedPositions {
		pos.UserID = sym.OwnerID
		pos.SymphonyID = sym.ID
		pos.Ticker = ticker
		if err := s.store.Positions.Upsert(pos); err != nil {
			s.logger.Error("persist position failed", zap.Error(err))
		}
	}
	for _, order := range execResult.Orders {
		if order.FilledQty.IsZero() {
			continue
		}
		s.appendTrade(sym.ID, order)
	}

	sym.LastExecutedAt = asOf
	sym.ExecutionCount++
	sym.LastTargets = evalResult.Weights
	if len(execResult.PartialFailures) > 0 {
		sym.LastError = execResult.PartialFailures[0]
	} else {
		sym.LastError = ""
	}
	if err := s.store.Symphonies.Put(sym); err != nil {
		s.logger.Error("persist symphony failed", zap.Error(err))
	}

	s.reconcile(ctx, brk, sym.ID, sym.OwnerID, asOf)

	return outcomeExecuted, nil
}

// reconcile is spec.md §4.9 step 5's post-window pass: the broker's
// position list is authoritative, so any divergence from what was
// just persisted is repaired in favor of the broker, logged as a
// ReconcileDivergence, and a PerformanceMetrics row is appended from
// the reconciled state.
func (s *Scheduler) reconcile(ctx context.Context, brk broker.Broker, symphonyID, userID string, asOf time.Time) {
	brokerPositions, err := brk.ListPositions(ctx)
	if err != nil {
		s.logger.Error("reconcile: fetch broker positions failed", zap.Error(err))
		return
	}

	persisted := s.store.Positions.ListBySymphony(symphonyID)
	persistedByTicker := make(map[string]types.Position, len(persisted))
	for _, p := range persisted {
		persistedByTicker[p.Ticker] = p
	}

	reconciled := make([]types.Position, 0, len(brokerPositions))
	diverged := false
	for _, bp := range brokerPositions {
		local, ok := persistedByTicker[bp.Ticker]
		if !ok || !local.Quantity.Equal(bp.Quantity) {
			diverged = true
		}
		reconciled = append(reconciled, types.Position{
			UserID: userID, SymphonyID: symphonyID, Ticker: bp.Ticker,
			Quantity: bp.Quantity, AverageCost: bp.AvgEntryPrice,
			LastMark: bp.CurrentPrice, CostBasis: bp.AvgEntryPrice.Mul(bp.Quantity),
			UpdatedAt: asOf,
		})
	}
	if len(brokerPositions) != len(persisted) {
		diverged = true
	}

	if diverged {
		divErr := engineerr.New(engineerr.KindReconcileDivergence, fmt.Sprintf("symphony %s: broker/local position mismatch repaired", symphonyID))
		s.logger.Warn("reconcile divergence repaired", zap.String("symphony", symphonyID), zap.Error(divErr))
	}
	if err := s.store.Positions.ReplaceAll(symphonyID, reconciled); err != nil {
		s.logger.Error("reconcile: persist repaired positions failed", zap.Error(err))
	}

	s.recordPerformance(symphonyID, reconciled, asOf)
}

// recordPerformance derives a PerformanceMetrics row from the
// reconciled position set. Return is unrealized P&L over cost basis;
// the Sharpe/drawdown fields require a return series this single
// window doesn't carry and are left zero until a backtesting
// component can populate them from Trades history.
func (s *Scheduler) recordPerformance(symphonyID string, positions []types.Position, asOf time.Time) {
	costBasis := decimal.Zero
	marketValue := decimal.Zero
	for _, p := range positions {
		costBasis = costBasis.Add(p.CostBasis)
		marketValue = marketValue.Add(p.Quantity.Mul(p.LastMark))
	}

	metric := types.PerformanceMetrics{SymphonyID: symphonyID, AsOf: asOf}
	if costBasis.IsPositive() {
		metric.TotalReturn = marketValue.Sub(costBasis).Div(costBasis)
	}
	if err := s.store.Performance.Append(metric); err != nil {
		s.logger.Error("persist performance metrics failed", zap.Error(err))
	}
}

func (s *Scheduler) appendTrade(symphonyID string, order types.Order) {
	t := types.Trade{
		ID:         order.BrokerOrderID,
		OrderID:    order.BrokerOrderID,
		SymphonyID: symphonyID,
		Ticker:     order.Ticker,
		Side:       order.Side,
		Quantity:   order.FilledQty,
		Price:      order.AvgFillPrice,
		ExecutedAt: time.Now(),
	}
	if order.FilledAt != nil {
		t.ExecutedAt = *order.FilledAt
	}
	if err := s.store.Trades.Append(t); err != nil {
		s.logger.Error("persist trade failed", zap.Error(err))
	}
}

// buildDataContext resolves a symphony's Requirement Manifest against
// the Market-Data Facade (spec.md §4.3/§4.4: "the evaluator never
// fetches data itself").
func (s *Scheduler) buildDataContext(ctx context.Context, root *tree.Step, asOf time.Time) (*evaluator.DataContext, error) {
	manifest := tree.BuildManifest(root)
	snapshots := make(map[string]*types.AssetSnapshot, len(manifest.Tickers))

	for _, ticker := range manifest.TickerList() {
		snap, err := s.facade.Indicators(ctx, ticker, defaultMetricWindow, asOf)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindDataUnavailable, fmt.Sprintf("indicators for %s", ticker), err)
		}
		snapshots[ticker] = snap
	}

	return &evaluator.DataContext{AsOf: asOf, Snapshots: snapshots}, nil
}

func (s *Scheduler) warmupTickers(ctx context.Context, candidates []types.Symphony, asOf time.Time) {
	union := make(map[string]bool)
	for _, sym := range candidates {
		root, err := tree.Parse(sym.TreeJSON)
		if err != nil {
			continue
		}
		for _, t := range tree.BuildManifest(root).TickerList() {
			union[t] = true
		}
	}
	tickers := make([]string, 0, len(union))
	for t := range union {
		tickers = append(tickers, t)
	}
	s.facade.Warmup(ctx, tickers, asOf)
}
