// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine runs the three cooperative trading tasks — market_update,
// trade_loop, sync_positions — against a shared, mutex-guarded view of
// reserves, impact, position, and signal state.
package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/blinklabs-io/shai/internal/impact"
	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/metrics"
	"github.com/blinklabs-io/shai/internal/micro"
	"github.com/blinklabs-io/shai/internal/optimizer"
	"github.com/blinklabs-io/shai/internal/persistence"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/position"
	"github.com/blinklabs-io/shai/internal/pricevolumestream"
	"github.com/blinklabs-io/shai/internal/shaierrors"
	"github.com/blinklabs-io/shai/internal/signalprovider"
	"github.com/blinklabs-io/shai/internal/swapper"
	"github.com/blinklabs-io/shai/internal/trading"
	"github.com/blinklabs-io/shai/internal/venue"
)

// SignalParam configures one component of a pair's EMA-residual signal.
// The shared clamp cap is Config.SignalCap.
type SignalParam struct {
	TauSeconds float64
	Beta       float64
}

// Config holds the engine's tunable trading parameters.
type Config struct {
	TradingStepSeconds       int
	MarketUpdateStepSeconds  int
	SyncPositionsStepSeconds int
	RiskCoef                 float64
	ImpactDecaySeconds       uint32
	SlippageBps              float64
	LagTradeLimitSeconds     int
	Pairs                    []poolstate.PairKey
	SignalParams             []SignalParam
	SignalCap                float64
	FeePaymentMicroUnits     uint64
}

// TradeLogger receives a structured record of every filled trade.
type TradeLogger interface {
	LogTrade(trading.Fill)
}

// pairState is the engine's per-pair mutable state, guarded by stateMu.
type pairState struct {
	reserve micro.Amount
	base    micro.Amount
	t       int64
	order   uint16

	impact *impact.State
	signal signalprovider.Provider

	hasT       bool
	lastUpdate time.Time
}

// Engine owns one Position and one impact/signal map per pair, and drives
// the three cooperative tasks from a single injectable clock so Simulator
// can substitute a synthetic one.
type Engine struct {
	cfg     Config
	now     func() time.Time
	stream  *pricevolumestream.Stream
	opt     *optimizer.Optimizer
	swapper swapper.Swapper
	venue   venue.Venue // nil in simulation: quotes are built locally
	logger  TradeLogger

	stateMu sync.Mutex
	pairs   map[poolstate.PairKey]*pairState
	pos     *position.Global

	lastMarketStateUpdate time.Time

	persist *persistence.Store
}

// SetPersistence attaches a checkpoint store. Once attached, every
// applied market-state update checkpoints its pair and every
// sync_positions tick checkpoints the full inventory. The engine only
// writes checkpoints; it does not read them back at startup. Passing nil
// (the default) disables checkpointing entirely.
func (e *Engine) SetPersistence(store *persistence.Store) {
	e.persist = store
}

// New constructs an Engine. venue may be nil (simulation mode); nowFn
// defaults to time.Now when nil.
func New(cfg Config, stream *pricevolumestream.Stream, sw swapper.Swapper, v venue.Venue, logger TradeLogger, nowFn func() time.Time) *Engine {
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	e := &Engine{
		cfg:     cfg,
		now:     nowFn,
		stream:  stream,
		opt:     optimizer.New(cfg.RiskCoef),
		swapper: sw,
		venue:   v,
		logger:  logger,
		pairs:   make(map[poolstate.PairKey]*pairState),
		pos:     position.New(),
	}
	components := make([]signalprovider.Component, len(cfg.SignalParams))
	for i, p := range cfg.SignalParams {
		components[i] = signalprovider.Component{TauSeconds: p.TauSeconds, Beta: p.Beta}
	}
	for _, pair := range cfg.Pairs {
		e.pairs[pair] = &pairState{
			impact: impact.New(cfg.ImpactDecaySeconds),
			signal: signalprovider.NewEMAResidual(components, cfg.SignalCap),
		}
	}
	return e
}

// Run blocks, driving all three tasks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); e.runMarketUpdate(ctx) }()
	go func() { defer wg.Done(); e.runTradeLoop(ctx) }()
	go func() { defer wg.Done(); e.runSyncPositions(ctx) }()
	wg.Wait()
}

func (e *Engine) runMarketUpdate(ctx context.Context) {
	step := time.Duration(e.cfg.MarketUpdateStepSeconds) * time.Second
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.syncMarketState(ctx)
		}
	}
}

// syncMarketState drains the price stream and applies every update,
// asserting per-pair monotone time.
func (e *Engine) syncMarketState(ctx context.Context) {
	logger := logging.GetLogger()

	updates, err := e.stream.Drain(ctx, e.now())
	if err != nil {
		logger.Warn("market update drain failed", "error", err)
		return
	}

	at := e.now()
	e.stateMu.Lock()
	for _, u := range updates {
		if u.Kind != poolstate.KindState {
			// Swap events inform reconstruction upstream; the engine's own
			// position accounting only reacts to its own fills.
			continue
		}
		e.applyStateUpdateLocked(u.Pair, u.State, at)
	}
	e.lastMarketStateUpdate = at
	e.stateMu.Unlock()
}

// applyStateUpdateLocked applies one PoolState observation to pair's
// tracked state, asserting monotone (t, intra_block_order). Callers must
// hold stateMu. Shared by syncMarketState and Simulator's direct replay so
// both paths mutate state through identical code.
func (e *Engine) applyStateUpdateLocked(pair poolstate.PairKey, state poolstate.State, at time.Time) {
	ps, ok := e.pairs[pair]
	if !ok {
		return
	}
	if ps.hasT {
		if state.T < ps.t {
			shaierrors.Invariant("engine: non-monotone market time for pair %s: %d < %d", pair, state.T, ps.t)
		}
		if state.T == ps.t && state.IntraBlockOrder <= ps.order {
			shaierrors.Invariant("engine: non-increasing intra-block order for pair %s at t=%d", pair, state.T)
		}
	}
	ps.reserve = micro.Amount(state.ReserveAmount)
	ps.base = micro.Amount(state.BaseAmount)
	ps.t = state.T
	ps.order = state.IntraBlockOrder
	ps.hasT = true
	ps.lastUpdate = at
	ps.signal.Update(time.Unix(state.T, 0).UTC(), state.Price())

	if e.persist != nil {
		cp := persistence.Checkpoint{T: state.T, IntraBlockOrder: state.IntraBlockOrder}
		if err := e.persist.SaveCheckpoint(pair, cp); err != nil {
			logging.GetLogger().Warn("checkpoint save failed", "pair", pair.String(), "error", err)
		}
	}
}

// ApplyPriceUpdate feeds one PoolState observation directly, bypassing the
// price stream. Used by the Simulator, which replays a pre-recorded
// sequence instead of pulling from a live indexer.
func (e *Engine) ApplyPriceUpdate(pair poolstate.PairKey, state poolstate.State, at time.Time) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	e.applyStateUpdateLocked(pair, state, at)
	e.lastMarketStateUpdate = at
}

func (e *Engine) runTradeLoop(ctx context.Context) {
	step := time.Duration(e.cfg.TradingStepSeconds) * time.Second
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.TradeTick(ctx, e.now())
		}
	}
}

// TradeTick runs one trade_loop iteration at the given time, exported so
// Simulator can drive it from synthetic time instead of a wall-clock
// ticker, exercising the identical code path as the live Engine.
func (e *Engine) TradeTick(ctx context.Context, now time.Time) {
	logger := logging.GetLogger()
	timer := metrics.NewTimer()
	defer timer.Observe(metrics.TradeLoopTickDuration)

	logger.Debug("trade loop tick", "base_position", e.pos.BasePosition)
	metrics.BasePosition.Set(float64(e.pos.BasePosition))

	e.stateMu.Lock()
	globallyStale := !e.lastMarketStateUpdate.IsZero() && now.Sub(e.lastMarketStateUpdate) > time.Duration(e.cfg.LagTradeLimitSeconds)*time.Second
	e.stateMu.Unlock()

	if globallyStale {
		logger.Warn("stale market, skipping trade loop")
		metrics.StaleMarketSkips.Inc()
		return
	}

	for pair := range e.pairs {
		e.tryTradePair(ctx, pair, now)
	}
}

func (e *Engine) tryTradePair(ctx context.Context, pair poolstate.PairKey, now time.Time) {
	logger := logging.GetLogger()

	e.stateMu.Lock()
	ps, ok := e.pairs[pair]
	if !ok || ps.lastUpdate.IsZero() {
		e.stateMu.Unlock()
		return
	}
	signalValue := ps.signal.Value()
	impactValue := ps.impact.Value(now)
	reserve, base := ps.reserve, ps.base
	reservePosition := e.pos.Reserve(pair)
	e.stateMu.Unlock()

	swap := e.opt.OptimalSwap(signalValue, impactValue, uint64(reservePosition), uint64(reserve), uint64(base))
	if swap == nil {
		return
	}

	var rIn, rOut uint64
	var sellCap uint64
	if swap.Direction == optimizer.DirectionBuyReserve {
		rIn, rOut = uint64(base), uint64(reserve)
		sellCap = uint64(e.pos.BasePosition)
	} else {
		rIn, rOut = uint64(reserve), uint64(base)
		sellCap = uint64(reservePosition)
	}
	if uint64(swap.Buy.Amount) > rOut {
		shaierrors.Invariant("engine: optimizer quote %d exceeds reserves %d for pair %s", swap.Buy.Amount, rOut, pair)
	}

	dirLabel := swap.Direction.String()

	q, err := e.buildQuote(ctx, pair, swap.Direction, rIn, rOut, uint64(swap.Buy.Amount), sellCap)
	if err != nil {
		logger.Warn("quote assembly failed", "pair", pair.String(), "error", err)
		metrics.QuotesBuilt.WithLabelValues(pair.String(), dirLabel, "quote_error").Inc()
		return
	}
	if uint64(q.AmountIn) > sellCap {
		logger.Debug("quote exceeds sell cap, skipping", "pair", pair.String())
		metrics.QuotesBuilt.WithLabelValues(pair.String(), dirLabel, "sell_cap_exceeded").Inc()
		return
	}

	tq := swapper.TimedQuote{
		Time:            now,
		Quote:           q,
		ReservesAtOptim: venue.PoolReserves{ReserveAmount: reserve, BaseAmount: base},
	}
	costs := trading.FromOptimizer(swap.Costs, e.fixedFeeBase())

	result, err := e.swapper.AttemptSwap(ctx, tq, costs)
	if err != nil {
		logger.Error("swap attempt failed", "pair", pair.String(), "error", err)
		metrics.QuotesBuilt.WithLabelValues(pair.String(), dirLabel, "swap_error").Inc()
		return
	}
	if result.Fill == nil {
		return
	}

	metrics.QuotesBuilt.WithLabelValues(pair.String(), dirLabel, "filled").Inc()
	metrics.FillsTotal.WithLabelValues(pair.String(), dirLabel).Inc()
	metrics.FillAmountOut.WithLabelValues(pair.String(), dirLabel).Observe(float64(result.Fill.AmountOut))

	e.applyFill(pair, *result.Fill)
	if e.logger != nil {
		e.logger.LogTrade(*result.Fill)
	}
}

// buildQuote assembles a fixed-output quote: delegate to the venue when
// present (production), otherwise compute locally from the tracked
// reserves (simulation) using the same optimizer.QuoteAmounts math.
func (e *Engine) buildQuote(ctx context.Context, pair poolstate.PairKey, dir optimizer.Direction, rIn, rOut, amountOut, sellCap uint64) (venue.Quote, error) {
	if e.venue != nil {
		return e.venue.PrepareQuote(ctx, pair, dir, micro.Amount(amountOut), micro.Amount(e.cfg.SlippageBps))
	}
	// sellCap enforcement happens at the caller via the AmountIn > sellCap
	// check, not here: truncating amountIn to the cap instead would fill a
	// smaller trade than optimized rather than rejecting it outright.
	amountIn, _ := optimizer.QuoteAmounts(rIn, rOut, amountOut, math.MaxUint64)
	slip := e.cfg.SlippageBps / 1e4
	return venue.Quote{
		Pair:             pair,
		Direction:        dir,
		AmountOut:        micro.Amount(amountOut),
		AmountIn:         micro.Amount(amountIn),
		AmountOutMinimum: micro.Amount(math.Floor(float64(amountOut) * (1 - slip))),
		AmountInMaximum:  micro.Amount(math.Ceil(float64(amountIn) * (1 + slip))),
	}, nil
}

func (e *Engine) fixedFeeBase() float64 {
	return e.opt.FixedFeeBase
}

// applyFill atomically updates impact and position for one confirmed
// fill: trade_loop never interleaves with market_update at this mutation
// boundary.
func (e *Engine) applyFill(pair poolstate.PairKey, fill trading.Fill) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	ps, ok := e.pairs[pair]
	if !ok {
		return
	}

	buyIsBase := fill.Direction == optimizer.DirectionBuyBase
	outReserves := ps.reserve
	if buyIsBase {
		outReserves = ps.base
	}
	ps.impact.Update(fill.Time, buyIsBase, uint64(fill.AmountOut), uint64(outReserves))

	e.pos.ApplySwap(pair, buyIsBase, uint64(fill.AmountOut), uint64(fill.AmountIn))

	metrics.PairImpact.WithLabelValues(pair.String()).Set(ps.impact.Value(fill.Time))
	metrics.PairReservePosition.WithLabelValues(pair.String()).Set(float64(e.pos.Reserve(pair)))
}

func (e *Engine) runSyncPositions(ctx context.Context) {
	step := time.Duration(e.cfg.SyncPositionsStepSeconds) * time.Second
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.syncPositionsTick(ctx)
		}
	}
}

func (e *Engine) syncPositionsTick(ctx context.Context) {
	logger := logging.GetLogger()
	for pair := range e.pairs {
		e.stateMu.Lock()
		ps := e.pairs[pair]
		reserve := ps.reserve
		e.stateMu.Unlock()

		reservePrice := 1.0
		if reserve > 0 {
			reservePrice = float64(ps.base) / float64(reserve)
		}

		fill, err := e.swapper.FetchExcessAmounts(ctx, pair, reservePrice)
		if err != nil {
			logger.Warn("fetch excess amounts failed", "pair", pair.String(), "error", err)
			continue
		}
		if fill.AmountOut == 0 && fill.AmountIn == 0 {
			continue
		}

		e.stateMu.Lock()
		e.pos.ApplyRedeemedExcess(pair, uint64(fill.AmountOut), uint64(fill.AmountIn))
		e.stateMu.Unlock()
	}

	if e.persist != nil {
		e.stateMu.Lock()
		snap := persistence.PositionSnapshot{
			ReservePositions: make(map[string]uint64, len(e.pos.ReservePositions)),
			BasePosition:     e.pos.BasePosition,
		}
		for pair, amount := range e.pos.ReservePositions {
			snap.ReservePositions[pair.String()] = amount
		}
		e.stateMu.Unlock()
		if err := e.persist.SavePosition(snap); err != nil {
			logger.Warn("position checkpoint save failed", "error", err)
		}
	}
}

// Position returns the engine's live global inventory (not a copy);
// callers that mutate it bypass the engine's state lock.
func (e *Engine) Position() *position.Global {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.pos
}
