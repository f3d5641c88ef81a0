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

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/shai/internal/engine"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/swapper"
	"github.com/blinklabs-io/shai/internal/trading"
)

var testPair = poolstate.PairKey{ReserveAssetID: 1, BaseAssetID: 0}

type recordingLogger struct {
	fills []trading.Fill
}

func (r *recordingLogger) LogTrade(f trading.Fill) { r.fills = append(r.fills, f) }

func newTestEngine(cfg engine.Config, logger *recordingLogger, now time.Time) *engine.Engine {
	clock := now
	return engine.New(cfg, nil, swapper.NewSimulation(), nil, logger, func() time.Time { return clock })
}

func baseConfig() engine.Config {
	return engine.Config{
		TradingStepSeconds:       60,
		MarketUpdateStepSeconds:  60,
		SyncPositionsStepSeconds: 60,
		RiskCoef:                 1e-15,
		ImpactDecaySeconds:       300,
		SlippageBps:              0,
		LagTradeLimitSeconds:     3600,
		Pairs:                    []poolstate.PairKey{testPair},
		SignalParams:             []engine.SignalParam{{TauSeconds: 60, Beta: 1.0}},
		SignalCap:                1.0,
		FeePaymentMicroUnits:     2000,
	}
}

func TestTradeTickNoOpBeforeAnyPriceUpdate(t *testing.T) {
	logger := &recordingLogger{}
	now := time.Unix(1_700_000_000, 0).UTC()
	eng := newTestEngine(baseConfig(), logger, now)

	eng.TradeTick(context.Background(), now)
	if len(logger.fills) != 0 {
		t.Fatalf("expected no trades before any market data, got %d", len(logger.fills))
	}
}

func TestTradeTickExecutesOnSignalAndUpdatesPosition(t *testing.T) {
	logger := &recordingLogger{}
	t0 := time.Unix(1_700_000_000, 0).UTC()
	eng := newTestEngine(baseConfig(), logger, t0)

	// Seed base inventory so the engine has something to sell when buying
	// the reserve asset; the engine never shorts.
	eng.Position().BasePosition = 10_000_000_000

	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1_000_000_000, BaseAmount: 1_000_000_000}, t0)
	t1 := t0.Add(30 * time.Second)
	// A sharp upward move in the reserve's price generates a large positive
	// signal, well above the fee threshold, on the very next tick.
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1030, ReserveAmount: 1_000_000_000, BaseAmount: 1_200_000_000}, t1)

	eng.TradeTick(context.Background(), t1)

	if len(logger.fills) != 1 {
		t.Fatalf("expected exactly one fill, got %d", len(logger.fills))
	}
	pos := eng.Position()
	if pos.ReservePositions[testPair] == 0 {
		t.Fatalf("expected a positive reserve position after buying the reserve asset")
	}
	if pos.BasePosition >= 10_000_000_000 {
		t.Fatalf("expected base position to decrease after selling base to fund the buy, got %d", pos.BasePosition)
	}
}

func TestTradeTickNeverSellsMoreBaseThanHeld(t *testing.T) {
	logger := &recordingLogger{}
	t0 := time.Unix(1_700_000_000, 0).UTC()
	eng := newTestEngine(baseConfig(), logger, t0)

	// No base inventory seeded: the optimizer may still want to buy the
	// reserve asset, but the sell cap of 0 must suppress the trade
	// entirely rather than short the base asset.
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1_000_000_000, BaseAmount: 1_000_000_000}, t0)
	t1 := t0.Add(30 * time.Second)
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1030, ReserveAmount: 1_000_000_000, BaseAmount: 1_200_000_000}, t1)

	eng.TradeTick(context.Background(), t1)

	if len(logger.fills) != 0 {
		t.Fatalf("expected no fill when base inventory is insufficient to fund the buy, got %d", len(logger.fills))
	}
	if eng.Position().BasePosition != 0 {
		t.Fatalf("base position must never go negative, got %d", eng.Position().BasePosition)
	}
}

// TestScenarioStaleMarketGuard reproduces the stale-market scenario: once
// the gap since the last market update exceeds LagTradeLimitSeconds, the
// next trade tick must skip every pair and emit no quotes.
func TestScenarioStaleMarketGuard(t *testing.T) {
	logger := &recordingLogger{}
	t0 := time.Unix(1_700_000_000, 0).UTC()
	cfg := baseConfig()
	cfg.LagTradeLimitSeconds = 60
	eng := newTestEngine(cfg, logger, t0)

	eng.Position().BasePosition = 10_000_000_000
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1_000_000_000, BaseAmount: 1_000_000_000}, t0)
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1030, ReserveAmount: 1_000_000_000, BaseAmount: 1_200_000_000}, t0.Add(30*time.Second))

	stale := t0.Add(100 * time.Second) // 70s since the last update at t0+30s, limit is 60s
	eng.TradeTick(context.Background(), stale)

	if len(logger.fills) != 0 {
		t.Fatalf("expected zero fills once the market is stale, got %d", len(logger.fills))
	}
}

func TestApplyPriceUpdatePanicsOnNonMonotoneTime(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on non-monotone market time")
		}
	}()
	logger := &recordingLogger{}
	t0 := time.Unix(1_700_000_000, 0).UTC()
	eng := newTestEngine(baseConfig(), logger, t0)

	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 2000, ReserveAmount: 1, BaseAmount: 1}, t0)
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1, BaseAmount: 1}, t0)
}

func TestApplyPriceUpdatePanicsOnNonIncreasingIntraBlockOrder(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on non-increasing intra-block order at equal t")
		}
	}()
	logger := &recordingLogger{}
	t0 := time.Unix(1_700_000_000, 0).UTC()
	eng := newTestEngine(baseConfig(), logger, t0)

	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1, BaseAmount: 1, IntraBlockOrder: 1}, t0)
	eng.ApplyPriceUpdate(testPair, poolstate.State{T: 1000, ReserveAmount: 1, BaseAmount: 1, IntraBlockOrder: 1}, t0)
}
