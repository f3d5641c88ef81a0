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

// Package simulator drives the engine's trade logic against a
// pre-recorded sequence of price updates instead of live market data,
// producing deterministic, reproducible backtests.
package simulator

import (
	"context"
	"time"

	"github.com/blinklabs-io/shai/internal/engine"
	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/poolstate"
)

// DefaultStepSeconds is T_sim, the granularity at which simulated time
// advances between price observations.
const DefaultStepSeconds = 5 * 60

// DefaultSeedDuration is the warm-up period during which prices and
// signals are observed but no trade_loop tick fires.
const DefaultSeedDuration = 24 * time.Hour

// PriceUpdate is one entry of a replay file: a pool-state observation for
// one pair at a point in simulated time, in monotone (t, intra_block_order)
// order across the whole sequence.
type PriceUpdate struct {
	Pair            poolstate.PairKey
	T               int64
	ReserveAmount   uint64
	BaseAmount      uint64
	IntraBlockOrder uint16
}

// Simulator replays a PriceUpdate sequence through an *engine.Engine,
// advancing simulated time in fixed increments and invoking the engine's
// own trade tick once past the seed window — the same mutation functions
// the live Engine uses, driven by a synthetic clock instead of a ticker.
type Simulator struct {
	Engine      *engine.Engine
	StepSeconds int
	SeedTime    time.Duration
}

// New constructs a Simulator over eng. stepSeconds and seedTime default to
// DefaultStepSeconds/DefaultSeedDuration when zero.
func New(eng *engine.Engine, stepSeconds int, seedTime time.Duration) *Simulator {
	if stepSeconds == 0 {
		stepSeconds = DefaultStepSeconds
	}
	if seedTime == 0 {
		seedTime = DefaultSeedDuration
	}
	return &Simulator{Engine: eng, StepSeconds: stepSeconds, SeedTime: seedTime}
}

// Run replays updates in order, advancing the engine's simulated clock in
// StepSeconds increments and invoking a trade tick at every increment once
// past SeedTime: advance first, then apply. The first update later than
// endTime is not applied (the clock still advances toward it) and ends
// the run.
func (s *Simulator) Run(ctx context.Context, updates []PriceUpdate, endTime time.Time) {
	logger := logging.GetLogger()

	if len(updates) == 0 {
		return
	}

	step := time.Duration(s.StepSeconds) * time.Second

	var currentTime, initialTime time.Time
	haveTime := false

	for _, u := range updates {
		t := time.Unix(u.T, 0).UTC()

		if !haveTime {
			initialTime = t
			currentTime = t
			haveTime = true
		}

		if t.Before(currentTime) {
			logger.Warn("simulator: out-of-order price update", "t", u.T, "current", currentTime.Unix())
			continue
		}

		for t.Sub(currentTime) > step {
			currentTime = currentTime.Add(step)
			if currentTime.Sub(initialTime) > s.SeedTime {
				logger.Debug("simulator: trade tick", "t", currentTime.Unix())
				s.Engine.TradeTick(ctx, currentTime)
			} else {
				logger.Debug("simulator: seeding", "t", currentTime.Unix())
			}
		}

		if t.After(endTime) {
			return
		}

		s.Engine.ApplyPriceUpdate(u.Pair, poolstate.State{
			T:               u.T,
			ReserveAmount:   u.ReserveAmount,
			BaseAmount:      u.BaseAmount,
			IntraBlockOrder: u.IntraBlockOrder,
		}, t)
	}
}
