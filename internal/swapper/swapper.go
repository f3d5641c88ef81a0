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

// Package swapper executes an optimizer.Swap decision: either against a
// real venue (Production) or by reporting the quote as filled without any
// venue (Simulation). In both cases the engine applies the fill to its
// own state.
package swapper

import (
	"context"
	"time"

	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/micro"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/trading"
	"github.com/blinklabs-io/shai/internal/venue"
)

// Clock abstracts wall-clock time so Simulation can be driven by a fake.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// TimedQuote is a venue.Quote captured at decision time, plus the
// reserves the optimizer observed when it produced the swap — used to
// detect and log reserve drift before submission.
type TimedQuote struct {
	Time            time.Time
	Quote           venue.Quote
	ReservesAtOptim venue.PoolReserves
}

// Result is the outcome of attempting a swap: nil Fill means the
// transaction was not attempted or was rejected.
type Result struct {
	Fill *trading.Fill
	Time time.Time
}

// Swapper is implemented by Production and Simulation.
type Swapper interface {
	AttemptSwap(ctx context.Context, tq TimedQuote, costs trading.Costs) (Result, error)
	FetchExcessAmounts(ctx context.Context, pair poolstate.PairKey, reservePrice float64) (trading.Fill, error)
}

// Production submits real quotes to a venue, warning (not failing) when
// reserves have drifted since the quote was optimized, matching
// ProductionSwapper.attempt_transaction's refresh-and-warn behavior.
type Production struct {
	Venue         venue.Venue
	RefreshPrices bool
	clock         Clock
}

// NewProduction constructs a Production swapper.
func NewProduction(v venue.Venue, refreshPrices bool) *Production {
	return &Production{Venue: v, RefreshPrices: refreshPrices, clock: systemClock{}}
}

func (p *Production) AttemptSwap(ctx context.Context, tq TimedQuote, costs trading.Costs) (Result, error) {
	logger := logging.GetLogger()

	if p.RefreshPrices {
		current, err := p.Venue.FetchReserves(ctx, tq.Quote.Pair)
		if err == nil && (current.ReserveAmount != tq.ReservesAtOptim.ReserveAmount || current.BaseAmount != tq.ReservesAtOptim.BaseAmount) {
			logger.Warn("reserves drifted since optimization",
				"pair", tq.Quote.Pair.String(),
				"at_optim_reserve", tq.ReservesAtOptim.ReserveAmount,
				"at_optim_base", tq.ReservesAtOptim.BaseAmount,
				"current_reserve", current.ReserveAmount,
				"current_base", current.BaseAmount,
			)
		}
	}

	signed, err := p.Venue.Sign(tq.Quote)
	if err != nil {
		return Result{}, err
	}
	submitResult, err := p.Venue.Submit(ctx, signed)
	if err != nil {
		return Result{}, err
	}

	now := p.clock.Now()
	fill := &trading.Fill{
		Time:      now,
		Pair:      tq.Quote.Pair,
		Direction: tq.Quote.Direction,
		AmountOut: submitResult.AmountOut,
		AmountIn:  submitResult.AmountIn,
		Costs:     costs,
	}
	return Result{Fill: fill, Time: now}, nil
}

func (p *Production) FetchExcessAmounts(ctx context.Context, pair poolstate.PairKey, reservePrice float64) (trading.Fill, error) {
	logger := logging.GetLogger()
	logger.Debug("fetching excess amounts", "pair", pair.String())

	redeemed, err := p.Venue.FetchExcess(ctx, pair, reservePrice)
	if err != nil {
		return trading.Fill{}, err
	}
	return trading.Fill{
		Time:      p.clock.Now(),
		Pair:      pair,
		AmountOut: redeemed.ReserveAmount,
		AmountIn:  redeemed.BaseAmount,
		Excess:    redeemed.ReserveAmount + micro.Amount(float64(redeemed.BaseAmount)/reservePrice),
	}, nil
}

// Simulation never touches a venue: it reports the quote as filled
// exactly as optimized, at the time already carried on the quote. Mirrors
// SimulationSwapper.attempt_transaction's direct passthrough.
type Simulation struct{}

// NewSimulation constructs a Simulation swapper.
func NewSimulation() *Simulation { return &Simulation{} }

func (s *Simulation) AttemptSwap(ctx context.Context, tq TimedQuote, costs trading.Costs) (Result, error) {
	fill := &trading.Fill{
		Time:      tq.Time,
		Pair:      tq.Quote.Pair,
		Direction: tq.Quote.Direction,
		AmountOut: tq.Quote.AmountOut,
		AmountIn:  tq.Quote.AmountIn,
		Costs:     costs,
	}
	return Result{Fill: fill, Time: tq.Time}, nil
}

func (s *Simulation) FetchExcessAmounts(ctx context.Context, pair poolstate.PairKey, reservePrice float64) (trading.Fill, error) {
	return trading.Fill{}, nil
}
