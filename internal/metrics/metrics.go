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

// Package metrics exposes the engine's Prometheus counters and gauges:
// quote/fill counts, trade-loop tick duration, and per-pair impact and
// position gauges.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesBuilt counts quotes assembled by direction, by outcome.
	QuotesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shaimm_quotes_built_total",
			Help: "Quotes assembled by direction and outcome",
		},
		[]string{"pair", "direction", "outcome"}, // outcome: filled, sell_cap_exceeded, quote_error, swap_error
	)

	// FillsTotal counts confirmed fills by pair and direction.
	FillsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shaimm_fills_total",
			Help: "Confirmed swap fills by pair and direction",
		},
		[]string{"pair", "direction"},
	)

	// FillAmountOut observes the out-leg size of every fill, in asset units.
	FillAmountOut = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shaimm_fill_amount_out",
			Help:    "Amount-out of confirmed fills",
			Buckets: prometheus.ExponentialBuckets(1, 10, 10),
		},
		[]string{"pair", "direction"},
	)

	// TradeLoopTickDuration observes one trade_loop iteration's wall time
	// across all configured pairs.
	TradeLoopTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shaimm_trade_loop_tick_seconds",
			Help:    "trade_loop iteration duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// StaleMarketSkips counts trade_loop ticks skipped for stale market data.
	StaleMarketSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shaimm_stale_market_skips_total",
			Help: "trade_loop ticks skipped because the market was stale",
		},
	)

	// PairImpact tracks the current decayed impact fraction per pair.
	PairImpact = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shaimm_pair_impact",
			Help: "Current decayed impact fraction for a pair",
		},
		[]string{"pair"},
	)

	// PairReservePosition tracks held reserve-asset inventory per pair.
	PairReservePosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shaimm_pair_reserve_position",
			Help: "Held reserve-asset position for a pair",
		},
		[]string{"pair"},
	)

	// BasePosition tracks the engine's global base-asset balance.
	BasePosition = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shaimm_base_position",
			Help: "Global base-asset balance",
		},
	)
)

// Timer measures an elapsed duration and reports it to a histogram on
// Observe, mirroring the stopwatch helper pattern used elsewhere in the
// ecosystem for ad hoc latency tracking.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Observe records the elapsed time since NewTimer on histogram.
func (t Timer) Observe(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}
