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

// Package trading holds cross-cutting trade bookkeeping types shared by
// the optimizer, swapper, and engine: cost breakdowns and fill records.
package trading

import (
	"time"

	"github.com/blinklabs-io/shai/internal/micro"
	"github.com/blinklabs-io/shai/internal/optimizer"
	"github.com/blinklabs-io/shai/internal/poolstate"
)

// Costs is the expected-cost breakdown for one trade, always expressed in
// base-asset units regardless of trade direction, matching the Python
// prototype's to_mualgo_basis normalization.
type Costs struct {
	QuadraticImpact float64
	LinearImpact    float64
	Fee             float64
}

// Total sums the cost components.
func (c Costs) Total() float64 {
	return c.QuadraticImpact + c.LinearImpact + c.Fee
}

// FromOptimizer converts an optimizer.TradeCosts plus the fixed fee paid
// into a base-denominated Costs value.
func FromOptimizer(oc optimizer.TradeCosts, fee float64) Costs {
	return Costs{
		QuadraticImpact: oc.QuadraticImpactCost,
		LinearImpact:    oc.LinearImpactCost,
		Fee:             fee,
	}
}

// Fill is one executed (or simulated) trade, recorded for the TradeLogger
// callback and for post-hoc PnL accounting.
type Fill struct {
	Time      time.Time
	Pair      poolstate.PairKey
	Direction optimizer.Direction
	AmountOut micro.Amount
	AmountIn  micro.Amount
	Costs     Costs
	Excess    micro.Amount // non-zero when redemption returned leftover input
}
