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

// Package optimizer solves the per-pair constrained quadratic utility
// maximization problem and assembles the resulting swap quote.
package optimizer

import "math"

// FeeBps is the constant-product pool's proportional fee rate,
// 1000/997 - 1, matching spectrum.Pool's fee convention.
const FeeBps = 1000.0/997.0 - 1.0

// ReserveFractionCap (psi) bounds any single quote to at most 10% of the
// out-asset's reserves.
const ReserveFractionCap = 0.10

// Direction indicates which asset of the pair is bought.
type Direction int

const (
	// DirectionBuyReserve buys the reserve asset, selling base.
	DirectionBuyReserve Direction = iota
	// DirectionBuyBase buys the base asset, selling reserve.
	DirectionBuyBase
)

// String renders Direction for logging and metric labels.
func (d Direction) String() string {
	switch d {
	case DirectionBuyReserve:
		return "buy_reserve"
	case DirectionBuyBase:
		return "buy_base"
	default:
		return "unknown"
	}
}

// TradeCosts breaks a trade's expected cost into its quadratic-impact and
// linear-impact components, in the "other" (sold) asset's units, matching
// TradeCostsOther in the original implementation. The fixed fee is not
// part of it.
type TradeCosts struct {
	QuadraticImpactCost float64
	LinearImpactCost    float64
}

// Buy is an optimized trade size in the "out" (bought) asset, plus the
// largest additional slippage (in bps) that would still leave the trade
// profitable.
type Buy struct {
	Amount                  uint64
	MaxProfitableSlippageBps float64
}

// BuyInfo pairs an optimized Buy with its expected trade costs.
type BuyInfo struct {
	Buy   Buy
	Costs TradeCosts
}

// optimalAmountBuyAsset solves the single-direction problem: how much of
// the out-asset to buy given reserves (out, other), a net signal edge in
// bps, the current impact state, and risk penalties. Returns nil if no
// trade is profitable. This is the direct Go rendition of
// optimal_amount_buy_asset in the Python prototype.
func optimalAmountBuyAsset(
	signalBps, impactBps float64,
	outReserves, otherReserves uint64,
	quadraticRiskPenalty, linearRiskPenalty float64,
	fixedFeeOther float64,
	expectedSlippageBps float64,
) *BuyInfo {
	if impactBps < 0 {
		impactBps = 0
	}

	otherPrice := float64(otherReserves) / float64(outReserves)

	fBps := signalBps - impactBps - FeeBps - expectedSlippageBps - linearRiskPenalty
	if fBps < 0 {
		return nil
	}

	avgImpactCostCoef := (1 + FeeBps) / float64(outReserves)
	costCoef := avgImpactCostCoef + otherPrice*quadraticRiskPenalty

	amountArgmax := int64(fBps / (2 * costCoef))
	// The objective is concave in the amount, so the optimum under the
	// reserve fraction cap is the unconstrained argmax clamped to the cap.
	if amountCap := int64(math.Floor(ReserveFractionCap * float64(outReserves))); amountArgmax > amountCap {
		amountArgmax = amountCap
	}
	if amountArgmax <= 0 {
		return nil
	}

	// Expected profit A*p*(f - c*A) - F; at the unclamped argmax this
	// equals A*p*f/2 - F.
	maxProfitOther := float64(amountArgmax)*otherPrice*(fBps-costCoef*float64(amountArgmax)) - fixedFeeOther
	if maxProfitOther <= 0 {
		return nil
	}

	quadraticCost := float64(amountArgmax) * float64(amountArgmax) * otherPrice * avgImpactCostCoef
	linearCost := float64(amountArgmax) * otherPrice * impactBps

	maxAdditionalSlippage := fBps - 2*fixedFeeOther/(float64(amountArgmax)*otherPrice)

	return &BuyInfo{
		Buy: Buy{
			Amount:                   uint64(amountArgmax),
			MaxProfitableSlippageBps: maxAdditionalSlippage,
		},
		Costs: TradeCosts{
			QuadraticImpactCost: quadraticCost,
			LinearImpactCost:    linearCost,
		},
	}
}

// Swap is the chosen direction and sizing for one pair.
type Swap struct {
	Direction Direction
	Buy       Buy
	Costs     TradeCosts // in base-asset units
}

// Optimizer solves the two-directional problem for one pair and returns at
// most one profitable Swap, enforcing mutual exclusivity and the reserve
// fraction cap.
type Optimizer struct {
	RiskCoef           float64 // chi, global inventory-risk coefficient
	ExpectedSlippageBps float64
	FixedFeeBase       float64 // F_fixed in base-asset units
}

// New constructs an Optimizer with the given risk coefficient.
func New(riskCoef float64) *Optimizer {
	return &Optimizer{RiskCoef: riskCoef}
}

// OptimalSwap solves for the optimal trade given the pair's current
// signal, impact, inventory position, and reserves. Returns nil if no
// trade is profitable or if the cap excludes every candidate amount.
func (o *Optimizer) OptimalSwap(signalBps, impactBps float64, reservePosition, reserveAmount, baseAmount uint64) *Swap {
	reservePrice := float64(baseAmount) / float64(reserveAmount) // base per reserve unit

	quadraticRiskBuyBase := o.RiskCoef * reservePrice * reservePrice
	linearRiskBuyBase := 2.0 * o.RiskCoef * float64(reservePosition) * reservePrice * reservePrice

	buyReserveInfo := optimalAmountBuyAsset(
		signalBps, impactBps,
		reserveAmount, baseAmount,
		quadraticRiskBuyBase, linearRiskBuyBase,
		2*o.FixedFeeBase,
		o.ExpectedSlippageBps,
	)

	quadraticRiskBuyReserve := o.RiskCoef
	linearRiskBuyReserve := -2.0 * o.RiskCoef * float64(reservePosition) * reservePrice

	invSignal := 1/(1+signalBps) - 1.0
	invImpact := 1/(1+impactBps) - 1.0

	buyBaseInfo := optimalAmountBuyAsset(
		invSignal, invImpact,
		baseAmount, reserveAmount,
		quadraticRiskBuyReserve, linearRiskBuyReserve,
		o.FixedFeeBase/reservePrice,
		o.ExpectedSlippageBps,
	)

	if buyReserveInfo != nil && buyBaseInfo != nil {
		panic("optimizer: both directions profitable simultaneously")
	}

	if buyReserveInfo != nil {
		if capped, ok := applyCap(buyReserveInfo.Buy, reserveAmount); ok {
			return &Swap{
				Direction: DirectionBuyReserve,
				Buy:       capped,
				Costs:     buyReserveInfo.Costs, // already in base units
			}
		}
		return nil
	}

	if buyBaseInfo != nil {
		if capped, ok := applyCap(buyBaseInfo.Buy, baseAmount); ok {
			return &Swap{
				Direction: DirectionBuyBase,
				Buy:       capped,
				Costs: TradeCosts{
					QuadraticImpactCost: buyBaseInfo.Costs.QuadraticImpactCost * reservePrice,
					LinearImpactCost:    buyBaseInfo.Costs.LinearImpactCost * reservePrice,
				},
			}
		}
		return nil
	}

	return nil
}

// applyCap enforces A_cap = floor(psi * R_out) by rejecting any amount
// above it. optimalAmountBuyAsset already clamps its result to the cap, so
// this check only rejects amounts that bypassed that clamp.
func applyCap(buy Buy, outReserves uint64) (Buy, bool) {
	cap := uint64(math.Floor(ReserveFractionCap * float64(outReserves)))
	if buy.Amount > cap {
		return Buy{}, false
	}
	return buy, true
}

// QuoteAmounts computes the fixed-input quote for buying `out` of the
// out-asset from a pool with reserves (rIn, rOut):
// A_in = ceil((k/(R_out-A) - R_in) * 1000/997), truncated to sellCap.
// Inverts spectrum.Pool.OutputForInput's constant-product math to solve
// for the input given a desired output.
func QuoteAmounts(rIn, rOut, out, sellCap uint64) (amountIn, fee uint64) {
	if out >= rOut {
		panic("optimizer: out amount must be strictly less than out reserves")
	}
	k := float64(rIn) * float64(rOut)
	grossIn := k/(float64(rOut)-float64(out)) - float64(rIn)
	amountInGross := uint64(math.Ceil(grossIn * 1000.0 / 997.0))
	if amountInGross > sellCap {
		amountInGross = sellCap
	}
	feeAmount := amountInGross - amountInGross*997/1000
	return amountInGross, feeAmount
}
