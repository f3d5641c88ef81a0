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

// Package position tracks the engine's per-pair reserve-asset inventory
// and global base-asset balance. Positions are never negative: the engine
// does not short.
package position

import (
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/shaierrors"
)

// Global holds the engine's full inventory: one reserve-asset position per
// pair, plus a single global base-asset balance. It is owned by the
// Engine and mutated only on fill and on excess redemption.
type Global struct {
	ReservePositions map[poolstate.PairKey]uint64
	BasePosition     uint64
}

// New constructs an empty Global position.
func New() *Global {
	return &Global{ReservePositions: make(map[poolstate.PairKey]uint64)}
}

// Reserve returns the current reserve-asset position for pair, 0 if unset.
func (g *Global) Reserve(pair poolstate.PairKey) uint64 {
	return g.ReservePositions[pair]
}

// ApplySwap applies a filled swap's legs to the position. buyIsBase
// indicates whether the bought asset is the pair's base asset.
func (g *Global) ApplySwap(pair poolstate.PairKey, buyIsBase bool, buyAmount, sellAmount uint64) {
	if buyIsBase {
		g.BasePosition += buyAmount
		if sellAmount > g.ReservePositions[pair] {
			shaierrors.Invariant("position: selling %d reserve units but only %d held for pair %s", sellAmount, g.ReservePositions[pair], pair)
		}
		g.ReservePositions[pair] -= sellAmount
	} else {
		g.ReservePositions[pair] += buyAmount
		if sellAmount > g.BasePosition {
			shaierrors.Invariant("position: selling %d base units but only %d held", sellAmount, g.BasePosition)
		}
		g.BasePosition -= sellAmount
	}
}

// ApplyRedeemedExcess tops up position after the swapper redeems locked
// residuals from the venue. Excess redemption only ever adds.
func (g *Global) ApplyRedeemedExcess(pair poolstate.PairKey, reserveAmount, baseAmount uint64) {
	g.ReservePositions[pair] += reserveAmount
	g.BasePosition += baseAmount
}
