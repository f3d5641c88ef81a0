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

// Package poolstate holds the immutable event records produced by the
// swap-event reconstructor: PoolState snapshots and completed Swaps, plus
// the tagged union the price/volume stream moves between components.
package poolstate

import "fmt"

// PairKey identifies a trading pair by its reserve-asset and base-asset
// ids. AssetID 0 conventionally denotes the chain's native asset.
type PairKey struct {
	ReserveAssetID uint64
	BaseAssetID    uint64
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d/%d", k.ReserveAssetID, k.BaseAssetID)
}

// State is a pool reserve snapshot produced when an AMM state-changing
// transaction is observed. Invariant: ReserveAmount and BaseAmount are both
// strictly positive. IntraBlockOrder strictly increases within a single T
// for a given pair and resets to 0 on a new T.
type State struct {
	T               int64 // unix seconds
	ReserveAmount   uint64
	BaseAmount      uint64
	IntraBlockOrder uint16
}

// Price returns base-per-reserve, b/r.
func (s State) Price() float64 {
	if s.ReserveAmount == 0 {
		return 0
	}
	return float64(s.BaseAmount) / float64(s.ReserveAmount)
}

// Swap is a completed three-leg swap reconstructed from raw transactions.
// Sign convention: positive ReserveAmount/BaseAmount means that asset
// entered the pool. Invariant: exactly one of ReserveAmount/BaseAmount is
// positive and the other negative, and neither is zero.
type Swap struct {
	T            int64
	ReserveAmount int64
	BaseAmount    int64
	Counterparty string
	Block        uint64
}

// Kind discriminates an Update's payload.
type Kind int

const (
	// KindState tags an Update carrying a State.
	KindState Kind = iota
	// KindSwap tags an Update carrying a Swap.
	KindSwap
)

// Update is the tagged union PriceOrVolumeUpdate: either a pool-state
// snapshot or a completed swap, scoped to one pair.
type Update struct {
	Pair  PairKey
	Kind  Kind
	State State
	Swap  Swap
}

// NewStateUpdate constructs a KindState Update.
func NewStateUpdate(pair PairKey, s State) Update {
	return Update{Pair: pair, Kind: KindState, State: s}
}

// NewSwapUpdate constructs a KindSwap Update.
func NewSwapUpdate(pair PairKey, s Swap) Update {
	return Update{Pair: pair, Kind: KindSwap, Swap: s}
}
