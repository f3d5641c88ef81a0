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

// Package reconstructor turns a chronologically ordered stream of raw
// indexer transactions for one pool address into a strictly ordered
// sequence of PoolState and Swap updates.
package reconstructor

import (
	"fmt"

	"github.com/blinklabs-io/shai/internal/indexerclient"
	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/shaierrors"
)

// DefaultFeePaymentMicroUnits is the base-asset amount of the fixed fee
// leg that terminates a swap's three-transaction group.
const DefaultFeePaymentMicroUnits = 2000

type swapState int

const (
	stateIdle swapState = iota // S0
	stateFeeSeen                // S1
	stateFeeAndIn                // S2
)

// leg is one parsed transfer leg relative to the pool.
type leg struct {
	assetID      uint64
	amount       int64 // signed: positive entering the pool, negative leaving
	counterparty string
	txType       string
}

// Reconstructor is the per-pool state machine. One instance tracks exactly
// one pool address across an arbitrary number of pages.
type Reconstructor struct {
	pool                 string
	pair                 poolstate.PairKey
	feePaymentMicroUnits uint64
	skipSameTime         bool

	state         swapState
	pendingIn     *leg

	prevT         int64
	prevIntraOrder uint16
	havePrevT     bool

	prevS1, prevS2 int64
	haveDedupe     bool
}

// New constructs a Reconstructor for pool, tracking pair's two assets.
func New(pool string, pair poolstate.PairKey, feePaymentMicroUnits uint64, skipSameTime bool) *Reconstructor {
	if feePaymentMicroUnits == 0 {
		feePaymentMicroUnits = DefaultFeePaymentMicroUnits
	}
	return &Reconstructor{
		pool:                 pool,
		pair:                 pair,
		feePaymentMicroUnits: feePaymentMicroUnits,
		skipSameTime:         skipSameTime,
	}
}

func (r *Reconstructor) assetInPair(assetID uint64) bool {
	return assetID == r.pair.ReserveAssetID || assetID == r.pair.BaseAssetID
}

func (r *Reconstructor) isFeePayment(l leg) bool {
	return l.txType == "pay" && l.assetID == r.pair.BaseAssetID && l.amount == int64(r.feePaymentMicroUnits)
}

func (r *Reconstructor) isCandidateIn(l leg) bool {
	return l.amount > 0 && r.assetInPair(l.assetID) && !r.isFeePayment(l)
}

func (r *Reconstructor) isCandidateOut(l leg, in *leg) bool {
	return l.amount < 0 &&
		l.counterparty == in.counterparty &&
		l.assetID != in.assetID &&
		r.assetInPair(l.assetID) &&
		!r.isFeePayment(l)
}

func legFromTx(tx indexerclient.Transaction, pool string) (leg, bool, error) {
	assetID, receiver, closeTo, amount, ok := tx.Amount()
	if !ok {
		return leg{}, false, nil // appl, not a transfer leg
	}
	if closeTo == pool {
		logging.GetLogger().Debug("skipping close-to leg", "pool", pool, "asset_id", assetID, "sender", tx.Sender, "receiver", receiver)
		return leg{}, false, nil
	}
	isSender := tx.Sender == pool
	isReceiver := receiver == pool
	if isSender == isReceiver {
		return leg{}, false, fmt.Errorf("%w: sender/receiver both or neither match pool %s", shaierrors.ErrMalformedTx, pool)
	}
	var signed int64
	var counterparty string
	if isReceiver {
		signed = int64(amount)
		counterparty = tx.Sender
	} else {
		signed = -int64(amount)
		counterparty = receiver
	}
	return leg{assetID: assetID, amount: signed, counterparty: counterparty, txType: txTypeString(tx.Type)}, true, nil
}

func txTypeString(t indexerclient.TxType) string {
	switch t {
	case indexerclient.TxTypePay:
		return "pay"
	case indexerclient.TxTypeAxfer:
		return "axfer"
	default:
		return "appl"
	}
}

// Feed processes one transaction and returns zero or more Updates it
// produces (a PoolState on an appl reserve update, a Swap when a
// three-leg group completes). Malformed-transaction errors are logged and
// swallowed here; they never surface to the caller.
func (r *Reconstructor) Feed(tx indexerclient.Transaction, roundTime int64) []poolstate.Update {
	logger := logging.GetLogger()

	if tx.Type == indexerclient.TxTypeAppl {
		return r.feedAppl(tx, roundTime)
	}

	l, ok, err := legFromTx(tx, r.pool)
	if err != nil {
		logger.Debug("skipping malformed swap leg", "pool", r.pool, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return r.feedLeg(l, roundTime, tx.ConfirmedRound)
}

func (r *Reconstructor) feedAppl(tx indexerclient.Transaction, roundTime int64) []poolstate.Update {
	if tx.Appl == nil {
		return nil
	}
	s1, ok1 := tx.Appl.LocalStateDelta["s1"]
	s2, ok2 := tx.Appl.LocalStateDelta["s2"]
	if !ok1 || !ok2 {
		return nil
	}

	if r.havePrevT && r.haveDedupe && roundTime == r.prevT && s1 == r.prevS1 && s2 == r.prevS2 && r.skipSameTime {
		return nil
	}

	order := uint16(0)
	if r.havePrevT && roundTime == r.prevT {
		order = r.prevIntraOrder + 1
	}
	if r.havePrevT && roundTime < r.prevT {
		shaierrors.Invariant("reconstructor: non-monotone time for pool %s: %d < %d", r.pool, roundTime, r.prevT)
	}

	r.prevT = roundTime
	r.prevIntraOrder = order
	r.havePrevT = true
	r.prevS1, r.prevS2 = s1, s2
	r.haveDedupe = true

	state := poolstate.State{
		T:               roundTime,
		ReserveAmount:   uint64(s1),
		BaseAmount:      uint64(s2),
		IntraBlockOrder: order,
	}
	return []poolstate.Update{poolstate.NewStateUpdate(r.pair, state)}
}

func (r *Reconstructor) feedLeg(l leg, roundTime int64, confirmedRound uint64) []poolstate.Update {
	switch r.state {
	case stateIdle:
		if r.isFeePayment(l) {
			r.state = stateFeeSeen
		}
		return nil

	case stateFeeSeen:
		if r.isCandidateIn(l) {
			cp := l
			r.pendingIn = &cp
			r.state = stateFeeAndIn
		} else {
			r.state = stateIdle
		}
		return nil

	case stateFeeAndIn:
		defer func() {
			r.state = stateIdle
			r.pendingIn = nil
		}()
		if r.pendingIn != nil && r.isCandidateOut(l, r.pendingIn) {
			in := r.pendingIn
			swap := poolstate.Swap{
				T:            roundTime,
				Counterparty: in.counterparty,
				Block:        confirmedRound,
			}
			if in.assetID == r.pair.BaseAssetID {
				swap.BaseAmount = in.amount
				swap.ReserveAmount = l.amount
			} else {
				swap.ReserveAmount = in.amount
				swap.BaseAmount = l.amount
			}
			return []poolstate.Update{poolstate.NewSwapUpdate(r.pair, swap)}
		}
		return nil

	default:
		return nil
	}
}
