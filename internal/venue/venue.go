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

// Package venue is the execution-side counterpart of pricevolumestream: it
// reads current pool reserves, assembles and signs swap quotes, submits
// them, and redeems excess value left in the pool by slippage.
package venue

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math"

	"github.com/blinklabs-io/shai/internal/micro"
	"github.com/blinklabs-io/shai/internal/optimizer"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/shaierrors"
)

// maxValueLockedBase is the largest leftover balance, in base-asset units,
// that is left unredeemed rather than spending a transaction to recover it.
const maxValueLockedBase = micro.Amount(1_000_000)

// PoolReserves is a read-only snapshot of on-chain reserves for one pair.
type PoolReserves struct {
	ReserveAmount micro.Amount
	BaseAmount    micro.Amount
}

// Quote is an assembled, not-yet-submitted swap quote.
type Quote struct {
	Pair            poolstate.PairKey
	Direction       optimizer.Direction
	AmountOut       micro.Amount
	AmountIn        micro.Amount
	AmountOutMinimum micro.Amount // after slippage tolerance
	AmountInMaximum  micro.Amount
	ReservesAtQuote PoolReserves
}

// SignedQuote is a Quote with its submission payload signed, ready for
// Submit.
type SignedQuote struct {
	Quote     Quote
	Payload   []byte
	Signature []byte
}

// SubmitResult is the outcome of submitting a signed quote.
type SubmitResult struct {
	TxID      string
	AmountOut micro.Amount
	AmountIn  micro.Amount
}

// RedeemedAmounts is the pair of (reserve, base) amounts actually
// redeemed from the pool's excess-value balance.
type RedeemedAmounts struct {
	ReserveAmount micro.Amount
	BaseAmount    micro.Amount
}

// Venue is the execution surface the swapper drives. Implementations:
// Production (signs and submits real transactions against the indexer's
// companion submission endpoint) and nothing else — simulation never
// touches a Venue at all: internal/swapper.Simulation reports each quote
// as filled and the engine applies the fill itself.
type Venue interface {
	FetchReserves(ctx context.Context, pair poolstate.PairKey) (PoolReserves, error)
	PrepareQuote(ctx context.Context, pair poolstate.PairKey, direction optimizer.Direction, amountOut, slippageBps micro.Amount) (Quote, error)
	Sign(q Quote) (SignedQuote, error)
	Submit(ctx context.Context, sq SignedQuote) (SubmitResult, error)
	FetchExcess(ctx context.Context, pair poolstate.PairKey, reservePrice float64) (RedeemedAmounts, error)
}

// Production implements Venue against a live indexer-fronted pool.
type Production struct {
	signingKey ed25519.PrivateKey
	address    string
	reserves   func(ctx context.Context, pair poolstate.PairKey) (PoolReserves, error)
	submit     func(ctx context.Context, payload, sig []byte) (string, error)
	excess     func(ctx context.Context, pair poolstate.PairKey, address string) (RedeemedAmounts, error)
	optin      func(ctx context.Context, address string) error
	optedIn    bool
}

// NewProduction constructs a Production venue. reserves/submit/excess/optin
// are the caller-supplied transport functions (an indexer/submission client
// in a real deployment); signingKey signs each assembled quote payload.
// optin may be nil when the execution surface requires no opt-in step.
func NewProduction(
	signingKey ed25519.PrivateKey,
	address string,
	reserves func(ctx context.Context, pair poolstate.PairKey) (PoolReserves, error),
	submit func(ctx context.Context, payload, sig []byte) (string, error),
	excess func(ctx context.Context, pair poolstate.PairKey, address string) (RedeemedAmounts, error),
	optin func(ctx context.Context, address string) error,
) *Production {
	return &Production{signingKey: signingKey, address: address, reserves: reserves, submit: submit, excess: excess, optin: optin}
}

// EnsureOptedIn opts the venue's address into whatever asset/app
// registration the execution surface requires before it can receive swap
// proceeds, mirroring ProductionSwapper's _asset_optin/_client_optin
// construction-time checks. It is idempotent: once it succeeds, later
// calls are no-ops for the lifetime of this Production instance.
func (p *Production) EnsureOptedIn(ctx context.Context) error {
	if p.optedIn || p.optin == nil {
		return nil
	}
	if err := p.optin(ctx, p.address); err != nil {
		return fmt.Errorf("%w: opt-in failed: %s", shaierrors.ErrOptinNeeded, err)
	}
	p.optedIn = true
	return nil
}

func (p *Production) FetchReserves(ctx context.Context, pair poolstate.PairKey) (PoolReserves, error) {
	return p.reserves(ctx, pair)
}

// PrepareQuote assembles a fixed-output swap quote: solve for the input
// amount needed to buy amountOut given current reserves, then widen by the
// slippage tolerance in both directions. Grounded on
// spectrum.Pool.OutputForInput's constant-product math, inverted.
func (p *Production) PrepareQuote(ctx context.Context, pair poolstate.PairKey, direction optimizer.Direction, amountOut, slippageBps micro.Amount) (Quote, error) {
	reserves, err := p.reserves(ctx, pair)
	if err != nil {
		return Quote{}, err
	}

	var rIn, rOut uint64
	if direction == optimizer.DirectionBuyReserve {
		rIn, rOut = uint64(reserves.BaseAmount), uint64(reserves.ReserveAmount)
	} else {
		rIn, rOut = uint64(reserves.ReserveAmount), uint64(reserves.BaseAmount)
	}
	if uint64(amountOut) >= rOut {
		return Quote{}, fmt.Errorf("%w: requested output %d exceeds reserves %d", shaierrors.ErrInvariantViolated, amountOut, rOut)
	}

	amountIn, _ := optimizer.QuoteAmounts(rIn, rOut, uint64(amountOut), math.MaxUint64)

	slip := float64(slippageBps) / 1e4
	amountOutMin := micro.Amount(float64(amountOut) * (1 - slip))
	amountInMax := micro.Amount(float64(amountIn) * (1 + slip))

	return Quote{
		Pair:             pair,
		Direction:        direction,
		AmountOut:        amountOut,
		AmountIn:         micro.Amount(amountIn),
		AmountOutMinimum: amountOutMin,
		AmountInMaximum:  amountInMax,
		ReservesAtQuote:  reserves,
	}, nil
}

// Sign serializes the quote deterministically and signs it with the
// venue's key, standing in for a Cardano transaction-signing step with a
// fixed-input/fixed-output swap payload instead of a UTXO transaction body.
func (p *Production) Sign(q Quote) (SignedQuote, error) {
	payload := []byte(fmt.Sprintf("%s|%d|%d|%d", q.Pair, q.Direction, q.AmountOut, q.AmountInMaximum))
	sig := ed25519.Sign(p.signingKey, payload)
	return SignedQuote{Quote: q, Payload: payload, Signature: sig}, nil
}

func (p *Production) Submit(ctx context.Context, sq SignedQuote) (SubmitResult, error) {
	txID, err := p.submit(ctx, sq.Payload, sq.Signature)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: %s", shaierrors.ErrVenueReject, err)
	}
	return SubmitResult{TxID: txID, AmountOut: sq.Quote.AmountOut, AmountIn: sq.Quote.AmountIn}, nil
}

// FetchExcess redeems any leftover balance above maxValueLockedBase,
// mirroring ProductionSwapper.fetch_excess_amounts's threshold check: each
// asset's excess is converted to its base-unit-equivalent value and only
// counted as redeemed if that value clears the threshold, independently of
// what the transport-level excess lookup reports as available. reservePrice
// is base units per reserve unit, consistent with the rest of this package.
func (p *Production) FetchExcess(ctx context.Context, pair poolstate.PairKey, reservePrice float64) (RedeemedAmounts, error) {
	available, err := p.excess(ctx, pair, p.address)
	if err != nil {
		return RedeemedAmounts{}, err
	}

	var redeemed RedeemedAmounts
	if available.BaseAmount > maxValueLockedBase {
		redeemed.BaseAmount = available.BaseAmount
	}
	reserveValueInBase := micro.Amount(float64(available.ReserveAmount) * reservePrice)
	if reserveValueInBase > maxValueLockedBase {
		redeemed.ReserveAmount = available.ReserveAmount
	}
	return redeemed, nil
}
