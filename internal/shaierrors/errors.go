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

// Package shaierrors defines the error taxonomy the engine uses to decide
// retry, skip, or abort behavior at each layer.
package shaierrors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per row of the error handling design. Wrap with
// fmt.Errorf("...: %w", ErrX) and discriminate with errors.Is.
var (
	// ErrNetworkTransient covers HTTP timeouts, 5xx responses, and
	// connection resets against the indexer. Policy: log, retry next tick.
	ErrNetworkTransient = errors.New("network: transient failure")

	// ErrNetworkRateLimited covers a 429-equivalent response from the
	// indexer. Policy: sleep 5s, retry the same page.
	ErrNetworkRateLimited = errors.New("network: rate limited")

	// ErrMalformedTx covers a transaction missing a required field, or
	// whose sender/receiver doesn't include the pool address. Policy: log,
	// skip the transaction.
	ErrMalformedTx = errors.New("transaction: malformed")

	// ErrNonExistentPool covers fetch_pool.exists == false. Policy: remove
	// the pair from the trading universe; fail engine construction if the
	// pair was required at startup.
	ErrNonExistentPool = errors.New("pool: does not exist")

	// ErrStaleMarket covers now - last_sync > lag_limit. Policy: skip the
	// entire trade_loop tick for the affected pair.
	ErrStaleMarket = errors.New("market: stale")

	// ErrInvariantViolated covers a monotone-time violation, a negative
	// position, or an out-amount exceeding reserves. Policy: this is never
	// returned as a value — it is raised via panic at the point of
	// detection and must abort the process.
	ErrInvariantViolated = errors.New("invariant violated")

	// ErrVenueReject covers submit() returning a non-empty pool_error.
	// Policy: log at error level, do not mutate Position or ImpactState.
	ErrVenueReject = errors.New("venue: rejected")

	// ErrOptinNeeded covers an account not opted into an asset at
	// construction time. Policy: submit the opt-in, wait for confirmation.
	ErrOptinNeeded = errors.New("venue: opt-in needed")
)

// Invariant panics with ErrInvariantViolated wrapped with context. Nothing
// in this module recovers the panic, so it ends the process.
func Invariant(format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{ErrInvariantViolated}, args...)...))
}
