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

// Package pricevolumestream multiplexes per-pool reconstructors across
// many pairs behind one shared transaction feed, with last-price
// compaction for PoolState updates.
package pricevolumestream

import (
	"context"
	"time"

	"github.com/blinklabs-io/shai/internal/indexerclient"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/reconstructor"
)

// PoolSource fetches the next page of transactions for a watched address
// set. Implemented by indexerclient.Client in production, and by a
// canned-sequence fake in tests/simulation.
type PoolSource interface {
	FetchTransactionsPage(ctx context.Context, addrs []string, opts indexerclient.QueryOpts) (*indexerclient.TxPage, error)
}

// poolEntry binds one pool address to its pair and reconstructor.
type poolEntry struct {
	address string
	pair    poolstate.PairKey
	recon   *reconstructor.Reconstructor
}

// Stream multiplexes reconstructed updates across the configured pools and
// applies last-price compaction to PoolState updates.
type Stream struct {
	source PoolSource
	pools  []poolEntry

	nextToken string

	pending map[poolstate.PairKey]poolstate.Update
	hasPending map[poolstate.PairKey]bool
}

// PoolSpec binds a watched pool address to the pair it represents.
type PoolSpec struct {
	Address string
	Pair    poolstate.PairKey
}

// New constructs a Stream over the given pools, fetching pages from
// source.
func New(source PoolSource, pools []PoolSpec, feePaymentMicroUnits uint64, skipSameTime bool) *Stream {
	s := &Stream{
		source:     source,
		pending:    make(map[poolstate.PairKey]poolstate.Update),
		hasPending: make(map[poolstate.PairKey]bool),
	}
	for _, p := range pools {
		s.pools = append(s.pools, poolEntry{
			address: p.Address,
			pair:    p.Pair,
			recon:   reconstructor.New(p.Address, p.Pair, feePaymentMicroUnits, skipSameTime),
		})
	}
	return s
}

func (s *Stream) addresses() []string {
	addrs := make([]string, len(s.pools))
	for i, p := range s.pools {
		addrs[i] = p.address
	}
	return addrs
}

// Drain pulls and decodes everything the indexer has produced since the
// last call, applies last-price compaction, and returns the resulting
// updates. Swap updates pass through as they arrive; PoolState updates
// are held back per-pair until a strictly greater t is observed for that
// pair (or Drain's final flush), so only the last PoolState per (pair, t)
// is ever emitted, after any swaps that arrived while it was held. The
// final flush emits the pairs in no defined order.
func (s *Stream) Drain(ctx context.Context, before time.Time) ([]poolstate.Update, error) {
	var out []poolstate.Update

	for {
		page, err := s.source.FetchTransactionsPage(ctx, s.addresses(), indexerclient.QueryOpts{
			BeforeTime: before,
			NextToken:  s.nextToken,
		})
		if err != nil {
			return out, err
		}

		for _, tx := range page.Transactions {
			// A pool's own transactions are identifiable by sender or the
			// payload's receiver; resolve against every tracked pool since
			// one query covers the whole address set.
			for i := range s.pools {
				entry := &s.pools[i]
				if !involvesPool(tx, entry.address) {
					continue
				}
				updates := entry.recon.Feed(tx, tx.RoundTime)
				for _, u := range updates {
					out = s.compact(out, u)
				}
			}
		}

		s.nextToken = page.NextToken
		if s.nextToken == "" {
			break
		}
	}

	return s.flush(out), nil
}

func involvesPool(tx indexerclient.Transaction, pool string) bool {
	if tx.Sender == pool {
		return true
	}
	_, receiver, closeTo, _, ok := tx.Amount()
	if !ok {
		return false
	}
	return receiver == pool || closeTo == pool
}

// compact applies last-price compaction: a PoolState update for a pair
// replaces any pending one for the same (pair, t); a strictly greater t
// flushes the previous pending update into out first. Swap updates pass
// straight through.
func (s *Stream) compact(out []poolstate.Update, u poolstate.Update) []poolstate.Update {
	if u.Kind == poolstate.KindSwap {
		return append(out, u)
	}

	if pending, ok := s.pending[u.Pair]; ok && s.hasPending[u.Pair] {
		if u.State.T > pending.State.T {
			out = append(out, pending)
			s.pending[u.Pair] = u
		} else {
			// Same or earlier t for this pair: the later observation wins.
			s.pending[u.Pair] = u
		}
	} else {
		s.pending[u.Pair] = u
		s.hasPending[u.Pair] = true
	}
	return out
}

// flush emits every still-pending PoolState update, used at stream end.
func (s *Stream) flush(out []poolstate.Update) []poolstate.Update {
	for pair, pending := range s.pending {
		if s.hasPending[pair] {
			out = append(out, pending)
			s.hasPending[pair] = false
		}
	}
	return out
}
