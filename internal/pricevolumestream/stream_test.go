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

package pricevolumestream_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/shai/internal/indexerclient"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/pricevolumestream"
)

// fakeSource serves a canned sequence of pages, one per call, ignoring
// addrs/opts beyond using NextToken as an index into the page list.
type fakeSource struct {
	pages []indexerclient.TxPage
}

func (f *fakeSource) FetchTransactionsPage(ctx context.Context, addrs []string, opts indexerclient.QueryOpts) (*indexerclient.TxPage, error) {
	idx := 0
	if opts.NextToken != "" {
		idx = int(opts.NextToken[0] - '0')
	}
	if idx >= len(f.pages) {
		return &indexerclient.TxPage{}, nil
	}
	page := f.pages[idx]
	return &page, nil
}

func applTx(t1, s1, s2 int64) indexerclient.Transaction {
	return indexerclient.Transaction{
		Type:      indexerclient.TxTypeAppl,
		Sender:    "POOLA",
		RoundTime: t1,
		Appl: &indexerclient.ApplPayload{LocalStateDelta: map[string]int64{
			"s1": s1, "s2": s2,
		}},
	}
}

var (
	pairA = poolstate.PairKey{ReserveAssetID: 1, BaseAssetID: 0}
	pairB = poolstate.PairKey{ReserveAssetID: 2, BaseAssetID: 0}
)

// TestLastPriceCompactionKeepsLastStatePerT feeds one pair's state
// updates, two of them at the same t, and checks exactly one update per
// unique t survives compaction, carrying the latest value observed for
// that t.
func TestLastPriceCompactionKeepsLastStatePerT(t *testing.T) {
	src := &fakeSource{pages: []indexerclient.TxPage{
		{
			Transactions: []indexerclient.Transaction{
				applTx(1000, 100, 200),
				applTx(1000, 110, 190), // same t, pair A: supersedes the prior
				applTx(1005, 50, 60),   // pair A moves to a new t: flushes the prior
			},
			NextToken: "",
		},
	}}

	stream := pricevolumestream.New(src, []pricevolumestream.PoolSpec{
		{Address: "POOLA", Pair: pairA},
	}, 2000, false)

	// All three transactions above target the same single registered pool
	// (POOLA); FetchTransactionsPage doesn't filter by address so Feed sees
	// every one of them through the one reconstructor.
	updates, err := stream.Drain(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	var stateUpdates []poolstate.Update
	for _, u := range updates {
		if u.Kind == poolstate.KindState {
			stateUpdates = append(stateUpdates, u)
		}
	}
	if len(stateUpdates) != 2 {
		t.Fatalf("expected exactly 2 compacted state updates (one per unique t), got %d: %+v", len(stateUpdates), stateUpdates)
	}
	if stateUpdates[0].State.T != 1000 || stateUpdates[0].State.ReserveAmount != 110 {
		t.Fatalf("expected the later t=1000 observation to win, got %+v", stateUpdates[0].State)
	}
	if stateUpdates[1].State.T != 1005 {
		t.Fatalf("expected second update at t=1005, got %+v", stateUpdates[1].State)
	}
}

func TestDrainPaginatesUntilEmptyNextToken(t *testing.T) {
	src := &fakeSource{pages: []indexerclient.TxPage{
		{Transactions: []indexerclient.Transaction{applTx(1000, 10, 20)}, NextToken: "1"},
		{Transactions: []indexerclient.Transaction{applTx(1010, 30, 40)}, NextToken: ""},
	}}
	stream := pricevolumestream.New(src, []pricevolumestream.PoolSpec{
		{Address: "POOLA", Pair: pairA},
	}, 2000, false)

	updates, err := stream.Drain(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates across both pages, got %d", len(updates))
	}
}
