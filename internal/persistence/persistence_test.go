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

package persistence_test

import (
	"log/slog"
	"testing"

	"github.com/blinklabs-io/shai/internal/persistence"
	"github.com/blinklabs-io/shai/internal/poolstate"
)

func openStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.Open(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := openStore(t)
	pair := poolstate.PairKey{ReserveAssetID: 7, BaseAssetID: 0}

	if _, ok, err := store.LoadCheckpoint(pair); err != nil || ok {
		t.Fatalf("expected no checkpoint yet, got ok=%v err=%v", ok, err)
	}

	want := persistence.Checkpoint{T: 1_700_000_000, IntraBlockOrder: 3}
	if err := store.SaveCheckpoint(pair, want); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, ok, err := store.LoadCheckpoint(pair)
	if err != nil || !ok {
		t.Fatalf("LoadCheckpoint: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("checkpoint mismatch: got %+v want %+v", got, want)
	}
}

func TestCheckpointIsPerPair(t *testing.T) {
	store := openStore(t)
	pairA := poolstate.PairKey{ReserveAssetID: 7, BaseAssetID: 0}
	pairB := poolstate.PairKey{ReserveAssetID: 8, BaseAssetID: 0}

	if err := store.SaveCheckpoint(pairA, persistence.Checkpoint{T: 100}); err != nil {
		t.Fatalf("SaveCheckpoint pairA: %v", err)
	}
	if _, ok, err := store.LoadCheckpoint(pairB); err != nil || ok {
		t.Fatalf("expected pairB to remain unset, got ok=%v err=%v", ok, err)
	}
}

func TestPositionRoundTrip(t *testing.T) {
	store := openStore(t)

	if _, ok, err := store.LoadPosition(); err != nil || ok {
		t.Fatalf("expected no position snapshot yet, got ok=%v err=%v", ok, err)
	}

	want := persistence.PositionSnapshot{
		ReservePositions: map[string]uint64{"7/0": 1_000_000},
		BasePosition:     500_000,
	}
	if err := store.SavePosition(want); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}

	got, ok, err := store.LoadPosition()
	if err != nil || !ok {
		t.Fatalf("LoadPosition: ok=%v err=%v", ok, err)
	}
	if got.BasePosition != want.BasePosition || got.ReservePositions["7/0"] != want.ReservePositions["7/0"] {
		t.Fatalf("position mismatch: got %+v want %+v", got, want)
	}
}

func TestSavePositionOverwrites(t *testing.T) {
	store := openStore(t)

	if err := store.SavePosition(persistence.PositionSnapshot{BasePosition: 1}); err != nil {
		t.Fatalf("SavePosition (first): %v", err)
	}
	if err := store.SavePosition(persistence.PositionSnapshot{BasePosition: 2}); err != nil {
		t.Fatalf("SavePosition (second): %v", err)
	}

	got, ok, err := store.LoadPosition()
	if err != nil || !ok {
		t.Fatalf("LoadPosition: ok=%v err=%v", ok, err)
	}
	if got.BasePosition != 2 {
		t.Fatalf("expected the second snapshot to win, got %+v", got)
	}
}
