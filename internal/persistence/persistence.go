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

// Package persistence is the engine's crash-recovery store: per-pair
// stream checkpoints and the last-synced inventory snapshot, held in an
// embedded Badger database so a restart resumes from where it left off
// instead of re-deriving position from a full indexer replay.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/blinklabs-io/shai/internal/poolstate"
)

const (
	checkpointKeyPrefix = "checkpoint_"
	positionKey         = "position"
)

// Store wraps a Badger database holding engine checkpoints and the last
// persisted position snapshot.
type Store struct {
	db *badger.DB
}

// Open opens (creating if necessary) a Store rooted at dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("persistence: opening badger at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func checkpointKey(pair poolstate.PairKey) []byte {
	return []byte(fmt.Sprintf("%s%d_%d", checkpointKeyPrefix, pair.ReserveAssetID, pair.BaseAssetID))
}

// Checkpoint is the last pool-state observation durably applied for a
// pair, used to resume a replay without re-applying already-seen updates.
type Checkpoint struct {
	T               int64
	IntraBlockOrder uint16
}

// SaveCheckpoint records the latest applied observation for pair.
func (s *Store) SaveCheckpoint(pair poolstate.PairKey, cp Checkpoint) error {
	val := fmt.Sprintf("%d,%d", cp.T, cp.IntraBlockOrder)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(checkpointKey(pair), []byte(val))
	})
}

// LoadCheckpoint returns the last saved checkpoint for pair, and ok=false
// if none has ever been saved.
func (s *Store) LoadCheckpoint(pair poolstate.PairKey) (cp Checkpoint, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(checkpointKey(pair))
		if getErr != nil {
			return getErr
		}
		return item.Value(func(v []byte) error {
			parts := strings.SplitN(string(v), ",", 2)
			if len(parts) != 2 {
				return fmt.Errorf("persistence: malformed checkpoint value %q", v)
			}
			t, perr := strconv.ParseInt(parts[0], 10, 64)
			if perr != nil {
				return perr
			}
			order, perr := strconv.ParseUint(parts[1], 10, 16)
			if perr != nil {
				return perr
			}
			cp = Checkpoint{T: t, IntraBlockOrder: uint16(order)}
			ok = true
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return Checkpoint{}, false, nil
	}
	return cp, ok, err
}

// PositionSnapshot is the JSON-serialized form of position.Global, kept
// free of an import on the position package so persistence stays a leaf
// dependency; the engine converts at the call site.
type PositionSnapshot struct {
	ReservePositions map[string]uint64 `json:"reserve_positions"`
	BasePosition     uint64            `json:"base_position"`
}

// SavePosition persists the engine's full inventory snapshot, overwriting
// whatever was saved before.
func (s *Store) SavePosition(snap PositionSnapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("persistence: marshaling position snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(positionKey), body)
	})
}

// LoadPosition returns the last persisted inventory snapshot, and
// ok=false if the engine has never checkpointed its position.
func (s *Store) LoadPosition() (snap PositionSnapshot, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get([]byte(positionKey))
		if getErr != nil {
			return getErr
		}
		return item.Value(func(v []byte) error {
			if jsonErr := json.Unmarshal(v, &snap); jsonErr != nil {
				return jsonErr
			}
			ok = true
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return PositionSnapshot{}, false, nil
	}
	return snap, ok, err
}

// badgerLogger bridges Badger's printf-style Logger interface onto the
// engine's structured slog.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.logger.Error(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.logger.Warn(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.logger.Info(fmt.Sprintf(format, args...))
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.logger.Debug(fmt.Sprintf(format, args...))
}
