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

// Package cacher defines the day-partitioned replay cache boundary: one
// day's worth of a pair's reconstructed PoolState observations, keyed by
// (pair, date), so a backtest doesn't have to re-walk the indexer for a
// range it has already reconstructed once.
package cacher

import (
	"time"

	"github.com/blinklabs-io/shai/internal/poolstate"
)

// Writer persists one day's observations for a pair. Day is truncated to
// midnight UTC by the caller; a Writer implementation may assume it
// already is.
type Writer interface {
	WriteDay(pair poolstate.PairKey, day time.Time, states []poolstate.State) error
}

// Reader retrieves a previously cached day, if any. ok is false when the
// day hasn't been cached yet, distinguishing "empty but cached" from
// "never cached".
type Reader interface {
	ReadDay(pair poolstate.PairKey, day time.Time) (states []poolstate.State, ok bool, err error)
}

// ReplayCache is implemented by any component serving both directions;
// parquetcache.Store is the concrete adapter.
type ReplayCache interface {
	Writer
	Reader
}
