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

// Package impact tracks the exponentially-decaying self-impact a pair's
// own recent trades have inflicted on price, per pair.
package impact

import (
	"math"
	"time"
)

// ImpactDeflectionBps returns the instantaneous fractional price
// deflection (in the other asset per unit of the bought asset) caused by
// taking assetPoolFraction of a pool's reserves of one side in a single
// trade. assetPoolFraction must be in [0, 1).
func ImpactDeflectionBps(assetPoolFraction float64) float64 {
	if assetPoolFraction < 0 || assetPoolFraction >= 1 {
		panic("impact: assetPoolFraction out of range")
	}
	return 1.0/((1.0-assetPoolFraction)*(1.0-assetPoolFraction)) - 1.0
}

// State is the per-pair decaying impact tracker. Zero value is the valid
// initial state: no update yet, value 0.
type State struct {
	decaySeconds float64
	hasUpdate    bool
	lastUpdate   time.Time
	value        float64
}

// New constructs an impact State with the given decay timescale.
func New(decaySeconds uint32) *State {
	return &State{decaySeconds: float64(decaySeconds)}
}

// Update decays the existing state to t, then applies the increment
// produced by buying buyAmount of the bought asset from a pool whose
// reserves of that asset are outReserves. buyIsBase indicates whether the bought asset is
// the pair's base asset (as opposed to its reserve asset).
func (s *State) Update(t time.Time, buyIsBase bool, buyAmount, outReserves uint64) {
	if buyAmount > outReserves {
		panic("impact: buyAmount exceeds outReserves")
	}

	decayed := 0.0
	if s.hasUpdate {
		elapsed := t.Sub(s.lastUpdate).Seconds()
		decayed = s.value * math.Exp(-elapsed/s.decaySeconds)
	}

	fraction := float64(buyAmount) / float64(outReserves)
	defl := ImpactDeflectionBps(fraction)

	var delta float64
	if buyIsBase {
		delta = 1.0/(1.0+defl) - 1.0
	} else {
		delta = defl
	}

	value := decayed + delta
	if math.Abs(value) >= 1 {
		panic("impact: |value_bps| >= 1 after update")
	}

	s.value = value
	s.lastUpdate = t
	s.hasUpdate = true
}

// Value returns the decayed impact value as of t. Returns 0 if Update has
// never been called.
func (s *State) Value(t time.Time) float64 {
	if !s.hasUpdate {
		return 0
	}
	elapsed := t.Sub(s.lastUpdate).Seconds()
	return s.value * math.Exp(-elapsed/s.decaySeconds)
}
