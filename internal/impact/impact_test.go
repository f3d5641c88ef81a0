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

package impact_test

import (
	"math"
	"testing"
	"time"

	"github.com/blinklabs-io/shai/internal/impact"
)

func TestValueZeroBeforeFirstUpdate(t *testing.T) {
	s := impact.New(600)
	if v := s.Value(time.Unix(1000, 0)); v != 0 {
		t.Fatalf("expected 0 before first update, got %v", v)
	}
}

func TestUpdateThenDecayExponential(t *testing.T) {
	decaySeconds := uint32(120)
	s := impact.New(decaySeconds)

	t0 := time.Unix(1_700_000_000, 0).UTC()
	// Buy 10% of a 1,000,000-unit reserve asset pool.
	s.Update(t0, false, 100_000, 1_000_000)

	v0 := s.Value(t0)
	if v0 <= 0 {
		t.Fatalf("expected positive impact immediately after buy, got %v", v0)
	}

	t1 := t0.Add(time.Duration(decaySeconds) * time.Second)
	got := s.Value(t1)
	want := v0 * math.Exp(-1)
	if math.Abs(got-want) > want*1e-9 {
		t.Fatalf("decay after one tau: got %v, want %v", got, want)
	}
}

func TestUpdateAccumulatesWithPriorDecay(t *testing.T) {
	s := impact.New(100)
	t0 := time.Unix(2_000_000_000, 0).UTC()
	s.Update(t0, false, 50_000, 500_000)
	v0 := s.Value(t0)

	t1 := t0.Add(50 * time.Second)
	s.Update(t1, false, 10_000, 500_000)

	decayedV0 := v0 * math.Exp(-0.5)
	single := impact.New(100)
	single.Update(t1, false, 10_000, 500_000)
	incrementOnly := single.Value(t1)

	want := decayedV0 + incrementOnly
	got := s.Value(t1)
	if math.Abs(got-want) > math.Abs(want)*1e-9+1e-12 {
		t.Fatalf("accumulated impact: got %v, want %v", got, want)
	}
}

func TestUpdateBuyIsBaseNegatesSign(t *testing.T) {
	s := impact.New(600)
	t0 := time.Unix(3_000_000_000, 0).UTC()
	s.Update(t0, true, 50_000, 1_000_000)
	if v := s.Value(t0); v >= 0 {
		t.Fatalf("buying base should push impact negative (reserve gets cheaper), got %v", v)
	}
}

func TestUpdatePanicsWhenBuyExceedsReserves(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic when buyAmount exceeds outReserves")
		}
	}()
	s := impact.New(600)
	s.Update(time.Unix(0, 0), false, 2_000_000, 1_000_000)
}

func TestImpactDeflectionBpsMonotoneInFraction(t *testing.T) {
	prev := -1.0
	for _, f := range []float64{0, 0.01, 0.05, 0.1, 0.3, 0.5, 0.9} {
		got := impact.ImpactDeflectionBps(f)
		if got < prev {
			t.Fatalf("ImpactDeflectionBps not monotone: f=%v got %v after %v", f, got, prev)
		}
		prev = got
	}
	if impact.ImpactDeflectionBps(0) != 0 {
		t.Fatalf("expected zero deflection at zero fraction, got %v", impact.ImpactDeflectionBps(0))
	}
}

func TestImpactDeflectionBpsPanicsOutOfRange(t *testing.T) {
	for _, f := range []float64{-0.1, 1.0, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for assetPoolFraction=%v", f)
				}
			}()
			impact.ImpactDeflectionBps(f)
		}()
	}
}

// TestScenarioImpactDecayExactValue reproduces the canonical decay
// scenario: a trade that pushes impact to 0.002, then a wait of exactly
// tau seconds with no further trades. value(t) must land at
// 0.002 * e^-1 ~= 0.000736 to six decimals.
func TestScenarioImpactDecayExactValue(t *testing.T) {
	const tau = 300
	s := impact.New(tau)

	t0 := time.Unix(1_650_000_000, 0).UTC()
	const outReserves = 1_000_000_000
	const buyAmount = 998_502 // sized so ImpactDeflectionBps(buy/outReserves) ~= 0.002
	s.Update(t0, false, buyAmount, outReserves)

	v0 := s.Value(t0)
	if math.Abs(v0-0.002) > 1e-5 {
		t.Fatalf("expected initial impact ~0.002, got %v", v0)
	}

	t1 := t0.Add(tau * time.Second)
	got := s.Value(t1)
	want := 0.000736
	if math.Round(got*1e6)/1e6 != want {
		t.Fatalf("decayed impact: got %.6f, want %.6f", got, want)
	}
}

// A trade that would push |value_bps| to or past 1 must be rejected rather
// than silently saturated: an impact of 100% would imply one side of the
// pool is driven to zero.
func TestUpdatePanicsOnImpactSaturation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on impact saturation")
		}
	}()
	s := impact.New(600)
	t0 := time.Unix(0, 0)
	// Buying 99.999...% of reserves drives the deflection far past 1.
	s.Update(t0, false, 999_999, 1_000_000)
}
