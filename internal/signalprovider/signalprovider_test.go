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

package signalprovider_test

import (
	"math"
	"testing"
	"time"

	"github.com/blinklabs-io/shai/internal/signalprovider"
)

func TestEMAResidualConstantPriceConvergesToZero(t *testing.T) {
	p := signalprovider.NewEMAResidual([]signalprovider.Component{
		{TauSeconds: 60, Beta: 1.0},
		{TauSeconds: 600, Beta: -0.5},
	}, 0.01)

	t0 := time.Unix(1_700_000_000, 0).UTC()
	const price = 2.5
	for i := 0; i < 500; i++ {
		p.Update(t0.Add(time.Duration(i)*30*time.Second), price)
	}
	if v := p.Value(); math.Abs(v) > 1e-9 {
		t.Fatalf("expected signal to converge to ~0 under a constant price, got %v", v)
	}
}

func TestEMAResidualRespondsToPriceJump(t *testing.T) {
	p := signalprovider.NewEMAResidual([]signalprovider.Component{
		{TauSeconds: 300, Beta: 1.0},
	}, 1.0)

	t0 := time.Unix(1_700_000_000, 0).UTC()
	p.Update(t0, 1.0)
	p.Update(t0.Add(60*time.Second), 1.0)
	before := p.Value()

	p.Update(t0.Add(120*time.Second), 1.1)
	after := p.Value()

	if math.Abs(before) > 1e-9 {
		t.Fatalf("expected ~0 signal under a flat price before the jump, got %v", before)
	}
	if after <= before {
		t.Fatalf("expected a positive signal reaction to an upward price jump, got %v (was %v)", after, before)
	}
}

func TestEMAResidualClampsToCap(t *testing.T) {
	const cap = 0.005
	p := signalprovider.NewEMAResidual([]signalprovider.Component{
		{TauSeconds: 3600, Beta: 100.0}, // wildly amplified to force saturation
	}, cap)

	t0 := time.Unix(1_700_000_000, 0).UTC()
	p.Update(t0, 1.0)
	p.Update(t0.Add(time.Second), 10.0)

	if v := p.Value(); math.Abs(v) > cap+1e-12 {
		t.Fatalf("expected |value| <= cap=%v, got %v", cap, v)
	}
}

func TestNewEMAResidualPanicsOnInvalidCap(t *testing.T) {
	for _, cap := range []float64{0, -0.1, 1.5} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic for cap=%v", cap)
				}
			}()
			signalprovider.NewEMAResidual(nil, cap)
		}()
	}
}

func TestDummyAlternatesSign(t *testing.T) {
	d := signalprovider.NewDummy(0.002, true)
	first := d.Value()
	d.Update(time.Time{}, 0)
	second := d.Value()
	if first == second {
		t.Fatalf("expected alternating dummy to flip sign across updates: %v -> %v", first, second)
	}
	if math.Abs(first) != math.Abs(second) {
		t.Fatalf("expected alternating dummy to preserve magnitude: %v vs %v", first, second)
	}
}

func TestRandomIsReproducibleFromSeed(t *testing.T) {
	r1 := signalprovider.NewRandom(10, 42)
	r2 := signalprovider.NewRandom(10, 42)
	for i := 0; i < 10; i++ {
		r1.Update(time.Time{}, 0)
		r2.Update(time.Time{}, 0)
		if r1.Value() != r2.Value() {
			t.Fatalf("same seed must produce identical draws, diverged at iteration %d: %v vs %v", i, r1.Value(), r2.Value())
		}
	}
}
