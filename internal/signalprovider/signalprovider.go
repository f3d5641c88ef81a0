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

// Package signalprovider implements the streaming price-to-predicted
// forward-return providers: the default EMA-residual linear combiner, plus
// fixed and random variants used in tests and simulation.
package signalprovider

import (
	"math"
	"math/rand"
	"time"
)

// Provider predicts a forward log-return in bps from a stream of prices.
type Provider interface {
	// Update feeds a new (t, price) sample.
	Update(t time.Time, price float64)
	// Value returns the current signal value in bps.
	Value() float64
}

// Component is one (timescale, weight) pair of the EMA-residual combiner.
type Component struct {
	TauSeconds float64
	Beta       float64
}

type emaState struct {
	tau       float64
	beta      float64
	hasSample bool
	lastT     time.Time
	mean      float64
}

// EMAResidual is the default SignalProvider: a linear combination of
// residuals between price and several exponential moving averages at
// different timescales, clamped to [-cap, +cap].
type EMAResidual struct {
	components []*emaState
	cap        float64
	value      float64
}

// NewEMAResidual constructs an EMAResidual provider. cap must be in (0,1].
func NewEMAResidual(components []Component, cap float64) *EMAResidual {
	if cap <= 0 || cap > 1 {
		panic("signalprovider: cap must be in (0,1]")
	}
	states := make([]*emaState, len(components))
	for i, c := range components {
		states[i] = &emaState{tau: c.TauSeconds, beta: c.Beta}
	}
	return &EMAResidual{components: states, cap: cap}
}

// Update feeds a new sample to every EMA component and recomputes value.
func (e *EMAResidual) Update(t time.Time, price float64) {
	raw := 0.0
	for _, c := range e.components {
		if !c.hasSample {
			c.mean = price
			c.hasSample = true
		} else {
			elapsed := t.Sub(c.lastT).Seconds()
			alpha := 1 - math.Exp(-elapsed/c.tau)
			c.mean = alpha*price + (1-alpha)*c.mean
		}
		c.lastT = t

		feature := (price - c.mean) / price
		raw += c.beta * feature
	}
	e.value = clamp(raw, -e.cap, e.cap)
}

// Value returns the clamped signal value in bps.
func (e *EMAResidual) Value() float64 {
	return e.value
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dummy is a constant (optionally alternating) signal provider, used in
// tests to exercise the optimizer without real price history.
type Dummy struct {
	value     float64
	alternate bool
	sign      float64
}

// NewDummy constructs a Dummy provider with a fixed value, optionally
// flipping sign on every Update call.
func NewDummy(value float64, alternate bool) *Dummy {
	return &Dummy{value: value, alternate: alternate, sign: 1}
}

func (d *Dummy) Update(_ time.Time, _ float64) {
	if d.alternate {
		d.sign = -d.sign
	}
}

func (d *Dummy) Value() float64 {
	return d.sign * d.value
}

// Random draws a fresh N(0, std^2) value on every update. Simulation only.
type Random struct {
	stdBps float64
	value  float64
	rng    *rand.Rand
}

// NewRandom constructs a Random provider. seed makes draws reproducible,
// matching the simulator's determinism requirement.
func NewRandom(stdBps float64, seed int64) *Random {
	return &Random{stdBps: stdBps, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Update(_ time.Time, _ float64) {
	r.value = r.rng.NormFloat64() * r.stdBps
}

func (r *Random) Value() float64 {
	return r.value
}
