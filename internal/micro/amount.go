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

// Package micro provides a newtype for integer micro-unit on-chain amounts
// (10^-6 of nominal), preventing accidental mixing of nominal and
// micro-unit quantities in arithmetic.
package micro

import "fmt"

// Amount is a non-negative quantity expressed in micro-units (10^-6 of
// nominal). All reserve and trade amounts in this module are Amount.
type Amount uint64

// Signed is a micro-unit quantity that may be negative, used for signed
// trade legs where sign indicates direction relative to the pool.
type Signed int64

// Float64 converts to a floating point nominal-unit value for display and
// signal computation; never used for accounting decisions.
func (a Amount) Float64() float64 {
	return float64(a) / 1e6
}

func (a Amount) String() string {
	return fmt.Sprintf("%dµ", uint64(a))
}

// Signed returns the amount as a Signed with the given sign applied.
func (a Amount) Signed(negative bool) Signed {
	if negative {
		return -Signed(a)
	}
	return Signed(a)
}

func (s Signed) String() string {
	return fmt.Sprintf("%dµ", int64(s))
}

// Abs returns the unsigned magnitude as an Amount.
func (s Signed) Abs() Amount {
	if s < 0 {
		return Amount(-s)
	}
	return Amount(s)
}

// Sign returns -1, 0, or 1.
func (s Signed) Sign() int {
	switch {
	case s < 0:
		return -1
	case s > 0:
		return 1
	default:
		return 0
	}
}
