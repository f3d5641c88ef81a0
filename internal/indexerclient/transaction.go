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

package indexerclient

// TxType discriminates a Transaction's payload.
type TxType int

const (
	TxTypeAppl TxType = iota
	TxTypePay
	TxTypeAxfer
)

// ApplPayload is the local-state-delta payload of an application call
// transaction that updates pool reserves.
type ApplPayload struct {
	// LocalStateDelta maps integer keys to integer values; only "s1"/"s2"
	// are meaningful to this engine (reserve amounts).
	LocalStateDelta map[string]int64
}

// PayPayload is a native-asset (base-asset) payment transaction.
type PayPayload struct {
	Receiver string
	CloseTo  string
	Amount   uint64
}

// AxferPayload is an asset-transfer (reserve-asset) transaction.
type AxferPayload struct {
	AssetID  uint64
	Receiver string
	CloseTo  string
	Amount   uint64
}

// Transaction is the tagged union decoded once at the indexer-client
// boundary. Downstream code (the reconstructor) never inspects raw JSON;
// it switches on Type and reads exactly one of the payload fields.
type Transaction struct {
	Type         TxType
	Sender       string
	RoundTime    int64 // unix seconds
	ConfirmedRound uint64

	Appl  *ApplPayload
	Pay   *PayPayload
	Axfer *AxferPayload
}

// Amount returns the unsigned transfer amount and asset id for Pay/Axfer
// transactions, along with the counterparty and close-to addresses. ok is
// false for Appl transactions, which carry no transfer amount.
func (t Transaction) Amount() (assetID uint64, receiver, closeTo string, amount uint64, ok bool) {
	switch t.Type {
	case TxTypePay:
		return 0, t.Pay.Receiver, t.Pay.CloseTo, t.Pay.Amount, true
	case TxTypeAxfer:
		return t.Axfer.AssetID, t.Axfer.Receiver, t.Axfer.CloseTo, t.Axfer.Amount, true
	default:
		return 0, "", "", 0, false
	}
}
