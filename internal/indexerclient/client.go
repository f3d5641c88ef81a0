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

// Package indexerclient is a paginated, rate-limited HTTP client against
// the chain indexer's read API (GET /v2/transactions, /v2/accounts,
// /v2/blocks), decoding raw JSON into the Transaction tagged union at the
// boundary.
package indexerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/shaierrors"
)

const rateLimitBackoff = 5 * time.Second

// Client wraps a retrying HTTP client pointed at one indexer base URL.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// New constructs a Client. Trailing slashes on baseURL are trimmed.
func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 5
	rc.Logger = nil
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: rc}
}

// QueryOpts bounds a transaction query.
type QueryOpts struct {
	TxType      string // optional: "appl", "pay", "axfer"
	BeforeTime  time.Time
	AfterTime   time.Time
	MinRound    uint64
	NextToken   string
}

// TxPage is one page of the paginated transaction query.
type TxPage struct {
	Transactions []Transaction
	NextToken    string
}

type wireEnvelope struct {
	Transactions []wireTransaction `json:"transactions"`
	NextToken    string            `json:"next-token"`
}

type wireTransaction struct {
	TxType        string `json:"tx-type"`
	Sender        string `json:"sender"`
	RoundTime     int64  `json:"round-time"`
	ConfirmedRound uint64 `json:"confirmed-round"`

	PaymentTransaction *struct {
		Receiver string `json:"receiver"`
		CloseTo  string `json:"close-to"`
		Amount   uint64 `json:"amount"`
	} `json:"payment-transaction"`

	AssetTransferTransaction *struct {
		AssetID  uint64 `json:"asset-id"`
		Receiver string `json:"receiver"`
		CloseTo  string `json:"close-to"`
		Amount   uint64 `json:"amount"`
	} `json:"asset-transfer-transaction"`

	LocalStateDelta []struct {
		Key   string `json:"key"`
		Value struct {
			Int *int64 `json:"uint,omitempty"`
		} `json:"value"`
	} `json:"local-state-delta"`
}

func decodeTransaction(w wireTransaction) (Transaction, error) {
	tx := Transaction{
		Sender:         w.Sender,
		RoundTime:      w.RoundTime,
		ConfirmedRound: w.ConfirmedRound,
	}
	switch w.TxType {
	case "appl":
		tx.Type = TxTypeAppl
		delta := make(map[string]int64, len(w.LocalStateDelta))
		for _, kv := range w.LocalStateDelta {
			if kv.Value.Int != nil {
				delta[kv.Key] = *kv.Value.Int
			}
		}
		tx.Appl = &ApplPayload{LocalStateDelta: delta}
	case "pay":
		if w.PaymentTransaction == nil {
			return Transaction{}, fmt.Errorf("%w: pay transaction missing payment-transaction", shaierrors.ErrMalformedTx)
		}
		tx.Type = TxTypePay
		tx.Pay = &PayPayload{
			Receiver: w.PaymentTransaction.Receiver,
			CloseTo:  w.PaymentTransaction.CloseTo,
			Amount:   w.PaymentTransaction.Amount,
		}
	case "axfer":
		if w.AssetTransferTransaction == nil {
			return Transaction{}, fmt.Errorf("%w: axfer transaction missing asset-transfer-transaction", shaierrors.ErrMalformedTx)
		}
		tx.Type = TxTypeAxfer
		tx.Axfer = &AxferPayload{
			AssetID:  w.AssetTransferTransaction.AssetID,
			Receiver: w.AssetTransferTransaction.Receiver,
			CloseTo:  w.AssetTransferTransaction.CloseTo,
			Amount:   w.AssetTransferTransaction.Amount,
		}
	default:
		return Transaction{}, fmt.Errorf("%w: unsupported tx-type %q", shaierrors.ErrMalformedTx, w.TxType)
	}
	return tx, nil
}

// FetchTransactionsPage issues one GET /v2/transactions request for the
// given addresses and options. Callers drive pagination by feeding the
// returned NextToken back into opts.NextToken until it is empty.
func (c *Client) FetchTransactionsPage(ctx context.Context, addrs []string, opts QueryOpts) (*TxPage, error) {
	logger := logging.GetLogger()

	q := url.Values{}
	q.Set("address", strings.Join(addrs, ","))
	if opts.TxType != "" {
		q.Set("tx-type", opts.TxType)
	}
	if !opts.BeforeTime.IsZero() {
		q.Set("before-time", opts.BeforeTime.UTC().Format(time.RFC3339))
	}
	if !opts.AfterTime.IsZero() {
		q.Set("after-time", opts.AfterTime.UTC().Format(time.RFC3339))
	}
	if opts.MinRound > 0 {
		q.Set("min-round", strconv.FormatUint(opts.MinRound, 10))
	}
	if opts.NextToken != "" {
		q.Set("next", opts.NextToken)
	}

	reqURL := c.baseURL + "/v2/transactions?" + q.Encode()

	for {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			logger.Warn("indexer rate limited, backing off", "backoff", rateLimitBackoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(rateLimitBackoff):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: indexer returned status %d", shaierrors.ErrNetworkTransient, resp.StatusCode)
		}

		var env wireEnvelope
		decErr := json.NewDecoder(resp.Body).Decode(&env)
		resp.Body.Close()
		if decErr != nil {
			return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, decErr)
		}

		page := &TxPage{NextToken: env.NextToken}
		for _, w := range env.Transactions {
			tx, err := decodeTransaction(w)
			if err != nil {
				logger.Debug("skipping malformed transaction", "error", err)
				continue
			}
			page.Transactions = append(page.Transactions, tx)
		}
		return page, nil
	}
}

// AccountInfo is the decoded account query response.
type AccountInfo struct {
	Address string
	Assets  map[uint64]uint64
}

// FetchAccount fetches current reserves/opt-ins for addr.
func (c *Client) FetchAccount(ctx context.Context, addr string) (*AccountInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/accounts/"+addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: account query status %d", shaierrors.ErrNetworkTransient, resp.StatusCode)
	}

	var wire struct {
		Address string `json:"address"`
		Assets  []struct {
			AssetID uint64 `json:"asset-id"`
			Amount  uint64 `json:"amount"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	info := &AccountInfo{Address: wire.Address, Assets: make(map[uint64]uint64, len(wire.Assets))}
	for _, a := range wire.Assets {
		info.Assets[a.AssetID] = a.Amount
	}
	return info, nil
}

// BlockInfo is the decoded block-timestamp helper response.
type BlockInfo struct {
	Round     uint64
	Timestamp int64
}

// FetchBlock fetches a block's timestamp.
func (c *Client) FetchBlock(ctx context.Context, round uint64) (*BlockInfo, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v2/blocks/%d", c.baseURL, round), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: block query status %d", shaierrors.ErrNetworkTransient, resp.StatusCode)
	}
	var wire struct {
		Round     uint64 `json:"round"`
		Timestamp int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %s", shaierrors.ErrNetworkTransient, err)
	}
	return &BlockInfo{Round: wire.Round, Timestamp: wire.Timestamp}, nil
}
