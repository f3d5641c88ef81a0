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

package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-retryablehttp"
	_ "go.uber.org/automaxprocs"

	"github.com/blinklabs-io/shai/internal/config"
	"github.com/blinklabs-io/shai/internal/engine"
	"github.com/blinklabs-io/shai/internal/indexerclient"
	"github.com/blinklabs-io/shai/internal/logging"
	"github.com/blinklabs-io/shai/internal/metrics"
	"github.com/blinklabs-io/shai/internal/micro"
	"github.com/blinklabs-io/shai/internal/persistence"
	"github.com/blinklabs-io/shai/internal/poolstate"
	"github.com/blinklabs-io/shai/internal/pricevolumestream"
	"github.com/blinklabs-io/shai/internal/swapper"
	"github.com/blinklabs-io/shai/internal/trading"
	"github.com/blinklabs-io/shai/internal/venue"
	"github.com/blinklabs-io/shai/internal/version"
)

const programName = "shaimm"

var cmdlineFlags struct {
	configFile string
	version    bool
}

func main() {
	flag.StringVar(&cmdlineFlags.configFile, "config", "", "path to config file to load")
	flag.BoolVar(&cmdlineFlags.version, "version", false, "show version")
	flag.Parse()

	if cmdlineFlags.version {
		fmt.Printf("%s %s\n", programName, version.GetVersionString())
		os.Exit(0)
	}

	cfg, err := config.Load(cmdlineFlags.configFile)
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}

	logging.Configure()
	logger := logging.GetLogger()

	if cfg.Debug.ListenPort > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		addr := fmt.Sprintf("%s:%d", cfg.Debug.ListenAddress, cfg.Debug.ListenPort)
		logger.Info("starting debug listener", "address", addr)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("debug listener failed", "error", err)
			}
		}()
	}

	metricsSrv := metrics.NewServer(int(cfg.Metrics.ListenPort))
	if metricsSrv != nil {
		logger.Info("starting metrics listener", "port", cfg.Metrics.ListenPort)
		go func() {
			if err := metricsSrv.Start(); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	store, err := persistence.Open(cfg.Storage.Directory, logger)
	if err != nil {
		logger.Error("failed to open persistence store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	eng, err := buildEngine(cfg)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	eng.SetPersistence(store)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting engine", "pairs", len(cfg.Pairs), "simulation", cfg.Venue.Address == "")
	eng.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()
	if err := metricsSrv.Stop(shutdownCtx); err != nil {
		logger.Warn("metrics listener shutdown failed", "error", err)
	}
}

// loggingTradeLogger forwards every fill to the structured logger; a
// durable trade-history sink is an explicit non-goal.
type loggingTradeLogger struct{}

func (loggingTradeLogger) LogTrade(f trading.Fill) {
	logging.GetLogger().Info("trade filled",
		"pair", f.Pair.String(),
		"direction", f.Direction.String(),
		"amount_out", uint64(f.AmountOut),
		"amount_in", uint64(f.AmountIn),
		"total_cost", f.Costs.Total(),
	)
}

func buildEngineConfig(cfg *config.Config) engine.Config {
	pairs := make([]poolstate.PairKey, len(cfg.Pairs))
	for i, p := range cfg.Pairs {
		pairs[i] = p.AsPairKey()
	}
	signalParams := make([]engine.SignalParam, len(cfg.Signal))
	for i, s := range cfg.Signal {
		signalParams[i] = engine.SignalParam{TauSeconds: s.TauSeconds, Beta: s.Beta}
	}
	return engine.Config{
		TradingStepSeconds:       cfg.Trading.TradingStepSeconds,
		MarketUpdateStepSeconds:  cfg.Trading.MarketUpdateStepSeconds,
		SyncPositionsStepSeconds: cfg.Trading.SyncPositionsStepSeconds,
		RiskCoef:                 cfg.Trading.RiskCoef,
		ImpactDecaySeconds:       cfg.Trading.ImpactDecaySeconds,
		SlippageBps:              cfg.Venue.SlippageBps,
		LagTradeLimitSeconds:     cfg.Trading.LagTradeLimitSeconds,
		Pairs:                    pairs,
		SignalParams:             signalParams,
		SignalCap:                cfg.Trading.SignalCap,
		FeePaymentMicroUnits:     cfg.Trading.FeePaymentMicroUnits,
	}
}

// buildEngine constructs the Engine in simulation mode (cfg.Venue.Address
// empty: swapper.Simulation, no venue, no live price stream) or production
// mode (a real venue.Production backed by the indexer and a submission
// endpoint, feeding the engine through a pricevolumestream.Stream).
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	engCfg := buildEngineConfig(cfg)
	tl := loggingTradeLogger{}

	if cfg.Venue.Address == "" {
		return engine.New(engCfg, nil, swapper.NewSimulation(), nil, tl, nil), nil
	}

	if cfg.Indexer.BaseURL == "" {
		return nil, fmt.Errorf("venue.address is set but indexer.baseUrl is empty")
	}
	client := indexerclient.New(cfg.Indexer.BaseURL)

	poolAddresses := make(map[poolstate.PairKey]string, len(cfg.Pairs))
	specs := make([]pricevolumestream.PoolSpec, len(cfg.Pairs))
	for i, p := range cfg.Pairs {
		if p.PoolAddress == "" {
			return nil, fmt.Errorf("pair %d/%d is missing poolAddress, required in production mode", p.ReserveAssetID, p.BaseAssetID)
		}
		pair := p.AsPairKey()
		poolAddresses[pair] = p.PoolAddress
		specs[i] = pricevolumestream.PoolSpec{Address: p.PoolAddress, Pair: pair}
	}
	stream := pricevolumestream.New(client, specs, cfg.Trading.FeePaymentMicroUnits, true)

	signingKey, err := decodeSigningKey(cfg.Venue.SigningKeySeed)
	if err != nil {
		return nil, fmt.Errorf("decoding venue signing key: %w", err)
	}

	submitClient := retryablehttp.NewClient()
	submitClient.RetryMax = 5
	submitClient.Logger = nil

	pairs := make([]poolstate.PairKey, len(cfg.Pairs))
	for i, p := range cfg.Pairs {
		pairs[i] = p.AsPairKey()
	}

	v := venue.NewProduction(
		signingKey,
		cfg.Venue.Address,
		reservesFn(client, poolAddresses),
		submitFn(submitClient, cfg.Venue.SubmitURL),
		excessFn(),
		optinFn(client, submitClient, cfg.Venue.SubmitURL, signingKey, pairs),
	)
	if err := v.EnsureOptedIn(context.Background()); err != nil {
		return nil, fmt.Errorf("opting in: %w", err)
	}

	return engine.New(engCfg, stream, swapper.NewProduction(v, true), v, tl, nil), nil
}

func decodeSigningKey(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// reservesFn reads a pool's current reserves from its own account
// balances on the indexer.
func reservesFn(client *indexerclient.Client, poolAddresses map[poolstate.PairKey]string) func(ctx context.Context, pair poolstate.PairKey) (venue.PoolReserves, error) {
	return func(ctx context.Context, pair poolstate.PairKey) (venue.PoolReserves, error) {
		addr, ok := poolAddresses[pair]
		if !ok {
			return venue.PoolReserves{}, fmt.Errorf("no pool address configured for pair %s", pair)
		}
		info, err := client.FetchAccount(ctx, addr)
		if err != nil {
			return venue.PoolReserves{}, err
		}
		return venue.PoolReserves{
			ReserveAmount: micro.Amount(info.Assets[pair.ReserveAssetID]),
			BaseAmount:    micro.Amount(info.Assets[pair.BaseAssetID]),
		}, nil
	}
}

// excessFn reports zero redeemable excess: this indexer's read API has no
// excess-value protocol to query, unlike the fixed-output swap path which
// is computed locally from tracked reserves.
func excessFn() func(ctx context.Context, pair poolstate.PairKey, address string) (venue.RedeemedAmounts, error) {
	return func(ctx context.Context, pair poolstate.PairKey, address string) (venue.RedeemedAmounts, error) {
		return venue.RedeemedAmounts{}, nil
	}
}

// optinFn checks each traded pair's assets against the venue account's
// current holdings and submits a zero-value opt-in transaction for any
// asset not yet held, mirroring ProductionSwapper._asset_optin's
// account-info scan. Assets already present in the account's balance map
// are treated as already opted in.
func optinFn(client *indexerclient.Client, submitClient *retryablehttp.Client, submitURL string, signingKey ed25519.PrivateKey, pairs []poolstate.PairKey) func(ctx context.Context, address string) error {
	submit := submitFn(submitClient, submitURL)
	return func(ctx context.Context, address string) error {
		info, err := client.FetchAccount(ctx, address)
		if err != nil {
			return err
		}
		assetIDs := make(map[uint64]struct{}, len(pairs)*2)
		for _, p := range pairs {
			assetIDs[p.ReserveAssetID] = struct{}{}
			assetIDs[p.BaseAssetID] = struct{}{}
		}
		for assetID := range assetIDs {
			if assetID == 0 {
				continue // the native base asset is always held, never opted into
			}
			if _, held := info.Assets[assetID]; held {
				continue
			}
			payload := []byte(fmt.Sprintf("optin|%d|%s", assetID, address))
			sig := ed25519.Sign(signingKey, payload)
			if _, err := submit(ctx, payload, sig); err != nil {
				return fmt.Errorf("asset %d: %w", assetID, err)
			}
		}
		return nil
	}
}

func submitFn(client *retryablehttp.Client, submitURL string) func(ctx context.Context, payload, sig []byte) (string, error) {
	return func(ctx context.Context, payload, sig []byte) (string, error) {
		body, err := json.Marshal(struct {
			PayloadHex   string `json:"payload_hex"`
			SignatureHex string `json:"signature_hex"`
		}{
			PayloadHex:   hex.EncodeToString(payload),
			SignatureHex: hex.EncodeToString(sig),
		})
		if err != nil {
			return "", err
		}
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, submitURL, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("submit: unexpected status %d", resp.StatusCode)
		}
		var wire struct {
			TxID string `json:"txid"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return "", err
		}
		return wire.TxID, nil
	}
}
