// Package config loads the engine's YAML + environment configuration
// into a process-wide singleton, following the same
// load-file-then-overlay-environment shape used throughout this
// codebase's ancestry.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/blinklabs-io/shai/internal/poolstate"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Debug       DebugConfig       `yaml:"debug"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Storage     StorageConfig     `yaml:"storage"`
	Cache       CacheConfig       `yaml:"cache"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Venue       VenueConfig       `yaml:"venue"`
	Trading     TradingConfig     `yaml:"trading"`
	Pairs       []PairConfig      `yaml:"pairs"`
	Signal      []SignalConfig    `yaml:"signal"`
	ListenAddress string          `yaml:"listenAddress" envconfig:"LISTEN_ADDRESS"`
	ListenPort    uint            `yaml:"port" envconfig:"PORT"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LOGGING_LEVEL"`
}

// DebugConfig configures the pprof debug listener; ListenPort 0 disables it.
type DebugConfig struct {
	ListenAddress string `yaml:"address" envconfig:"DEBUG_ADDRESS"`
	ListenPort    uint   `yaml:"port" envconfig:"DEBUG_PORT"`
}

// MetricsConfig configures the Prometheus /metrics listener; ListenPort 0
// disables it.
type MetricsConfig struct {
	ListenPort uint `yaml:"port" envconfig:"METRICS_PORT"`
}

// IndexerConfig points at the chain indexer's read API.
type IndexerConfig struct {
	BaseURL string `yaml:"baseUrl" envconfig:"INDEXER_BASE_URL"`
}

// VenueConfig points at the execution venue; empty Address keeps the
// engine in simulation mode (swapper.NewSimulation, no venue client).
type VenueConfig struct {
	Address        string  `yaml:"address" envconfig:"VENUE_ADDRESS"`
	SlippageBps    float64 `yaml:"slippageBps" envconfig:"VENUE_SLIPPAGE_BPS"`
	SubmitURL      string  `yaml:"submitUrl" envconfig:"VENUE_SUBMIT_URL"`
	SigningKeySeed string  `yaml:"signingKeySeedHex" envconfig:"VENUE_SIGNING_KEY_SEED_HEX"`
}

// StorageConfig points at the embedded checkpoint/position store.
type StorageConfig struct {
	Directory string `yaml:"dir" envconfig:"STORAGE_DIR"`
}

// CacheConfig points at the Parquet replay cache used by backtests.
type CacheConfig struct {
	Directory string `yaml:"dir" envconfig:"CACHE_DIR"`
}

// TradingConfig mirrors engine.Config's scalar knobs, kept separate from
// the engine package to avoid a config->engine import cycle; cmd/shaimm
// translates this into an engine.Config at startup.
type TradingConfig struct {
	TradingStepSeconds       int     `yaml:"tradingStepSeconds" envconfig:"TRADING_STEP_SECONDS"`
	MarketUpdateStepSeconds  int     `yaml:"marketUpdateStepSeconds" envconfig:"MARKET_UPDATE_STEP_SECONDS"`
	SyncPositionsStepSeconds int     `yaml:"syncPositionsStepSeconds" envconfig:"SYNC_POSITIONS_STEP_SECONDS"`
	RiskCoef                 float64 `yaml:"riskCoef" envconfig:"RISK_COEF"`
	ImpactDecaySeconds       uint32  `yaml:"impactDecaySeconds" envconfig:"IMPACT_DECAY_SECONDS"`
	LagTradeLimitSeconds     int     `yaml:"lagTradeLimitSeconds" envconfig:"LAG_TRADE_LIMIT_SECONDS"`
	SignalCap                float64 `yaml:"signalCap" envconfig:"SIGNAL_CAP"`
	FeePaymentMicroUnits     uint64  `yaml:"feePaymentMicroUnits" envconfig:"FEE_PAYMENT_MICRO_UNITS"`
}

// PairConfig names one traded pair by asset id and the on-chain pool
// address that emits its transactions. PoolAddress is only required in
// production mode (Venue.Address set); simulation drives pairs directly
// from a replay sequence instead of a live pool address.
type PairConfig struct {
	ReserveAssetID uint64 `yaml:"reserveAssetId"`
	BaseAssetID    uint64 `yaml:"baseAssetId"`
	PoolAddress    string `yaml:"poolAddress"`
}

// AsPairKey converts to the engine's PairKey type.
func (p PairConfig) AsPairKey() poolstate.PairKey {
	return poolstate.PairKey{ReserveAssetID: p.ReserveAssetID, BaseAssetID: p.BaseAssetID}
}

// SignalConfig configures one EMA-residual component of the signal.
type SignalConfig struct {
	TauSeconds float64 `yaml:"tauSeconds"`
	Beta       float64 `yaml:"beta"`
}

// Singleton config instance with default values.
var globalConfig = &Config{
	ListenPort: 3000,
	Logging: LoggingConfig{
		Level: "info",
	},
	Debug: DebugConfig{
		ListenAddress: "localhost",
		ListenPort:    0,
	},
	Metrics: MetricsConfig{
		ListenPort: 0,
	},
	Storage: StorageConfig{
		Directory: "./.shaimm/checkpoint",
	},
	Cache: CacheConfig{
		Directory: "./.shaimm/cache",
	},
	Trading: TradingConfig{
		TradingStepSeconds:       60,
		MarketUpdateStepSeconds:  60,
		SyncPositionsStepSeconds: 300,
		ImpactDecaySeconds:       300,
		LagTradeLimitSeconds:     3600,
		SignalCap:                1.0,
		FeePaymentMicroUnits:     2000,
	},
}

// Load reads configFile as YAML into the global config, then overlays
// environment variables, then validates.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %s", err)
		}
		if err := yaml.Unmarshal(buf, globalConfig); err != nil {
			return nil, fmt.Errorf("error parsing config file: %s", err)
		}
	}
	// "dummy" as the app name (mostly) prevents picking up env vars we
	// haven't explicitly annotated above.
	if err := envconfig.Process("dummy", globalConfig); err != nil {
		return nil, fmt.Errorf("error processing environment: %s", err)
	}
	if len(globalConfig.Pairs) == 0 {
		return nil, fmt.Errorf("config: at least one pair must be configured")
	}
	return globalConfig, nil
}

// GetConfig returns the global config instance.
func GetConfig() *Config {
	return globalConfig
}
