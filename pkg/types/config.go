// Package types provides configuration types for the symphony rebalancing engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// EngineConfig holds the recognized configuration options of spec.md §6,
// loaded by internal/config from YAML/env via viper.
type EngineConfig struct {
	// Window
	WindowStartHHMM  string        `mapstructure:"windowStart"`
	WindowLength     time.Duration `mapstructure:"windowLength"`
	Timezone         string        `mapstructure:"timezone"`

	// Concurrency
	WorkerConcurrency    int           `mapstructure:"workerConcurrency"`
	SymphonyHardTimeout  time.Duration `mapstructure:"symphonyHardTimeout"`

	// Planning defaults
	MinOrderDollars      decimal.Decimal `mapstructure:"minOrderDollars"`
	CashBufferDefault    decimal.Decimal `mapstructure:"cashBufferDefault"`
	CorridorDefault      decimal.Decimal `mapstructure:"corridorDefault"`

	// Market data
	ProviderPriorities []string     `mapstructure:"providerPriorities"`
	CacheTTLs          CacheTTLConfig `mapstructure:"cacheTtls"`

	// Broker
	BrokerBaseURL string `mapstructure:"brokerBaseUrl"`
}

// CacheTTLConfig holds the Market-Data Facade's per-kind cache TTLs
// (spec.md §4.2/§6).
type CacheTTLConfig struct {
	Quote             time.Duration `mapstructure:"quote"`
	Intraday          time.Duration `mapstructure:"intraday"`
	Daily             time.Duration `mapstructure:"daily"`
	HistoricalExtended time.Duration `mapstructure:"historicalExtended"`
	Fundamentals      time.Duration `mapstructure:"fundamentals"`
}

// DefaultEngineConfig returns the documented defaults from spec.md §6/§4.9.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		WindowStartHHMM:     "15:50",
		WindowLength:        10 * time.Minute,
		Timezone:            "America/New_York",
		WorkerConcurrency:   8,
		SymphonyHardTimeout: 9*time.Minute + 30*time.Second,
		MinOrderDollars:     decimal.NewFromInt(10),
		CashBufferDefault:   decimal.Zero,
		CorridorDefault:     decimal.NewFromFloat(0.075),
		ProviderPriorities:  []string{"sourceA", "sourceB"},
		CacheTTLs: CacheTTLConfig{
			Quote:              60 * time.Second,
			Intraday:           time.Hour,
			Daily:              time.Hour,
			HistoricalExtended: 24 * time.Hour,
			Fundamentals:       24 * time.Hour,
		},
		BrokerBaseURL: "https://paper-api.example.com",
	}
}

// KillSwitchConfig controls the Failure Handler's user/symphony-level
// liquidation thresholds (spec.md §4.8).
type KillSwitchConfig struct {
	MaxConsecutiveBrokerRejects int           `json:"maxConsecutiveBrokerRejects"`
	BrokerUnreachablePollCycles int           `json:"brokerUnreachablePollCycles"`
	DataUnavailableRetryDelay  time.Duration `json:"dataUnavailableRetryDelay"`
}

// DefaultKillSwitchConfig returns the thresholds named in spec.md §4.8's
// policy table.
func DefaultKillSwitchConfig() KillSwitchConfig {
	return KillSwitchConfig{
		MaxConsecutiveBrokerRejects: 3,
		BrokerUnreachablePollCycles: 5,
		DataUnavailableRetryDelay:   30 * time.Second,
	}
}

// ServerConfig configures the minimal operator-facing HTTP surface (the
// /healthz liveness endpoint only; spec.md §1 places the real HTTP/GraphQL
// surface out of scope).
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}
