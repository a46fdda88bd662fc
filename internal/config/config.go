// Package config loads engine configuration the way the teacher's
// cmd/server/main.go wires up flags, generalized to a viper-backed
// loader per SPEC_FULL.md §A (spf13/viper, present but unused in the
// teacher's own go.mod, is given a real home here).
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// decimalDecodeHook lets viper unmarshal decimal.Decimal fields from the
// plain strings config files and env vars carry them as.
func decimalDecodeHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(decimal.Decimal{}) {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		return decimal.NewFromString(s)
	}
}

// Load reads engine configuration from an optional config file, then
// SYMPHONY_-prefixed environment variables, layered over
// types.DefaultEngineConfig.
func Load(configPath string) (types.EngineConfig, error) {
	cfg := types.DefaultEngineConfig()

	v := viper.New()
	v.SetEnvPrefix("SYMPHONY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(decimalDecodeHook())); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg types.EngineConfig) {
	v.SetDefault("windowStart", cfg.WindowStartHHMM)
	v.SetDefault("windowLength", cfg.WindowLength)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("workerConcurrency", cfg.WorkerConcurrency)
	v.SetDefault("symphonyHardTimeout", cfg.SymphonyHardTimeout)
	v.SetDefault("minOrderDollars", cfg.MinOrderDollars.String())
	v.SetDefault("cashBufferDefault", cfg.CashBufferDefault.String())
	v.SetDefault("corridorDefault", cfg.CorridorDefault.String())
	v.SetDefault("providerPriorities", cfg.ProviderPriorities)
	v.SetDefault("brokerBaseUrl", cfg.BrokerBaseURL)
	v.SetDefault("cacheTtls.quote", cfg.CacheTTLs.Quote)
	v.SetDefault("cacheTtls.intraday", cfg.CacheTTLs.Intraday)
	v.SetDefault("cacheTtls.daily", cfg.CacheTTLs.Daily)
	v.SetDefault("cacheTtls.historicalExtended", cfg.CacheTTLs.HistoricalExtended)
	v.SetDefault("cacheTtls.fundamentals", cfg.CacheTTLs.Fundamentals)
}
