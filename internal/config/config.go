// Package config loads service settings from the environment via Viper,
// with an optional .env file for local runs.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the bridge service.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	DBPath     string `mapstructure:"DB_PATH"`

	DKGNodeURL        string        `mapstructure:"DKG_NODE_URL"`
	DKGTimeout        time.Duration `mapstructure:"DKG_TIMEOUT"`
	PublishRetries    int           `mapstructure:"PUBLISH_RETRIES"`
	PublishBackoff    time.Duration `mapstructure:"PUBLISH_BACKOFF"`
	ChainRPCURL       string        `mapstructure:"CHAIN_RPC_URL"`
	ChainTimeout      time.Duration `mapstructure:"CHAIN_TIMEOUT"`
	PumpControllerURL string        `mapstructure:"PUMP_CONTROLLER_URL"`
	PumpTimeout       time.Duration `mapstructure:"PUMP_TIMEOUT"`

	MinSettlementValue float64       `mapstructure:"MIN_SETTLEMENT_VALUE"`
	SessionIdleExpiry  time.Duration `mapstructure:"SESSION_IDLE_EXPIRY"`
	DispenseLiters     float64       `mapstructure:"DISPENSE_LITERS"`
	DispenseSeconds    int           `mapstructure:"DISPENSE_SECONDS"`

	VerifyCacheSize int    `mapstructure:"VERIFY_CACHE_SIZE"`
	AllowedOrigins  string `mapstructure:"ALLOWED_ORIGINS"`
}

// Load reads configuration from environment variables, falling back to an
// optional .env file in the given path.
func Load(path string) (Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PATH", "majisafe.db")
	viper.SetDefault("DKG_NODE_URL", "http://localhost:8900")
	viper.SetDefault("DKG_TIMEOUT", "15s")
	viper.SetDefault("PUBLISH_RETRIES", 3)
	viper.SetDefault("PUBLISH_BACKOFF", "1s")
	viper.SetDefault("CHAIN_RPC_URL", "")
	viper.SetDefault("CHAIN_TIMEOUT", "10s")
	viper.SetDefault("PUMP_CONTROLLER_URL", "http://192.168.1.100")
	viper.SetDefault("PUMP_TIMEOUT", "10s")
	viper.SetDefault("MIN_SETTLEMENT_VALUE", 0.001)
	viper.SetDefault("SESSION_IDLE_EXPIRY", "10m")
	viper.SetDefault("DISPENSE_LITERS", 10.0)
	viper.SetDefault("DISPENSE_SECONDS", 10)
	viper.SetDefault("VERIFY_CACHE_SIZE", 128)
	viper.SetDefault("ALLOWED_ORIGINS", "*")

	for _, key := range []string{
		"SERVER_PORT", "DB_PATH", "DKG_NODE_URL", "DKG_TIMEOUT",
		"PUBLISH_RETRIES", "PUBLISH_BACKOFF", "CHAIN_RPC_URL", "CHAIN_TIMEOUT",
		"PUMP_CONTROLLER_URL", "PUMP_TIMEOUT", "MIN_SETTLEMENT_VALUE",
		"SESSION_IDLE_EXPIRY", "DISPENSE_LITERS", "DISPENSE_SECONDS",
		"VERIFY_CACHE_SIZE", "ALLOWED_ORIGINS",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("[config] failed to read config file, using environment values: %v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.MinSettlementValue <= 0 {
		log.Printf("[config] non-positive MIN_SETTLEMENT_VALUE %f, using 0.001", cfg.MinSettlementValue)
		cfg.MinSettlementValue = 0.001
	}
	if cfg.PublishRetries < 1 {
		cfg.PublishRetries = 1
	}
	if cfg.DispenseSeconds <= 0 {
		cfg.DispenseSeconds = 10
	}
	if cfg.DispenseLiters <= 0 {
		cfg.DispenseLiters = 10
	}

	return cfg, nil
}

// Origins splits the configured CORS origin list.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
