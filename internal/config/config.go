// Package config provides runtime configuration values for the service.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds configuration knobs for the HTTP server, backend and checkout.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	Backend     string
	DatabaseURL string
	SeedFile    string

	CheckoutRatePerSec    float64
	CheckoutBurst         int
	CheckoutMaxConcurrent int

	StreamBuffer int

	// Carts and checkout buckets idle for CartIdleTTL are evicted every
	// SweepInterval.
	CartIdleTTL   time.Duration
	SweepInterval time.Duration
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

var defaults = map[string]any{
	"HTTP_ADDR":               ":8080",
	"SHUTDOWN_TIMEOUT":        15,
	"LOG_LEVEL":               "info",
	"BACKEND":                 BackendMemory,
	"CHECKOUT_RATE_PER_SEC":   1.0,
	"CHECKOUT_BURST":          3,
	"CHECKOUT_MAX_CONCURRENT": 10,
	"STREAM_BUFFER":           16,
	"CART_IDLE_TTL":           1800,
	"SWEEP_INTERVAL":          60,
}

// positive keeps n when it is above zero. Malformed values read as zero, so
// they fall back to def as well.
func positive[T int | float64](n, def T) T {
	if n > 0 {
		return n
	}
	return def
}

func intOf(v *viper.Viper, key string) int {
	return positive(v.GetInt(key), defaults[key].(int))
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(intOf(v, key)) * time.Second
}

// Load collects configuration from environment with defaults. Empty
// variables count as unset.
func Load() Config {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration through v, which may already carry bound
// command-line flags. Durations are given in seconds.
func LoadFrom(v *viper.Viper) Config {
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	return Config{
		HTTPAddr:              v.GetString("HTTP_ADDR"),
		ShutdownTimeout:       seconds(v, "SHUTDOWN_TIMEOUT"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		Backend:               v.GetString("BACKEND"),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		SeedFile:              v.GetString("SEED_FILE"),
		CheckoutRatePerSec:    positive(v.GetFloat64("CHECKOUT_RATE_PER_SEC"), defaults["CHECKOUT_RATE_PER_SEC"].(float64)),
		CheckoutBurst:         intOf(v, "CHECKOUT_BURST"),
		CheckoutMaxConcurrent: intOf(v, "CHECKOUT_MAX_CONCURRENT"),
		StreamBuffer:          intOf(v, "STREAM_BUFFER"),
		CartIdleTTL:           seconds(v, "CART_IDLE_TTL"),
		SweepInterval:         seconds(v, "SWEEP_INTERVAL"),
	}
}
