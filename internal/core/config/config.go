// Package config provides configuration management for cardwright services.
package config

import (
	"os"
	"strings"
	"time"
)

// Environment-only secrets.
const (
	// EnvAPIToken authenticates callers of the gRPC services this process serves.
	EnvAPIToken = "CW_API_TOKEN"
	// EnvValidatorToken authenticates this process against a remote validator.
	EnvValidatorToken = "CW_VALIDATOR_TOKEN"
)

// ServerConfig holds configuration for the gRPC expression service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration

	// ResolverTimeout bounds catalog snapshot population.
	ResolverTimeout time.Duration
	// MaxFactorFetches bounds concurrent per-parameter factor fetches.
	MaxFactorFetches int
	// LenientUnresolved drops unresolved operands when parsing instead of failing.
	LenientUnresolved bool

	// MetricsAddr serves /metrics when non-empty (e.g. ":9090").
	MetricsAddr string
	// ValidatorAddr routes validation to a remote validator when non-empty;
	// otherwise the local evaluator is used.
	ValidatorAddr string
	// ValidatorTimeout bounds each remote validator call.
	ValidatorTimeout time.Duration

	// APIToken and ValidatorToken are read from the environment only.
	APIToken       string
	ValidatorToken string
}

// DefaultServerConfig returns configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:             "0.0.0.0",
		Port:             50061,
		RequestTimeout:   30 * time.Second,
		ResolverTimeout:  10 * time.Second,
		ValidatorTimeout: 10 * time.Second,
		MaxFactorFetches: 8,
	}
}

// Secrets reads the environment-only tokens. Surrounding whitespace is
// trimmed; unset variables yield empty tokens.
func Secrets() (apiToken, validatorToken string) {
	return strings.TrimSpace(os.Getenv(EnvAPIToken)), strings.TrimSpace(os.Getenv(EnvValidatorToken))
}
