package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*ServerConfig, error) {
	v := viper.New()

	// Set defaults matching DefaultServerConfig
	def := DefaultServerConfig()
	v.SetDefault("server.host", def.Host)
	v.SetDefault("server.port", def.Port)
	v.SetDefault("server.request_timeout", def.RequestTimeout.String())
	v.SetDefault("server.resolver_timeout", def.ResolverTimeout.String())
	v.SetDefault("server.max_factor_fetches", def.MaxFactorFetches)
	v.SetDefault("server.lenient_unresolved", def.LenientUnresolved)
	v.SetDefault("server.metrics_addr", def.MetricsAddr)
	v.SetDefault("server.validator_addr", def.ValidatorAddr)
	v.SetDefault("server.validator_timeout", def.ValidatorTimeout.String())

	// Bind environment variables with CW_ prefix
	v.SetEnvPrefix("CW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Security check: reject secrets in config files
	// Secrets must be environment-only per 12-factor principles
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:              v.GetString("server.host"),
		Port:              v.GetInt("server.port"),
		RequestTimeout:    v.GetDuration("server.request_timeout"),
		ResolverTimeout:   v.GetDuration("server.resolver_timeout"),
		MaxFactorFetches:  v.GetInt("server.max_factor_fetches"),
		LenientUnresolved: v.GetBool("server.lenient_unresolved"),
		MetricsAddr:       v.GetString("server.metrics_addr"),
		ValidatorAddr:     v.GetString("server.validator_addr"),
		ValidatorTimeout:  v.GetDuration("server.validator_timeout"),
	}
	cfg.APIToken, cfg.ValidatorToken = Secrets()

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive timeouts and fetch bounds.
func validateConfig(cfg *ServerConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.ResolverTimeout <= 0 {
		return fmt.Errorf("resolver_timeout must be positive, got %v", cfg.ResolverTimeout)
	}
	if cfg.ResolverTimeout > cfg.RequestTimeout {
		return fmt.Errorf("resolver_timeout (%v) must not exceed request_timeout (%v)", cfg.ResolverTimeout, cfg.RequestTimeout)
	}
	if cfg.ValidatorTimeout <= 0 {
		return fmt.Errorf("validator_timeout must be positive, got %v", cfg.ValidatorTimeout)
	}
	if cfg.ValidatorTimeout > cfg.RequestTimeout {
		return fmt.Errorf("validator_timeout (%v) must not exceed request_timeout (%v)", cfg.ValidatorTimeout, cfg.RequestTimeout)
	}
	if cfg.MaxFactorFetches <= 0 {
		return fmt.Errorf("max_factor_fetches must be positive, got %d", cfg.MaxFactorFetches)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
// InConfig ignores the environment, so exported tokens never trip this check.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range []string{"api_token", "server.api_token", "validator_token", "server.validator_token"} {
		if v.InConfig(key) {
			return fmt.Errorf("tokens not allowed in config files (use %s and %s environment variables)", EnvAPIToken, EnvValidatorToken)
		}
	}
	return nil
}
