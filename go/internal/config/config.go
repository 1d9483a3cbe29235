// Package config assembles service configuration from defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/casino/go/internal/dbconfig"
	"github.com/mcdev12/casino/go/internal/game/coinflip"
	"github.com/mcdev12/casino/go/internal/game/crash"
	"github.com/mcdev12/casino/go/internal/game/jackpot"
	"github.com/mcdev12/casino/go/internal/gateway"
	"github.com/mcdev12/casino/go/internal/ledger"
)

type Config struct {
	Port int        `yaml:"port" env:"PORT"`
	Log  LogConfig  `yaml:"log"`
	Auth AuthConfig `yaml:"auth"`

	Gateway  gateway.Config  `yaml:"gateway"`
	Crash    crash.Config    `yaml:"crash" envPrefix:"CRASH_"`
	Jackpot  jackpot.Config  `yaml:"jackpot" envPrefix:"JACKPOT_"`
	Coinflip coinflip.Config `yaml:"coinflip" envPrefix:"COINFLIP_"`

	Ledger   ledger.Config          `yaml:"ledger" envPrefix:"LEDGER_"`
	NATS     ledger.JetStreamConfig `yaml:"nats" envPrefix:"NATS_"`
	Database dbconfig.Config        `yaml:"database"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// AuthConfig selects how connections are identified. With DevIdentity the
// user_id and name query parameters are trusted as-is.
type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret" env:"JWT_SECRET"`
	AllowAnonymous bool   `yaml:"allow_anonymous" env:"ALLOW_ANONYMOUS"`
	DevIdentity    bool   `yaml:"dev_identity" env:"DEV_IDENTITY"`
}

func Default() Config {
	return Config{
		Port:     8080,
		Log:      LogConfig{Level: "info"},
		Auth:     AuthConfig{AllowAnonymous: true},
		Gateway:  gateway.DefaultConfig(),
		Crash:    crash.DefaultConfig(),
		Jackpot:  jackpot.DefaultConfig(),
		Coinflip: coinflip.DefaultConfig(),
		Ledger:   ledger.DefaultConfig(),
		NATS:     ledger.DefaultJetStreamConfig(),
		Database: dbconfig.DefaultConfig(),
	}
}

// Load reads path, if given, over the defaults and then applies environment
// overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the sessions cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 {
		errs = append(errs, fmt.Errorf("port must be positive, got %d", c.Port))
	}
	if !c.Auth.DevIdentity && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required unless DEV_IDENTITY is set"))
	}
	if c.Crash.BettingWindow <= 0 || c.Crash.TickInterval <= 0 || c.Crash.Cooldown < 0 {
		errs = append(errs, errors.New("crash timings must be positive"))
	}
	if c.Jackpot.Countdown <= 0 {
		errs = append(errs, errors.New("jackpot countdown must be positive"))
	}
	if c.Coinflip.ClosedTTL <= 0 {
		errs = append(errs, errors.New("coinflip closed_ttl must be positive"))
	}
	if c.Gateway.Connection.PingInterval >= c.Gateway.Connection.ReadTimeout {
		errs = append(errs, errors.New("ping interval must be shorter than read timeout"))
	}
	return errors.Join(errs...)
}
