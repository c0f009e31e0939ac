// Package config loads process configuration from the environment and
// the optional policy file.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full environment-driven configuration. A .env file in
// the working directory is honored when present.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN"`

	NATSURL   string `env:"NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	NATSToken string `env:"NATS_TOKEN"`
	RelayPoll bool   `env:"RELAY_POLL" envDefault:"false"`

	DataDir    string `env:"DATA_DIR" envDefault:"data"`
	PolicyPath string `env:"POLICY_PATH" envDefault:"policy.yaml"`
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile    string `env:"LOG_FILE"`
	LogConsole bool   `env:"LOG_CONSOLE" envDefault:"true"`
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	// Missing .env just means plain environment variables.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
