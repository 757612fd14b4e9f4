// internal/config/config.go
//
// Process configuration for the Bull's Eye server.
// Values come from the environment, optionally seeded from a .env file in
// development. Defaults make `go run .` work with no configuration at all.
//
// Environment variables:
//   PORT, APP_ENV, LOG_LEVEL, LOG_FORMAT, DB_PATH, CLIENT_ORIGIN, FALLBACK_POLICY
//   RANDOM_API_URL, RANDOM_API_TIMEOUT, RANDOM_API_ATTEMPTS, RANDOM_API_BACKOFF
//   JWT_SECRET, JWT_EXPIRES_DAYS, COOKIE_NAME

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/robalobadob/bullseye/internal/game"
)

// Config is the full server configuration.
type Config struct {
	Port         string `env:"PORT" envDefault:"5175"`
	AppEnv       string `env:"APP_ENV" envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"json"` // "json" | "console"
	DBPath       string `env:"DB_PATH" envDefault:"./data/bullseye.db"`
	ClientOrigin string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	Fallback     string `env:"FALLBACK_POLICY" envDefault:"on_empty"`

	RandomAPI RandomAPI `envPrefix:"RANDOM_API_"`
	Auth      Auth
}

// RandomAPI configures the outbound random-number client.
type RandomAPI struct {
	URL      string        `env:"URL" envDefault:"http://www.randomnumberapi.com/api/v1.0/random"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
	Attempts uint          `env:"ATTEMPTS" envDefault:"3"`
	Backoff  time.Duration `env:"BACKOFF" envDefault:"200ms"`
}

// Auth configures JWT signing and the auth cookie.
type Auth struct {
	JWTSecret   string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	ExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName  string `env:"COOKIE_NAME" envDefault:"bullseye_token"`
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	_ = godotenv.Load(files...)
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if _, err := c.FallbackPolicy(); err != nil {
		return Config{}, fmt.Errorf("FALLBACK_POLICY: %w", err)
	}
	if c.RandomAPI.Attempts == 0 {
		c.RandomAPI.Attempts = 1
	}
	return c, nil
}

// FallbackPolicy returns the parsed FALLBACK_POLICY.
func (c Config) FallbackPolicy() (game.FallbackPolicy, error) {
	return game.ParseFallbackPolicy(c.Fallback)
}

// Production reports whether cookies should be Secure/SameSite=None.
func (c Config) Production() bool { return c.AppEnv == "production" }
