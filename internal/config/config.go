package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override, e.g. QUIZ_BATTLE_REDIS_ADDR.
const EnvPrefix = "QUIZ_BATTLE_"

type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Postgres  PostgresConfig  `yaml:"postgres" envPrefix:"POSTGRES_"`
	Questions QuestionsConfig `yaml:"questions" envPrefix:"QUESTIONS_"`
	Battle    BattleConfig    `yaml:"battle" envPrefix:"BATTLE_"`
	Arena     ArenaConfig     `yaml:"arena" envPrefix:"ARENA_"`
	Backend   BackendConfig   `yaml:"backend" envPrefix:"BACKEND_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"OTEL_"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	TTL      string `yaml:"ttl" env:"TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type QuestionsConfig struct {
	TTL string `yaml:"ttl" env:"TTL"`
}

// BattleConfig tunes the round resolver.
type BattleConfig struct {
	MaxHealth     int    `yaml:"max_health" env:"MAX_HEALTH"`
	Damage        int    `yaml:"damage" env:"DAMAGE"`
	OracleTimeout string `yaml:"oracle_timeout" env:"ORACLE_TIMEOUT"`
	ResultPause   string `yaml:"result_pause" env:"RESULT_PAUSE"`
}

// ArenaConfig tunes the server-side oracle delay.
type ArenaConfig struct {
	DelayMin string `yaml:"delay_min" env:"DELAY_MIN"`
	DelayMax string `yaml:"delay_max" env:"DELAY_MAX"`
}

// BackendConfig points the play command at a running server.
type BackendConfig struct {
	URL string `yaml:"url" env:"URL"`
}

type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
}

// Load reads YAML config from path, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
