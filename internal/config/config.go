package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		Dir                    string `yaml:"dir"`
		Encoding               string `yaml:"encoding"`
		Strict                 bool   `yaml:"strict"`
		ResetCorrectOnQuestion *bool  `yaml:"reset_correct_on_question"`
	} `yaml:"quiz"`
	Telegram struct {
		Token   string `yaml:"token"`
		Debug   bool   `yaml:"debug"`
		Timeout int    `yaml:"timeout"`
		Workers int    `yaml:"workers"`
	} `yaml:"telegram"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads .env (if present), then the YAML config from path (if present),
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Telegram.Token, "TG_BOT_TOKEN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	if host := os.Getenv("REDIS_DB_HOST"); host != "" {
		port := os.Getenv("REDIS_DB_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.Redis.Addr = net.JoinHostPort(host, port)
	}
	setString(&cfg.Redis.Password, "REDIS_DB_PASSWORD")
	setString(&cfg.Postgres.URL, "POSTGRES_URL")
	setString(&cfg.Quiz.Dir, "QUIZZES_DIRECTORY_PATH")
	setString(&cfg.Quiz.Encoding, "QUIZ_ENCODING")
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if raw := os.Getenv("TG_WORKERS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			cfg.Telegram.Workers = n
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// ResetCorrectOnQuestion defaults to true when unset.
func (c Config) ResetCorrectOnQuestion() bool {
	if c.Quiz.ResetCorrectOnQuestion == nil {
		return true
	}
	return *c.Quiz.ResetCorrectOnQuestion
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
