package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Stats    StatsConfig    `mapstructure:"stats"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// AdminIDs are the Telegram user ids allowed to use /admin.
	AdminIDs []int64 `mapstructure:"admin_ids"`
}

type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

type OpenAIConfig struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	MaxTokens        int           `mapstructure:"max_tokens"`
	Temperature      float64       `mapstructure:"temperature"`
	Timeout          time.Duration `mapstructure:"timeout"`
	SystemPromptPath string        `mapstructure:"system_prompt_path"`
}

type ChatConfig struct {
	MaxHistoryMessages int `mapstructure:"max_history_messages"`
}

type StatsConfig struct {
	// Source is "database" or "synthetic".
	Source string `mapstructure:"source"`
	Seed   uint64 `mapstructure:"seed"`
}

type APIConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// RateLimit is the sustained number of chat requests per second per session.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Requirement names a credential a binary cannot run without.
type Requirement int

const (
	RequireTelegram Requirement = iota
	RequireLLM
)

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	switch u.Scheme {
	case "sqlite", "sqlite3", "file":
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		return DatabaseConfig{Driver: "sqlite", Path: path}, nil
	case "postgres", "postgresql":
	default:
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		if port, err = strconv.Atoi(u.Port()); err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q: %w", u.Port(), err)
		}
	}
	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// parseTimeout accepts plain seconds ("30") or a Go duration ("1m30s").
func parseTimeout(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadConfig reads the YAML file at path, if any, and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "tea-bot.db")
	v.SetDefault("openai.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openai.model", "openai/gpt-3.5-turbo")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout", 30*time.Second)
	v.SetDefault("chat.max_history_messages", 20)
	v.SetDefault("stats.source", "database")
	v.SetDefault("stats.seed", 42)
	v.SetDefault("api.addr", ":8000")
	v.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.rate_limit", 1.0)
	v.SetDefault("api.rate_burst", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	// Enable environment variable support
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}
	if token := v.GetString("TELEGRAM_BOT_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if ids := v.GetString("ADMIN_USER_IDS"); ids != "" {
		parsed, err := parseIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ADMIN_USER_IDS: %w", err)
		}
		config.Telegram.AdminIDs = parsed
	}
	if apiKey := v.GetString("OPENROUTER_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if model := v.GetString("OPENROUTER_MODEL"); model != "" {
		config.OpenAI.Model = model
	}
	if level := v.GetString("LOG_LEVEL"); level != "" {
		config.Log.Level = strings.ToLower(level)
	}
	if raw := v.GetString("MAX_HISTORY_MESSAGES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse MAX_HISTORY_MESSAGES: %w", err)
		}
		config.Chat.MaxHistoryMessages = n
	}
	if raw := v.GetString("LLM_TIMEOUT"); raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse LLM_TIMEOUT: %w", err)
		}
		config.OpenAI.Timeout = d
	}

	return &config, nil
}

// Validate checks the settings every binary relies on plus the given
// requirements.
func (c *Config) Validate(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		switch r {
		case RequireTelegram:
			if c.Telegram.Token == "" {
				errs = append(errs, errors.New("telegram token is required (TELEGRAM_BOT_TOKEN)"))
			}
		case RequireLLM:
			if c.OpenAI.APIKey == "" {
				errs = append(errs, errors.New("model API key is required (OPENROUTER_API_KEY)"))
			}
		}
	}

	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Stats.Source {
	case "database", "synthetic":
	default:
		errs = append(errs, fmt.Errorf("unknown stats source %q", c.Stats.Source))
	}
	if c.Chat.MaxHistoryMessages <= 0 {
		errs = append(errs, fmt.Errorf("max_history_messages must be positive, got %d", c.Chat.MaxHistoryMessages))
	}
	if c.OpenAI.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("openai timeout must be positive, got %s", c.OpenAI.Timeout))
	}
	return errors.Join(errs...)
}
