package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StoreDriver string

const (
	StoreFile   StoreDriver = "file"
	StoreSQLite StoreDriver = "sqlite"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID,required"`
	// Handle the bot posts as; its own messages are ignored. Falls back to the persona handle.
	BotHandle string `env:"BOT_HANDLE"`

	// LLM settings
	LLMProvider      LLMProvider   `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	YandexOAuthToken string        `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string        `env:"YANDEX_FOLDER_ID"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"20s"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Persona
	PersonaPath string `env:"PERSONA_PATH"`

	Storage

	// Ambient schedule
	AdCheckInterval        time.Duration `env:"AD_CHECK_INTERVAL" envDefault:"5m"`
	AdCooldown             time.Duration `env:"AD_COOLDOWN" envDefault:"20m"`
	LurkerInterval         time.Duration `env:"LURKER_INTERVAL" envDefault:"10m"`
	SilenceInterval        time.Duration `env:"SILENCE_INTERVAL" envDefault:"5m"`
	SilenceThreshold       time.Duration `env:"SILENCE_THRESHOLD" envDefault:"15m"`
	OccupancyInterval      time.Duration `env:"OCCUPANCY_INTERVAL" envDefault:"5m"`
	OccupancyEmptyInterval time.Duration `env:"OCCUPANCY_EMPTY_INTERVAL" envDefault:"2m"`
	ReportSpec             string        `env:"REPORT_SPEC" envDefault:"0 21 * * *"`

	// Observability
	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Storage selects where the bot's documents live.
type Storage struct {
	StoreDriver StoreDriver `env:"STORE_DRIVER" envDefault:"file"`
	DataDir     string      `env:"DATA_DIR" envDefault:"data"`
	SQLitePath  string      `env:"SQLITE_PATH" envDefault:"data/marrow.db"`
}

// ToolConfig is the subset used by tools that read bot state without
// connecting to chat.
type ToolConfig struct {
	Storage
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadTool parses the environment into a ToolConfig.
func LoadTool() (*ToolConfig, error) {
	cfg := &ToolConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderYandex:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLMProvider)
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	if c.OccupancyEmptyInterval <= 0 || c.OccupancyInterval <= 0 {
		return fmt.Errorf("occupancy intervals must be positive")
	}
	return nil
}

func (s Storage) Validate() error {
	switch s.StoreDriver {
	case StoreFile, StoreSQLite:
		return nil
	default:
		return fmt.Errorf("unknown store driver: %s", s.StoreDriver)
	}
}
