package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Convert   ConvertConfig   `yaml:"convert"`
	Retention RetentionConfig `yaml:"retention"`
	Minutes   MinutesConfig   `yaml:"minutes"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StorageConfig struct {
	WorkRoot          string `yaml:"work_root"`
	DatabasePath      string `yaml:"database_path"`
	FiltersDir        string `yaml:"filters_dir"`
	WatermarkOverride string `yaml:"watermark_override"`
}

type ConvertConfig struct {
	PandocPath  string `yaml:"pandoc_path"`
	MaxFiles    int    `yaml:"max_files"`
	MaxFileSize int64  `yaml:"max_file_size"`
}

type RetentionConfig struct {
	Window        string        `yaml:"window"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type MinutesConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIBase string `yaml:"api_base"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Storage: StorageConfig{
			WorkRoot:     "./data/work",
			DatabasePath: "./data/paperpress.db",
			FiltersDir:   "./data/filters",
		},
		Convert: ConvertConfig{
			PandocPath:  "pandoc",
			MaxFiles:    10,
			MaxFileSize: 10 << 20,
		},
		Retention: RetentionConfig{
			Window:        "1h",
			SweepInterval: time.Minute,
		},
		Minutes: MinutesConfig{
			Enabled: false,
			Model:   "gpt-3.5-turbo",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) ApplyEnv() {
	if v := os.Getenv("PAPERPRESS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}

	if v := os.Getenv("PAPERPRESS_WORK_ROOT"); v != "" {
		c.Storage.WorkRoot = v
	}

	if v := os.Getenv("PAPERPRESS_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}

	if v := os.Getenv("PAPERPRESS_FILTERS_DIR"); v != "" {
		c.Storage.FiltersDir = v
	}

	if v := os.Getenv("PAPERPRESS_RETENTION"); v != "" {
		c.Retention.Window = v
	}

	if v := os.Getenv("ENABLE_MEETING_NOTES"); v != "" {
		c.Minutes.Enabled = v == "true"
	}

	if v := os.Getenv("LLM_API_BASE"); v != "" {
		c.Minutes.APIBase = v
	}

	if v := os.Getenv("LLM_API_KEY"); v != "" {
		c.Minutes.APIKey = v
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.Minutes.Model = v
	}

	if v := os.Getenv("PAPERPRESS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// RetentionWindow parses the configured retention window string. A zero or
// negative result disables both job expiry and the sweeper.
func (c *Config) RetentionWindow() time.Duration {
	return ParseRetention(c.Retention.Window)
}

// ParseRetention parses a duration string with a m/h/d/w/M suffix
// (minutes, hours, days, weeks, 30-day months). An absent or unparsable
// value yields the 1 hour default.
func ParseRetention(s string) time.Duration {
	const fallback = time.Hour

	if s == "" {
		return fallback
	}

	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return fallback
	}

	switch s[len(s)-1] {
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour
	case 'M':
		return time.Duration(value) * 30 * 24 * time.Hour
	default:
		return fallback
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Storage.WorkRoot == "" {
		return fmt.Errorf("work root is required")
	}

	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Storage.FiltersDir == "" {
		return fmt.Errorf("filters directory is required")
	}

	if c.Convert.PandocPath == "" {
		return fmt.Errorf("pandoc path is required")
	}

	if c.Convert.MaxFiles < 1 {
		return fmt.Errorf("max files must be at least 1")
	}

	if c.Convert.MaxFileSize < 1 {
		return fmt.Errorf("max file size must be at least 1 byte")
	}

	if c.Retention.SweepInterval < time.Second {
		return fmt.Errorf("sweep interval must be at least 1s")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}
