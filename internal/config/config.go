package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Chat      ChatConfig
	Jobs      JobsConfig
	Precedent PrecedentConfig
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type BackendConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	Burst     int
}

type ChatConfig struct {
	Timeout          time.Duration
	HistoryWindow    int
	MaxContextTokens int
}

type JobsConfig struct {
	MaxFileSize       int
	AcceptedTypes     []string
	TransitionTimeout time.Duration
	Concurrency       int
	// AnalysisMode is "remote" (backend analyze endpoint) or "local"
	// (in-process extraction and heuristics).
	AnalysisMode string
	AnalysisType string
}

type PrecedentConfig struct {
	CacheTTL     time.Duration
	DefaultLimit int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
	// File is the rotated JSON log. Empty disables file output.
	File string
}

// SecretsPath is where the backend token and local API token are kept.
func (c Config) SecretsPath() string {
	return filepath.Join(c.Storage.DataDir, "secrets.json")
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{Port: 4100},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8000",
			Timeout:   30 * time.Second,
			RateLimit: 10,
			Burst:     20,
		},
		Chat: ChatConfig{
			Timeout:          60 * time.Second,
			HistoryWindow:    10,
			MaxContextTokens: 2000,
		},
		Jobs: JobsConfig{
			MaxFileSize: 10 << 20,
			AcceptedTypes: []string{
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
				"text/plain",
			},
			TransitionTimeout: 2 * time.Minute,
			Concurrency:       4,
			AnalysisMode:      "remote",
			AnalysisType:      "summary",
		},
		Precedent: PrecedentConfig{
			CacheTTL:     10 * time.Minute,
			DefaultLimit: 10,
		},
		Storage: StorageConfig{DataDir: dataDir},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dataDir, "logs", "nyay.log"),
		},
	}
}

// Load reads configuration with this precedence, lowest first: built-in
// defaults, the TOML file at $XDG_CONFIG_HOME/nyay/config.toml, a .env file
// in the working directory (never overriding the real environment), and
// NYAY_* environment variables.
func Load() (Config, error) {
	b, err := newFileBackend(configFilePath())
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, ".env")
}

// loadFromPath loads using an explicit config file. Used by tests.
func loadFromPath(path, envFile string) (Config, error) {
	b, err := newFileBackend(path)
	if err != nil {
		return Config{}, err
	}
	return loadWith(b, envFile)
}

func loadWith(b ConfigBackend, envFile string) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "[WARN] could not read %s: %v\n", envFile, err)
		}
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var logLevels = []string{"debug", "info", "warn", "error"}

func (c Config) validate() error {
	var problems []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Backend.BaseURL == "" {
		problems = append(problems, "backend.base_url is empty")
	}
	if c.Jobs.AnalysisMode != "remote" && c.Jobs.AnalysisMode != "local" {
		problems = append(problems, fmt.Sprintf("jobs.analysis_mode %q must be remote or local", c.Jobs.AnalysisMode))
	}
	if c.Jobs.MaxFileSize <= 0 {
		problems = append(problems, "jobs.max_file_size must be positive")
	}
	if len(c.Jobs.AcceptedTypes) == 0 {
		problems = append(problems, "jobs.accepted_types is empty")
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		problems = append(problems, fmt.Sprintf("log.level %q must be one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
