package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
	kList
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "NYAY_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "backend.base_url", typ: kString, env: "NYAY_BACKEND_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Backend.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Backend.BaseURL },
	},
	{
		key: "backend.timeout", typ: kDuration, env: "NYAY_BACKEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Backend.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Backend.Timeout },
	},
	{
		key: "backend.rate_limit", typ: kFloat, env: "NYAY_BACKEND_RATE_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Backend.RateLimit = v.(float64) },
		extract: func(cfg Config) any { return cfg.Backend.RateLimit },
	},
	{
		key: "backend.burst", typ: kInt, env: "NYAY_BACKEND_BURST",
		apply:   func(cfg *Config, v any) { cfg.Backend.Burst = v.(int) },
		extract: func(cfg Config) any { return cfg.Backend.Burst },
	},
	{
		key: "chat.timeout", typ: kDuration, env: "NYAY_CHAT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Chat.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Chat.Timeout },
	},
	{
		key: "chat.history_window", typ: kInt, env: "NYAY_CHAT_HISTORY_WINDOW",
		apply:   func(cfg *Config, v any) { cfg.Chat.HistoryWindow = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.HistoryWindow },
	},
	{
		key: "chat.max_context_tokens", typ: kInt, env: "NYAY_CHAT_MAX_CONTEXT_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Chat.MaxContextTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.MaxContextTokens },
	},
	{
		key: "jobs.max_file_size", typ: kInt, env: "NYAY_JOBS_MAX_FILE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Jobs.MaxFileSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Jobs.MaxFileSize },
	},
	{
		key: "jobs.accepted_types", typ: kList, env: "NYAY_JOBS_ACCEPTED_TYPES",
		apply:   func(cfg *Config, v any) { cfg.Jobs.AcceptedTypes = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Jobs.AcceptedTypes, ",") },
	},
	{
		key: "jobs.transition_timeout", typ: kDuration, env: "NYAY_JOBS_TRANSITION_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Jobs.TransitionTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Jobs.TransitionTimeout },
	},
	{
		key: "jobs.concurrency", typ: kInt, env: "NYAY_JOBS_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Jobs.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Jobs.Concurrency },
	},
	{
		key: "jobs.analysis_mode", typ: kString, env: "NYAY_JOBS_ANALYSIS_MODE",
		apply:   func(cfg *Config, v any) { cfg.Jobs.AnalysisMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.AnalysisMode },
	},
	{
		key: "jobs.analysis_type", typ: kString, env: "NYAY_JOBS_ANALYSIS_TYPE",
		apply:   func(cfg *Config, v any) { cfg.Jobs.AnalysisType = v.(string) },
		extract: func(cfg Config) any { return cfg.Jobs.AnalysisType },
	},
	{
		key: "precedent.cache_ttl", typ: kDuration, env: "NYAY_PRECEDENT_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Precedent.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Precedent.CacheTTL },
	},
	{
		key: "precedent.default_limit", typ: kInt, env: "NYAY_PRECEDENT_DEFAULT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Precedent.DefaultLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Precedent.DefaultLimit },
	},
	{
		key: "storage.data_dir", typ: kString, env: "NYAY_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "NYAY_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "NYAY_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

// parse converts a raw string into the Go value for typ.
func (t keyType) parse(raw string) (any, error) {
	switch t {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	case kList:
		var out []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
	return raw, nil
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := s.typ.parse(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
