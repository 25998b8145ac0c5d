package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/rohankatakam/gitcinema/internal/errors"
)

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Optional redis layer in front of the store
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// GitHub configuration
	GitHub GitHubConfig `mapstructure:"github" yaml:"github"`

	Ingestion IngestionConfig `mapstructure:"ingestion" yaml:"ingestion"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Timeline  TimelineConfig  `mapstructure:"timeline" yaml:"timeline"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type" yaml:"type"` // "sqlite", "postgres", "bolt"
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	BoltPath    string `mapstructure:"bolt_path" yaml:"bolt_path"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr"` // empty disables the cache
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type GitHubConfig struct {
	Token       string `mapstructure:"token" yaml:"token"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	RateLimit   int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second
	CommitLimit int    `mapstructure:"commit_limit" yaml:"commit_limit"`
}

type IngestionConfig struct {
	MaxCoreFiles     int `mapstructure:"max_core_files" yaml:"max_core_files"`
	FetchConcurrency int `mapstructure:"fetch_concurrency" yaml:"fetch_concurrency"`
}

type RetrievalConfig struct {
	TopK             int `mapstructure:"top_k" yaml:"top_k"`
	MinKeywordLength int `mapstructure:"min_keyword_length" yaml:"min_keyword_length"`
	MaxFileChars     int `mapstructure:"max_file_chars" yaml:"max_file_chars"`
	MaxTreeEntries   int `mapstructure:"max_tree_entries" yaml:"max_tree_entries"`
	MaxReadmeChars   int `mapstructure:"max_readme_chars" yaml:"max_readme_chars"`
}

type TimelineConfig struct {
	FallbackCommits int    `mapstructure:"fallback_commits" yaml:"fallback_commits"`
	JitterSeed      uint64 `mapstructure:"jitter_seed" yaml:"jitter_seed"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	JSON       bool   `mapstructure:"json" yaml:"json"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".gitcinema", "gitcinema.db"),
			BoltPath:   filepath.Join(homeDir, ".gitcinema", "gitcinema.bolt"),
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		GitHub: GitHubConfig{
			RateLimit:   10, // 10 requests per second
			CommitLimit: 100,
		},
		Ingestion: IngestionConfig{
			MaxCoreFiles:     10,
			FetchConcurrency: 4,
		},
		Retrieval: RetrievalConfig{
			TopK:             8,
			MinKeywordLength: 3,
			MaxFileChars:     5000,
			MaxTreeEntries:   500,
			MaxReadmeChars:   3000,
		},
		Timeline: TimelineConfig{
			FallbackCommits: 50,
			JitterSeed:      1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load loads configuration from file, .env files and environment.
// Precedence: GITHUB_TOKEN/DATABASE_URL > GITCINEMA_* env > config file > defaults.
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// Load from environment variables, e.g. GITCINEMA_GITHUB_RATE_LIMIT
	v.SetEnvPrefix("GITCINEMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".gitcinema")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".gitcinema"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)
	v.SetDefault("storage.bolt_path", cfg.Storage.BoltPath)

	v.SetDefault("cache.redis_addr", cfg.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", cfg.Cache.RedisPassword)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)

	v.SetDefault("github.token", cfg.GitHub.Token)
	v.SetDefault("github.base_url", cfg.GitHub.BaseURL)
	v.SetDefault("github.rate_limit", cfg.GitHub.RateLimit)
	v.SetDefault("github.commit_limit", cfg.GitHub.CommitLimit)

	v.SetDefault("ingestion.max_core_files", cfg.Ingestion.MaxCoreFiles)
	v.SetDefault("ingestion.fetch_concurrency", cfg.Ingestion.FetchConcurrency)

	v.SetDefault("retrieval.top_k", cfg.Retrieval.TopK)
	v.SetDefault("retrieval.min_keyword_length", cfg.Retrieval.MinKeywordLength)
	v.SetDefault("retrieval.max_file_chars", cfg.Retrieval.MaxFileChars)
	v.SetDefault("retrieval.max_tree_entries", cfg.Retrieval.MaxTreeEntries)
	v.SetDefault("retrieval.max_readme_chars", cfg.Retrieval.MaxReadmeChars)

	v.SetDefault("timeline.fallback_commits", cfg.Timeline.FallbackCommits)
	v.SetDefault("timeline.jitter_seed", cfg.Timeline.JitterSeed)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.json", cfg.Logging.JSON)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			// godotenv never overrides variables that are already set
			_ = godotenv.Load(file)
		}
	}
}

// applyEnvOverrides applies the conventional unprefixed variables
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}

	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Storage.BoltPath = expandPath(cfg.Storage.BoltPath)
	cfg.Logging.File = expandPath(cfg.Logging.File)
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate rejects configurations the components cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return apperrors.ConfigErrorf("storage.sqlite_path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return apperrors.ConfigErrorf("storage.postgres_dsn (or DATABASE_URL) is required for postgres storage")
		}
	case "bolt":
		if c.Storage.BoltPath == "" {
			return apperrors.ConfigErrorf("storage.bolt_path is required for bolt storage")
		}
	default:
		return apperrors.ConfigErrorf("unknown storage type %q (want sqlite, postgres or bolt)", c.Storage.Type)
	}

	positive := map[string]int{
		"github.commit_limit":          c.GitHub.CommitLimit,
		"ingestion.max_core_files":     c.Ingestion.MaxCoreFiles,
		"ingestion.fetch_concurrency":  c.Ingestion.FetchConcurrency,
		"retrieval.top_k":              c.Retrieval.TopK,
		"retrieval.min_keyword_length": c.Retrieval.MinKeywordLength,
		"retrieval.max_file_chars":     c.Retrieval.MaxFileChars,
		"retrieval.max_tree_entries":   c.Retrieval.MaxTreeEntries,
		"retrieval.max_readme_chars":   c.Retrieval.MaxReadmeChars,
		"timeline.fallback_commits":    c.Timeline.FallbackCommits,
	}
	for key, value := range positive {
		if value <= 0 {
			return apperrors.ConfigErrorf("%s must be positive, got %d", key, value)
		}
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return apperrors.ConfigErrorf("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
