package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like EMBEDDING_API_KEY
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent.
	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values. An
// unset variable expands to empty so the literal placeholder never flows
// downstream as a credential.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				if expanded := os.ExpandEnv(strVal); expanded != strVal {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills credentials from plain environment variables when
// the config file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Providers.Embedding.APIKey == "" {
		if val := os.Getenv("EMBEDDING_API_KEY"); val != "" {
			cfg.Providers.Embedding.APIKey = val
		}
	}
	if cfg.Providers.Generation.APIKey == "" {
		if val := os.Getenv("GENERATION_API_KEY"); val != "" {
			cfg.Providers.Generation.APIKey = val
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDR"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.API.Host == "" {
		cfg.API.Host = "0.0.0.0"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8001
	}
	if cfg.API.UploadDirectory == "" {
		cfg.API.UploadDirectory = "uploads"
	}
	if cfg.API.MaxFileSize == 0 {
		cfg.API.MaxFileSize = 10 * 1024 * 1024 // 10MB
	}

	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "redis"
	}
	if cfg.Vector.IndexName == "" {
		cfg.Vector.IndexName = "insurance-docs"
	}
	if cfg.Vector.KeyPrefix == "" {
		cfg.Vector.KeyPrefix = "chunk:"
	}
	if cfg.Vector.Dimension == 0 {
		cfg.Vector.Dimension = 1536
	}
	if cfg.Vector.EFConstruction == 0 {
		cfg.Vector.EFConstruction = 200
	}
	if cfg.Vector.M == 0 {
		cfg.Vector.M = 16
	}

	if cfg.Processing.ChunkSize == 0 {
		cfg.Processing.ChunkSize = 1000
	}
	if cfg.Processing.ChunkOverlap == 0 {
		cfg.Processing.ChunkOverlap = 200
	}
	if cfg.Processing.TopKResults == 0 {
		cfg.Processing.TopKResults = 5
	}
	if cfg.Processing.SimilarityThreshold == 0 {
		cfg.Processing.SimilarityThreshold = 0.1
	}

	if cfg.Providers.Embedding.BaseURL == "" {
		cfg.Providers.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Providers.Embedding.Model == "" {
		cfg.Providers.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Providers.Embedding.Timeout == 0 {
		cfg.Providers.Embedding.Timeout = 30000
	}
	if cfg.Providers.Generation.BaseURL == "" {
		cfg.Providers.Generation.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Providers.Generation.Model == "" {
		cfg.Providers.Generation.Model = "llama-3.3-70b-versatile"
	}
	if cfg.Providers.Generation.Timeout == 0 {
		cfg.Providers.Generation.Timeout = 60000
	}
	if cfg.Providers.Generation.MaxTokens == 0 {
		cfg.Providers.Generation.MaxTokens = 1024
	}

	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Redis.PoolSize == 0 {
		cfg.Database.Redis.PoolSize = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields. Chunk geometry is
// checked here so that a bad overlap fails at startup, never mid-ingestion.
func validateConfig(cfg *Config) error {
	if cfg.Processing.ChunkSize <= 0 {
		return fmt.Errorf("processing.chunk_size must be positive")
	}
	if cfg.Processing.ChunkOverlap < 0 {
		return fmt.Errorf("processing.chunk_overlap must not be negative")
	}
	if cfg.Processing.ChunkOverlap >= cfg.Processing.ChunkSize {
		return fmt.Errorf("processing.chunk_overlap (%d) must be strictly less than processing.chunk_size (%d)",
			cfg.Processing.ChunkOverlap, cfg.Processing.ChunkSize)
	}
	if cfg.Processing.SimilarityThreshold < -1 || cfg.Processing.SimilarityThreshold > 1 {
		return fmt.Errorf("processing.similarity_threshold must be within [-1, 1]")
	}
	if cfg.Processing.TopKResults <= 0 {
		return fmt.Errorf("processing.top_k_results must be positive")
	}

	switch cfg.Vector.Backend {
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis backend")
		}
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("database.elasticsearch.addresses is required for the elasticsearch backend")
		}
	default:
		return fmt.Errorf("vector.backend must be \"redis\" or \"elasticsearch\", got %q", cfg.Vector.Backend)
	}

	if cfg.Providers.Embedding.Model == "" {
		return fmt.Errorf("providers.embedding.model is required")
	}
	if cfg.Providers.Generation.Model == "" {
		return fmt.Errorf("providers.generation.model is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
