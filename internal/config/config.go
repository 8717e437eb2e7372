package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mnemo retrieval API configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Rerank   RerankConfig   `yaml:"rerank"`
	LLM      LLMConfig      `yaml:"llm"`
	Backends BackendsConfig `yaml:"backends"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendsConfig holds the memory-platform API the strategy backends live
// behind.
type BackendsConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CacheConfig holds result-cache settings. An empty Addrs list disables the
// backing store entirely; the pipeline then runs uncached.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	TTLSec           int      `yaml:"ttl_sec"`
	WindowSec        int      `yaml:"window_sec"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// SearchConfig holds pipeline deadlines and bounds.
type SearchConfig struct {
	OverallTimeoutMS  int `yaml:"overall_timeout_ms"`
	StrategyTimeoutMS int `yaml:"strategy_timeout_ms"`
	ContextBudget     int `yaml:"context_budget_chars"`
}

// AnalyzerConfig holds query-analyzer settings.
type AnalyzerConfig struct {
	UseLLM    bool   `yaml:"use_llm"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
	CacheSize int    `yaml:"cache_size"`
}

// RerankConfig holds reranker settings.
type RerankConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Model     string  `yaml:"model"`
	TimeoutMS int     `yaml:"timeout_ms"`
	TopN      int     `yaml:"top_n"`
	Blend     float64 `yaml:"blend"` // share of the rerank score in the final score
}

// LLMConfig holds the OpenAI-compatible provider settings shared by the
// embedder, analyzer, and reranker.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 15
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "mnemo:"
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.WindowSec <= 0 {
		c.Cache.WindowSec = 60
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
	if c.Search.OverallTimeoutMS <= 0 {
		c.Search.OverallTimeoutMS = 10000
	}
	if c.Search.StrategyTimeoutMS <= 0 {
		c.Search.StrategyTimeoutMS = 3000
	}
	if c.Search.ContextBudget <= 0 {
		c.Search.ContextBudget = 8000
	}
	if c.Analyzer.TimeoutMS <= 0 {
		c.Analyzer.TimeoutMS = 2000
	}
	if c.Analyzer.CacheSize <= 0 {
		c.Analyzer.CacheSize = 10000
	}
	if c.Rerank.TimeoutMS <= 0 {
		c.Rerank.TimeoutMS = 5000
	}
	if c.Rerank.TopN <= 0 {
		c.Rerank.TopN = 20
	}
	if c.Rerank.Blend <= 0 || c.Rerank.Blend > 1 {
		c.Rerank.Blend = 0.7
	}
	if c.Backends.TimeoutMS <= 0 {
		c.Backends.TimeoutMS = 3000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Search.StrategyTimeoutMS > c.Search.OverallTimeoutMS {
		return fmt.Errorf(
			"search.strategy_timeout_ms (%d) must not exceed search.overall_timeout_ms (%d)",
			c.Search.StrategyTimeoutMS, c.Search.OverallTimeoutMS,
		)
	}
	if (c.Analyzer.UseLLM || c.Rerank.Enabled) && c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required when the LLM analyzer or reranker is enabled")
	}
	if c.Backends.BaseURL == "" {
		return fmt.Errorf("backends.base_url is required")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
