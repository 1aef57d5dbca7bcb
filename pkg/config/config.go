package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file configuration.
const (
	EnvSPARQLEndpoint = "SPARQL_ENDPOINT"
	EnvWikidataURI    = "WIKIDATA_URI"
	EnvAPIEndpoint    = "WIKIDATA_API_ENDPOINT"
	EnvCacheDir       = "WIKIDATA_CACHE_DIR"
	EnvLogFile        = "WIKIDATA_LOG_FILE"
	EnvLogLevel       = "WIKIDATA_LOG_LEVEL"
	EnvUserAgent      = "WIKIDATA_USER_AGENT"
)

// Config holds the library and CLI configuration.
type Config struct {
	Wikidata WikidataConfig `yaml:"wikidata"`
	Request  RequestConfig  `yaml:"request"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// WikidataConfig holds the upstream endpoints.
type WikidataConfig struct {
	SPARQLEndpoint string `yaml:"sparql_endpoint"`
	BaseURI        string `yaml:"base_uri"`
	APIEndpoint    string `yaml:"api_endpoint"`
	Language       string `yaml:"language"`
	UserAgent      string `yaml:"user_agent"` // empty = built-in default
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Timeout     Duration      `yaml:"timeout"`
	MinInterval Duration      `yaml:"min_interval"` // pacing between requests to one provider
	Backoff     BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds the rate-limit backoff settings.
// The sleep before retry n is Initial + n*Increment + sum(Retry-After).
type BackoffConfig struct {
	Initial     Duration `yaml:"initial"`
	Increment   Duration `yaml:"increment"`
	MaxAttempts uint     `yaml:"max_attempts"` // 0 = retry until the upstream stops answering 429
}

// CacheConfig holds the on-disk response cache settings.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
}

// Path returns the SQLite file path of the response cache.
func (c CacheConfig) Path() string {
	return filepath.Join(c.Dir, c.File)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Wikidata: WikidataConfig{
			SPARQLEndpoint: "https://query.wikidata.org/sparql",
			BaseURI:        "https://www.wikidata.org",
			APIEndpoint:    "https://www.wikidata.org/w/api.php",
			Language:       "en",
		},
		Request: RequestConfig{
			Timeout:     Duration(300 * time.Second),
			MinInterval: Duration(100 * time.Millisecond),
			Backoff: BackoffConfig{
				Initial:   Duration(200 * time.Millisecond),
				Increment: Duration(500 * time.Millisecond),
			},
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".cache",
			File:    "responses.db",
		},
		Log: LogConfig{
			Path:  "log.json",
			Level: "WARN",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it is created with default values.
// An optional .env next to the working directory is loaded before environment overrides are applied;
// variables already present in the environment win over the .env file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := Save(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to save config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSPARQLEndpoint); v != "" {
		cfg.Wikidata.SPARQLEndpoint = v
	}
	if v := os.Getenv(EnvWikidataURI); v != "" {
		cfg.Wikidata.BaseURI = v
	}
	if v := os.Getenv(EnvAPIEndpoint); v != "" {
		cfg.Wikidata.APIEndpoint = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Log.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvUserAgent); v != "" {
		cfg.Wikidata.UserAgent = v
	}
}

var languageRe = regexp.MustCompile(`^[a-z]{2,3}(-[a-z]+)?$`)

// Validate checks endpoint URLs and the search language.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"sparql_endpoint": c.Wikidata.SPARQLEndpoint,
		"base_uri":        c.Wikidata.BaseURI,
		"api_endpoint":    c.Wikidata.APIEndpoint,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s '%s': must be an absolute URL", name, raw)
		}
	}
	if !languageRe.MatchString(c.Wikidata.Language) {
		return fmt.Errorf("invalid language '%s': must be a lowercase language code (e.g. 'en', 'de')", c.Wikidata.Language)
	}
	c.Wikidata.BaseURI = strings.TrimRight(c.Wikidata.BaseURI, "/")
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wikientity configuration
# ------------------------
# Environment overrides: SPARQL_ENDPOINT, WIKIDATA_URI, WIKIDATA_API_ENDPOINT,
#   WIKIDATA_CACHE_DIR, WIKIDATA_LOG_FILE, WIKIDATA_LOG_LEVEL, WIKIDATA_USER_AGENT
# Duration units: ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reAttempts := regexp.MustCompile(`(?m)^(\s+)max_attempts:`)
	data = reAttempts.ReplaceAll(data, []byte("${1}# 0 = retry rate-limited requests until they succeed\n${1}max_attempts:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
