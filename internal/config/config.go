// Package config loads and holds all service configuration.
//
// Precedence, lowest to highest: built-in defaults, masker-config.json in
// the working directory, a .env file in the working directory, then the
// process environment. A .env file never overrides variables that are
// already set in the environment.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pii-masking-service/internal/logger"
)

// Config holds the full service configuration.
type Config struct {
	APIPort         int    `json:"apiPort"`
	ManagementPort  int    `json:"managementPort"`
	BindAddress     string `json:"bindAddress"`
	ManagementToken string `json:"managementToken"`
	LogLevel        string `json:"logLevel"`

	// Named-entity recognizer sidecar. Empty endpoint = pattern rules only.
	NEREndpoint      string `json:"nerEndpoint"`
	NERTimeoutMs     int    `json:"nerTimeoutMs"`
	NERCachePath     string `json:"nerCachePath"` // empty = in-memory cache
	NERCacheCapacity int    `json:"nerCacheCapacity"`
	// AllowPatternOnly lets masking proceed without the recognizer when the
	// sidecar fails. Off by default so a down sidecar is visible.
	AllowPatternOnly bool `json:"allowPatternOnly"`

	// Downstream category classifier used by /predict.
	ClassifierEndpoint  string `json:"classifierEndpoint"`
	ClassifierTimeoutMs int    `json:"classifierTimeoutMs"`
	CategoryMapFile     string `json:"categoryMapFile"`

	// Mask-result vault. Empty path disables it.
	VaultPath           string `json:"vaultPath"`
	VaultRetentionHours int    `json:"vaultRetentionHours"` // 0 = keep forever

	LowercaseInput bool     `json:"lowercaseInput"`
	CORSOrigins    []string `json:"corsOrigins"`
	MaxBodyBytes   int64    `json:"maxBodyBytes"`
}

// NERTimeout returns the per-call recognizer timeout.
func (c *Config) NERTimeout() time.Duration {
	return time.Duration(c.NERTimeoutMs) * time.Millisecond
}

// ClassifierTimeout returns the per-call classifier timeout.
func (c *Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutMs) * time.Millisecond
}

// VaultRetention returns how long vault entries are kept; zero means forever.
func (c *Config) VaultRetention() time.Duration {
	return time.Duration(c.VaultRetentionHours) * time.Hour
}

var log = logger.New("CONFIG", "info")

// Load returns config with defaults overridden by masker-config.json, .env
// and environment variables.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "masker-config.json")
	loadDotEnv(".env")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		APIPort:             7860,
		ManagementPort:      7861,
		BindAddress:         "127.0.0.1",
		LogLevel:            "info",
		NERTimeoutMs:        10_000,
		NERCacheCapacity:    10_000,
		ClassifierTimeoutMs: 10_000,
		CategoryMapFile:     "category_mapping.json",
		CORSOrigins:         []string{"*"},
		MaxBodyBytes:        1 << 20,
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file is optional
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		log.Warnf("load_file", "could not parse %s: %v", path, err)
		return
	}
	log.Infof("load_file", "loaded %s", path)
}

func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return // file is optional
	}
	if err := godotenv.Load(path); err != nil {
		log.Warnf("load_dotenv", "could not parse %s: %v", path, err)
		return
	}
	log.Infof("load_dotenv", "loaded %s", path)
}

func loadEnv(cfg *Config) {
	envInt("API_PORT", &cfg.APIPort)
	envInt("MANAGEMENT_PORT", &cfg.ManagementPort)
	envString("BIND_ADDRESS", &cfg.BindAddress)
	envString("MANAGEMENT_TOKEN", &cfg.ManagementToken)
	envString("LOG_LEVEL", &cfg.LogLevel)

	envString("NER_ENDPOINT", &cfg.NEREndpoint)
	envInt("NER_TIMEOUT_MS", &cfg.NERTimeoutMs)
	envString("NER_CACHE_PATH", &cfg.NERCachePath)
	envInt("NER_CACHE_CAPACITY", &cfg.NERCacheCapacity)
	envBool("ALLOW_PATTERN_ONLY", &cfg.AllowPatternOnly)

	envString("CLASSIFIER_ENDPOINT", &cfg.ClassifierEndpoint)
	envInt("CLASSIFIER_TIMEOUT_MS", &cfg.ClassifierTimeoutMs)
	envString("CATEGORY_MAP_FILE", &cfg.CategoryMapFile)

	envString("VAULT_PATH", &cfg.VaultPath)
	envInt("VAULT_RETENTION_HOURS", &cfg.VaultRetentionHours)

	envBool("LOWERCASE_INPUT", &cfg.LowercaseInput)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.CORSOrigins = origins
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// envInt ignores values that are not positive integers.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		} else {
			log.Warnf("load_env", "ignoring %s=%q: not a positive integer", key, v)
		}
	}
}

func envBool(key string, dst *bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}
