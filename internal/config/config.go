package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Token budget bounds. The budget moves in steps of 100.
const (
	MinMaxTokens     = 100
	MaxMaxTokens     = 4096
	DefaultMaxTokens = 512
)

type Config struct {
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	MaxTokens int    `json:"max_tokens"`
	Backend   struct {
		BaseURL        string `json:"base_url"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"backend"`
	Upload struct {
		AcceptedTypes []string `json:"accepted_types"`
		MaxSizeMB     float64  `json:"max_size_mb"`
	} `json:"upload"`
	Summarizer struct {
		Clusters int `json:"clusters"`
	} `json:"summarizer"`
	Chat struct {
		Language string `json:"language"`
	} `json:"chat"`
	Metrics struct {
		Listen string `json:"listen"`
	} `json:"metrics"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	KB struct {
		RefreshSchedule string `json:"refresh_schedule"`
	} `json:"kb"`
}

// DefaultPath returns ~/.docpilot/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".docpilot", "config.json")
}

func defaults() *Config {
	cfg := &Config{
		DataDir:   filepath.Join(os.Getenv("HOME"), ".docpilot"),
		LogLevel:  "info",
		MaxTokens: DefaultMaxTokens,
	}
	cfg.Backend.BaseURL = "http://localhost:8000"
	cfg.Backend.TimeoutSeconds = 30
	cfg.Upload.AcceptedTypes = []string{".pdf", ".txt", ".json"}
	cfg.Upload.MaxSizeMB = 10
	cfg.Summarizer.Clusters = 10
	cfg.Chat.Language = "English"
	cfg.KB.RefreshSchedule = "@every 1m"
	return cfg
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if baseURL := os.Getenv("DOCPILOT_BACKEND_URL"); baseURL != "" {
		cfg.Backend.BaseURL = baseURL
	}
	if maxTokens := os.Getenv("DOCPILOT_MAX_TOKENS"); maxTokens != "" {
		n, err := strconv.Atoi(maxTokens)
		if err != nil {
			return nil, fmt.Errorf("DOCPILOT_MAX_TOKENS: %w", err)
		}
		cfg.MaxTokens = n
	}
	if tgToken := os.Getenv("DOCPILOT_TELEGRAM_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if level := os.Getenv("DOCPILOT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return cfg, nil
}

// Validate checks the values that workflows rely on.
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is empty"))
	}
	if err := ValidateMaxTokens(c.MaxTokens); err != nil {
		errs = append(errs, err)
	}
	if c.Summarizer.Clusters < 5 || c.Summarizer.Clusters > 20 {
		errs = append(errs, fmt.Errorf("summarizer.clusters must be between 5 and 20, got %d", c.Summarizer.Clusters))
	}
	if c.Upload.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("upload.max_size_mb must be positive, got %v", c.Upload.MaxSizeMB))
	}
	if len(c.Upload.AcceptedTypes) == 0 {
		errs = append(errs, errors.New("upload.accepted_types is empty"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ValidateMaxTokens checks a token budget against the allowed range.
func ValidateMaxTokens(n int) error {
	if n < MinMaxTokens || n > MaxMaxTokens {
		return fmt.Errorf("max_tokens must be between %d and %d, got %d", MinMaxTokens, MaxMaxTokens, n)
	}
	return nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg into its generic JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every key of cfg flattened, with secrets masked when
// mask is set.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads one dot-separated key from the file at path, creating the
// file with defaults when it is missing.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// KnownKey reports whether key names a config value.
func KnownKey(key string) bool {
	m, err := ToMap(defaults())
	if err != nil {
		return false
	}
	_, ok := Flatten(m)[key]
	return ok
}

// SetValue sets one dot-separated key in the existing file at path. The
// value is stored as JSON when it parses as JSON and as a string otherwise.
func SetValue(path, key, raw string) error {
	flat, err := readFlat(path)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	flat[key] = v

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, data)
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return Flatten(m), nil
}
