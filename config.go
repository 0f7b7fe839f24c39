package godex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the godex engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.godex/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "godex".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.godex/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// Site
	BaseURL   string `json:"base_url" yaml:"base_url"`
	IndexPath string `json:"index_path" yaml:"index_path"`

	// Fetching
	UserAgent         string        `json:"user_agent" yaml:"user_agent"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second"` // <= 0 disables the limiter
	Burst             int           `json:"burst" yaml:"burst"`
	RequestTimeout    time.Duration `json:"request_timeout" yaml:"request_timeout"`
	MaxBodyBytes      int64         `json:"max_body_bytes" yaml:"max_body_bytes"`

	// Crawling
	Concurrency    int  `json:"concurrency" yaml:"concurrency"` // Max detail pages in flight (default 8)
	FetchAbilities bool `json:"fetch_abilities" yaml:"fetch_abilities"`

	// LogFile, when set, makes the binaries write rotated logs there.
	LogFile string `json:"log_file" yaml:"log_file"`
}

// DefaultConfig returns a Config that crawls pokemondb.net politely.
// Database is stored in ~/.godex/godex.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:            "godex",
		StorageDir:        "home",
		BaseURL:           "https://pokemondb.net",
		IndexPath:         "/pokedex/all",
		RequestsPerSecond: 4,
		Burst:             4,
		RequestTimeout:    30 * time.Second,
		MaxBodyBytes:      4 << 20,
		Concurrency:       8,
		FetchAbilities:    true,
	}
}

// LoadConfig reads a JSON or YAML file on top of DefaultConfig. The format
// is picked by extension.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, fmt.Errorf("%w: unknown config extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "godex"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".godex", name+".db")
	}
}
