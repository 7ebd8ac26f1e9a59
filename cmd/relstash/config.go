package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/relstash/compress"
	"github.com/hupe1980/relstash/osm"
	"github.com/hupe1980/relstash/stash"
	"github.com/tailscale/hujson"
)

var (
	errConfigFileRead = errors.New("cannot read config file")
	errConfigInvalid  = errors.New("invalid config file")
)

// S3Config holds the endpoint used for s3:// inputs and reports.
type S3Config struct {
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	Region    string `json:"region,omitempty"`
	UseSSL    bool   `json:"use_ssl,omitempty"`
}

// Config holds all configuration options.
type Config struct {
	BlockSize     int      `json:"block_size,omitempty"`
	MemoryLimit   int64    `json:"memory_limit,omitempty"`
	IOLimit       int64    `json:"io_limit,omitempty"`
	OffHeap       bool     `json:"off_heap,omitempty"`
	Workers       int      `json:"workers,omitempty"`
	Compression   string   `json:"compression,omitempty"`
	LogLevel      string   `json:"log_level,omitempty"`
	LogFormat     string   `json:"log_format,omitempty"`
	RelationTypes []string `json:"relation_types,omitempty"`
	MemberTypes   []string `json:"member_types,omitempty"`
	Report        string   `json:"report,omitempty"`
	S3            S3Config `json:"s3"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BlockSize: stash.DefaultBlockSize,
		Workers:   1,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// LoadConfigFile overlays the JSONC file at path onto cfg. Keys missing from
// the file keep their value.
func LoadConfigFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", errConfigFileRead, path, err)
	}
	return parseConfig(cfg, data)
}

func parseConfig(cfg Config, data []byte) (Config, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", errConfigInvalid, err)
	}
	dec := json.NewDecoder(strings.NewReader(string(standardized)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", errConfigInvalid, err)
	}
	return cfg, nil
}

// applyEnv fills S3 credentials that are not configured from the environment.
func applyEnv(cfg Config, env []string) Config {
	lookup := func(key string) string {
		for _, e := range env {
			if after, ok := strings.CutPrefix(e, key+"="); ok {
				return after
			}
		}
		return ""
	}
	if cfg.S3.Endpoint == "" {
		cfg.S3.Endpoint = lookup("RELSTASH_S3_ENDPOINT")
	}
	if cfg.S3.AccessKey == "" {
		cfg.S3.AccessKey = lookup("RELSTASH_S3_ACCESS_KEY")
	}
	if cfg.S3.SecretKey == "" {
		cfg.S3.SecretKey = lookup("RELSTASH_S3_SECRET_KEY")
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.BlockSize < stash.MinBlockSize {
		return fmt.Errorf("block size %d is below %d", cfg.BlockSize, stash.MinBlockSize)
	}
	if cfg.MemoryLimit < 0 || cfg.IOLimit < 0 {
		return errors.New("limits must not be negative")
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", cfg.LogFormat)
	}
	if cfg.Compression != "" {
		if _, err := compress.NewRegistry().Lookup(compress.Kind(cfg.Compression)); err != nil {
			return err
		}
	}
	for _, t := range cfg.MemberTypes {
		if _, err := osm.ParseItemType(t); err != nil {
			return err
		}
	}
	return nil
}

// FormatConfig returns the config as formatted JSON with secrets masked.
func FormatConfig(cfg Config) (string, error) {
	if cfg.S3.SecretKey != "" {
		cfg.S3.SecretKey = "***"
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}
	return string(data), nil
}
