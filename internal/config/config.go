// Package config loads mailreeve settings from a TOML file.
//
// The file lives at ~/.mailreeve/config.toml unless MAILREEVE_HOME or an
// explicit path says otherwise. A missing file is not an error: every
// field has a default and mailreeve works out of the box.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/mailreeve/mailreeve/internal/gmail"
)

// EnvHome overrides the mailreeve home directory.
const EnvHome = "MAILREEVE_HOME"

const (
	dirName  = ".mailreeve"
	fileName = "config.toml"
)

// Config is the full configuration tree.
type Config struct {
	Gmail GmailConfig `toml:"gmail"`
	Rules RulesConfig `toml:"rules"`
	Log   LogConfig   `toml:"log"`
}

// GmailConfig tunes the transport and the engine's fetch behavior.
type GmailConfig struct {
	// Credentials is the OAuth client secret file downloaded from the
	// Google Cloud console.
	Credentials string `toml:"credentials"`

	// Token caches the OAuth token between runs.
	Token string `toml:"token"`

	// PageSize caps each message list call, 1..500.
	PageSize int `toml:"page_size"`

	// MaxBatch caps batch mutation chunks.
	MaxBatch int `toml:"max_batch"`

	// DetailFormat is "metadata" or "raw". Raw downloads full MIME so
	// snippet conditions match real body text.
	DetailFormat string `toml:"detail_format"`

	// DetailConcurrency is the number of parallel detail fetches.
	DetailConcurrency int `toml:"detail_concurrency"`

	// QPS is the request rate the quota-unit token bucket is scaled to.
	QPS float64 `toml:"qps"`
}

// RulesConfig locates the rule store.
type RulesConfig struct {
	Path string `toml:"path"`
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string `toml:"level"`
}

// Home returns the mailreeve directory: $MAILREEVE_HOME if set,
// otherwise ~/.mailreeve.
func Home() string {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dirName
	}
	return filepath.Join(home, dirName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Home(), fileName)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home := Home()
	return Config{
		Gmail: GmailConfig{
			Credentials:       filepath.Join(home, "credentials.json"),
			Token:             filepath.Join(home, "token.json"),
			PageSize:          100,
			MaxBatch:          gmail.MaxBatchSize,
			DetailFormat:      "metadata",
			DetailConcurrency: 4,
			QPS:               2.5,
		},
		Rules: RulesConfig{Path: filepath.Join(home, "rules.json")},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path, or the default location when path
// is empty. File values override defaults field by field. A missing
// file at the default location yields plain defaults; a missing file
// at an explicit path is an error, since the user asked for it.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	_, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
	case os.IsNotExist(err) && !explicit:
		return cfg, nil
	default:
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) expand() {
	c.Gmail.Credentials = ExpandPath(c.Gmail.Credentials)
	c.Gmail.Token = ExpandPath(c.Gmail.Token)
	c.Rules.Path = ExpandPath(c.Rules.Path)
}

// Validate rejects values the transport or engine cannot honor.
func (c *Config) Validate() error {
	g := c.Gmail
	if g.PageSize < 1 || g.PageSize > 500 {
		return fmt.Errorf("gmail.page_size %d out of range 1..500", g.PageSize)
	}
	if g.MaxBatch < 1 || g.MaxBatch > gmail.MaxBatchSize {
		return fmt.Errorf("gmail.max_batch %d out of range 1..%d", g.MaxBatch, gmail.MaxBatchSize)
	}
	switch g.DetailFormat {
	case "metadata", "raw":
	default:
		return fmt.Errorf("gmail.detail_format %q is not \"metadata\" or \"raw\"", g.DetailFormat)
	}
	if g.DetailConcurrency < 1 || g.DetailConcurrency > 16 {
		return fmt.Errorf("gmail.detail_concurrency %d out of range 1..16", g.DetailConcurrency)
	}
	if g.QPS <= 0 {
		return fmt.Errorf("gmail.qps must be positive, got %g", g.QPS)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ExpandPath replaces a leading "~" or "~/" with the user's home
// directory. Paths that do not start with a tilde pass through.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// ParseLevel maps a config level name to a slog level. An empty name
// means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
