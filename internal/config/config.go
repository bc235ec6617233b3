// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gible/internal/fsutil"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/tidwall/jsonc"
	"go.uber.org/zap/zapcore"
)

const (
	FileName = "config.json"
	Version  = "0.4.0-merge-conflict"

	HashSHA256 = "sha256"
	HashBLAKE3 = "blake3"

	BackendFiles  = "files"
	BackendBadger = "badger"

	defaultCacheSize = 256
	defaultLogLevel  = "info"

	// The CLI stays quiet unless a repository asks for more.
	defaultRepoLogLevel = "warn"
)

// RepoConfig is the per-repository config.json. Only Version, CreatedAt and
// Author are written by init; the remaining fields are optional tuning knobs.
type RepoConfig struct {
	Version       string `json:"version"`
	CreatedAt     string `json:"created_at"`
	Author        string `json:"author"`
	HashAlgorithm string `json:"hash_algorithm,omitempty"`
	ObjectBackend string `json:"object_backend,omitempty"`
	CacheSize     int    `json:"cache_size,omitempty"`
	LogLevel      string `json:"log_level,omitempty"`
}

// ServerConfig configures the local read-only API server.
type ServerConfig struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Repository struct {
		Path string `json:"path"`
	} `json:"repository"`

	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// NewRepoConfig returns the config written by init.
func NewRepoConfig(now time.Time) *RepoConfig {
	return &RepoConfig{
		Version:   Version,
		CreatedAt: now.Format(time.RFC3339Nano),
		Author:    DefaultAuthor(),
	}
}

// DefaultAuthor resolves the commit author from the environment.
func DefaultAuthor() string {
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

func (c *RepoConfig) applyDefaults() {
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = HashSHA256
	}
	if c.ObjectBackend == "" {
		c.ObjectBackend = BackendFiles
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultCacheSize
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultRepoLogLevel
	}
	if c.Author == "" {
		c.Author = "unknown"
	}
}

func (c *RepoConfig) validate() error {
	switch c.HashAlgorithm {
	case HashSHA256, HashBLAKE3:
	default:
		return fmt.Errorf("unsupported hash_algorithm %q", c.HashAlgorithm)
	}
	switch c.ObjectBackend {
	case BackendFiles, BackendBadger:
	default:
		return fmt.Errorf("unsupported object_backend %q", c.ObjectBackend)
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}

// Validate checks the tuning fields as they would be read back, without
// filling defaults into c.
func (c *RepoConfig) Validate() error {
	check := *c
	check.applyDefaults()
	return check.validate()
}

// LoadRepo reads config.json from the repository directory filesystem.
func LoadRepo(fs billy.Filesystem) (*RepoConfig, error) {
	data, err := util.ReadFile(fs, FileName)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return ParseRepo(data)
}

// ParseRepo decodes a repository config, tolerating comments and trailing commas.
func ParseRepo(data []byte) (*RepoConfig, error) {
	var cfg RepoConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveRepo writes the config as indented JSON, atomically.
func SaveRepo(fs billy.Filesystem, cfg *RepoConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return fsutil.WriteFileAtomic(fs, FileName, data)
}

func getConfigPath() string {
	if p := os.Getenv("GIBLE_CONFIG"); p != "" {
		return p
	}
	return "gible.json"
}

// LoadServer reads the API server config. An empty path falls back to
// GIBLE_CONFIG, then gible.json; a missing file yields defaults.
func LoadServer(path string) (*ServerConfig, error) {
	if path == "" {
		path = getConfigPath()
	}

	cfg := &ServerConfig{LogLevel: defaultLogLevel}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 7420
	cfg.Repository.Path = "."

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
