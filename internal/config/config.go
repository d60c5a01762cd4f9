// Package config assembles the process configuration.
//
// Sources are layered, later ones winning: built-in defaults, an optional YAML
// file, a .env file and IVR_* environment variables. Command-line flags are
// applied on top by the cmd package.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/praveen131106/ivr-modern/internal/logging"
	"github.com/praveen131106/ivr-modern/internal/runtime"
	"github.com/praveen131106/ivr-modern/pkg/intent"
	"github.com/praveen131106/ivr-modern/pkg/persistence/middleware"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Archive drivers.
const (
	ArchiveNone     = ""
	ArchiveSQLite   = "sqlite3"
	ArchivePostgres = "postgres"
)

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StoreConfig selects where live sessions are kept.
type StoreConfig struct {
	Driver      string        `yaml:"driver"`
	Dir         string        `yaml:"dir"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`

	// EncryptionKey is a base64 AES-256 key. When set, sessions are sealed at rest.
	EncryptionKey string `yaml:"encryption_key"`
}

// ArchiveConfig selects where ended calls are archived.
type ArchiveConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`

	// MaskFields are patterns of collected field names masked before archiving.
	MaskFields []string `yaml:"mask_fields"`
}

// Config is the full process configuration.
type Config struct {
	// FlowsDir overrides the embedded flow documents when set.
	FlowsDir string `yaml:"flows_dir"`
	MainFlow string `yaml:"main_flow"`
	Addr     string `yaml:"addr"`

	Log      LogConfig        `yaml:"log"`
	Store    StoreConfig      `yaml:"store"`
	Archive  ArchiveConfig    `yaml:"archive"`
	Intent   intent.Config    `yaml:"intent"`
	Dialogue runtime.Settings `yaml:"dialogue"`

	// IdleTimeout evicts sessions without activity. Zero disables eviction.
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxInputSize int           `yaml:"max_input_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MainFlow: "train_main",
		Addr:     ":8000",
		Log:      LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{
			Driver:      StoreMemory,
			Dir:         ".ivr/sessions",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "ivr:session:",
		},
		Archive:      ArchiveConfig{MaskFields: []string{"^pnr$"}},
		Intent:       intent.DefaultConfig(),
		Dialogue:     runtime.DefaultSettings(),
		IdleTimeout:  30 * time.Minute,
		MaxInputSize: 4096,
	}
}

// Lookup reads one environment variable.
type Lookup func(key string) (string, bool)

// Load builds the configuration from the YAML file at path (optional), the .env
// file at envFile (ignored when absent) and the process environment.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return LoadWith(path, os.LookupEnv)
}

// LoadWith is Load with an explicit environment and no .env handling.
func LoadWith(path string, env Lookup) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env Lookup) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	float := func(key string, dst *float64) {
		if v, ok := env(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := env(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := env(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("IVR_FLOWS_DIR", &c.FlowsDir)
	str("IVR_MAIN_FLOW", &c.MainFlow)
	str("IVR_ADDR", &c.Addr)
	str("IVR_LOG_LEVEL", &c.Log.Level)
	str("IVR_LOG_FORMAT", &c.Log.Format)

	str("IVR_STORE", &c.Store.Driver)
	str("IVR_SESSION_DIR", &c.Store.Dir)
	str("IVR_REDIS_ADDR", &c.Store.RedisAddr)
	str("IVR_REDIS_PREFIX", &c.Store.RedisPrefix)
	duration("IVR_SESSION_TTL", &c.Store.TTL)
	str("IVR_ENCRYPTION_KEY", &c.Store.EncryptionKey)

	str("DATABASE_URL", &c.Archive.DSN)
	str("IVR_ARCHIVE_DRIVER", &c.Archive.Driver)
	str("IVR_ARCHIVE_DSN", &c.Archive.DSN)
	if v, ok := env("IVR_ARCHIVE_MASK"); ok {
		c.Archive.MaskFields = splitList(v)
	}

	float("IVR_FUZZY_FLOOR", &c.Intent.FuzzyFloor)
	float("IVR_STATION_FLOOR", &c.Intent.StationFloor)
	integer("IVR_MIN_FUZZY_LENGTH", &c.Intent.MinFuzzyLength)

	float("IVR_ACCEPT_THRESHOLD", &c.Dialogue.AcceptThreshold)
	float("IVR_HIGH_CONFIDENCE", &c.Dialogue.HighConfidence)
	integer("IVR_NO_MATCH_LIMIT", &c.Dialogue.NoMatchLimit)
	str("IVR_FALLBACK", &c.Dialogue.Fallback)
	str("IVR_GOODBYE", &c.Dialogue.Goodbye)

	duration("IVR_IDLE_TIMEOUT", &c.IdleTimeout)
	integer("IVR_MAX_INPUT_SIZE", &c.MaxInputSize)

	return errors.Join(errs...)
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []error
	if c.MainFlow == "" {
		errs = append(errs, errors.New("main flow must be set"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Driver {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Archive.MaskFields {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("invalid mask pattern %q: %w", p, err))
		}
	}
	switch c.Archive.Driver {
	case ArchiveNone:
	case ArchiveSQLite, ArchivePostgres:
		if c.Archive.DSN == "" {
			errs = append(errs, fmt.Errorf("archive driver %s needs a DSN", c.Archive.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Driver))
	}
	if err := c.Intent.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Dialogue.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.IdleTimeout < 0 {
		errs = append(errs, fmt.Errorf("idle timeout must not be negative, got %s", c.IdleTimeout))
	}
	if c.MaxInputSize <= 0 {
		errs = append(errs, fmt.Errorf("max input size must be positive, got %d", c.MaxInputSize))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
