package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/synchronoux/internal/core/domain"
)

// FileName is the configuration file inside the config directory.
const FileName = "config.toml"

// Middle store kinds.
const (
	MiddleStoreGCS        = "gcs"
	MiddleStoreS3         = "s3"
	MiddleStoreMinio      = "minio"
	MiddleStoreFilesystem = "filesystem"
)

// Config is the typed form of config.toml.
type Config struct {
	Sync        SyncConfig        `toml:"sync"`
	Polling     PollingConfig     `toml:"polling"`
	ORM         ORMConfig         `toml:"orm"`
	MiddleStore MiddleStoreConfig `toml:"middle_store"`
	Format      FormatConfig      `toml:"format"`
	Websocket   WebsocketConfig   `toml:"websocket"`
	Scheduler   SchedulerConfig   `toml:"scheduler"`
	Models      []ModelConfig     `toml:"models"`
}

// SyncConfig configures the orchestrator.
type SyncConfig struct {
	Priority            string `toml:"priority"`
	MaxRecordsPerUpload int    `toml:"max_records_per_upload"`
	PushDestination     string `toml:"push_destination"`
	Resilient           bool   `toml:"resilient"`
	WaitStrategy        string `toml:"wait_strategy"`
}

// PollingConfig configures the wait engine.
type PollingConfig struct {
	MaxAttempts       int     `toml:"max_attempts"`
	BackoffMultiplier float64 `toml:"backoff_multiplier"`
	MaxInterval       string  `toml:"max_interval,omitempty"`
}

// ORMConfig selects the local database.
type ORMConfig struct {
	Driver           string `toml:"driver"`
	DSN              string `toml:"dsn"`
	WriteMode        string `toml:"write_mode"`
	LimitPerQuery    int    `toml:"limit_per_query"`
	ReverseColumnMap bool   `toml:"reverse_column_map"`
}

// MiddleStoreConfig selects and configures the middle store backend.
type MiddleStoreConfig struct {
	Kind              string  `toml:"kind"`
	Bucket            string  `toml:"bucket"`
	PullPrefix        string  `toml:"pull_prefix"`
	Endpoint          string  `toml:"endpoint,omitempty"`
	Region            string  `toml:"region,omitempty"`
	CredentialsFile   string  `toml:"credentials_file,omitempty"`
	AccessKey         string  `toml:"access_key,omitempty"`
	SecretKey         string  `toml:"secret_key,omitempty"`
	Secure            bool    `toml:"secure"`
	SkipCleanup       bool    `toml:"skip_cleanup"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
	Burst             int     `toml:"burst,omitempty"`
}

// FormatConfig selects the batch encoding.
type FormatConfig struct {
	Kind       string `toml:"kind"`
	Validate   bool   `toml:"validate"`
	SchemaFile string `toml:"schema_file,omitempty"`
}

// WebsocketConfig configures the WEBSOCKET wait strategy.
type WebsocketConfig struct {
	URL   string `toml:"url,omitempty"`
	Token string `toml:"token,omitempty"`
}

// SchedulerConfig configures the daemon.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Interval string `toml:"interval"`
}

// ModelConfig maps one model to a table.
type ModelConfig struct {
	Name              string            `toml:"name"`
	Table             string            `toml:"table"`
	PrimaryKey        string            `toml:"primary_key"`
	NameCasing        string            `toml:"name_casing,omitempty"`
	ReverseNameCasing string            `toml:"reverse_name_casing,omitempty"`
	Filter            string            `toml:"filter,omitempty"`
	Columns           map[string]string `toml:"columns,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	polling := domain.DefaultPollingOption()
	return &Config{
		Sync: SyncConfig{
			Priority:            string(domain.DefaultPriority),
			MaxRecordsPerUpload: 100,
			PushDestination:     "outbound",
			WaitStrategy:        string(domain.WaitPolling),
		},
		Polling: PollingConfig{
			MaxAttempts:       polling.MaxAttempts,
			BackoffMultiplier: polling.BackoffMultiplier,
			MaxInterval:       polling.MaxInterval.String(),
		},
		ORM: ORMConfig{
			Driver:           "sqlite",
			WriteMode:        string(domain.WriteUpsert),
			LimitPerQuery:    100,
			ReverseColumnMap: true,
		},
		MiddleStore: MiddleStoreConfig{
			Kind:       MiddleStoreFilesystem,
			PullPrefix: "inbound",
		},
		Format: FormatConfig{Kind: "json"},
		Scheduler: SchedulerConfig{
			Interval: "5m",
		},
	}
}

// DefaultDir returns ~/.synchronoux.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".synchronoux"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path with restricted permissions.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks every section and returns all problems found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
	}

	if _, err := domain.ParsePriority(c.Sync.Priority); err != nil {
		errs = append(errs, fmt.Errorf("sync.priority: %w", err))
	}
	if _, err := domain.ParseWaitStrategy(c.Sync.WaitStrategy); err != nil {
		errs = append(errs, fmt.Errorf("sync.wait_strategy: %w", err))
	}
	if c.Sync.MaxRecordsPerUpload <= 0 {
		add("sync.max_records_per_upload must be positive")
	}
	if _, err := c.PollingOption(); err != nil {
		errs = append(errs, fmt.Errorf("polling: %w", err))
	}

	switch strings.ToLower(c.ORM.Driver) {
	case "", "sqlite", "sqlite3":
	case "postgres", "postgresql", "pg":
		if c.ORM.DSN == "" {
			add("orm.dsn is required for postgres")
		}
	default:
		add("orm.driver %q is not supported", c.ORM.Driver)
	}
	if _, err := domain.ParseWriteMode(c.ORM.WriteMode); err != nil {
		errs = append(errs, fmt.Errorf("orm.write_mode: %w", err))
	}
	if c.ORM.LimitPerQuery < 0 {
		add("orm.limit_per_query must not be negative")
	}

	switch c.MiddleStore.Kind {
	case MiddleStoreGCS, MiddleStoreS3, MiddleStoreFilesystem:
	case MiddleStoreMinio:
		if c.MiddleStore.Endpoint == "" {
			add("middle_store.endpoint is required for minio")
		}
	default:
		add("middle_store.kind %q is not supported", c.MiddleStore.Kind)
	}
	if c.MiddleStore.Kind != MiddleStoreFilesystem && c.MiddleStore.Bucket == "" {
		add("middle_store.bucket is required")
	}

	switch strings.ToLower(c.Format.Kind) {
	case "", "json", "xml", "toml":
	default:
		add("format.kind %q is not supported", c.Format.Kind)
	}

	if strings.EqualFold(c.Sync.WaitStrategy, string(domain.WaitWebsocket)) && c.Websocket.URL == "" {
		add("websocket.url is required for the WEBSOCKET wait strategy")
	}
	if strings.EqualFold(c.Sync.WaitStrategy, string(domain.WaitWatch)) && c.MiddleStore.Kind != MiddleStoreFilesystem {
		add("the WATCH wait strategy needs a filesystem middle store")
	}

	if c.Scheduler.Enabled {
		if _, err := c.SchedulerInterval(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.interval: %w", err))
		}
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		switch {
		case m.Name == "":
			add("models[%d].name is required", i)
		case seen[m.Name]:
			add("models[%d]: duplicate model %q", i, m.Name)
		}
		seen[m.Name] = true
		if m.Table == "" {
			add("models[%d].table is required", i)
		}
		for _, casing := range []string{m.NameCasing, m.ReverseNameCasing} {
			if _, err := parseCasing(casing); err != nil {
				errs = append(errs, fmt.Errorf("models[%d]: %w", i, err))
			}
		}
	}

	return errors.Join(errs...)
}

// PollingOption converts the [polling] section.
func (c *Config) PollingOption() (domain.PollingOption, error) {
	opt := domain.PollingOption{
		MaxAttempts:       c.Polling.MaxAttempts,
		BackoffMultiplier: c.Polling.BackoffMultiplier,
	}
	if c.Polling.MaxInterval != "" {
		d, err := time.ParseDuration(c.Polling.MaxInterval)
		if err != nil {
			return opt, fmt.Errorf("%w: max_interval: %v", domain.ErrInvalidInput, err)
		}
		opt.MaxInterval = d
	}
	return opt, opt.Validate()
}

// SchedulerInterval parses scheduler.interval.
func (c *Config) SchedulerInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Scheduler.Interval)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive", domain.ErrInvalidInput)
	}
	return d, nil
}

// RecordTableMap builds the model mapping from the [[models]] tables.
func (c *Config) RecordTableMap() (domain.RecordTableMap, error) {
	out := make(domain.RecordTableMap, len(c.Models))
	for _, m := range c.Models {
		casing, err := parseCasing(m.NameCasing)
		if err != nil {
			return nil, err
		}
		reverse, err := parseCasing(m.ReverseNameCasing)
		if err != nil {
			return nil, err
		}
		out[m.Name] = &domain.RecordMap{
			Table:             m.Table,
			PrimaryKey:        m.PrimaryKey,
			ColumnMap:         m.Columns,
			NameCasing:        casing,
			ReverseNameCasing: reverse,
			Filter:            m.Filter,
		}
	}
	return out, nil
}

func parseCasing(s string) (domain.NameCasing, error) {
	switch c := domain.NameCasing(strings.ToUpper(strings.TrimSpace(s))); c {
	case "":
		return "", nil
	case domain.CamelCase, domain.SnakeCase:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown name casing %q", domain.ErrInvalidInput, s)
}
