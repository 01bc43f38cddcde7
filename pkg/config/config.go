package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/types"
)

const (
	// DefaultSyncLogInterval is how often catch-up progress is logged.
	DefaultSyncLogInterval = 30 * time.Second
	// DefaultSyncCheckpointInterval is how often catch-up progress is checkpointed.
	DefaultSyncCheckpointInterval = 30 * time.Second
)

// Database engines supported by the index checkpoint store.
const (
	EngineSQLite = "sqlite"
	EngineBadger = "badger"
	EngineMemory = "memory"

	// DefaultChainDBPath is where the chain state is kept when chain.db is not set.
	DefaultChainDBPath = "./data/chain.sqlite"
)

// Config represents the complete configuration for IndexSync.
type Config struct {
	// Chain contains the chain follower and chain state configuration
	Chain ChainConfig `yaml:"chain" json:"chain" toml:"chain"`

	// Sync contains the index catch-up timing configuration
	Sync SyncConfig `yaml:"sync" json:"sync" toml:"sync"`

	// Indexes contains the configuration for all indexes
	Indexes []IndexConfig `yaml:"indexes" json:"indexes" toml:"indexes"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains REST API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`
}

// ChainConfig configures where blocks come from and how the local chain state is kept.
type ChainConfig struct {
	// RPCURL is the Ethereum RPC endpoint URL
	RPCURL string `yaml:"rpc_url" json:"rpc_url" toml:"rpc_url"`

	// Finality specifies which head is followed: "finalized", "safe", or "latest"
	Finality string `yaml:"finality" json:"finality" toml:"finality"`

	// StartBlock is the first block loaded into an empty chain state
	StartBlock uint64 `yaml:"start_block" json:"start_block" toml:"start_block"`

	// PollInterval is how often the head is polled for new blocks
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// FlushInterval is how often a chain state flush is signalled to indexes
	FlushInterval common.Duration `yaml:"flush_interval" json:"flush_interval" toml:"flush_interval"`

	// MaxReorgDepth bounds how far back the follower walks to find a fork point
	MaxReorgDepth uint64 `yaml:"max_reorg_depth" json:"max_reorg_depth" toml:"max_reorg_depth"`

	// RateLimit caps the requests per second sent to the node. Zero means unlimited.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit" toml:"rate_limit"`

	// RateBurst is how many requests may exceed RateLimit at once
	RateBurst int `yaml:"rate_burst" json:"rate_burst" toml:"rate_burst"`

	// Retry contains RPC retry configuration with exponential backoff
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`

	// Prune contains optional block data pruning settings
	Prune *PruneConfig `yaml:"prune,omitempty" json:"prune,omitempty" toml:"prune,omitempty"`

	// DB stores the block tree and block data so the chain state survives restarts
	DB *DatabaseConfig `yaml:"db,omitempty" json:"db,omitempty" toml:"db,omitempty"`
}

// ApplyDefaults sets default values for optional chain configuration fields.
func (c *ChainConfig) ApplyDefaults() {
	if c.Finality == "" {
		c.Finality = types.FinalityFinalized.String()
	}
	if c.PollInterval.Duration == 0 {
		c.PollInterval = common.NewDuration(5 * time.Second) //nolint:mnd
	}
	if c.FlushInterval.Duration == 0 {
		c.FlushInterval = common.NewDuration(time.Minute)
	}
	if c.MaxReorgDepth == 0 {
		c.MaxReorgDepth = 128
	}
	if c.RateLimit > 0 && c.RateBurst == 0 {
		c.RateBurst = max(1, int(c.RateLimit))
	}
	if c.Retry != nil {
		c.Retry.ApplyDefaults()
	}
	if c.Prune != nil {
		c.Prune.ApplyDefaults()
	}
	if c.DB == nil {
		c.DB = &DatabaseConfig{Path: DefaultChainDBPath}
	}
	c.DB.ApplyDefaults()
}

// Validate checks if the chain configuration is valid.
func (c *ChainConfig) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required")
	}

	if _, err := types.ParseBlockFinality(c.Finality); err != nil {
		return fmt.Errorf("chain.finality: %w", err)
	}

	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("chain.rate_limit and chain.rate_burst must not be negative")
	}

	if c.Prune != nil {
		if err := c.Prune.Validate(); err != nil {
			return fmt.Errorf("chain.prune: %w", err)
		}
	}

	if c.DB != nil {
		if err := c.DB.Validate(); err != nil {
			return fmt.Errorf("chain.%w", err)
		}
	}

	return nil
}

// PruneConfig configures block data pruning in the chain state.
type PruneConfig struct {
	// Enabled turns block data pruning on
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// KeepBlocks is the number of most recent blocks whose data is always retained
	KeepBlocks uint64 `yaml:"keep_blocks" json:"keep_blocks" toml:"keep_blocks"`

	// CheckInterval is how often the pruner runs
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`
}

// ApplyDefaults sets default values for optional prune configuration fields.
func (p *PruneConfig) ApplyDefaults() {
	if p.KeepBlocks == 0 {
		p.KeepBlocks = 1024
	}
	if p.CheckInterval.Duration == 0 {
		p.CheckInterval = common.NewDuration(time.Minute)
	}
}

// Validate checks if the prune configuration is valid.
func (p *PruneConfig) Validate() error {
	if p.Enabled && p.KeepBlocks < 2 { //nolint:mnd
		return fmt.Errorf("keep_blocks must be at least 2")
	}
	return nil
}

// SyncConfig configures the background catch-up of indexes.
type SyncConfig struct {
	// LogInterval is how often catch-up progress is logged
	LogInterval common.Duration `yaml:"log_interval" json:"log_interval" toml:"log_interval"`

	// CheckpointInterval is how often catch-up progress is persisted
	CheckpointInterval common.Duration `yaml:"checkpoint_interval" json:"checkpoint_interval" toml:"checkpoint_interval"`
}

// ApplyDefaults sets default values for optional sync configuration fields.
func (s *SyncConfig) ApplyDefaults() {
	if s.LogInterval.Duration == 0 {
		s.LogInterval = common.NewDuration(DefaultSyncLogInterval)
	}
	if s.CheckpointInterval.Duration == 0 {
		s.CheckpointInterval = common.NewDuration(DefaultSyncCheckpointInterval)
	}
}

// RetryConfig represents RPC retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// DatabaseConfig represents the checkpoint store configuration of one index.
type DatabaseConfig struct {
	// Engine selects the storage engine: "sqlite", "badger" or "memory"
	Engine string `yaml:"engine" json:"engine" toml:"engine"`

	// Path is the SQLite database file or the badger directory
	Path string `yaml:"path" json:"path" toml:"path"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the SQLite synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// SyncWrites makes badger fsync every write
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes" toml:"sync_writes"`

	// Maintenance contains optional SQLite maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.Engine == "" {
		d.Engine = EngineSQLite
	}
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
	if d.Maintenance != nil {
		d.Maintenance.ApplyDefaults()
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	switch d.Engine {
	case EngineSQLite, EngineBadger:
		if d.Path == "" {
			return fmt.Errorf("db.path is required for engine %s", d.Engine)
		}
	case EngineMemory:
	default:
		return fmt.Errorf("db.engine must be one of: sqlite, badger, memory")
	}

	if d.JournalMode != "" && !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
		return fmt.Errorf("db.journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
	}

	if d.Synchronous != "" && !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
		return fmt.Errorf("db.synchronous must be one of: FULL, NORMAL, OFF")
	}

	if d.Maintenance != nil {
		if err := d.Maintenance.Validate(); err != nil {
			return fmt.Errorf("db.maintenance: %w", err)
		}
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("maintenance.wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components: index, registry, chainstate, follower, pruner, kvdb,
	// maintenance, rpc, api
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll

	// File optionally mirrors every log entry, as JSON, into a rotating file
	File *LogFileConfig `yaml:"file,omitempty" json:"file,omitempty" toml:"file,omitempty"`
}

// LogFileConfig configures the rotating log file.
type LogFileConfig struct {
	// Path is the log file; rotated files are kept next to it
	Path string `yaml:"path" json:"path" toml:"path"`

	// MaxSizeMB is the size at which the file is rotated
	MaxSizeMB int `yaml:"max_size_mb" json:"max_size_mb" toml:"max_size_mb"`

	// MaxBackups is how many rotated files are kept
	MaxBackups int `yaml:"max_backups" json:"max_backups" toml:"max_backups"`

	// MaxAgeDays is how long rotated files are kept
	MaxAgeDays int `yaml:"max_age_days" json:"max_age_days" toml:"max_age_days"`

	// Compress gzips rotated files
	Compress bool `yaml:"compress" json:"compress" toml:"compress"`
}

// ApplyDefaults sets default rotation limits.
func (f *LogFileConfig) ApplyDefaults() {
	if f.MaxSizeMB == 0 {
		f.MaxSizeMB = 100
	}
	if f.MaxBackups == 0 {
		f.MaxBackups = 5
	}
	if f.MaxAgeDays == 0 {
		f.MaxAgeDays = 30
	}
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
	if l.File != nil {
		l.File.ApplyDefaults()
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.Normalize(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.Normalize(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.Normalize(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	if l.File != nil {
		if l.File.Path == "" {
			return fmt.Errorf("logging.file.path is required")
		}
		if l.File.MaxSizeMB < 0 || l.File.MaxBackups < 0 || l.File.MaxAgeDays < 0 {
			return fmt.Errorf("logging.file: rotation limits must not be negative")
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if level, ok := l.ComponentLevels[component]; ok {
		return common.Normalize(level)
	}
	return common.Normalize(l.DefaultLevel)
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	return common.Normalize(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l.Development
}

// GetFileOutput returns the rotating log file settings, or nil when logs go to the console only.
func (l *LoggingConfig) GetFileOutput() *logger.FileOutput {
	if l.File == nil {
		return nil
	}
	return &logger.FileOutput{
		Path:       l.File.Path,
		MaxSizeMB:  l.File.MaxSizeMB,
		MaxBackups: l.File.MaxBackups,
		MaxAgeDays: l.File.MaxAgeDays,
		Compress:   l.File.Compress,
	}
}

// IsNil reports whether the receiver is a nil pointer.
func (l *LoggingConfig) IsNil() bool {
	return l == nil
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" {
			return fmt.Errorf("path is required when metrics are enabled")
		}
		if m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// APIConfig configures the REST API server.
type APIConfig struct {
	// Enabled controls whether the API server runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the API server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request
	ReadTimeout common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response
	WriteTimeout common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout
	IdleTimeout common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	// CORS contains cross-origin settings
	CORS CORSConfig `yaml:"cors" json:"cors" toml:"cors"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults sets default values for optional API configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// IndexConfig represents the configuration for a single index.
type IndexConfig struct {
	// Name is a unique identifier for this index
	Name string `yaml:"name" json:"name" toml:"name"`

	// Type selects the registered index implementation (see `indexsync list`)
	Type string `yaml:"type" json:"type" toml:"type"`

	// Disabled skips this index at startup
	Disabled bool `yaml:"disabled" json:"disabled" toml:"disabled"`

	// DB contains the checkpoint store configuration for the index
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`
}

// ApplyDefaults sets default values for optional index configuration fields.
func (i *IndexConfig) ApplyDefaults() {
	i.DB.ApplyDefaults()
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	c.Chain.ApplyDefaults()
	c.Sync.ApplyDefaults()

	for i := range c.Indexes {
		c.Indexes[i].ApplyDefaults()
	}

	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}

	if c.API != nil {
		c.API.ApplyDefaults()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Chain.Validate(); err != nil {
		return err
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if len(c.Indexes) == 0 {
		return fmt.Errorf("at least one index must be configured")
	}

	names := make(map[string]bool)
	paths := make(map[string]string)
	for i, idx := range c.Indexes {
		if idx.Name == "" {
			return fmt.Errorf("indexes[%d]: name is required", i)
		}

		if names[idx.Name] {
			return fmt.Errorf("indexes[%d]: duplicate index name '%s'", i, idx.Name)
		}
		names[idx.Name] = true

		if idx.Type == "" {
			return fmt.Errorf("indexes[%d] (%s): type is required", i, idx.Name)
		}

		if err := idx.DB.Validate(); err != nil {
			return fmt.Errorf("indexes[%d] (%s): %w", i, idx.Name, err)
		}

		if idx.DB.Path != "" {
			if c.Chain.DB != nil && idx.DB.Path == c.Chain.DB.Path {
				return fmt.Errorf("indexes[%d] (%s): db.path is already used by the chain state", i, idx.Name)
			}
			if other, ok := paths[idx.DB.Path]; ok {
				return fmt.Errorf("indexes[%d] (%s): db.path is already used by index '%s'", i, idx.Name, other)
			}
			paths[idx.DB.Path] = idx.Name
		}
	}

	return nil
}
