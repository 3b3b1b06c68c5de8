package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/coattosintetico/termux-gps-tracker/internal/logging"
	"github.com/coattosintetico/termux-gps-tracker/pkg/location"
	"github.com/coattosintetico/termux-gps-tracker/pkg/sampler"
	"github.com/coattosintetico/termux-gps-tracker/pkg/shutdown"
	"github.com/coattosintetico/termux-gps-tracker/pkg/storage"
	"github.com/coattosintetico/termux-gps-tracker/pkg/types"
	"github.com/coattosintetico/termux-gps-tracker/pkg/wakelock"
)

// EnvPrefix is the prefix of every environment override, e.g. TRACKER_RECORD_INTERVAL
const EnvPrefix = "TRACKER"

const catalogDirName = ".catalog"

// Transfer methods
const (
	MethodHTTP  = "http"
	MethodShare = "share"
)

// Viper keys
const (
	KeyRecordInterval        = "record.interval"
	KeyRecordProvider        = "record.provider"
	KeyRecordRecordsDir      = "record.records_dir"
	KeyRecordLogsDir         = "record.logs_dir"
	KeyRecordProviderTimeout = "record.provider_timeout"
	KeyRecordStopSentinel    = "record.stop_sentinel"
	KeyRecordLocationCommand = "record.location_command"
	KeyRecordWakeLockCommand = "record.wake_lock_command"
	KeyRecordWakeUnlock      = "record.wake_unlock_command"
	KeyRecordGracePeriod     = "record.grace_period"

	KeyTransferMethod       = "transfer.method"
	KeyTransferPort         = "transfer.port"
	KeyTransferShareCommand = "transfer.share_command"

	KeyStorageCatalogPath      = "storage.catalog_path"
	KeyStorageCompressionLevel = "storage.compression_level"
	KeyStorageCacheCapacity    = "storage.cache_capacity"
	KeyStorageCacheTTL         = "storage.cache_ttl"
)

// Config holds the application configuration
type Config struct {
	Record   RecordConfig   `json:"record"`
	Transfer TransferConfig `json:"transfer"`
	Storage  StorageConfig  `json:"storage"`
}

// RecordConfig holds the settings of a recording run
type RecordConfig struct {
	Interval          time.Duration  `json:"interval"`
	Provider          types.Provider `json:"provider"`
	RecordsDir        string         `json:"records_dir"`
	LogsDir           string         `json:"logs_dir"`
	ProviderTimeout   time.Duration  `json:"provider_timeout"`
	StopSentinel      string         `json:"stop_sentinel"`
	LocationCommand   string         `json:"location_command"`
	WakeLockCommand   string         `json:"wake_lock_command"`
	WakeUnlockCommand string         `json:"wake_unlock_command"`
	GracePeriod       time.Duration  `json:"grace_period"`
}

// TransferConfig holds the settings of the transfer utility
type TransferConfig struct {
	Method       string `json:"method"`
	Port         int    `json:"port"`
	ShareCommand string `json:"share_command"`
}

// StorageConfig holds storage configuration. An empty CatalogPath places the
// catalog inside the records directory.
type StorageConfig struct {
	CatalogPath      string        `json:"catalog_path"`
	CompressionLevel int           `json:"compression_level"`
	CacheCapacity    int           `json:"cache_capacity"`
	CacheTTL         time.Duration `json:"cache_ttl"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	store := storage.DefaultConfig()

	return &Config{
		Record: RecordConfig{
			Interval:          sampler.DefaultInterval,
			Provider:          types.ProviderNetwork,
			RecordsDir:        store.RecordsDir,
			LogsDir:           logging.DefaultLogsDir,
			ProviderTimeout:   location.DefaultTimeout,
			StopSentinel:      shutdown.DefaultSentinel,
			LocationCommand:   location.DefaultCommand,
			WakeLockCommand:   wakelock.DefaultAcquireCommand,
			WakeUnlockCommand: wakelock.DefaultReleaseCommand,
			GracePeriod:       shutdown.DefaultGracePeriod,
		},
		Transfer: TransferConfig{
			Method:       MethodHTTP,
			Port:         8000,
			ShareCommand: "termux-share",
		},
		Storage: StorageConfig{
			CatalogPath:      "",
			CompressionLevel: store.CompressionLevel,
			CacheCapacity:    store.CacheCapacity,
			CacheTTL:         store.CacheTTL,
		},
	}
}

// SetDefaults registers the default configuration with v. The record
// interval is expressed in whole seconds, as on the command line.
func SetDefaults(v *viper.Viper) {
	def := DefaultConfig()

	v.SetDefault(KeyRecordInterval, int(def.Record.Interval/time.Second))
	v.SetDefault(KeyRecordProvider, string(def.Record.Provider))
	v.SetDefault(KeyRecordRecordsDir, def.Record.RecordsDir)
	v.SetDefault(KeyRecordLogsDir, def.Record.LogsDir)
	v.SetDefault(KeyRecordProviderTimeout, def.Record.ProviderTimeout)
	v.SetDefault(KeyRecordStopSentinel, def.Record.StopSentinel)
	v.SetDefault(KeyRecordLocationCommand, def.Record.LocationCommand)
	v.SetDefault(KeyRecordWakeLockCommand, def.Record.WakeLockCommand)
	v.SetDefault(KeyRecordWakeUnlock, def.Record.WakeUnlockCommand)
	v.SetDefault(KeyRecordGracePeriod, def.Record.GracePeriod)

	v.SetDefault(KeyTransferMethod, def.Transfer.Method)
	v.SetDefault(KeyTransferPort, def.Transfer.Port)
	v.SetDefault(KeyTransferShareCommand, def.Transfer.ShareCommand)

	v.SetDefault(KeyStorageCatalogPath, def.Storage.CatalogPath)
	v.SetDefault(KeyStorageCompressionLevel, def.Storage.CompressionLevel)
	v.SetDefault(KeyStorageCacheCapacity, def.Storage.CacheCapacity)
	v.SetDefault(KeyStorageCacheTTL, def.Storage.CacheTTL)
}

// Load reads the configuration from v, environment variables included, and
// validates it
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	provider, err := types.ParseProvider(v.GetString(KeyRecordProvider))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Record: RecordConfig{
			Interval:          time.Duration(v.GetInt(KeyRecordInterval)) * time.Second,
			Provider:          provider,
			RecordsDir:        v.GetString(KeyRecordRecordsDir),
			LogsDir:           v.GetString(KeyRecordLogsDir),
			ProviderTimeout:   v.GetDuration(KeyRecordProviderTimeout),
			StopSentinel:      v.GetString(KeyRecordStopSentinel),
			LocationCommand:   v.GetString(KeyRecordLocationCommand),
			WakeLockCommand:   v.GetString(KeyRecordWakeLockCommand),
			WakeUnlockCommand: v.GetString(KeyRecordWakeUnlock),
			GracePeriod:       v.GetDuration(KeyRecordGracePeriod),
		},
		Transfer: TransferConfig{
			Method:       strings.ToLower(v.GetString(KeyTransferMethod)),
			Port:         v.GetInt(KeyTransferPort),
			ShareCommand: v.GetString(KeyTransferShareCommand),
		},
		Storage: StorageConfig{
			CatalogPath:      v.GetString(KeyStorageCatalogPath),
			CompressionLevel: v.GetInt(KeyStorageCompressionLevel),
			CacheCapacity:    v.GetInt(KeyStorageCacheCapacity),
			CacheTTL:         v.GetDuration(KeyStorageCacheTTL),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ToStorageConfig converts to storage.Config
func (c *Config) ToStorageConfig() *storage.Config {
	return &storage.Config{
		RecordsDir:       c.Record.RecordsDir,
		CatalogPath:      c.CatalogPath(),
		CompressionLevel: c.Storage.CompressionLevel,
		CacheCapacity:    c.Storage.CacheCapacity,
		CacheTTL:         c.Storage.CacheTTL,
	}
}

// CatalogPath returns the directory of the run catalog
func (c *Config) CatalogPath() string {
	if c.Storage.CatalogPath != "" {
		return c.Storage.CatalogPath
	}
	return filepath.Join(c.Record.RecordsDir, catalogDirName)
}

// ToSamplerConfig converts to sampler.Config for a run writing path
func (c *Config) ToSamplerConfig(path string) sampler.Config {
	return sampler.Config{
		Path:        path,
		Provider:    c.Record.Provider,
		Interval:    c.Record.Interval,
		GracePeriod: c.Record.GracePeriod,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Record.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1 second")
	}

	if !c.Record.Provider.Valid() {
		return fmt.Errorf("%w: %q", types.ErrInvalidProvider, c.Record.Provider)
	}

	if c.Record.RecordsDir == "" {
		return fmt.Errorf("records directory is required")
	}

	if c.Record.LogsDir == "" {
		return fmt.Errorf("logs directory is required")
	}

	if c.Record.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}

	if c.Record.StopSentinel == "" {
		return fmt.Errorf("stop sentinel is required")
	}

	if c.Transfer.Method != MethodHTTP && c.Transfer.Method != MethodShare {
		return fmt.Errorf("transfer method must be %q or %q", MethodHTTP, MethodShare)
	}

	if c.Transfer.Port < 1 || c.Transfer.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	return nil
}
