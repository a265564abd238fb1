package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BackendType identifies a device backend strategy
type BackendType string

const (
	BackendUSB       BackendType = "usb"
	BackendNetwork   BackendType = "network"
	BackendPlatform  BackendType = "platform"
	BackendSynthetic BackendType = "synthetic"
)

// Config holds all application configuration
type Config struct {
	Discovery  DiscoveryConfig `mapstructure:"discovery"`
	Resolver   ResolverConfig  `mapstructure:"resolver"`
	Bridge     BridgeConfig    `mapstructure:"bridge"`
	Platform   PlatformConfig  `mapstructure:"platform"`
	Synthetic  SyntheticConfig `mapstructure:"synthetic"`
	Thumbnails ThumbnailConfig `mapstructure:"thumbnails"`
	Transfer   TransferConfig  `mapstructure:"transfer"`
	Viewer     ViewerConfig    `mapstructure:"viewer"`
	Device     DeviceConfig    `mapstructure:"device"`
	Logging    LoggingConfig   `mapstructure:"logging"`
}

// DiscoveryConfig controls the device discovery window
type DiscoveryConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	MDNS    bool          `mapstructure:"mdns"`
	SSDP    bool          `mapstructure:"ssdp"`
	Service string        `mapstructure:"service"` // DNS-SD service type browsed over mDNS
}

// ResolverConfig controls backend priority
type ResolverConfig struct {
	Order          []BackendType `mapstructure:"order"`
	BackendTimeout time.Duration `mapstructure:"backend_timeout"`
}

// BridgeConfig describes the external device tool used by usb and network backends
type BridgeConfig struct {
	Command string        `mapstructure:"command"`
	Args    []string      `mapstructure:"args"` // prepended to every invocation, e.g. a script path
	Timeout time.Duration `mapstructure:"timeout"`
	PairCmd string        `mapstructure:"pair_command"`
}

// PlatformConfig controls mounted-volume enumeration
type PlatformConfig struct {
	Roots      []string `mapstructure:"roots"`       // extra directories that may contain DCIM
	VolumeScan bool     `mapstructure:"volume_scan"` // enumerate mounted partitions
	MaxDepth   int      `mapstructure:"max_depth"`
}

// SyntheticConfig controls the placeholder dataset
type SyntheticConfig struct {
	Count int `mapstructure:"count"`
}

// ThumbnailConfig controls preview generation and caching
type ThumbnailConfig struct {
	Size        int    `mapstructure:"size"`        // longest side in pixels
	Concurrency int    `mapstructure:"concurrency"` // prefetch workers
	CacheDir    string `mapstructure:"cache_dir"`   // empty keeps thumbnails in memory only
}

// TransferConfig controls transfer retries
type TransferConfig struct {
	Retries     uint64        `mapstructure:"retries"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
}

// ViewerConfig holds the external image viewer
type ViewerConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// DeviceConfig remembers the last paired device
type DeviceConfig struct {
	UDID string `mapstructure:"udid"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			Timeout: 3 * time.Second,
			MDNS:    true,
			SSDP:    true,
			Service: "_apple-mobdev2._tcp",
		},
		Resolver: ResolverConfig{
			Order:          []BackendType{BackendUSB, BackendNetwork, BackendPlatform, BackendSynthetic},
			BackendTimeout: 10 * time.Second,
		},
		Bridge: BridgeConfig{
			Command: "python3",
			Args:    []string{"-m", "camroll_bridge"},
			Timeout: 30 * time.Second,
			PairCmd: "idevicepair",
		},
		Platform: PlatformConfig{
			VolumeScan: true,
			MaxDepth:   15,
		},
		Synthetic: SyntheticConfig{
			Count: 250,
		},
		Thumbnails: ThumbnailConfig{
			Size:        400,
			Concurrency: 4,
		},
		Transfer: TransferConfig{
			Retries:     3,
			MaxInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "camroll", "camroll.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "camroll", "camroll.log")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "camroll")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "camroll")
	}
}

// defaultCachePath returns the default thumbnail cache directory for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "camroll", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "camroll", "cache")
	}
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// newViper builds a viper instance with every default registered so that
// environment overrides apply to keys absent from the file.
func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("discovery.timeout", d.Discovery.Timeout)
	v.SetDefault("discovery.mdns", d.Discovery.MDNS)
	v.SetDefault("discovery.ssdp", d.Discovery.SSDP)
	v.SetDefault("discovery.service", d.Discovery.Service)
	order := make([]string, len(d.Resolver.Order))
	for i, b := range d.Resolver.Order {
		order[i] = string(b)
	}
	v.SetDefault("resolver.order", order)
	v.SetDefault("resolver.backend_timeout", d.Resolver.BackendTimeout)
	v.SetDefault("bridge.command", d.Bridge.Command)
	v.SetDefault("bridge.args", d.Bridge.Args)
	v.SetDefault("bridge.timeout", d.Bridge.Timeout)
	v.SetDefault("bridge.pair_command", d.Bridge.PairCmd)
	v.SetDefault("platform.roots", d.Platform.Roots)
	v.SetDefault("platform.volume_scan", d.Platform.VolumeScan)
	v.SetDefault("platform.max_depth", d.Platform.MaxDepth)
	v.SetDefault("synthetic.count", d.Synthetic.Count)
	v.SetDefault("thumbnails.size", d.Thumbnails.Size)
	v.SetDefault("thumbnails.concurrency", d.Thumbnails.Concurrency)
	v.SetDefault("thumbnails.cache_dir", d.Thumbnails.CacheDir)
	v.SetDefault("transfer.retries", d.Transfer.Retries)
	v.SetDefault("transfer.max_interval", d.Transfer.MaxInterval)
	v.SetDefault("viewer.command", d.Viewer.Command)
	v.SetDefault("viewer.args", d.Viewer.Args)
	v.SetDefault("device.udid", d.Device.UDID)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.level", d.Logging.Level)

	return v
}

// LoadConfig loads configuration from file and environment.
// An empty path searches the default config directory and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigPath())
		v.AddConfigPath(".")
	}

	// Environment variable overrides, e.g. CAMROLL_SYNTHETIC_COUNT
	v.SetEnvPrefix("CAMROLL")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.normalize()
	return cfg, nil
}

// SyntheticLast returns order without duplicates and with the synthetic
// backend as the final entry, whether or not order named it
func SyntheticLast(order []BackendType) []BackendType {
	seen := make(map[BackendType]bool, len(order)+1)
	out := make([]BackendType, 0, len(order)+1)
	for _, kind := range order {
		if kind == BackendSynthetic || seen[kind] {
			continue
		}
		seen[kind] = true
		out = append(out, kind)
	}
	return append(out, BackendSynthetic)
}

// normalize replaces nonsensical values with defaults
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Discovery.Timeout <= 0 {
		c.Discovery.Timeout = d.Discovery.Timeout
	}
	if len(c.Resolver.Order) == 0 {
		c.Resolver.Order = d.Resolver.Order
	}
	c.Resolver.Order = SyntheticLast(c.Resolver.Order)
	if c.Resolver.BackendTimeout <= 0 {
		c.Resolver.BackendTimeout = d.Resolver.BackendTimeout
	}
	if c.Platform.MaxDepth <= 0 {
		c.Platform.MaxDepth = d.Platform.MaxDepth
	}
	if c.Synthetic.Count < 0 {
		c.Synthetic.Count = 0
	}
	if c.Thumbnails.Size <= 0 {
		c.Thumbnails.Size = d.Thumbnails.Size
	}
	if c.Thumbnails.Concurrency <= 0 {
		c.Thumbnails.Concurrency = d.Thumbnails.Concurrency
	}
}

// SaveDevice remembers a paired device UDID in the config file
func SaveDevice(udid string) error {
	configPath := defaultConfigPath()
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	v.Set("device.udid", udid)

	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ClearCache removes all cached thumbnails under dir, or the default
// cache directory when dir is empty
func ClearCache(dir string) error {
	cachePath := dir
	if cachePath == "" {
		cachePath = defaultCachePath()
	}
	if err := os.RemoveAll(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetCachePath returns the cache directory path
func GetCachePath() string {
	return defaultCachePath()
}
