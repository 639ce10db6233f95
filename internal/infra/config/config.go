package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultQuality     = "1080p"
	DefaultBandwidthMB = 11.0
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	API      APIConfig      `mapstructure:"api" yaml:"api"`

	// Jobs is the ordered list of page URLs processed by one run
	Jobs []string `mapstructure:"jobs" yaml:"jobs"`
}

type DownloadConfig struct {
	OutDir      string  `mapstructure:"out_dir" yaml:"out_dir"`
	Quality     string  `mapstructure:"quality" yaml:"quality"`
	BandwidthMB float64 `mapstructure:"bandwidth_mb" yaml:"bandwidth_mb"`
	Extension   string  `mapstructure:"extension" yaml:"extension"`
	ChunkSize   int     `mapstructure:"chunk_size" yaml:"chunk_size"`
}

type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	CaptureTimeout    time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	QualityKey        string        `mapstructure:"quality_key" yaml:"quality_key"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

type APIConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

const bytesPerMB = 1024 * 1024

// BandwidthBytes converts the MB/s cap into bytes per second
func (d DownloadConfig) BandwidthBytes() int64 {
	return int64(d.BandwidthMB * bytesPerMB)
}

// checkBandwidth accepts 0 (unlimited) or a cap that is at least 1 byte/s and
// fits in an int64. Anything else would silently turn into "unlimited".
func checkBandwidth(mb float64) error {
	switch {
	case math.IsNaN(mb) || math.IsInf(mb, 0):
		return fmt.Errorf("must be a finite number, got %v", mb)
	case mb < 0:
		return fmt.Errorf("must not be negative, got %v", mb)
	case mb == 0:
		return nil
	case mb*bytesPerMB < 1:
		return fmt.Errorf("%v MB/s is below 1 byte/s, use 0 for unlimited", mb)
	case mb*bytesPerMB >= math.MaxInt64:
		return fmt.Errorf("%v MB/s is too large", mb)
	}
	return nil
}

func Load(path string) (*Config, error) {

	if path == "" {
		path = "config.yaml"
	}

	// 1. Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// FALLBACK: If we are in Docker (or similar) and didn't provide a flag, check /config/config.yaml
		if path == "config.yaml" {
			if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
				path = "/config/config.yaml"
			} else if _, errEx := os.Stat("config.yaml.example"); errEx == nil {
				// If config.yaml is missing but example exists, give a helpful error
				return nil, fmt.Errorf("configuration file 'config.yaml' not found\n\n" +
					"To fix this, run:\n" +
					"  cp config.yaml.example config.yaml\n" +
					"Then add the page URLs to download under 'jobs'.")
			} else {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
		} else {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	v := viper.New()
	setDefaults(v)

	// Read config File
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	// Support Environment Variables
	v.SetEnvPrefix("STREAMGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("download.out_dir", "./films")
	v.SetDefault("download.quality", DefaultQuality)
	v.SetDefault("download.bandwidth_mb", DefaultBandwidthMB)
	v.SetDefault("download.extension", ".mp4")
	v.SetDefault("download.chunk_size", 32*1024)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 35*time.Second)
	v.SetDefault("browser.capture_timeout", 60*time.Second)
	v.SetDefault("browser.quality_key", "pljsquality")
	v.SetDefault("log.path", "streamgrab.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.sqlite_path", "")
	v.SetDefault("api.listen", "")
}

func (c *Config) validate() error {
	if len(c.Jobs) == 0 {
		return errors.New("at least one page URL must be listed under jobs")
	}

	for i, u := range c.Jobs {
		if strings.TrimSpace(u) == "" {
			return fmt.Errorf("jobs[%d] is empty", i)
		}
	}

	if err := checkBandwidth(c.Download.BandwidthMB); err != nil {
		return fmt.Errorf("download.bandwidth_mb: %w", err)
	}

	if c.Download.OutDir == "" {
		c.Download.OutDir = "./films"
	}

	if c.Download.Quality == "" {
		c.Download.Quality = DefaultQuality
	}

	if c.Download.Extension == "" {
		c.Download.Extension = ".mp4"
	} else if !strings.HasPrefix(c.Download.Extension, ".") {
		c.Download.Extension = "." + c.Download.Extension
	}

	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = 32 * 1024
	}

	if c.Browser.NavigationTimeout <= 0 {
		c.Browser.NavigationTimeout = 35 * time.Second
	}

	if c.Browser.CaptureTimeout <= 0 {
		c.Browser.CaptureTimeout = 60 * time.Second
	}

	if c.Browser.QualityKey == "" {
		c.Browser.QualityKey = "pljsquality"
	}

	return nil
}

// ApplyArgs overrides quality and bandwidth with the optional positional
// command line parameters: [quality] [bandwidthMB].
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 0 && args[0] != "" {
		c.Download.Quality = args[0]
	}

	if len(args) > 1 {
		mb, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid bandwidth %q: %w", args[1], err)
		}
		if err := checkBandwidth(mb); err != nil {
			return fmt.Errorf("invalid bandwidth %q: %w", args[1], err)
		}
		c.Download.BandwidthMB = mb
	}

	return nil
}
