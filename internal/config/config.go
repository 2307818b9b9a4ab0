package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/deploymenttheory/frostbite-extract/internal/fsutil"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "frostbite-extract"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "FROSTBITE_EXTRACT"
)

// Config holds the application configuration
type Config struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	// Layout roots. DataDir is required; PatchDir is optional — its
	// absence just means the Patch layer contributes nothing.
	DataDir   string `mapstructure:"data_dir"`
	PatchDir  string `mapstructure:"patch_dir"`
	OutputDir string `mapstructure:"output_dir"`

	// Extraction settings
	Workers   int    `mapstructure:"workers"`
	CacheFile string `mapstructure:"cache_file"`
}

// Global variables
var (
	// Instance is the global configuration instance
	Instance Config

	ConfigLoaded bool
	ConfigFile   string

	v        *viper.Viper
	initOnce sync.Once
)

// Initialize sets up the configuration system
func Initialize(cfgFile string) error {
	var err error

	initOnce.Do(func() {
		v = viper.New()
		setDefaults(v)

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else {
			v.SetConfigName(AppName)
			v.SetConfigType("yaml")
			addSearchPaths(v)
		}

		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("error reading config file: %w", readErr)
			}
			ConfigLoaded = false
			ConfigFile = ""
		} else {
			ConfigLoaded = true
			ConfigFile = v.ConfigFileUsed()
		}

		if unmarshalErr := v.Unmarshal(&Instance); unmarshalErr != nil {
			err = fmt.Errorf("error parsing config: %w", unmarshalErr)
			return
		}

		ensureDirectories()
	})

	return err
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")
	v.SetDefault("log_file", "")

	v.SetDefault("output_dir", "extracted")
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("cache_file", "")
}

// addSearchPaths adds config file search paths, preferring the current
// directory, then a per-user config directory.
func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, "."+AppName))
	}
}

// ensureDirectories creates necessary directories based on configuration
func ensureDirectories() {
	if Instance.OutputDir != "" {
		_ = fsutil.CreateDirIfNotExists(Instance.OutputDir)
	}
	if Instance.LogFile != "" {
		_ = fsutil.CreateDirIfNotExists(filepath.Dir(Instance.LogFile))
	}
	if Instance.CacheFile != "" {
		_ = fsutil.CreateDirIfNotExists(filepath.Dir(Instance.CacheFile))
	}
}
