package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/lightspeed-board/globals"
)

const (
	defaultLogLevel      = "INFO"
	defaultCodeCacheSize = 1024
)

// Config is the global configuration object which is filled via the
// configuration file, environment (prefix LSBOARD) and command-line flags.
type Config struct {
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	ResyncConfig      ResyncConfig      `mapstructure:"resync"`
	LogLevel          string            `mapstructure:"log_level"`
	CodeCacheSize     int               `mapstructure:"code_cache_size"`
}

// PersistenceConfig selects the board store backend. Type is one of "buntdb",
// "sqlite" or "postgres"; DSN is the buntdb file name resp. the database DSN.
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// ResyncConfig configures the periodic full-history push to all connected
// clients. An empty CronSpec disables it.
type ResyncConfig struct {
	CronSpec string `mapstructure:"cron_spec"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("log-level", "l", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.Replace(name, "-", "_", -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", defaultLogLevel)
	viper.SetDefault("code_cache_size", defaultCodeCacheSize)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("LSBOARD")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	return &cfg, nil
}
