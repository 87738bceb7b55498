// Package config loads tool configuration from a TOML file with sane
// defaults, using the standard user config directory.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var configFilePath string

// Init initializes configuration. An empty path falls back to
// ~/.config/groovekit/config.toml.
func Init(configPath string) error {
	if configPath != "" {
		configFilePath = configPath
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir := filepath.Join(home, ".config", "groovekit")
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		configFilePath = filepath.Join(dir, "config.toml")
	}

	viper.SetConfigType("toml")
	setDefaults()

	viper.SetConfigFile(configFilePath)
	// A missing config file just means defaults.
	_ = viper.ReadInConfig()
	return nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.base_url", "http://localhost:8080")

	viper.SetDefault("midi.port", "")
	viper.SetDefault("sound.backend", "synth")
	viper.SetDefault("sync.mode", "start")

	viper.SetDefault("shortener.base_url", "")
	viper.SetDefault("shortener.token", "")
	viper.SetDefault("shortener.timeout", 10)

	viper.SetDefault("share.base_url", "https://groovekit.app/groove")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an integer config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// SetString sets a string config value for this process.
func SetString(key, value string) {
	viper.Set(key, value)
}

// Path returns the config file path in use.
func Path() string {
	return configFilePath
}
