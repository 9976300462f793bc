package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/openkaraoke/studio/errors"
)

// Save serializes the configuration to TOML at path, creating parent
// directories as needed. The previous file is kept as a .back copy so a
// bad edit can be reverted by hand.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	if err := createBackup(path); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write config to %s", path)
	}

	return nil
}

// SetValue updates a single dotted key in the config file at path and
// persists the result. A missing file starts from defaults.
func SetValue(path, key string, value interface{}) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return errors.Wrapf(err, "failed to apply %s", key)
	}

	return Save(&cfg, path)
}

// createBackup keeps a single .back copy of the config before modifying it
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".back", content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create config backup")
	}
	return nil
}
