// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads PassGuard settings from defaults, passguard.yaml,
// PASSGUARD_* environment variables and command-line flags using Viper, and
// persists them as YAML.
package config // import "github.com/TomPlanche/PassGuard/internal/config"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/TomPlanche/PassGuard/internal/kv"
)

// Config is the complete PassGuard configuration.
type Config struct {
	Storage  StorageConfig `mapstructure:"storage" yaml:"storage"`
	Language string        `mapstructure:"language" yaml:"language"`
	Log      LogConfig     `mapstructure:"log" yaml:"log"`
	Server   ServerConfig  `mapstructure:"server" yaml:"server"`
}

// StorageConfig selects the backend the profile collection lives in.
type StorageConfig struct {
	// Type is one of file, sqlite, postgres, mysql, redis, nats or memory.
	Type string `mapstructure:"type" yaml:"type"`
	// Path is the data directory of the file and sqlite backends.
	Path  string      `mapstructure:"path" yaml:"path"`
	DSN   string      `mapstructure:"dsn" yaml:"dsn"`
	Key   string      `mapstructure:"key" yaml:"key"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
	NATS  NATSConfig  `mapstructure:"nats" yaml:"nats"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

type NATSConfig struct {
	URL    string `mapstructure:"url" yaml:"url"`
	Bucket string `mapstructure:"bucket" yaml:"bucket"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	// File enables a rotated log file next to stderr output.
	File string `mapstructure:"file" yaml:"file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Backend converts the storage section into the backend configuration,
// expanding a leading ~ in the data path.
func (s StorageConfig) Backend() kv.Config {
	return kv.Config{
		Type: s.Type,
		Path: ExpandPath(s.Path),
		DSN:  s.DSN,
		Redis: kv.RedisConfig{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		},
		NATS: kv.NATSConfig{
			URL:    s.NATS.URL,
			Bucket: s.NATS.Bucket,
		},
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// DefaultDataDir is the data directory used when storage.path is unset.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "passguard-data")
	}
	return filepath.Join(dir, "passguard", "data")
}

// Defaults returns the default value of every configuration key.
func Defaults() map[string]any {
	return map[string]any{
		"storage.type":           kv.TypeFile,
		"storage.path":           DefaultDataDir(),
		"storage.dsn":            "",
		"storage.key":            "profiles_json",
		"storage.redis.addr":     "127.0.0.1:6379",
		"storage.redis.password": "",
		"storage.redis.db":       0,
		"storage.nats.url":       "nats://127.0.0.1:4222",
		"storage.nats.bucket":    kv.DefaultNATSBucket,
		"language":               "en",
		"log.level":              "info",
		"log.file":               "",
		"server.addr":            "127.0.0.1:8787",
	}
}

// GetConfigPath returns the full path of the user or system config file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "PassGuard")
		default:
			configDir = "/etc/passguard"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "passguard")
	}
	return filepath.Join(configDir, "passguard.yaml"), nil
}

// LoadConfig builds a T from, in increasing precedence: defaults, the first
// passguard.yaml found (or explicitPath), PASSGUARD_* environment variables
// and the flags of cmd. A missing config file is reported as
// viper.ConfigFileNotFoundError together with the fully loaded value.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("passguard")
	v.SetConfigType("yaml")
	if explicitPath != nil {
		v.SetConfigFile(*explicitPath)
	}
	if userConfigPath, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(userConfigPath))
	}
	if systemConfigPath, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(systemConfigPath))
	}
	v.AddConfigPath(".")

	var notFound error
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return c, err
		}
		notFound = err
	}

	mergeLegacyConfig(v)

	v.SetEnvPrefix("passguard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, notFound
}

// mergeLegacyConfig merges a .passguard.yaml from the working directory when
// present. A malformed file is ignored.
func mergeLegacyConfig(v *viper.Viper) {
	const legacyConfigFile = ".passguard.yaml"
	if _, err := os.Stat(legacyConfigFile); err != nil {
		return
	}
	used := v.ConfigFileUsed()
	v.SetConfigFile(legacyConfigFile)
	_ = v.MergeInConfig()
	v.SetConfigFile(used)
}

// WriteConfigFile writes c as YAML to the user or system config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}
	return WriteConfigFileTo(c, path)
}

// WriteConfigFileTo writes c as YAML to path with owner-only permissions.
func WriteConfigFileTo[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", configDir, err)
	}
	// The file may contain backend credentials.
	return os.WriteFile(path, data, 0o600)
}
