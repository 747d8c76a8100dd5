// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/TomPlanche/PassGuard/internal/config"
	"github.com/TomPlanche/PassGuard/internal/kv"
)

// isolate points the user config dir at a temp dir and runs the test from
// another empty temp dir so no real passguard.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return tmp
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)
	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	var nf viper.ConfigFileNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ConfigFileNotFoundError, got %T %v", err, err)
	}
	if got.Storage.Type != kv.TypeFile || got.Storage.Key != "profiles_json" {
		t.Fatalf("defaults not applied: %+v", got.Storage)
	}
	if got.Server.Addr != "127.0.0.1:8787" || got.Language != "en" || got.Log.Level != "info" {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.Storage.NATS.Bucket != kv.DefaultNATSBucket {
		t.Fatalf("unexpected nats bucket %q", got.Storage.NATS.Bucket)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	isolate(t)
	yaml := "storage:\n  type: postgres\n  dsn: postgresql://user@/db\n  redis:\n    db: 3\nlanguage: fr\n"
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Storage.Type != "postgres" || got.Storage.DSN != "postgresql://user@/db" {
		t.Fatalf("file values not applied: %+v", got.Storage)
	}
	if got.Storage.Redis.DB != 3 || got.Storage.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("nested values not merged with defaults: %+v", got.Storage.Redis)
	}
	if got.Language != "fr" {
		t.Fatalf("expected fr, got %q", got.Language)
	}
}

func TestLoadConfig_BrokenConfigReturnsParseError(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(file, []byte("language: en\n"+string([]byte{0x01})+"\n"), 0o600); err != nil {
		t.Fatalf("write broken file: %v", err)
	}
	_, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err == nil {
		t.Fatal("expected parse error for broken yaml")
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		t.Fatal("parse error reported as missing file")
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(file, []byte("storage:\n  type: sqlite\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	t.Setenv("PASSGUARD_STORAGE_TYPE", "redis")
	t.Setenv("PASSGUARD_SERVER_ADDR", "127.0.0.1:9999")

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Storage.Type != "redis" || got.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("env not applied: %+v", got)
	}
}

func TestLoadConfig_FlagsOverrideEverything(t *testing.T) {
	isolate(t)
	t.Setenv("PASSGUARD_STORAGE_TYPE", "redis")
	cmd := &cobra.Command{}
	cmd.Flags().String("storage.type", kv.TypeFile, "")
	if err := cmd.Flags().Set("storage.type", kv.TypeMemory); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got, _ := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), nil)
	if got.Storage.Type != kv.TypeMemory {
		t.Fatalf("flag not applied, got %q", got.Storage.Type)
	}
}

func TestLoadConfig_LegacyDotFileIsMerged(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".passguard.yaml", []byte("language: fr\n"), 0o600); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}
	got, _ := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if got.Language != "fr" {
		t.Fatalf("legacy file not merged, language=%q", got.Language)
	}
}

func TestWriteConfigFile_RoundTrip(t *testing.T) {
	isolate(t)
	c := cfg.Config{Language: "fr"}
	c.Storage.Type = kv.TypeSQLite
	c.Storage.Path = "/var/lib/passguard"

	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}
	path, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file at %s: %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "type: sqlite") {
		t.Fatalf("unexpected yaml:\n%s", data)
	}

	// The written file is found on the next load.
	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if got.Storage.Type != kv.TypeSQLite || got.Storage.Path != "/var/lib/passguard" {
		t.Fatalf("written config not loaded: %+v", got.Storage)
	}
}

func TestStorageBackend(t *testing.T) {
	home := isolate(t)
	s := cfg.StorageConfig{
		Type:  kv.TypeRedis,
		Path:  "~/data",
		Redis: cfg.RedisConfig{Addr: "cache:6379", DB: 2},
		NATS:  cfg.NATSConfig{URL: "nats://n:4222", Bucket: "B"},
	}
	b := s.Backend()
	if b.Path != filepath.Join(home, "data") {
		t.Fatalf("path not expanded: %q", b.Path)
	}
	if b.Redis.Addr != "cache:6379" || b.Redis.DB != 2 || b.NATS.Bucket != "B" {
		t.Fatalf("unexpected backend config %+v", b)
	}
	if cfg.ExpandPath("/abs") != "/abs" || cfg.ExpandPath("rel/~") != "rel/~" {
		t.Fatal("non-home paths must be unchanged")
	}
}
