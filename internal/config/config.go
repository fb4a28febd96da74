// Package config loads the deployment configuration of the appdata service
// from a YAML file and APPDATA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendSQLite = "sqlite"
)

// Config is the full deployment configuration.
type Config struct {
	// InstanceID names the appdata_<instanceid> namespace root. Required.
	InstanceID string `mapstructure:"instanceid"`
	// AppDataRoot is a local directory mounted at "appdataroot" and used
	// instead of the default root for every app namespace.
	AppDataRoot string      `mapstructure:"appdataroot"`
	Backend     string      `mapstructure:"backend"`
	DataDir     string      `mapstructure:"datadir"`
	ReadOnly    bool        `mapstructure:"readonly"`
	Cache       CacheConfig `mapstructure:"cache"`
	Log         LogConfig   `mapstructure:"log"`
	NFS         NFSConfig   `mapstructure:"nfs"`
}

type CacheConfig struct {
	Capacity int `mapstructure:"capacity"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type NFSConfig struct {
	Listen string `mapstructure:"listen"`
}

// DefaultConfig returns the configuration used for keys that are not set.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendDisk,
		DataDir: "./data",
		Cache:   CacheConfig{Capacity: 512},
		Log:     LogConfig{Level: "info"},
		NFS:     NFSConfig{Listen: ":0"},
	}
}

// Load reads configuration from path (or appdata.yaml in the working
// directory and $HOME/.config/appdata when path is empty) and from the
// environment. Environment variables use the prefix "APPDATA" and the dot
// in keys is replaced by an underscore: "cache.capacity" becomes
// "APPDATA_CACHE_CAPACITY".
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("appdata")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "appdata"))
		}
	}
	v.SetEnvPrefix("APPDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have a closed set of options. A missing
// instance id is not checked here; resolution reports it.
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendMemory, BackendDisk, BackendSQLite}, c.Backend) {
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("cache.capacity must not be negative, got %d", c.Cache.Capacity)
	}
	return nil
}

// Save writes cfg to path. The format follows the file extension.
func Save(path string, cfg *Config) error {
	v := viper.New()
	v.Set("instanceid", cfg.InstanceID)
	if cfg.AppDataRoot != "" {
		v.Set("appdataroot", cfg.AppDataRoot)
	}
	v.Set("backend", cfg.Backend)
	v.Set("datadir", cfg.DataDir)
	v.Set("cache.capacity", cfg.Cache.Capacity)
	v.Set("log.level", cfg.Log.Level)
	v.Set("nfs.listen", cfg.NFS.Listen)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// NewInstanceID returns a fresh instance identity: "oc" followed by ten
// lowercase hex characters.
func NewInstanceID() string {
	return "oc" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
