// Package config loads and saves the chaser settings file.
//
// Settings live in <user config dir>/license-chaser/chaser.json by default.
// Any format viper understands can be used by choosing the file extension,
// and every scalar setting can be overridden with a LICENSE_CHASER_ prefixed
// environment variable (LICENSE_CHASER_SERVER_URL, LICENSE_CHASER_LOG_LEVEL).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/CloudNativeWorks/license-chaser/chaser"
	"github.com/CloudNativeWorks/license-chaser/internal/logging"
)

const (
	AppName   = "license-chaser"
	FileName  = "chaser.json"
	EnvPrefix = "LICENSE_CHASER"
)

var (
	ErrNotFound = errors.New("config file not found")
	ErrInvalid  = errors.New("invalid config")
)

// Registry drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the user settings.
type Config struct {
	ServerURL    string            `mapstructure:"server_url"`
	Product      string            `mapstructure:"product"`
	MajorVersion int               `mapstructure:"major_version"`
	AutoLaunch   bool              `mapstructure:"auto_launch"`
	Interval     time.Duration     `mapstructure:"interval"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	Executables  map[string]string `mapstructure:"executables"`
	Log          logging.Config    `mapstructure:"log"`
	Registry     RegistryConfig    `mapstructure:"registry"`
}

// RegistryConfig selects where chaser nodes announce themselves.
// Name is the table (postgres) or collection (mongo); empty uses the
// backend default.
type RegistryConfig struct {
	Driver     string        `mapstructure:"driver"`
	DSN        string        `mapstructure:"dsn"`
	Database   string        `mapstructure:"database"`
	Name       string        `mapstructure:"name"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// Default returns the settings used for keys missing from the file.
func Default() *Config {
	return &Config{
		Product:      "core",
		MajorVersion: 20,
		AutoLaunch:   true,
		Interval:     chaser.DefaultInterval,
		Timeout:      10 * time.Second,
		Executables:  map[string]string{},
		Log:          logging.Config{Level: "info"},
		Registry:     RegistryConfig{Driver: DriverNone, StaleAfter: time.Minute},
	}
}

// DefaultPath returns the platform settings file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, AppName, FileName), nil
}

// Load reads the settings at path. An empty path means DefaultPath, which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	optional := false
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path, optional = p, true
	}

	v := newViper(path)
	if err := read(v, path); err != nil {
		var nf viper.ConfigFileNotFoundError
		switch {
		case errors.Is(err, os.ErrNotExist) || errors.As(err, &nf):
			if !optional {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	v := viper.New()
	for k, val := range cfg.Settings() {
		v.Set(k, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		ext = "json"
	}
	v.SetConfigType(ext)
	for k, val := range Default().Settings() {
		v.SetDefault(k, val)
	}
	return v
}

// read parses the file, dropping a UTF-8 byte order mark some editors add.
func read(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	return v.ReadConfig(bytes.NewReader(data))
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Executables == nil {
		cfg.Executables = map[string]string{}
	}
	return &cfg, nil
}

// Settings flattens cfg into dotted viper keys. Durations are written as strings
// so the file stays readable.
func (c *Config) Settings() map[string]any {
	exes := make(map[string]any, len(c.Executables))
	for k, v := range c.Executables {
		exes[strings.ToLower(k)] = v
	}
	return map[string]any{
		"server_url":           c.ServerURL,
		"product":              c.Product,
		"major_version":        c.MajorVersion,
		"auto_launch":          c.AutoLaunch,
		"interval":             c.Interval.String(),
		"timeout":              c.Timeout.String(),
		"executables":          exes,
		"log.level":            c.Log.Level,
		"log.development":      c.Log.Development,
		"registry.driver":      c.Registry.Driver,
		"registry.dsn":         c.Registry.DSN,
		"registry.database":    c.Registry.Database,
		"registry.name":        c.Registry.Name,
		"registry.stale_after": c.Registry.StaleAfter.String(),
	}
}

// Validate checks the settings needed to start chasing.
func (c *Config) Validate() error {
	var err error
	if strings.TrimSpace(c.ServerURL) == "" {
		err = multierr.Append(err, errors.New("server_url is empty"))
	} else if u, perr := url.Parse(c.ServerURL); perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		err = multierr.Append(err, fmt.Errorf("server_url %q is not an absolute http(s) URL", c.ServerURL))
	}

	kind, perr := chaser.ParseProductKind(c.Product)
	if perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.MajorVersion < 0 || c.MajorVersion > 255 {
		err = multierr.Append(err, fmt.Errorf("major_version %d out of range 0-255", c.MajorVersion))
	}
	if c.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if perr == nil && c.AutoLaunch {
		exe := c.Executable(kind)
		if exe == "" {
			err = multierr.Append(err, fmt.Errorf("no executable configured for %s", kind))
		} else if info, serr := os.Stat(exe); serr != nil {
			err = multierr.Append(err, fmt.Errorf("executable for %s: %w", kind, serr))
		} else if info.IsDir() {
			err = multierr.Append(err, fmt.Errorf("executable for %s is a directory: %s", kind, exe))
		}
	}

	switch c.Registry.Driver {
	case "", DriverNone:
	case DriverSQLite, DriverPostgres:
		if c.Registry.DSN == "" {
			err = multierr.Append(err, fmt.Errorf("registry.dsn is required for %s", c.Registry.Driver))
		}
	case DriverMongo:
		if c.Registry.DSN == "" || c.Registry.Database == "" {
			err = multierr.Append(err, errors.New("registry.dsn and registry.database are required for mongo"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown registry driver %q", c.Registry.Driver))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// ProductKind returns the selected product.
func (c *Config) ProductKind() (chaser.ProductKind, error) {
	return chaser.ParseProductKind(c.Product)
}

// Criterion returns the selection the chaser should count.
func (c *Config) Criterion() (chaser.Criterion, error) {
	kind, err := c.ProductKind()
	if err != nil {
		return chaser.Criterion{}, err
	}
	if c.MajorVersion < 0 || c.MajorVersion > 255 {
		return chaser.Criterion{}, fmt.Errorf("major_version %d out of range 0-255", c.MajorVersion)
	}
	return chaser.Criterion{Product: kind, MajorVersion: uint8(c.MajorVersion)}, nil
}

// Executable returns the configured executable for kind, or "".
func (c *Config) Executable(kind chaser.ProductKind) string {
	return c.Executables[kind.String()]
}

// ExecutablesByKind returns the executables keyed by product kind.
// Unknown product names are an error.
func (c *Config) ExecutablesByKind() (map[chaser.ProductKind]string, error) {
	out := make(map[chaser.ProductKind]string, len(c.Executables))
	for name, path := range c.Executables {
		kind, err := chaser.ParseProductKind(name)
		if err != nil {
			return nil, fmt.Errorf("executables: %w", err)
		}
		out[kind] = path
	}
	return out, nil
}
