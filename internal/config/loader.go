package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/vehicle-test-records/internal/infrastructure/monitoring/logging"
)

// envPrefix prefixes every environment override: database.postgres.host is
// read from VTR_DATABASE_POSTGRES_HOST.
const envPrefix = "VTR"

var (
	ErrConfigFileNotFound = errors.New("config: file not found")
	ErrConfigParseError   = errors.New("config: parse error")
	ErrConfigValidation   = errors.New("config: validation failed")
)

type loadOptions struct {
	path        string
	searchPaths []string
}

// LoadOption selects where Load looks for the YAML file.
type LoadOption func(*loadOptions)

// WithConfigPath reads exactly path.
func WithConfigPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithSearchPaths looks for config.yaml in each directory, in order.
func WithSearchPaths(dirs ...string) LoadOption {
	return func(o *loadOptions) { o.searchPaths = append(o.searchPaths, dirs...) }
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setViperDefaults(v)
	bindEnv(v, reflect.TypeOf(Config{}), "")
	return v
}

// bindEnv registers every leaf key of t so that environment overrides reach
// Unmarshal even when the file does not mention the key.
func bindEnv(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("mapstructure")
		name, opts, _ := strings.Cut(tag, ",")
		if f.Type.Kind() == reflect.Struct && f.Type.String() != "time.Time" {
			next := prefix
			if opts != "squash" {
				next = joinKey(prefix, name)
			}
			bindEnv(v, f.Type, next)
			continue
		}
		if name == "" {
			continue
		}
		_ = v.BindEnv(joinKey(prefix, name))
	}
}

func joinKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// Load reads the YAML file chosen by opts, applies VTR_* overrides and
// defaults, and validates the result. Without options only the environment
// is read.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := newViper()
	switch {
	case o.path != "":
		v.SetConfigFile(o.path)
	case len(o.searchPaths) > 0:
		v.SetConfigName("config")
		for _, p := range o.searchPaths {
			v.AddConfigPath(p)
		}
	default:
		return finalize(v)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", ErrConfigFileNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	return finalize(v)
}

// LoadFromEnv builds a Config from VTR_* variables and defaults alone.
func LoadFromEnv() (*Config, error) {
	return Load()
}

func finalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// MustLoad panics when Load fails. Meant for main.
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Watch calls onChange with the re-validated Config whenever the file at
// path changes. Changes that fail validation are logged and skipped.
func Watch(path string, log logging.Logger, onChange func(*Config)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := finalize(v)
		if err != nil {
			log.Warn("ignoring invalid configuration change",
				logging.String("file", e.Name), logging.Err(err))
			return
		}
		log.Info("configuration reloaded", logging.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
