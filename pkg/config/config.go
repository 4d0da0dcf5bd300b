/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package config loads mediator settings from YAML, TOML or JSON files. Keys are the names of the command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"github.com/adorsys/didcomm-mediator-rs-sub002/pkg/config/lookup"
)

// Key names a mediator setting. It is both the config file key and the command line flag name.
type Key string

// Mediator settings.
const (
	HostURL                 Key = "host-url"
	WebSocketHostURL        Key = "ws-host-url"
	PublicEndpoint          Key = "public-endpoint"
	APIToken                Key = "api-token" // nolint:gosec
	DatabaseType            Key = "database-type"
	DatabaseURL             Key = "database-url"
	DatabasePath            Key = "database-path"
	DatabasePrefix          Key = "database-prefix"
	DatabaseTimeout         Key = "database-timeout"
	BreakerFailureThreshold Key = "breaker-failure-threshold"
	BreakerResetTimeout     Key = "breaker-reset-timeout"
	RetryMaxAttempts        Key = "retry-max-attempts"
	RetryInitialDelay       Key = "retry-initial-delay"
	RetryMaxDelay           Key = "retry-max-delay"
	RetryFactor             Key = "retry-factor"
	RetryFixed              Key = "retry-fixed"
	ResolverCacheSize       Key = "resolver-cache-size"
	ResolverCacheTTL        Key = "resolver-cache-ttl"
	MediatorSeed            Key = "mediator-seed"
	LogLevel                Key = "log-level"
	LogFormat               Key = "log-format"
	TLSCertFile             Key = "tls-cert-file"
	TLSKeyFile              Key = "tls-key-file"
)

// nolint:gochecknoglobals
var knownKeys = map[Key]struct{}{
	HostURL: {}, WebSocketHostURL: {}, PublicEndpoint: {}, APIToken: {},
	DatabaseType: {}, DatabaseURL: {}, DatabasePath: {}, DatabasePrefix: {}, DatabaseTimeout: {},
	BreakerFailureThreshold: {}, BreakerResetTimeout: {},
	RetryMaxAttempts: {}, RetryInitialDelay: {}, RetryMaxDelay: {}, RetryFactor: {}, RetryFixed: {},
	ResolverCacheSize: {}, ResolverCacheTTL: {}, MediatorSeed: {},
	LogLevel: {}, LogFormat: {}, TLSCertFile: {}, TLSKeyFile: {},
}

// ErrUnknownKey is returned for config file keys that name no mediator setting.
var ErrUnknownKey = errors.New("unknown mediator setting")

type options struct {
	envPrefix string
}

const (
	cmdRoot = "MEDIATOR"
)

// ConfigProvider provides the config backend.
type ConfigProvider func() (lookup.ConfigBackend, error)

// Option configures the package.
type Option func(opts *options)

// FromReader loads configuration from in.
// configType can be "json", "yaml" or "toml".
func FromReader(in io.Reader, configType string, opts ...Option) ConfigProvider {
	return func() (lookup.ConfigBackend, error) {
		backend := newBackend(opts...)

		if configType == "" {
			return nil, errors.New("empty config type")
		}

		// viper needs the type to unmarshal a reader
		backend.configViper.SetConfigType(configType)

		if err := backend.configViper.MergeConfig(in); err != nil {
			return nil, fmt.Errorf("viper MergeConfig failed : %w", err)
		}

		if err := backend.validate(); err != nil {
			return nil, err
		}

		return backend, nil
	}
}

// FromFile reads from named config file.
func FromFile(name string, opts ...Option) ConfigProvider {
	return func() (lookup.ConfigBackend, error) {
		backend := newBackend(opts...)

		if name == "" {
			return nil, errors.New("filename is required")
		}

		backend.configViper.SetConfigFile(name)

		if err := backend.configViper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("loading config file failed: %w", err)
		}

		if err := backend.validate(); err != nil {
			return nil, fmt.Errorf("config file %s: %w", name, err)
		}

		return backend, nil
	}
}

// Load reads the named config file into a Settings.
func Load(name string, opts ...Option) (*Settings, error) {
	backend, err := FromFile(name, opts...)()
	if err != nil {
		return nil, err
	}

	return &Settings{lookup: lookup.New(backend)}, nil
}

// Settings are the values of a loaded config file, environment overrides included.
type Settings struct {
	lookup *lookup.ConfigLookup
}

// String returns the value of k and whether it is set.
func (s *Settings) String(k Key) (string, bool) {
	if _, ok := s.lookup.Lookup(string(k)); !ok {
		return "", false
	}

	return s.lookup.GetString(string(k)), true
}

// WithEnvPrefix defines the prefix for environment variable overrides.
func WithEnvPrefix(prefix string) Option {
	return func(opts *options) {
		opts.envPrefix = prefix
	}
}

func newBackend(opts ...Option) *backend {
	o := options{
		envPrefix: cmdRoot,
	}

	for _, option := range opts {
		option(&o)
	}

	return &backend{configViper: newViper(o.envPrefix)}
}

func newViper(cmdRootPrefix string) *viper.Viper {
	myViper := viper.New()
	myViper.SetEnvPrefix(cmdRootPrefix)
	myViper.AutomaticEnv()
	myViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	return myViper
}
