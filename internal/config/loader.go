package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "relaysync.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "relaysync.yml"

// EnvPrefix prefixes environment variable overrides, e.g.
// RELAYSYNC_REMOTE_TOKEN or RELAYSYNC_STORE_PATH.
const EnvPrefix = "RELAYSYNC_"

// Default values applied before any other source.
const (
	DefaultBaseURL      = "https://backend.leadconnectorhq.com"
	DefaultAPIVersion   = "2021-07-28"
	DefaultTimeout      = 30 * time.Second
	DefaultPageSize     = 100
	DefaultMaxPages     = 200
	DefaultConcurrency  = 10
	DefaultLoginTimeout = 2 * time.Minute
	DefaultFindAttempts = 3
	DefaultRetryWait    = 750 * time.Millisecond
	DefaultStorePath    = "relaysync.db"
)

// Load builds a Config by layering defaults, a YAML file, RELAYSYNC_*
// environment variables, and explicitly-set flags. cfgFile may be empty, in
// which case relaysync.yaml/.yml is searched for from the working directory
// upwards; a missing config file is not an error.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"remote.base_url":           DefaultBaseURL,
		"remote.version":            DefaultAPIVersion,
		"remote.timeout":            DefaultTimeout,
		"sync.page_size":            DefaultPageSize,
		"sync.max_pages":            DefaultMaxPages,
		"sync.concurrency":          DefaultConcurrency,
		"browser.headless":          true,
		"browser.login_timeout":     DefaultLoginTimeout,
		"browser.find_attempts":     DefaultFindAttempts,
		"browser.retry_wait":        DefaultRetryWait,
		"browser.continue_on_error": true,
		"store.path":                DefaultStorePath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigFile()
	}
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
			}
		}
	}

	// RELAYSYNC_REMOTE_TOKEN -> remote.token: the first underscore after
	// the prefix separates the section, the rest join the key.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		if i := strings.Index(s, "_"); i >= 0 {
			return s[:i] + "." + s[i+1:]
		}
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			// --remote-base-url maps onto remote.base_url: the first dash
			// separates the section, the rest join the key.
			key := f.Name
			if i := strings.Index(key, "-"); i >= 0 {
				key = key[:i] + "." + strings.ReplaceAll(key[i+1:], "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile searches for the project config file from the working
// directory upwards, so commands work from any subdirectory of a project.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
