// Package config loads relaysync configuration. Values merge in priority
// order: built-in defaults, then the YAML config file, then RELAYSYNC_*
// environment variables, then command-line flags.
package config

import "time"

// Config is the full runtime configuration.
type Config struct {
	Remote  RemoteConfig  `koanf:"remote"`
	Tenant  TenantConfig  `koanf:"tenant"`
	Sync    SyncConfig    `koanf:"sync"`
	Browser BrowserConfig `koanf:"browser"`
	Archive ArchiveConfig `koanf:"archive"`
	Store   StoreConfig   `koanf:"store"`
}

// RemoteConfig configures the platform API client.
type RemoteConfig struct {
	BaseURL string        `koanf:"base_url"`
	Token   string        `koanf:"token"`
	Version string        `koanf:"version"`
	Timeout time.Duration `koanf:"timeout"`
}

// TenantConfig names the local tenant and its remote counterpart.
type TenantConfig struct {
	ID       string `koanf:"id"`
	RemoteID string `koanf:"remote_id"`
}

// SyncConfig tunes pagination and fan-out.
type SyncConfig struct {
	PageSize    int `koanf:"page_size"`
	MaxPages    int `koanf:"max_pages"`
	Concurrency int `koanf:"concurrency"`
}

// BrowserConfig configures the UI automation fallback.
type BrowserConfig struct {
	AppURL          string        `koanf:"app_url"`
	Headless        bool          `koanf:"headless"`
	Profile         string        `koanf:"profile"`
	Email           string        `koanf:"email"`
	Password        string        `koanf:"password"`
	LoginTimeout    time.Duration `koanf:"login_timeout"`
	FindAttempts    int           `koanf:"find_attempts"`
	RetryWait       time.Duration `koanf:"retry_wait"`
	ContinueOnError bool          `koanf:"continue_on_error"`
}

// ArchiveConfig configures raw payload archiving. An empty dir disables it.
type ArchiveConfig struct {
	Dir string `koanf:"dir"`
}

// StoreConfig locates the local database.
type StoreConfig struct {
	Path string `koanf:"path"`
}
