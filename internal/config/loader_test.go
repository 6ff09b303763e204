package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Remote.BaseURL)
	assert.Equal(t, DefaultAPIVersion, cfg.Remote.Version)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, DefaultPageSize, cfg.Sync.PageSize)
	assert.Equal(t, DefaultMaxPages, cfg.Sync.MaxPages)
	assert.Equal(t, DefaultConcurrency, cfg.Sync.Concurrency)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.ContinueOnError)
	assert.Equal(t, DefaultFindAttempts, cfg.Browser.FindAttempts)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Empty(t, cfg.Archive.Dir)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relaysync.yaml")
	content := `
remote:
  token: pit-abc123
  timeout: 10s
tenant:
  id: acme
  remote_id: loc_1
sync:
  page_size: 50
browser:
  headless: false
archive:
  dir: /var/lib/relaysync/archive
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "pit-abc123", cfg.Remote.Token)
	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, "acme", cfg.Tenant.ID)
	assert.Equal(t, "loc_1", cfg.Tenant.RemoteID)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "/var/lib/relaysync/archive", cfg.Archive.Dir)

	// File values override defaults, untouched keys keep them.
	assert.Equal(t, DefaultMaxPages, cfg.Sync.MaxPages)
	assert.Equal(t, DefaultBaseURL, cfg.Remote.BaseURL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relaysync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote:\n  token: from-file\n"), 0o644))

	t.Setenv("RELAYSYNC_REMOTE_TOKEN", "from-env")
	t.Setenv("RELAYSYNC_SYNC_PAGE_SIZE", "25")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Remote.Token)
	assert.Equal(t, 25, cfg.Sync.PageSize)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("RELAYSYNC_TENANT_ID", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tenant-id", "", "")
	flags.String("remote-base-url", "", "")
	require.NoError(t, flags.Parse([]string{
		"--tenant-id", "from-flag",
		"--remote-base-url", "https://stub.local",
	}))

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Tenant.ID)
	assert.Equal(t, "https://stub.local", cfg.Remote.BaseURL)
}

func TestLoadUnchangedFlagsIgnored(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("tenant-id", "flag-default", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), flags)
	require.NoError(t, err)

	assert.Empty(t, cfg.Tenant.ID)
}
