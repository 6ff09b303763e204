package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/relaycrm/relaysync/internal/archive"
	"github.com/relaycrm/relaysync/internal/browser"
	"github.com/relaycrm/relaysync/internal/config"
	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
	"github.com/relaycrm/relaysync/internal/syncer"
	"github.com/spf13/cobra"
)

// App holds the wired dependencies shared by the sync, blueprint and plan
// commands.
type App struct {
	Cfg     *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Remote  *remote.Client
	Archive *archive.Writer
	Engine  *syncer.Engine
}

// newApp opens the store, runs migrations and wires the remote client and
// engine from the loaded configuration. The returned cleanup closes the
// store and must be called (typically via defer).
func newApp(cmd *cobra.Command) (*App, func(), error) {
	cfg := getConfig(cmd.Context())
	logger := getLogger(cmd.Context())

	if cfg.Tenant.ID == "" {
		return nil, nil, errors.New("tenant.id is required (set it in relaysync.yaml or pass --tenant-id)")
	}
	if cfg.Tenant.RemoteID == "" {
		return nil, nil, errors.New("tenant.remote_id is required (set it in relaysync.yaml or pass --tenant-remote-id)")
	}
	if cfg.Remote.Token == "" {
		return nil, nil, errors.New("remote.token is required (set it in relaysync.yaml or RELAYSYNC_REMOTE_TOKEN)")
	}

	st := store.New()
	if err := st.Open(cfg.Store.Path); err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("migrate store: %w", err)
	}

	client := remote.NewClient(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Token:   cfg.Remote.Token,
		Version: cfg.Remote.Version,
		Timeout: cfg.Remote.Timeout,
	}, remote.PageOptions{
		PageSize: cfg.Sync.PageSize,
		MaxPages: cfg.Sync.MaxPages,
	}, logger)

	var arch *archive.Writer
	if cfg.Archive.Dir != "" {
		arch = archive.NewWriter(cfg.Archive.Dir, logger)
	}

	eng := syncer.NewEngine(st, client, arch, logger, syncer.Options{
		Concurrency: cfg.Sync.Concurrency,
	})

	app := &App{
		Cfg:     cfg,
		Logger:  logger,
		Store:   st,
		Remote:  client,
		Archive: arch,
		Engine:  eng,
	}
	cleanup := func() {
		_ = st.Close()
	}
	return app, cleanup, nil
}

// execOptions maps browser configuration onto executor options.
func (a *App) execOptions() browser.ExecOptions {
	b := a.Cfg.Browser
	return browser.ExecOptions{
		RequireLogin:    b.Email != "" || b.Password != "",
		LoginEmail:      b.Email,
		LoginPassword:   b.Password,
		LoginTimeout:    b.LoginTimeout,
		MaxFindAttempts: b.FindAttempts,
		RetryWait:       b.RetryWait,
		ContinueOnError: b.ContinueOnError,
	}
}

// buildAgent resolves the UI automation backend for browser-driven
// commands. The engine only sequences declarative steps; the automation
// backend itself is supplied by the embedding application, so the
// standalone binary refuses to execute browser plans.
var buildAgent = func(config.BrowserConfig) (browser.Agent, error) {
	return nil, errors.New("no browser automation agent is available in this build; browser plans can be built and inspected but not executed")
}

// newLogger builds the CLI logger. Verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
