package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSyncCommand creates the sync command group.
func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import from or export to the remote platform",
	}
	cmd.AddCommand(newSyncImportCommand())
	cmd.AddCommand(newSyncExportCommand())
	return cmd
}

func newSyncImportCommand() *cobra.Command {
	var preview bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Pull remote resources into the local store",
		Long: `Import every supported resource type from the remote tenant into the
local store. Matched rows are updated in place, unmatched remote records
create new rows, and local rows are never deleted.`,
		Example: `  # Count remote resources without writing anything
  relaysync sync import --preview

  # Full import
  relaysync sync import`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			if preview {
				p, err := app.Engine.Preview(ctx, app.Cfg.Tenant.RemoteID)
				if err != nil {
					return fmt.Errorf("preview failed: %w", err)
				}
				renderPreview(cmd.OutOrStdout(), p)
				return nil
			}

			result, err := app.Engine.Import(ctx, app.Cfg.Tenant.ID, app.Cfg.Tenant.RemoteID)
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			renderSyncResult(cmd.OutOrStdout(), "import", result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Count remote resources without importing")
	return cmd
}

func newSyncExportCommand() *cobra.Command {
	var useBrowser, execute bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Push local-only rows to the remote platform",
		Long: `Export local rows that have no remote ID yet. API-writable types are
pushed directly; with --browser, the UI-only types are compiled into a
browser automation plan, which --execute runs against the automation
agent and reconciles afterwards.`,
		Example: `  # API export only
  relaysync sync export

  # Build and show the browser plan for UI-only types
  relaysync sync export --browser

  # Execute the browser plan and reconcile
  relaysync sync export --browser --execute`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			result, err := app.Engine.Export(ctx, app.Cfg.Tenant.ID, app.Cfg.Tenant.RemoteID)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			renderSyncResult(out, "export", result)

			if !useBrowser {
				return nil
			}
			if !execute {
				return showBrowserPlan(cmd, app)
			}

			agent, err := buildAgent(app.Cfg.Browser)
			if err != nil {
				return err
			}
			summary, rec, err := app.Engine.BrowserExport(
				ctx, app.Cfg.Tenant.ID, app.Cfg.Tenant.RemoteID,
				app.Cfg.Browser.AppURL, agent, app.execOptions())
			if err != nil {
				return fmt.Errorf("browser export failed: %w", err)
			}
			renderBrowserSummary(out, summary, rec)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useBrowser, "browser", false, "Include UI-only types via browser automation")
	cmd.Flags().BoolVar(&execute, "execute", false, "Execute the browser plan instead of only showing it")
	return cmd
}
