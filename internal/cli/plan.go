package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/relaycrm/relaysync/internal/browser"
	"github.com/spf13/cobra"
)

// newPlanCommand creates the plan command group for browser automation
// plans.
func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build and run browser automation plans for UI-only types",
	}
	cmd.AddCommand(newPlanBuildCommand())
	cmd.AddCommand(newPlanRunCommand())
	return cmd
}

func newPlanBuildCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile local-only UI-only rows into an automation plan",
		Example: `  # Show the plan
  relaysync plan build

  # Write it to a file for later execution
  relaysync plan build --out acme-plan.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := buildBrowserPlan(app)
			if err != nil {
				return err
			}
			renderBrowserPlan(cmd.OutOrStdout(), plan)

			if outFile != "" {
				data, err := json.MarshalIndent(plan, "", "  ")
				if err != nil {
					return fmt.Errorf("encode plan: %w", err)
				}
				if err := os.WriteFile(outFile, data, 0o644); err != nil {
					return fmt.Errorf("write plan: %w", err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "plan written to %s\n", outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Write the plan as JSON to this file")
	return cmd
}

func newPlanRunCommand() *cobra.Command {
	var planFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an automation plan and reconcile the results",
		Long: `Execute a browser automation plan against the configured automation
agent, then reconcile completed items against freshly-listed remote
resources by normalized name so local rows gain their remote IDs.

Without --plan the plan is rebuilt from the local store first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			agent, err := buildAgent(app.Cfg.Browser)
			if err != nil {
				return err
			}

			if planFile == "" {
				summary, rec, err := app.Engine.BrowserExport(
					ctx, app.Cfg.Tenant.ID, app.Cfg.Tenant.RemoteID,
					app.Cfg.Browser.AppURL, agent, app.execOptions())
				if err != nil {
					return fmt.Errorf("plan run failed: %w", err)
				}
				renderBrowserSummary(cmd.OutOrStdout(), summary, rec)
				return nil
			}

			plan, err := loadBrowserPlan(planFile)
			if err != nil {
				return err
			}
			executor := browser.NewExecutor(agent, app.execOptions(), app.Logger)
			summary, err := executor.Execute(ctx, plan)
			if err != nil {
				return fmt.Errorf("plan execution failed: %w", err)
			}
			reconciler := browser.NewReconciler(app.Store, app.Remote, app.Logger)
			rec, err := reconciler.Reconcile(ctx, plan.TenantID, plan.RemoteTenantID, summary.CompletedIDs())
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			renderBrowserSummary(cmd.OutOrStdout(), summary, rec)
			return nil
		},
	}

	cmd.Flags().StringVar(&planFile, "plan", "", "Execute a previously built plan file instead of rebuilding")
	return cmd
}

func buildBrowserPlan(app *App) (*browser.Plan, error) {
	builder := browser.NewBuilder(app.Store, app.Cfg.Browser.AppURL, app.Logger)
	plan, err := builder.BuildExportPlan(app.Cfg.Tenant.ID, app.Cfg.Tenant.RemoteID)
	if err != nil {
		return nil, fmt.Errorf("build plan: %w", err)
	}
	return plan, nil
}

func loadBrowserPlan(path string) (*browser.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan browser.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return &plan, nil
}

// showBrowserPlan renders the current plan without executing it.
func showBrowserPlan(cmd *cobra.Command, app *App) error {
	plan, err := buildBrowserPlan(app)
	if err != nil {
		return err
	}
	renderBrowserPlan(cmd.OutOrStdout(), plan)
	return nil
}
