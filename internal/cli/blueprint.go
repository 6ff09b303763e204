package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/relaycrm/relaysync/internal/blueprint"
	"github.com/spf13/cobra"
)

// newBlueprintCommand creates the blueprint command group.
func newBlueprintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blueprint",
		Short: "Snapshot, diff and provision tenant configuration",
	}
	cmd.AddCommand(newBlueprintSnapshotCommand())
	cmd.AddCommand(newBlueprintPlanCommand())
	cmd.AddCommand(newBlueprintApplyCommand())
	cmd.AddCommand(newBlueprintWatchCommand())
	return cmd
}

func newBlueprintSnapshotCommand() *cobra.Command {
	var outFile, name string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture live tenant configuration into a blueprint file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if name == "" {
				name = app.Cfg.Tenant.ID
			}
			snap, err := blueprint.Capture(cmd.Context(), app.Remote, app.Cfg.Tenant.RemoteID, name, app.Logger)
			if err != nil {
				return fmt.Errorf("snapshot failed: %w", err)
			}
			for _, warn := range snap.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
			}

			if outFile == "" {
				outFile = name + "-blueprint.yaml"
			}
			if err := blueprint.Save(snap.Blueprint, outFile); err != nil {
				return fmt.Errorf("save blueprint: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "blueprint written to %s\n", outFile)
			for collection, n := range snap.Blueprint.Counts() {
				if n > 0 {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d\n", collection, n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "Output path (default: <name>-blueprint.yaml)")
	cmd.Flags().StringVar(&name, "name", "", "Blueprint name (default: tenant id)")
	return cmd
}

func newBlueprintPlanCommand() *cobra.Command {
	var audit bool

	cmd := &cobra.Command{
		Use:   "plan <blueprint.yaml>",
		Short: "Diff a blueprint against live tenant configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := computeBlueprintPlan(cmd, app, args[0])
			if err != nil {
				return err
			}
			renderBlueprintPlan(cmd.OutOrStdout(), plan)
			if audit {
				renderAudit(cmd.OutOrStdout(), blueprint.Audit(plan))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&audit, "audit", false, "Print the compliance score")
	return cmd
}

func newBlueprintApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <blueprint.yaml>",
		Short: "Provision the writable part of a blueprint plan",
		Long: `Compute the plan for a blueprint and execute its CREATE and UPDATE
actions against the remote API. Resource types without a write API are
reported as MANUAL and left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			plan, err := computeBlueprintPlan(cmd, app, args[0])
			if err != nil {
				return err
			}
			result := blueprint.Apply(cmd.Context(), app.Remote, app.Cfg.Tenant.RemoteID, plan, app.Logger)
			renderProvision(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newBlueprintWatchCommand() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <blueprint.yaml>",
		Short: "Re-plan whenever the blueprint file changes",
		Long: `Watch a blueprint file and recompute its plan against the live tenant
on every change. Useful while editing a blueprint by hand. Stop with
Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return watchBlueprint(cmd, app, args[0], interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "debounce", 500*time.Millisecond, "Delay before re-planning after a change")
	return cmd
}

func computeBlueprintPlan(cmd *cobra.Command, app *App, path string) (*blueprint.Plan, error) {
	desired, err := blueprint.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load blueprint: %w", err)
	}
	live, err := blueprint.Capture(cmd.Context(), app.Remote, app.Cfg.Tenant.RemoteID, desired.Metadata.Name, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("capture live state: %w", err)
	}
	for _, warn := range live.Warnings {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", warn)
	}
	return blueprint.ComputePlan(desired, live), nil
}

// watchBlueprint re-plans on every write to the blueprint file. Editors
// replace files on save, so the parent directory is watched and events are
// filtered by name and debounced.
func watchBlueprint(cmd *cobra.Command, app *App, path string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	replan := func() {
		plan, err := computeBlueprintPlan(cmd, app, path)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "plan failed: %v\n", err)
			return
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n", time.Now().Format(time.TimeOnly))
		renderBlueprintPlan(cmd.OutOrStdout(), plan)
	}
	replan()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	base := filepath.Base(path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			replan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		case <-sig:
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}
