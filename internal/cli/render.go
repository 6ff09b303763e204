package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/relaycrm/relaysync/internal/blueprint"
	"github.com/relaycrm/relaysync/internal/browser"
	"github.com/relaycrm/relaysync/internal/syncer"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderPreview(w io.Writer, p *syncer.Preview) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Resource", "Remote count"})
	t.AppendRow(table.Row{"tags", p.Tags})
	t.AppendRow(table.Row{"custom_fields", p.CustomFields})
	t.AppendRow(table.Row{"custom_values", p.CustomValues})
	t.AppendRow(table.Row{"pipelines", p.Pipelines})
	t.AppendRow(table.Row{"contacts", p.Contacts})
	t.AppendRow(table.Row{"opportunities", p.Opportunities})
	t.Render()
}

func renderSyncResult(w io.Writer, direction string, r syncer.SyncResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Direction", "Created", "Updated", "Skipped", "Errors"})
	t.AppendRow(table.Row{direction, r.Created, r.Updated, r.Skipped, len(r.Errors)})
	t.Render()
	for _, e := range r.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
}

func renderBlueprintPlan(w io.Writer, plan *blueprint.Plan) {
	if len(plan.Actions) == 0 {
		_, _ = fmt.Fprintln(w, "(no actions)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Collection", "Name", "Op", "Detail"})
	for _, a := range plan.Actions {
		t.AppendRow(table.Row{a.Collection, a.Name, a.Op, a.Detail})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "%s\n", planSummaryLine(plan.Summary))
}

func planSummaryLine(summary map[string]int) string {
	order := []string{
		blueprint.OpCreate, blueprint.OpUpdate, blueprint.OpOK,
		blueprint.OpManual, blueprint.OpExtra,
	}
	parts := make([]string, 0, len(order))
	for _, op := range order {
		if n, ok := summary[op]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(op), n))
		}
	}
	if len(parts) == 0 {
		return "(empty plan)"
	}
	return strings.Join(parts, " ")
}

func renderAudit(w io.Writer, audit *blueprint.AuditResult) {
	_, _ = fmt.Fprintf(w, "compliance: %.1f%% (%d of %d resources match)\n",
		audit.ComplianceScore, audit.Matched, audit.TotalResources)
}

func renderProvision(w io.Writer, res *blueprint.ProvisionResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Created", "Updated", "Manual", "Skipped", "Errors"})
	t.AppendRow(table.Row{res.Created, res.Updated, res.Manual, res.Skipped, len(res.Errors)})
	t.Render()
	for _, e := range res.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
}

func renderBrowserPlan(w io.Writer, plan *browser.Plan) {
	if len(plan.Items) == 0 {
		_, _ = fmt.Fprintln(w, "(nothing to export through the browser)")
		return
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Collection", "Name", "Action", "Steps"})
	for _, item := range plan.Items {
		t.AppendRow(table.Row{item.Collection, item.Name, item.Action, len(item.Steps)})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "%d items\n", len(plan.Items))
}

func renderBrowserSummary(w io.Writer, summary *browser.Summary, rec *browser.ReconcileResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Items", "Completed", "Steps", "Completed", "Errors"})
	t.AppendRow(table.Row{
		summary.ItemsTotal, summary.ItemsCompleted,
		summary.StepsTotal, summary.StepsCompleted, len(summary.Errors),
	})
	t.Render()
	for _, e := range summary.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
	if summary.Aborted {
		_, _ = fmt.Fprintln(w, "run aborted before all items were attempted")
	}
	if rec != nil {
		_, _ = fmt.Fprintf(w, "reconciled %d local rows\n", rec.Updated)
		for _, warn := range rec.Warnings {
			_, _ = fmt.Fprintf(w, "warning: %s\n", warn)
		}
	}
}
