package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/relaycrm/relaysync/internal/archive"
	"github.com/relaycrm/relaysync/internal/blueprint"
	"github.com/relaycrm/relaysync/internal/browser"
	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
)

// Remote is the full client surface the engine drives. *remote.Client
// satisfies it.
type Remote interface {
	ExportRemote
	ListCollection(ctx context.Context, tenantID, collection string) ([]remote.Record, error)
	ListContacts(ctx context.Context, tenantID string) ([]remote.Record, error)
	ContactTotal(ctx context.Context, tenantID string) (int, error)
	ListOpportunities(ctx context.Context, tenantID, pipelineID string) ([]remote.Record, error)
	ListNotes(ctx context.Context, contactID string) ([]remote.Record, error)
	ListTasks(ctx context.Context, contactID string) ([]remote.Record, error)
	ListConversations(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListMessages(ctx context.Context, conversationID string) ([]remote.Record, error)
	ListCalendars(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListAppointments(ctx context.Context, tenantID, calendarID string) ([]remote.Record, error)
	ListForms(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListFormSubmissions(ctx context.Context, tenantID, formID string) ([]remote.Record, error)
	ListSurveys(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListSurveySubmissions(ctx context.Context, tenantID, surveyID string) ([]remote.Record, error)
	ListCampaigns(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListFunnels(ctx context.Context, tenantID string) ([]remote.Record, error)
	ListFunnelPages(ctx context.Context, tenantID, funnelID string) ([]remote.Record, error)
	ListWorkflows(ctx context.Context, tenantID string) ([]remote.Record, error)
}

// Options tunes a sync run.
type Options struct {
	// Concurrency bounds per-contact fan-out during note and task fetches.
	Concurrency int
}

func (o *Options) ApplyDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 10
	}
}

// Engine sequences full import and export runs. Each phase is isolated:
// its error or panic is appended to the aggregate result and the next
// phase still runs. Nothing rolls back because phases are independent and
// additive.
type Engine struct {
	store   *store.Store
	remote  Remote
	archive *archive.Writer
	logger  *slog.Logger
	opts    Options
}

func NewEngine(st *store.Store, rem Remote, arch *archive.Writer, logger *slog.Logger, opts Options) *Engine {
	opts.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, remote: rem, archive: arch, logger: logger, opts: opts}
}

// phase runs one sync phase, converting its panic or error into an entry
// on the aggregate result.
func (e *Engine) phase(name string, total *SyncResult, fn func() SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			total.errorf("%s: panic: %v", name, r)
			e.logger.Error("sync phase panicked", "phase", name, "panic", r)
		}
	}()
	res := fn()
	if len(res.Errors) > 0 {
		e.logger.Warn("sync phase finished with errors", "phase", name, "errors", len(res.Errors))
	}
	total.Merge(res)
}

func (e *Engine) archiveWrite(tenantID, domain string, payload any) {
	if e.archive != nil {
		e.archive.Write(tenantID, domain, payload)
	}
}

// Preview counts what an import would touch without writing anything.
func (e *Engine) Preview(ctx context.Context, remoteTenantID string) (*Preview, error) {
	snap, err := blueprint.Capture(ctx, e.remote, remoteTenantID, "preview", e.logger)
	if err != nil {
		return nil, fmt.Errorf("preview snapshot: %w", err)
	}
	bp := snap.Blueprint

	preview := &Preview{
		Tags:         len(bp.Tags),
		CustomFields: len(bp.CustomFields),
		CustomValues: len(bp.CustomValues),
		Pipelines:    len(bp.Pipelines),
	}
	if total, err := e.remote.ContactTotal(ctx, remoteTenantID); err == nil {
		preview.Contacts = total
	}
	for _, p := range bp.Pipelines {
		pipelineID := snap.IDs["pipelines"][p.Name]
		if pipelineID == "" {
			continue
		}
		if opps, err := e.remote.ListOpportunities(ctx, remoteTenantID, pipelineID); err == nil {
			preview.Opportunities += len(opps)
		}
	}
	return preview, nil
}

// Import pulls everything from the remote tenant into the local store. The
// config collections come from one concurrent snapshot; the rest is fetched
// phase by phase. The returned result aggregates every phase.
func (e *Engine) Import(ctx context.Context, tenantID, remoteTenantID string) (SyncResult, error) {
	var total SyncResult
	run, err := e.store.StartRun(tenantID, "import")
	if err != nil {
		return total, fmt.Errorf("start import run: %w", err)
	}

	im := NewImporter(e.store, e.logger)

	snap, err := blueprint.Capture(ctx, e.remote, remoteTenantID, tenantID, e.logger)
	if err != nil {
		total.errorf("config snapshot: %v", err)
		e.completeRun(run.ID, store.RunStatusFailed, total)
		return total, fmt.Errorf("config snapshot: %w", err)
	}
	for _, w := range snap.Warnings {
		total.errorf("config snapshot: %s", w)
	}
	e.archiveWrite(tenantID, "snapshot", snap.Blueprint)

	e.phase("tags", &total, func() SyncResult {
		recs := tagRecords(snap)
		e.archiveWrite(tenantID, "tags", recs)
		return im.ImportTags(tenantID, recs)
	})
	e.phase("custom_fields", &total, func() SyncResult {
		recs := customFieldRecords(snap)
		e.archiveWrite(tenantID, "custom_fields", recs)
		return im.ImportCustomFields(tenantID, recs)
	})
	e.phase("custom_values", &total, func() SyncResult {
		recs := customValueRecords(snap)
		e.archiveWrite(tenantID, "custom_values", recs)
		return im.ImportCustomValues(tenantID, recs)
	})

	pipelineRecs := pipelineRecords(snap)
	var stageMap map[string]string
	e.phase("pipelines", &total, func() SyncResult {
		e.archiveWrite(tenantID, "pipelines", pipelineRecs)
		var res SyncResult
		res, stageMap = im.ImportPipelines(tenantID, pipelineRecs)
		return res
	})

	var contactMap map[string]string
	e.phase("contacts", &total, func() SyncResult {
		recs, err := e.remote.ListContacts(ctx, remoteTenantID)
		var res SyncResult
		if err != nil {
			// Partial pages still import; the failure is recorded.
			res.errorf("contact pagination: %v", err)
		}
		e.archiveWrite(tenantID, "contacts", recs)
		imported, m := im.ImportContacts(tenantID, recs)
		contactMap = m
		res.Merge(imported)
		return res
	})

	e.phase("notes_tasks", &total, func() SyncResult {
		return e.importContactChildren(ctx, tenantID, im)
	})

	e.phase("opportunities", &total, func() SyncResult {
		var res SyncResult
		for _, rec := range pipelineRecs {
			pipelineID := rec.ID()
			if pipelineID == "" {
				continue
			}
			opps, err := e.remote.ListOpportunities(ctx, remoteTenantID, pipelineID)
			if err != nil {
				res.errorf("opportunities for pipeline %s: %v", pipelineID, err)
				continue
			}
			e.archiveWrite(tenantID, "opportunities", opps)
			res.Merge(im.ImportOpportunities(tenantID, pipelineID, opps, stageMap, contactMap))
		}
		return res
	})

	e.phase("conversations", &total, func() SyncResult {
		recs, err := e.remote.ListConversations(ctx, remoteTenantID)
		var res SyncResult
		if err != nil {
			res.errorf("conversation pagination: %v", err)
		}
		e.archiveWrite(tenantID, "conversations", recs)
		res.Merge(im.ImportConversations(tenantID, recs, func(conversationID string) ([]remote.Record, error) {
			return e.remote.ListMessages(ctx, conversationID)
		}, contactMap))
		return res
	})

	e.phase("calendars", &total, func() SyncResult {
		recs, err := e.remote.ListCalendars(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("calendars: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "calendars", recs)
		return im.ImportCalendars(tenantID, recs, func(calendarID string) ([]remote.Record, error) {
			return e.remote.ListAppointments(ctx, remoteTenantID, calendarID)
		}, contactMap)
	})

	e.phase("forms", &total, func() SyncResult {
		recs, err := e.remote.ListForms(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("forms: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "forms", recs)
		return im.ImportForms(tenantID, recs, func(formID string) ([]remote.Record, error) {
			return e.remote.ListFormSubmissions(ctx, remoteTenantID, formID)
		})
	})

	e.phase("surveys", &total, func() SyncResult {
		recs, err := e.remote.ListSurveys(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("surveys: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "surveys", recs)
		return im.ImportSurveys(tenantID, recs, func(surveyID string) ([]remote.Record, error) {
			return e.remote.ListSurveySubmissions(ctx, remoteTenantID, surveyID)
		})
	})

	e.phase("campaigns", &total, func() SyncResult {
		recs, err := e.remote.ListCampaigns(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("campaigns: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "campaigns", recs)
		return im.ImportCampaigns(tenantID, recs)
	})

	e.phase("funnels", &total, func() SyncResult {
		recs, err := e.remote.ListFunnels(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("funnels: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "funnels", recs)
		return im.ImportFunnels(tenantID, recs, func(funnelID string) ([]remote.Record, error) {
			return e.remote.ListFunnelPages(ctx, remoteTenantID, funnelID)
		})
	})

	e.phase("workflows", &total, func() SyncResult {
		recs, err := e.remote.ListWorkflows(ctx, remoteTenantID)
		if err != nil {
			var res SyncResult
			res.errorf("workflows: %v", err)
			return res
		}
		e.archiveWrite(tenantID, "workflows", recs)
		return im.ImportWorkflows(tenantID, recs)
	})

	e.completeRun(run.ID, store.RunStatusCompleted, total)
	return total, nil
}

// importContactChildren fans out note and task fetches across linked
// contacts under the concurrency bound, then imports the results serially
// so the store sees one writer.
func (e *Engine) importContactChildren(ctx context.Context, tenantID string, im *Importer) SyncResult {
	var result SyncResult

	contacts, err := e.store.ListKind(tenantID, store.KindContact)
	if err != nil {
		result.errorf("notes/tasks: %v", err)
		return result
	}

	type fetched struct {
		contact *store.Entity
		notes   []remote.Record
		tasks   []remote.Record
	}
	var (
		mu      sync.Mutex
		batches []fetched
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, contact := range contacts {
		// Placeholder IDs are local inventions; the platform has no
		// record behind them.
		if contact.RemoteID == "" || isPlaceholder(contact) {
			continue
		}
		g.Go(func() error {
			var batch fetched
			batch.contact = contact
			var firstErr error
			if notes, err := e.remote.ListNotes(gctx, contact.RemoteID); err != nil {
				firstErr = fmt.Errorf("notes for %q: %w", contact.Name, err)
			} else {
				batch.notes = notes
			}
			if tasks, err := e.remote.ListTasks(gctx, contact.RemoteID); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("tasks for %q: %w", contact.Name, err)
			} else if err == nil {
				batch.tasks = tasks
			}
			mu.Lock()
			batches = append(batches, batch)
			if firstErr != nil {
				result.errorf("%v", firstErr)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		result.errorf("notes/tasks: %v", err)
	}

	for _, batch := range batches {
		if len(batch.notes) > 0 {
			e.archiveWrite(tenantID, "notes", batch.notes)
			result.Merge(im.ImportNotes(tenantID, batch.contact, batch.notes))
		}
		if len(batch.tasks) > 0 {
			e.archiveWrite(tenantID, "tasks", batch.tasks)
			result.Merge(im.ImportTasks(tenantID, batch.contact, batch.tasks))
		}
	}
	return result
}

// Export pushes local-only rows to the remote tenant through the API.
// UI-only collections are not touched here; ExportBrowser covers them.
func (e *Engine) Export(ctx context.Context, tenantID, remoteTenantID string) (SyncResult, error) {
	var total SyncResult
	run, err := e.store.StartRun(tenantID, "export")
	if err != nil {
		return total, fmt.Errorf("start export run: %w", err)
	}

	ex := NewExporter(e.store, e.remote, e.logger)

	e.phase("tags", &total, func() SyncResult { return ex.ExportTags(ctx, tenantID, remoteTenantID) })
	e.phase("custom_fields", &total, func() SyncResult { return ex.ExportCustomFields(ctx, tenantID, remoteTenantID) })
	e.phase("custom_values", &total, func() SyncResult { return ex.ExportCustomValues(ctx, tenantID, remoteTenantID) })
	e.phase("contacts", &total, func() SyncResult { return ex.ExportContacts(ctx, tenantID, remoteTenantID) })
	e.phase("notes", &total, func() SyncResult { return ex.ExportNotes(ctx, tenantID, remoteTenantID) })
	e.phase("tasks", &total, func() SyncResult { return ex.ExportTasks(ctx, tenantID, remoteTenantID) })
	e.phase("pipelines", &total, func() SyncResult { return ex.ExportPipelines(ctx, tenantID) })
	e.phase("opportunities", &total, func() SyncResult { return ex.ExportOpportunities(ctx, tenantID, remoteTenantID) })
	e.phase("messages", &total, func() SyncResult { return ex.ExportMessages(ctx, tenantID, remoteTenantID) })
	e.phase("appointments", &total, func() SyncResult { return ex.ExportAppointments(ctx, tenantID, remoteTenantID) })

	e.completeRun(run.ID, store.RunStatusCompleted, total)
	return total, nil
}

// BrowserExport drives the UI fallback for collections the API cannot
// write: build a plan from local-only rows, execute it through the agent,
// then reconcile discovered remote IDs. A preflight login failure aborts
// before any step executes.
func (e *Engine) BrowserExport(ctx context.Context, tenantID, remoteTenantID, appURL string, agent browser.Agent, opts browser.ExecOptions) (*browser.Summary, *browser.ReconcileResult, error) {
	builder := browser.NewBuilder(e.store, appURL, e.logger)
	plan, err := builder.BuildExportPlan(tenantID, remoteTenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("build browser plan: %w", err)
	}
	e.archiveWrite(tenantID, "browser_plan", plan)

	executor := browser.NewExecutor(agent, opts, e.logger)
	summary, err := executor.Execute(ctx, plan)
	if summary != nil {
		e.archiveWrite(tenantID, "browser_run", summary)
	}
	if err != nil {
		return summary, nil, err
	}

	reconciler := browser.NewReconciler(e.store, e.remote, e.logger)
	recResult, err := reconciler.Reconcile(ctx, tenantID, remoteTenantID, summary.CompletedIDs())
	if err != nil {
		return summary, recResult, fmt.Errorf("reconcile: %w", err)
	}
	return summary, recResult, nil
}

func (e *Engine) completeRun(runID, status string, total SyncResult) {
	if err := e.store.CompleteRun(runID, status, total.Created, total.Updated, total.Skipped, total.Errors); err != nil {
		e.logger.Warn("failed to record sync run", "run_id", runID, "error", err)
	}
}

// The snapshot materializers rebuild minimal records from the blueprint so
// the import mappers see the same shape a direct listing would give them.

func tagRecords(snap *blueprint.Snapshot) []remote.Record {
	recs := make([]remote.Record, 0, len(snap.Blueprint.Tags))
	for _, t := range snap.Blueprint.Tags {
		recs = append(recs, remote.Record{
			"id":   snap.IDs["tags"][t.Name],
			"name": t.Name,
		})
	}
	return recs
}

func customFieldRecords(snap *blueprint.Snapshot) []remote.Record {
	recs := make([]remote.Record, 0, len(snap.Blueprint.CustomFields))
	for _, f := range snap.Blueprint.CustomFields {
		key := f.FieldKey
		if key == "" {
			key = f.Name
		}
		recs = append(recs, remote.Record{
			"id":       snap.IDs["custom_fields"][key],
			"name":     f.Name,
			"fieldKey": f.FieldKey,
			"dataType": f.DataType,
		})
	}
	return recs
}

func customValueRecords(snap *blueprint.Snapshot) []remote.Record {
	recs := make([]remote.Record, 0, len(snap.Blueprint.CustomValues))
	for _, cv := range snap.Blueprint.CustomValues {
		recs = append(recs, remote.Record{
			"id":    snap.IDs["custom_values"][cv.Name],
			"name":  cv.Name,
			"value": cv.Value,
		})
	}
	return recs
}

func pipelineRecords(snap *blueprint.Snapshot) []remote.Record {
	recs := make([]remote.Record, 0, len(snap.Blueprint.Pipelines))
	for _, p := range snap.Blueprint.Pipelines {
		stages := make([]any, 0, len(p.Stages))
		for _, s := range p.Stages {
			stages = append(stages, map[string]any{
				"id":   snap.IDs["stages"][p.Name+":"+s.Name],
				"name": s.Name,
			})
		}
		recs = append(recs, remote.Record{
			"id":     snap.IDs["pipelines"][p.Name],
			"name":   p.Name,
			"stages": stages,
		})
	}
	return recs
}
