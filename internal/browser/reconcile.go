package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
)

// Records created through the UI have no API response to read an ID from.
// Reconciliation re-lists each remote collection and matches executed local
// rows to remote records by normalized name, falling back to positional
// matching for ordered children.

// Lister lists a remote resource collection for a tenant.
type Lister interface {
	ListCollection(ctx context.Context, tenantID, collection string) ([]remote.Record, error)
}

// Mapping is the transient local-ID to remote-ID table built from one
// reconciliation pass. It is applied once and discarded.
type Mapping map[string]string

// ReconcileResult reports what a pass persisted. Lookup failures are
// warnings; the execution phase's effects are never undone.
type ReconcileResult struct {
	Updated  int
	Warnings []string
}

type collectionSpec struct {
	kind      string
	childKind string
	childKeys []string
	nameKeys  []string
}

var collectionSpecs = map[string]collectionSpec{
	"forms": {
		kind:      store.KindForm,
		childKind: store.KindFormField,
		childKeys: []string{"fields", "formFields"},
		nameKeys:  []string{"label", "name", "placeholder"},
	},
	"surveys": {
		kind:      store.KindSurvey,
		childKind: store.KindSurveyQuestion,
		childKeys: []string{"questions", "surveyQuestions"},
		nameKeys:  []string{"question", "questionText", "label"},
	},
	"campaigns": {kind: store.KindCampaign},
	"funnels": {
		kind:      store.KindFunnel,
		childKind: store.KindFunnelPage,
		childKeys: []string{"pages", "steps"},
		nameKeys:  []string{"name", "slug", "path"},
	},
	"workflows": {kind: store.KindWorkflow},
}

// Reconciler discovers remote IDs for rows created via UI automation.
type Reconciler struct {
	store  *store.Store
	lister Lister
	logger *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(st *store.Store, lister Lister, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, lister: lister, logger: logger}
}

// Reconcile matches completed plan items against freshly-listed remote
// collections and persists discovered remote IDs. completed holds the
// local IDs of successfully executed items per collection; skipped and
// failed items are never reconciled.
func (r *Reconciler) Reconcile(ctx context.Context, tenantID, remoteTenantID string, completed map[string]map[string]bool) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	now := time.Now().UTC()

	for _, collection := range []string{"forms", "surveys", "campaigns", "funnels", "workflows"} {
		spec := collectionSpecs[collection]
		ids := completed[collection]
		if len(ids) == 0 {
			continue
		}

		records, err := r.lister.ListCollection(ctx, remoteTenantID, collection)
		if err != nil {
			warn := fmt.Sprintf("reconcile %s list failed: %v", collection, err)
			result.Warnings = append(result.Warnings, warn)
			r.logger.Warn("reconcile list failed", "collection", collection, "error", err)
			continue
		}

		byName := recordsByName(records, []string{"name"})

		locals, err := r.store.ListKind(tenantID, spec.kind)
		if err != nil {
			return nil, fmt.Errorf("failed to load local %s rows: %w", collection, err)
		}

		mapping := make(Mapping)
		for _, local := range locals {
			if !ids[local.ID] {
				continue
			}
			rec, ok := byName[NormalizeName(local.Name)]
			if !ok {
				continue
			}
			remoteID := rec.ID()
			if remoteID == "" || local.RemoteID == remoteID {
				continue
			}
			mapping[local.ID] = remoteID

			if spec.childKind != "" {
				if err := r.reconcileChildren(local, rec, spec, mapping); err != nil {
					return nil, err
				}
			}
		}

		for localID, remoteID := range mapping {
			if err := r.store.SetRemoteID(localID, remoteID, remoteTenantID, now); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("reconcile %s: %v", collection, err))
				continue
			}
			result.Updated++
		}
	}
	return result, nil
}

// reconcileChildren matches a parent's ordered children by normalized
// name first, positionally when no name matches.
func (r *Reconciler) reconcileChildren(parent *store.Entity, rec remote.Record, spec collectionSpec, mapping Mapping) error {
	var remoteChildren []remote.Record
	for _, key := range spec.childKeys {
		if remoteChildren = rec.List(key); len(remoteChildren) > 0 {
			break
		}
	}
	if len(remoteChildren) == 0 {
		return nil
	}

	children, err := r.store.ListChildren(parent.ID, spec.childKind)
	if err != nil {
		return fmt.Errorf("failed to load children of %s: %w", parent.Name, err)
	}
	byName := recordsByName(remoteChildren, spec.nameKeys)

	for i, child := range children {
		childRec, ok := byName[NormalizeName(childName(child))]
		if !ok && i < len(remoteChildren) {
			childRec = remoteChildren[i]
		}
		if childRec == nil {
			continue
		}
		if remoteID := childRec.ID(); remoteID != "" && child.RemoteID != remoteID {
			mapping[child.ID] = remoteID
		}
	}
	return nil
}

func childName(e *store.Entity) string {
	if e.Name != "" {
		return e.Name
	}
	for _, key := range []string{"label", "question_text", "subject", "url_slug"} {
		if v := e.Str(key); v != "" {
			return v
		}
	}
	return ""
}

// recordsByName indexes records by their normalized name. The first record
// with a given name wins; duplicate names are a known limitation.
func recordsByName(records []remote.Record, nameKeys []string) map[string]remote.Record {
	out := make(map[string]remote.Record, len(records))
	for _, rec := range records {
		key := NormalizeName(rec.Str(nameKeys...))
		if key == "" {
			continue
		}
		if _, exists := out[key]; !exists {
			out[key] = rec
		}
	}
	return out
}

var nameFolder = cases.Fold()

// NormalizeName case-folds a name and collapses internal whitespace, so
// "Lead  Form " and "lead form" compare equal.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(nameFolder.String(s)), " ")
}
