package blueprint

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relaycrm/relaysync/internal/remote"
)

// Lister fetches one resource collection from the remote platform.
type Lister interface {
	ListCollection(ctx context.Context, tenantID, collection string) ([]remote.Record, error)
}

// Snapshot is a blueprint captured from a live tenant plus the remote IDs
// needed to drive updates against that tenant.
type Snapshot struct {
	Blueprint *Blueprint
	// IDs maps collection then identity key to the live remote ID.
	IDs      map[string]map[string]string
	Warnings []string
}

// Capture lists every collection from the remote tenant concurrently and
// assembles the result into a blueprint. Collections that fail to list are
// recorded as warnings and left empty rather than failing the capture.
func Capture(ctx context.Context, lister Lister, tenantID, name string, logger *slog.Logger) (*Snapshot, error) {
	if lister == nil {
		return nil, fmt.Errorf("capture: no remote client")
	}

	records := make(map[string][]remote.Record, len(Collections))
	var (
		mu       sync.Mutex
		warnings []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range Collections {
		g.Go(func() error {
			recs, err := lister.ListCollection(gctx, tenantID, collection)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("list %s: %v", collection, err))
				logger.Warn("snapshot collection failed", "collection", collection, "error", err)
				return nil
			}
			records[collection] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(warnings)

	snap := &Snapshot{
		Blueprint: &Blueprint{
			Metadata: Metadata{
				Name:           name,
				SourceTenantID: tenantID,
				CreatedAt:      time.Now().UTC(),
			},
		},
		IDs:      make(map[string]map[string]string, len(Collections)),
		Warnings: warnings,
	}
	for _, collection := range Collections {
		snap.IDs[collection] = make(map[string]string)
	}
	// Stage IDs live under a synthetic collection keyed "pipeline:stage".
	snap.IDs["stages"] = make(map[string]string)

	for _, rec := range records["tags"] {
		if name := rec.Str("name"); name != "" {
			snap.Blueprint.Tags = append(snap.Blueprint.Tags, TagSpec{Name: name})
			snap.IDs["tags"][name] = rec.ID()
		}
	}
	for i, rec := range records["custom_fields"] {
		spec := CustomFieldSpec{
			Name:        rec.Str("name"),
			FieldKey:    rec.Str("fieldKey", "field_key"),
			DataType:    rec.Str("dataType", "data_type"),
			Placeholder: rec.Str("placeholder"),
			Position:    i,
		}
		if p, ok := rec.Int("position"); ok {
			spec.Position = p
		}
		if spec.Name == "" && spec.FieldKey == "" {
			continue
		}
		snap.Blueprint.CustomFields = append(snap.Blueprint.CustomFields, spec)
		snap.IDs["custom_fields"][fieldIdentity(spec)] = rec.ID()
	}
	for _, rec := range records["custom_values"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		snap.Blueprint.CustomValues = append(snap.Blueprint.CustomValues, CustomValueSpec{
			Name:  name,
			Value: rec.Str("value"),
		})
		snap.IDs["custom_values"][name] = rec.ID()
	}
	for _, rec := range records["pipelines"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		spec := PipelineSpec{Name: name}
		for i, stage := range rec.List("stages") {
			spec.Stages = append(spec.Stages, StageSpec{Name: stage.Str("name"), Position: i})
			snap.IDs["stages"][name+":"+stage.Str("name")] = stage.ID()
		}
		snap.Blueprint.Pipelines = append(snap.Blueprint.Pipelines, spec)
		snap.IDs["pipelines"][name] = rec.ID()
	}
	for _, rec := range records["calendars"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		snap.Blueprint.Calendars = append(snap.Blueprint.Calendars, CalendarSpec{
			Name:      name,
			EventType: rec.Str("eventType", "calendarType"),
		})
		snap.IDs["calendars"][name] = rec.ID()
	}
	for _, rec := range records["workflows"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		snap.Blueprint.Workflows = append(snap.Blueprint.Workflows, WorkflowSpec{
			Name:   name,
			Status: rec.Str("status"),
		})
		snap.IDs["workflows"][name] = rec.ID()
	}
	for _, rec := range records["forms"] {
		if name := rec.Str("name"); name != "" {
			snap.Blueprint.Forms = append(snap.Blueprint.Forms, FormSpec{Name: name})
			snap.IDs["forms"][name] = rec.ID()
		}
	}
	for _, rec := range records["surveys"] {
		if name := rec.Str("name"); name != "" {
			snap.Blueprint.Surveys = append(snap.Blueprint.Surveys, SurveySpec{Name: name})
			snap.IDs["surveys"][name] = rec.ID()
		}
	}
	for _, rec := range records["campaigns"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		snap.Blueprint.Campaigns = append(snap.Blueprint.Campaigns, CampaignSpec{
			Name:   name,
			Status: rec.Str("status"),
		})
		snap.IDs["campaigns"][name] = rec.ID()
	}
	for _, rec := range records["funnels"] {
		name := rec.Str("name")
		if name == "" {
			continue
		}
		spec := FunnelSpec{Name: name}
		for _, step := range rec.List("steps") {
			if sn := step.Str("name"); sn != "" {
				spec.Steps = append(spec.Steps, sn)
			}
		}
		snap.Blueprint.Funnels = append(snap.Blueprint.Funnels, spec)
		snap.IDs["funnels"][name] = rec.ID()
	}

	return snap, nil
}

// fieldIdentity keys custom fields by field key when present so renames are
// detected as drift instead of a delete and create pair.
func fieldIdentity(spec CustomFieldSpec) string {
	if spec.FieldKey != "" {
		return spec.FieldKey
	}
	return spec.Name
}
