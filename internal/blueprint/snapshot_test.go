package blueprint

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/testutil"
)

type fakeLister struct {
	records map[string][]remote.Record
	fail    map[string]bool
}

func (f *fakeLister) ListCollection(_ context.Context, _ string, collection string) ([]remote.Record, error) {
	if f.fail[collection] {
		return nil, errors.New("upstream 500")
	}
	return f.records[collection], nil
}

func TestCaptureBuildsBlueprint(t *testing.T) {
	lister := &fakeLister{records: map[string][]remote.Record{
		"tags": {
			{"id": "tag_1", "name": "vip"},
			{"id": "tag_2", "name": "newsletter"},
		},
		"custom_fields": {
			{"id": "cf_1", "name": "Budget", "fieldKey": "contact.budget", "dataType": "MONETARY"},
		},
		"pipelines": {
			{"id": "pipe_1", "name": "Sales", "stages": []any{
				map[string]any{"id": "st_1", "name": "Lead"},
				map[string]any{"id": "st_2", "name": "Won"},
			}},
		},
		"workflows": {
			{"id": "wf_1", "name": "Welcome", "status": "published"},
		},
	}}

	snap, err := Capture(context.Background(), lister, "loc_1", "acme-master", testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	bp := snap.Blueprint
	if bp.Metadata.Name != "acme-master" || bp.Metadata.SourceTenantID != "loc_1" {
		t.Errorf("metadata = %+v", bp.Metadata)
	}
	if len(bp.Tags) != 2 || bp.Tags[0].Name != "vip" {
		t.Errorf("tags = %+v", bp.Tags)
	}
	if len(bp.CustomFields) != 1 || bp.CustomFields[0].FieldKey != "contact.budget" {
		t.Errorf("custom fields = %+v", bp.CustomFields)
	}
	if len(bp.Pipelines) != 1 || len(bp.Pipelines[0].Stages) != 2 {
		t.Fatalf("pipelines = %+v", bp.Pipelines)
	}
	if bp.Pipelines[0].Stages[1].Name != "Won" {
		t.Errorf("stage order = %+v", bp.Pipelines[0].Stages)
	}

	if got := snap.IDs["tags"]["vip"]; got != "tag_1" {
		t.Errorf("tag id = %q, want tag_1", got)
	}
	if got := snap.IDs["custom_fields"]["contact.budget"]; got != "cf_1" {
		t.Errorf("field id keyed by field key = %q, want cf_1", got)
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("warnings = %v", snap.Warnings)
	}
}

func TestCaptureCollectionFailureIsWarning(t *testing.T) {
	lister := &fakeLister{
		records: map[string][]remote.Record{
			"tags": {{"id": "tag_1", "name": "vip"}},
		},
		fail: map[string]bool{"workflows": true},
	}

	snap, err := Capture(context.Background(), lister, "loc_1", "acme", testutil.NewTestLogger(t))
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if len(snap.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", snap.Warnings)
	}
	if len(snap.Blueprint.Tags) != 1 {
		t.Errorf("surviving collections should still be captured, tags = %+v", snap.Blueprint.Tags)
	}
	if len(snap.Blueprint.Workflows) != 0 {
		t.Errorf("failed collection should be empty, workflows = %+v", snap.Blueprint.Workflows)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	bp := &Blueprint{
		Metadata:     Metadata{Name: "acme-master", SourceTenantID: "loc_1"},
		Tags:         []TagSpec{{Name: "vip"}},
		CustomFields: []CustomFieldSpec{{Name: "Budget", FieldKey: "contact.budget", DataType: "MONETARY"}},
	}

	path := filepath.Join(t.TempDir(), "acme.yaml")
	if err := Save(bp, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Metadata.Name != "acme-master" {
		t.Errorf("metadata name = %q", loaded.Metadata.Name)
	}
	if len(loaded.Tags) != 1 || loaded.Tags[0].Name != "vip" {
		t.Errorf("tags = %+v", loaded.Tags)
	}
	if loaded.CustomFields[0].FieldKey != "contact.budget" {
		t.Errorf("custom fields = %+v", loaded.CustomFields)
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := Save(&Blueprint{}, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load() accepted a blueprint without metadata.name")
	}
}
