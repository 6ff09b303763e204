package syncer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
	"github.com/relaycrm/relaysync/internal/testutil"
)

// fakeExportRemote counts create and update calls and can fail by name or
// answer without an ID.
type fakeExportRemote struct {
	creates   int
	updates   int
	failNames map[string]bool
	noIDs     bool
	pipelines []remote.Record
	nextID    int
}

func (f *fakeExportRemote) respond(name string) (remote.Record, error) {
	if f.failNames[name] {
		return nil, errors.New("upstream 422")
	}
	f.creates++
	if f.noIDs {
		return remote.Record{"ok": true}, nil
	}
	f.nextID++
	return remote.Record{"id": fmt.Sprintf("rem_%d", f.nextID)}, nil
}

func (f *fakeExportRemote) update() (remote.Record, error) {
	f.updates++
	return remote.Record{}, nil
}

func (f *fakeExportRemote) CreateTag(_ context.Context, _ string, name string) (remote.Record, error) {
	return f.respond(name)
}
func (f *fakeExportRemote) CreateCustomField(_ context.Context, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("name"))
}
func (f *fakeExportRemote) UpdateCustomField(_ context.Context, _ string, _ string, _ remote.Record) (remote.Record, error) {
	return f.update()
}
func (f *fakeExportRemote) CreateCustomValue(_ context.Context, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("name"))
}
func (f *fakeExportRemote) UpdateCustomValue(_ context.Context, _ string, _ string, _ remote.Record) (remote.Record, error) {
	return f.update()
}
func (f *fakeExportRemote) CreateContact(_ context.Context, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("firstName"))
}
func (f *fakeExportRemote) UpdateContact(_ context.Context, _ string, _ remote.Record) (remote.Record, error) {
	return f.update()
}
func (f *fakeExportRemote) CreateOpportunity(_ context.Context, _, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("name"))
}
func (f *fakeExportRemote) CreateNote(_ context.Context, _, body string) (remote.Record, error) {
	return f.respond(body)
}
func (f *fakeExportRemote) UpdateNote(_ context.Context, _, _, _ string) (remote.Record, error) {
	return f.update()
}
func (f *fakeExportRemote) CreateTask(_ context.Context, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("title"))
}
func (f *fakeExportRemote) UpdateTask(_ context.Context, _, _ string, _ remote.Record) (remote.Record, error) {
	return f.update()
}
func (f *fakeExportRemote) SendMessage(_ context.Context, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("message"))
}
func (f *fakeExportRemote) CreateAppointment(_ context.Context, _, _ string, fields remote.Record) (remote.Record, error) {
	return f.respond(fields.Str("title"))
}
func (f *fakeExportRemote) ListPipelines(_ context.Context, _ string) ([]remote.Record, error) {
	return f.pipelines, nil
}

func newTestExporter(t *testing.T, s *store.Store, rem ExportRemote) *Exporter {
	t.Helper()
	return NewExporter(s, rem, testutil.NewTestLogger(t))
}

func insertEntity(t *testing.T, s *store.Store, e *store.Entity) *store.Entity {
	t.Helper()
	if err := s.Insert(e); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestExportTagsOnlyLocalRows(t *testing.T) {
	s := newTestStore(t)
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "local-only"})
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "linked", RemoteID: "tag_9"})

	rem := &fakeExportRemote{}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportTags(context.Background(), "t1", "loc_1")
	if res.Created != 1 || rem.creates != 1 {
		t.Fatalf("created = %d, remote creates = %d, want 1/1", res.Created, rem.creates)
	}

	// Second run: the row is linked now, nothing to create.
	res = ex.ExportTags(context.Background(), "t1", "loc_1")
	if res.Created != 0 || rem.creates != 1 {
		t.Errorf("second run re-created: result = %+v, remote creates = %d", res, rem.creates)
	}
}

func TestExportSynthesizesPlaceholderID(t *testing.T) {
	s := newTestStore(t)
	tag := insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "vip"})

	rem := &fakeExportRemote{noIDs: true}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportTags(context.Background(), "t1", "loc_1")
	if res.Created != 1 {
		t.Fatalf("created = %d; errors = %v", res.Created, res.Errors)
	}

	got, err := s.GetByRemoteID("t1", store.KindTag, "exported:"+tag.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("placeholder remote id not persisted")
	}

	// The placeholder keeps the row out of the next batch.
	res = ex.ExportTags(context.Background(), "t1", "loc_1")
	if rem.creates != 1 {
		t.Errorf("placeholder row was re-exported")
	}
}

func TestExportTagFailureDoesNotAbortBatch(t *testing.T) {
	s := newTestStore(t)
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "broken"})
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "vip"})

	rem := &fakeExportRemote{failNames: map[string]bool{"broken": true}}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportTags(context.Background(), "t1", "loc_1")
	if res.Created != 1 {
		t.Errorf("created = %d, want 1 despite failure", res.Created)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want one", res.Errors)
	}
}

func TestExportNotesSkipsUnlinkedContacts(t *testing.T) {
	s := newTestStore(t)
	linked := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Ada", RemoteID: "c_1",
	})
	unlinked := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Grace",
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindNote, ParentID: linked.ID, Name: "note a",
		Fields: map[string]any{"body": "call back"},
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindNote, ParentID: unlinked.ID, Name: "note b",
		Fields: map[string]any{"body": "waiting"},
	})

	rem := &fakeExportRemote{}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportNotes(context.Background(), "t1", "loc_1")
	if res.Created != 1 {
		t.Errorf("created = %d, want 1; errors = %v", res.Created, res.Errors)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 for the unlinked contact", res.Skipped)
	}
}

func TestExportNotesUpdateGatedByStaleness(t *testing.T) {
	s := newTestStore(t)
	contact := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Ada", RemoteID: "c_1",
	})
	note := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindNote, ParentID: contact.ID, Name: "note",
		RemoteID: "n_1", Fields: map[string]any{"body": "old"},
	})

	// Freshly synced: updated_at <= last_synced_at means nothing to push.
	if err := s.SetRemoteID(note.ID, "n_1", "loc_1", time.Now().UTC()); err != nil {
		t.Fatal(err)
	}

	rem := &fakeExportRemote{}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportNotes(context.Background(), "t1", "loc_1")
	if rem.updates != 0 || res.Skipped != 1 {
		t.Fatalf("fresh note was pushed: updates = %d, skipped = %d", rem.updates, res.Skipped)
	}

	// A local edit makes it stale again.
	fresh, err := s.GetByRemoteID("t1", store.KindNote, "n_1")
	if err != nil {
		t.Fatal(err)
	}
	fresh.Fields["body"] = "new"
	if err := s.Update(fresh); err != nil {
		t.Fatal(err)
	}
	res = ex.ExportNotes(context.Background(), "t1", "loc_1")
	if rem.updates != 1 || res.Updated != 1 {
		t.Errorf("stale note not pushed: updates = %d, result = %+v", rem.updates, res)
	}

	// The push stamped the sync time, so the next run has nothing to do.
	res = ex.ExportNotes(context.Background(), "t1", "loc_1")
	if rem.updates != 1 || res.Skipped != 1 {
		t.Errorf("pushed note re-pushed: updates = %d, result = %+v", rem.updates, res)
	}
}

func TestExportOpportunitiesSkipsUnresolvedDependencies(t *testing.T) {
	s := newTestStore(t)
	pipeline := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindPipeline, Name: "Sales", RemoteID: "pipe_1",
	})
	stage := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindPipelineStage, ParentID: pipeline.ID,
		Name: "Lead", RemoteID: "st_1",
	})
	contact := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Ada", RemoteID: "c_1",
	})
	// Fully resolvable.
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindOpportunity, ParentID: pipeline.ID, Name: "Good",
		Fields: map[string]any{"stage_id": stage.ID, "contact_id": contact.ID},
	})
	// Contact never linked: must be skipped, never an error.
	unlinked := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Grace",
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindOpportunity, ParentID: pipeline.ID, Name: "Blocked",
		Fields: map[string]any{"stage_id": stage.ID, "contact_id": unlinked.ID},
	})

	rem := &fakeExportRemote{}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportOpportunities(context.Background(), "t1", "loc_1")
	if res.Created != 1 {
		t.Errorf("created = %d, want 1; errors = %v", res.Created, res.Errors)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if len(res.Errors) != 0 {
		t.Errorf("unresolved dependency produced errors: %v", res.Errors)
	}
}

func TestExportOpportunitiesRecoversPipelineIDsByName(t *testing.T) {
	s := newTestStore(t)
	pipeline := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindPipeline, Name: "Sales",
	})
	stage := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindPipelineStage, ParentID: pipeline.ID, Name: "Lead",
	})
	contact := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Ada", RemoteID: "c_1",
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindOpportunity, ParentID: pipeline.ID, Name: "Deal",
		Fields: map[string]any{"stage_id": stage.ID, "contact_id": contact.ID},
	})

	rem := &fakeExportRemote{pipelines: []remote.Record{
		{"id": "pipe_9", "name": "  SALES ", "stages": []any{
			map[string]any{"id": "st_9", "name": "lead"},
		}},
	}}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportOpportunities(context.Background(), "t1", "loc_1")
	if res.Created != 1 {
		t.Fatalf("created = %d, want 1; errors = %v", res.Created, res.Errors)
	}

	gotPipeline, err := s.GetByRemoteID("t1", store.KindPipeline, "pipe_9")
	if err != nil {
		t.Fatal(err)
	}
	if gotPipeline == nil {
		t.Error("pipeline remote id not recovered by normalized name")
	}
	gotStage, err := s.GetByRemoteID("t1", store.KindPipelineStage, "st_9")
	if err != nil {
		t.Fatal(err)
	}
	if gotStage == nil {
		t.Error("stage remote id not recovered by normalized name")
	}
}

func TestExportMessagesOnlyOutboundUndelivered(t *testing.T) {
	s := newTestStore(t)
	contact := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindContact, Name: "Ada", RemoteID: "c_1",
	})
	conv := insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindConversation, Name: "Ada",
		RemoteID: "conv_1", Fields: map[string]any{"contact_id": contact.ID},
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindMessage, ParentID: conv.ID, Name: "SMS",
		Fields: map[string]any{"body": "hello", "direction": "outbound"},
	})
	insertEntity(t, s, &store.Entity{
		TenantID: "t1", Kind: store.KindMessage, ParentID: conv.ID, Name: "SMS",
		RemoteID: "m_2", Fields: map[string]any{"body": "imported", "direction": "inbound"},
	})

	rem := &fakeExportRemote{}
	ex := newTestExporter(t, s, rem)

	res := ex.ExportMessages(context.Background(), "t1", "loc_1")
	if res.Created != 1 || rem.creates != 1 {
		t.Fatalf("created = %d, sends = %d, want 1/1; errors = %v", res.Created, rem.creates, res.Errors)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 for the inbound message", res.Skipped)
	}

	// Delivered message now has a provider id and is never re-sent.
	res = ex.ExportMessages(context.Background(), "t1", "loc_1")
	if rem.creates != 1 {
		t.Errorf("delivered message re-sent")
	}
}
