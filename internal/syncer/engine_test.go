package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
	"github.com/relaycrm/relaysync/internal/testutil"
)

// fakeEngineRemote serves listings from canned data and panics or fails on
// request to exercise phase isolation.
type fakeEngineRemote struct {
	fakeExportRemote
	collections map[string][]remote.Record
	contacts    []remote.Record
	failLists   map[string]bool
	panicLists  map[string]bool

	mu          sync.Mutex
	noteFetches []string
}

func (f *fakeEngineRemote) list(name string) ([]remote.Record, error) {
	if f.panicLists[name] {
		panic("boom: " + name)
	}
	if f.failLists[name] {
		return nil, errors.New("upstream 500")
	}
	return f.collections[name], nil
}

func (f *fakeEngineRemote) ListCollection(_ context.Context, _ string, collection string) ([]remote.Record, error) {
	return f.list(collection)
}
func (f *fakeEngineRemote) ListContacts(context.Context, string) ([]remote.Record, error) {
	return f.list("contacts")
}
func (f *fakeEngineRemote) ContactTotal(context.Context, string) (int, error) {
	return len(f.contacts), nil
}
func (f *fakeEngineRemote) ListOpportunities(context.Context, string, string) ([]remote.Record, error) {
	return f.list("opportunities")
}
func (f *fakeEngineRemote) ListNotes(_ context.Context, contactID string) ([]remote.Record, error) {
	f.mu.Lock()
	f.noteFetches = append(f.noteFetches, contactID)
	f.mu.Unlock()
	return f.list("notes")
}
func (f *fakeEngineRemote) ListTasks(context.Context, string) ([]remote.Record, error) {
	return f.list("tasks")
}
func (f *fakeEngineRemote) ListConversations(context.Context, string) ([]remote.Record, error) {
	return f.list("conversations")
}
func (f *fakeEngineRemote) ListMessages(context.Context, string) ([]remote.Record, error) {
	return f.list("messages")
}
func (f *fakeEngineRemote) ListCalendars(context.Context, string) ([]remote.Record, error) {
	return f.list("calendars")
}
func (f *fakeEngineRemote) ListAppointments(context.Context, string, string) ([]remote.Record, error) {
	return f.list("appointments")
}
func (f *fakeEngineRemote) ListForms(context.Context, string) ([]remote.Record, error) {
	return f.list("forms")
}
func (f *fakeEngineRemote) ListFormSubmissions(context.Context, string, string) ([]remote.Record, error) {
	return f.list("form_submissions")
}
func (f *fakeEngineRemote) ListSurveys(context.Context, string) ([]remote.Record, error) {
	return f.list("surveys")
}
func (f *fakeEngineRemote) ListSurveySubmissions(context.Context, string, string) ([]remote.Record, error) {
	return f.list("survey_submissions")
}
func (f *fakeEngineRemote) ListCampaigns(context.Context, string) ([]remote.Record, error) {
	return f.list("campaigns")
}
func (f *fakeEngineRemote) ListFunnels(context.Context, string) ([]remote.Record, error) {
	return f.list("funnels")
}
func (f *fakeEngineRemote) ListFunnelPages(context.Context, string, string) ([]remote.Record, error) {
	return f.list("funnel_pages")
}
func (f *fakeEngineRemote) ListWorkflows(context.Context, string) ([]remote.Record, error) {
	return f.list("workflows")
}

func newEngineFixture() *fakeEngineRemote {
	contacts := []remote.Record{
		{"id": "c_1", "firstName": "Ada", "lastName": "Lovelace", "email": "ada@acme.io", "tags": []any{"vip"}},
	}
	return &fakeEngineRemote{
		contacts:   contacts,
		failLists:  map[string]bool{},
		panicLists: map[string]bool{},
		collections: map[string][]remote.Record{
			"tags": {{"id": "tag_1", "name": "vip"}},
			"custom_fields": {
				{"id": "cf_1", "name": "Budget", "fieldKey": "contact.budget", "dataType": "MONETARY"},
			},
			"custom_values": {{"id": "cv_1", "name": "support_email", "value": "help@acme.io"}},
			"pipelines": {
				{"id": "pipe_1", "name": "Sales", "stages": []any{
					map[string]any{"id": "st_1", "name": "Lead"},
				}},
			},
			"contacts": contacts,
			"opportunities": {
				{"id": "opp_1", "name": "Big Deal", "pipelineStageId": "st_1", "contactId": "c_1"},
			},
			"notes":     {{"id": "n_1", "body": "call back"}},
			"tasks":     {{"id": "tk_1", "title": "Follow up"}},
			"workflows": {{"id": "wf_1", "name": "Welcome", "status": "published"}},
			"calendars": {{"id": "cal_1", "name": "Demos"}},
			"forms":     {{"id": "form_1", "name": "Intake"}},
		},
	}
}

func newTestEngine(t *testing.T, s *store.Store, rem Remote) *Engine {
	t.Helper()
	return NewEngine(s, rem, nil, testutil.NewTestLogger(t), Options{Concurrency: 2})
}

func TestEngineImportEndToEnd(t *testing.T) {
	s := newTestStore(t)
	rem := newEngineFixture()
	eng := newTestEngine(t, s, rem)

	total, err := eng.Import(context.Background(), "t1", "loc_1")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if len(total.Errors) != 0 {
		t.Fatalf("errors = %v", total.Errors)
	}

	for kind, want := range map[string]int{
		store.KindTag:           1,
		store.KindCustomField:   1,
		store.KindCustomValue:   1,
		store.KindPipeline:      1,
		store.KindPipelineStage: 1,
		store.KindContact:       1,
		store.KindOpportunity:   1,
		store.KindNote:          1,
		store.KindTask:          1,
		store.KindWorkflow:      1,
		store.KindCalendar:      1,
		store.KindForm:          1,
	} {
		rows, err := s.ListKind("t1", kind)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != want {
			t.Errorf("%s rows = %d, want %d", kind, len(rows), want)
		}
	}

	// The opportunity's stage and contact references resolved.
	opp, err := s.GetByRemoteID("t1", store.KindOpportunity, "opp_1")
	if err != nil {
		t.Fatal(err)
	}
	if opp.Str("stage_id") == "" || opp.Str("contact_id") == "" {
		t.Errorf("opportunity references unresolved: %v", opp.Fields)
	}

	runs, err := s.ListRuns("t1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != store.RunStatusCompleted || runs[0].Direction != "import" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestEngineImportIsolatesFailedPhases(t *testing.T) {
	s := newTestStore(t)
	rem := newEngineFixture()
	rem.failLists["notes"] = true
	rem.panicLists["opportunities"] = true

	eng := newTestEngine(t, s, rem)
	total, err := eng.Import(context.Background(), "t1", "loc_1")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if len(total.Errors) != 2 {
		t.Fatalf("errors = %v, want note failure and opportunity panic", total.Errors)
	}

	// Later phases still ran.
	workflows, err := s.ListKind("t1", store.KindWorkflow)
	if err != nil {
		t.Fatal(err)
	}
	if len(workflows) != 1 {
		t.Errorf("workflow phase did not run after earlier failures")
	}
}

func TestEngineImportTwiceCreatesNoDuplicates(t *testing.T) {
	s := newTestStore(t)
	rem := newEngineFixture()
	eng := newTestEngine(t, s, rem)

	first, err := eng.Import(context.Background(), "t1", "loc_1")
	if err != nil {
		t.Fatal(err)
	}
	second, err := eng.Import(context.Background(), "t1", "loc_1")
	if err != nil {
		t.Fatal(err)
	}

	if second.Created != 0 {
		t.Errorf("second import created %d rows, want 0 (first created %d)", second.Created, first.Created)
	}
	if second.Updated == 0 {
		t.Errorf("second import updated nothing")
	}
}

func TestEnginePreview(t *testing.T) {
	s := newTestStore(t)
	rem := newEngineFixture()
	eng := newTestEngine(t, s, rem)

	preview, err := eng.Preview(context.Background(), "loc_1")
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Tags != 1 || preview.Pipelines != 1 {
		t.Errorf("preview = %+v", preview)
	}
	if preview.Contacts != 1 {
		t.Errorf("contact total = %d, want 1", preview.Contacts)
	}
	if preview.Opportunities != 1 {
		t.Errorf("opportunities = %d, want 1", preview.Opportunities)
	}

	// Preview writes nothing.
	rows, err := s.ListKind("t1", store.KindTag)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("preview persisted %d rows", len(rows))
	}
}

func TestImportChildrenSkipPlaceholderContacts(t *testing.T) {
	s := newTestStore(t)
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindContact, Name: "Ada Lovelace", RemoteID: "c_9"})
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindContact, Name: "Grace Hopper", RemoteID: "exported:abc-123"})
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindContact, Name: "Unlinked"})

	rem := newEngineFixture()
	eng := newTestEngine(t, s, rem)

	result := eng.importContactChildren(context.Background(), "t1", NewImporter(s, testutil.NewTestLogger(t)))
	if len(result.Errors) != 0 {
		t.Fatalf("errors = %v", result.Errors)
	}
	if len(rem.noteFetches) != 1 || rem.noteFetches[0] != "c_9" {
		t.Errorf("note fetches = %v, want only the linked contact", rem.noteFetches)
	}
}

func TestEngineExportRecordsRun(t *testing.T) {
	s := newTestStore(t)
	insertEntity(t, s, &store.Entity{TenantID: "t1", Kind: store.KindTag, Name: "local-only"})

	rem := newEngineFixture()
	eng := newTestEngine(t, s, rem)

	total, err := eng.Export(context.Background(), "t1", "loc_1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if total.Created != 1 {
		t.Errorf("created = %d, want 1; errors = %v", total.Created, total.Errors)
	}

	runs, err := s.ListRuns("t1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Direction != "export" {
		t.Errorf("runs = %+v", runs)
	}
}
