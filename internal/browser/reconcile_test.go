package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/relaycrm/relaysync/internal/remote"
	"github.com/relaycrm/relaysync/internal/store"
	"github.com/relaycrm/relaysync/internal/testutil"
)

type fakeLister struct {
	collections map[string][]remote.Record
	err         error
}

func (f *fakeLister) ListCollection(ctx context.Context, tenantID, collection string) ([]remote.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.collections[collection], nil
}

func newReconcileStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New()
	if err := s.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return s
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lead Form", "lead form"},
		{"  Lead   Form  ", "lead form"},
		{"LEAD\tFORM", "lead form"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReconcileMatchesByNormalizedName(t *testing.T) {
	s := newReconcileStore(t)
	form := &store.Entity{TenantID: "t1", Kind: store.KindForm, Name: "Lead Form"}
	if err := s.Insert(form); err != nil {
		t.Fatal(err)
	}

	lister := &fakeLister{collections: map[string][]remote.Record{
		"forms": {{"id": "rf1", "name": "lead form"}},
	}}
	r := NewReconciler(s, lister, testutil.NewTestLogger(t))

	result, err := r.Reconcile(context.Background(), "t1", "loc1",
		map[string]map[string]bool{"forms": {form.ID: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("expected 1 update, got %d (warnings %v)", result.Updated, result.Warnings)
	}

	got, err := s.GetByRemoteID("t1", store.KindForm, "rf1")
	if err != nil || got == nil {
		t.Fatalf("expected remote id persisted, got %v, %v", got, err)
	}
	if got.ID != form.ID {
		t.Errorf("wrong row matched: %s", got.ID)
	}
}

func TestReconcileIgnoresIncompleteItems(t *testing.T) {
	s := newReconcileStore(t)
	form := &store.Entity{TenantID: "t1", Kind: store.KindForm, Name: "Lead Form"}
	if err := s.Insert(form); err != nil {
		t.Fatal(err)
	}

	lister := &fakeLister{collections: map[string][]remote.Record{
		"forms": {{"id": "rf1", "name": "Lead Form"}},
	}}
	r := NewReconciler(s, lister, testutil.NewTestLogger(t))

	// The item failed during execution; its ID is not in the completed set.
	result, err := r.Reconcile(context.Background(), "t1", "loc1", map[string]map[string]bool{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("expected no updates, got %d", result.Updated)
	}
}

func TestReconcileChildrenPositionalFallback(t *testing.T) {
	s := newReconcileStore(t)
	form := &store.Entity{TenantID: "t1", Kind: store.KindForm, Name: "Signup"}
	if err := s.Insert(form); err != nil {
		t.Fatal(err)
	}
	var fieldIDs []string
	for i, label := range []string{"Email Address", "Phone"} {
		f := &store.Entity{
			TenantID: "t1", Kind: store.KindFormField, ParentID: form.ID,
			Position: i, Name: label,
		}
		if err := s.Insert(f); err != nil {
			t.Fatal(err)
		}
		fieldIDs = append(fieldIDs, f.ID)
	}

	// The first remote field matches by name; the second has a remote label
	// that matches nothing and must reconcile positionally.
	lister := &fakeLister{collections: map[string][]remote.Record{
		"forms": {{
			"id":   "rf1",
			"name": "Signup",
			"fields": []any{
				map[string]any{"id": "f-email", "label": "email address"},
				map[string]any{"id": "f-phone", "label": "Telephone Number"},
			},
		}},
	}}
	r := NewReconciler(s, lister, testutil.NewTestLogger(t))

	result, err := r.Reconcile(context.Background(), "t1", "loc1",
		map[string]map[string]bool{"forms": {form.ID: true}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Updated != 3 {
		t.Errorf("expected parent and both children updated, got %d", result.Updated)
	}

	children, err := s.ListChildren(form.ID, store.KindFormField)
	if err != nil {
		t.Fatal(err)
	}
	if children[0].RemoteID != "f-email" {
		t.Errorf("name match failed: %q", children[0].RemoteID)
	}
	if children[1].RemoteID != "f-phone" {
		t.Errorf("positional fallback failed: %q", children[1].RemoteID)
	}
}

func TestReconcileListFailureIsWarning(t *testing.T) {
	s := newReconcileStore(t)
	form := &store.Entity{TenantID: "t1", Kind: store.KindForm, Name: "Lead Form"}
	if err := s.Insert(form); err != nil {
		t.Fatal(err)
	}

	lister := &fakeLister{err: errors.New("api down")}
	r := NewReconciler(s, lister, testutil.NewTestLogger(t))

	result, err := r.Reconcile(context.Background(), "t1", "loc1",
		map[string]map[string]bool{"forms": {form.ID: true}})
	if err != nil {
		t.Fatalf("list failures must degrade to warnings, got %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning")
	}
	if result.Updated != 0 {
		t.Errorf("expected no updates, got %d", result.Updated)
	}
}
