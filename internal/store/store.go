// Package store provides tenant-scoped local persistence on SQLite.
// Local rows survive across sync runs; remote data is merged into them
// keyed by remote ID and never deletes them.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entity kinds. Child kinds carry a parent_id and a position; children of
// a parent are ordered by position.
const (
	KindTag              = "tag"
	KindCustomField      = "custom_field"
	KindCustomValue      = "custom_value"
	KindPipeline         = "pipeline"
	KindPipelineStage    = "pipeline_stage"
	KindContact          = "contact"
	KindOpportunity      = "opportunity"
	KindNote             = "note"
	KindTask             = "task"
	KindConversation     = "conversation"
	KindMessage          = "message"
	KindCalendar         = "calendar"
	KindAppointment      = "appointment"
	KindForm             = "form"
	KindFormField        = "form_field"
	KindFormSubmission   = "form_submission"
	KindSurvey           = "survey"
	KindSurveyQuestion   = "survey_question"
	KindSurveySubmission = "survey_submission"
	KindCampaign         = "campaign"
	KindCampaignStep     = "campaign_step"
	KindFunnel           = "funnel"
	KindFunnelPage       = "funnel_page"
	KindWorkflow         = "workflow"
)

// Entity is a tenant-scoped local row. Kind-specific attributes live in
// the Fields map, persisted as JSON; the columns carry what sync needs to
// query on.
type Entity struct {
	ID             string
	TenantID       string
	Kind           string
	ParentID       string
	Position       int
	Name           string
	RemoteID       string
	RemoteTenantID string
	ProviderID     string
	Fields         map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastSyncedAt   *time.Time
}

// Str returns a string attribute from Fields.
func (e *Entity) Str(key string) string {
	if e.Fields == nil {
		return ""
	}
	s, _ := e.Fields[key].(string)
	return s
}

// Store is the SQLite-backed local store.
type Store struct {
	db   *sql.DB
	path string
}

// New creates an unopened store.
func New() *Store {
	return &Store{}
}

// Open opens the SQLite database at path. Use ":memory:" for tests.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}

const entityColumns = `id, tenant_id, kind, parent_id, position, name, remote_id,
	remote_tenant_id, provider_id, fields, created_at, updated_at, last_synced_at`

func scanEntity(row interface{ Scan(...any) error }) (*Entity, error) {
	e := &Entity{}
	var parentID, remoteID, remoteTenantID, providerID sql.NullString
	var fieldsJSON string
	var lastSynced sql.NullTime

	err := row.Scan(&e.ID, &e.TenantID, &e.Kind, &parentID, &e.Position, &e.Name,
		&remoteID, &remoteTenantID, &providerID, &fieldsJSON,
		&e.CreatedAt, &e.UpdatedAt, &lastSynced)
	if err != nil {
		return nil, err
	}

	e.ParentID = parentID.String
	e.RemoteID = remoteID.String
	e.RemoteTenantID = remoteTenantID.String
	e.ProviderID = providerID.String
	if lastSynced.Valid {
		e.LastSyncedAt = &lastSynced.Time
	}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode entity fields: %w", err)
		}
	}
	return e, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Insert stores a new entity, generating its ID when empty.
func (s *Store) Insert(e *Entity) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if e.ID == "" {
		e.ID = generateID()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	fieldsJSON, err := json.Marshal(orEmpty(e.Fields))
	if err != nil {
		return fmt.Errorf("failed to encode entity fields: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO entities (`+entityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.Kind, nullStr(e.ParentID), e.Position, e.Name,
		nullStr(e.RemoteID), nullStr(e.RemoteTenantID), nullStr(e.ProviderID),
		string(fieldsJSON), e.CreatedAt, e.UpdatedAt, e.LastSyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s entity: %w", e.Kind, err)
	}
	return nil
}

// Update overwrites an entity's mutable columns.
func (s *Store) Update(e *Entity) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	e.UpdatedAt = time.Now().UTC()

	fieldsJSON, err := json.Marshal(orEmpty(e.Fields))
	if err != nil {
		return fmt.Errorf("failed to encode entity fields: %w", err)
	}

	result, err := s.db.Exec(
		`UPDATE entities SET parent_id = ?, position = ?, name = ?, remote_id = ?,
			remote_tenant_id = ?, provider_id = ?, fields = ?, updated_at = ?, last_synced_at = ?
		 WHERE id = ?`,
		nullStr(e.ParentID), e.Position, e.Name, nullStr(e.RemoteID),
		nullStr(e.RemoteTenantID), nullStr(e.ProviderID), string(fieldsJSON),
		e.UpdatedAt, e.LastSyncedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update %s entity: %w", e.Kind, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("entity not found: %s", e.ID)
	}
	return nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func (s *Store) queryOne(query string, args ...any) (*Entity, error) {
	e, err := scanEntity(s.db.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entity: %w", err)
	}
	return e, nil
}

func (s *Store) queryMany(query string, args ...any) ([]*Entity, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetByRemoteID looks up the single entity with the given remote ID, or
// nil when none exists.
func (s *Store) GetByRemoteID(tenantID, kind, remoteID string) (*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if remoteID == "" {
		return nil, nil
	}
	return s.queryOne(
		`SELECT `+entityColumns+` FROM entities WHERE tenant_id = ? AND kind = ? AND remote_id = ?`,
		tenantID, kind, remoteID,
	)
}

// FindByName returns the first entity of the kind with an exact name, or nil.
func (s *Store) FindByName(tenantID, kind, name string) (*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if name == "" {
		return nil, nil
	}
	return s.queryOne(
		`SELECT `+entityColumns+` FROM entities
		 WHERE tenant_id = ? AND kind = ? AND name = ? ORDER BY created_at LIMIT 1`,
		tenantID, kind, name,
	)
}

// FindByField returns the first entity whose JSON attribute matches, or nil.
func (s *Store) FindByField(tenantID, kind, key, value string) (*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if value == "" {
		return nil, nil
	}
	return s.queryOne(
		`SELECT `+entityColumns+` FROM entities
		 WHERE tenant_id = ? AND kind = ? AND json_extract(fields, '$.'||?) = ?
		 ORDER BY created_at LIMIT 1`,
		tenantID, kind, key, value,
	)
}

// ListKind returns all entities of a kind for the tenant, oldest first.
func (s *Store) ListKind(tenantID, kind string) ([]*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.queryMany(
		`SELECT `+entityColumns+` FROM entities
		 WHERE tenant_id = ? AND kind = ? ORDER BY created_at, id`,
		tenantID, kind,
	)
}

// ListChildren returns a parent's children of the kind ordered by position.
func (s *Store) ListChildren(parentID, kind string) ([]*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.queryMany(
		`SELECT `+entityColumns+` FROM entities
		 WHERE parent_id = ? AND kind = ? ORDER BY position, created_at`,
		parentID, kind,
	)
}

// ListMissingRemoteID returns entities of the kind that have never been
// matched to a remote resource. These are the export candidates.
func (s *Store) ListMissingRemoteID(tenantID, kind string) ([]*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.queryMany(
		`SELECT `+entityColumns+` FROM entities
		 WHERE tenant_id = ? AND kind = ? AND (remote_id IS NULL OR remote_id = '')
		 ORDER BY created_at, id`,
		tenantID, kind,
	)
}

// ListMissingProviderID returns message-like entities lacking a provider ID.
func (s *Store) ListMissingProviderID(tenantID, kind string) ([]*Entity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	return s.queryMany(
		`SELECT `+entityColumns+` FROM entities
		 WHERE tenant_id = ? AND kind = ? AND (provider_id IS NULL OR provider_id = '')
		 ORDER BY created_at, id`,
		tenantID, kind,
	)
}

// MarkSynced stamps a row's sync time. The updated_at column is written
// from the same instant, so the row does not read as changed-since-sync
// right after the stamp.
func (s *Store) MarkSynced(id string, at time.Time) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	result, err := s.db.Exec(
		`UPDATE entities SET last_synced_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark entity synced: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("entity not found: %s", id)
	}
	return nil
}

// SetRemoteID records a discovered remote ID on a local row and bumps its
// sync timestamp.
func (s *Store) SetRemoteID(id, remoteID, remoteTenantID string, at time.Time) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	result, err := s.db.Exec(
		`UPDATE entities SET remote_id = ?, remote_tenant_id = ?, last_synced_at = ?, updated_at = ? WHERE id = ?`,
		remoteID, nullStr(remoteTenantID), at, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set remote id: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("entity not found: %s", id)
	}
	return nil
}
