package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RawEntity is an audit copy of a remote payload as last fetched.
type RawEntity struct {
	TenantID   string
	EntityType string
	RemoteID   string
	Payload    []byte
	FetchedAt  time.Time
}

// UpsertRaw overwrites the audit copy of a remote payload keyed by
// (tenant, entity type, remote id). Called from import fan-out; the key
// makes concurrent writers for different records collision-free.
func (s *Store) UpsertRaw(tenantID, entityType, remoteID string, payload []byte) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if remoteID == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO raw_entities (tenant_id, entity_type, remote_id, payload, fetched_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, entity_type, remote_id)
		 DO UPDATE SET payload = excluded.payload, fetched_at = excluded.fetched_at`,
		tenantID, entityType, remoteID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert raw %s entity: %w", entityType, err)
	}
	return nil
}

// GetRaw returns the stored payload for a remote entity, or nil when absent.
func (s *Store) GetRaw(tenantID, entityType, remoteID string) (*RawEntity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	raw := &RawEntity{TenantID: tenantID, EntityType: entityType, RemoteID: remoteID}
	var payload string
	err := s.db.QueryRow(
		`SELECT payload, fetched_at FROM raw_entities
		 WHERE tenant_id = ? AND entity_type = ? AND remote_id = ?`,
		tenantID, entityType, remoteID,
	).Scan(&payload, &raw.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get raw entity: %w", err)
	}
	raw.Payload = []byte(payload)
	return raw, nil
}

// ListRaw returns all audit copies of an entity type for the tenant.
func (s *Store) ListRaw(tenantID, entityType string) ([]*RawEntity, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT remote_id, payload, fetched_at FROM raw_entities
		 WHERE tenant_id = ? AND entity_type = ? ORDER BY remote_id`,
		tenantID, entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list raw entities: %w", err)
	}
	defer rows.Close()

	var out []*RawEntity
	for rows.Next() {
		raw := &RawEntity{TenantID: tenantID, EntityType: entityType}
		var payload string
		if err := rows.Scan(&raw.RemoteID, &payload, &raw.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan raw entity: %w", err)
		}
		raw.Payload = []byte(payload)
		out = append(out, raw)
	}
	return out, rows.Err()
}
