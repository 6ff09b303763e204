package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SyncRun records one import or export run for a tenant.
type SyncRun struct {
	ID          string
	TenantID    string
	Direction   string
	Status      string
	Created     int
	Updated     int
	Skipped     int
	Errors      []string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// StartRun records the beginning of a sync run.
func (s *Store) StartRun(tenantID, direction string) (*SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	run := &SyncRun{
		ID:        generateID(),
		TenantID:  tenantID,
		Direction: direction,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO sync_runs (id, tenant_id, direction, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.TenantID, run.Direction, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync run: %w", err)
	}
	return run, nil
}

// CompleteRun records a run's final counters and status.
func (s *Store) CompleteRun(id, status string, created, updated, skipped int, errs []string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("failed to encode run errors: %w", err)
	}
	now := time.Now().UTC()

	result, err := s.db.Exec(
		`UPDATE sync_runs SET status = ?, created_count = ?, updated_count = ?,
			skipped_count = ?, errors = ?, completed_at = ? WHERE id = ?`,
		status, created, updated, skipped, string(errsJSON), now, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("sync run not found: %s", id)
	}
	return nil
}

// ListRuns returns the tenant's most recent runs, newest first.
func (s *Store) ListRuns(tenantID string, limit int) ([]*SyncRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, tenant_id, direction, status, created_count, updated_count,
			skipped_count, errors, started_at, completed_at
		 FROM sync_runs WHERE tenant_id = ? ORDER BY started_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var out []*SyncRun
	for rows.Next() {
		run := &SyncRun{}
		var errsJSON string
		var completed sql.NullTime
		err := rows.Scan(&run.ID, &run.TenantID, &run.Direction, &run.Status,
			&run.Created, &run.Updated, &run.Skipped, &errsJSON,
			&run.StartedAt, &completed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}
		if completed.Valid {
			run.CompletedAt = &completed.Time
		}
		if err := json.Unmarshal([]byte(errsJSON), &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode run errors: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
