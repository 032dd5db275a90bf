package store

import (
	"database/sql"
	"fmt"
	"time"
)

// timeLayout keeps sub-second precision so rows started in the same second
// still sort by start time.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

// Export operations

// BeginExport inserts a running export.
func (s *Store) BeginExport(id, target, style string, startedAt time.Time) error {
	query := `
		INSERT INTO exports (id, target, style, started_at, outcome)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, id, target, style, formatTime(startedAt), OutcomeRunning); err != nil {
		return queryErr(fmt.Sprintf("insert export %s", id), err)
	}
	return nil
}

// RecordPhase appends a phase event to an export.
func (s *Store) RecordPhase(exportID, phase, status, detail string) error {
	query := `
		INSERT INTO export_phases (export_id, phase, status, detail, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, exportID, phase, status, detail, formatTime(time.Now())); err != nil {
		return queryErr(fmt.Sprintf("record phase %s of %s", phase, exportID), err)
	}
	return nil
}

// FinishExport stores the final state of an export.
func (s *Store) FinishExport(id, outcome, failedPhase string, packagingOK bool, warnings int, errMsg string) error {
	query := `
		UPDATE exports
		SET finished_at = ?, outcome = ?, failed_phase = ?, packaging_ok = ?, warnings = ?, error = ?
		WHERE id = ?
	`
	res, err := s.db.Exec(query, formatTime(time.Now()), outcome, failedPhase, packagingOK, warnings, errMsg, id)
	if err != nil {
		return queryErr(fmt.Sprintf("finish export %s", id), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish export %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("export %s not found", id)
	}
	return nil
}

const exportColumns = `id, target, COALESCE(style, ''), started_at, COALESCE(finished_at, ''), outcome,
	COALESCE(failed_phase, ''), COALESCE(packaging_ok, 0), warnings, COALESCE(error, '')`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (*Export, error) {
	var e Export
	var startedAt, finishedAt string
	err := row.Scan(
		&e.ID,
		&e.Target,
		&e.Style,
		&startedAt,
		&finishedAt,
		&e.Outcome,
		&e.FailedPhase,
		&e.PackagingOK,
		&e.Warnings,
		&e.Error,
	)
	if err != nil {
		return nil, err
	}
	if e.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("failed to parse started_at for export %s: %w", e.ID, err)
	}
	if e.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, fmt.Errorf("failed to parse finished_at for export %s: %w", e.ID, err)
	}
	return &e, nil
}

// GetExport retrieves an export by ID.
func (s *Store) GetExport(id string) (*Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports WHERE id = ?`

	e, err := scanExport(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("export %s not found", id)
	}
	if err != nil {
		return nil, queryErr(fmt.Sprintf("get export %s", id), err)
	}
	return e, nil
}

// ListExports returns exports newest first. An empty target lists every
// target; limit <= 0 means no limit.
func (s *Store) ListExports(target string, limit int) ([]*Export, error) {
	query := `SELECT ` + exportColumns + ` FROM exports
		WHERE (? = '' OR target = ?)
		ORDER BY started_at DESC, rowid DESC`
	args := []any{target, target}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, queryErr("list exports", err)
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		exports = append(exports, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}

	return exports, nil
}

// GetExportPhases returns the phase events of an export in order.
func (s *Store) GetExportPhases(exportID string) ([]*PhaseEvent, error) {
	query := `
		SELECT export_id, phase, status, COALESCE(detail, ''), recorded_at
		FROM export_phases
		WHERE export_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, exportID)
	if err != nil {
		return nil, queryErr("get export phases", err)
	}
	defer rows.Close()

	var phases []*PhaseEvent
	for rows.Next() {
		var p PhaseEvent
		var recordedAt string
		if err := rows.Scan(&p.ExportID, &p.Phase, &p.Status, &p.Detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		if p.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, fmt.Errorf("failed to parse recorded_at: %w", err)
		}
		phases = append(phases, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating phases: %w", err)
	}

	return phases, nil
}

// PruneExports deletes all but the newest keep exports of every target,
// together with their phases. Returns the number of exports removed.
func (s *Store) PruneExports(keep int) (int64, error) {
	query := `
		DELETE FROM exports
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY target ORDER BY started_at DESC, rowid DESC) AS n
				FROM exports
			) WHERE n > ?
		)
	`
	res, err := s.db.Exec(query, keep)
	if err != nil {
		return 0, queryErr("prune exports", err)
	}
	return res.RowsAffected()
}

// Backup ledger

// RecordBackupEvent stores one backup action on a tracked file.
func (s *Store) RecordBackupEvent(target, file, action string) error {
	query := `
		INSERT INTO backup_events (target, file, action, timestamp)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, target, file, action, formatTime(time.Now())); err != nil {
		return queryErr(fmt.Sprintf("record backup event for %s", file), err)
	}
	return nil
}

// ListBackupEvents returns a target's backup actions, oldest first.
func (s *Store) ListBackupEvents(target string) ([]*BackupEvent, error) {
	query := `
		SELECT id, target, file, action, timestamp
		FROM backup_events
		WHERE target = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, target)
	if err != nil {
		return nil, queryErr("list backup events", err)
	}
	defer rows.Close()

	var events []*BackupEvent
	for rows.Next() {
		var ev BackupEvent
		var ts string
		if err := rows.Scan(&ev.ID, &ev.Target, &ev.File, &ev.Action, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan backup event row: %w", err)
		}
		if ev.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("failed to parse backup event timestamp: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backup events: %w", err)
	}

	return events, nil
}
