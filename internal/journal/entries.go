package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Entry is one recorded job attempt.
type Entry struct {
	ID             int64         `json:"id"`
	JobID          string        `json:"job_id"`
	RunID          string        `json:"run_id,omitempty"`
	SourcePath     string        `json:"source_path"`
	Name           string        `json:"name"`
	Attempt        int           `json:"attempt"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Backend        string        `json:"backend,omitempty"`
	Segments       int           `json:"segments"`
	TranscriptPath string        `json:"transcript_path,omitempty"`
	SubtitlePath   string        `json:"subtitle_path,omitempty"`
	ArchivePath    string        `json:"archive_path,omitempty"`
	QuarantinePath string        `json:"quarantine_path,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// Stats aggregates the journal.
type Stats struct {
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	AverageDuration time.Duration `json:"average_duration"`
}

const entryColumns = `id, job_id, run_id, source_path, name, attempt, success, error, backend, segments,
	transcript_path, subtitle_path, archive_path, quarantine_path, started_at, duration_ms`

// Record appends an entry and returns its row ID.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	ctx = ensureContext(ctx)
	if e.JobID == "" || e.SourcePath == "" {
		return 0, errors.New("journal: job id and source path are required")
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.Attempt <= 0 {
		e.Attempt = 1
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO outcomes (
			job_id, run_id, source_path, name, attempt, success, error, backend, segments,
			transcript_path, subtitle_path, archive_path, quarantine_path, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.JobID, e.RunID, e.SourcePath, e.Name, e.Attempt, boolToInt(e.Success), e.Error, e.Backend, e.Segments,
			e.TranscriptPath, e.SubtitlePath, e.ArchivePath, e.QuarantinePath,
			e.StartedAt.UTC().Format(time.RFC3339Nano), e.Duration.Milliseconds(),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal record: %w", err)
	}
	return id, nil
}

// FailuresSinceSuccess counts failed attempts for path recorded after its
// most recent success.
func (s *Store) FailuresSinceSuccess(ctx context.Context, path string) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM outcomes
			WHERE source_path = ? AND success = 0
			AND id > COALESCE((SELECT MAX(id) FROM outcomes WHERE source_path = ? AND success = 1), 0)`,
			path, path,
		).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("journal attempts: %w", err)
	}
	return count, nil
}

// Attempts returns every entry for path, oldest first.
func (s *Store) Attempts(ctx context.Context, path string) ([]Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+` FROM outcomes WHERE source_path = ? ORDER BY id`, path)
	if err != nil {
		return nil, fmt.Errorf("journal attempts: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + entryColumns + ` FROM outcomes ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Stats aggregates success and failure counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats Stats
		avg   sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1),
		COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0),
		AVG(duration_ms)
		FROM outcomes`).Scan(&stats.Total, &stats.Succeeded, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("journal stats: %w", err)
	}
	stats.Failed = stats.Total - stats.Succeeded
	if avg.Valid {
		stats.AverageDuration = time.Duration(avg.Float64) * time.Millisecond
	}
	return stats, nil
}

// Clear removes every entry and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM outcomes`)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal clear: %w", err)
	}
	return removed, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			success    int
			startedAt  string
			durationMS int64
		)
		if err := rows.Scan(&e.ID, &e.JobID, &e.RunID, &e.SourcePath, &e.Name, &e.Attempt, &success, &e.Error,
			&e.Backend, &e.Segments, &e.TranscriptPath, &e.SubtitlePath, &e.ArchivePath, &e.QuarantinePath,
			&startedAt, &durationMS); err != nil {
			return nil, err
		}
		e.Success = success == 1
		if ts, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			e.StartedAt = ts
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
