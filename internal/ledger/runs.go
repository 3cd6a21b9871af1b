package ledger

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run is one pass of a file through the ingestion pipeline
type Run struct {
	ID          string
	SrcPath     string
	SizeBytes   int64
	SHA1        string
	State       string
	RemoteKey   string
	SongID      string
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time // zero while in flight
}

// Finished reports whether the run reached a terminal state
func (r *Run) Finished() bool {
	return !r.CompletedAt.IsZero()
}

// StartRun inserts run, assigning an id when it has none
func (s *Store) StartRun(run *Run) error {
	if s == nil {
		return nil
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO ingest_runs
		(id, src_path, size_bytes, sha1, state, remote_key, song_id, error, started_unix_ms, completed_unix_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SrcPath, run.SizeBytes, run.SHA1, run.State, run.RemoteKey, run.SongID, run.Error,
		run.StartedAt.UnixMilli(), unixMilliOrNull(run.CompletedAt))
	return err
}

// UpdateRun writes every mutable column of run
func (s *Store) UpdateRun(run *Run) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`
		UPDATE ingest_runs
		SET size_bytes = ?, sha1 = ?, state = ?, remote_key = ?, song_id = ?, error = ?, completed_unix_ms = ?
		WHERE id = ?
	`, run.SizeBytes, run.SHA1, run.State, run.RemoteKey, run.SongID, run.Error,
		unixMilliOrNull(run.CompletedAt), run.ID)
	return err
}

const runColumns = `id, src_path, COALESCE(size_bytes, 0), COALESCE(sha1, ''), state,
	COALESCE(remote_key, ''), COALESCE(song_id, ''), COALESCE(error, ''),
	started_unix_ms, completed_unix_ms`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var started int64
	var completed sql.NullInt64
	err := row.Scan(&run.ID, &run.SrcPath, &run.SizeBytes, &run.SHA1, &run.State,
		&run.RemoteKey, &run.SongID, &run.Error, &started, &completed)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.UnixMilli(started)
	if completed.Valid {
		run.CompletedAt = time.UnixMilli(completed.Int64)
	}
	return &run, nil
}

// GetRun returns the run with id, or nil if there is none
func (s *Store) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM ingest_runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// RecentRuns returns up to limit runs, newest first
func (s *Store) RecentRuns(limit int) ([]*Run, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM ingest_runs ORDER BY started_unix_ms DESC, rowid DESC LIMIT ?`, limit)
}

// RunsByState returns the runs last seen in state, newest first
func (s *Store) RunsByState(state string) ([]*Run, error) {
	return s.queryRuns(`SELECT `+runColumns+` FROM ingest_runs WHERE state = ? ORDER BY started_unix_ms DESC, rowid DESC`, state)
}

// FindDoneBySHA1 returns the latest successful run for the same content,
// or nil
func (s *Store) FindDoneBySHA1(sha1 string, doneState string) (*Run, error) {
	if s == nil || sha1 == "" {
		return nil, nil
	}
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM ingest_runs
		WHERE sha1 = ? AND state = ? ORDER BY started_unix_ms DESC LIMIT 1`, sha1, doneState))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// CountRunsByState returns the number of runs per last state
func (s *Store) CountRunsByState() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM ingest_runs GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// TotalBytesUploaded sums the size of runs that reached doneState
func (s *Store) TotalBytesUploaded(doneState string) (int64, error) {
	var total int64
	err := s.db.QueryRow(`SELECT COALESCE(SUM(size_bytes), 0) FROM ingest_runs WHERE state = ?`, doneState).Scan(&total)
	return total, err
}

func (s *Store) queryRuns(query string, args ...interface{}) ([]*Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func unixMilliOrNull(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}
