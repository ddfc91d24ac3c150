package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNoRuns is returned by LatestRun on an empty database.
var ErrNoRuns = errors.New("no runs recorded")

// Store persists extracted edges to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates or opens an edge database at dbPath, creating its directory if needed.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// SaveRun stores run and its edges in one transaction and returns the new run ID.
func (s *Store) SaveRun(run *Run, edges []Edge) (RunID, error) {
	batch, err := s.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("beginning batch: %w", err)
	}

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.EdgeCount = len(edges)

	id, err := batch.InsertRun(run)
	if err != nil {
		batch.Rollback()
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	for i := range edges {
		edges[i].RunID = id
		if err := batch.InsertEdge(&edges[i]); err != nil {
			batch.Rollback()
			return 0, fmt.Errorf("inserting edge %d: %w", i, err)
		}
	}

	if err := batch.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	run.ID = id
	return id, nil
}

// LatestRun returns the most recently stored run.
func (s *Store) LatestRun() (*Run, error) {
	run := &Run{}
	var created string
	err := s.db.QueryRow(`
		SELECT id, entry, base_dir, engine, created_at, edge_count
		FROM runs ORDER BY id DESC LIMIT 1
	`).Scan(&run.ID, &run.Entry, &run.BaseDir, &run.Engine, &created, &run.EdgeCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	run.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of run %d: %w", run.ID, err)
	}
	return run, nil
}

// Edges returns the edges of a run in insertion order.
func (s *Store) Edges(runID RunID) ([]Edge, error) {
	rows, err := s.db.Query(`
		SELECT caller_file, caller_start, caller_end, callee_file, callee_start, callee_end
		FROM edges WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		e := Edge{RunID: runID}
		if err := rows.Scan(&e.Caller.File, &e.Caller.Start, &e.Caller.End,
			&e.Callee.File, &e.Callee.Start, &e.Callee.End); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Stats holds statistics about the stored data.
type Stats struct {
	RunCount  int `json:"run_count"`
	EdgeCount int `json:"edge_count"`
}

// GetStats returns statistics about the stored data.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		table string
		dest  *int
	}{
		{"runs", &stats.RunCount},
		{"edges", &stats.EdgeCount},
	}

	for _, r := range rows {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + r.table).Scan(r.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.table, err)
		}
	}
	return stats, nil
}

// BeginBatch starts a transaction for batch inserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// InsertRun inserts a run within the batch and returns its ID.
func (b *BatchTx) InsertRun(run *Run) (RunID, error) {
	result, err := b.tx.Exec(`
		INSERT INTO runs (entry, base_dir, engine, created_at, edge_count)
		VALUES (?, ?, ?, ?, ?)
	`, run.Entry, run.BaseDir, run.Engine, run.CreatedAt.Format(time.RFC3339Nano), run.EdgeCount)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	return RunID(id), err
}

// InsertEdge inserts an edge within the batch.
func (b *BatchTx) InsertEdge(e *Edge) error {
	_, err := b.tx.Exec(`
		INSERT INTO edges (run_id, caller_file, caller_start, caller_end, callee_file, callee_start, callee_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.Caller.File, e.Caller.Start, e.Caller.End, e.Callee.File, e.Callee.Start, e.Callee.End)
	return err
}
