// Package trace records per-turn summaries into an embedded DuckDB
// database for offline analysis. The recorder is optional: a nil
// *Recorder is safe to use and records nothing.
package trace

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	rerrors "github.com/rikugan-dev/rikugan/pkg/errors"
)

// Turn is one recorded inference turn.
type Turn struct {
	ID            string
	ModelID       string
	Prompt        string
	NumLayers     int
	SeqLen        int
	DModel        int
	MeanBlockHeat float64
	Duration      time.Duration
	BytesStreamed int64
	StartedAt     time.Time
}

// Recorder writes turn summaries to DuckDB.
type Recorder struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS turns (
    id              VARCHAR PRIMARY KEY,
    model_id        VARCHAR NOT NULL,
    prompt          VARCHAR NOT NULL,
    num_layers      INTEGER NOT NULL,
    seq_len         INTEGER NOT NULL,
    d_model         INTEGER NOT NULL,
    mean_block_heat DOUBLE NOT NULL,
    duration_ms     DOUBLE NOT NULL,
    bytes_streamed  BIGINT NOT NULL,
    started_at      TIMESTAMP NOT NULL
)`

// Open opens (or creates) the trace database at path. An empty path
// opens an in-memory database that lives for the process lifetime.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, rerrors.WrapIO(err, rerrors.ErrTraceOpenFailed, "failed to open trace database")
	}

	// DuckDB is single-writer; keep one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, rerrors.WrapIO(err, rerrors.ErrTraceOpenFailed, "failed to create turns table")
	}

	return &Recorder{db: db}, nil
}

// Record inserts one turn summary. Safe on a nil recorder.
func (r *Recorder) Record(t Turn) error {
	if r == nil {
		return nil
	}

	_, err := r.db.Exec(
		`INSERT INTO turns
		 (id, model_id, prompt, num_layers, seq_len, d_model, mean_block_heat, duration_ms, bytes_streamed, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ModelID, t.Prompt, t.NumLayers, t.SeqLen, t.DModel,
		t.MeanBlockHeat, float64(t.Duration)/float64(time.Millisecond),
		t.BytesStreamed, t.StartedAt,
	)
	if err != nil {
		return rerrors.WrapIO(err, rerrors.ErrTraceWriteFailed, "failed to record turn")
	}
	return nil
}

// List returns recorded turns, newest first, up to limit. A limit of
// zero or less returns everything.
func (r *Recorder) List(limit int) ([]Turn, error) {
	if r == nil {
		return nil, nil
	}

	query := `SELECT id, model_id, prompt, num_layers, seq_len, d_model, mean_block_heat, duration_ms, bytes_streamed, started_at
	          FROM turns ORDER BY started_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = r.db.Query(query)
	}
	if err != nil {
		return nil, rerrors.WrapIO(err, rerrors.ErrIOReadFailed, "failed to query turns")
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var durationMS float64
		if err := rows.Scan(&t.ID, &t.ModelID, &t.Prompt, &t.NumLayers, &t.SeqLen,
			&t.DModel, &t.MeanBlockHeat, &durationMS, &t.BytesStreamed, &t.StartedAt); err != nil {
			return nil, rerrors.WrapIO(err, rerrors.ErrIOReadFailed, "failed to scan turn row")
		}
		t.Duration = time.Duration(durationMS * float64(time.Millisecond))
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// Count returns the number of recorded turns.
func (r *Recorder) Count() (int, error) {
	if r == nil {
		return 0, nil
	}
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM turns`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return n, nil
}

// Close closes the underlying database. Safe on a nil recorder.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}
