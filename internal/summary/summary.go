// Package summary persists per-report training scalars to a SQLite file in
// the run's output directory.
package summary

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	step              INTEGER PRIMARY KEY,
	loss              REAL NOT NULL,
	minibatch_error   REAL NOT NULL,
	learning_rate     REAL NOT NULL,
	validation_error  REAL,
	examples_per_sec  REAL NOT NULL,
	sec_per_batch     REAL NOT NULL
)`

// Record is one progress report.
type Record struct {
	Step            int
	Loss            float64
	MinibatchError  float64
	LearningRate    float64
	ValidationError sql.NullFloat64
	ExamplesPerSec  float64
	SecPerBatch     float64
}

// Writer appends records to the summary database.
type Writer struct {
	db *sql.DB
}

// Open creates (or reuses) the summary database at path.
func Open(ctx context.Context, path string) (*Writer, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open summary: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create summary schema: %w", err)
	}
	return &Writer{db: db}, nil
}

// Write stores r, replacing any earlier record for the same step.
func (w *Writer) Write(ctx context.Context, r Record) error {
	_, err := w.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports
		(step, loss, minibatch_error, learning_rate, validation_error, examples_per_sec, sec_per_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Step, r.Loss, r.MinibatchError, r.LearningRate, r.ValidationError, r.ExamplesPerSec, r.SecPerBatch)
	if err != nil {
		return fmt.Errorf("write summary step %d: %w", r.Step, err)
	}
	return nil
}

// Records returns every stored record ordered by step.
func (w *Writer) Records(ctx context.Context) ([]Record, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT step, loss, minibatch_error, learning_rate, validation_error, examples_per_sec, sec_per_batch
		FROM reports ORDER BY step`)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Step, &r.Loss, &r.MinibatchError, &r.LearningRate,
			&r.ValidationError, &r.ExamplesPerSec, &r.SecPerBatch); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (w *Writer) Close() error {
	return w.db.Close()
}
