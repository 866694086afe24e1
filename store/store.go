// Package store persists per-sample assimilation artifacts and the aggregate
// results array in a single SQLite file: numbered field blobs (initial
// condition, observations, mask, per-method estimates) plus a results table
// holding (sample, method, metric, value) rows.
package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// Method indices within the aggregate results array. Index 0 is the
// ground-truth reference row (zero error against itself).
const (
	MethodTruth = iota
	MethodPlain
	MethodSmooth
	MethodDeepPrior
	NumMethods
)

// Estimate artifact kinds, one per fitted method.
const (
	KindPlainEstimate  = "est_plain"
	KindSmoothEstimate = "est_smooth"
	KindDeepEstimate   = "est_deepprior"
)

// ErrNotFound reports a missing persisted artifact. Fatal to the sample
// being evaluated, not to the run.
var ErrNotFound = errors.New("store: artifact not found")

type Store struct {
	path string
	db   *sql.DB
}

// Open opens or creates the artifact database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{path: path, db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS fields (
			sample  INTEGER NOT NULL,
			kind    TEXT    NOT NULL,
			payload BLOB    NOT NULL,
			PRIMARY KEY (sample, kind)
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			sample INTEGER NOT NULL,
			method INTEGER NOT NULL,
			metric INTEGER NOT NULL,
			value  REAL    NOT NULL,
			PRIMARY KEY (sample, method, metric)
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("store: create tables: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveField upserts one numbered artifact.
func (s *Store) SaveField(sample int, kind string, data []float64) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("store: encode %s[%d]: %w", kind, sample, err)
	}
	_, err := s.db.Exec(`
		INSERT INTO fields (sample, kind, payload) VALUES (?, ?, ?)
		ON CONFLICT(sample, kind) DO UPDATE SET payload = excluded.payload
	`, sample, kind, buf.Bytes())
	if err != nil {
		return fmt.Errorf("store: save %s[%d]: %w", kind, sample, err)
	}
	return nil
}

// LoadField loads one numbered artifact; a missing row yields ErrNotFound.
func (s *Store) LoadField(sample int, kind string) ([]float64, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM fields WHERE sample = ? AND kind = ?`, sample, kind,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: %s[%d]: %w", kind, sample, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: load %s[%d]: %w", kind, sample, err)
	}
	var data []float64
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&data); err != nil {
		return nil, fmt.Errorf("store: decode %s[%d]: %w", kind, sample, err)
	}
	return data, nil
}

// SaveScores upserts one method's metric row for a sample.
func (s *Store) SaveScores(sample, method int, scores []float64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save scores[%d,%d]: %w", sample, method, err)
	}
	for metric, value := range scores {
		if _, err := tx.Exec(`
			INSERT INTO results (sample, method, metric, value) VALUES (?, ?, ?, ?)
			ON CONFLICT(sample, method, metric) DO UPDATE SET value = excluded.value
		`, sample, method, metric, value); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: save scores[%d,%d]: %w", sample, method, err)
		}
	}
	return tx.Commit()
}

// LoadResults assembles the aggregate (nSamples, NumMethods, nMetrics)
// results array. Missing rows stay zero.
func (s *Store) LoadResults(nSamples, nMetrics int) ([][][]float64, error) {
	out := make([][][]float64, nSamples)
	for i := range out {
		out[i] = make([][]float64, NumMethods)
		for m := range out[i] {
			out[i][m] = make([]float64, nMetrics)
		}
	}
	rows, err := s.db.Query(`SELECT sample, method, metric, value FROM results`)
	if err != nil {
		return nil, fmt.Errorf("store: load results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sample, method, metric int
			value                  float64
		)
		if err := rows.Scan(&sample, &method, &metric, &value); err != nil {
			return nil, fmt.Errorf("store: load results: %w", err)
		}
		if sample < 0 || sample >= nSamples || method < 0 || method >= NumMethods ||
			metric < 0 || metric >= nMetrics {
			continue
		}
		out[sample][method][metric] = value
	}
	return out, rows.Err()
}
