package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned by every method before Init or after Close.
var ErrNotInitialized = errors.New("export: store is not initialized")

// Run describes one engine build.
type Run struct {
	ID      string
	Created time.Time
	Method  string
	// Config is the resolved run description as written by config.Marshal.
	Config string
}

// SpectrumRow is one sample of a stored spectrum.
type SpectrumRow struct {
	Output string
	Type   string
	Z      float64
	K      float64 // [1/Mpc]
	P      float64 // [Mpc^3]
}

// SigmaRow is one stored smoothed-field statistic.
type SigmaRow struct {
	Output string
	Type   string
	Z      float64
	R      float64 // [Mpc]
	Value  float64
}

// KNLRow is one stored nonlinear scale.
type KNLRow struct {
	Z     float64
	KNL   float64
	KNLCB float64
}

// Store writes engine results to a SQLite database.
type Store struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

// NewStore returns a store for the database file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Init opens the database and creates missing tables.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("export: sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created INTEGER NOT NULL,
			method TEXT NOT NULL,
			config TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS pk (
			run_id TEXT NOT NULL REFERENCES runs(id),
			output TEXT NOT NULL,
			type TEXT NOT NULL,
			z REAL NOT NULL,
			k REAL NOT NULL,
			p REAL NOT NULL,
			PRIMARY KEY (run_id, output, type, z, k)
		);
		CREATE TABLE IF NOT EXISTS sigma (
			run_id TEXT NOT NULL REFERENCES runs(id),
			output TEXT NOT NULL,
			type TEXT NOT NULL,
			z REAL NOT NULL,
			r REAL NOT NULL,
			value REAL NOT NULL,
			PRIMARY KEY (run_id, output, type, z, r)
		);
		CREATE TABLE IF NOT EXISTS knl (
			run_id TEXT NOT NULL REFERENCES runs(id),
			z REAL NOT NULL,
			knl REAL NOT NULL,
			knl_cb REAL NOT NULL,
			PRIMARY KEY (run_id, z)
		);
	`)
	return err
}

// CreateRun stores a new run and returns it with a fresh identifier.
func (s *Store) CreateRun(ctx context.Context, method, config string) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:      uuid.NewString(),
		Created: time.Now().UTC().Truncate(time.Second),
		Method:  method,
		Config:  config,
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO runs (id, created, method, config) VALUES (?, ?, ?, ?)`,
		run.ID, run.Created.Unix(), run.Method, run.Config)
	if err != nil {
		return Run{}, fmt.Errorf("export: create run: %w", err)
	}
	return run, nil
}

// GetRun loads a run by identifier.
func (s *Store) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	run := Run{ID: id}
	var created int64
	err = db.QueryRowContext(ctx, `SELECT created, method, config FROM runs WHERE id = ?`, id).
		Scan(&created, &run.Method, &run.Config)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.Created = time.Unix(created, 0).UTC()
	return run, true, nil
}

// Runs lists every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT id, created, method, config FROM runs ORDER BY created DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var created int64
		if err := rows.Scan(&r.ID, &created, &r.Method, &r.Config); err != nil {
			return nil, err
		}
		r.Created = time.Unix(created, 0).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// withTx runs fn in a transaction committed on success.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// SaveSpectrum stores rows for run.
func (s *Store) SaveSpectrum(ctx context.Context, runID string, rows []SpectrumRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pk (run_id, output, type, z, k, p) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, output, type, z, k) DO UPDATE SET p = excluded.p
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, runID, r.Output, r.Type, r.Z, r.K, r.P); err != nil {
				return fmt.Errorf("export: save pk at z=%g k=%g: %w", r.Z, r.K, err)
			}
		}
		return nil
	})
}

// SaveSigma stores rows for run.
func (s *Store) SaveSigma(ctx context.Context, runID string, rows []SigmaRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sigma (run_id, output, type, z, r, value) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, output, type, z, r) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, runID, r.Output, r.Type, r.Z, r.R, r.Value); err != nil {
				return fmt.Errorf("export: save %s at z=%g R=%g: %w", r.Output, r.Z, r.R, err)
			}
		}
		return nil
	})
}

// SaveKNL stores rows for run.
func (s *Store) SaveKNL(ctx context.Context, runID string, rows []KNLRow) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO knl (run_id, z, knl, knl_cb) VALUES (?, ?, ?, ?)
				ON CONFLICT(run_id, z) DO UPDATE SET knl = excluded.knl, knl_cb = excluded.knl_cb
			`, runID, r.Z, r.KNL, r.KNLCB)
			if err != nil {
				return fmt.Errorf("export: save k_nl at z=%g: %w", r.Z, err)
			}
		}
		return nil
	})
}

// Spectrum loads the stored samples of one output and type at z, ordered by k.
func (s *Store) Spectrum(ctx context.Context, runID, output, typ string, z float64) ([]SpectrumRow, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT k, p FROM pk WHERE run_id = ? AND output = ? AND type = ? AND z = ? ORDER BY k
	`, runID, output, typ, z)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SpectrumRow
	for rows.Next() {
		r := SpectrumRow{Output: output, Type: typ, Z: z}
		if err := rows.Scan(&r.K, &r.P); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sigma loads the stored statistics of run ordered by z, then R.
func (s *Store) Sigma(ctx context.Context, runID string) ([]SigmaRow, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT output, type, z, r, value FROM sigma WHERE run_id = ? ORDER BY output, type, z, r
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SigmaRow
	for rows.Next() {
		var r SigmaRow
		if err := rows.Scan(&r.Output, &r.Type, &r.Z, &r.R, &r.Value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// KNL loads the stored nonlinear scales of run ordered by z.
func (s *Store) KNL(ctx context.Context, runID string) ([]KNLRow, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT z, knl, knl_cb FROM knl WHERE run_id = ? ORDER BY z`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KNLRow
	for rows.Next() {
		var r KNLRow
		if err := rows.Scan(&r.Z, &r.KNL, &r.KNLCB); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
