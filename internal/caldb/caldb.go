// Package caldb persists calibration runs, their raw photometer samples,
// and the fitted results in a sqlite database.
package caldb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/luminance.report/internal/gamma"
)

type DB struct {
	*sql.DB
}

// Open opens (or creates) the calibration database at path. The schema
// is managed by MigrateUp, which callers should run before first use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	return &DB{db}, nil
}

// Run is one calibration run's metadata.
type Run struct {
	ID        string    `json:"run_id"`
	Device    string    `json:"device"`
	Method    int       `json:"method"`
	Steps     int       `json:"steps"`
	Channels  int       `json:"channels"`
	CreatedAt time.Time `json:"created_at"`
}

// Fit is one channel's stored fit parameters. LowAsymptote is nil for
// one-parameter fits.
type Fit struct {
	Channel      int      `json:"channel"`
	Gamma        float64  `json:"gamma"`
	LowAsymptote *float64 `json:"low_asymptote,omitempty"`
}

// InsertRun records run metadata.
func (db *DB) InsertRun(run Run) error {
	_, err := db.Exec(
		`INSERT INTO calibration_runs (run_id, device, method, steps, channels) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Device, run.Method, run.Steps, run.Channels,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// SaveSamples stores the raw measurement matrix for a run. Missing
// luminance readings (NaN) are stored as NULL.
func (db *DB) SaveSamples(runID string, gun []float64, lum [][]float64) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO run_samples (run_id, step_idx, channel, gun_value, luminance) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range lum {
		for c, l := range row {
			var lumVal interface{}
			if !gamma.IsMissing(l) {
				lumVal = l
			}
			if _, err := stmt.Exec(runID, i, c, gun[i], lumVal); err != nil {
				return fmt.Errorf("failed to insert sample %d/%d: %w", i, c, err)
			}
		}
	}

	return tx.Commit()
}

// SaveResult stores the fitted parameters and inverse table for a run.
func (db *DB) SaveResult(runID string, res *gamma.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	channels := len(res.Gamma)
	for c := 0; c < channels; c++ {
		var asym interface{}
		if res.LowAsymptote != nil {
			asym = res.LowAsymptote[c]
		}
		if _, err := tx.Exec(
			`INSERT INTO run_fits (run_id, channel, gamma, low_asymptote) VALUES (?, ?, ?, ?)`,
			runID, c, res.Gamma[c], asym,
		); err != nil {
			return fmt.Errorf("failed to insert fit for channel %d: %w", c, err)
		}

		col := make([]float64, len(res.Table))
		for i := range res.Table {
			col[i] = res.Table[i][c]
		}
		entries, err := json.Marshal(col)
		if err != nil {
			return fmt.Errorf("failed to encode table for channel %d: %w", c, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO run_tables (run_id, channel, entries) VALUES (?, ?, ?)`,
			runID, c, string(entries),
		); err != nil {
			return fmt.Errorf("failed to insert table for channel %d: %w", c, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(
		`SELECT run_id, device, method, steps, channels, created_at
		 FROM calibration_runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Device, &r.Method, &r.Steps, &r.Channels, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run's metadata.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.QueryRow(
		`SELECT run_id, device, method, steps, channels, created_at
		 FROM calibration_runs WHERE run_id = ?`, id,
	).Scan(&r.ID, &r.Device, &r.Method, &r.Steps, &r.Channels, &r.CreatedAt)
	if err != nil {
		return Run{}, err
	}
	return r, nil
}

// GetSamples reconstructs the gun-value vector and luminance matrix for
// a run. NULL luminance comes back as the missing marker.
func (db *DB) GetSamples(runID string) (gun []float64, lum [][]float64, err error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, nil, err
	}

	gun = make([]float64, run.Steps)
	lum = make([][]float64, run.Steps)
	for i := range lum {
		lum[i] = make([]float64, run.Channels)
		for c := range lum[i] {
			lum[i][c] = math.NaN()
		}
	}

	rows, err := db.Query(
		`SELECT step_idx, channel, gun_value, luminance FROM run_samples WHERE run_id = ?`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var step, channel int
		var gunVal float64
		var lumVal sql.NullFloat64
		if err := rows.Scan(&step, &channel, &gunVal, &lumVal); err != nil {
			return nil, nil, err
		}
		if step < 0 || step >= run.Steps || channel < 0 || channel >= run.Channels {
			return nil, nil, fmt.Errorf("sample (%d,%d) outside run shape %dx%d", step, channel, run.Steps, run.Channels)
		}
		gun[step] = gunVal
		if lumVal.Valid {
			lum[step][channel] = lumVal.Float64
		}
	}
	return gun, lum, rows.Err()
}

// GetFits returns the stored per-channel fit parameters for a run.
func (db *DB) GetFits(runID string) ([]Fit, error) {
	rows, err := db.Query(
		`SELECT channel, gamma, low_asymptote FROM run_fits WHERE run_id = ? ORDER BY channel`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fits []Fit
	for rows.Next() {
		var f Fit
		var asym sql.NullFloat64
		if err := rows.Scan(&f.Channel, &f.Gamma, &asym); err != nil {
			return nil, err
		}
		if asym.Valid {
			f.LowAsymptote = &asym.Float64
		}
		fits = append(fits, f)
	}
	return fits, rows.Err()
}

// GetTable reconstructs the 256 by C inverse lookup table for a run.
func (db *DB) GetTable(runID string) ([][]float64, error) {
	rows, err := db.Query(
		`SELECT channel, entries FROM run_tables WHERE run_id = ? ORDER BY channel`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols [][]float64
	for rows.Next() {
		var channel int
		var entries string
		if err := rows.Scan(&channel, &entries); err != nil {
			return nil, err
		}
		var col []float64
		if err := json.Unmarshal([]byte(entries), &col); err != nil {
			return nil, fmt.Errorf("failed to decode table for channel %d: %w", channel, err)
		}
		if len(col) != gamma.TableSize {
			return nil, fmt.Errorf("table for channel %d has %d entries, want %d", channel, len(col), gamma.TableSize)
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, sql.ErrNoRows
	}

	table := make([][]float64, gamma.TableSize)
	for i := range table {
		table[i] = make([]float64, len(cols))
		for c := range cols {
			table[i][c] = cols[c][i]
		}
	}
	return table, nil
}
