// Package checkpoint provides SQLite-based snapshotting of a run's
// household and model state, so a simulation can be resumed from a step
// boundary instead of always starting from the seed population.
package checkpoint

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/heatsim/internal/heating"
	"github.com/talgya/heatsim/internal/household"
)

// DB wraps a SQLite connection used for run checkpoints.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a checkpoint database at path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("checkpoint: migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		step INTEGER NOT NULL,
		current_datetime TEXT NOT NULL,
		boiler_upgrade_scheme_cumulative_spend_gbp REAL NOT NULL,
		rng_seed INTEGER NOT NULL,
		rng_draw_count INTEGER NOT NULL,
		warned_empty_candidate_set INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS households (
		run_id TEXT NOT NULL,
		household_id INTEGER NOT NULL,
		heating_system INTEGER NOT NULL,
		heating_system_previous INTEGER,
		heating_install_date TEXT NOT NULL,
		heating_functioning INTEGER NOT NULL,
		epc_rating INTEGER NOT NULL,
		walls_efficiency INTEGER NOT NULL,
		roof_efficiency INTEGER NOT NULL,
		glazing_efficiency INTEGER NOT NULL,
		is_heat_pump_aware INTEGER NOT NULL,
		PRIMARY KEY (run_id, household_id)
	);

	CREATE INDEX IF NOT EXISTS idx_households_run ON households(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunState is the restored clock/counter portion of a checkpoint, plus
// enough of the model's RNG position to resume drawing from the exact
// point the run was saved at.
type RunState struct {
	Step                                  int
	CurrentDatetime                       time.Time
	BoilerUpgradeSchemeCumulativeSpendGBP float64
	RNGSeed                               int64
	RNGDrawCount                          int64
	WarnedEmptyCandidateSet               bool
}

// SaveStep persists state (the current step number, clock, cumulative
// spend, RNG position, and warning-dedup flag) and every household's
// mutable state under runID, replacing any prior checkpoint for that run.
func (db *DB) SaveStep(runID string, state RunState, households []*household.Household) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return fmt.Errorf("checkpoint: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, step, current_datetime, boiler_upgrade_scheme_cumulative_spend_gbp,
			rng_seed, rng_draw_count, warned_empty_candidate_set)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			step=excluded.step,
			current_datetime=excluded.current_datetime,
			boiler_upgrade_scheme_cumulative_spend_gbp=excluded.boiler_upgrade_scheme_cumulative_spend_gbp,
			rng_seed=excluded.rng_seed,
			rng_draw_count=excluded.rng_draw_count,
			warned_empty_candidate_set=excluded.warned_empty_candidate_set
	`, runID, state.Step, state.CurrentDatetime.Format(time.RFC3339), state.BoilerUpgradeSchemeCumulativeSpendGBP,
		state.RNGSeed, state.RNGDrawCount, boolToInt(state.WarnedEmptyCandidateSet))
	if err != nil {
		return fmt.Errorf("checkpoint: save run row: %w", err)
	}

	for _, h := range households {
		var prev any
		if h.HeatingSystemPrevious != nil {
			prev = int(*h.HeatingSystemPrevious)
		}
		_, err = tx.Exec(`
			INSERT INTO households (run_id, household_id, heating_system, heating_system_previous,
				heating_install_date, heating_functioning, epc_rating, walls_efficiency,
				roof_efficiency, glazing_efficiency, is_heat_pump_aware)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, household_id) DO UPDATE SET
				heating_system=excluded.heating_system,
				heating_system_previous=excluded.heating_system_previous,
				heating_install_date=excluded.heating_install_date,
				heating_functioning=excluded.heating_functioning,
				epc_rating=excluded.epc_rating,
				walls_efficiency=excluded.walls_efficiency,
				roof_efficiency=excluded.roof_efficiency,
				glazing_efficiency=excluded.glazing_efficiency,
				is_heat_pump_aware=excluded.is_heat_pump_aware
		`, runID, h.ID, int(h.HeatingSystem), prev, h.HeatingSystemInstallDate.Format(time.RFC3339),
			boolToInt(h.HeatingFunctioning), int(h.EPCRating), h.WallsEfficiency, h.RoofEfficiency,
			h.GlazingEfficiency, boolToInt(h.IsHeatPumpAware))
		if err != nil {
			return fmt.Errorf("checkpoint: save household %d: %w", h.ID, err)
		}
	}

	return tx.Commit()
}

// LoadRun restores the run-level checkpoint row for runID.
func (db *DB) LoadRun(runID string) (RunState, error) {
	var row struct {
		Step                                  int     `db:"step"`
		CurrentDatetime                       string  `db:"current_datetime"`
		BoilerUpgradeSchemeCumulativeSpendGBP float64 `db:"boiler_upgrade_scheme_cumulative_spend_gbp"`
		RNGSeed                               int64   `db:"rng_seed"`
		RNGDrawCount                          int64   `db:"rng_draw_count"`
		WarnedEmptyCandidateSet               int64   `db:"warned_empty_candidate_set"`
	}
	err := db.conn.Get(&row, `SELECT step, current_datetime, boiler_upgrade_scheme_cumulative_spend_gbp,
		rng_seed, rng_draw_count, warned_empty_candidate_set FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("checkpoint: load run %s: %w", runID, err)
	}
	ts, err := time.Parse(time.RFC3339, row.CurrentDatetime)
	if err != nil {
		return RunState{}, fmt.Errorf("checkpoint: parse current_datetime: %w", err)
	}
	return RunState{
		Step:                                   row.Step,
		CurrentDatetime:                        ts,
		BoilerUpgradeSchemeCumulativeSpendGBP:  row.BoilerUpgradeSchemeCumulativeSpendGBP,
		RNGSeed:                                row.RNGSeed,
		RNGDrawCount:                           row.RNGDrawCount,
		WarnedEmptyCandidateSet:                row.WarnedEmptyCandidateSet != 0,
	}, nil
}

// ApplyTo restores every persisted household field onto the matching
// household in households (matched by ID), for every household this
// checkpoint has a row for.
func (db *DB) ApplyTo(runID string, households []*household.Household) error {
	byID := make(map[int64]*household.Household, len(households))
	for _, h := range households {
		byID[h.ID] = h
	}

	rows, err := db.conn.Queryx(`SELECT household_id, heating_system, heating_system_previous,
		heating_install_date, heating_functioning, epc_rating, walls_efficiency,
		roof_efficiency, glazing_efficiency, is_heat_pump_aware FROM households WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("checkpoint: query households: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, system, walls, roof, glazing, epc int64
			prev                                   sql.NullInt64
			installDate                            string
			functioning, aware                     int64
		)
		if err := rows.Scan(&id, &system, &prev, &installDate, &functioning, &epc, &walls, &roof, &glazing, &aware); err != nil {
			return fmt.Errorf("checkpoint: scan household row: %w", err)
		}
		h, ok := byID[id]
		if !ok {
			continue
		}
		ts, err := time.Parse(time.RFC3339, installDate)
		if err != nil {
			return fmt.Errorf("checkpoint: parse install date for household %d: %w", id, err)
		}
		h.HeatingSystem = heating.HeatingSystem(system)
		if prev.Valid {
			p := heating.HeatingSystem(prev.Int64)
			h.HeatingSystemPrevious = &p
		}
		h.HeatingSystemInstallDate = ts
		h.HeatingFunctioning = functioning != 0
		h.EPCRating = heating.EPCRating(epc)
		h.WallsEfficiency = int(walls)
		h.RoofEfficiency = int(roof)
		h.GlazingEfficiency = int(glazing)
		h.IsHeatPumpAware = aware != 0
	}
	return rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
