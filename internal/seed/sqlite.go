package seed

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"tradesim/pkg/types"
)

// LoadSQLite reads a snapshot from a SQLite database. The schema matches
// the conventional table layout: instruments, macro_factors, news_events,
// news_event_factors, instrument_factor_exposure.
func LoadSQLite(path string) (*Snapshot, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("seed: open %s: %w", path, err)
	}
	defer db.Close()

	snap := &Snapshot{}

	rows, err := db.Query(`SELECT id, full_name, s_0, mean, variance FROM instruments`)
	if err != nil {
		return nil, fmt.Errorf("seed: query instruments: %w", err)
	}
	for rows.Next() {
		var inst types.Instrument
		if err := rows.Scan(&inst.ID, &inst.DisplayName, &inst.S0, &inst.Mean, &inst.Variance); err != nil {
			rows.Close()
			return nil, fmt.Errorf("seed: scan instrument: %w", err)
		}
		snap.Instruments = append(snap.Instruments, inst)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed: instruments: %w", err)
	}

	rows, err = db.Query(`SELECT id, name, cap_up, cap_down FROM macro_factors`)
	if err != nil {
		return nil, fmt.Errorf("seed: query macro_factors: %w", err)
	}
	for rows.Next() {
		var f types.MacroFactor
		if err := rows.Scan(&f.ID, &f.Name, &f.CapUp, &f.CapDown); err != nil {
			rows.Close()
			return nil, fmt.Errorf("seed: scan macro_factor: %w", err)
		}
		snap.Factors = append(snap.Factors, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed: macro_factors: %w", err)
	}

	rows, err = db.Query(`
		SELECT id, headline, description, ts_release_ms, decay_halflife_s,
		       magnitude_top, magnitude_bottom
		FROM news_events`)
	if err != nil {
		return nil, fmt.Errorf("seed: query news_events: %w", err)
	}
	for rows.Next() {
		var n types.NewsEvent
		if err := rows.Scan(&n.ID, &n.Headline, &n.Description, &n.TSReleaseMS,
			&n.DecayHalflifeS, &n.MagnitudeTop, &n.MagnitudeBottom); err != nil {
			rows.Close()
			return nil, fmt.Errorf("seed: scan news_event: %w", err)
		}
		snap.News = append(snap.News, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed: news_events: %w", err)
	}

	rows, err = db.Query(`SELECT news_event_id, factor_id FROM news_event_factors`)
	if err != nil {
		return nil, fmt.Errorf("seed: query news_event_factors: %w", err)
	}
	for rows.Next() {
		var e types.NewsFactorEdge
		if err := rows.Scan(&e.NewsID, &e.FactorID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("seed: scan news_event_factor: %w", err)
		}
		snap.NewsFactors = append(snap.NewsFactors, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed: news_event_factors: %w", err)
	}

	rows, err = db.Query(`SELECT instrument_id, factor_id, beta FROM instrument_factor_exposure`)
	if err != nil {
		return nil, fmt.Errorf("seed: query instrument_factor_exposure: %w", err)
	}
	for rows.Next() {
		var e types.FactorExposure
		if err := rows.Scan(&e.InstrumentID, &e.FactorID, &e.Beta); err != nil {
			rows.Close()
			return nil, fmt.Errorf("seed: scan exposure: %w", err)
		}
		snap.Exposures = append(snap.Exposures, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("seed: exposures: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
