// Package seed loads the simulation's static world: instruments, macro
// factors, scheduled news events, and instrument factor exposures.
//
// A snapshot can come from the embedded default dataset, a YAML file, a
// SQLite database, or a remote HTTP endpoint serving JSON. Whatever the
// source, the snapshot is validated once at startup and never mutated
// afterwards (ad-hoc news goes straight to the news engine, not here).
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"tradesim/pkg/types"
)

//go:embed default.yaml
var defaultYAML []byte

// Snapshot is the full seed dataset.
type Snapshot struct {
	Instruments []types.Instrument     `json:"instruments" yaml:"instruments"`
	Factors     []types.MacroFactor    `json:"factors" yaml:"factors"`
	News        []types.NewsEvent      `json:"news" yaml:"news"`
	NewsFactors []types.NewsFactorEdge `json:"news_factors" yaml:"news_factors"`
	Exposures   []types.FactorExposure `json:"exposures" yaml:"exposures"`
}

// Validate checks referential integrity: every exposure and news edge must
// point at a known instrument, factor, and news event, and every instrument
// needs a positive initial price.
func (s *Snapshot) Validate() error {
	if len(s.Instruments) == 0 {
		return fmt.Errorf("seed: no instruments")
	}

	instruments := make(map[string]bool, len(s.Instruments))
	for _, inst := range s.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("seed: instrument with empty id")
		}
		if instruments[inst.ID] {
			return fmt.Errorf("seed: duplicate instrument %q", inst.ID)
		}
		if inst.S0 <= 0 {
			return fmt.Errorf("seed: instrument %q has non-positive initial price %v", inst.ID, inst.S0)
		}
		if inst.Variance < 0 {
			return fmt.Errorf("seed: instrument %q has negative variance %v", inst.ID, inst.Variance)
		}
		instruments[inst.ID] = true
	}

	factors := make(map[string]bool, len(s.Factors))
	for _, f := range s.Factors {
		if f.ID == "" {
			return fmt.Errorf("seed: factor with empty id")
		}
		factors[f.ID] = true
	}

	news := make(map[int]bool, len(s.News))
	for _, n := range s.News {
		if news[n.ID] {
			return fmt.Errorf("seed: duplicate news event %d", n.ID)
		}
		news[n.ID] = true
	}

	for _, e := range s.NewsFactors {
		if !news[e.NewsID] {
			return fmt.Errorf("seed: news edge references unknown event %d", e.NewsID)
		}
		if !factors[e.FactorID] {
			return fmt.Errorf("seed: news event %d references unknown factor %q", e.NewsID, e.FactorID)
		}
	}

	for _, e := range s.Exposures {
		if !instruments[e.InstrumentID] {
			return fmt.Errorf("seed: exposure references unknown instrument %q", e.InstrumentID)
		}
		if !factors[e.FactorID] {
			return fmt.Errorf("seed: exposure %s references unknown factor %q", e.InstrumentID, e.FactorID)
		}
	}

	return nil
}

// document is the YAML layout. News entries carry their factor list inline;
// parsing flattens them into NewsFactorEdge rows.
type document struct {
	Instruments []types.Instrument  `yaml:"instruments"`
	Factors     []types.MacroFactor `yaml:"factors"`
	News        []struct {
		types.NewsEvent `yaml:",inline"`
		Factors         []string `yaml:"factors"`
	} `yaml:"news"`
	Exposures []struct {
		Instrument string  `yaml:"instrument"`
		Factor     string  `yaml:"factor"`
		Beta       float64 `yaml:"beta"`
	} `yaml:"exposures"`
}

func parseYAML(data []byte) (*Snapshot, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("seed: parse yaml: %w", err)
	}

	snap := &Snapshot{
		Instruments: doc.Instruments,
		Factors:     doc.Factors,
	}
	for _, n := range doc.News {
		snap.News = append(snap.News, n.NewsEvent)
		for _, factorID := range n.Factors {
			snap.NewsFactors = append(snap.NewsFactors, types.NewsFactorEdge{
				NewsID:   n.NewsEvent.ID,
				FactorID: factorID,
			})
		}
	}
	for _, e := range doc.Exposures {
		snap.Exposures = append(snap.Exposures, types.FactorExposure{
			InstrumentID: e.Instrument,
			FactorID:     e.Factor,
			Beta:         e.Beta,
		})
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Default returns the embedded seed dataset.
func Default() (*Snapshot, error) {
	return parseYAML(defaultYAML)
}
