package seed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradesim/pkg/types"
)

func TestFetchHTTP(t *testing.T) {
	t.Parallel()

	want := Snapshot{
		Instruments: []types.Instrument{{ID: "ACME", DisplayName: "Acme Corp", S0: 50, Mean: 0.05, Variance: 0.04}},
		Factors:     []types.MacroFactor{{ID: "MKT", Name: "market", CapUp: 0.05, CapDown: -0.05}},
		News:        []types.NewsEvent{{ID: 1, Headline: "Acme beats estimates", TSReleaseMS: 10000, DecayHalflifeS: 120, MagnitudeTop: 0.03, MagnitudeBottom: -0.01}},
		NewsFactors: []types.NewsFactorEdge{{NewsID: 1, FactorID: "MKT"}},
		Exposures:   []types.FactorExposure{{InstrumentID: "ACME", FactorID: "MKT", Beta: 1.2}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	snap, err := FetchHTTP(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchHTTP error: %v", err)
	}
	if len(snap.Instruments) != 1 || snap.Instruments[0].ID != "ACME" {
		t.Errorf("instruments = %+v, want ACME", snap.Instruments)
	}
	if len(snap.NewsFactors) != 1 || snap.NewsFactors[0] != want.NewsFactors[0] {
		t.Errorf("news factors = %+v, want %+v", snap.NewsFactors, want.NewsFactors)
	}
	if len(snap.Exposures) != 1 || snap.Exposures[0].Beta != 1.2 {
		t.Errorf("exposures = %+v, want one with beta 1.2", snap.Exposures)
	}
}

func TestFetchHTTPServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := FetchHTTP(context.Background(), srv.URL); err == nil {
		t.Error("FetchHTTP on a 500 = nil error, want error")
	}
}

func TestFetchHTTPRejectsInvalidSnapshot(t *testing.T) {
	t.Parallel()

	// Parses fine, fails validation: no instruments.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"instruments": []}`))
	}))
	defer srv.Close()

	if _, err := FetchHTTP(context.Background(), srv.URL); err == nil {
		t.Error("FetchHTTP with an empty world = nil error, want error")
	}
}
