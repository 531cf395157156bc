// Package leaderboard ranks human participants by total P&L.
//
// Simulation identities (the order generator and the liquidity bots) hold
// ledger state like everyone else but are excluded from rankings.
package leaderboard

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"tradesim/internal/bots"
	"tradesim/internal/generator"
	"tradesim/internal/ledger"
)

// Entry is one ranked participant.
type Entry struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	Cash          float64 `json:"cash"`
	MarketValue   float64 `json:"market_value"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
}

// Board computes rankings from the ledger.
type Board struct {
	ledger *ledger.Ledger
}

// New creates a leaderboard over the given ledger.
func New(led *ledger.Ledger) *Board {
	return &Board{ledger: led}
}

// simulationIdentity reports whether a user id belongs to the simulation
// itself rather than a participant.
func simulationIdentity(userID string) bool {
	return userID == generator.UserID || strings.HasPrefix(userID, bots.UserPrefix)
}

// Compute ranks all participants by realized plus unrealized P&L, marking
// open lots against the supplied prices. Ties break by user id.
func (b *Board) Compute(marks map[string]float64) []Entry {
	var entries []Entry
	for _, userID := range b.ledger.Users() {
		if simulationIdentity(userID) {
			continue
		}

		realized, _ := b.ledger.RealizedPnL(userID).Float64()
		unrealized := b.ledger.UnrealizedPnL(userID, marks)
		cash, _ := b.ledger.Cash(userID).Float64()

		entries = append(entries, Entry{
			UserID:        userID,
			Cash:          cash,
			MarketValue:   b.ledger.MarketValue(userID, marks),
			RealizedPnL:   realized,
			UnrealizedPnL: unrealized,
			TotalPnL:      realized + unrealized,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].TotalPnL != entries[j].TotalPnL {
			return entries[i].TotalPnL > entries[j].TotalPnL
		}
		return entries[i].UserID < entries[j].UserID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Render writes the entries as a console table. Used at shutdown to print
// final standings.
func Render(out io.Writer, entries []Entry) error {
	table := tablewriter.NewWriter(out)
	table.Header("Rank", "User", "Cash", "Market Value", "Realized", "Unrealized", "Total P&L")
	for _, e := range entries {
		if err := table.Append(
			fmt.Sprintf("%d", e.Rank),
			e.UserID,
			fmt.Sprintf("%.2f", e.Cash),
			fmt.Sprintf("%.2f", e.MarketValue),
			fmt.Sprintf("%.2f", e.RealizedPnL),
			fmt.Sprintf("%.2f", e.UnrealizedPnL),
			fmt.Sprintf("%.2f", e.TotalPnL),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
