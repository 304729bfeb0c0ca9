// Package personastore is the durable key/value of persona records.
package personastore

import (
	"context"

	"github.com/punkouter25/podebaterap/internal/domain"
)

// Store is the persistence contract for per-persona win/loss counters.
type Store interface {
	// List returns every persona currently recorded.
	List(ctx context.Context) ([]domain.Persona, error)

	// Get returns the named persona, or a domain.KindNotFound error.
	Get(ctx context.Context, name string) (domain.Persona, error)

	// Upsert inserts or replaces a persona record wholesale.
	Upsert(ctx context.Context, p domain.Persona) error

	// SeedIfEmpty inserts zero-valued personas for names, but only if
	// the store currently holds none.
	SeedIfEmpty(ctx context.Context, names []string) error

	// RecordOutcome increments winner.Wins/loser.Losses and both
	// TotalDebates atomically with respect to concurrent outcomes
	// touching either name. Fails with domain.KindNotFound if either
	// persona is missing.
	RecordOutcome(ctx context.Context, winner, loser string) error

	// Leaderboard returns rows sorted by win% desc, wins desc, losses
	// asc, capped at limit.
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)

	Close() error
}
