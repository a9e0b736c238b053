// Package store persists finished activities and lifetime stats.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/summary"
	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is where finished activities end up.
// It satisfies tracker.Persister.
type Store interface {
	// Persist saves s and folds delta into the athlete's stats, atomically.
	Persist(ctx context.Context, s *summary.Summary, delta summary.StatsDelta) error

	// Stats returns lifetime stats. An athlete with no activities has
	// zero totals at level 1.
	Stats(ctx context.Context, athlete conceptual.AthleteID) (summary.Stats, error)

	// Activities returns the most recent activities first, at most limit (0 for all).
	Activities(ctx context.Context, athlete conceptual.AthleteID, limit int) ([]*summary.Summary, error)

	Activity(ctx context.Context, athlete conceptual.AthleteID, id uuid.UUID) (*summary.Summary, error)

	Close() error
}

// Open opens the store the config names, creating its files as needed.
func Open(config *params.StoreConfig) (Store, error) {
	if config == nil {
		config = params.DefaultStoreConfig()
	}
	switch config.Driver {
	case params.StoreDriverBolt, "":
		return OpenBolt(config.BoltPath(), int64(config.LevelXP))
	case params.StoreDriverSqlite:
		return OpenSqlite(config.SqlitePath(), int64(config.LevelXP))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, config.Driver)
}

func emptyStats(athlete conceptual.AthleteID, levelXP int64) summary.Stats {
	return summary.Stats{Athlete: athlete, Level: summary.LevelForXP(0, levelXP)}
}

// applyDelta is shared by the drivers so both level the same way.
func applyDelta(current summary.Stats, athlete conceptual.AthleteID, delta summary.StatsDelta, levelXP int64) (summary.Stats, summary.StatsDelta) {
	current.Athlete = athlete
	return current.Apply(delta, levelXP, time.Now())
}

func newestFirst(list []*summary.Summary) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartTime.After(list[j].StartTime)
	})
}
