package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/types/summary"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	athlete          TEXT NOT NULL,
	kind             TEXT NOT NULL,
	start_time       INTEGER NOT NULL,
	distance_meters  REAL NOT NULL,
	duration_seconds INTEGER NOT NULL,
	calories         REAL NOT NULL,
	loop_count       INTEGER NOT NULL,
	xp               INTEGER NOT NULL,
	body             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS activities_athlete_start ON activities (athlete, start_time DESC);
CREATE TABLE IF NOT EXISTS stats (
	athlete TEXT PRIMARY KEY,
	body    TEXT NOT NULL
);
`

// Sqlite stores activities as rows, with the full summary JSON in body
// and the headline numbers in columns for ad hoc queries.
type Sqlite struct {
	DB      *sql.DB
	levelXP int64
	logger  *slog.Logger
}

func OpenSqlite(path string, levelXP int64) (*Sqlite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &Sqlite{DB: db, levelXP: levelXP, logger: slog.With("d", "store", "driver", "sqlite")}, nil
}

// transaction executes fn within a database transaction.
func (s *Sqlite) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v, rollback: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Sqlite) Persist(ctx context.Context, sum *summary.Summary, delta summary.StatsDelta) error {
	body, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	var applied summary.StatsDelta
	var stats summary.Stats
	err = s.transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO activities
			(id, athlete, kind, start_time, distance_meters, duration_seconds, calories, loop_count, xp, body)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.ID.String(), sum.Athlete.String(), sum.Kind.String(), sum.StartTime.UnixMilli(),
			sum.DistanceMeters, sum.DurationSeconds, sum.Calories, sum.LoopCount, sum.XP, string(body))
		if err != nil {
			return err
		}
		current, err := s.readStats(ctx, tx, sum.Athlete)
		if err != nil {
			return err
		}
		stats, applied = applyDelta(current, sum.Athlete, delta, s.levelXP)
		out, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO stats (athlete, body) VALUES (?, ?)
			ON CONFLICT(athlete) DO UPDATE SET body = excluded.body`, sum.Athlete.String(), string(out))
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("Persisted activity", "athlete", sum.Athlete, "id", sum.ID,
		"xp", applied.XP, "level", stats.Level, "levels.gained", applied.Levels)
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Sqlite) readStats(ctx context.Context, q queryer, athlete conceptual.AthleteID) (summary.Stats, error) {
	out := emptyStats(athlete, s.levelXP)
	var body string
	err := q.QueryRowContext(ctx, `SELECT body FROM stats WHERE athlete = ?`, athlete.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return out, fmt.Errorf("decode stats: %w", err)
	}
	return out, nil
}

func (s *Sqlite) Stats(ctx context.Context, athlete conceptual.AthleteID) (summary.Stats, error) {
	return s.readStats(ctx, s.DB, athlete)
}

func (s *Sqlite) Activities(ctx context.Context, athlete conceptual.AthleteID, limit int) ([]*summary.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT body FROM activities
		WHERE athlete = ? ORDER BY start_time DESC LIMIT ?`, athlete.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*summary.Summary{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		sum := &summary.Summary{}
		if err := json.Unmarshal([]byte(body), sum); err != nil {
			return nil, fmt.Errorf("decode activity: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	newestFirst(out)
	return out, nil
}

func (s *Sqlite) Activity(ctx context.Context, athlete conceptual.AthleteID, id uuid.UUID) (*summary.Summary, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, `SELECT body FROM activities WHERE athlete = ? AND id = ?`,
		athlete.String(), id.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sum := &summary.Summary{}
	if err := json.Unmarshal([]byte(body), sum); err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *Sqlite) Close() error {
	return s.DB.Close()
}
