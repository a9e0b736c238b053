package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/summary"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// Bolt keeps one nested bucket per athlete under the activities bucket.
// Activity keys are the start time (unix ms, big endian) followed by the
// activity ID, so a cursor walks them in time order.
type Bolt struct {
	DB      *bbolt.DB
	levelXP int64
	logger  *slog.Logger
}

func OpenBolt(path string, levelXP int64) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{params.StoreBucketActivities, params.StoreBucketStats} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{DB: db, levelXP: levelXP, logger: slog.With("d", "store", "driver", "bolt")}, nil
}

func activityKey(s *summary.Summary) []byte {
	key := make([]byte, 8, 8+16)
	binary.BigEndian.PutUint64(key, uint64(s.StartTime.UnixMilli()))
	return append(key, s.ID[:]...)
}

func (b *Bolt) Persist(ctx context.Context, s *summary.Summary, delta summary.StatsDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var applied summary.StatsDelta
	var stats summary.Stats
	err = b.DB.Update(func(tx *bbolt.Tx) error {
		acts, err := tx.Bucket(params.StoreBucketActivities).CreateBucketIfNotExists([]byte(s.Athlete))
		if err != nil {
			return err
		}
		if err := acts.Put(activityKey(s), data); err != nil {
			return err
		}

		sb := tx.Bucket(params.StoreBucketStats)
		current := emptyStats(s.Athlete, b.levelXP)
		if got := sb.Get([]byte(s.Athlete)); got != nil {
			if err := json.Unmarshal(got, &current); err != nil {
				return fmt.Errorf("decode stats: %w", err)
			}
		}
		stats, applied = applyDelta(current, s.Athlete, delta, b.levelXP)
		out, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		return sb.Put([]byte(s.Athlete), out)
	})
	if err != nil {
		return err
	}
	b.logger.Info("Persisted activity", "athlete", s.Athlete, "id", s.ID,
		"xp", applied.XP, "level", stats.Level, "levels.gained", applied.Levels)
	return nil
}

func (b *Bolt) Stats(ctx context.Context, athlete conceptual.AthleteID) (summary.Stats, error) {
	out := emptyStats(athlete, b.levelXP)
	err := b.DB.View(func(tx *bbolt.Tx) error {
		// Gotcha! The value returned by Get is only valid in the scope of the transaction.
		got := tx.Bucket(params.StoreBucketStats).Get([]byte(athlete))
		if got == nil {
			return nil
		}
		return json.Unmarshal(got, &out)
	})
	return out, err
}

func (b *Bolt) Activities(ctx context.Context, athlete conceptual.AthleteID, limit int) ([]*summary.Summary, error) {
	out := []*summary.Summary{}
	err := b.DB.View(func(tx *bbolt.Tx) error {
		acts := tx.Bucket(params.StoreBucketActivities).Bucket([]byte(athlete))
		if acts == nil {
			return nil
		}
		c := acts.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			s := &summary.Summary{}
			if err := json.Unmarshal(v, s); err != nil {
				return fmt.Errorf("decode activity %x: %w", k, err)
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Activity(ctx context.Context, athlete conceptual.AthleteID, id uuid.UUID) (*summary.Summary, error) {
	var out *summary.Summary
	err := b.DB.View(func(tx *bbolt.Tx) error {
		acts := tx.Bucket(params.StoreBucketActivities).Bucket([]byte(athlete))
		if acts == nil {
			return nil
		}
		return acts.ForEach(func(k, v []byte) error {
			if out != nil || !bytes.HasSuffix(k, id[:]) {
				return nil
			}
			out = &summary.Summary{}
			return json.Unmarshal(v, out)
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("activity %s: %w", id, ErrNotFound)
	}
	return out, nil
}

func (b *Bolt) Close() error {
	return b.DB.Close()
}
