// Package replay drives a tracker through a recorded path on a clock
// taken from the fixes themselves, so a replayed activity measures the
// same as it did live.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/position"
	"github.com/fitzone/zoned/stream"
	"github.com/fitzone/zoned/tracker"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
)

var ErrNoFixes = errors.New("no valid fixes to replay")

type Config struct {
	Athlete  conceptual.AthleteID
	Kind     activity.Kind
	Tracking *params.TrackingConfig
	Position *params.PositionConfig

	// Persister, if set, receives the finished activity.
	Persister tracker.Persister
	Annotator tracker.Annotator

	// Meter, if set, is marked once per replayed fix.
	Meter  *stream.TickMeter
	Logger *slog.Logger
}

type Result struct {
	Summary *summary.Summary `json:"summary"`
	Fixes   int              `json:"fixes"`
	Invalid int              `json:"invalid"`
	Ticks   int64            `json:"ticks"`
}

// ReadFixes decodes every fix in r. Any format fix.DecodeShotgun
// accepts works, read incrementally. The meter, if not nil, is marked
// per JSON message.
func ReadFixes(r io.Reader, meter *stream.TickMeter) ([]fix.Fix, error) {
	out := []fix.Fix{}
	err := fix.ScanJSONMessages(r, func(msg json.RawMessage) error {
		n := len(out)
		if err := fix.DecodingJSONFixObject(msg, func(f fix.Fix) error {
			out = append(out, f)
			return nil
		}); err != nil {
			return err
		}
		if meter != nil && len(out) > n {
			meter.Mark(out[len(out)-1].Time(), len(msg))
		}
		return nil
	})
	if errors.Is(err, io.EOF) {
		err = nil
	}
	return out, err
}

// Prepare drops invalid fixes and orders the rest by time.
// A canceled ctx cuts the filter short and its error is returned.
func Prepare(ctx context.Context, fixes []fix.Fix) (valid []fix.Fix, invalid int, err error) {
	valid = stream.Collect(ctx, stream.Filter(ctx, func(f fix.Fix) bool {
		return f.Validate() == nil
	}, stream.Slice(ctx, fixes)))
	if err = ctx.Err(); err != nil {
		return nil, 0, err
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp < valid[j].Timestamp
	})
	return valid, len(fixes) - len(valid), nil
}

// Run replays fixes as one activity and stops it after the last fix.
// The tracker clock ticks once for every whole second boundary crossed
// between consecutive fixes.
// If persisting fails the result still carries the summary.
func Run(ctx context.Context, fixes []fix.Fix, c Config) (*Result, error) {
	if c.Logger == nil {
		c.Logger = slog.With("d", "replay", "athlete", c.Athlete)
	}
	valid, invalid, err := Prepare(ctx, fixes)
	if err != nil {
		return nil, err
	}
	res := &Result{Invalid: invalid}
	if len(valid) == 0 {
		return res, ErrNoFixes
	}

	var nowMs atomic.Int64
	nowMs.Store(valid[0].Timestamp)
	clock := func() time.Time { return time.UnixMilli(nowMs.Load()) }

	provider := position.NewReplayProvider(valid)
	source := position.NewSource(provider, c.Position, c.Logger)
	defer source.Close()

	tickers := tracker.NewManualTickers()
	opts := []tracker.Option{
		tracker.WithTicker(tickers.New),
		tracker.WithClock(clock),
		tracker.WithLogger(c.Logger),
	}
	if c.Persister != nil {
		opts = append(opts, tracker.WithPersister(c.Persister))
	}
	if c.Annotator != nil {
		opts = append(opts, tracker.WithAnnotator(c.Annotator))
	}
	tr := tracker.New(c.Athlete, source, c.Tracking, opts...)
	defer tr.Close()

	if _, err := tr.Start(ctx, c.Kind); err != nil {
		return res, fmt.Errorf("start replay: %w", err)
	}

	sec := valid[0].Timestamp / 1000
	for _, next := range valid {
		if err := ctx.Err(); err != nil {
			c.Logger.Warn("Replay interrupted", "replayed", res.Fixes, "remaining", provider.Remaining())
			break
		}
		for ; sec < next.Timestamp/1000; sec++ {
			nowMs.Store((sec + 1) * 1000)
			if !tickers.Tick(clock()) {
				return res, tracker.ErrClosed
			}
			res.Ticks++
		}
		nowMs.Store(next.Timestamp)
		if _, ok := provider.Step(); !ok {
			break
		}
		res.Fixes++
		if c.Meter != nil {
			c.Meter.Mark(next.Time(), 0)
		}
	}

	sum, err := tr.Stop(context.WithoutCancel(ctx))
	res.Summary = sum
	if err != nil {
		return res, err
	}
	c.Logger.Info("Replayed activity", "fixes", res.Fixes, "invalid", res.Invalid,
		"distance", sum.DistanceMeters, "duration", time.Duration(sum.DurationSeconds)*time.Second)
	return res, nil
}
