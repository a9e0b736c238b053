package replay

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
)

type recordingPersister struct {
	mu  sync.Mutex
	got []*summary.Summary
	err error
}

func (p *recordingPersister) Persist(_ context.Context, s *summary.Summary, _ summary.StatsDelta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, s)
	return p.err
}

func testConfig() Config {
	return Config{
		Athlete:  "rye",
		Kind:     activity.KindRun,
		Tracking: params.DefaultTrackingConfig(),
		Position: params.DefaultPositionConfig(),
	}
}

func TestRun(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()

	// 11 fixes, 22 m apart, 3 s apart: 220 m in 30 s.
	fixes := testdata.Line(testdata.NYC, 22, 11, 3*time.Second)
	p := &recordingPersister{}
	c := testConfig()
	c.Persister = p

	res, err := Run(context.Background(), fixes, c)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fixes != 11 || res.Invalid != 0 {
		t.Errorf("fixes=%d invalid=%d", res.Fixes, res.Invalid)
	}
	if res.Ticks != 30 {
		t.Errorf("ticks=%d, want 30", res.Ticks)
	}
	s := res.Summary
	if s == nil {
		t.Fatal("no summary")
	}
	if s.DurationSeconds != 30 {
		t.Errorf("duration=%d, want 30", s.DurationSeconds)
	}
	if math.Abs(s.DistanceMeters-220) > 1 {
		t.Errorf("distance=%v, want ~220", s.DistanceMeters)
	}
	if s.XP != 20 {
		t.Errorf("xp=%d, want 20", s.XP)
	}
	if len(s.Path) != 11 {
		t.Errorf("path=%d, want 11", len(s.Path))
	}
	if !s.StartTime.Equal(testdata.T0) {
		t.Errorf("start time %v, want the first fix time %v", s.StartTime, testdata.T0)
	}
	if len(p.got) != 1 {
		t.Errorf("persisted %d, want 1", len(p.got))
	}
}

func TestRunSortsAndDropsInvalid(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()

	fixes := testdata.Line(testdata.NYC, 20, 6, time.Second)
	shuffled := []fix.Fix{fixes[3], fixes[0], fixes[5], fixes[1], fixes[4], fixes[2]}
	bad := fixes[2]
	bad.Timestamp = 0
	shuffled = append(shuffled, bad)

	res, err := Run(context.Background(), shuffled, testConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.Invalid != 1 {
		t.Errorf("invalid=%d, want 1", res.Invalid)
	}
	if math.Abs(res.Summary.DistanceMeters-100) > 1 {
		t.Errorf("distance=%v, want ~100: out-of-order fixes were not sorted", res.Summary.DistanceMeters)
	}
}

func TestRunNoFixes(t *testing.T) {
	_, err := Run(context.Background(), nil, testConfig())
	if !errors.Is(err, ErrNoFixes) {
		t.Errorf("want ErrNoFixes, got %v", err)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Run(ctx, testdata.Line(testdata.NYC, 20, 50, time.Second), testConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if res != nil {
		t.Errorf("canceled replay has a result: %+v", res)
	}

	valid, invalid, err := Prepare(ctx, testdata.Line(testdata.NYC, 20, 5, time.Second))
	if !errors.Is(err, context.Canceled) || valid != nil || invalid != 0 {
		t.Errorf("prepare: %d valid, %d invalid, %v", len(valid), invalid, err)
	}
}

func TestRunPersistFailureKeepsSummary(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()

	c := testConfig()
	c.Persister = &recordingPersister{err: errors.New("disk full")}
	res, err := Run(context.Background(), testdata.Line(testdata.NYC, 20, 4, time.Second), c)
	if err == nil {
		t.Fatal("want persist error")
	}
	if res.Summary == nil {
		t.Fatal("summary lost on persist failure")
	}
}

func TestReadFixes(t *testing.T) {
	fixes := testdata.Line(testdata.NYC, 20, 5, time.Second)
	got, err := ReadFixes(bytes.NewReader(testdata.NDJSON(fixes)), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("read %d, want 5", len(got))
	}
	if got[4].Timestamp != fixes[4].Timestamp {
		t.Errorf("timestamp %d, want %d", got[4].Timestamp, fixes[4].Timestamp)
	}

	got, err = ReadFixes(bytes.NewReader(nil), nil)
	if err != nil || len(got) != 0 {
		t.Errorf("empty input: %v %v", got, err)
	}
}
