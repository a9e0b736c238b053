package tracker

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/position"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
)

type fakeSource struct {
	mu        sync.Mutex
	current   fix.Fix
	err       error
	listeners map[int]func(fix.Fix)
	next      int
}

func newFakeSource(current fix.Fix) *fakeSource {
	return &fakeSource{current: current, listeners: map[int]func(fix.Fix){}}
}

func (s *fakeSource) Start() error { return nil }

func (s *fakeSource) CurrentFix(context.Context) (fix.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.err
}

func (s *fakeSource) Listen(fn func(fix.Fix)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := s.next
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *fakeSource) emit(f fix.Fix) {
	s.mu.Lock()
	fns := []func(fix.Fix){}
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
}

func (s *fakeSource) listening() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

type fakePersister struct {
	mu     sync.Mutex
	got    []*summary.Summary
	deltas []summary.StatsDelta
	err    error
}

func (p *fakePersister) Persist(_ context.Context, s *summary.Summary, d summary.StatsDelta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, s)
	p.deltas = append(p.deltas, d)
	return p.err
}

func newTestTracker(t *testing.T, start fix.Fix, opts ...Option) (*Tracker, *fakeSource, *ManualTickers) {
	t.Helper()
	src := newFakeSource(start)
	ticks := NewManualTickers()
	opts = append([]Option{WithTicker(ticks.New)}, opts...)
	tr := New("rye", src, params.DefaultTrackingConfig(), opts...)
	t.Cleanup(tr.Close)
	return tr, src, ticks
}

func mustStart(t *testing.T, tr *Tracker, kind activity.Kind) {
	t.Helper()
	ok, err := tr.Start(context.Background(), kind)
	if err != nil || !ok {
		t.Fatalf("start: %v %v", ok, err)
	}
}

func at(north, east float64, sec int, opts ...fix.Option) fix.Fix {
	pt := testdata.Offset(testdata.NYC, north, east)
	return fix.New(pt.Lat(), pt.Lon(), testdata.T0.Add(time.Duration(sec)*time.Second), opts...)
}

func TestTracker_StartFailureLeavesIdle(t *testing.T) {
	tr, src, _ := newTestTracker(t, fix.Fix{})
	src.err = position.ErrPermissionDenied
	ok, err := tr.Start(context.Background(), activity.KindRun)
	if ok || !errors.Is(err, position.ErrPermissionDenied) {
		t.Fatalf("have %v %v", ok, err)
	}
	if snap := tr.Snapshot(); snap.IsTracking || snap.PathLength != 0 {
		t.Errorf("state changed: %+v", snap)
	}
	if src.listening() != 0 {
		t.Error("no subscription on failed start")
	}
	if _, err := tr.Start(context.Background(), activity.KindUnknown); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("have %v", err)
	}
}

func TestTracker_Start(t *testing.T) {
	start := at(0, 0, 0)
	tr, src, _ := newTestTracker(t, start)
	mustStart(t, tr, activity.KindWalk)
	snap := tr.Snapshot()
	if snap.State != StateActive || !snap.IsTracking || snap.IsPaused {
		t.Errorf("state: %+v", snap)
	}
	if snap.PathLength != 1 || snap.StartFix.Point != start.Point || snap.LastAcceptedFix.Point != start.Point {
		t.Errorf("seed: %+v", snap)
	}
	if src.listening() != 1 {
		t.Error("tracker should subscribe to fixes")
	}
	if ok, err := tr.Start(context.Background(), activity.KindRun); ok || err != nil {
		t.Errorf("start while tracking is a no-op, have %v %v", ok, err)
	}
	if tr.Snapshot().Kind != activity.KindWalk {
		t.Error("kind changed by no-op start")
	}
}

func TestTracker_NoiseRejection(t *testing.T) {
	tr, src, _ := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)
	src.emit(at(20, 0, 1))
	before := tr.Snapshot()

	src.emit(at(23, 0, 2)) // 3 m from the last accepted fix
	after := tr.Snapshot()
	if after.DistanceMeters != before.DistanceMeters || after.PathLength != before.PathLength {
		t.Errorf("noise changed the session: %+v -> %+v", before, after)
	}
	if after.LastAcceptedFix.Point != before.LastAcceptedFix.Point {
		t.Error("noise moved lastAcceptedFix")
	}

	src.emit(at(26, 0, 3)) // 6 m from the last accepted fix
	if got := tr.Snapshot(); got.PathLength != before.PathLength+1 {
		t.Errorf("fix beyond the threshold should be accepted: %+v", got)
	}
}

func TestTracker_LoopDetection(t *testing.T) {
	tr, src, _ := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)

	src.emit(at(0, 60, 10))
	src.emit(at(0, 120, 20))
	snap := tr.Snapshot()
	if snap.LoopCount != 0 {
		t.Fatal("far from start, no loop")
	}

	src.emit(at(0, 20, 30)) // 220 m travelled, 20 m from start
	snap = tr.Snapshot()
	if snap.LoopCount != 1 {
		t.Fatalf("want 1 loop, have %d", snap.LoopCount)
	}
	if snap.LoopAccumulatorMeters != 0 {
		t.Errorf("loop accumulator should reset, have %f", snap.LoopAccumulatorMeters)
	}
	if snap.DistanceMeters < 219 || snap.DistanceMeters > 221 {
		t.Errorf("distance keeps accumulating, have %f", snap.DistanceMeters)
	}

	src.emit(at(0, 0, 40)) // back at start again, only 20 m since the close
	snap = tr.Snapshot()
	if snap.LoopCount != 1 {
		t.Errorf("second return before another 100 m must not count, have %d", snap.LoopCount)
	}
	if snap.LoopAccumulatorMeters < 19 || snap.LoopAccumulatorMeters > 21 {
		t.Errorf("accumulator %f", snap.LoopAccumulatorMeters)
	}
}

func TestTracker_PauseSemantics(t *testing.T) {
	tr, src, ticks := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindCycle)
	src.emit(at(0, 50, 5))
	if !ticks.Tick(time.Now()) {
		t.Fatal("tick while active")
	}
	before := tr.Snapshot()

	if !tr.Pause() {
		t.Fatal("pause from active")
	}
	if tr.Pause() {
		t.Error("pause while paused is a no-op")
	}
	resumeSeq := []fix.Fix{at(0, 100, 10), at(0, 150, 15)}
	for _, f := range resumeSeq {
		src.emit(f)
	}
	if ticks.Tick(time.Now()) {
		t.Error("the clock should be stopped while paused")
	}
	paused := tr.Snapshot()
	if !paused.IsPaused || paused.DistanceMeters != before.DistanceMeters ||
		paused.PathLength != before.PathLength || paused.LoopCount != before.LoopCount ||
		paused.ElapsedSeconds != before.ElapsedSeconds {
		t.Errorf("paused session changed: %+v -> %+v", before, paused)
	}

	if !tr.Resume() {
		t.Fatal("resume from paused")
	}
	if tr.Resume() {
		t.Error("resume while active is a no-op")
	}
	for _, f := range resumeSeq {
		src.emit(f)
	}
	resumed := tr.Snapshot()
	if resumed.PathLength != before.PathLength+2 {
		t.Errorf("accounting should resume, path %d", resumed.PathLength)
	}
	if math.Abs(resumed.DistanceMeters-150) > 0.5 {
		t.Errorf("distance %f", resumed.DistanceMeters)
	}
	if !ticks.Tick(time.Now()) || tr.Snapshot().ElapsedSeconds != 2 {
		t.Error("the clock should resume")
	}
}

func TestTracker_SpeedFallback(t *testing.T) {
	tr, src, _ := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)

	src.emit(at(0, 12, 1))
	if got := tr.Snapshot().CurrentSpeed; math.Abs(got-12) > 0.01 {
		t.Errorf("segment length stands in for speed, have %f", got)
	}
	src.emit(at(0, 24, 2, fix.WithSpeed(3.4)))
	if got := tr.Snapshot().CurrentSpeed; got != 3.4 {
		t.Errorf("reported speed wins, have %f", got)
	}
	src.emit(at(0, 36, 3, fix.WithSpeed(-1)))
	if got := tr.Snapshot().CurrentSpeed; math.Abs(got-12) > 0.01 {
		t.Errorf("negative speed is not a reading, have %f", got)
	}
}

func TestTracker_CaloriesFromTicks(t *testing.T) {
	tr, src, ticks := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)
	for i := 0; i < 360; i++ {
		if !ticks.Tick(time.Now()) {
			t.Fatal("tick refused")
		}
	}
	snap := tr.Snapshot()
	if snap.ElapsedSeconds != 360 {
		t.Fatalf("elapsed %d", snap.ElapsedSeconds)
	}
	if math.Abs(snap.Calories-70) > 1e-9 {
		t.Errorf("10 MET * 70 kg * 0.1 h = 70 kcal, have %f", snap.Calories)
	}
	// Distance does not move calories.
	src.emit(at(0, 500, 400))
	if math.Abs(tr.Snapshot().Calories-70) > 1e-9 {
		t.Error("calories must not depend on distance")
	}
}

func TestTracker_StopResets(t *testing.T) {
	p := &fakePersister{}
	tr, src, ticks := newTestTracker(t, at(0, 0, 0), WithPersister(p))
	mustStart(t, tr, activity.KindRun)
	path := testdata.Loop(testdata.NYC, 100, 24, time.Second)
	for lap := 0; lap < 2; lap++ {
		for _, f := range path[1:] {
			src.emit(f)
			ticks.Tick(time.Now())
		}
	}
	live := tr.Snapshot()

	sum, err := tr.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.LoopCount != 2 {
		t.Errorf("two laps, have %d loops", sum.LoopCount)
	}
	if sum.DistanceMeters != live.DistanceMeters || sum.DurationSeconds != 48 {
		t.Errorf("summary %+v vs live %+v", sum, live)
	}
	if want := summary.XP(sum.DistanceMeters, sum.LoopCount, 10, 50); sum.XP != want {
		t.Errorf("xp %d want %d", sum.XP, want)
	}
	if len(sum.Path) != live.PathLength || sum.Start != testdata.NYC {
		t.Error("summary path")
	}
	if len(sum.ZonesVisited) == 0 {
		t.Error("zones visited")
	}
	if len(p.got) != 1 || p.deltas[0].Activities != 1 || p.deltas[0].XP != sum.XP {
		t.Errorf("persister: %+v", p.deltas)
	}

	snap := tr.Snapshot()
	if snap.IsTracking || snap.PathLength != 0 || snap.DistanceMeters != 0 || snap.LoopCount != 0 {
		t.Errorf("not reset: %+v", snap)
	}
	if snap.Kind != activity.KindUnknown {
		t.Errorf("idle kind %v", snap.Kind)
	}
	if len(tr.Path()) != 0 {
		t.Error("path not empty")
	}
	if src.listening() != 0 {
		t.Error("stop must end the fix subscription")
	}
	if ticks.Tick(time.Now()) {
		t.Error("stop must halt the clock")
	}
	src.emit(at(0, 300, 999))
	if tr.Snapshot().PathLength != 0 {
		t.Error("no mutation after stop")
	}

	again, err := tr.Stop(context.Background())
	if again != nil || err != nil {
		t.Errorf("stop while idle is a no-op, have %v %v", again, err)
	}
	if tr.Pause() || tr.Resume() {
		t.Error("pause/resume while idle are no-ops")
	}
}

func TestTracker_StopLeavesSourceRunning(t *testing.T) {
	provider := position.NewReplayProvider([]fix.Fix{at(0, 0, 0), at(20, 0, 5), at(40, 0, 10)})
	pc := params.DefaultPositionConfig()
	pc.Timeout = 0
	source := position.NewSource(provider, pc, nil)
	defer source.Close()

	ticks := NewManualTickers()
	tr := New("rye", source, params.DefaultTrackingConfig(), WithTicker(ticks.New))
	defer tr.Close()
	mustStart(t, tr, activity.KindWalk)
	provider.Step()
	provider.Step()
	if _, err := tr.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The owner of the source decides when the watch ends.
	if !source.Watching() {
		t.Fatal("source watch stopped with the activity")
	}
	last, _ := provider.Step()
	if got, ok := source.Latest(); !ok || got.Point != last.Point {
		t.Errorf("source latest %v %v", got, ok)
	}
	if tr.Snapshot().PathLength != 0 {
		t.Error("stopped tracker took a fix")
	}
}

func TestTracker_XPExample(t *testing.T) {
	tr, src, _ := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)
	// Out and back twice (two loops, 4 x 120 m), then 770 m straight: 1250 m.
	for lap := 0; lap < 2; lap++ {
		src.emit(at(0, 60, 1))
		src.emit(at(0, 120, 2))
		src.emit(at(0, 60, 3))
		src.emit(at(0, 0, 4))
	}
	for i := 1; i <= 7; i++ {
		src.emit(at(0, float64(110*i), 10+i))
	}
	snap := tr.Snapshot()
	if snap.LoopCount != 2 || math.Abs(snap.DistanceMeters-1250) > 1 {
		t.Fatalf("setup: %+v", snap)
	}
	sum, err := tr.Stop(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.XP != 220 {
		t.Errorf("want 220 xp, have %d", sum.XP)
	}
}

func TestTracker_PersistFailureStillResets(t *testing.T) {
	p := &fakePersister{err: errors.New("disk full")}
	tr, src, _ := newTestTracker(t, at(0, 0, 0), WithPersister(p))
	mustStart(t, tr, activity.KindWalk)
	src.emit(at(0, 40, 1))
	sum, err := tr.Stop(context.Background())
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("have %v", err)
	}
	if sum == nil || sum.XP != 0 {
		t.Error("the summary is still returned")
	}
	if tr.Snapshot().IsTracking {
		t.Error("reset must not depend on persistence")
	}
}

func TestTracker_Subscriptions(t *testing.T) {
	tr, src, _ := newTestTracker(t, at(0, 0, 0))
	snaps := make(chan Snapshot, 16)
	sums := make(chan *summary.Summary, 1)
	defer tr.SubscribeSnapshots(snaps).Unsubscribe()
	defer tr.SubscribeSummaries(sums).Unsubscribe()

	mustStart(t, tr, activity.KindWalk)
	src.emit(at(0, 10, 1))
	if _, err := tr.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 3 {
		t.Errorf("want start, fix and stop snapshots, have %d", len(snaps))
	}
	select {
	case s := <-sums:
		if s.Athlete != "rye" {
			t.Error("athlete")
		}
	default:
		t.Error("summary not published")
	}
	m := tr.Metrics()
	if m["fixes.accepted"] == nil {
		t.Errorf("metrics: %v", m)
	}
}

func TestTracker_ConcurrentInput(t *testing.T) {
	tr, src, ticks := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)
	wg := sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			src.emit(at(0, float64(10*i), i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			ticks.Tick(time.Now())
		}
	}()
	wg.Wait()
	snap := tr.Snapshot()
	if snap.ElapsedSeconds != 200 || snap.PathLength != 201 {
		t.Errorf("lost updates: %+v", snap)
	}
	want := activity.KindRun.Calories(70, snap.ElapsedSeconds)
	if snap.Calories != want {
		t.Errorf("calories %f want %f", snap.Calories, want)
	}
	if math.Abs(snap.DistanceMeters-geodesy.DistanceMeters(testdata.NYC, snap.LastAcceptedFix.Point)) > 0.5 {
		t.Errorf("distance %f", snap.DistanceMeters)
	}
}

func TestTracker_Close(t *testing.T) {
	tr, _, _ := newTestTracker(t, at(0, 0, 0))
	mustStart(t, tr, activity.KindRun)
	tr.Close()
	tr.Close()
	if err := tr.Observe(at(0, 50, 1)); !errors.Is(err, ErrClosed) {
		t.Errorf("have %v", err)
	}
	if _, err := tr.Start(context.Background(), activity.KindRun); !errors.Is(err, ErrClosed) {
		t.Errorf("have %v", err)
	}
}
