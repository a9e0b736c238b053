// Package tracker turns a stream of fixes into a live activity session
// and, on stop, a finished summary.
//
// One goroutine owns the session. Fixes, clock ticks and commands reach
// it through a single queue, so they never interleave.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/geo/zones"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/position"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
	"github.com/google/uuid"
)

var (
	ErrClosed      = errors.New("tracker closed")
	ErrUnknownKind = errors.New("unknown activity kind")
	ErrPersist     = errors.New("persist activity")
)

// FixSource is where the tracker gets its fixes. *position.Source is one.
type FixSource interface {
	Start() error
	CurrentFix(ctx context.Context) (fix.Fix, error)
	Listen(fn func(fix.Fix)) (unlisten func())
}

// Persister stores finished activities and applies their stats delta.
type Persister interface {
	Persist(ctx context.Context, s *summary.Summary, delta summary.StatsDelta) error
}

// Annotator decorates a summary before it is handed on, eg. with a place name.
type Annotator interface {
	Annotate(s *summary.Summary)
}

type Option func(*Tracker)

func WithPersister(p Persister) Option { return func(t *Tracker) { t.persister = p } }
func WithAnnotator(a Annotator) Option { return func(t *Tracker) { t.annotator = a } }
func WithTicker(fn NewTickerFunc) Option {
	return func(t *Tracker) { t.newTicker = fn }
}
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(t *Tracker) { t.logger = l } }

// WithSummaryFeed publishes finished activities on a shared feed
// instead of the tracker's own.
func WithSummaryFeed(feed *event.FeedOf[*summary.Summary]) Option {
	return func(t *Tracker) { t.summaries = feed }
}

// session is the live aggregate. Only the loop goroutine touches it.
type session struct {
	id        uuid.UUID
	kind      activity.Kind
	state     State
	path      []fix.Fix
	distance  float64
	elapsed   int64
	calories  float64
	loops     int
	start     fix.Fix
	last      fix.Fix
	loopAcc   float64
	speed     float64
	startedAt time.Time
	updatedAt time.Time
}

type Tracker struct {
	Athlete conceptual.AthleteID

	config    *params.TrackingConfig
	source    FixSource
	persister Persister
	annotator Annotator
	newTicker NewTickerFunc
	now       func() time.Time
	logger    *slog.Logger
	meters    *meters

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	snapshots event.FeedOf[Snapshot]
	summaries *event.FeedOf[*summary.Summary]

	// Owned by the loop goroutine.
	s        session
	ticker   Ticker
	tickC    <-chan time.Time
	unlisten func()
}

// New starts a tracker's loop goroutine. Close it when done.
func New(athlete conceptual.AthleteID, source FixSource, config *params.TrackingConfig, opts ...Option) *Tracker {
	if config == nil {
		config = params.DefaultTrackingConfig()
	}
	t := &Tracker{
		Athlete:   athlete,
		config:    config,
		source:    source,
		newTicker: NewTimeTicker,
		now:       time.Now,
		meters:    newMeters(),
		summaries: new(event.FeedOf[*summary.Summary]),
		ops:       make(chan func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.With("d", "tracker", "athlete", athlete)
	}
	go t.loop()
	return t
}

func (t *Tracker) loop() {
	defer close(t.done)
	for {
		select {
		case op := <-t.ops:
			op()
		case <-t.tickC:
			t.tick()
		case <-t.quit:
			t.stopClock()
			t.stopListening()
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it.
func (t *Tracker) do(fn func()) error {
	finished := make(chan struct{})
	select {
	case t.ops <- func() { fn(); close(finished) }:
	case <-t.done:
		return ErrClosed
	}
	<-finished
	return nil
}

// Close stops the loop, the clock and the fix subscription.
// A session still in progress is dropped, not persisted.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() {
		close(t.quit)
		<-t.done
		t.meters.stop()
	})
}

func (t *Tracker) startClock() {
	t.stopClock()
	t.ticker = t.newTicker(t.config.TickInterval)
	t.tickC = t.ticker.C()
}

func (t *Tracker) stopClock() {
	if t.ticker != nil {
		t.ticker.Stop()
	}
	t.ticker = nil
	t.tickC = nil
}

func (t *Tracker) stopListening() {
	if t.unlisten != nil {
		t.unlisten()
		t.unlisten = nil
	}
}

// Start begins tracking an activity of the given kind.
// It first obtains a current fix, which may block up to the source's
// one-shot timeout. On error nothing changes. Starting a tracker that is
// already tracking does nothing and returns false.
func (t *Tracker) Start(ctx context.Context, kind activity.Kind) (bool, error) {
	if !kind.IsKnown() {
		return false, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
	tracking := false
	if err := t.do(func() { tracking = t.s.state.IsTracking() }); err != nil {
		return false, err
	}
	if tracking {
		return false, nil
	}

	first, err := t.source.CurrentFix(ctx)
	if err != nil {
		return false, position.Classify(err)
	}
	if err := first.Validate(); err != nil {
		return false, position.NewError(position.CodePositionUnavailable, err)
	}
	if err := t.source.Start(); err != nil {
		return false, position.Classify(err)
	}

	started := false
	err = t.do(func() {
		if t.s.state.IsTracking() {
			return
		}
		now := t.now()
		t.s = session{
			id:        uuid.New(),
			kind:      kind,
			state:     StateActive,
			path:      []fix.Fix{first},
			start:     first,
			last:      first,
			startedAt: now,
			updatedAt: now,
		}
		t.startClock()
		t.unlisten = t.source.Listen(func(f fix.Fix) { _ = t.Observe(f) })
		started = true
		t.logger.Info("Activity started", "session", t.s.id, "kind", kind, "start", first)
		t.publish()
	})
	return started, err
}

// Pause stops distance and time accounting. Fixes that arrive while
// paused are dropped. It returns false unless the tracker was active.
func (t *Tracker) Pause() bool {
	ok := false
	_ = t.do(func() {
		if t.s.state != StateActive {
			return
		}
		t.s.state = StatePaused
		t.s.updatedAt = t.now()
		t.stopClock()
		ok = true
		t.logger.Info("Activity paused", "session", t.s.id)
		t.publish()
	})
	return ok
}

// Resume continues a paused activity. It returns false unless paused.
func (t *Tracker) Resume() bool {
	ok := false
	_ = t.do(func() {
		if t.s.state != StatePaused {
			return
		}
		t.s.state = StateActive
		t.s.updatedAt = t.now()
		t.startClock()
		ok = true
		t.logger.Info("Activity resumed", "session", t.s.id)
		t.publish()
	})
	return ok
}

// Observe offers a fix to the session. It returns once the fix has been
// accepted or discarded.
func (t *Tracker) Observe(f fix.Fix) error {
	return t.do(func() { t.observe(f) })
}

func (t *Tracker) observe(f fix.Fix) {
	if t.s.state != StateActive {
		t.meters.ignored.Inc(1)
		return
	}
	if err := f.Validate(); err != nil {
		t.meters.ignored.Inc(1)
		t.logger.Debug("Invalid fix ignored", "error", err)
		return
	}

	segment := geodesy.DistanceMeters(t.s.last.Point, f.Point)
	if segment <= t.config.NoiseThreshold {
		t.meters.discarded.Mark(1)
		return
	}
	t.meters.accepted.Mark(1)

	t.s.path = append(t.s.path, f)
	t.s.distance += segment
	t.s.loopAcc += segment
	if v, ok := f.ReportedSpeed(); ok {
		t.s.speed = v
	} else {
		// Without a device speed, the segment length stands in for m/s.
		t.s.speed = segment
	}
	t.recomputeCalories()

	if t.s.loopAcc > t.config.LoopMinDistance &&
		geodesy.DistanceMeters(f.Point, t.s.start.Point) <= t.config.LoopCloseRadius {
		t.s.loops++
		t.s.loopAcc = 0
		t.meters.loops.Inc(1)
		t.logger.Debug("Loop closed", "session", t.s.id, "loops", t.s.loops)
	}
	t.s.last = f
	t.s.updatedAt = t.now()
	t.publish()
}

func (t *Tracker) tick() {
	if t.s.state != StateActive {
		return
	}
	t.meters.ticks.Inc(1)
	t.s.elapsed++
	t.recomputeCalories()
	t.s.updatedAt = t.now()
	t.publish()
}

func (t *Tracker) recomputeCalories() {
	t.s.calories = t.s.kind.Calories(t.config.AssumedWeightKg, t.s.elapsed)
}

func (t *Tracker) xp() int64 {
	return summary.XP(t.s.distance, t.s.loops, int64(t.config.XPPerHundredMeters), int64(t.config.XPPerLoop))
}

// Stop finishes the activity: it halts the clock and drops the tracker's
// fix listener, builds the summary, resets the session to idle and hands
// the summary to the persister. The reset happens even if persisting
// fails; the error wraps ErrPersist. Stopping an idle tracker returns nil, nil.
// The source keeps watching; whoever created it stops it.
func (t *Tracker) Stop(ctx context.Context) (*summary.Summary, error) {
	var sum *summary.Summary
	err := t.do(func() {
		if !t.s.state.IsTracking() {
			return
		}
		t.stopClock()
		t.stopListening()
		sum = t.finalize()
		t.s = session{updatedAt: t.now()}
		t.publish()
	})
	if err != nil || sum == nil {
		return nil, err
	}

	if t.annotator != nil {
		t.annotator.Annotate(sum)
	}
	t.summaries.Send(sum)

	if t.persister == nil {
		return sum, nil
	}
	if t.config.PersistTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.PersistTimeout)
		defer cancel()
	}
	if err := t.persister.Persist(ctx, sum, sum.Delta()); err != nil {
		t.logger.Warn("Persist activity failed", "session", sum.ID, "error", err)
		return sum, fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return sum, nil
}

func (t *Tracker) finalize() *summary.Summary {
	sum := summary.New(summary.Input{
		ID:             t.s.id,
		Athlete:        t.Athlete,
		Kind:           t.s.kind,
		Path:           t.s.path,
		DistanceMeters: t.s.distance,
		ElapsedSeconds: t.s.elapsed,
		Calories:       t.s.calories,
		LoopCount:      t.s.loops,
		XP:             t.xp(),
		StartTime:      t.s.startedAt,
		EndTime:        t.now(),
		ZonesVisited:   zones.CellsForPath(fix.Points(t.s.path), zones.CellLevel(t.config.ZoneCellLevel)),
	})
	t.logger.Info("Activity stopped", "session", sum.ID, "kind", sum.Kind,
		"distance", sum.DistanceMeters, "elapsed", sum.DurationSeconds, "loops", sum.LoopCount, "xp", sum.XP)
	return sum
}

func (t *Tracker) snapshot() Snapshot {
	snap := Snapshot{
		Athlete:               t.Athlete,
		SessionID:             t.s.id,
		State:                 t.s.state,
		Kind:                  t.s.kind,
		IsTracking:            t.s.state.IsTracking(),
		IsPaused:              t.s.state == StatePaused,
		DistanceMeters:        t.s.distance,
		ElapsedSeconds:        t.s.elapsed,
		Calories:              t.s.calories,
		LoopCount:             t.s.loops,
		LoopAccumulatorMeters: t.s.loopAcc,
		CurrentSpeed:          t.s.speed,
		PathLength:            len(t.s.path),
		XP:                    t.xp(),
		StartedAt:             t.s.startedAt,
		UpdatedAt:             t.s.updatedAt,
	}
	if snap.IsTracking {
		start, last := t.s.start, t.s.last
		snap.StartFix, snap.LastAcceptedFix = &start, &last
	} else {
		snap.Kind = activity.KindUnknown
	}
	return snap
}

func (t *Tracker) publish() {
	t.snapshots.Send(t.snapshot())
}

// Snapshot returns a copy of the live session.
func (t *Tracker) Snapshot() Snapshot {
	var snap Snapshot
	if err := t.do(func() { snap = t.snapshot() }); err != nil {
		return Snapshot{Athlete: t.Athlete}
	}
	return snap
}

// Path returns a copy of the accepted path.
func (t *Tracker) Path() []fix.Fix {
	var path []fix.Fix
	_ = t.do(func() { path = append([]fix.Fix{}, t.s.path...) })
	return path
}

// SubscribeSnapshots delivers a Snapshot after every change.
// Subscribers must keep ch drained; the loop waits on delivery.
func (t *Tracker) SubscribeSnapshots(ch chan<- Snapshot) event.Subscription {
	return t.snapshots.Subscribe(ch)
}

// SubscribeSummaries delivers every finished activity.
func (t *Tracker) SubscribeSummaries(ch chan<- *summary.Summary) event.Subscription {
	return t.summaries.Subscribe(ch)
}

// Metrics reports fix and tick counters.
func (t *Tracker) Metrics() map[string]any {
	return t.meters.Report()
}
