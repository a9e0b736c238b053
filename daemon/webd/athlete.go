package webd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/geo/smooth"
	"github.com/fitzone/zoned/position"
	"github.com/fitzone/zoned/tracker"
	"github.com/fitzone/zoned/types/fix"
	"github.com/google/uuid"
)

// athleteRuntime is everything live for one athlete: the pushed-fix
// provider, the position source over it, and the tracker.
type athleteRuntime struct {
	athlete  conceptual.AthleteID
	provider *position.FeedProvider
	source   *position.Source
	tracker  *tracker.Tracker

	// smoother follows the live session's accepted fixes for broadcast.
	smoother *smooth.Smoother

	snapshots chan tracker.Snapshot
	sub       event.Subscription
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

func (d *WebDaemon) newAthleteRuntime(athlete conceptual.AthleteID) (*athleteRuntime, error) {
	logger := d.logger.With("athlete", athlete)
	provider := position.NewFeedProvider()
	source := position.NewSource(provider, d.Config.Position, logger.With("d", "position"))

	// Watch from the start so pushes show up as the latest position
	// before any activity begins.
	if err := source.Start(); err != nil {
		return nil, err
	}

	opts := []tracker.Option{
		tracker.WithPersister(d.store),
		tracker.WithSummaryFeed(&d.feeds.Summaries),
		tracker.WithLogger(logger.With("d", "tracker")),
	}
	if d.annotator != nil {
		opts = append(opts, tracker.WithAnnotator(d.annotator))
	}

	rt := &athleteRuntime{
		athlete:   athlete,
		provider:  provider,
		source:    source,
		tracker:   tracker.New(athlete, source, d.Config.Tracking, opts...),
		smoother:  smooth.NewSmoother(d.Config.Smoothing.Alpha),
		snapshots: make(chan tracker.Snapshot, 16),
		logger:    logger,
	}
	rt.sub = rt.tracker.SubscribeSnapshots(rt.snapshots)
	rt.wg.Add(1)
	go rt.follow(d.broadcastSnapshot)
	logger.Info("Athlete runtime up")
	return rt, nil
}

// follow drains snapshots, keeps the smoother in step with the session,
// and hands each snapshot with its smoothed head to broadcast.
func (rt *athleteRuntime) follow(broadcast func(liveSnapshot)) {
	defer rt.wg.Done()
	session := uuid.Nil
	pathLen := 0
	for {
		select {
		case snap := <-rt.snapshots:
			if snap.SessionID != session || snap.PathLength < pathLen {
				rt.smoother.Reset()
				session = snap.SessionID
				pathLen = 0
			}
			if snap.PathLength > pathLen && snap.LastAcceptedFix != nil {
				rt.smoother.Push(*snap.LastAcceptedFix)
				pathLen = snap.PathLength
			}
			live := liveSnapshot{Action: websocketActionSnapshot, Snapshot: snap}
			if p := rt.smoother.Path(); len(p) > 0 {
				last := p[len(p)-1]
				live.Smoothed = &last
			}
			broadcast(live)
		case <-rt.sub.Err():
			return
		}
	}
}

// push hands device fixes to the provider, oldest first.
func (rt *athleteRuntime) push(fixes []fix.Fix) {
	for _, f := range fixes {
		rt.provider.Push(f)
	}
}

// teardown stops a live activity (persisting it) and releases the runtime.
// It is safe to call more than once.
func (rt *athleteRuntime) teardown(ctx context.Context) {
	rt.closeOnce.Do(func() {
		if rt.tracker.Snapshot().IsTracking {
			if s, err := rt.tracker.Stop(ctx); err != nil {
				rt.logger.Warn("Stopping activity on teardown", "error", err)
			} else if s != nil {
				rt.logger.Info("Stopped activity on teardown", "id", s.ID)
			}
		}
		rt.tracker.Close()
		rt.sub.Unsubscribe()
		rt.wg.Wait()
		rt.source.Close()
		rt.logger.Info("Athlete runtime down")
	})
}
