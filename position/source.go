// Package position owns the continuous location subscription for one
// athlete, and answers one-shot current position requests.
package position

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/fix"
	"github.com/jellydator/ttlcache/v3"
)

const recentKey = "latest"

// Source wraps a Provider. It exposes the latest streamed fix, whether
// it is still waiting for the first one, and the standing stream error.
type Source struct {
	provider Provider
	config   *params.PositionConfig
	logger   *slog.Logger

	mu        sync.RWMutex
	watching  bool
	watchID   WatchID
	gen       uint64
	latest    fix.Fix
	hasLatest bool
	loading   bool
	err       *Error

	listenersMu sync.Mutex
	listeners   map[int]func(fix.Fix)
	nextLis     int

	recent  *ttlcache.Cache[string, fix.Fix]
	history *common.RingBuffer[fix.Fix]
	feed    event.FeedOf[fix.Fix]
	errFeed event.FeedOf[*Error]
}

func NewSource(provider Provider, config *params.PositionConfig, logger *slog.Logger) *Source {
	if config == nil {
		config = params.DefaultPositionConfig()
	}
	if logger == nil {
		logger = slog.With("d", "position")
	}
	return &Source{
		provider:  provider,
		config:    config,
		logger:    logger,
		listeners: map[int]func(fix.Fix){},
		recent: ttlcache.New[string, fix.Fix](
			ttlcache.WithTTL[string, fix.Fix](config.FallbackMaxAge),
			ttlcache.WithDisableTouchOnHit[string, fix.Fix]()),
		history: common.NewRingBuffer[fix.Fix](config.RecentFixes),
	}
}

func (s *Source) options() Options {
	return Options{
		HighAccuracy: s.config.HighAccuracy,
		Timeout:      s.config.Timeout,
		MaximumAge:   s.config.MaximumAge,
	}
}

// Start begins the continuous subscription. Starting a started Source is a no-op.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		return nil
	}
	s.gen++
	gen := s.gen
	s.loading = !s.hasLatest
	id, err := s.provider.StartWatch(
		func(f fix.Fix) { s.onFix(gen, f) },
		func(err error) { s.onError(gen, err) },
		s.options())
	if err != nil {
		s.err = Classify(err)
		s.loading = false
		return s.err
	}
	s.watchID = id
	s.watching = true
	s.logger.Debug("Position watch started", "watch", id)
	return nil
}

// Stop tears the subscription down. Callbacks already in flight from the
// old subscription are ignored.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.watching {
		s.mu.Unlock()
		return
	}
	id := s.watchID
	s.watching = false
	s.gen++
	s.mu.Unlock()

	s.provider.StopWatch(id)
	s.logger.Debug("Position watch stopped", "watch", id)
}

// Restart is Stop then Start.
func (s *Source) Restart() error {
	s.Stop()
	return s.Start()
}

// Close stops the subscription and releases the caches.
func (s *Source) Close() {
	s.Stop()
	s.recent.DeleteAll()
}

func (s *Source) Watching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.watching
}

func (s *Source) onFix(gen uint64, f fix.Fix) {
	if err := f.Validate(); err != nil {
		s.logger.Debug("Dropping invalid fix", "error", err)
		return
	}
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.latest, s.hasLatest = f, true
	s.loading = false
	s.err = nil
	s.mu.Unlock()

	s.recent.Set(recentKey, f, ttlcache.DefaultTTL)
	s.history.Add(f)

	s.listenersMu.Lock()
	fns := make([]func(fix.Fix), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(f)
	}
	s.feed.Send(f)
}

func (s *Source) onError(gen uint64, err error) {
	e := Classify(err)
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.err = e
	s.loading = false
	s.mu.Unlock()

	s.logger.Warn("Position stream error", "code", e.Code, "error", err)
	s.errFeed.Send(e)
}

// Latest returns the most recent streamed fix.
func (s *Source) Latest() (fix.Fix, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}

// Loading is true from Start until the first fix or error.
func (s *Source) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err is the standing stream error, cleared by the next good fix.
func (s *Source) Err() *Error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Recent returns up to n of the latest streamed fixes, oldest first.
func (s *Source) Recent(n int) []fix.Fix {
	return s.history.Tail(n)
}

// Listen calls fn synchronously for every streamed fix, on the provider's
// goroutine. The returned func removes the listener.
func (s *Source) Listen(fn func(fix.Fix)) (unlisten func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.nextLis++
	id := s.nextLis
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

// SubscribeFixes delivers streamed fixes to ch.
// A slow subscriber blocks delivery, so keep ch drained.
func (s *Source) SubscribeFixes(ch chan<- fix.Fix) event.Subscription {
	return s.feed.Subscribe(ch)
}

func (s *Source) SubscribeErrors(ch chan<- *Error) event.Subscription {
	return s.errFeed.Subscribe(ch)
}

// CurrentFix asks the provider for a single fresh fix, bounded by
// CurrentFixTimeout. If that fails and the stream delivered a fix within
// FallbackMaxAge, that fix is returned instead. A zero FallbackMaxAge
// disables the fallback.
func (s *Source) CurrentFix(ctx context.Context) (fix.Fix, error) {
	f, err := s.currentFix(ctx)
	if err == nil {
		return f, nil
	}
	if s.config.FallbackMaxAge <= 0 {
		return fix.Fix{}, err
	}
	if item := s.recent.Get(recentKey); item != nil && !item.IsExpired() {
		s.logger.Warn("Current fix failed, using recent streamed fix",
			"error", err, "age", time.Since(item.ExpiresAt().Add(-item.TTL())).Round(time.Millisecond))
		return item.Value(), nil
	}
	return fix.Fix{}, err
}

func (s *Source) currentFix(ctx context.Context) (fix.Fix, error) {
	if s.config.CurrentFixTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CurrentFixTimeout)
		defer cancel()
	}
	type result struct {
		f   fix.Fix
		err error
	}
	// Buffered so a late callback never blocks the provider.
	res := make(chan result, 2)
	opts := s.options()
	opts.Timeout = s.config.CurrentFixTimeout
	s.provider.GetCurrentFix(
		func(f fix.Fix) { res <- result{f: f} },
		func(err error) { res <- result{err: err} },
		opts)

	select {
	case r := <-res:
		if r.err != nil {
			return fix.Fix{}, Classify(r.err)
		}
		if err := r.f.Validate(); err != nil {
			return fix.Fix{}, NewError(CodePositionUnavailable, err)
		}
		return r.f, nil
	case <-ctx.Done():
		return fix.Fix{}, Classify(ctx.Err())
	}
}
