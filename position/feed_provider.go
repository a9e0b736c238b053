package position

import (
	"sync"
	"time"

	"github.com/fitzone/zoned/types/fix"
)

// FeedProvider is a Provider fed by pushes, for devices that report
// their own fixes over the network.
type FeedProvider struct {
	mu       sync.Mutex
	nextID   WatchID
	watchers map[WatchID]*watcher
	pending  map[int64]*request
	nextReq  int64
	last     fix.Fix
	hasLast  bool
	now      func() time.Time
}

type watcher struct {
	onFix   func(fix.Fix)
	onError func(error)
	opts    Options
	timer   *time.Timer
}

type request struct {
	onSuccess func(fix.Fix)
	onError   func(error)
	timer     *time.Timer
}

func NewFeedProvider() *FeedProvider {
	return &FeedProvider{
		watchers: map[WatchID]*watcher{},
		pending:  map[int64]*request{},
		now:      time.Now,
	}
}

// Push delivers a fix to every watcher and waiting one-shot request.
func (p *FeedProvider) Push(f fix.Fix) {
	p.mu.Lock()
	p.last, p.hasLast = f, true
	onFix := make([]func(fix.Fix), 0, len(p.watchers)+len(p.pending))
	for _, w := range p.watchers {
		if w.timer != nil {
			w.timer.Reset(w.opts.Timeout)
		}
		onFix = append(onFix, w.onFix)
	}
	for id, r := range p.pending {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(p.pending, id)
		onFix = append(onFix, r.onSuccess)
	}
	p.mu.Unlock()

	for _, fn := range onFix {
		fn(f)
	}
}

// Fail reports a device-side error to every watcher and waiting request.
func (p *FeedProvider) Fail(err error) {
	p.mu.Lock()
	onErr := make([]func(error), 0, len(p.watchers)+len(p.pending))
	for _, w := range p.watchers {
		onErr = append(onErr, w.onError)
	}
	for id, r := range p.pending {
		if r.timer != nil {
			r.timer.Stop()
		}
		delete(p.pending, id)
		onErr = append(onErr, r.onError)
	}
	p.mu.Unlock()

	for _, fn := range onErr {
		fn(err)
	}
}

func (p *FeedProvider) StartWatch(onFix func(fix.Fix), onError func(error), opts Options) (WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	w := &watcher{onFix: onFix, onError: onError, opts: opts}
	if opts.Timeout > 0 {
		// The watch keeps going after a timeout; the timer re-arms.
		w.timer = time.AfterFunc(opts.Timeout, func() {
			p.mu.Lock()
			_, alive := p.watchers[id]
			if alive {
				w.timer.Reset(opts.Timeout)
			}
			p.mu.Unlock()
			if alive {
				onError(ErrTimeout)
			}
		})
	}
	p.watchers[id] = w
	return id, nil
}

func (p *FeedProvider) StopWatch(id WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.watchers[id]
	if !ok {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	delete(p.watchers, id)
}

// GetCurrentFix answers from the last push if it is within MaximumAge,
// otherwise waits for the next push or the timeout.
func (p *FeedProvider) GetCurrentFix(onSuccess func(fix.Fix), onError func(error), opts Options) {
	p.mu.Lock()
	if p.hasLast && opts.MaximumAge > 0 && p.now().Sub(p.last.Time()) <= opts.MaximumAge {
		last := p.last
		p.mu.Unlock()
		onSuccess(last)
		return
	}
	p.nextReq++
	id := p.nextReq
	r := &request{onSuccess: onSuccess, onError: onError}
	if opts.Timeout > 0 {
		r.timer = time.AfterFunc(opts.Timeout, func() {
			p.mu.Lock()
			_, waiting := p.pending[id]
			delete(p.pending, id)
			p.mu.Unlock()
			if waiting {
				onError(ErrTimeout)
			}
		})
	}
	p.pending[id] = r
	p.mu.Unlock()
}

// Watchers is the number of live subscriptions.
func (p *FeedProvider) Watchers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.watchers)
}
