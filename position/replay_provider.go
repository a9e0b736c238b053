package position

import (
	"sync"

	"github.com/fitzone/zoned/types/fix"
)

// ReplayProvider plays back a recorded path. GetCurrentFix answers with
// the fix under the cursor; Step pushes it to watchers and advances.
type ReplayProvider struct {
	*FeedProvider

	mu     sync.Mutex
	fixes  []fix.Fix
	cursor int
}

func NewReplayProvider(fixes []fix.Fix) *ReplayProvider {
	return &ReplayProvider{
		FeedProvider: NewFeedProvider(),
		fixes:        fixes,
	}
}

func (p *ReplayProvider) GetCurrentFix(onSuccess func(fix.Fix), onError func(error), _ Options) {
	p.mu.Lock()
	if p.cursor >= len(p.fixes) {
		p.mu.Unlock()
		onError(ErrPositionUnavailable)
		return
	}
	f := p.fixes[p.cursor]
	p.mu.Unlock()
	onSuccess(f)
}

// Step pushes the next fix. It returns false once the path is exhausted.
func (p *ReplayProvider) Step() (fix.Fix, bool) {
	p.mu.Lock()
	if p.cursor >= len(p.fixes) {
		p.mu.Unlock()
		return fix.Fix{}, false
	}
	f := p.fixes[p.cursor]
	p.cursor++
	p.mu.Unlock()
	p.Push(f)
	return f, true
}

func (p *ReplayProvider) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fixes) - p.cursor
}
