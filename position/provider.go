package position

import (
	"time"

	"github.com/fitzone/zoned/types/fix"
)

// Options are the requested quality of fixes.
type Options struct {
	HighAccuracy bool
	// Timeout bounds the wait for a fix. Zero means no limit.
	Timeout time.Duration
	// MaximumAge is how stale a cached fix may be. Zero demands a fresh fix.
	MaximumAge time.Duration
}

// WatchID identifies one continuous subscription.
type WatchID int64

// Provider is the device location service.
// Callbacks may run on any goroutine.
type Provider interface {
	StartWatch(onFix func(fix.Fix), onError func(error), opts Options) (WatchID, error)
	StopWatch(id WatchID)
	GetCurrentFix(onSuccess func(fix.Fix), onError func(error), opts Options)
}

// Unsupported is a Provider for devices without location services.
type Unsupported struct{}

func (Unsupported) StartWatch(func(fix.Fix), func(error), Options) (WatchID, error) {
	return 0, ErrUnsupported
}

func (Unsupported) StopWatch(WatchID) {}

func (Unsupported) GetCurrentFix(_ func(fix.Fix), onError func(error), _ Options) {
	onError(ErrUnsupported)
}
