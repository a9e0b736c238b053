// Package smooth filters GPS jitter out of a path while keeping its trend.
package smooth

import (
	"sync"

	"github.com/fitzone/zoned/types/fix"
	"github.com/paulmach/orb"
)

const DefaultAlpha = 0.35

// alphaOrDefault keeps alpha in (0, 1].
func alphaOrDefault(alpha float64) float64 {
	if !(alpha > 0 && alpha <= 1) {
		return DefaultAlpha
	}
	return alpha
}

func step(prev, raw orb.Point, alpha float64) orb.Point {
	return orb.Point{
		prev[0] + alpha*(raw[0]-prev[0]),
		prev[1] + alpha*(raw[1]-prev[1]),
	}
}

// SmoothPath applies a first-order exponential moving average to the
// positions of path. Paths of two fixes or fewer are returned unchanged.
// Otherwise the result has the same length, starts at path[0], and each
// later fix keeps its raw accuracy, readings and timestamp; only the
// position is filtered. path is not modified.
func SmoothPath(path []fix.Fix, alpha float64) []fix.Fix {
	if len(path) <= 2 {
		return path
	}
	alpha = alphaOrDefault(alpha)
	out := make([]fix.Fix, len(path))
	out[0] = path[0]
	for i := 1; i < len(path); i++ {
		out[i] = path[i].WithPoint(step(out[i-1].Point, path[i].Point, alpha))
	}
	return out
}

// Smoother is SmoothPath folded incrementally, for paths that only grow.
// Path always equals SmoothPath over every fix pushed so far.
type Smoother struct {
	alpha float64

	mu       sync.Mutex
	raw      []fix.Fix // only the first two, needed while the path is short
	smoothed []fix.Fix
}

func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: alphaOrDefault(alpha)}
}

func (s *Smoother) Push(f fix.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.raw) < 2 {
		s.raw = append(s.raw, f)
	}
	if len(s.smoothed) == 0 {
		s.smoothed = append(s.smoothed, f)
		return
	}
	prev := s.smoothed[len(s.smoothed)-1]
	s.smoothed = append(s.smoothed, f.WithPoint(step(prev.Point, f.Point, s.alpha)))
}

func (s *Smoother) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.smoothed)
}

// Path returns a copy of the smoothed path.
func (s *Smoother) Path() []fix.Fix {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.smoothed) <= 2 {
		return append([]fix.Fix(nil), s.raw...)
	}
	return append([]fix.Fix(nil), s.smoothed...)
}

func (s *Smoother) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	s.smoothed = nil
}
