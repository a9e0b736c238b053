// Package cache drops fixes a device has already pushed.
package cache

import (
	"fmt"
	"sync"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/types/fix"
	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
)

type dedupeKey struct {
	Athlete conceptual.AthleteID
	Fix     fix.Fix
}

// Dedupe remembers the hashes of recently seen fixes.
// Devices retry pushes whose responses they lost, so duplicates are common.
type Dedupe struct {
	mu    sync.Mutex
	cache *lru.Cache
}

func NewDedupe(size int) *Dedupe {
	if size < 1 {
		size = 10_000
	}
	return &Dedupe{cache: lru.New(size)}
}

// Pass returns true if the fix has not been seen for this athlete
// using a Least Recently Used (LRU) cache.
func (d *Dedupe) Pass(athlete conceptual.AthleteID, f fix.Fix) bool {
	// The hash of the fix is used to deduplicate points.
	hash, err := hashstructure.Hash(dedupeKey{athlete, f}, hashstructure.FormatV2, nil)
	if err != nil {
		return false
	}
	key := fmt.Sprintf("%d", hash)

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cache.Get(key); ok {
		return false
	}
	d.cache.Add(key, true)
	return true
}

// Filter returns the fixes that pass, in order.
func (d *Dedupe) Filter(athlete conceptual.AthleteID, fixes []fix.Fix) []fix.Fix {
	out := make([]fix.Fix, 0, len(fixes))
	for _, f := range fixes {
		if d.Pass(athlete, f) {
			out = append(out, f)
		}
	}
	return out
}

func (d *Dedupe) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cache.Len()
}
