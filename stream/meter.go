package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/fitzone/zoned/common"
)

// TickMeter counts elements and bytes flowing through a stage and logs
// rates on an interval until stopped.
type TickMeter struct {
	name     string
	logger   *slog.Logger
	interval time.Duration
	started  time.Time

	mu    sync.Mutex
	label time.Time // the data's own time, eg. a fix timestamp

	countMeter metrics.Meter
	sizeMeter  metrics.Meter

	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// NewTickMeter starts a meter logging every interval.
// A zero interval never logs on its own; call Log.
func NewTickMeter(name string, logger *slog.Logger, interval time.Duration) *TickMeter {
	// Meters are no-ops unless this is set first.
	metrics.Enabled = true

	if logger == nil {
		logger = slog.Default()
	}
	m := &TickMeter{
		name:       name,
		logger:     logger,
		interval:   interval,
		started:    time.Now(),
		countMeter: metrics.NewMeter(),
		sizeMeter:  metrics.NewMeter(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

// Mark records one element of size bytes, labeled with the data's time.
func (m *TickMeter) Mark(label time.Time, size int) {
	m.mu.Lock()
	m.label = label
	m.mu.Unlock()
	m.countMeter.Mark(1)
	m.sizeMeter.Mark(int64(size))
}

func (m *TickMeter) Count() int64 {
	return m.countMeter.Snapshot().Count()
}

func (m *TickMeter) Bytes() int64 {
	return m.sizeMeter.Snapshot().Count()
}

func (m *TickMeter) run() {
	defer close(m.done)
	if m.interval <= 0 {
		<-m.quit
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.quit:
			return
		case <-ticker.C:
			m.Log()
		}
	}
}

func (m *TickMeter) Log() {
	countSnap := m.countMeter.Snapshot()
	sizeSnap := m.sizeMeter.Snapshot()
	m.mu.Lock()
	label := m.label
	m.mu.Unlock()

	m.logger.Info(m.name, "n", humanize.Comma(countSnap.Count()),
		"last", label.Format(time.DateTime),
		"rate", common.DecimalToFixed(countSnap.Rate1(), 0),
		"bps", humanize.Bytes(uint64(sizeSnap.Rate1())),
		"total.bytes", humanize.Bytes(uint64(sizeSnap.Count())),
		"running", time.Since(m.started).Round(time.Second))
}

// Stop ends periodic logging. It is safe to call more than once.
func (m *TickMeter) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.quit)
		<-m.done
		m.countMeter.Stop()
		m.sizeMeter.Stop()
	})
}
