package tracker

import "time"

// Ticker drives the elapsed-time clock.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// NewTickerFunc makes a Ticker firing every d.
type NewTickerFunc func(d time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// ManualTicker fires only when told to. Replays and tests use it to
// drive the clock from recorded time.
type ManualTicker struct {
	c       chan time.Time
	stopped chan struct{}
}

func NewManualTicker() *ManualTicker {
	return &ManualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
}

func (m *ManualTicker) C() <-chan time.Time { return m.c }

func (m *ManualTicker) Stop() {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
}

// Tick delivers one tick. It blocks until the tracker takes it and
// returns false if the ticker was stopped first.
func (m *ManualTicker) Tick(t time.Time) bool {
	select {
	case m.c <- t:
		return true
	case <-m.stopped:
		return false
	}
}

// ManualTickers hands out a fresh ManualTicker per clock start and
// remembers the current one.
type ManualTickers struct {
	current chan *ManualTicker
}

func NewManualTickers() *ManualTickers {
	return &ManualTickers{current: make(chan *ManualTicker, 1)}
}

func (m *ManualTickers) New(time.Duration) Ticker {
	t := NewManualTicker()
	select {
	case <-m.current:
	default:
	}
	m.current <- t
	return t
}

// Tick fires the most recently started ticker.
func (m *ManualTickers) Tick(t time.Time) bool {
	select {
	case cur := <-m.current:
		m.current <- cur
		return cur.Tick(t)
	default:
		return false
	}
}
