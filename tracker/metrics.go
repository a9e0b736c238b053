package tracker

import (
	"github.com/ethereum/go-ethereum/metrics"
)

// meters count what the tracker did with its input.
type meters struct {
	reg       metrics.Registry
	accepted  metrics.Meter
	discarded metrics.Meter
	ignored   metrics.Counter
	loops     metrics.Counter
	ticks     metrics.Counter
}

func newMeters() *meters {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	m := &meters{
		reg:       metrics.NewRegistry(),
		accepted:  metrics.NewMeter(),
		discarded: metrics.NewMeter(),
		ignored:   metrics.NewCounter(),
		loops:     metrics.NewCounter(),
		ticks:     metrics.NewCounter(),
	}
	for name, metric := range map[string]interface{}{
		"fixes.accepted":  m.accepted,
		"fixes.discarded": m.discarded,
		"fixes.ignored":   m.ignored,
		"loops.count":     m.loops,
		"ticks.count":     m.ticks,
	} {
		if err := m.reg.Register(name, metric); err != nil {
			panic(err)
		}
	}
	return m
}

// Report flattens the registry for status endpoints.
func (m *meters) Report() map[string]any {
	out := map[string]any{}
	m.reg.Each(func(name string, i interface{}) {
		switch v := i.(type) {
		case metrics.Meter:
			s := v.Snapshot()
			out[name] = map[string]any{"count": s.Count(), "rate1": s.Rate1(), "rateMean": s.RateMean()}
		case metrics.Counter:
			out[name] = v.Snapshot().Count()
		}
	})
	return out
}

func (m *meters) stop() {
	m.accepted.Stop()
	m.discarded.Stop()
}
