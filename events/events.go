// Package events holds the feeds a daemon publishes on and the exporters
// that listen on them.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
)

// PopulatedFixes are fixes pushed by a device, decoded and deduped.
// They have not necessarily been accepted by a tracker.
type PopulatedFixes struct {
	Athlete conceptual.AthleteID
	Fixes   []fix.Fix
}

// Feeds belong to one daemon. The zero value is ready to use and must not
// be copied after first use.
type Feeds struct {
	// Summaries is emitted for every finished activity, before it is persisted.
	Summaries event.FeedOf[*summary.Summary]

	// HTTPPopulate is a feed of fixes as they are pushed to the server.
	// It is emitted only in the context of an HTTP request.
	HTTPPopulate event.FeedOf[PopulatedFixes]
}

// Exporter handles a finished activity off the request path.
type Exporter interface {
	Name() string
	Export(ctx context.Context, s *summary.Summary) error
}

type exporterFunc struct {
	name string
	fn   func(ctx context.Context, s *summary.Summary) error
}

func (e exporterFunc) Name() string { return e.name }
func (e exporterFunc) Export(ctx context.Context, s *summary.Summary) error {
	return e.fn(ctx, s)
}

// ExporterFunc names a function as an Exporter.
func ExporterFunc(name string, fn func(ctx context.Context, s *summary.Summary) error) Exporter {
	return exporterFunc{name: name, fn: fn}
}

// RunExporters hands every summary on feed to each exporter, in order,
// until ctx is done. Summaries already received when ctx is done are still
// exported. Exporter errors are logged and do not stop the loop.
// The returned wait blocks until the loop has exited.
func RunExporters(ctx context.Context, feed *event.FeedOf[*summary.Summary], exporters ...Exporter) (wait func()) {
	ch := make(chan *summary.Summary, 16)
	sub := feed.Subscribe(ch)
	logger := slog.With("d", "exporters")
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				sub.Unsubscribe()
				drainCtx := context.WithoutCancel(ctx)
				for {
					select {
					case s := <-ch:
						export(drainCtx, logger, s, exporters)
					default:
						return
					}
				}
			case err := <-sub.Err():
				if err != nil {
					logger.Error("Summary subscription failed", "error", err)
				}
				return
			case s := <-ch:
				export(ctx, logger, s, exporters)
			}
		}
	}()
	return wg.Wait
}

func export(ctx context.Context, logger *slog.Logger, s *summary.Summary, exporters []Exporter) {
	for _, e := range exporters {
		if err := e.Export(ctx, s); err != nil {
			logger.Warn("Export failed", "exporter", e.Name(), "id", s.ID, "error", err)
			continue
		}
		logger.Debug("Exported activity", "exporter", e.Name(), "id", s.ID)
	}
}
