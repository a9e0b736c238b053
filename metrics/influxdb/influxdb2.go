package influxdb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fitzone/zoned/events"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/summary"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var ErrNotConfigured = errors.New("influxdb: no url configured")

// Points renders an activity as one "activity" point at its end time and
// one "fix" point per path fix.
func Points(s *summary.Summary) []*write.Point {
	out := make([]*write.Point, 0, len(s.Path)+1)
	p := influxdb2.NewPointWithMeasurement("activity").
		SetTime(s.EndTime).
		AddTag("athlete", s.Athlete.String()).
		AddTag("kind", s.Kind.String()).
		AddField("distance", s.DistanceMeters).
		AddField("duration", s.DurationSeconds).
		AddField("calories", s.Calories).
		AddField("loops", s.LoopCount).
		AddField("xp", s.XP).
		AddField("zones", len(s.ZonesVisited)).
		AddField("speed_mean", s.Speed.CalculatedMean).
		AddField("elevation_gain", s.Elevation.Gain)
	if s.Place != nil && s.Place.Country != "" {
		p.AddTag("country", s.Place.Country)
	}
	out = append(out, p)

	for _, f := range s.Path {
		fp := influxdb2.NewPointWithMeasurement("fix").
			SetTime(f.Time()).
			AddTag("athlete", s.Athlete.String()).
			AddTag("activity", s.ID.String()).
			AddField("latitude", f.Lat()).
			AddField("longitude", f.Lng())
		if f.Accuracy != nil {
			fp.AddField("accuracy", *f.Accuracy)
		}
		if f.Altitude != nil {
			fp.AddField("elevation", *f.Altitude)
		}
		if v, ok := f.ReportedSpeed(); ok {
			fp.AddField("speed", v)
		}
		if f.Heading != nil {
			fp.AddField("heading", *f.Heading)
		}
		out = append(out, fp)
	}
	return out
}

// ExportSummaries posts activities to an InfluxDB Write API.
// The Write API will buffer and flush.
// The last error encountered is returned.
func ExportSummaries(config *params.InfluxConfig, summaries []*summary.Summary) error {
	if config == nil || config.URL == "" {
		return ErrNotConfigured
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Second)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	writeAPI := client.WriteAPI(config.Org, config.Bucket)

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	errorsCh := writeAPI.Errors()
	var err error
	wait := sync.WaitGroup{}
	wait.Add(1)
	go func() {
		defer wait.Done()
		for e := range errorsCh {
			if e != nil {
				err = e
			}
		}
	}()

	for _, s := range summaries {
		for _, p := range Points(s) {
			writeAPI.WritePoint(p)
		}
	}
	writeAPI.Flush()
	client.Close()
	wait.Wait()
	return err
}

// NewExporter exports each finished activity as it happens.
func NewExporter(config *params.InfluxConfig) events.Exporter {
	return events.ExporterFunc("influxdb", func(_ context.Context, s *summary.Summary) error {
		return ExportSummaries(config, []*summary.Summary{s})
	})
}
