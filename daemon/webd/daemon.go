package webd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fitzone/zoned/cache"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/events"
	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/metrics/influxdb"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/recommend"
	"github.com/fitzone/zoned/rgeo"
	"github.com/fitzone/zoned/store"
	"github.com/fitzone/zoned/store/archive"
	"github.com/fitzone/zoned/store/flat"
	"github.com/fitzone/zoned/tracker"
	"github.com/fitzone/zoned/types/summary"
	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"
	"github.com/olahol/melody"
)

type WebDaemon struct {
	Config *params.WebDaemonConfig

	logger         *slog.Logger
	started        time.Time
	melodyInstance *melody.Melody
	store          store.Store
	flat           *flat.Flat
	dedupe         *cache.Dedupe
	ranker         *rank.Ranker
	recommender    *recommend.Recommender
	annotator      tracker.Annotator
	meters         *populateMeters
	feeds          *events.Feeds

	athletesMu sync.Mutex
	athletes   *ttlcache.Cache[conceptual.AthleteID, *athleteRuntime]

	ctx           context.Context
	cancel        context.CancelFunc
	waitExporters func()

	server      *http.Server
	interrupted atomic.Bool
	done        chan struct{}
	stopOnce    sync.Once
}

// NewWebDaemon opens the store and loads optional collaborators.
// It does not listen; see Start or Handler.
func NewWebDaemon(config *params.WebDaemonConfig) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultWebDaemonConfig()
	}
	logger := slog.With("d", "web")

	if err := os.MkdirAll(config.Store.DataDir, 0770); err != nil {
		return nil, err
	}
	st, err := store.Open(config.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	ranker := rank.NewRanker(config.Rank)
	recommender, err := recommend.New(config.Recommend, ranker)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	d := &WebDaemon{
		Config:      config,
		logger:      logger,
		store:       st,
		flat:        flat.NewFlatWithRoot(config.Store.DataDir),
		dedupe:      cache.NewDedupe(config.DedupeCacheSize),
		ranker:      ranker,
		recommender: recommender,
		meters:      newPopulateMeters(),
		feeds:       &events.Feeds{},
		athletes: ttlcache.New[conceptual.AthleteID, *athleteRuntime](
			ttlcache.WithTTL[conceptual.AthleteID, *athleteRuntime](config.AthleteIdleTTL)),
		done: make(chan struct{}),
	}

	if config.Rgeo {
		rg, err := rgeo.R()
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		d.annotator = rgeo.NewAnnotator(rg)
	}

	exporters, err := d.exporters()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.waitExporters = events.RunExporters(d.ctx, &d.feeds.Summaries, exporters...)

	d.athletes.OnEviction(func(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[conceptual.AthleteID, *athleteRuntime]) {
		if reason == ttlcache.EvictionReasonExpired {
			d.logger.Info("Athlete idle, tearing down", "athlete", item.Key())
		}
		item.Value().teardown(d.ctx)
	})
	go d.athletes.Start()

	d.initMelody()
	d.started = time.Now()
	return d, nil
}

func (d *WebDaemon) exporters() ([]events.Exporter, error) {
	out := []events.Exporter{
		events.ExporterFunc("flat", func(_ context.Context, s *summary.Summary) error {
			return d.flat.AppendActivity(s)
		}),
	}
	if d.Config.Influx != nil && d.Config.Influx.URL != "" {
		out = append(out, influxdb.NewExporter(d.Config.Influx))
	}
	if d.Config.Archive != nil && d.Config.Archive.Bucket != "" {
		a, err := archive.New(d.Config.Archive)
		if err != nil {
			return nil, err
		}
		out = append(out, events.ExporterFunc("s3", func(ctx context.Context, s *summary.Summary) error {
			_, err := a.Archive(ctx, s)
			return err
		}))
	}
	return out, nil
}

// athlete returns the athlete's runtime, creating it on first use.
// Every lookup pushes back its idle eviction.
func (d *WebDaemon) athlete(id conceptual.AthleteID) (*athleteRuntime, error) {
	d.athletesMu.Lock()
	defer d.athletesMu.Unlock()
	if item := d.athletes.Get(id); item != nil {
		return item.Value(), nil
	}
	if d.interrupted.Load() {
		return nil, ErrShuttingDown
	}
	rt, err := d.newAthleteRuntime(id)
	if err != nil {
		return nil, err
	}
	d.athletes.Set(id, rt, ttlcache.DefaultTTL)
	return rt, nil
}

// existingAthlete is like athlete but never creates one.
func (d *WebDaemon) existingAthlete(id conceptual.AthleteID) (*athleteRuntime, bool) {
	d.athletesMu.Lock()
	defer d.athletesMu.Unlock()
	item := d.athletes.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

var ErrShuttingDown = errors.New("web daemon shutting down")

// Handler returns the daemon's routes, for serving or testing.
func (d *WebDaemon) Handler() http.Handler {
	return d.NewRouter()
}

// Start listens and serves in the background.
// Stop it with Stop, then Wait.
func (d *WebDaemon) Start() error {
	listen, err := net.Listen(d.Config.ListenerConfig.Network, d.Config.ListenerConfig.Address)
	if err != nil {
		return err
	}
	d.server = &http.Server{Handler: d.Handler()}
	d.logger.Info("Web daemon listening",
		slog.Group("listen", "network", d.Config.Network, "address", listen.Addr().String()),
		"data", filepath.Clean(d.Config.Store.DataDir))
	go func() {
		err := d.server.Serve(listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("Web daemon serve error", "error", err)
		}
		d.Stop()
	}()
	return nil
}

// Run is Start then Wait.
func (d *WebDaemon) Run() error {
	if err := d.Start(); err != nil {
		return err
	}
	d.Wait()
	return nil
}

// Stop shuts the listener down and tears down every athlete.
// Athletes still tracking are stopped, so their activities are persisted.
func (d *WebDaemon) Stop() {
	d.stopOnce.Do(func() {
		d.interrupted.Store(true)
		defer close(d.done)

		if d.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := d.server.Shutdown(ctx); err != nil {
				d.logger.Warn("Web daemon shutdown", "error", err)
			}
			cancel()
		}
		_ = d.melodyInstance.Close()

		d.athletes.Stop()
		d.athletesMu.Lock()
		items := d.athletes.Items()
		d.athletesMu.Unlock()
		for _, item := range items {
			item.Value().teardown(d.ctx)
		}
		d.athletes.DeleteAll()

		d.cancel()
		d.waitExporters()
		d.meters.stop()

		if err := d.store.Close(); err != nil {
			d.logger.Error("Failed to close store", "error", err)
		}
		d.logger.Info("Web daemon stopped")
	})
}

func (d *WebDaemon) Wait() {
	<-d.done
}

// Done is closed once the daemon has stopped.
func (d *WebDaemon) Done() <-chan struct{} {
	return d.done
}

func (d *WebDaemon) NewRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware(d.Config.AccessLog))

	apiRoutes := router.NewRoute().Subrouter()

	// All API routes use permissive CORS settings.
	apiRoutes.Use(permissiveCorsMiddleware)

	// /ping is a simple server healthcheck endpoint
	apiRoutes.Path("/ping").HandlerFunc(pingPong)

	// Websocket upgrades must not get a JSON content type.
	apiRoutes.Path("/athletes/{athlete}/live").HandlerFunc(d.handleLive).Methods(http.MethodGet)

	apiJSONRoutes := apiRoutes.NewRoute().Subrouter()
	jsonMiddleware := contentTypeMiddlewareFunc("application/json")
	apiJSONRoutes.Use(jsonMiddleware)

	apiJSONRoutes.Path("/status").HandlerFunc(d.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/zones/{token}").HandlerFunc(handleZoneCell).Methods(http.MethodGet)

	athleteRoutes := apiJSONRoutes.PathPrefix("/athletes/{athlete}").Subrouter()

	athleteRoutes.Path("/populate").HandlerFunc(d.handlePopulate).Methods(http.MethodPost)
	athleteRoutes.Path("/populate/").HandlerFunc(d.handlePopulate).Methods(http.MethodPost)

	athleteRoutes.Path("/activity/start").HandlerFunc(d.handleStart).Methods(http.MethodPost)
	athleteRoutes.Path("/activity/pause").HandlerFunc(d.handlePause).Methods(http.MethodPost)
	athleteRoutes.Path("/activity/resume").HandlerFunc(d.handleResume).Methods(http.MethodPost)
	athleteRoutes.Path("/activity/stop").HandlerFunc(d.handleStop).Methods(http.MethodPost)

	athleteRoutes.Path("/snapshot").HandlerFunc(d.handleSnapshot).Methods(http.MethodGet)
	athleteRoutes.Path("/position").HandlerFunc(d.handlePosition).Methods(http.MethodGet)
	athleteRoutes.Path("/path").HandlerFunc(d.handlePath).Methods(http.MethodGet)

	athleteRoutes.Path("/stats").HandlerFunc(d.handleStats).Methods(http.MethodGet)
	athleteRoutes.Path("/activities").HandlerFunc(d.handleActivities).Methods(http.MethodGet)
	athleteRoutes.Path("/activities/{id}").HandlerFunc(d.handleActivity).Methods(http.MethodGet)
	athleteRoutes.Path("/activities/{id}/zones").HandlerFunc(d.handleActivityZones).Methods(http.MethodGet)
	athleteRoutes.Path("/archive").HandlerFunc(d.handleArchive).Methods(http.MethodGet)

	athleteRoutes.Path("/places/rank").HandlerFunc(d.handleRankPlaces).Methods(http.MethodPost)
	athleteRoutes.Path("/places/recommend").HandlerFunc(d.handleRecommendPlaces).Methods(http.MethodPost)

	athleteRoutes.Path("/map").HandlerFunc(d.handleMap).Methods(http.MethodGet, http.MethodPost)

	return router
}
