/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/friendsincode/mimir_tv/internal/adbreak"
	"github.com/friendsincode/mimir_tv/internal/api"
	"github.com/friendsincode/mimir_tv/internal/audit"
	"github.com/friendsincode/mimir_tv/internal/autogen"
	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/config"
	"github.com/friendsincode/mimir_tv/internal/db"
	"github.com/friendsincode/mimir_tv/internal/eventbus"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/guide"
	"github.com/friendsincode/mimir_tv/internal/importer"
	"github.com/friendsincode/mimir_tv/internal/logbuffer"
	"github.com/friendsincode/mimir_tv/internal/playout"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/friendsincode/mimir_tv/internal/selector"
	"github.com/friendsincode/mimir_tv/internal/storage"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/friendsincode/mimir_tv/internal/version"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	logBuffer *logbuffer.Buffer
	bus       events.PubSub
	api       *api.API
	auditSvc  *audit.Service
	refresher *guide.Refresher
	checker   *version.Checker

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "mimir-tv-api")
	})
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for the event websocket (long-running connection)
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		logBuffer: logBuf,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: srv.router,
		// Keep the header deadline to protect against slowloris. The write
		// deadline stays off so the event websocket is not cut mid stream;
		// the middleware timeout (60s) covers regular routes.
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		s.logger.Warn().Err(err).Msg("gorm telemetry callbacks not registered")
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	// Redis cache for channel lineups, guide windows and catalog items
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	entityCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	s.cache = entityCache
	s.DeferClose(entityCache.Close)

	bus, err := s.buildEventBus()
	if err != nil {
		return err
	}
	s.bus = bus

	cat := catalog.New(database, s.logger)
	cat.SetCache(entityCache)
	reg := registry.New(database, s.logger)

	sel := selector.New(cat, s.logger)
	breaks := adbreak.NewResolver(cat, s.logger)
	states := state.NewStore(s.cfg.PlaybackSeed)
	director := playout.NewDirector(reg, sel, breaks, states, s.bus, s.logger)

	sim := guide.NewSimulator(sel, s.logger)
	s.refresher = guide.NewRefresher(reg, sim, entityCache, s.bus,
		s.cfg.GuideHorizon, s.cfg.GuideRefreshInterval, s.logger)

	generator := autogen.New(reg, cat, s.bus, s.logger)
	imp := importer.New(reg, s.bus, s.logger)

	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.checker = version.NewChecker(s.logger)

	s.api = api.New(reg, cat, director, states, sim, s.refresher,
		generator, imp, s.auditSvc, entityCache, s.bus, s.logBuffer, s.checker,
		s.cfg.AdminKeyHash, []byte(s.cfg.JWTSigningKey), s.cfg.SessionTTL, s.logger)

	if s.cfg.GuideArchiveEnabled() {
		store, err := storage.NewS3Store(context.Background(), storage.S3Config{
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			Region:          s.cfg.S3Region,
			Bucket:          s.cfg.S3Bucket,
			Endpoint:        s.cfg.S3Endpoint,
			PublicBaseURL:   s.cfg.S3PublicBaseURL,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("guide archive disabled: object store init failed")
		} else {
			archiver := guide.NewArchiver(store, s.logger)
			s.refresher.SetArchiver(archiver)
			s.api.SetArchiver(archiver)
			s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("guide archive enabled")
		}
	}

	return nil
}

// buildEventBus returns the in-process bus or, when configured, a bridge
// that replicates events across instances.
func (s *Server) buildEventBus() (events.PubSub, error) {
	switch s.cfg.EventBridge {
	case "nats":
		nb, err := eventbus.NewNATSBus(s.cfg.NATSURL, s.cfg.InstanceID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("nats event bridge: %w", err)
		}
		s.DeferClose(nb.Close)
		return nb, nil
	case "redis":
		rcfg := eventbus.DefaultRedisConfig()
		rcfg.Addr = s.cfg.RedisAddr
		rcfg.Password = s.cfg.RedisPassword
		rcfg.DB = s.cfg.RedisDB
		rb, err := eventbus.NewRedisBus(rcfg, s.cfg.InstanceID, s.logger)
		if err != nil {
			return nil, fmt.Errorf("redis event bridge: %w", err)
		}
		s.DeferClose(rb.Close)
		return rb, nil
	default:
		return events.NewBus(), nil
	}
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// LogBuffer returns the server's log buffer for attaching to zerolog.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error().Err(err).Msg("guide refresher exited")
		}
	}()

	s.checker.Start(ctx)

	// Database connection pool metrics
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.auditSvc.Start(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runHeartbeat(ctx)
	}()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.runCacheInvalidationListener(ctx)
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

// runHeartbeat publishes a periodic health event for socket subscribers.
func (s *Server) runHeartbeat(ctx context.Context) {
	start := time.Now()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.bus.Publish(events.EventHealth, events.Payload{
				"event":          "heartbeat",
				"instance_id":    s.cfg.InstanceID,
				"uptime_seconds": int64(time.Since(start).Seconds()),
				"cache":          s.cache.IsAvailable(),
			})
		}
	}
}

// runCacheInvalidationListener keeps this node's cache coherent with
// lineup changes, including changes bridged in from other instances. The
// content and library topics have no publisher in this process; they
// arrive over the bridge from the media manager that owns those tables.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	channelCreated := s.bus.Subscribe(events.EventChannelCreated)
	channelUpdated := s.bus.Subscribe(events.EventChannelUpdated)
	channelDeleted := s.bus.Subscribe(events.EventChannelDeleted)
	contentUpdated := s.bus.Subscribe(events.EventContentUpdated)
	contentDeleted := s.bus.Subscribe(events.EventContentDeleted)
	libraryUpdated := s.bus.Subscribe(events.EventLibraryUpdated)

	defer func() {
		s.bus.Unsubscribe(events.EventChannelCreated, channelCreated)
		s.bus.Unsubscribe(events.EventChannelUpdated, channelUpdated)
		s.bus.Unsubscribe(events.EventChannelDeleted, channelDeleted)
		s.bus.Unsubscribe(events.EventContentUpdated, contentUpdated)
		s.bus.Unsubscribe(events.EventContentDeleted, contentDeleted)
		s.bus.Unsubscribe(events.EventLibraryUpdated, libraryUpdated)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidateChannel := func(payload events.Payload) {
		s.cache.InvalidateChannelList(ctx)
		if channelID, ok := payload["channel_id"].(string); ok {
			s.cache.InvalidateChannel(ctx, channelID)
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case payload := <-channelCreated:
			s.logger.Debug().Msg("invalidating channel cache (channel created)")
			invalidateChannel(payload)

		case payload := <-channelUpdated:
			s.logger.Debug().Msg("invalidating channel cache (channel updated)")
			invalidateChannel(payload)

		case payload := <-channelDeleted:
			s.logger.Debug().Msg("invalidating channel cache (channel deleted)")
			invalidateChannel(payload)

		case payload := <-contentUpdated:
			if contentID, ok := payload["content_id"].(string); ok {
				s.logger.Debug().Str("content_id", contentID).Msg("invalidating content cache (content updated)")
				s.cache.InvalidateContentItem(ctx, contentID)
			}

		case payload := <-contentDeleted:
			if contentID, ok := payload["content_id"].(string); ok {
				s.logger.Debug().Str("content_id", contentID).Msg("invalidating content cache (content deleted)")
				s.cache.InvalidateContentItem(ctx, contentID)
			}

		case <-libraryUpdated:
			// Library membership drives facet channels, so every simulated
			// window is suspect.
			s.logger.Debug().Msg("invalidating guide cache (library updated)")
			s.cache.InvalidateAllGuides(ctx)
		}
	}
}

func (s *Server) configureRoutes() {
	s.router.Handle("/metrics", telemetry.Handler())
	s.api.Routes(s.router)
}
