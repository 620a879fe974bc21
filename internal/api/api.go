/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP surface: public channel, playback and
// guide reads, the now-playing websocket, and the authenticated admin
// operations.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/mimir_tv/internal/audit"
	"github.com/friendsincode/mimir_tv/internal/auth"
	"github.com/friendsincode/mimir_tv/internal/autogen"
	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/guide"
	"github.com/friendsincode/mimir_tv/internal/importer"
	"github.com/friendsincode/mimir_tv/internal/logbuffer"
	"github.com/friendsincode/mimir_tv/internal/playout"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/friendsincode/mimir_tv/internal/version"
)

// API exposes HTTP handlers.
type API struct {
	registry     *registry.Store
	catalog      catalog.Gateway
	director     *playout.Director
	states       *state.Store
	simulator    *guide.Simulator
	refresher    *guide.Refresher
	generator    *autogen.Generator
	importer     *importer.Importer
	auditSvc     *audit.Service
	cache        *cache.Cache
	bus          events.PubSub
	logBuffer    *logbuffer.Buffer
	checker      *version.Checker
	archiver     *guide.Archiver
	adminKeyHash string
	jwtSecret    []byte
	sessionTTL   time.Duration
	logger       zerolog.Logger
}

// New creates the API router wrapper.
func New(reg *registry.Store, cat catalog.Gateway, director *playout.Director, states *state.Store, sim *guide.Simulator, refresher *guide.Refresher, generator *autogen.Generator, imp *importer.Importer, auditSvc *audit.Service, c *cache.Cache, bus events.PubSub, logBuf *logbuffer.Buffer, checker *version.Checker, adminKeyHash string, jwtSecret []byte, sessionTTL time.Duration, logger zerolog.Logger) *API {
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}
	return &API{
		registry:     reg,
		catalog:      cat,
		director:     director,
		states:       states,
		simulator:    sim,
		refresher:    refresher,
		generator:    generator,
		importer:     imp,
		auditSvc:     auditSvc,
		cache:        c,
		bus:          bus,
		logBuffer:    logBuf,
		checker:      checker,
		adminKeyHash: adminKeyHash,
		jwtSecret:    jwtSecret,
		sessionTTL:   sessionTTL,
		logger:       logger.With().Str("component", "api").Logger(),
	}
}

// SetArchiver enables the snapshot archive endpoints.
func (a *API) SetArchiver(archiver *guide.Archiver) {
	a.archiver = archiver
}

// Routes registers every route on r.
func (a *API) Routes(r chi.Router) {
	r.Get("/healthz", a.handleHealth)
	r.Get("/guide.xml", a.handleGuideXML)
	r.Get("/lineup.m3u", a.handleLineupM3U)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/version", a.handleVersion)

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", a.handleChannelsList)
			r.Route("/{channelID}", func(r chi.Router) {
				r.Get("/", a.handleChannelGet)
				r.Get("/playback", a.handlePlayback)
				r.Post("/playback/advance", a.handleAdvance)
				r.Get("/guide", a.handleChannelGuide)
				r.Post("/record", a.handleRecord)
			})
		})

		// Recording is structurally refused, the routes exist so DVR
		// clients get a clean 501 instead of a 404.
		r.Get("/recordings", a.handleRecordingsList)
		r.Delete("/recordings/{recordingID}", a.handleRecordingDelete)

		r.Group(func(er chi.Router) {
			er.Use(a.authMiddleware())
			er.Get("/events", a.handleEvents)
		})

		r.Route("/admin", func(ar chi.Router) {
			ar.Use(a.authMiddleware())
			ar.Use(auth.RequireAdmin)

			ar.Route("/channels", func(cr chi.Router) {
				cr.Post("/", a.handleChannelCreate)
				cr.Route("/{channelID}", func(ir chi.Router) {
					ir.Put("/", a.handleChannelUpdate)
					ir.Delete("/", a.handleChannelDelete)
					ir.Post("/reset", a.handleChannelReset)
				})
			})

			ar.Post("/guide/refresh", a.handleGuideRefresh)
			ar.Post("/autogen", a.handleAutogen)
			ar.Post("/import", a.handleImport)
			ar.Get("/export", a.handleExport)

			ar.Route("/logs", func(lr chi.Router) {
				lr.Get("/", a.handleLogs)
				lr.Get("/components", a.handleLogComponents)
				lr.Get("/stats", a.handleLogStats)
				lr.Delete("/", a.handleClearLogs)
			})

			ar.Get("/audit", a.handleAuditList)

			ar.Get("/archive", a.handleArchiveList)
			ar.Get("/archive/*", a.handleArchiveFetch)
		})
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":  "ok",
		"version": version.Version,
	}
	if a.cache != nil {
		health["cache"] = a.cache.IsAvailable()
	}
	writeJSON(w, http.StatusOK, health)
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	if a.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
		return
	}
	writeJSON(w, http.StatusOK, a.checker.Info())
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminKey string `json:"admin_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if err := auth.VerifyAdminKey(a.adminKeyHash, req.AdminKey); err != nil {
		a.logger.Warn().Str("remote", r.RemoteAddr).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid_key")
		return
	}

	token, err := auth.Issue(a.jwtSecret, auth.RoleAdmin, a.sessionTTL)
	if err != nil {
		a.logger.Error().Err(err).Msg("token issue failed")
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(a.sessionTTL.Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
