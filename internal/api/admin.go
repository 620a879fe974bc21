/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/mimir_tv/internal/auth"
	"github.com/friendsincode/mimir_tv/internal/autogen"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/importer"
	"github.com/friendsincode/mimir_tv/internal/logbuffer"
	"github.com/friendsincode/mimir_tv/internal/registry"
)

func (a *API) handleChannelCreate(w http.ResponseWriter, r *http.Request) {
	var entry importer.LineupChannel
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	channel, err := importer.ChannelFromLineup(&entry)
	if err != nil {
		a.logger.Debug().Err(err).Msg("channel create rejected")
		writeError(w, http.StatusBadRequest, "invalid_channel")
		return
	}

	ctx := r.Context()
	if err := a.registry.CreateChannel(ctx, channel); err != nil {
		if errors.Is(err, registry.ErrChannelNumberTaken) {
			writeError(w, http.StatusConflict, "number_taken")
			return
		}
		a.logger.Error().Err(err).Msg("channel create failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	if err := a.cache.InvalidateChannelList(ctx); err != nil {
		a.logger.Debug().Err(err).Msg("channel list invalidation failed")
	}
	a.bus.Publish(events.EventChannelCreated, events.Payload{
		"channel_id": channel.ID,
		"source":     "api",
	})
	a.publishAuditEvent(r, events.EventAuditChannelCreate, events.Payload{
		"channel_id": channel.ID,
		"number":     channel.Number,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     channel.ID,
		"name":   channel.Name,
		"number": channel.Number,
	})
}

func (a *API) handleChannelUpdate(w http.ResponseWriter, r *http.Request) {
	existing, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	var entry importer.LineupChannel
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	channel, err := importer.ChannelFromLineup(&entry)
	if err != nil {
		a.logger.Debug().Err(err).Str("channel_id", existing.ID).Msg("channel update rejected")
		writeError(w, http.StatusBadRequest, "invalid_channel")
		return
	}
	channel.ID = existing.ID

	ctx := r.Context()
	if err := a.registry.UpdateChannel(ctx, channel); err != nil {
		a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("channel update failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	// Block layout or policy changes invalidate playback cursors.
	a.director.Reset(channel.ID)
	if err := a.cache.InvalidateChannel(ctx, channel.ID); err != nil {
		a.logger.Debug().Err(err).Msg("channel cache invalidation failed")
	}
	a.bus.Publish(events.EventChannelUpdated, events.Payload{"channel_id": channel.ID})
	a.publishAuditEvent(r, events.EventAuditChannelUpdate, events.Payload{
		"channel_id": channel.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"id": channel.ID, "status": "updated"})
}

func (a *API) handleChannelDelete(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := a.registry.DeleteChannel(ctx, channel.ID); err != nil {
		a.logger.Error().Err(err).Str("channel_id", channel.ID).Msg("channel delete failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	a.director.Reset(channel.ID)
	if err := a.cache.InvalidateChannel(ctx, channel.ID); err != nil {
		a.logger.Debug().Err(err).Msg("channel cache invalidation failed")
	}
	a.bus.Publish(events.EventChannelDeleted, events.Payload{"channel_id": channel.ID})
	a.publishAuditEvent(r, events.EventAuditChannelDelete, events.Payload{
		"channel_id": channel.ID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleChannelReset(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	a.director.Reset(channel.ID)
	a.logger.Info().Str("channel_id", channel.ID).Msg("playback state reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (a *API) handleGuideRefresh(w http.ResponseWriter, r *http.Request) {
	a.refresher.RefreshNow(r.Context())
	a.publishAuditEvent(r, events.EventAuditGuideRefresh, events.Payload{
		"resource_type": "guide",
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (a *API) handleAutogen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Genres      []string `json:"genres"`
		Decades     []int    `json:"decades"`
		MinItems    int      `json:"min_items"`
		StartNumber int      `json:"start_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if len(req.Genres) == 0 && len(req.Decades) == 0 {
		writeError(w, http.StatusBadRequest, "no_facets")
		return
	}

	ctx := r.Context()
	result, err := a.generator.Run(ctx, autogen.Options{
		Genres:      req.Genres,
		Decades:     req.Decades,
		MinItems:    req.MinItems,
		StartNumber: req.StartNumber,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("autogen run failed")
		writeError(w, http.StatusInternalServerError, "autogen_failed")
		return
	}

	if len(result.Created) > 0 {
		if err := a.cache.InvalidateChannelList(ctx); err != nil {
			a.logger.Debug().Err(err).Msg("channel list invalidation failed")
		}
	}
	a.publishAuditEvent(r, events.EventAuditChannelCreate, events.Payload{
		"source":  "autogen",
		"created": len(result.Created),
		"skipped": len(result.Skipped),
	})
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	opts := importer.Options{DryRun: r.URL.Query().Get("dry_run") == "true"}

	report, err := a.importer.ImportLineup(r.Context(), r.Body, opts)
	if err != nil {
		a.logger.Debug().Err(err).Msg("lineup import rejected")
		writeError(w, http.StatusBadRequest, "invalid_lineup")
		return
	}

	if !opts.DryRun && report.ChannelsImported > 0 {
		if err := a.cache.InvalidateChannelList(r.Context()); err != nil {
			a.logger.Debug().Err(err).Msg("channel list invalidation failed")
		}
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.importer.ExportLineup(r.Context(), &buf); err != nil {
		a.logger.Error().Err(err).Msg("lineup export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="lineup.yaml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		ChannelID:  r.URL.Query().Get("channel_id"),
		Search:     r.URL.Query().Get("search"),
		Descending: true,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	} else {
		params.Limit = 500
	}
	if r.URL.Query().Get("order") == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)

	channelIDs := make(map[string]bool)
	for _, entry := range entries {
		if cid, ok := entry.Fields["channel_id"].(string); ok && cid != "" {
			channelIDs[cid] = true
		}
	}
	channelNames := make(map[string]string)
	if len(channelIDs) > 0 {
		if channels, err := a.registry.ListChannels(r.Context()); err == nil {
			for _, ch := range channels {
				if channelIDs[ch.ID] {
					channelNames[ch.ID] = ch.Name
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":       entries,
		"count":         len(entries),
		"channel_names": channelNames,
	})
}

func (a *API) handleLogComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	components := a.logBuffer.Components(r.URL.Query().Get("channel_id"))
	writeJSON(w, http.StatusOK, map[string]any{"components": components})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, a.logBuffer.Stats(r.URL.Query().Get("channel_id")))
}

func (a *API) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	a.logBuffer.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (a *API) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if a.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable")
		return
	}

	keys, err := a.archiver.Snapshots(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("snapshot list failed")
		writeError(w, http.StatusInternalServerError, "archive_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": keys})
}

func (a *API) handleArchiveFetch(w http.ResponseWriter, r *http.Request) {
	if a.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "archive_unavailable")
		return
	}

	key := chi.URLParam(r, "*")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key_required")
		return
	}

	data, err := a.archiver.Fetch(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "snapshot_not_found")
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(data)
}

func (a *API) auditContext(r *http.Request) events.Payload {
	payload := events.Payload{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims != nil {
		payload["role"] = claims.Role
	}
	return payload
}

// publishAuditEvent publishes an audit event with request context merged in.
func (a *API) publishAuditEvent(r *http.Request, eventType events.EventType, data events.Payload) {
	payload := a.auditContext(r)
	for k, v := range data {
		payload[k] = v
	}
	a.bus.Publish(eventType, payload)
}
