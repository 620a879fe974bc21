/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/guide"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/playout"
)

// itemResponse is the wire shape of a catalog item.
type itemResponse struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	Overview       string   `json:"overview,omitempty"`
	RuntimeSeconds int64    `json:"runtime_seconds"`
	Genres         []string `json:"genres,omitempty"`
	Rating         string   `json:"rating,omitempty"`
	Year           int      `json:"year,omitempty"`
	Season         int      `json:"season,omitempty"`
	Episode        int      `json:"episode,omitempty"`
}

func itemFromModel(item *models.ContentItem) *itemResponse {
	if item == nil {
		return nil
	}
	return &itemResponse{
		ID:             item.ID,
		Name:           item.Name,
		Kind:           string(item.Kind),
		Overview:       item.Overview,
		RuntimeSeconds: int64(item.Runtime.Seconds()),
		Genres:         item.GenreList(),
		Rating:         item.Rating,
		Year:           item.Year,
		Season:         item.Season,
		Episode:        item.Episode,
	}
}

// playbackResponse is the wire shape of a playback answer.
type playbackResponse struct {
	ChannelID     string                `json:"channel_id"`
	ChannelName   string                `json:"channel_name"`
	OnAir         bool                  `json:"on_air"`
	Item          *itemResponse         `json:"item,omitempty"`
	Source        string                `json:"source,omitempty"`
	StartedAt     *time.Time            `json:"started_at,omitempty"`
	OffsetSeconds int64                 `json:"offset_seconds"`
	Locator       playout.StreamLocator `json:"locator"`
}

func playbackFromAnswer(answer *playout.PlaybackAnswer) playbackResponse {
	resp := playbackResponse{
		ChannelID:     answer.ChannelID,
		ChannelName:   answer.ChannelName,
		OnAir:         answer.Item != nil,
		Item:          itemFromModel(answer.Item),
		OffsetSeconds: int64(answer.Offset.Seconds()),
		Locator:       answer.Locator,
	}
	if answer.Item != nil {
		resp.Source = string(answer.Source)
		started := answer.StartedAt
		resp.StartedAt = &started
	}
	return resp
}

func (a *API) handleChannelsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if cached, ok := a.cache.GetChannelList(ctx); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	channels, err := a.registry.ListChannels(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("list channels failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	out := make([]cache.CachedChannel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, cache.CachedChannel{
			ID:      ch.ID,
			Name:    ch.Name,
			Number:  ch.Number,
			Enabled: ch.Enabled,
		})
	}
	if err := a.cache.SetChannelList(ctx, out); err != nil {
		a.logger.Debug().Err(err).Msg("channel list cache write failed")
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleChannelGet(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	type blockResponse struct {
		ID           string   `json:"id"`
		Name         string   `json:"name,omitempty"`
		Start        string   `json:"start"`
		End          string   `json:"end,omitempty"`
		Kind         string   `json:"kind,omitempty"`
		Mode         string   `json:"mode"`
		EpisodeOrder bool     `json:"episode_order"`
		Refs         []string `json:"refs,omitempty"`
	}
	resp := struct {
		ID          string                  `json:"id"`
		Name        string                  `json:"name"`
		Number      int                     `json:"number"`
		Enabled     bool                    `json:"enabled"`
		Commercials models.CommercialPolicy `json:"commercials"`
		Criteria    *models.FacetCriteria   `json:"criteria,omitempty"`
		Blocks      []blockResponse         `json:"blocks"`
	}{
		ID:          channel.ID,
		Name:        channel.Name,
		Number:      channel.Number,
		Enabled:     channel.Enabled,
		Commercials: channel.Commercials,
		Blocks:      make([]blockResponse, 0, len(channel.Blocks)),
	}
	if criteria, err := channel.Criteria(); err == nil {
		resp.Criteria = criteria
	}
	for _, block := range channel.Blocks {
		out := blockResponse{
			ID:           block.ID,
			Name:         block.Name,
			Start:        formatOffset(block.StartOffset),
			Kind:         string(block.ContentKind),
			Mode:         string(block.SelectionMode),
			EpisodeOrder: block.EpisodeOrder,
			Refs:         block.RefIDs(),
		}
		if block.EndOffset != nil {
			out.End = formatOffset(*block.EndOffset)
		}
		resp.Blocks = append(resp.Blocks, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePlayback(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")

	answer, err := a.director.CurrentPlayback(r.Context(), channelID, time.Now().UTC())
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channelID).Msg("playback evaluation failed")
		writeError(w, http.StatusInternalServerError, "playback_error")
		return
	}
	if answer == nil {
		writeError(w, http.StatusNotFound, "channel_not_found")
		return
	}
	writeJSON(w, http.StatusOK, playbackFromAnswer(answer))
}

func (a *API) handleAdvance(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	a.director.Advance(r.Context(), channelID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleRecord(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if err := a.director.Record(r.Context(), channelID); err != nil {
		if errors.Is(err, playout.ErrRecordingUnsupported) {
			writeError(w, http.StatusNotImplemented, "recording_unsupported")
			return
		}
		writeError(w, http.StatusInternalServerError, "record_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleRecordingsList(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "recording_unsupported")
}

func (a *API) handleRecordingDelete(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotImplemented, "recording_unsupported")
}

// handleChannelGuide serves a simulated window for one channel. Without
// explicit bounds it serves the cached refresher window when available.
func (a *API) handleChannelGuide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID := chi.URLParam(r, "channelID")

	startParam := r.URL.Query().Get("start")
	endParam := r.URL.Query().Get("end")

	if startParam == "" && endParam == "" {
		if programs, ok := a.cache.GetGuide(ctx, channelID); ok {
			writeJSON(w, http.StatusOK, programs)
			return
		}
	}

	now := time.Now().UTC()
	start, end := now, now.Add(12*time.Hour)
	var err error
	if startParam != "" {
		if start, err = time.Parse(time.RFC3339, startParam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start")
			return
		}
	}
	if endParam != "" {
		if end, err = time.Parse(time.RFC3339, endParam); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end")
			return
		}
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "empty_window")
		return
	}
	if end.Sub(start) > 7*24*time.Hour {
		writeError(w, http.StatusBadRequest, "window_too_large")
		return
	}

	channel, ok := a.loadChannel(w, r)
	if !ok {
		return
	}

	entries, err := a.simulator.Simulate(ctx, channel, start, end)
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channelID).Msg("guide simulation failed")
		writeError(w, http.StatusInternalServerError, "guide_error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGuideXML renders the full lineup as XMLTV.
func (a *API) handleGuideXML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channels, err := a.registry.GetEnabledChannels(ctx)
	if err != nil {
		a.logger.Error().Err(err).Msg("guide channels load failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	now := time.Now().UTC()
	programs := make(map[string][]guide.ProgramEntry, len(channels))
	for i := range channels {
		ch := channels[i]
		if cached, ok := a.cache.GetGuide(ctx, ch.ID); ok {
			programs[ch.ID] = programsFromCache(cached)
			continue
		}
		entries, err := a.simulator.Simulate(ctx, &ch, now, now.Add(12*time.Hour))
		if err != nil {
			a.logger.Warn().Err(err).Str("channel_id", ch.ID).Msg("guide simulation failed")
			continue
		}
		programs[ch.ID] = entries
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	if err := guide.WriteXMLTV(w, channels, programs); err != nil {
		a.logger.Error().Err(err).Msg("xmltv render failed")
	}
}

// handleLineupM3U renders the enabled channels as an IPTV playlist.
func (a *API) handleLineupM3U(w http.ResponseWriter, r *http.Request) {
	channels, err := a.registry.GetEnabledChannels(r.Context())
	if err != nil {
		a.logger.Error().Err(err).Msg("lineup channels load failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, ch := range channels {
		locator := playout.Locator(ch.ID)
		fmt.Fprintf(&b, "#EXTINF:-1 tvg-id=%q tvg-chno=\"%d\" tvg-name=%q,%s\n",
			ch.ID, ch.Number, ch.Name, ch.Name)
		b.WriteString(locator.URI)
		b.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "audio/x-mpegurl")
	_, _ = w.Write([]byte(b.String()))
}

// loadChannel resolves {channelID}, answering 404/500 itself. The second
// return is false when a response was already written.
func (a *API) loadChannel(w http.ResponseWriter, r *http.Request) (*models.Channel, bool) {
	channelID := chi.URLParam(r, "channelID")

	channel, err := a.registry.GetChannel(r.Context(), channelID)
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", channelID).Msg("channel load failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	if channel == nil {
		writeError(w, http.StatusNotFound, "channel_not_found")
		return nil, false
	}
	return channel, true
}

func programsFromCache(cached []cache.CachedProgram) []guide.ProgramEntry {
	entries := make([]guide.ProgramEntry, 0, len(cached))
	for _, p := range cached {
		entries = append(entries, guide.ProgramEntry{
			ChannelID: p.ChannelID,
			ItemID:    p.ItemID,
			Title:     p.Title,
			Overview:  p.Overview,
			Kind:      models.ContentKind(p.Kind),
			Start:     p.Start,
			End:       p.End,
		})
	}
	return entries
}

func formatOffset(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
