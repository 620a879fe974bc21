/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package guide projects channel schedules forward into program guide
// windows and serves them as JSON or XMLTV. Projection is read only: it
// never touches live playback state, so a guide request cannot move a
// channel's cursor or trigger a break.
package guide

import (
	"context"
	"time"

	"github.com/friendsincode/mimir_tv/internal/adbreak"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/schedule"
	"github.com/friendsincode/mimir_tv/internal/selector"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	// defaultRuntime stands in for items the catalog has no runtime for.
	defaultRuntime = 30 * time.Minute

	// entryGap separates consecutive guide entries.
	entryGap = time.Minute
)

// ProgramEntry is one row of a channel's guide window.
type ProgramEntry struct {
	ChannelID string             `json:"channel_id"`
	ItemID    string             `json:"item_id"`
	Title     string             `json:"title"`
	Overview  string             `json:"overview,omitempty"`
	Kind      models.ContentKind `json:"kind"`
	Start     time.Time          `json:"start"`
	End       time.Time          `json:"end"`
}

// Simulator walks a channel definition forward in time.
type Simulator struct {
	selector *selector.Engine
	logger   zerolog.Logger
}

// NewSimulator creates a guide simulator.
func NewSimulator(sel *selector.Engine, logger zerolog.Logger) *Simulator {
	return &Simulator{
		selector: sel,
		logger:   logger.With().Str("component", "guide").Logger(),
	}
}

// Simulate projects the channel from start to end. Each entry spans the
// item's runtime plus the estimated commercial time; consecutive entries
// sit exactly one minute apart. The walk stops early when the simulated
// instant has no resolvable content, and checks ctx per item so a wide
// window stays cancellable.
//
// Series items are listed as themselves: which episode airs depends on
// live state the projection must not read.
func (s *Simulator) Simulate(ctx context.Context, channel *models.Channel, start, end time.Time) ([]ProgramEntry, error) {
	began := time.Now()
	entries, err := s.walk(ctx, channel, start, end)

	status := "ok"
	if err != nil {
		status = "cancelled"
	}
	telemetry.GuideSimulationsTotal.WithLabelValues(status).Inc()
	telemetry.GuideSimulationDuration.Observe(time.Since(began).Seconds())

	if err != nil {
		return nil, err
	}
	s.logger.Debug().
		Str("channel", channel.ID).
		Time("start", start).
		Time("end", end).
		Int("entries", len(entries)).
		Msg("guide window simulated")
	return entries, nil
}

func (s *Simulator) walk(ctx context.Context, channel *models.Channel, start, end time.Time) ([]ProgramEntry, error) {
	var entries []ProgramEntry
	clock := start

	for clock.Before(end) {
		block := schedule.ActiveBlock(channel.Blocks, schedule.TimeOfDay(clock))
		if block == nil {
			break
		}
		set := s.selector.ResolveContentSet(ctx, channel, block)
		if len(set) == 0 {
			break
		}

		for _, item := range set {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !clock.Before(end) {
				return entries, nil
			}

			runtime := effectiveRuntime(item)
			span := runtime
			if channel.Commercials.Enabled {
				span += adbreak.EstimateBreakTime(channel.Commercials, runtime)
			}

			entries = append(entries, ProgramEntry{
				ChannelID: channel.ID,
				ItemID:    item.ID,
				Title:     item.Name,
				Overview:  item.Overview,
				Kind:      item.Kind,
				Start:     clock,
				End:       clock.Add(span),
			})
			clock = clock.Add(span + entryGap)
		}
	}

	return entries, nil
}

func effectiveRuntime(item models.ContentItem) time.Duration {
	if item.Runtime <= 0 {
		return defaultRuntime
	}
	return item.Runtime
}
