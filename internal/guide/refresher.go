/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"time"

	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/rs/zerolog"
)

// Refresher periodically re-simulates every enabled channel and warms the
// guide cache so API reads stay cheap.
type Refresher struct {
	registry  registry.Registry
	simulator *Simulator
	cache     *cache.Cache
	bus       events.PubSub
	archiver  *Archiver
	horizon   time.Duration
	interval  time.Duration
	logger    zerolog.Logger
}

// NewRefresher creates a guide refresher.
func NewRefresher(reg registry.Registry, sim *Simulator, c *cache.Cache, bus events.PubSub, horizon, interval time.Duration, logger zerolog.Logger) *Refresher {
	return &Refresher{
		registry:  reg,
		simulator: sim,
		cache:     c,
		bus:       bus,
		horizon:   horizon,
		interval:  interval,
		logger:    logger.With().Str("component", "guide_refresher").Logger(),
	}
}

// SetArchiver enables snapshot archiving after each refresh. A nil
// archiver leaves archiving off.
func (r *Refresher) SetArchiver(a *Archiver) {
	r.archiver = a
}

// Run warms the cache once immediately, then on every tick until the
// context ends.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info().
		Dur("horizon", r.horizon).
		Dur("interval", r.interval).
		Msg("guide refresher started")

	r.RefreshNow(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("guide refresher stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RefreshNow(ctx)
		}
	}
}

// RefreshNow simulates all enabled channels from now through the horizon
// and stores the windows in the cache. Failures on one channel never stop
// the rest of the batch.
func (r *Refresher) RefreshNow(ctx context.Context) {
	telemetry.GuideRefreshTicksTotal.Inc()

	channels, err := r.registry.GetEnabledChannels(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("guide refresh could not list channels")
		return
	}

	now := time.Now().UTC()
	refreshed := 0
	byChannel := make(map[string][]ProgramEntry, len(channels))
	for i := range channels {
		ch := channels[i]
		entries, err := r.simulator.Simulate(ctx, &ch, now, now.Add(r.horizon))
		if err != nil {
			r.logger.Debug().Err(err).Str("channel", ch.ID).Msg("guide simulation aborted")
			return
		}
		byChannel[ch.ID] = entries

		programs := make([]cache.CachedProgram, 0, len(entries))
		for _, entry := range entries {
			programs = append(programs, cache.CachedProgram{
				ChannelID: entry.ChannelID,
				ItemID:    entry.ItemID,
				Title:     entry.Title,
				Overview:  entry.Overview,
				Kind:      string(entry.Kind),
				Start:     entry.Start,
				End:       entry.End,
			})
		}
		if err := r.cache.SetGuide(ctx, ch.ID, programs); err != nil {
			r.logger.Debug().Err(err).Str("channel", ch.ID).Msg("guide cache write failed")
		}
		refreshed++
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(ctx, channels, byChannel); err != nil {
			r.logger.Warn().Err(err).Msg("guide archive failed")
		}
	}

	r.logger.Debug().Int("channels", refreshed).Msg("guide cache refreshed")
	r.bus.Publish(events.EventGuideRefreshed, events.Payload{"channels": refreshed})
}
