/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package adbreak runs the per-channel commercial break state machine and
// estimates commercial time for guide projection.
package adbreak

import (
	"context"
	"time"

	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/rs/zerolog"
)

// Source labels what a playback answer is showing.
type Source string

const (
	SourceProgram    Source = "program"
	SourceCommercial Source = "commercial"
	SourcePreRoll    Source = "preroll"
)

// Resolver decides whether a channel interrupts ordinary programming with
// a commercial or a pre-roll. Callers hold the channel lock.
type Resolver struct {
	catalog catalog.Gateway
	logger  zerolog.Logger
}

// NewResolver creates a break resolver.
func NewResolver(gateway catalog.Gateway, logger zerolog.Logger) *Resolver {
	return &Resolver{
		catalog: gateway,
		logger:  logger.With().Str("component", "adbreak").Logger(),
	}
}

// Resolve runs the break machine for one evaluation instant. A non-nil
// item short-circuits ordinary selection; (nil, SourceProgram) hands the
// call back to it.
//
// An active break continues until the per-break maximum is served or the
// commercial pool runs dry, then ends without re-checking the entry
// condition in the same call. Break entry needs a previous ordinary play
// on record and the policy interval elapsed since. A pending pre-roll is
// served only outside breaks and its due flag clears even when pre-rolls
// are disabled or the pool is empty.
func (r *Resolver) Resolve(ctx context.Context, st *state.State, policy models.CommercialPolicy, now time.Time) (*models.ContentItem, Source) {
	if policy.Enabled {
		if st.InBreak {
			if item := r.nextCommercial(ctx, st, policy); item != nil {
				return item, SourceCommercial
			}
		} else if breakDue(st, policy, now) {
			st.InBreak = true
			st.BreakServed = 0
			telemetry.AdBreaksStartedTotal.Inc()
			if item := r.nextCommercial(ctx, st, policy); item != nil {
				return item, SourceCommercial
			}
		}
	}

	if st.PreRollDue {
		st.PreRollDue = false
		if policy.UsePreRolls {
			if item := r.randomFromPool(ctx, st, models.KindPreRoll); item != nil {
				return item, SourcePreRoll
			}
		}
	}

	return nil, SourceProgram
}

func breakDue(st *state.State, policy models.CommercialPolicy, now time.Time) bool {
	interval := policy.IntervalMinutes()
	if interval <= 0 || st.LastBreakCheck.IsZero() {
		return false
	}
	return now.Sub(st.LastBreakCheck) >= time.Duration(interval)*time.Minute
}

// nextCommercial serves one commercial or ends the break. Nil means the
// break is over: either the maximum was reached or the pool is empty.
func (r *Resolver) nextCommercial(ctx context.Context, st *state.State, policy models.CommercialPolicy) *models.ContentItem {
	if st.BreakServed >= policy.MaxPerBreak {
		r.endBreak(st)
		return nil
	}

	item := r.randomFromPool(ctx, st, models.KindCommercial)
	if item == nil {
		r.endBreak(st)
		return nil
	}

	st.BreakServed++
	telemetry.AdBreakCommercialsServedTotal.Inc()
	return item
}

func (r *Resolver) endBreak(st *state.State) {
	st.InBreak = false
	st.BreakServed = 0
}

func (r *Resolver) randomFromPool(ctx context.Context, st *state.State, kind models.ContentKind) *models.ContentItem {
	pool, err := r.catalog.Query(ctx, catalog.Filter{Kinds: []models.ContentKind{kind}})
	if err != nil {
		r.logger.Warn().Err(err).Str("kind", string(kind)).Msg("pool query failed")
		return nil
	}
	if len(pool) == 0 {
		return nil
	}
	item := pool[st.Rand.Intn(len(pool))]
	return &item
}
