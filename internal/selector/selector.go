/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package selector resolves a programming block's content set and picks
// the item the channel is showing. Selection mutates only the channel
// state handed to it; callers hold the channel lock.
package selector

import (
	"context"
	"math/rand"

	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/rs/zerolog"
)

// Engine picks content for channels.
type Engine struct {
	catalog catalog.Gateway
	logger  zerolog.Logger
}

// New creates a selection engine.
func New(gateway catalog.Gateway, logger zerolog.Logger) *Engine {
	return &Engine{
		catalog: gateway,
		logger:  logger.With().Str("component", "selector").Logger(),
	}
}

// ResolveContentSet returns the playable items for a block. Blocks with
// explicit references resolve them by id, skipping ids the catalog no
// longer knows. Blocks without references fall back to the channel's
// facet criteria. Catalog failures are logged and yield an empty set so
// the channel simply shows nothing instead of failing the caller.
func (e *Engine) ResolveContentSet(ctx context.Context, channel *models.Channel, block *models.ProgrammingBlock) []models.ContentItem {
	if refs := block.RefIDs(); len(refs) > 0 {
		items := make([]models.ContentItem, 0, len(refs))
		for _, id := range refs {
			item, err := e.catalog.GetByID(ctx, id)
			if err != nil {
				e.logger.Warn().Err(err).
					Str("channel", channel.ID).
					Str("block", block.ID).
					Str("content", id).
					Msg("content lookup failed, dropping set")
				return nil
			}
			if item == nil {
				continue
			}
			items = append(items, *item)
		}
		return items
	}

	criteria, err := channel.Criteria()
	if err != nil {
		e.logger.Warn().Err(err).Str("channel", channel.ID).Msg("invalid channel criteria")
		return nil
	}
	if criteria == nil {
		return nil
	}

	items, err := e.catalog.Query(ctx, catalog.Filter{
		Kinds:     criteria.Kinds,
		LibraryID: criteria.LibraryID,
		Recursive: criteria.Recursive,
		Genres:    criteria.Genres,
		YearFrom:  criteria.YearFrom,
		YearTo:    criteria.YearTo,
		Years:     criteria.Years,
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("channel", channel.ID).Msg("criteria query failed, dropping set")
		return nil
	}
	return items
}

// SelectItem picks the item the block is currently showing.
//
// Sequential mode reads the state cursor without advancing it; moving the
// cursor forward is the explicit advance action. An out of range cursor is
// reset to zero first. Shuffle re-shuffles the whole set on every call and
// takes the head. Random draws uniformly and ignores the cursor.
//
// When the pick is a series it is substituted by one of its episodes. A
// block that respects episode order walks the series' own cursor through
// the episodes in (season, episode) order, wrapping at the end; otherwise
// the episode is a uniform draw.
func (e *Engine) SelectItem(ctx context.Context, st *state.State, block *models.ProgrammingBlock, set []models.ContentItem, rng *rand.Rand) *models.ContentItem {
	if len(set) == 0 {
		return nil
	}

	var picked models.ContentItem
	switch block.SelectionMode {
	case models.SelectionShuffle:
		shuffled := make([]models.ContentItem, len(set))
		copy(shuffled, set)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		picked = shuffled[0]
	case models.SelectionRandom:
		picked = set[rng.Intn(len(set))]
	default:
		if st.Cursor < 0 || st.Cursor >= len(set) {
			st.Cursor = 0
		}
		picked = set[st.Cursor]
	}

	if picked.Kind == models.KindSeries {
		return e.resolveEpisode(ctx, st, block, picked, rng)
	}
	return &picked
}

func (e *Engine) resolveEpisode(ctx context.Context, st *state.State, block *models.ProgrammingBlock, series models.ContentItem, rng *rand.Rand) *models.ContentItem {
	episodes, err := e.catalog.EpisodesBySeries(ctx, series.ID)
	if err != nil {
		e.logger.Warn().Err(err).Str("series", series.ID).Msg("episode lookup failed")
		return nil
	}
	if len(episodes) == 0 {
		return nil
	}

	if !block.EpisodeOrder {
		episode := episodes[rng.Intn(len(episodes))]
		return &episode
	}

	if st.SeriesCursors == nil {
		st.SeriesCursors = make(map[string]int)
	}
	cursor := st.SeriesCursors[series.ID]
	if cursor < 0 || cursor >= len(episodes) {
		cursor = 0
	}
	episode := episodes[cursor]
	st.SeriesCursors[series.ID] = (cursor + 1) % len(episodes)
	return &episode
}
