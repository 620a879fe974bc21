/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package autogen builds channels from catalog facets. It is a one-shot
// batch: each facet becomes at most one channel, failed facets are
// reported and skipped, and the batch always runs to the end.
package autogen

import (
	"context"
	"fmt"
	"strings"

	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/rs/zerolog"
)

// Options control one generation batch.
type Options struct {
	Genres      []string // One channel per genre with enough items
	Decades     []int    // Decade start years, e.g. 1980, 1990
	MinItems    int      // Facets below this are skipped (default 5)
	StartNumber int      // Lowest channel number to assign (default 100)
}

// CreatedChannel reports one channel the batch produced.
type CreatedChannel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number int    `json:"number"`
	Items  int    `json:"items"`
}

// SkippedFacet reports one facet the batch passed over and why.
type SkippedFacet struct {
	Facet  string `json:"facet"`
	Reason string `json:"reason"`
}

// Result summarises a generation batch.
type Result struct {
	Created []CreatedChannel `json:"created"`
	Skipped []SkippedFacet   `json:"skipped"`
}

// Generator creates auto channels from catalog facets.
type Generator struct {
	registry *registry.Store
	catalog  catalog.Gateway
	bus      events.PubSub
	logger   zerolog.Logger
}

// New builds a generator.
func New(reg *registry.Store, cat catalog.Gateway, bus events.PubSub, logger zerolog.Logger) *Generator {
	return &Generator{
		registry: reg,
		catalog:  cat,
		bus:      bus,
		logger:   logger.With().Str("component", "autogen").Logger(),
	}
}

// Run executes one batch. Catalog and persistence failures on a single
// facet skip that facet and the batch continues; only a failure to list
// existing channels aborts the run.
func (g *Generator) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.MinItems <= 0 {
		opts.MinItems = 5
	}
	if opts.StartNumber <= 0 {
		opts.StartNumber = 100
	}

	existing, err := g.registry.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	names := make(map[string]bool, len(existing))
	for _, ch := range existing {
		names[ch.Name] = true
	}

	result := &Result{}

	for _, genre := range opts.Genres {
		facet := "genre:" + genre
		criteria := models.FacetCriteria{
			Kinds:  []models.ContentKind{models.KindMovie, models.KindSeries},
			Genres: []string{genre},
		}
		g.buildFacet(ctx, facet, genreChannelName(genre), criteria, opts, names, result)
	}

	for _, year := range opts.Decades {
		decade := (year / 10) * 10
		facet := fmt.Sprintf("decade:%d", decade)
		criteria := models.FacetCriteria{
			Kinds:    []models.ContentKind{models.KindMovie},
			YearFrom: decade,
			YearTo:   decade + 9,
		}
		g.buildFacet(ctx, facet, decadeChannelName(decade), criteria, opts, names, result)
	}

	g.logger.Info().
		Int("created", len(result.Created)).
		Int("skipped", len(result.Skipped)).
		Msg("auto generation finished")
	return result, nil
}

func (g *Generator) buildFacet(ctx context.Context, facet, name string, criteria models.FacetCriteria, opts Options, names map[string]bool, result *Result) {
	if names[name] {
		result.Skipped = append(result.Skipped, SkippedFacet{Facet: facet, Reason: "channel exists"})
		return
	}

	items, err := g.catalog.Query(ctx, catalog.Filter{
		Kinds:    criteria.Kinds,
		Genres:   criteria.Genres,
		YearFrom: criteria.YearFrom,
		YearTo:   criteria.YearTo,
	})
	if err != nil {
		g.logger.Warn().Err(err).Str("facet", facet).Msg("catalog query failed, facet skipped")
		result.Skipped = append(result.Skipped, SkippedFacet{Facet: facet, Reason: fmt.Sprintf("catalog: %v", err)})
		return
	}
	if len(items) < opts.MinItems {
		result.Skipped = append(result.Skipped, SkippedFacet{
			Facet:  facet,
			Reason: fmt.Sprintf("%d items, need %d", len(items), opts.MinItems),
		})
		return
	}

	number, err := g.registry.NextFreeNumber(ctx, opts.StartNumber)
	if err != nil {
		result.Skipped = append(result.Skipped, SkippedFacet{Facet: facet, Reason: fmt.Sprintf("number assignment: %v", err)})
		return
	}

	channel := models.Channel{
		Name:    name,
		Number:  number,
		Enabled: true,
		Blocks: []models.ProgrammingBlock{{
			Name:          "All Day",
			StartOffset:   0,
			SelectionMode: models.SelectionShuffle,
			EpisodeOrder:  true,
		}},
	}
	if err := channel.SetCriteria(&criteria); err != nil {
		result.Skipped = append(result.Skipped, SkippedFacet{Facet: facet, Reason: fmt.Sprintf("criteria: %v", err)})
		return
	}

	if err := g.registry.CreateChannel(ctx, &channel); err != nil {
		g.logger.Warn().Err(err).Str("facet", facet).Msg("channel create failed, facet skipped")
		result.Skipped = append(result.Skipped, SkippedFacet{Facet: facet, Reason: fmt.Sprintf("create: %v", err)})
		return
	}

	names[name] = true
	result.Created = append(result.Created, CreatedChannel{
		ID:     channel.ID,
		Name:   channel.Name,
		Number: channel.Number,
		Items:  len(items),
	})
	if g.bus != nil {
		g.bus.Publish(events.EventChannelCreated, events.Payload{
			"channel_id": channel.ID,
			"source":     "autogen",
		})
	}
}

func genreChannelName(genre string) string {
	return titleCase(genre) + " TV"
}

func decadeChannelName(decade int) string {
	return fmt.Sprintf("%02ds Movies", decade%100)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
