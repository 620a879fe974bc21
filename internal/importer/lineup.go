/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Lineup is the YAML document describing a set of channels. The same
// shapes serve as the JSON bodies of the admin channel endpoints.
type Lineup struct {
	Channels []LineupChannel `yaml:"channels" json:"channels"`
}

// LineupChannel describes one channel in a lineup file.
type LineupChannel struct {
	Name        string          `yaml:"name" json:"name"`
	Number      int             `yaml:"number" json:"number"`
	Enabled     *bool           `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Commercials LineupPolicy    `yaml:"commercials,omitempty" json:"commercials,omitempty"`
	Criteria    *LineupCriteria `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Blocks      []LineupBlock   `yaml:"blocks,omitempty" json:"blocks,omitempty"`
}

// LineupPolicy mirrors the channel commercial policy.
type LineupPolicy struct {
	Enabled       bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Interval      string `yaml:"interval,omitempty" json:"interval,omitempty"`
	CustomMinutes int    `yaml:"custom_minutes,omitempty" json:"custom_minutes,omitempty"`
	MinPerBreak   int    `yaml:"min_per_break,omitempty" json:"min_per_break,omitempty"`
	MaxPerBreak   int    `yaml:"max_per_break,omitempty" json:"max_per_break,omitempty"`
	UsePreRolls   bool   `yaml:"use_pre_rolls,omitempty" json:"use_pre_rolls,omitempty"`
}

// LineupCriteria mirrors the facet criteria of auto channels.
type LineupCriteria struct {
	Kinds     []string `yaml:"kinds,omitempty" json:"kinds,omitempty"`
	LibraryID string   `yaml:"library_id,omitempty" json:"library_id,omitempty"`
	Recursive bool     `yaml:"recursive,omitempty" json:"recursive,omitempty"`
	Genres    []string `yaml:"genres,omitempty" json:"genres,omitempty"`
	YearFrom  int      `yaml:"year_from,omitempty" json:"year_from,omitempty"`
	YearTo    int      `yaml:"year_to,omitempty" json:"year_to,omitempty"`
	Years     []int    `yaml:"years,omitempty" json:"years,omitempty"`
}

// LineupBlock describes one programming window.
type LineupBlock struct {
	Name         string   `yaml:"name,omitempty" json:"name,omitempty"`
	Start        string   `yaml:"start" json:"start"`
	End          string   `yaml:"end,omitempty" json:"end,omitempty"`
	Kind         string   `yaml:"kind,omitempty" json:"kind,omitempty"`
	Mode         string   `yaml:"mode,omitempty" json:"mode,omitempty"`
	EpisodeOrder bool     `yaml:"episode_order,omitempty" json:"episode_order,omitempty"`
	Refs         []string `yaml:"refs,omitempty" json:"refs,omitempty"`
}

// Importer persists lineups into the channel registry.
type Importer struct {
	registry *registry.Store
	bus      events.PubSub
	logger   zerolog.Logger
}

// New builds an importer.
func New(reg *registry.Store, bus events.PubSub, logger zerolog.Logger) *Importer {
	return &Importer{
		registry: reg,
		bus:      bus,
		logger:   logger.With().Str("component", "importer").Logger(),
	}
}

// ImportLineup reads a YAML lineup and creates its channels. Invalid or
// colliding channels are reported and skipped; the rest of the file is
// still imported.
func (i *Importer) ImportLineup(ctx context.Context, r io.Reader, opts Options) (*Report, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var lineup Lineup
	if err := dec.Decode(&lineup); err != nil {
		return nil, fmt.Errorf("decode lineup: %w", err)
	}
	if len(lineup.Channels) == 0 {
		return nil, fmt.Errorf("lineup has no channels")
	}

	report := &Report{}
	for idx := range lineup.Channels {
		entry := &lineup.Channels[idx]
		channel, err := ChannelFromLineup(entry)
		if err != nil {
			report.Skipped++
			report.addError("channel %q: %v", entry.Name, err)
			continue
		}
		blocks := len(channel.Blocks)

		if opts.DryRun {
			report.ChannelsImported++
			report.BlocksImported += blocks
			continue
		}

		if err := i.registry.CreateChannel(ctx, channel); err != nil {
			report.Skipped++
			if errors.Is(err, registry.ErrChannelNumberTaken) {
				report.addError("channel %q: number %d already in use", entry.Name, entry.Number)
			} else {
				report.addError("channel %q: %v", entry.Name, err)
			}
			continue
		}

		report.ChannelsImported++
		report.BlocksImported += blocks
		if i.bus != nil {
			i.bus.Publish(events.EventChannelCreated, events.Payload{
				"channel_id": channel.ID,
				"source":     "import",
			})
		}
	}

	i.logger.Info().
		Int("channels", report.ChannelsImported).
		Int("blocks", report.BlocksImported).
		Int("skipped", report.Skipped).
		Bool("dry_run", opts.DryRun).
		Msg("lineup import finished")
	if i.bus != nil && !opts.DryRun {
		i.bus.Publish(events.EventAuditImport, events.Payload{
			"channels": report.ChannelsImported,
			"skipped":  report.Skipped,
		})
	}
	return report, nil
}

// ExportLineup writes every channel in the registry as a YAML lineup.
func (i *Importer) ExportLineup(ctx context.Context, w io.Writer) error {
	channels, err := i.registry.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}

	lineup := Lineup{Channels: make([]LineupChannel, 0, len(channels))}
	for idx := range channels {
		entry, err := LineupFromChannel(&channels[idx])
		if err != nil {
			return fmt.Errorf("channel %s: %w", channels[idx].ID, err)
		}
		lineup.Channels = append(lineup.Channels, entry)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(&lineup); err != nil {
		return fmt.Errorf("encode lineup: %w", err)
	}
	return nil
}

// ChannelFromLineup validates a lineup entry and builds the channel it
// describes. Blocks keep the order of the entry.
func ChannelFromLineup(entry *LineupChannel) (*models.Channel, error) {
	if entry.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	if entry.Number <= 0 {
		return nil, fmt.Errorf("number must be positive")
	}

	policy, err := policyFromLineup(entry.Commercials)
	if err != nil {
		return nil, err
	}

	channel := &models.Channel{
		Name:        entry.Name,
		Number:      entry.Number,
		Enabled:     entry.Enabled == nil || *entry.Enabled,
		Commercials: policy,
	}

	if entry.Criteria != nil {
		criteria, err := criteriaFromLineup(entry.Criteria)
		if err != nil {
			return nil, err
		}
		if err := channel.SetCriteria(criteria); err != nil {
			return nil, fmt.Errorf("encode criteria: %w", err)
		}
	}

	for bi := range entry.Blocks {
		block, err := blockFromLineup(&entry.Blocks[bi], bi)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bi, err)
		}
		channel.Blocks = append(channel.Blocks, block)
	}

	return channel, nil
}

func policyFromLineup(p LineupPolicy) (models.CommercialPolicy, error) {
	policy := models.CommercialPolicy{
		Enabled:               p.Enabled,
		CustomIntervalMinutes: p.CustomMinutes,
		MinPerBreak:           p.MinPerBreak,
		MaxPerBreak:           p.MaxPerBreak,
		UsePreRolls:           p.UsePreRolls,
	}
	switch p.Interval {
	case "":
		policy.IntervalMode = models.IntervalEvery15
	case string(models.IntervalEvery10), string(models.IntervalEvery15),
		string(models.IntervalEvery20), string(models.IntervalEvery30),
		string(models.IntervalNatural), string(models.IntervalCustom):
		policy.IntervalMode = models.BreakIntervalMode(p.Interval)
	default:
		return policy, fmt.Errorf("unknown interval mode %q", p.Interval)
	}
	return policy, nil
}

func criteriaFromLineup(c *LineupCriteria) (*models.FacetCriteria, error) {
	criteria := &models.FacetCriteria{
		LibraryID: c.LibraryID,
		Recursive: c.Recursive,
		Genres:    c.Genres,
		YearFrom:  c.YearFrom,
		YearTo:    c.YearTo,
		Years:     c.Years,
	}
	for _, kind := range c.Kinds {
		parsed, err := parseKind(kind)
		if err != nil {
			return nil, err
		}
		criteria.Kinds = append(criteria.Kinds, parsed)
	}
	return criteria, nil
}

func blockFromLineup(b *LineupBlock, position int) (models.ProgrammingBlock, error) {
	block := models.ProgrammingBlock{
		Name:         b.Name,
		Position:     position,
		EpisodeOrder: b.EpisodeOrder,
	}

	start, err := parseClock(b.Start)
	if err != nil {
		return block, err
	}
	block.StartOffset = start

	if b.End != "" {
		end, err := parseClock(b.End)
		if err != nil {
			return block, err
		}
		if end <= start {
			return block, fmt.Errorf("end %s before start %s", b.End, b.Start)
		}
		block.EndOffset = &end
	}

	if b.Kind != "" {
		kind, err := parseKind(b.Kind)
		if err != nil {
			return block, err
		}
		block.ContentKind = kind
	}

	switch b.Mode {
	case "":
		block.SelectionMode = models.SelectionSequential
	case string(models.SelectionSequential), string(models.SelectionShuffle), string(models.SelectionRandom):
		block.SelectionMode = models.SelectionMode(b.Mode)
	default:
		return block, fmt.Errorf("unknown selection mode %q", b.Mode)
	}

	if err := block.SetRefIDs(b.Refs); err != nil {
		return block, fmt.Errorf("encode refs: %w", err)
	}
	return block, nil
}

func parseKind(s string) (models.ContentKind, error) {
	switch s {
	case string(models.KindMovie), string(models.KindSeries), string(models.KindEpisode),
		string(models.KindCommercial), string(models.KindPreRoll):
		return models.ContentKind(s), nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// LineupFromChannel renders a stored channel back into its lineup shape.
func LineupFromChannel(ch *models.Channel) (LineupChannel, error) {
	enabled := ch.Enabled
	entry := LineupChannel{
		Name:    ch.Name,
		Number:  ch.Number,
		Enabled: &enabled,
		Commercials: LineupPolicy{
			Enabled:       ch.Commercials.Enabled,
			Interval:      string(ch.Commercials.IntervalMode),
			CustomMinutes: ch.Commercials.CustomIntervalMinutes,
			MinPerBreak:   ch.Commercials.MinPerBreak,
			MaxPerBreak:   ch.Commercials.MaxPerBreak,
			UsePreRolls:   ch.Commercials.UsePreRolls,
		},
	}

	criteria, err := ch.Criteria()
	if err != nil {
		return entry, fmt.Errorf("decode criteria: %w", err)
	}
	if criteria != nil {
		out := &LineupCriteria{
			LibraryID: criteria.LibraryID,
			Recursive: criteria.Recursive,
			Genres:    criteria.Genres,
			YearFrom:  criteria.YearFrom,
			YearTo:    criteria.YearTo,
			Years:     criteria.Years,
		}
		for _, kind := range criteria.Kinds {
			out.Kinds = append(out.Kinds, string(kind))
		}
		entry.Criteria = out
	}

	for bi := range ch.Blocks {
		block := &ch.Blocks[bi]
		out := LineupBlock{
			Name:         block.Name,
			Start:        formatClock(block.StartOffset),
			Kind:         string(block.ContentKind),
			Mode:         string(block.SelectionMode),
			EpisodeOrder: block.EpisodeOrder,
			Refs:         block.RefIDs(),
		}
		if block.EndOffset != nil {
			out.End = formatClock(*block.EndOffset)
		}
		entry.Blocks = append(entry.Blocks, out)
	}
	return entry, nil
}
