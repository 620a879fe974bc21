/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
)

// ImportLegacyPostgres imports channels from a legacy deployment reachable
// over a PostgreSQL DSN.
func (i *Importer) ImportLegacyPostgres(ctx context.Context, dsn string, opts Options) (*Report, error) {
	i.logger.Info().Str("dsn", maskDSN(dsn)).Bool("dry_run", opts.DryRun).Msg("starting legacy postgres import")

	legacy, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to legacy db: %w", err)
	}
	defer legacy.Close()

	if err := legacy.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping legacy db: %w", err)
	}
	return i.importLegacy(ctx, legacy, opts)
}

// ImportLegacySQLite imports channels from a legacy single-file SQLite
// deployment.
func (i *Importer) ImportLegacySQLite(ctx context.Context, path string, opts Options) (*Report, error) {
	i.logger.Info().Str("path", path).Bool("dry_run", opts.DryRun).Msg("starting legacy sqlite import")

	legacy, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open legacy db: %w", err)
	}
	defer legacy.Close()

	if err := legacy.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping legacy db: %w", err)
	}
	return i.importLegacy(ctx, legacy, opts)
}

// importLegacy walks the legacy channels and channel_blocks tables. Rows
// that fail to scan or persist are reported and skipped.
func (i *Importer) importLegacy(ctx context.Context, legacy *sql.DB, opts Options) (*Report, error) {
	report := &Report{}

	rows, err := legacy.QueryContext(ctx, `
		SELECT id, name, number, enabled,
		       commercials_enabled, commercial_interval_minutes,
		       commercials_min, commercials_max, use_prerolls,
		       auto_criteria
		FROM channels
		ORDER BY number
	`)
	if err != nil {
		return nil, fmt.Errorf("query legacy channels: %w", err)
	}
	defer rows.Close()

	type legacyChannel struct {
		channel  *models.Channel
		legacyID string
	}
	var imported []legacyChannel

	for rows.Next() {
		var (
			id, name                   string
			number                     int
			enabled, breaksOn, preroll bool
			interval, minPer, maxPer   sql.NullInt64
			criteria                   sql.NullString
		)
		if err := rows.Scan(&id, &name, &number, &enabled,
			&breaksOn, &interval, &minPer, &maxPer, &preroll, &criteria); err != nil {
			i.logger.Error().Err(err).Msg("scan legacy channel")
			report.Skipped++
			report.addError("scan channel: %v", err)
			continue
		}

		channel := &models.Channel{
			Name:    name,
			Number:  number,
			Enabled: enabled,
			Commercials: models.CommercialPolicy{
				Enabled:     breaksOn,
				MinPerBreak: int(minPer.Int64),
				MaxPerBreak: int(maxPer.Int64),
				UsePreRolls: preroll,
			},
		}
		channel.Commercials.IntervalMode, channel.Commercials.CustomIntervalMinutes =
			intervalFromMinutes(int(interval.Int64))
		if criteria.Valid && strings.TrimSpace(criteria.String) != "" {
			channel.AutoCriteria = criteria.String
		}

		imported = append(imported, legacyChannel{channel: channel, legacyID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate legacy channels: %w", err)
	}

	for _, lc := range imported {
		blocks, err := i.legacyBlocks(ctx, legacy, lc.legacyID)
		if err != nil {
			report.Skipped++
			report.addError("channel %q blocks: %v", lc.channel.Name, err)
			continue
		}
		lc.channel.Blocks = blocks

		if opts.DryRun {
			report.ChannelsImported++
			report.BlocksImported += len(blocks)
			continue
		}
		if err := i.registry.CreateChannel(ctx, lc.channel); err != nil {
			report.Skipped++
			report.addError("channel %q: %v", lc.channel.Name, err)
			continue
		}
		report.ChannelsImported++
		report.BlocksImported += len(blocks)
		if i.bus != nil {
			i.bus.Publish(events.EventChannelCreated, events.Payload{
				"channel_id": lc.channel.ID,
				"source":     "legacy_import",
			})
		}
	}

	i.logger.Info().
		Int("channels", report.ChannelsImported).
		Int("blocks", report.BlocksImported).
		Int("skipped", report.Skipped).
		Msg("legacy import finished")
	if i.bus != nil && !opts.DryRun {
		i.bus.Publish(events.EventAuditImport, events.Payload{
			"channels": report.ChannelsImported,
			"skipped":  report.Skipped,
		})
	}
	return report, nil
}

func (i *Importer) legacyBlocks(ctx context.Context, legacy *sql.DB, channelID string) ([]models.ProgrammingBlock, error) {
	rows, err := legacy.QueryContext(ctx, `
		SELECT name, position, start_seconds, end_seconds,
		       content_kind, selection_mode, episode_order, content_refs
		FROM channel_blocks
		WHERE channel_id = $1
		ORDER BY position
	`, channelID)
	if err != nil {
		return nil, fmt.Errorf("query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.ProgrammingBlock
	for rows.Next() {
		var (
			name             sql.NullString
			position         int
			startSec         int64
			endSec           sql.NullInt64
			kind, mode, refs sql.NullString
			episodeOrder     bool
		)
		if err := rows.Scan(&name, &position, &startSec, &endSec, &kind, &mode, &episodeOrder, &refs); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}

		block := models.ProgrammingBlock{
			Name:         name.String,
			Position:     position,
			StartOffset:  time.Duration(startSec) * time.Second,
			EpisodeOrder: episodeOrder,
		}
		if endSec.Valid {
			end := time.Duration(endSec.Int64) * time.Second
			block.EndOffset = &end
		}
		if kind.Valid && kind.String != "" {
			parsed, err := parseKind(kind.String)
			if err != nil {
				return nil, err
			}
			block.ContentKind = parsed
		}
		switch mode.String {
		case "", string(models.SelectionSequential):
			block.SelectionMode = models.SelectionSequential
		case string(models.SelectionShuffle):
			block.SelectionMode = models.SelectionShuffle
		case string(models.SelectionRandom):
			block.SelectionMode = models.SelectionRandom
		default:
			return nil, fmt.Errorf("unknown selection mode %q", mode.String)
		}
		if refs.Valid && strings.TrimSpace(refs.String) != "" {
			ids := strings.Split(refs.String, ",")
			for n := range ids {
				ids[n] = strings.TrimSpace(ids[n])
			}
			if err := block.SetRefIDs(ids); err != nil {
				return nil, fmt.Errorf("encode refs: %w", err)
			}
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// intervalFromMinutes maps a legacy minute count onto the preset cadence
// modes, falling back to the custom mode for other values.
func intervalFromMinutes(minutes int) (models.BreakIntervalMode, int) {
	switch minutes {
	case 10:
		return models.IntervalEvery10, 0
	case 15:
		return models.IntervalEvery15, 0
	case 20:
		return models.IntervalEvery20, 0
	case 30:
		return models.IntervalEvery30, 0
	case 0:
		return models.IntervalEvery15, 0
	default:
		return models.IntervalCustom, minutes
	}
}
