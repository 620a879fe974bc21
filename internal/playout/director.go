/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playout answers "what is this channel showing right now" and
// applies viewer driven advancement. All mutation runs under the
// channel's state lock; the only I/O is catalog lookups.
package playout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/mimir_tv/internal/adbreak"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/friendsincode/mimir_tv/internal/schedule"
	"github.com/friendsincode/mimir_tv/internal/selector"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrRecordingUnsupported marks DVR style operations, which the live-only
// playback model never performs.
var ErrRecordingUnsupported = errors.New("recording is not supported on virtual channels")

// StreamLocator points a player at a channel's continuous stream. The
// locator is pass-through: the id goes in, the URI comes out, nothing is
// probed or computed.
type StreamLocator struct {
	URI        string `json:"uri"`
	Infinite   bool   `json:"infinite"`
	DirectPlay bool   `json:"direct_play"`
}

// Locator builds the stream locator for a channel.
func Locator(channelID string) StreamLocator {
	return StreamLocator{
		URI:        fmt.Sprintf("virtualchannel://%s", channelID),
		Infinite:   true,
		DirectPlay: true,
	}
}

// PlaybackAnswer describes what a channel is showing at one instant. A nil
// Item means the channel is off air: no active block or no content.
type PlaybackAnswer struct {
	ChannelID   string              `json:"channel_id"`
	ChannelName string              `json:"channel_name"`
	Item        *models.ContentItem `json:"item,omitempty"`
	Source      adbreak.Source      `json:"source"`
	StartedAt   time.Time           `json:"started_at,omitempty"`
	Offset      time.Duration       `json:"offset"`
	Locator     StreamLocator       `json:"locator"`
}

// Director drives channel playback evaluation and emits now playing events.
type Director struct {
	registry registry.Registry
	selector *selector.Engine
	breaks   *adbreak.Resolver
	states   *state.Store
	bus      events.PubSub
	logger   zerolog.Logger
}

// NewDirector creates a playout director.
func NewDirector(reg registry.Registry, sel *selector.Engine, breaks *adbreak.Resolver, states *state.Store, bus events.PubSub, logger zerolog.Logger) *Director {
	return &Director{
		registry: reg,
		selector: sel,
		breaks:   breaks,
		states:   states,
		bus:      bus,
		logger:   logger.With().Str("component", "playout").Logger(),
	}
}

// CurrentPlayback evaluates what the channel is showing at now. Unknown
// channels yield (nil, nil). The call mutates the channel's state: breaks
// advance, pre-rolls clear, and ordinary plays stamp the break clock.
func (d *Director) CurrentPlayback(ctx context.Context, channelID string, now time.Time) (*PlaybackAnswer, error) {
	channel, err := d.registry.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("load channel: %w", err)
	}
	if channel == nil {
		return nil, nil
	}

	var answer *PlaybackAnswer
	d.states.WithState(channelID, func(st *state.State) {
		answer = d.evaluate(ctx, channel, st, now)
	})

	d.publishNowPlaying(answer)
	return answer, nil
}

// Advance moves the channel's sequential cursor forward by one and flags a
// pre-roll for the next evaluation. Channels that never played are left
// untouched.
func (d *Director) Advance(ctx context.Context, channelID string) {
	advanced := d.states.WithExisting(channelID, func(st *state.State) {
		st.Cursor++
		st.PreRollDue = true
	})
	if !advanced {
		return
	}

	telemetry.PlaybackAdvancesTotal.Inc()
	d.logger.Debug().Str("channel", channelID).Msg("playback advanced")
	d.bus.Publish(events.EventPlaybackAdvanced, events.Payload{"channel_id": channelID})
}

// Record always refuses: the playback model is live only.
func (d *Director) Record(ctx context.Context, channelID string) error {
	return ErrRecordingUnsupported
}

// Reset drops the channel's playback state.
func (d *Director) Reset(channelID string) {
	d.states.Reset(channelID)
}

func (d *Director) evaluate(ctx context.Context, channel *models.Channel, st *state.State, now time.Time) *PlaybackAnswer {
	answer := &PlaybackAnswer{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Locator:     Locator(channel.ID),
		Source:      adbreak.SourceProgram,
	}

	wasInBreak := st.InBreak
	if item, source := d.breaks.Resolve(ctx, st, channel.Commercials, now); item != nil {
		answer.Item = item
		answer.Source = source
		answer.StartedAt = now
		if !wasInBreak && st.InBreak {
			d.bus.Publish(events.EventAdBreakStarted, events.Payload{"channel_id": channel.ID})
		}
		telemetry.PlaybackEvaluationsTotal.WithLabelValues(string(source)).Inc()
		return answer
	}
	if wasInBreak && !st.InBreak {
		d.bus.Publish(events.EventAdBreakEnded, events.Payload{"channel_id": channel.ID})
	}

	block := schedule.ActiveBlock(channel.Blocks, schedule.TimeOfDay(now))
	if block == nil {
		telemetry.PlaybackEvaluationsTotal.WithLabelValues("off_air").Inc()
		return answer
	}

	set := d.selector.ResolveContentSet(ctx, channel, block)
	item := d.selector.SelectItem(ctx, st, block, set, st.Rand)

	// Break entry measures from the last ordinary evaluation, whether or
	// not it produced an item.
	st.LastBreakCheck = now

	if item == nil {
		telemetry.PlaybackEvaluationsTotal.WithLabelValues("off_air").Inc()
		return answer
	}

	if st.CurrentItemID != item.ID {
		st.CurrentItemID = item.ID
		st.CurrentSince = now
	}

	answer.Item = item
	answer.StartedAt = st.CurrentSince
	answer.Offset = now.Sub(st.CurrentSince)
	telemetry.PlaybackEvaluationsTotal.WithLabelValues(string(adbreak.SourceProgram)).Inc()
	return answer
}

func (d *Director) publishNowPlaying(answer *PlaybackAnswer) {
	if answer == nil || answer.Item == nil {
		return
	}
	d.bus.Publish(events.EventNowPlaying, events.Payload{
		"channel_id":   answer.ChannelID,
		"channel_name": answer.ChannelName,
		"item_id":      answer.Item.ID,
		"item_name":    answer.Item.Name,
		"source":       string(answer.Source),
	})
}
