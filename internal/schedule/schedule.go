/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule maps a channel and a wall-clock time of day to the
// programming block that is on air. Both the live playback path and the
// guide simulator resolve blocks through this package so the two can never
// disagree on which block is active.
package schedule

import (
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
)

// TimeOfDay returns the duration since midnight for t in its own location.
func TimeOfDay(t time.Time) time.Duration {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return t.Sub(midnight)
}

// ActiveBlock returns the block covering timeOfDay, or nil when no block
// matches. A block matches when its start is at or before timeOfDay and its
// end is absent or after timeOfDay. Among overlapping matches the block
// with the earliest start wins; that tie-break is load-bearing and must not
// change.
func ActiveBlock(blocks []models.ProgrammingBlock, timeOfDay time.Duration) *models.ProgrammingBlock {
	var active *models.ProgrammingBlock
	for i := range blocks {
		block := &blocks[i]
		if !windowContains(block, timeOfDay) {
			continue
		}
		if active == nil || block.StartOffset < active.StartOffset {
			active = block
		}
	}
	return active
}

func windowContains(block *models.ProgrammingBlock, timeOfDay time.Duration) bool {
	if block.StartOffset > timeOfDay {
		return false
	}
	if block.EndOffset == nil {
		return true
	}
	return *block.EndOffset > timeOfDay
}
