/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package adbreak

import (
	"math"
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
)

// assumedSpotSeconds is the planning length of a single commercial. Guide
// projection uses it instead of replaying actual pool draws.
const assumedSpotSeconds = 30

// EstimateBreakTime approximates the commercial time added to one item of
// the given runtime: one break per full interval elapsed, the midpoint of
// the per-break min and max as spot count, a fixed spot length. Zero when
// commercials are off or the resolved interval is not positive.
func EstimateBreakTime(policy models.CommercialPolicy, runtime time.Duration) time.Duration {
	if !policy.Enabled {
		return 0
	}
	interval := policy.IntervalMinutes()
	if interval <= 0 {
		return 0
	}

	breaks := int(runtime.Minutes()) / interval
	perBreak := int(math.Round(float64(policy.MinPerBreak+policy.MaxPerBreak) / 2))
	return time.Duration(breaks*perBreak*assumedSpotSeconds) * time.Second
}
