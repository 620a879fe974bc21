/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package importer loads channel lineups from YAML files and from legacy
// deployments reachable over a database DSN.
package importer

import (
	"fmt"
	"strings"
	"time"
)

// Options control an import run.
type Options struct {
	DryRun bool // Validate and report without persisting
}

// Report summarises one import run.
type Report struct {
	ChannelsImported int      `json:"channels_imported"`
	BlocksImported   int      `json:"blocks_imported"`
	Skipped          int      `json:"skipped"`
	Errors           []string `json:"errors,omitempty"`
}

func (r *Report) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// parseClock converts "HH:MM" into an offset from midnight. "24:00" is
// accepted as end-of-day.
func parseClock(s string) (time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	var h, m int
	if _, err := fmt.Sscanf(parts[0]+" "+parts[1], "%d %d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// formatClock renders an offset from midnight as "HH:MM".
func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// maskDSN hides credentials when logging connection strings.
func maskDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme+3 < at {
			return dsn[:scheme+3] + "***@" + dsn[at+1:]
		}
		return "***@" + dsn[at+1:]
	}
	return dsn
}
