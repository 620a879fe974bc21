/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/storage"
	"github.com/friendsincode/mimir_tv/internal/telemetry"
	"github.com/rs/zerolog"
)

const archivePrefix = "guide"

// Archiver uploads daily XMLTV snapshots to object storage under
// keys like guide/YYYY/MM/DD/guide-<timestamp>.xml.
type Archiver struct {
	store  storage.ObjectStore
	logger zerolog.Logger

	mu      sync.Mutex
	lastDay string
}

// NewArchiver creates a guide archiver backed by store.
func NewArchiver(store storage.ObjectStore, logger zerolog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		logger: logger.With().Str("component", "guide_archiver").Logger(),
	}
}

// Archive renders the guide as XMLTV and uploads it. At most one
// snapshot is written per UTC day; later calls on the same day are
// no-ops so refresh ticks do not flood the bucket.
func (a *Archiver) Archive(ctx context.Context, channels []models.Channel, programs map[string][]ProgramEntry) error {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	a.mu.Lock()
	if a.lastDay == day {
		a.mu.Unlock()
		return nil
	}
	a.lastDay = day
	a.mu.Unlock()

	var buf bytes.Buffer
	if err := WriteXMLTV(&buf, channels, programs); err != nil {
		telemetry.GuideArchivesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("render snapshot: %w", err)
	}

	key := snapshotKey(now)
	if err := a.store.Put(ctx, key, buf.Bytes(), "application/xml"); err != nil {
		telemetry.GuideArchivesTotal.WithLabelValues("error").Inc()
		// Allow a retry on the next refresh tick.
		a.mu.Lock()
		a.lastDay = ""
		a.mu.Unlock()
		return fmt.Errorf("upload snapshot: %w", err)
	}

	telemetry.GuideArchivesTotal.WithLabelValues("ok").Inc()
	a.logger.Info().
		Str("key", key).
		Int("channels", len(channels)).
		Int("bytes", buf.Len()).
		Msg("guide snapshot archived")
	return nil
}

// Snapshots lists the keys of previously archived snapshots, newest
// last in key order.
func (a *Archiver) Snapshots(ctx context.Context) ([]string, error) {
	return a.store.List(ctx, archivePrefix+"/")
}

// Fetch downloads an archived snapshot by key.
func (a *Archiver) Fetch(ctx context.Context, key string) ([]byte, error) {
	return a.store.Get(ctx, key)
}

func snapshotKey(ts time.Time) string {
	return path.Join(archivePrefix,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", int(ts.Month())),
		fmt.Sprintf("%02d", ts.Day()),
		fmt.Sprintf("guide-%s.xml", ts.Format("20060102T150405Z")),
	)
}
