/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return NewService(db, events.NewBus(), zerolog.Nop())
}

func TestLogAuditEntryExtractsPayloadFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	svc.logAuditEntry(ctx, models.AuditActionChannelCreate, events.Payload{
		"role":       "admin",
		"channel_id": "ch-9",
		"ip_address": "203.0.113.7:4411",
		"user_agent": "curl/8.5",
		"number":     12,
		"source":     "api",
	})

	var entry models.AuditLog
	if err := svc.db.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Action != models.AuditActionChannelCreate {
		t.Fatalf("expected action %q, got %q", models.AuditActionChannelCreate, entry.Action)
	}
	if entry.Role != "admin" {
		t.Fatalf("expected role admin, got %q", entry.Role)
	}
	if entry.ChannelID == nil || *entry.ChannelID != "ch-9" {
		t.Fatalf("expected channel ch-9, got %v", entry.ChannelID)
	}
	if entry.IPAddress != "203.0.113.7:4411" || entry.UserAgent != "curl/8.5" {
		t.Fatalf("request context not extracted: %+v", entry)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Fatalf("defaults not applied: %+v", entry)
	}

	// Keys without a dedicated column land in details, extracted ones do not.
	if _, found := entry.Details["role"]; found {
		t.Fatalf("role duplicated into details: %v", entry.Details)
	}
	if got, ok := entry.Details["source"].(string); !ok || got != "api" {
		t.Fatalf("expected source in details, got %v", entry.Details)
	}
	if got, ok := entry.Details["number"].(float64); !ok || got != 12 {
		t.Fatalf("expected number in details, got %v", entry.Details)
	}
}

func TestLogAuditEntrySystemAction(t *testing.T) {
	svc := newTestService(t)

	// CLI imports publish without request context.
	svc.logAuditEntry(context.Background(), models.AuditActionLineupImport, events.Payload{
		"channels": 3,
		"skipped":  1,
	})

	var entry models.AuditLog
	if err := svc.db.First(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Role != "" || entry.ChannelID != nil {
		t.Fatalf("expected system entry, got %+v", entry)
	}
	if got, ok := entry.Details["channels"].(float64); !ok || got != 3 {
		t.Fatalf("expected channels in details, got %v", entry.Details)
	}
}

func TestQueryFiltersAndPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	chA := "ch-a"
	seed := []models.AuditLog{
		{Timestamp: base, Action: models.AuditActionChannelCreate, ChannelID: &chA},
		{Timestamp: base.Add(time.Hour), Action: models.AuditActionChannelUpdate, ChannelID: &chA},
		{Timestamp: base.Add(2 * time.Hour), Action: models.AuditActionGuideRefresh},
	}
	for i := range seed {
		if err := svc.Log(ctx, &seed[i]); err != nil {
			t.Fatalf("seed entry %d: %v", i, err)
		}
	}

	logs, total, err := svc.Query(ctx, QueryFilters{})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if total != 3 || len(logs) != 3 {
		t.Fatalf("expected 3 entries, got total=%d len=%d", total, len(logs))
	}
	if !logs[0].Timestamp.After(logs[1].Timestamp) || !logs[1].Timestamp.After(logs[2].Timestamp) {
		t.Fatalf("expected newest first, got %v %v %v", logs[0].Timestamp, logs[1].Timestamp, logs[2].Timestamp)
	}

	action := models.AuditActionChannelUpdate
	logs, total, err = svc.Query(ctx, QueryFilters{Action: &action})
	if err != nil {
		t.Fatalf("query by action: %v", err)
	}
	if total != 1 || len(logs) != 1 || logs[0].Action != action {
		t.Fatalf("action filter failed: total=%d logs=%+v", total, logs)
	}

	logs, total, err = svc.Query(ctx, QueryFilters{ChannelID: &chA})
	if err != nil {
		t.Fatalf("query by channel: %v", err)
	}
	if total != 2 || len(logs) != 2 {
		t.Fatalf("channel filter failed: total=%d len=%d", total, len(logs))
	}

	since := base.Add(30 * time.Minute)
	until := base.Add(90 * time.Minute)
	logs, total, err = svc.Query(ctx, QueryFilters{StartTime: &since, EndTime: &until})
	if err != nil {
		t.Fatalf("query by window: %v", err)
	}
	if total != 1 || len(logs) != 1 || logs[0].Action != models.AuditActionChannelUpdate {
		t.Fatalf("time window filter failed: total=%d logs=%+v", total, logs)
	}

	logs, total, err = svc.Query(ctx, QueryFilters{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("query page: %v", err)
	}
	if total != 3 || len(logs) != 1 {
		t.Fatalf("pagination failed: total=%d len=%d", total, len(logs))
	}
	if logs[0].Action != models.AuditActionChannelUpdate {
		t.Fatalf("expected middle entry on second page, got %q", logs[0].Action)
	}
}
