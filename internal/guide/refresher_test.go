/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/rs/zerolog"
)

func TestRefreshNowCoversEnabledChannels(t *testing.T) {
	sim, db := newGuideTestSimulator(t)
	seedGuideChannel(t, db, models.CommercialPolicy{}, 30*time.Minute)

	disabled := models.Channel{ID: "off", Name: "Off", Number: 99, Enabled: false}
	if err := db.Create(&disabled).Error; err != nil {
		t.Fatalf("create disabled channel: %v", err)
	}

	cfg := cache.DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"
	c, err := cache.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	bus := events.NewBus()
	sub := bus.Subscribe(events.EventGuideRefreshed)

	refresher := NewRefresher(registry.New(db, zerolog.Nop()), sim, c, bus, time.Hour, time.Minute, zerolog.Nop())
	refresher.RefreshNow(context.Background())

	select {
	case payload := <-sub:
		if payload["channels"] != 1 {
			t.Fatalf("expected 1 refreshed channel, got %v", payload["channels"])
		}
	default:
		t.Fatal("guide refresh event not published")
	}
}
