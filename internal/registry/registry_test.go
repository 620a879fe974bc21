/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newRegistryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Channel{}, &models.ProgrammingBlock{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func TestGetEnabledChannelsOrdersBlocksByPosition(t *testing.T) {
	db := newRegistryTestDB(t)
	store := New(db, zerolog.Nop())

	end := 12 * time.Hour
	channel := models.Channel{
		ID:      "ch1",
		Name:    "Movies",
		Number:  2,
		Enabled: true,
		Blocks: []models.ProgrammingBlock{
			{ID: "b2", Position: 1, StartOffset: 12 * time.Hour, SelectionMode: models.SelectionRandom},
			{ID: "b1", Position: 0, StartOffset: 0, EndOffset: &end, SelectionMode: models.SelectionSequential},
		},
	}
	if err := store.CreateChannel(context.Background(), &channel); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	disabled := models.Channel{ID: "ch2", Name: "Off Air", Number: 3, Enabled: false}
	if err := store.CreateChannel(context.Background(), &disabled); err != nil {
		t.Fatalf("create disabled channel: %v", err)
	}

	channels, err := store.GetEnabledChannels(context.Background())
	if err != nil {
		t.Fatalf("get enabled channels: %v", err)
	}
	if len(channels) != 1 {
		t.Fatalf("expected 1 enabled channel, got %d", len(channels))
	}
	if len(channels[0].Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(channels[0].Blocks))
	}
	if channels[0].Blocks[0].ID != "b1" || channels[0].Blocks[1].ID != "b2" {
		t.Fatalf("blocks not ordered by position: %s, %s", channels[0].Blocks[0].ID, channels[0].Blocks[1].ID)
	}
}

func TestGetChannelAbsorbsUnknownIDs(t *testing.T) {
	db := newRegistryTestDB(t)
	store := New(db, zerolog.Nop())

	channel, err := store.GetChannel(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if channel != nil {
		t.Fatalf("expected nil channel, got %+v", channel)
	}
}

func TestCreateChannelRejectsDuplicateNumbers(t *testing.T) {
	db := newRegistryTestDB(t)
	store := New(db, zerolog.Nop())

	first := models.Channel{Name: "One", Number: 5, Enabled: true}
	if err := store.CreateChannel(context.Background(), &first); err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated channel id")
	}

	dup := models.Channel{Name: "Two", Number: 5}
	err := store.CreateChannel(context.Background(), &dup)
	if !errors.Is(err, ErrChannelNumberTaken) {
		t.Fatalf("expected ErrChannelNumberTaken, got %v", err)
	}
}

func TestNextFreeNumberSkipsUsedNumbers(t *testing.T) {
	db := newRegistryTestDB(t)
	store := New(db, zerolog.Nop())

	for i, n := range []int{1, 2, 4} {
		ch := models.Channel{Name: "ch", Number: n, Enabled: true}
		ch.Name = ch.Name + string(rune('a'+i))
		if err := store.CreateChannel(context.Background(), &ch); err != nil {
			t.Fatalf("create channel %d: %v", n, err)
		}
	}

	got, err := store.NextFreeNumber(context.Background(), 1)
	if err != nil {
		t.Fatalf("next free number: %v", err)
	}
	if got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestUpdateChannelReplacesBlocks(t *testing.T) {
	db := newRegistryTestDB(t)
	store := New(db, zerolog.Nop())

	channel := models.Channel{
		ID:      "ch1",
		Name:    "Movies",
		Number:  2,
		Enabled: true,
		Blocks: []models.ProgrammingBlock{
			{ID: "b1", Position: 0, SelectionMode: models.SelectionSequential},
		},
	}
	if err := store.CreateChannel(context.Background(), &channel); err != nil {
		t.Fatalf("create channel: %v", err)
	}

	channel.Blocks = []models.ProgrammingBlock{
		{Position: 0, StartOffset: 6 * time.Hour, SelectionMode: models.SelectionShuffle},
	}
	if err := store.UpdateChannel(context.Background(), &channel); err != nil {
		t.Fatalf("update channel: %v", err)
	}

	got, err := store.GetChannel(context.Background(), "ch1")
	if err != nil {
		t.Fatalf("get channel: %v", err)
	}
	if got == nil || len(got.Blocks) != 1 {
		t.Fatalf("expected 1 block after update, got %+v", got)
	}
	if got.Blocks[0].SelectionMode != models.SelectionShuffle {
		t.Fatalf("expected shuffle block, got %s", got.Blocks[0].SelectionMode)
	}
}
