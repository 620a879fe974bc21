/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package autogen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/events"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/registry"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newGeneratorTestEnv(t *testing.T) (*Generator, *registry.Store, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Library{}, &models.ContentItem{}, &models.Channel{}, &models.ProgrammingBlock{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	reg := registry.New(db, zerolog.Nop())
	gen := New(reg, catalog.New(db, zerolog.Nop()), events.NewBus(), zerolog.Nop())
	return gen, reg, db
}

func seedFacetItems(t *testing.T, db *gorm.DB, genre string, year, count int) {
	t.Helper()

	for i := 0; i < count; i++ {
		item := models.ContentItem{
			ID:      genre + "-" + string(rune('a'+i)),
			Name:    genre + " movie",
			Kind:    models.KindMovie,
			Runtime: 90 * time.Minute,
			Genres:  genre,
			Year:    year,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}
}

func TestRunCreatesGenreChannel(t *testing.T) {
	gen, reg, db := newGeneratorTestEnv(t)
	seedFacetItems(t, db, "horror", 1999, 6)

	result, err := gen.Run(context.Background(), Options{Genres: []string{"horror"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	created := result.Created[0]
	if created.Name != "Horror TV" {
		t.Errorf("name = %q, want Horror TV", created.Name)
	}
	if created.Number != 100 {
		t.Errorf("number = %d, want 100", created.Number)
	}
	if created.Items != 6 {
		t.Errorf("items = %d, want 6", created.Items)
	}

	channel, err := reg.GetChannel(context.Background(), created.ID)
	if err != nil || channel == nil {
		t.Fatalf("GetChannel: %v %v", channel, err)
	}
	if !channel.Enabled {
		t.Error("auto channel should be enabled")
	}
	if len(channel.Blocks) != 1 {
		t.Fatalf("blocks = %d, want 1", len(channel.Blocks))
	}
	criteria, err := channel.Criteria()
	if err != nil || criteria == nil {
		t.Fatalf("Criteria: %v %v", criteria, err)
	}
	if len(criteria.Genres) != 1 || criteria.Genres[0] != "horror" {
		t.Errorf("criteria genres = %v", criteria.Genres)
	}
}

func TestRunSkipsThinAndDuplicateFacets(t *testing.T) {
	gen, _, db := newGeneratorTestEnv(t)
	seedFacetItems(t, db, "drama", 1985, 6)
	seedFacetItems(t, db, "western", 1950, 2)

	result, err := gen.Run(context.Background(), Options{Genres: []string{"drama", "western"}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Facet != "genre:western" {
		t.Fatalf("skipped = %+v, want genre:western", result.Skipped)
	}

	// Second run finds Drama TV already present and skips every facet.
	again, err := gen.Run(context.Background(), Options{Genres: []string{"drama", "western"}})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(again.Created) != 0 {
		t.Fatalf("second run created = %d, want 0", len(again.Created))
	}
	if len(again.Skipped) != 2 {
		t.Fatalf("second run skipped = %d, want 2", len(again.Skipped))
	}
	if again.Skipped[0].Reason != "channel exists" {
		t.Errorf("reason = %q, want channel exists", again.Skipped[0].Reason)
	}
}

func TestRunCreatesDecadeChannel(t *testing.T) {
	gen, _, db := newGeneratorTestEnv(t)
	seedFacetItems(t, db, "action", 1984, 5)

	result, err := gen.Run(context.Background(), Options{Decades: []int{1989}, MinItems: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("created = %+v, want one decade channel", result)
	}
	if result.Created[0].Name != "80s Movies" {
		t.Errorf("name = %q, want 80s Movies", result.Created[0].Name)
	}
}

type failingCatalog struct{}

func (failingCatalog) Query(context.Context, catalog.Filter) ([]models.ContentItem, error) {
	return nil, errors.New("upstream down")
}

func (failingCatalog) GetByID(context.Context, string) (*models.ContentItem, error) {
	return nil, errors.New("upstream down")
}

func (failingCatalog) EpisodesBySeries(context.Context, string) ([]models.ContentItem, error) {
	return nil, errors.New("upstream down")
}

func TestRunContinuesPastCatalogFailure(t *testing.T) {
	_, reg, db := newGeneratorTestEnv(t)
	_ = db
	gen := New(reg, failingCatalog{}, events.NewBus(), zerolog.Nop())

	result, err := gen.Run(context.Background(), Options{Genres: []string{"horror", "drama"}})
	if err != nil {
		t.Fatalf("Run should absorb catalog failures: %v", err)
	}
	if len(result.Created) != 0 {
		t.Fatalf("created = %d, want 0", len(result.Created))
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("skipped = %d, want 2", len(result.Skipped))
	}
}
