/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Library{}, &models.ContentItem{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}

func TestQueryFiltersByKindGenreAndYear(t *testing.T) {
	db := newCatalogTestDB(t)
	store := New(db, zerolog.Nop())

	items := []models.ContentItem{
		{ID: "m1", Name: "Alpha", Kind: models.KindMovie, Genres: "Action, Sci-Fi", Year: 1984, Runtime: 100 * time.Minute},
		{ID: "m2", Name: "Beta", Kind: models.KindMovie, Genres: "Comedy", Year: 1990, Runtime: 90 * time.Minute},
		{ID: "m3", Name: "Gamma", Kind: models.KindMovie, Genres: "Action", Year: 2001, Runtime: 110 * time.Minute},
		{ID: "c1", Name: "Soap Ad", Kind: models.KindCommercial, Runtime: 30 * time.Second},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	got, err := store.Query(context.Background(), Filter{
		Kinds:  []models.ContentKind{models.KindMovie},
		Genres: []string{"action"},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 action movies, got %d", len(got))
	}
	if got[0].ID != "m1" || got[1].ID != "m3" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}

	got, err = store.Query(context.Background(), Filter{
		Kinds:    []models.ContentKind{models.KindMovie},
		YearFrom: 1985,
		YearTo:   1995,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("expected only m2 in year range, got %d items", len(got))
	}

	got, err = store.Query(context.Background(), Filter{Years: []int{1984, 2001}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items for explicit years, got %d", len(got))
	}
}

func TestQueryScopesLibrariesRecursively(t *testing.T) {
	db := newCatalogTestDB(t)
	store := New(db, zerolog.Nop())

	libs := []models.Library{
		{ID: "root", Name: "Movies"},
		{ID: "kids", ParentID: "root", Name: "Kids"},
		{ID: "other", Name: "Other"},
	}
	for i := range libs {
		if err := db.Create(&libs[i]).Error; err != nil {
			t.Fatalf("create library: %v", err)
		}
	}
	items := []models.ContentItem{
		{ID: "m1", Name: "In Root", Kind: models.KindMovie, LibraryID: "root"},
		{ID: "m2", Name: "In Kids", Kind: models.KindMovie, LibraryID: "kids"},
		{ID: "m3", Name: "Elsewhere", Kind: models.KindMovie, LibraryID: "other"},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	got, err := store.Query(context.Background(), Filter{LibraryID: "root"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("expected only direct root item, got %d items", len(got))
	}

	got, err = store.Query(context.Background(), Filter{LibraryID: "root", Recursive: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected root and kids items, got %d", len(got))
	}

	got, err = store.Query(context.Background(), Filter{LibraryID: "missing"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result for unknown library, got %d items", len(got))
	}
}

func TestGetByIDAbsorbsUnknownIDs(t *testing.T) {
	db := newCatalogTestDB(t)
	store := New(db, zerolog.Nop())

	item, err := store.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil item for unknown id, got %+v", item)
	}
}

func TestEpisodesBySeriesOrdersBySeasonThenEpisode(t *testing.T) {
	db := newCatalogTestDB(t)
	store := New(db, zerolog.Nop())

	episodes := []models.ContentItem{
		{ID: "e3", Name: "S02E01", Kind: models.KindEpisode, ParentID: "show", Season: 2, Episode: 1},
		{ID: "e1", Name: "S01E01", Kind: models.KindEpisode, ParentID: "show", Season: 1, Episode: 1},
		{ID: "e2", Name: "S01E02", Kind: models.KindEpisode, ParentID: "show", Season: 1, Episode: 2},
		{ID: "x1", Name: "Other Show", Kind: models.KindEpisode, ParentID: "othershow", Season: 1, Episode: 1},
	}
	for i := range episodes {
		if err := db.Create(&episodes[i]).Error; err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	got, err := store.EpisodesBySeries(context.Background(), "show")
	if err != nil {
		t.Fatalf("episodes: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 episodes, got %d", len(got))
	}
	for i, want := range []string{"e1", "e2", "e3"} {
		if got[i].ID != want {
			t.Fatalf("episode %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
}
