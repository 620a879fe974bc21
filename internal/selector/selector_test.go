/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package selector

import (
	"context"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/catalog"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/friendsincode/mimir_tv/internal/playout/state"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSelectorTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Library{}, &models.ContentItem{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return New(catalog.New(db, zerolog.Nop()), zerolog.Nop()), db
}

func seedMovies(t *testing.T, db *gorm.DB, names ...string) []models.ContentItem {
	t.Helper()

	items := make([]models.ContentItem, 0, len(names))
	for i, name := range names {
		item := models.ContentItem{
			ID:      name,
			Name:    name,
			Kind:    models.KindMovie,
			Runtime: time.Duration(60+i) * time.Minute,
		}
		if err := db.Create(&item).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
		items = append(items, item)
	}
	return items
}

func TestSequentialReadsCursorWithoutAdvancing(t *testing.T) {
	engine, db := newSelectorTestEngine(t)
	set := seedMovies(t, db, "a", "b", "c")

	st := state.New(1)
	st.Cursor = 1
	block := &models.ProgrammingBlock{SelectionMode: models.SelectionSequential}

	for i := 0; i < 3; i++ {
		item := engine.SelectItem(context.Background(), st, block, set, st.Rand)
		if item == nil || item.ID != "b" {
			t.Fatalf("call %d: expected b, got %+v", i, item)
		}
	}
	if st.Cursor != 1 {
		t.Fatalf("cursor moved to %d, selection must not advance it", st.Cursor)
	}
}

func TestSequentialResetsOutOfRangeCursor(t *testing.T) {
	engine, db := newSelectorTestEngine(t)
	set := seedMovies(t, db, "a", "b")

	st := state.New(1)
	st.Cursor = 9
	block := &models.ProgrammingBlock{SelectionMode: models.SelectionSequential}

	item := engine.SelectItem(context.Background(), st, block, set, st.Rand)
	if item == nil || item.ID != "a" {
		t.Fatalf("expected wrap to a, got %+v", item)
	}
	if st.Cursor != 0 {
		t.Fatalf("expected cursor reset to 0, got %d", st.Cursor)
	}
}

func TestShuffleAndRandomAreSeedDeterministic(t *testing.T) {
	engine, db := newSelectorTestEngine(t)
	set := seedMovies(t, db, "a", "b", "c", "d", "e")

	for _, mode := range []models.SelectionMode{models.SelectionShuffle, models.SelectionRandom} {
		block := &models.ProgrammingBlock{SelectionMode: mode}

		first := make([]string, 0, 8)
		second := make([]string, 0, 8)
		for _, out := range []*[]string{&first, &second} {
			st := state.New(99)
			for i := 0; i < 8; i++ {
				item := engine.SelectItem(context.Background(), st, block, set, st.Rand)
				if item == nil {
					t.Fatalf("%s: nil pick from a non-empty set", mode)
				}
				*out = append(*out, item.ID)
			}
			if st.Cursor != 0 {
				t.Fatalf("%s: cursor must stay untouched, got %d", mode, st.Cursor)
			}
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("%s: same seed diverged at call %d: %s vs %s", mode, i, first[i], second[i])
			}
		}
	}
}

func TestEmptySetYieldsNothing(t *testing.T) {
	engine, _ := newSelectorTestEngine(t)
	st := state.New(1)
	block := &models.ProgrammingBlock{SelectionMode: models.SelectionSequential}

	if item := engine.SelectItem(context.Background(), st, block, nil, st.Rand); item != nil {
		t.Fatalf("expected nil for empty set, got %+v", item)
	}
}

func TestSeriesEpisodeOrderWalksAndWraps(t *testing.T) {
	engine, db := newSelectorTestEngine(t)

	series := models.ContentItem{ID: "show", Name: "Show", Kind: models.KindSeries}
	if err := db.Create(&series).Error; err != nil {
		t.Fatalf("create series: %v", err)
	}
	episodes := []models.ContentItem{
		{ID: "s2e1", ParentID: "show", Kind: models.KindEpisode, Season: 2, Episode: 1},
		{ID: "s1e2", ParentID: "show", Kind: models.KindEpisode, Season: 1, Episode: 2},
		{ID: "s1e1", ParentID: "show", Kind: models.KindEpisode, Season: 1, Episode: 1},
	}
	for i := range episodes {
		if err := db.Create(&episodes[i]).Error; err != nil {
			t.Fatalf("create episode: %v", err)
		}
	}

	st := state.New(1)
	block := &models.ProgrammingBlock{SelectionMode: models.SelectionSequential, EpisodeOrder: true}
	set := []models.ContentItem{series}

	want := []string{"s1e1", "s1e2", "s2e1", "s1e1"}
	for i, expected := range want {
		item := engine.SelectItem(context.Background(), st, block, set, st.Rand)
		if item == nil || item.ID != expected {
			t.Fatalf("call %d: expected %s, got %+v", i, expected, item)
		}
	}
	if st.SeriesCursors["show"] != 1 {
		t.Fatalf("expected series cursor 1 after wrap, got %d", st.SeriesCursors["show"])
	}
}

func TestSeriesWithoutEpisodesYieldsNothing(t *testing.T) {
	engine, db := newSelectorTestEngine(t)

	series := models.ContentItem{ID: "hollow", Name: "Hollow", Kind: models.KindSeries}
	if err := db.Create(&series).Error; err != nil {
		t.Fatalf("create series: %v", err)
	}

	st := state.New(1)
	block := &models.ProgrammingBlock{SelectionMode: models.SelectionSequential, EpisodeOrder: true}

	if item := engine.SelectItem(context.Background(), st, block, []models.ContentItem{series}, st.Rand); item != nil {
		t.Fatalf("expected nil for a series with no episodes, got %+v", item)
	}
}

func TestResolveContentSetSkipsMissingRefs(t *testing.T) {
	engine, db := newSelectorTestEngine(t)
	seedMovies(t, db, "a", "b")

	block := &models.ProgrammingBlock{}
	if err := block.SetRefIDs([]string{"a", "gone", "b"}); err != nil {
		t.Fatalf("set refs: %v", err)
	}

	set := engine.ResolveContentSet(context.Background(), &models.Channel{ID: "ch"}, block)
	if len(set) != 2 {
		t.Fatalf("expected 2 resolved items, got %d", len(set))
	}
	if set[0].ID != "a" || set[1].ID != "b" {
		t.Fatalf("unexpected resolution order: %s, %s", set[0].ID, set[1].ID)
	}
}

func TestResolveContentSetUsesChannelCriteria(t *testing.T) {
	engine, db := newSelectorTestEngine(t)
	items := []models.ContentItem{
		{ID: "old", Name: "Old", Kind: models.KindMovie, Year: 1970},
		{ID: "new", Name: "New", Kind: models.KindMovie, Year: 2020},
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}

	channel := &models.Channel{ID: "ch"}
	if err := channel.SetCriteria(&models.FacetCriteria{
		Kinds:    []models.ContentKind{models.KindMovie},
		YearFrom: 2000,
	}); err != nil {
		t.Fatalf("set criteria: %v", err)
	}

	set := engine.ResolveContentSet(context.Background(), channel, &models.ProgrammingBlock{})
	if len(set) != 1 || set[0].ID != "new" {
		t.Fatalf("expected only the 2020 movie, got %+v", set)
	}
}

func TestResolveContentSetEmptyForManualChannelWithoutRefs(t *testing.T) {
	engine, _ := newSelectorTestEngine(t)

	set := engine.ResolveContentSet(context.Background(), &models.Channel{ID: "ch"}, &models.ProgrammingBlock{})
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %d items", len(set))
	}
}
