/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package adbreak

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

func newBreakTestResolver(t *testing.T, items ...models.ContentItem) *Resolver {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Library{}, &models.ContentItem{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	for i := range items {
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("create item: %v", err)
		}
	}
	return NewResolver(catalog.New(db, zerolog.Nop()), zerolog.Nop())
}

func enabledPolicy() models.CommercialPolicy {
	return models.CommercialPolicy{
		Enabled:      true,
		IntervalMode: models.IntervalEvery15,
		MinPerBreak:  1,
		MaxPerBreak:  2,
		UsePreRolls:  true,
	}
}

func TestBreakEntryRespectsInterval(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "spot", Name: "Spot", Kind: models.KindCommercial, Runtime: 30 * time.Second,
	})
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

	st := state.New(1)
	st.LastBreakCheck = now.Add(-15 * time.Minute)
	item, source := resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item == nil || source != SourceCommercial {
		t.Fatalf("expected a commercial after 15 minutes, got %v / %s", item, source)
	}
	if !st.InBreak || st.BreakServed != 1 {
		t.Fatalf("expected in-break with 1 served, got %+v", st)
	}

	st = state.New(1)
	st.LastBreakCheck = now.Add(-14 * time.Minute)
	item, source = resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected ordinary programming after 14 minutes, got %v / %s", item, source)
	}
	if st.InBreak {
		t.Fatal("entered a break before the interval elapsed")
	}
}

func TestBreakNeverTriggersBeforeFirstPlay(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "spot", Name: "Spot", Kind: models.KindCommercial,
	})

	st := state.New(1)
	item, source := resolver.Resolve(context.Background(), st, enabledPolicy(), time.Now().UTC())
	if item != nil || source != SourceProgram {
		t.Fatalf("fresh channel must start with programming, got %v / %s", item, source)
	}
}

func TestBreakServesUntilMaxThenEnds(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "spot", Name: "Spot", Kind: models.KindCommercial,
	})
	now := time.Now().UTC()
	policy := enabledPolicy()

	st := state.New(1)
	st.InBreak = true
	st.LastBreakCheck = now.Add(-time.Hour)

	for i := 1; i <= policy.MaxPerBreak; i++ {
		item, source := resolver.Resolve(context.Background(), st, policy, now)
		if item == nil || source != SourceCommercial {
			t.Fatalf("serve %d: expected a commercial, got %v / %s", i, item, source)
		}
		if st.BreakServed != i {
			t.Fatalf("serve %d: expected counter %d, got %d", i, i, st.BreakServed)
		}
	}

	// The exit call hands control back to programming even though the
	// entry interval has long elapsed; entry is not re-checked here.
	item, source := resolver.Resolve(context.Background(), st, policy, now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected break exit to programming, got %v / %s", item, source)
	}
	if st.InBreak || st.BreakServed != 0 {
		t.Fatalf("expected break state cleared, got %+v", st)
	}
}

func TestEmptyPoolEndsBreakImmediately(t *testing.T) {
	resolver := newBreakTestResolver(t)
	now := time.Now().UTC()

	st := state.New(1)
	st.InBreak = true
	st.BreakServed = 1

	item, source := resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected programming when the pool is dry, got %v / %s", item, source)
	}
	if st.InBreak {
		t.Fatal("break survived an empty pool")
	}
}

func TestDisabledPolicyNeverBreaks(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "spot", Name: "Spot", Kind: models.KindCommercial,
	})
	now := time.Now().UTC()

	st := state.New(1)
	st.LastBreakCheck = now.Add(-24 * time.Hour)
	policy := enabledPolicy()
	policy.Enabled = false

	item, source := resolver.Resolve(context.Background(), st, policy, now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected programming with commercials off, got %v / %s", item, source)
	}
}

func TestPreRollServedOnceAfterAdvance(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "bumper", Name: "Bumper", Kind: models.KindPreRoll, Runtime: 10 * time.Second,
	})
	now := time.Now().UTC()

	st := state.New(1)
	st.PreRollDue = true

	item, source := resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item == nil || item.Kind != models.KindPreRoll || source != SourcePreRoll {
		t.Fatalf("expected the pre-roll, got %v / %s", item, source)
	}
	if st.PreRollDue {
		t.Fatal("pre-roll flag must clear after serving")
	}

	item, source = resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected programming after the pre-roll, got %v / %s", item, source)
	}
}

func TestPreRollSuppressedWhenDisabled(t *testing.T) {
	resolver := newBreakTestResolver(t, models.ContentItem{
		ID: "bumper", Name: "Bumper", Kind: models.KindPreRoll,
	})
	now := time.Now().UTC()

	st := state.New(1)
	st.PreRollDue = true
	policy := enabledPolicy()
	policy.UsePreRolls = false

	item, source := resolver.Resolve(context.Background(), st, policy, now)
	if item != nil || source != SourceProgram {
		t.Fatalf("expected programming with pre-rolls off, got %v / %s", item, source)
	}
	if st.PreRollDue {
		t.Fatal("pre-roll flag must clear even when suppressed")
	}
}

func TestBreakOutranksPendingPreRoll(t *testing.T) {
	resolver := newBreakTestResolver(t,
		models.ContentItem{ID: "spot", Name: "Spot", Kind: models.KindCommercial},
		models.ContentItem{ID: "bumper", Name: "Bumper", Kind: models.KindPreRoll},
	)
	now := time.Now().UTC()

	st := state.New(1)
	st.InBreak = true
	st.PreRollDue = true

	item, source := resolver.Resolve(context.Background(), st, enabledPolicy(), now)
	if item == nil || source != SourceCommercial {
		t.Fatalf("expected the break to continue, got %v / %s", item, source)
	}
	if !st.PreRollDue {
		t.Fatal("pre-roll must stay pending while the break runs")
	}
}
