/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"sync"
	"testing"
)

func TestWithStateCreatesOnce(t *testing.T) {
	store := NewStore(42)

	store.WithState("chan-a", func(st *State) {
		st.Cursor = 7
	})
	store.WithState("chan-a", func(st *State) {
		if st.Cursor != 7 {
			t.Fatalf("expected cursor 7, got %d", st.Cursor)
		}
	})

	if store.Size() != 1 {
		t.Fatalf("expected 1 tracked channel, got %d", store.Size())
	}
}

func TestWithExistingNeverCreates(t *testing.T) {
	store := NewStore(42)

	called := false
	if ok := store.WithExisting("ghost", func(st *State) { called = true }); ok {
		t.Fatal("WithExisting reported state for an unknown channel")
	}
	if called {
		t.Fatal("fn ran for an unknown channel")
	}
	if store.Size() != 0 {
		t.Fatalf("expected no tracked channels, got %d", store.Size())
	}

	store.WithState("chan-a", func(st *State) { st.Cursor = 1 })
	if ok := store.WithExisting("chan-a", func(st *State) { st.Cursor++ }); !ok {
		t.Fatal("WithExisting missed existing state")
	}
	store.WithState("chan-a", func(st *State) {
		if st.Cursor != 2 {
			t.Fatalf("expected cursor 2, got %d", st.Cursor)
		}
	})
}

func TestResetDropsState(t *testing.T) {
	store := NewStore(42)
	store.WithState("chan-a", func(st *State) { st.Cursor = 5 })
	store.Reset("chan-a")
	store.WithState("chan-a", func(st *State) {
		if st.Cursor != 0 {
			t.Fatalf("expected fresh state after reset, got cursor %d", st.Cursor)
		}
	})
}

func TestSeedsDifferPerChannel(t *testing.T) {
	store := NewStore(1234)
	if a, b := store.seedFor("chan-a"), store.seedFor("chan-b"); a == b {
		t.Fatal("distinct channels produced the same seed")
	}
	if a, b := store.seedFor("chan-a"), store.seedFor("chan-a"); a != b {
		t.Fatal("seed for the same channel is not stable")
	}
}

func TestConcurrentMutationIsSerialized(t *testing.T) {
	store := NewStore(42)
	const workers = 16
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				store.WithState("shared", func(st *State) { st.Cursor++ })
			}
		}()
	}
	wg.Wait()

	store.WithState("shared", func(st *State) {
		if st.Cursor != workers*perWorker {
			t.Fatalf("lost updates: expected %d, got %d", workers*perWorker, st.Cursor)
		}
	})
}
