/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/rs/zerolog"
)

type memObjectStore struct {
	objects map[string][]byte
	types   map[string]string
	puts    int
	failPut bool
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (m *memObjectStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	if m.failPut {
		return errors.New("bucket offline")
	}
	m.puts++
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memObjectStore) List(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memObjectStore) URL(key string) string { return "mem://" + key }

func (m *memObjectStore) CheckAccess(context.Context) error { return nil }

func archiveFixture() ([]models.Channel, map[string][]ProgramEntry) {
	start := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	channels := []models.Channel{{ID: "ch-1", Name: "Movies One", Number: 2, Enabled: true}}
	programs := map[string][]ProgramEntry{
		"ch-1": {{
			ChannelID: "ch-1",
			ItemID:    "item-1",
			Title:     "Night Train",
			Kind:      models.KindMovie,
			Start:     start,
			End:       start.Add(90 * time.Minute),
		}},
	}
	return channels, programs
}

func TestArchiverWritesDailySnapshot(t *testing.T) {
	store := newMemObjectStore()
	arch := NewArchiver(store, zerolog.Nop())
	channels, programs := archiveFixture()

	if err := arch.Archive(context.Background(), channels, programs); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("puts = %d, want 1", store.puts)
	}

	keys, err := arch.Snapshots(context.Background())
	if err != nil {
		t.Fatalf("Snapshots: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("snapshot count = %d, want 1", len(keys))
	}
	if !strings.HasPrefix(keys[0], "guide/") || !strings.HasSuffix(keys[0], ".xml") {
		t.Errorf("unexpected key layout %q", keys[0])
	}
	if got := store.types[keys[0]]; got != "application/xml" {
		t.Errorf("content type = %q, want application/xml", got)
	}

	data, err := arch.Fetch(context.Background(), keys[0])
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(string(data), "Night Train") {
		t.Errorf("snapshot missing programme title: %s", data)
	}
}

func TestArchiverSkipsSecondSnapshotSameDay(t *testing.T) {
	store := newMemObjectStore()
	arch := NewArchiver(store, zerolog.Nop())
	channels, programs := archiveFixture()

	for i := 0; i < 3; i++ {
		if err := arch.Archive(context.Background(), channels, programs); err != nil {
			t.Fatalf("Archive #%d: %v", i, err)
		}
	}
	if store.puts != 1 {
		t.Fatalf("puts = %d, want 1 per day", store.puts)
	}
}

func TestArchiverRetriesAfterUploadFailure(t *testing.T) {
	store := newMemObjectStore()
	store.failPut = true
	arch := NewArchiver(store, zerolog.Nop())
	channels, programs := archiveFixture()

	if err := arch.Archive(context.Background(), channels, programs); err == nil {
		t.Fatal("expected upload error")
	}

	store.failPut = false
	if err := arch.Archive(context.Background(), channels, programs); err != nil {
		t.Fatalf("retry Archive: %v", err)
	}
	if store.puts != 1 {
		t.Fatalf("puts = %d, want 1 after retry", store.puts)
	}
}
