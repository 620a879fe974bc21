/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog answers content item lookups and queries for the
// scheduling core. The core only ever sees the Gateway interface; the
// GORM-backed Store is the in-process implementation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/mimir_tv/internal/cache"
	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Filter narrows a catalog query.
type Filter struct {
	Kinds     []models.ContentKind
	LibraryID string
	Recursive bool
	Genres    []string
	YearFrom  int
	YearTo    int
	Years     []int
}

// Gateway is the catalog contract consumed by the scheduling core.
type Gateway interface {
	Query(ctx context.Context, filter Filter) ([]models.ContentItem, error)
	GetByID(ctx context.Context, id string) (*models.ContentItem, error)
	EpisodesBySeries(ctx context.Context, seriesID string) ([]models.ContentItem, error)
}

// Store implements Gateway on top of the catalog tables.
type Store struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// New builds a catalog store.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// SetCache serves id lookups from the entity cache. Item rows are owned
// by the upstream media manager, so staleness is bounded by the cache
// TTL rather than invalidation.
func (s *Store) SetCache(c *cache.Cache) {
	s.cache = c
}

// Query returns items matching the filter, ordered by name. Genre and
// explicit-year matching happens after the database query so the behavior
// is identical across backends.
func (s *Store) Query(ctx context.Context, filter Filter) ([]models.ContentItem, error) {
	q := s.db.WithContext(ctx).Model(&models.ContentItem{})

	if len(filter.Kinds) > 0 {
		q = q.Where("kind IN ?", filter.Kinds)
	}
	if filter.LibraryID != "" {
		libIDs, err := s.libraryScope(ctx, filter.LibraryID, filter.Recursive)
		if err != nil {
			return nil, err
		}
		if len(libIDs) == 0 {
			return nil, nil
		}
		q = q.Where("library_id IN ?", libIDs)
	}
	if filter.YearFrom > 0 {
		q = q.Where("year >= ?", filter.YearFrom)
	}
	if filter.YearTo > 0 {
		q = q.Where("year <= ?", filter.YearTo)
	}

	var items []models.ContentItem
	if err := q.Order("name asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("query content items: %w", err)
	}

	if len(filter.Genres) == 0 && len(filter.Years) == 0 {
		return items, nil
	}

	out := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		if len(filter.Genres) > 0 && !matchesAnyGenre(item, filter.Genres) {
			continue
		}
		if len(filter.Years) > 0 && !matchesYear(item.Year, filter.Years) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

// GetByID fetches one item. Unknown ids return nil without an error.
func (s *Store) GetByID(ctx context.Context, id string) (*models.ContentItem, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetContentItem(ctx, id); ok {
			return itemFromCached(cached), nil
		}
	}

	var item models.ContentItem
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content item %s: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.SetContentItem(ctx, cachedFromItem(&item)); err != nil {
			s.logger.Debug().Err(err).Str("content_id", id).Msg("failed to cache content item")
		}
	}
	return &item, nil
}

func cachedFromItem(item *models.ContentItem) *cache.CachedContentItem {
	return &cache.CachedContentItem{
		ID:        item.ID,
		LibraryID: item.LibraryID,
		ParentID:  item.ParentID,
		Name:      item.Name,
		Kind:      string(item.Kind),
		Overview:  item.Overview,
		Runtime:   int64(item.Runtime),
		Genres:    item.Genres,
		Rating:    item.Rating,
		Year:      item.Year,
		Season:    item.Season,
		Episode:   item.Episode,
	}
}

func itemFromCached(cached *cache.CachedContentItem) *models.ContentItem {
	return &models.ContentItem{
		ID:        cached.ID,
		LibraryID: cached.LibraryID,
		ParentID:  cached.ParentID,
		Name:      cached.Name,
		Kind:      models.ContentKind(cached.Kind),
		Overview:  cached.Overview,
		Runtime:   time.Duration(cached.Runtime),
		Genres:    cached.Genres,
		Rating:    cached.Rating,
		Year:      cached.Year,
		Season:    cached.Season,
		Episode:   cached.Episode,
	}
}

// EpisodesBySeries returns a series' episodes ordered by season then
// episode number. An unknown series yields an empty list.
func (s *Store) EpisodesBySeries(ctx context.Context, seriesID string) ([]models.ContentItem, error) {
	var items []models.ContentItem
	err := s.db.WithContext(ctx).
		Where("parent_id = ? AND kind = ?", seriesID, models.KindEpisode).
		Order("season asc, episode asc").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("episodes for series %s: %w", seriesID, err)
	}
	return items, nil
}

// libraryScope expands a library id into itself plus, when recursive, every
// descendant library.
func (s *Store) libraryScope(ctx context.Context, libraryID string, recursive bool) ([]string, error) {
	var root models.Library
	err := s.db.WithContext(ctx).First(&root, "id = ?", libraryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Unknown library: empty scope, not an error.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve library %s: %w", libraryID, err)
	}

	ids := []string{root.ID}
	if !recursive {
		return ids, nil
	}

	frontier := []string{root.ID}
	for len(frontier) > 0 {
		var children []models.Library
		if err := s.db.WithContext(ctx).Where("parent_id IN ?", frontier).Find(&children).Error; err != nil {
			return nil, fmt.Errorf("resolve child libraries: %w", err)
		}
		frontier = frontier[:0]
		for _, child := range children {
			ids = append(ids, child.ID)
			frontier = append(frontier, child.ID)
		}
	}
	return ids, nil
}

func matchesAnyGenre(item models.ContentItem, genres []string) bool {
	for _, g := range genres {
		if item.HasGenre(g) {
			return true
		}
	}
	return false
}

func matchesYear(year int, years []int) bool {
	for _, y := range years {
		if year == y {
			return true
		}
	}
	return false
}
