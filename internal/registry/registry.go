/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package registry stores channel definitions. The scheduling core reads
// channels through the Registry interface and never mutates them.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/mimir_tv/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrChannelNumberTaken is returned when a channel number collides.
var ErrChannelNumberTaken = errors.New("channel number already in use")

// Registry is the channel lookup contract consumed by the scheduling core.
type Registry interface {
	GetEnabledChannels(ctx context.Context) ([]models.Channel, error)
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
}

// Store implements Registry plus the administrative mutations used by the
// API and the importer.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New builds a channel registry store.
func New(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// GetEnabledChannels returns all enabled channels with their blocks, ordered
// by channel number.
func (s *Store) GetEnabledChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := s.db.WithContext(ctx).
		Preload("Blocks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Where("enabled = ?", true).
		Order("number asc").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("list enabled channels: %w", err)
	}
	return channels, nil
}

// GetChannel fetches one channel with its blocks. Unknown ids return nil
// without an error.
func (s *Store) GetChannel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	err := s.db.WithContext(ctx).
		Preload("Blocks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		First(&channel, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get channel %s: %w", id, err)
	}
	return &channel, nil
}

// ListChannels returns every channel, enabled or not.
func (s *Store) ListChannels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	err := s.db.WithContext(ctx).
		Preload("Blocks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc")
		}).
		Order("number asc").
		Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// CreateChannel persists a new channel and its blocks. Missing ids are
// assigned.
func (s *Store) CreateChannel(ctx context.Context, channel *models.Channel) error {
	if channel.ID == "" {
		channel.ID = uuid.NewString()
	}
	for i := range channel.Blocks {
		if channel.Blocks[i].ID == "" {
			channel.Blocks[i].ID = uuid.NewString()
		}
		channel.Blocks[i].ChannelID = channel.ID
		if channel.Blocks[i].Position == 0 {
			channel.Blocks[i].Position = i
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Channel{}).
		Where("number = ?", channel.Number).Count(&count).Error; err != nil {
		return fmt.Errorf("check channel number: %w", err)
	}
	if count > 0 {
		return ErrChannelNumberTaken
	}

	if err := s.db.WithContext(ctx).Create(channel).Error; err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	s.logger.Info().Str("channel_id", channel.ID).Int("number", channel.Number).Msg("channel created")
	return nil
}

// UpdateChannel replaces a channel definition and its blocks.
func (s *Store) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Channel
		if err := tx.First(&existing, "id = ?", channel.ID).Error; err != nil {
			return fmt.Errorf("load channel %s: %w", channel.ID, err)
		}

		if err := tx.Where("channel_id = ?", channel.ID).Delete(&models.ProgrammingBlock{}).Error; err != nil {
			return fmt.Errorf("clear blocks: %w", err)
		}
		for i := range channel.Blocks {
			if channel.Blocks[i].ID == "" {
				channel.Blocks[i].ID = uuid.NewString()
			}
			channel.Blocks[i].ChannelID = channel.ID
		}

		if err := tx.Save(channel).Error; err != nil {
			return fmt.Errorf("save channel: %w", err)
		}
		return nil
	})
}

// DeleteChannel removes a channel and its blocks. Deleting an unknown id is
// a no-op.
func (s *Store) DeleteChannel(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ?", id).Delete(&models.ProgrammingBlock{}).Error; err != nil {
			return fmt.Errorf("delete blocks: %w", err)
		}
		if err := tx.Delete(&models.Channel{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete channel: %w", err)
		}
		return nil
	})
}

// NextFreeNumber returns the lowest unused channel number at or above from.
func (s *Store) NextFreeNumber(ctx context.Context, from int) (int, error) {
	var numbers []int
	if err := s.db.WithContext(ctx).Model(&models.Channel{}).
		Order("number asc").Pluck("number", &numbers).Error; err != nil {
		return 0, fmt.Errorf("list channel numbers: %w", err)
	}
	used := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		used[n] = true
	}
	candidate := from
	for used[candidate] {
		candidate++
	}
	return candidate, nil
}
