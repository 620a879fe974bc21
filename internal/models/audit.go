/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AuditAction defines the type of audited action.
type AuditAction string

// Audit action constants for all lineup-changing operations.
const (
	AuditActionChannelCreate AuditAction = "channel.create"
	AuditActionChannelUpdate AuditAction = "channel.update"
	AuditActionChannelDelete AuditAction = "channel.delete"
	AuditActionGuideRefresh  AuditAction = "guide.refresh"
	AuditActionLineupImport  AuditAction = "lineup.import"
)

// AuditLog records administrative operations for later review.
type AuditLog struct {
	ID           string         `gorm:"type:uuid;primaryKey"`
	Timestamp    time.Time      `gorm:"index:idx_audit_timestamp;not null"`
	Role         string         `gorm:"type:varchar(32)"`                  // Empty for CLI and system actions
	ChannelID    *string        `gorm:"type:uuid;index:idx_audit_channel"` // NULL for lineup-wide actions
	Action       AuditAction    `gorm:"type:varchar(64);index:idx_audit_action;not null"`
	ResourceType string         `gorm:"type:varchar(64)"` // "channel", "guide", "lineup"
	ResourceID   string         `gorm:"type:uuid"`
	Details      map[string]any `gorm:"type:jsonb;serializer:json"`
	IPAddress    string         `gorm:"type:varchar(45)"`
	UserAgent    string         `gorm:"type:varchar(512)"`
	CreatedAt    time.Time
}

// TableName returns the table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
