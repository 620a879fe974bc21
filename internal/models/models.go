package models

import (
	"encoding/json"
	"strings"
	"time"
)

// SelectionMode enumerates how a programming block picks its next item.
type SelectionMode string

const (
	SelectionSequential SelectionMode = "sequential"
	SelectionShuffle    SelectionMode = "shuffle"
	SelectionRandom     SelectionMode = "random"
)

// ContentKind enumerates catalog item types.
type ContentKind string

const (
	KindMovie      ContentKind = "movie"
	KindSeries     ContentKind = "series"
	KindEpisode    ContentKind = "episode"
	KindCommercial ContentKind = "commercial"
	KindPreRoll    ContentKind = "preroll"
)

// BreakIntervalMode enumerates commercial cadence settings.
type BreakIntervalMode string

const (
	IntervalEvery10 BreakIntervalMode = "interval_10"
	IntervalEvery15 BreakIntervalMode = "interval_15"
	IntervalEvery20 BreakIntervalMode = "interval_20"
	IntervalEvery30 BreakIntervalMode = "interval_30"
	IntervalNatural BreakIntervalMode = "natural"
	IntervalCustom  BreakIntervalMode = "custom"
)

// CommercialPolicy configures commercial breaks and pre-rolls for a channel.
type CommercialPolicy struct {
	Enabled               bool              `json:"enabled"`
	IntervalMode          BreakIntervalMode `json:"interval_mode" gorm:"type:varchar(16)"`
	CustomIntervalMinutes int               `json:"custom_interval_minutes,omitempty"`
	MinPerBreak           int               `json:"min_per_break"`
	MaxPerBreak           int               `json:"max_per_break"`
	UsePreRolls           bool              `json:"use_pre_rolls"`
}

// IntervalMinutes resolves the cadence mode to a minute count. The natural
// mode has no break point detection and falls back to the custom value.
func (p CommercialPolicy) IntervalMinutes() int {
	switch p.IntervalMode {
	case IntervalEvery10:
		return 10
	case IntervalEvery15:
		return 15
	case IntervalEvery20:
		return 20
	case IntervalEvery30:
		return 30
	case IntervalNatural, IntervalCustom:
		return p.CustomIntervalMinutes
	default:
		return p.CustomIntervalMinutes
	}
}

// Channel is a virtual broadcast channel definition.
type Channel struct {
	ID           string             `gorm:"type:uuid;primaryKey"`
	Name         string             `gorm:"index"`
	Number       int                `gorm:"uniqueIndex"`
	Enabled      bool               `gorm:"index"`
	Commercials  CommercialPolicy   `gorm:"embedded;embeddedPrefix:commercial_"`
	AutoCriteria string             `gorm:"type:text"`
	Blocks       []ProgrammingBlock `gorm:"foreignKey:ChannelID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Criteria decodes the channel's facet criteria. Returns nil for manual
// channels whose blocks carry explicit content references.
func (c Channel) Criteria() (*FacetCriteria, error) {
	if strings.TrimSpace(c.AutoCriteria) == "" {
		return nil, nil
	}
	var fc FacetCriteria
	if err := json.Unmarshal([]byte(c.AutoCriteria), &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// SetCriteria encodes the facet criteria onto the channel.
func (c *Channel) SetCriteria(fc *FacetCriteria) error {
	if fc == nil {
		c.AutoCriteria = ""
		return nil
	}
	raw, err := json.Marshal(fc)
	if err != nil {
		return err
	}
	c.AutoCriteria = string(raw)
	return nil
}

// FacetCriteria narrows a catalog query for auto generated channels.
type FacetCriteria struct {
	Kinds     []ContentKind `json:"kinds,omitempty"`
	LibraryID string        `json:"library_id,omitempty"`
	Recursive bool          `json:"recursive,omitempty"`
	Genres    []string      `json:"genres,omitempty"`
	YearFrom  int           `json:"year_from,omitempty"`
	YearTo    int           `json:"year_to,omitempty"`
	Years     []int         `json:"years,omitempty"`
}

// ProgrammingBlock is a scheduled window of the day with its own content
// set and playback mode. Blocks are not validated as contiguous or
// non-overlapping; when windows overlap the earliest start wins.
type ProgrammingBlock struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	ChannelID     string `gorm:"type:uuid;index"`
	Name          string
	Position      int
	StartOffset   time.Duration
	EndOffset     *time.Duration
	ContentKind   ContentKind   `gorm:"type:varchar(16)"`
	SelectionMode SelectionMode `gorm:"type:varchar(16)"`
	EpisodeOrder  bool
	ContentRefs   string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RefIDs decodes the block's explicit content references. An empty or
// malformed column yields an empty slice.
func (b ProgrammingBlock) RefIDs() []string {
	if strings.TrimSpace(b.ContentRefs) == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(b.ContentRefs), &ids); err != nil {
		return nil
	}
	return ids
}

// SetRefIDs encodes explicit content references onto the block.
func (b *ProgrammingBlock) SetRefIDs(ids []string) error {
	if len(ids) == 0 {
		b.ContentRefs = ""
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	b.ContentRefs = string(raw)
	return nil
}

// Library groups catalog items for scoped queries.
type Library struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ParentID  string `gorm:"type:uuid;index"`
	Name      string `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContentItem is a catalog asset: a movie, series, episode, commercial or
// pre-roll bumper.
type ContentItem struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	LibraryID string      `gorm:"type:uuid;index"`
	ParentID  string      `gorm:"type:uuid;index"`
	Name      string      `gorm:"index"`
	Overview  string      `gorm:"type:text"`
	Kind      ContentKind `gorm:"type:varchar(16);index"`
	Runtime   time.Duration
	Genres    string
	Rating    string `gorm:"type:varchar(16)"`
	Year      int    `gorm:"index"`
	Season    int
	Episode   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenreList splits the comma joined genre column.
func (i ContentItem) GenreList() []string {
	if strings.TrimSpace(i.Genres) == "" {
		return nil
	}
	parts := strings.Split(i.Genres, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// HasGenre reports whether the item carries the genre, case insensitively.
func (i ContentItem) HasGenre(genre string) bool {
	for _, g := range i.GenreList() {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}
