package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TrackStatus is the pre-moderation / moderation state of a track.
//
// The ingestion pipeline only ever moves a track from StatusSubmitted to
// StatusReviewPending or StatusRejected. The moderation surface moves
// StatusReviewPending to StatusPublished or StatusRejected. Published and
// rejected are terminal; a re-submission creates a new track.
type TrackStatus string

const (
	StatusSubmitted     TrackStatus = "SUBMITTED"
	StatusReviewPending TrackStatus = "REVIEW_PENDING"
	StatusPublished     TrackStatus = "PUBLISHED"
	StatusRejected      TrackStatus = "REJECTED"
)

// StringList stores a list of strings as a JSON column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type for string list: %T", value)
	}
	if len(raw) == 0 {
		*l = nil
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Track represents one submitted audio work in the catalog.
type Track struct {
	ID             int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	ArtistID       int64       `json:"artistId" gorm:"column:artist_id;index"`
	Title          string      `json:"title" gorm:"column:title;size:255;not null"`
	Lyrics         string      `json:"lyrics" gorm:"column:lyrics;type:text"`
	Duration       float64     `json:"duration" gorm:"column:duration"` // seconds
	AudioURL       string      `json:"audioUrl" gorm:"column:audio_url;size:512"`
	ImageURL       string      `json:"imageUrl" gorm:"column:image_url;size:512"`
	DeclaredGenres StringList  `json:"declaredGenres" gorm:"column:declared_genres;type:text"`
	Status         TrackStatus `json:"status" gorm:"column:status;size:32;index;not null"`
	StatusNote     string      `json:"statusNote,omitempty" gorm:"column:status_note;size:512"` // diagnostic for rejections
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// TableName overrides the GORM default.
func (Track) TableName() string {
	return "tracks"
}
