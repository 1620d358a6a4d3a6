package model

import "time"

// Genre is a catalog genre.
type Genre struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"column:name;size:128;uniqueIndex;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the GORM default.
func (Genre) TableName() string {
	return "genres"
}

// GenreLink associates a track with a genre. At most one link exists per
// (track, genre) pair, and links are only written for tracks that reached
// REVIEW_PENDING.
type GenreLink struct {
	TrackID   int64     `json:"trackId" gorm:"column:track_id;primaryKey"`
	GenreID   int64     `json:"genreId" gorm:"column:genre_id;primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName overrides the GORM default.
func (GenreLink) TableName() string {
	return "genre_links"
}
