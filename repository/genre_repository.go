package repository

import (
	"context"
	"fmt"

	"MSMA/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenreRepository defines the interface for genre catalog operations.
type GenreRepository interface {
	FindAll(ctx context.Context) ([]model.Genre, error)
	Create(ctx context.Context, genre *model.Genre) error
	FindLinksByTrack(ctx context.Context, trackID int64) ([]model.GenreLink, error)
}

type gormGenreRepository struct {
	db *gorm.DB
}

// NewGenreRepository creates a GORM-backed GenreRepository.
func NewGenreRepository(db *gorm.DB) GenreRepository {
	return &gormGenreRepository{db: db}
}

func (r *gormGenreRepository) FindAll(ctx context.Context) ([]model.Genre, error) {
	var genres []model.Genre
	if err := r.db.WithContext(ctx).Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("failed to load genre catalog: %w", err)
	}
	return genres, nil
}

func (r *gormGenreRepository) Create(ctx context.Context, genre *model.Genre) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(genre).Error
	if err != nil {
		return fmt.Errorf("failed to create genre %s: %w", genre.Name, err)
	}
	return nil
}

func (r *gormGenreRepository) FindLinksByTrack(ctx context.Context, trackID int64) ([]model.GenreLink, error) {
	var links []model.GenreLink
	err := r.db.WithContext(ctx).
		Where("track_id = ?", trackID).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load genre links for track %d: %w", trackID, err)
	}
	return links, nil
}
