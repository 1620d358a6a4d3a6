package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"MSMA/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTrackNotFound is returned when a track id has no row. The pipeline
// treats it as fatal for the run but never mutates anything in response.
var ErrTrackNotFound = errors.New("track not found")

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	FindByID(ctx context.Context, id int64) (*model.Track, error)
	ListByStatus(ctx context.Context, status model.TrackStatus) ([]*model.Track, error)
	// CountIngested counts tracks that have passed through ingestion
	// (REVIEW_PENDING, PUBLISHED or REJECTED), excluding the given id.
	CountIngested(ctx context.Context, excludeID int64) (int64, error)
	// MarkRejected moves a SUBMITTED track to REJECTED with a diagnostic
	// note. It is a no-op if the track already left SUBMITTED.
	MarkRejected(ctx context.Context, id int64, note string) error
	// PromoteToReview atomically writes the final lyrics, the genre links
	// and the REVIEW_PENDING status. The status write is guarded on
	// SUBMITTED; if another run got there first, nothing is written.
	PromoteToReview(ctx context.Context, id int64, lyrics string, genreIDs []int64) error
	// Moderate moves a REVIEW_PENDING track to PUBLISHED or REJECTED.
	// Returns false if the track was not awaiting review.
	Moderate(ctx context.Context, id int64, to model.TrackStatus) (bool, error)
}

type gormTrackRepository struct {
	db *gorm.DB
}

// NewTrackRepository creates a GORM-backed TrackRepository.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	if track.Status == "" {
		track.Status = model.StatusSubmitted
	}
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (r *gormTrackRepository) FindByID(ctx context.Context, id int64) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).First(&track, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTrackNotFound, id)
		}
		return nil, fmt.Errorf("failed to find track %d: %w", id, err)
	}
	return &track, nil
}

func (r *gormTrackRepository) ListByStatus(ctx context.Context, status model.TrackStatus) ([]*model.Track, error) {
	var tracks []*model.Track
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Find(&tracks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks with status %s: %w", status, err)
	}
	return tracks, nil
}

func (r *gormTrackRepository) CountIngested(ctx context.Context, excludeID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Track{}).
		Where("status IN ?", []model.TrackStatus{
			model.StatusReviewPending,
			model.StatusPublished,
			model.StatusRejected,
		}).
		Where("id <> ?", excludeID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count ingested tracks: %w", err)
	}
	return count, nil
}

func (r *gormTrackRepository) MarkRejected(ctx context.Context, id int64, note string) error {
	err := r.db.WithContext(ctx).
		Model(&model.Track{}).
		Where("id = ? AND status = ?", id, model.StatusSubmitted).
		Updates(map[string]interface{}{
			"status":      model.StatusRejected,
			"status_note": note,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to reject track %d: %w", id, err)
	}
	return nil
}

func (r *gormTrackRepository) PromoteToReview(ctx context.Context, id int64, lyrics string, genreIDs []int64) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Track{}).
			Where("id = ? AND status = ?", id, model.StatusSubmitted).
			Updates(map[string]interface{}{
				"status":      model.StatusReviewPending,
				"status_note": "",
				"lyrics":      lyrics,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another consumer already settled this track.
			return nil
		}

		if len(genreIDs) == 0 {
			return nil
		}
		links := make([]model.GenreLink, 0, len(genreIDs))
		now := time.Now()
		for _, genreID := range genreIDs {
			links = append(links, model.GenreLink{TrackID: id, GenreID: genreID, CreatedAt: now})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
	if err != nil {
		return fmt.Errorf("failed to promote track %d to review: %w", id, err)
	}
	return nil
}

func (r *gormTrackRepository) Moderate(ctx context.Context, id int64, to model.TrackStatus) (bool, error) {
	if to != model.StatusPublished && to != model.StatusRejected {
		return false, fmt.Errorf("invalid moderation target status: %s", to)
	}
	res := r.db.WithContext(ctx).
		Model(&model.Track{}).
		Where("id = ? AND status = ?", id, model.StatusReviewPending).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to moderate track %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}
