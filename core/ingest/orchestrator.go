// Package ingest implements the asynchronous track-ingestion and
// pre-moderation pipeline: download the submitted audio, run it past the
// classification service, resolve genres and settle the track into
// REVIEW_PENDING or REJECTED.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"MSMA/core/classifier"
	"MSMA/logger"
	"MSMA/model"
	"MSMA/repository"
)

// Classifier is the set of classification operations the orchestrator
// drives. *classifier.Client satisfies it.
type Classifier interface {
	CheckLyricsSimilarity(ctx context.Context, lyrics string) (*classifier.Result, error)
	CheckAudioSimilarity(ctx context.Context, audio io.Reader, filename string) (*classifier.Result, error)
	TranscribeLyrics(ctx context.Context, audio io.Reader, filename string) (*classifier.Result, error)
	CheckCrossModalConsistency(ctx context.Context, declaredLyrics, transcribedLyrics string) (*classifier.Result, error)
	PredictGenreByLyrics(ctx context.Context, lyrics string) (*classifier.Result, error)
	PredictGenreByAudio(ctx context.Context, audio io.Reader, filename, requestID string) (*classifier.Result, error)
}

// Orchestrator consumes ingestion events and runs the pre-moderation
// decision tree for one track at a time.
type Orchestrator struct {
	tracks     repository.TrackRepository
	resolver   *GenreResolver
	classifier Classifier
	scratch    *ScratchStore
}

// NewOrchestrator wires the pipeline together.
func NewOrchestrator(tracks repository.TrackRepository, resolver *GenreResolver, cls Classifier, scratch *ScratchStore) *Orchestrator {
	return &Orchestrator{
		tracks:     tracks,
		resolver:   resolver,
		classifier: cls,
		scratch:    scratch,
	}
}

// verdict is the outcome of the decision tree for one run.
type verdict struct {
	accepted bool
	reason   string  // human-readable decline reason
	lyrics   string  // final lyrics (declared or adopted transcription)
	genreIDs []int64 // resolved declared + predicted genres
}

func declined(reason string) *verdict {
	return &verdict{accepted: false, reason: reason}
}

// Process runs the full pipeline for a track id. Delivery is at-least-once,
// so the first thing it does is check the track is still SUBMITTED; any
// other status makes the event a no-op.
func (o *Orchestrator) Process(ctx context.Context, trackID int64) {
	track, err := o.tracks.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, repository.ErrTrackNotFound) {
			// Nothing to mutate; the event production invariants were broken upstream.
			logger.Error("ingestion event for unknown track", logger.Int64("trackId", trackID))
			return
		}
		logger.Error("failed to load track for ingestion",
			logger.Int64("trackId", trackID), logger.ErrorField(err))
		return
	}
	if track.Status != model.StatusSubmitted {
		logger.Debug("track already settled, skipping duplicate event",
			logger.Int64("trackId", trackID),
			logger.String("status", string(track.Status)))
		return
	}

	scratch, err := o.scratch.Acquire(ctx, track.AudioURL, scratchName(track))
	if err != nil {
		o.reject(ctx, track.ID, fmt.Sprintf("audio download failed: %v", err))
		return
	}
	defer func() {
		if err := o.scratch.Release(scratch); err != nil {
			logger.Warn("failed to release scratch file",
				logger.String("path", scratch.Path), logger.ErrorField(err))
		}
	}()

	result, err := o.evaluate(ctx, track, scratch)
	if err != nil {
		o.reject(ctx, track.ID, err.Error())
		return
	}
	if !result.accepted {
		o.reject(ctx, track.ID, result.reason)
		return
	}

	if err := o.tracks.PromoteToReview(ctx, track.ID, result.lyrics, result.genreIDs); err != nil {
		// The transaction rolled back: no links, status still SUBMITTED.
		// The event can be re-emitted once the store recovers.
		logger.Error("failed to persist accepted track",
			logger.Int64("trackId", track.ID), logger.ErrorField(err))
		return
	}

	logger.Info("track accepted for moderation review",
		logger.Int64("trackId", track.ID),
		logger.Int("genreLinks", len(result.genreIDs)))
}

// evaluate walks the decision tree: similarity checks (skipped for the
// bootstrap case), lyrics adoption or cross-modal consistency, genre
// prediction and resolution. A returned error is pipeline-fatal for the run.
func (o *Orchestrator) evaluate(ctx context.Context, track *model.Track, scratch *ScratchFile) (*verdict, error) {
	lyrics := strings.TrimSpace(track.Lyrics)

	bootstrap, err := o.isBootstrap(ctx, track.ID)
	if err != nil {
		return nil, err
	}

	var requestID, transcribed string
	if bootstrap {
		// First track ever ingested: nothing exists to compare against,
		// so only transcription runs.
		logger.Info("bootstrap ingestion, skipping similarity checks",
			logger.Int64("trackId", track.ID))
		res, err := o.withAudio(scratch, func(audio io.Reader) (*classifier.Result, error) {
			return o.classifier.TranscribeLyrics(ctx, audio, scratch.Name())
		})
		if err != nil {
			return nil, err
		}
		requestID = res.RequestID
		transcribed = strings.TrimSpace(res.Lyrics)
	} else {
		if lyrics != "" {
			res, err := o.classifier.CheckLyricsSimilarity(ctx, lyrics)
			if err != nil {
				return nil, err
			}
			if res.Match {
				return declined("lyrics match an existing track"), nil
			}
		}

		res, err := o.withAudio(scratch, func(audio io.Reader) (*classifier.Result, error) {
			return o.classifier.CheckAudioSimilarity(ctx, audio, scratch.Name())
		})
		if err != nil {
			return nil, err
		}
		if res.Match {
			return declined("audio matches an existing track"), nil
		}
		requestID = res.RequestID
		transcribed = strings.TrimSpace(res.Lyrics)
	}

	if lyrics == "" {
		// No declared lyrics: adopt the transcription.
		lyrics = transcribed
	} else if transcribed != "" {
		res, err := o.classifier.CheckCrossModalConsistency(ctx, lyrics, transcribed)
		if err != nil {
			return nil, err
		}
		if res.IsNotMatch {
			return declined("declared lyrics do not match audio"), nil
		}
	}

	var lyricsLabel, audioLabel string
	if lyrics != "" {
		res, err := o.classifier.PredictGenreByLyrics(ctx, lyrics)
		if err != nil {
			return nil, err
		}
		lyricsLabel = res.Genre
	}
	audioRes, err := o.withAudio(scratch, func(audio io.Reader) (*classifier.Result, error) {
		return o.classifier.PredictGenreByAudio(ctx, audio, scratch.Name(), requestID)
	})
	if err != nil {
		return nil, err
	}
	audioLabel = audioRes.Genre

	predicted := ReconcileGenre(lyricsLabel, audioLabel)

	genreIDs, err := o.resolver.ResolveDeclared(ctx, track.DeclaredGenres)
	if err != nil {
		return nil, err
	}
	if predicted != "" {
		id, err := o.resolver.ResolvePredicted(ctx, predicted)
		if err != nil {
			return nil, err
		}
		genreIDs = appendUniqueID(genreIDs, id)
	}

	return &verdict{accepted: true, lyrics: lyrics, genreIDs: genreIDs}, nil
}

// isBootstrap reports whether no other track has ever passed through
// ingestion. This is a point-in-time read with no locking: two first
// submissions racing each other can both observe an empty catalog and both
// skip the similarity checks. The window exists only until the very first
// run settles.
func (o *Orchestrator) isBootstrap(ctx context.Context, trackID int64) (bool, error) {
	count, err := o.tracks.CountIngested(ctx, trackID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

func (o *Orchestrator) reject(ctx context.Context, trackID int64, reason string) {
	if err := o.tracks.MarkRejected(ctx, trackID, reason); err != nil {
		logger.Error("failed to persist rejection",
			logger.Int64("trackId", trackID),
			logger.String("reason", reason),
			logger.ErrorField(err))
		return
	}
	logger.Info("track rejected",
		logger.Int64("trackId", trackID),
		logger.String("reason", reason))
}

// withAudio opens the scratch file for one classifier call and closes it
// again; each call gets a fresh reader positioned at the start.
func (o *Orchestrator) withAudio(scratch *ScratchFile, fn func(audio io.Reader) (*classifier.Result, error)) (*classifier.Result, error) {
	f, err := scratch.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch audio: %w", err)
	}
	defer f.Close()
	return fn(f)
}

func scratchName(track *model.Track) string {
	return fmt.Sprintf("%d_%s", track.ID, track.Title)
}
