package ingest

import (
	"context"
	"fmt"
	"strings"

	"MSMA/cache"
	"MSMA/logger"
	"MSMA/repository"
)

// UnknownGenreError indicates a predicted genre label has no catalog match.
// An unresolvable prediction points at classifier/catalog drift, so it is a
// hard pipeline failure rather than a silently dropped label.
type UnknownGenreError struct {
	Name string
}

func (e *UnknownGenreError) Error() string {
	return fmt.Sprintf("predicted genre not found in catalog: %s", e.Name)
}

// NormalizeGenreLabel lowercases a label and folds spaces and hyphens to
// underscores, e.g. "Hip-Hop" and "hip hop" both become "hip_hop". This rule
// is a contract: reconciliation and catalog matching depend on it.
func NormalizeGenreLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

// ReconcileGenre combines the lyrics-derived and audio-derived genre
// predictions into one normalized label. Equal labels agree; otherwise the
// audio-derived label wins. Returns "" when neither prediction produced a
// label.
func ReconcileGenre(lyricsLabel, audioLabel string) string {
	lyric := NormalizeGenreLabel(lyricsLabel)
	audio := NormalizeGenreLabel(audioLabel)

	if audio != "" {
		return audio
	}
	return lyric
}

// GenreResolver maps declared or predicted genre names to catalog genre ids.
type GenreResolver struct {
	genres repository.GenreRepository
	cache  *cache.GenreCache
}

// NewGenreResolver creates a resolver. cache may be nil.
func NewGenreResolver(genres repository.GenreRepository, genreCache *cache.GenreCache) *GenreResolver {
	return &GenreResolver{genres: genres, cache: genreCache}
}

// ResolveDeclared maps user-declared genre names to catalog ids. Declared
// names without a catalog match are dropped; a creator typo is not a
// pipeline failure.
func (r *GenreResolver) ResolveDeclared(ctx context.Context, names []string) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}
	catalog, err := r.catalog(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, name := range names {
		if id, ok := catalog[NormalizeGenreLabel(name)]; ok {
			ids = appendUniqueID(ids, id)
		} else {
			logger.Debug("declared genre not in catalog, dropping",
				logger.String("genre", name))
		}
	}
	return ids, nil
}

// ResolvePredicted maps a predicted label to a catalog id, failing with
// UnknownGenreError when there is no match.
func (r *GenreResolver) ResolvePredicted(ctx context.Context, label string) (int64, error) {
	catalog, err := r.catalog(ctx)
	if err != nil {
		return 0, err
	}

	normalized := NormalizeGenreLabel(label)
	id, ok := catalog[normalized]
	if !ok {
		return 0, &UnknownGenreError{Name: normalized}
	}
	return id, nil
}

// catalog returns the normalized name -> id mapping, reading through the
// Redis cache.
func (r *GenreResolver) catalog(ctx context.Context) (map[string]int64, error) {
	if ids, ok := r.cache.Get(ctx); ok {
		return ids, nil
	}

	genres, err := r.genres.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(genres))
	for _, genre := range genres {
		ids[NormalizeGenreLabel(genre.Name)] = genre.ID
	}

	if err := r.cache.Set(ctx, ids); err != nil {
		logger.Warn("failed to cache genre catalog", logger.ErrorField(err))
	}
	return ids, nil
}

func appendUniqueID(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
