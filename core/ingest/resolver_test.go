package ingest

import (
	"context"
	"testing"

	"MSMA/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeGenreLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase passthrough", input: "rock", want: "rock"},
		{name: "uppercase", input: "Rock", want: "rock"},
		{name: "hyphen", input: "Hip-Hop", want: "hip_hop"},
		{name: "space", input: "hip hop", want: "hip_hop"},
		{name: "surrounding whitespace", input: "  Jazz  ", want: "jazz"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeGenreLabel(tt.input))
		})
	}
}

func TestReconcileGenre(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lyrics string
		audio  string
		want   string
	}{
		{name: "agreement", lyrics: "Pop", audio: "pop", want: "pop"},
		{name: "audio wins conflict", lyrics: "Rock", audio: "Jazz", want: "jazz"},
		{name: "only lyrics", lyrics: "rock", audio: "", want: "rock"},
		{name: "only audio", lyrics: "", audio: "Hip-Hop", want: "hip_hop"},
		{name: "neither", lyrics: "", audio: "", want: ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ReconcileGenre(tt.lyrics, tt.audio))
		})
	}
}

func catalogResolver() *GenreResolver {
	return NewGenreResolver(&fakeGenreRepo{genres: []model.Genre{
		{ID: 1, Name: "rock"},
		{ID: 2, Name: "jazz"},
		{ID: 3, Name: "hip_hop"},
	}}, nil)
}

func TestResolveDeclaredDropsUnknownNames(t *testing.T) {
	t.Parallel()

	ids, err := catalogResolver().ResolveDeclared(context.Background(), []string{"Rock", "Vaporwave", "Hip-Hop", "rock"})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestResolveDeclaredEmptyInput(t *testing.T) {
	t.Parallel()

	ids, err := catalogResolver().ResolveDeclared(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestResolvePredicted(t *testing.T) {
	t.Parallel()

	id, err := catalogResolver().ResolvePredicted(context.Background(), "Jazz")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestResolvePredictedUnknownGenre(t *testing.T) {
	t.Parallel()

	_, err := catalogResolver().ResolvePredicted(context.Background(), "Vaporwave")
	require.Error(t, err)

	var unknownErr *UnknownGenreError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "vaporwave", unknownErr.Name)
}
