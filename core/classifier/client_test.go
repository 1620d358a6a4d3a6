package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestCheckLyricsSimilarityEncodesForm(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/check-similarity", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "some lyrics here", r.PostFormValue("lyrics"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"request_id":"req-1","match":true,"similarity_score":0.97}`))
	})

	res, err := client.CheckLyricsSimilarity(context.Background(), "some lyrics here")
	require.NoError(t, err)
	assert.True(t, res.Match)
	assert.Equal(t, "req-1", res.RequestID)
	assert.InDelta(t, 0.97, res.SimilarityScore, 1e-9)
}

func TestCheckAudioSimilaritySendsMultipart(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check-similarity", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("audio_file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "track.mp3", header.Filename)

		w.Write([]byte(`{"request_id":"req-2","match":false,"lyrics":"transcribed words"}`))
	})

	res, err := client.CheckAudioSimilarity(context.Background(), strings.NewReader("fake-mp3-bytes"), "track.mp3")
	require.NoError(t, err)
	assert.False(t, res.Match)
	assert.Equal(t, "transcribed words", res.Lyrics)
	assert.Equal(t, "req-2", res.RequestID)
}

func TestCheckCrossModalConsistencyFields(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check-similar-between-input-and-audio", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "declared", r.FormValue("lyrics"))
		assert.Equal(t, "heard", r.FormValue("lyrics_audio"))

		w.Write([]byte(`{"isNotMatch":true,"similarity_score":0.12}`))
	})

	res, err := client.CheckCrossModalConsistency(context.Background(), "declared", "heard")
	require.NoError(t, err)
	assert.True(t, res.IsNotMatch)
}

func TestPredictGenreByAudioForwardsRequestID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict-genre", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "req-7", r.FormValue("request_id"))
		_, _, err := r.FormFile("audio_file")
		require.NoError(t, err)

		w.Write([]byte(`{"genre":"hip_hop"}`))
	})

	res, err := client.PredictGenreByAudio(context.Background(), strings.NewReader("bytes"), "a.mp3", "req-7")
	require.NoError(t, err)
	assert.Equal(t, "hip_hop", res.Genre)
}

func TestPredictGenreByAudioOmitsEmptyRequestID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, present := r.MultipartForm.Value["request_id"]
		assert.False(t, present)
		w.Write([]byte(`{"genre":"jazz"}`))
	})

	_, err := client.PredictGenreByAudio(context.Background(), strings.NewReader("bytes"), "a.mp3", "")
	require.NoError(t, err)
}

func TestServerErrorWrapsErrUnavailable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	})

	_, err := client.CheckLyricsSimilarity(context.Background(), "lyrics")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestUnreachableServiceWrapsErrUnavailable(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := client.TranscribeLyrics(context.Background(), strings.NewReader("bytes"), "a.mp3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMalformedResponseWrapsErrUnavailable(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.PredictGenreByLyrics(context.Background(), "lyrics")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
