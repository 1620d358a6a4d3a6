package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"MSMA/config"
	"MSMA/core/auth"
	"MSMA/core/ingest"
	"MSMA/model"
	"MSMA/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrackRepo struct {
	mu     sync.Mutex
	tracks map[int64]*model.Track
}

func newFakeTrackRepo(tracks ...*model.Track) *fakeTrackRepo {
	repo := &fakeTrackRepo{tracks: make(map[int64]*model.Track)}
	for _, track := range tracks {
		repo.tracks[track.ID] = track
	}
	return repo
}

func (r *fakeTrackRepo) Create(ctx context.Context, track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if track.ID == 0 {
		track.ID = int64(len(r.tracks) + 1)
	}
	r.tracks[track.ID] = track
	return nil
}

func (r *fakeTrackRepo) FindByID(ctx context.Context, id int64) (*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", repository.ErrTrackNotFound, id)
	}
	copied := *track
	return &copied, nil
}

func (r *fakeTrackRepo) ListByStatus(ctx context.Context, status model.TrackStatus) ([]*model.Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Track
	for _, track := range r.tracks {
		if track.Status == status {
			copied := *track
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTrackRepo) CountIngested(ctx context.Context, excludeID int64) (int64, error) {
	return 0, nil
}

func (r *fakeTrackRepo) MarkRejected(ctx context.Context, id int64, note string) error {
	return nil
}

func (r *fakeTrackRepo) PromoteToReview(ctx context.Context, id int64, lyrics string, genreIDs []int64) error {
	return nil
}

func (r *fakeTrackRepo) Moderate(ctx context.Context, id int64, to model.TrackStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	track, ok := r.tracks[id]
	if !ok || track.Status != model.StatusReviewPending {
		return false, nil
	}
	track.Status = to
	return true, nil
}

type fakeGenreRepo struct {
	links map[int64][]model.GenreLink
}

func (r *fakeGenreRepo) FindAll(ctx context.Context) ([]model.Genre, error) { return nil, nil }

func (r *fakeGenreRepo) Create(ctx context.Context, genre *model.Genre) error { return nil }

func (r *fakeGenreRepo) FindLinksByTrack(ctx context.Context, trackID int64) ([]model.GenreLink, error) {
	return r.links[trackID], nil
}

func newTestHandler(trackRepo repository.TrackRepository, genreRepo repository.GenreRepository) *APIHandler {
	return NewAPIHandler(trackRepo, genreRepo, ingest.NewQueue(4), &config.Config{})
}

func testRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/api/tracks/{id:[0-9]+}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/moderation/pending", h.ListPendingTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/moderation/tracks/{id:[0-9]+}", h.ModerateTrackHandler).Methods(http.MethodPost)
	return router
}

func TestGetTrackHandler(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(&model.Track{ID: 7, Title: "Song", Status: model.StatusReviewPending})
	genres := &fakeGenreRepo{links: map[int64][]model.GenreLink{
		7: {{TrackID: 7, GenreID: 1}, {TrackID: 7, GenreID: 3}},
	}}
	router := testRouter(newTestHandler(repo, genres))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks/7", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Track    model.Track `json:"track"`
		GenreIDs []int64     `json:"genreIds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Song", body.Track.Title)
	assert.Equal(t, model.StatusReviewPending, body.Track.Status)
	assert.Equal(t, []int64{1, 3}, body.GenreIDs)
}

func TestGetTrackHandlerNotFound(t *testing.T) {
	t.Parallel()

	router := testRouter(newTestHandler(newFakeTrackRepo(), &fakeGenreRepo{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tracks/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPendingTracksHandler(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(
		&model.Track{ID: 1, Status: model.StatusReviewPending},
		&model.Track{ID: 2, Status: model.StatusPublished},
		&model.Track{ID: 3, Status: model.StatusReviewPending},
	)
	router := testRouter(newTestHandler(repo, &fakeGenreRepo{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/moderation/pending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}

func moderate(t *testing.T, router *mux.Router, id int64, action string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"action": action})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/moderation/tracks/%d", id), bytes.NewReader(payload))
	router.ServeHTTP(rec, req)
	return rec
}

func TestModerateTrackHandlerPublish(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(&model.Track{ID: 5, Status: model.StatusReviewPending})
	router := testRouter(newTestHandler(repo, &fakeGenreRepo{}))

	rec := moderate(t, router, 5, "publish")

	require.Equal(t, http.StatusOK, rec.Code)
	track, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, track.Status)
}

func TestModerateTrackHandlerReject(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(&model.Track{ID: 5, Status: model.StatusReviewPending})
	router := testRouter(newTestHandler(repo, &fakeGenreRepo{}))

	rec := moderate(t, router, 5, "reject")

	require.Equal(t, http.StatusOK, rec.Code)
	track, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, track.Status)
}

func TestModerateTrackHandlerInvalidAction(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(&model.Track{ID: 5, Status: model.StatusReviewPending})
	router := testRouter(newTestHandler(repo, &fakeGenreRepo{}))

	rec := moderate(t, router, 5, "delete")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	track, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReviewPending, track.Status)
}

func TestModerateTrackHandlerConflictWhenNotPending(t *testing.T) {
	t.Parallel()

	repo := newFakeTrackRepo(&model.Track{ID: 5, Status: model.StatusSubmitted})
	router := testRouter(newTestHandler(repo, &fakeGenreRepo{}))

	rec := moderate(t, router, 5, "publish")

	assert.Equal(t, http.StatusConflict, rec.Code)
	track, err := repo.FindByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, track.Status)
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestUploadTrackHandlerRequiresTitle(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newFakeTrackRepo(), &fakeGenreRepo{})
	body, contentType := multipartBody(t, map[string]string{}, "file", "a.mp3", "bytes")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tracks/upload", body)
	req.Header.Set("Content-Type", contentType)
	h.UploadTrackHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")
}

func TestUploadTrackHandlerRequiresAudioFile(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newFakeTrackRepo(), &fakeGenreRepo{})
	body, contentType := multipartBody(t, map[string]string{"title": "Song"}, "", "", "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tracks/upload", body)
	req.Header.Set("Content-Type", contentType)
	h.UploadTrackHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "audio file is required")
}

func TestUploadTrackHandlerRejectsNonMP3(t *testing.T) {
	t.Parallel()

	h := newTestHandler(newFakeTrackRepo(), &fakeGenreRepo{})
	body, contentType := multipartBody(t, map[string]string{"title": "Song"}, "file", "a.wav", "bytes")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/tracks/upload", body)
	req.Header.Set("Content-Type", contentType)
	h.UploadTrackHandler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ".mp3")
}

func TestAuthMiddleware(t *testing.T) {
	auth.SetSecret("handler-test-secret")
	h := newTestHandler(newFakeTrackRepo(), &fakeGenreRepo{})

	var gotUserID int64
	protected := h.AuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = userIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		protected(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		protected(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
			UserID: 42,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("handler-test-secret"))
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		protected(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(42), gotUserID)
	})
}

func TestCollectGenreNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []string
		want   model.StringList
	}{
		{name: "repeated fields", values: []string{"rock", "jazz"}, want: model.StringList{"rock", "jazz"}},
		{name: "comma separated", values: []string{"rock, jazz"}, want: model.StringList{"rock", "jazz"}},
		{name: "mixed with blanks", values: []string{"rock,", " ", "hip hop"}, want: model.StringList{"rock", "hip hop"}},
		{name: "empty", values: nil, want: nil},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, collectGenreNames(tt.values))
		})
	}
}

func TestSafeFilename(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "my_song.mp3", safeFilename("my song.mp3"))
	assert.Equal(t, "track.mp3", safeFilename("track.mp3"))
	assert.Equal(t, "upload", safeFilename("///"))
	assert.Equal(t, strings.Repeat("a", 100), safeFilename(strings.Repeat("a", 150)))
}
