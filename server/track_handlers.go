package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"MSMA/config"
	"MSMA/core/auth"
	"MSMA/core/ingest"
	"MSMA/logger"
	"MSMA/model"
	"MSMA/repository"
	"MSMA/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// APIHandler handles all API requests.
type APIHandler struct {
	trackRepo repository.TrackRepository
	genreRepo repository.GenreRepository
	queue     *ingest.Queue
	cfg       *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(trackRepo repository.TrackRepository, genreRepo repository.GenreRepository, queue *ingest.Queue, cfg *config.Config) *APIHandler {
	return &APIHandler{
		trackRepo: trackRepo,
		genreRepo: genreRepo,
		queue:     queue,
		cfg:       cfg,
	}
}

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware checks for a valid bearer JWT and stores the caller's id
// on the request context. Token issuance happens in the platform's account
// service; only validation lives here.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

func userIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(userIDKey).(int64); ok {
		return id
	}
	return 0
}

var nonAlphaNumeric = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

func safeFilename(name string) string {
	base := strings.TrimSpace(name)
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = nonAlphaNumeric.ReplaceAllString(base, "")
	if base == "" {
		base = "upload"
	}
	if len(base) > 100 {
		base = base[:100]
	}
	return base
}

const maxUploadSize = 100 << 20 // 100MB

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

// UploadTrackHandler accepts a new track submission: audio file, optional
// cover image, title, lyrics and declared genre names. The blobs are stored,
// the track row is created in SUBMITTED and an ingestion event is queued.
// The response never waits for the analysis outcome.
func (h *APIHandler) UploadTrackHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	lyrics := strings.TrimSpace(r.FormValue("lyrics"))

	var duration float64
	if raw := strings.TrimSpace(r.FormValue("duration")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid duration")
			return
		}
		duration = parsed
	}

	genreNames := collectGenreNames(r.MultipartForm.Value["genres"])

	audioFile, audioHeader, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer audioFile.Close()

	if !strings.HasSuffix(strings.ToLower(audioHeader.Filename), ".mp3") {
		respondError(w, http.StatusBadRequest, "only .mp3 files are allowed")
		return
	}

	ctx := r.Context()

	audioObject := fmt.Sprintf("tracks/audio/%s_%s", uuid.New().String(), safeFilename(audioHeader.Filename))
	audioURL, err := storage.UploadObject(ctx, audioObject, audioFile, audioHeader.Size, "audio/mpeg")
	if err != nil {
		logger.Error("failed to store audio upload", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	var imageURL string
	imageFile, imageHeader, err := r.FormFile("image")
	if err == nil {
		defer imageFile.Close()
		ext := strings.ToLower(filepath.Ext(imageHeader.Filename))
		if !containsString(allowedImageExtensions, ext) {
			respondError(w, http.StatusBadRequest, "unsupported cover image type")
			return
		}
		imageObject := fmt.Sprintf("tracks/covers/%s_%s", uuid.New().String(), safeFilename(imageHeader.Filename))
		imageURL, err = storage.UploadObject(ctx, imageObject, imageFile, imageHeader.Size, "image/"+strings.TrimPrefix(ext, "."))
		if err != nil {
			logger.Error("failed to store cover upload", logger.ErrorField(err))
			respondError(w, http.StatusInternalServerError, "failed to store cover image")
			return
		}
	}

	track := &model.Track{
		ArtistID:       userIDFromContext(ctx),
		Title:          title,
		Lyrics:         lyrics,
		Duration:       duration,
		AudioURL:       audioURL,
		ImageURL:       imageURL,
		DeclaredGenres: genreNames,
		Status:         model.StatusSubmitted,
	}
	if err := h.trackRepo.Create(ctx, track); err != nil {
		logger.Error("failed to create track", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to create track")
		return
	}

	if err := h.queue.Enqueue(model.IngestionEvent{TrackID: track.ID}); err != nil {
		// Explicit backpressure: the track stays SUBMITTED and the event
		// can be re-emitted with the ingest subcommand.
		logger.Warn("ingestion queue full, event dropped",
			logger.Int64("trackId", track.ID))
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"id":     track.ID,
			"status": track.Status,
			"error":  "ingestion queue full, submission accepted but not yet scheduled",
		})
		return
	}

	logger.Info("track submitted",
		logger.Int64("trackId", track.ID),
		logger.String("title", title),
		logger.Int64("artistId", track.ArtistID))

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"id":     track.ID,
		"status": track.Status,
	})
}

// GetTrackHandler returns a track with its genre links. Re-reading status
// here is how a submitter observes the eventual accept/reject outcome.
func (h *APIHandler) GetTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	track, err := h.trackRepo.FindByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrTrackNotFound) {
			respondError(w, http.StatusNotFound, "track not found")
			return
		}
		logger.Error("failed to load track", logger.Int64("trackId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load track")
		return
	}

	links, err := h.genreRepo.FindLinksByTrack(r.Context(), id)
	if err != nil {
		logger.Error("failed to load genre links", logger.Int64("trackId", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load track")
		return
	}
	genreIDs := make([]int64, 0, len(links))
	for _, link := range links {
		genreIDs = append(genreIDs, link.GenreID)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"track":    track,
		"genreIds": genreIDs,
	})
}

// RegisterRoutes registers the API endpoints.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/tracks/upload", h.AuthMiddleware(h.UploadTrackHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tracks/{id:[0-9]+}", h.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/moderation/pending", h.AuthMiddleware(h.ListPendingTracksHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/moderation/tracks/{id:[0-9]+}", h.AuthMiddleware(h.ModerateTrackHandler)).Methods(http.MethodPost)
}

func collectGenreNames(values []string) model.StringList {
	var names model.StringList
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
