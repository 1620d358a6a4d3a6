// Package classifier wraps the external content-classification service used
// during track ingestion: similarity detection, lyric transcription and
// genre prediction.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnavailable indicates the classification service could not be reached
// or answered with an error. Calls are not retried; the caller decides what
// a failed run means.
var ErrUnavailable = errors.New("classification service unavailable")

// Result is the response of a single classification call. It is transient:
// consumed within one ingestion run and discarded.
type Result struct {
	RequestID       string  `json:"request_id"`
	Lyrics          string  `json:"lyrics"` // transcription of the submitted audio
	Match           bool    `json:"match"`
	IsNotMatch      bool    `json:"isNotMatch"`
	SimilarityScore float64 `json:"similarity_score"`
	Genre           string  `json:"genre"`
	Message         string  `json:"message"`
}

// Client is a typed client for the classification service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a classification service client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CheckLyricsSimilarity returns Match=true if the lyrics closely resemble an
// existing catalog entry.
func (c *Client) CheckLyricsSimilarity(ctx context.Context, lyrics string) (*Result, error) {
	form := url.Values{}
	form.Set("lyrics", lyrics)
	return c.postForm(ctx, "/check-similarity", form)
}

// CheckAudioSimilarity returns Match=true if the audio fingerprint resembles
// an existing catalog entry. The result also carries a best-effort
// transcription and a request id reused by later calls for the same run.
func (c *Client) CheckAudioSimilarity(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	return c.postMultipart(ctx, "/check-similarity", nil, "audio_file", filename, audio)
}

// TranscribeLyrics transcribes the audio without any similarity checking.
func (c *Client) TranscribeLyrics(ctx context.Context, audio io.Reader, filename string) (*Result, error) {
	return c.postMultipart(ctx, "/transcribe-lyrics", nil, "audio_file", filename, audio)
}

// CheckCrossModalConsistency returns IsNotMatch=true if the declared lyrics
// and the transcribed lyrics appear to describe different songs.
func (c *Client) CheckCrossModalConsistency(ctx context.Context, declaredLyrics, transcribedLyrics string) (*Result, error) {
	fields := map[string]string{
		"lyrics":       declaredLyrics,
		"lyrics_audio": transcribedLyrics,
	}
	return c.postMultipart(ctx, "/check-similar-between-input-and-audio", fields, "", "", nil)
}

// PredictGenreByLyrics predicts a genre label from lyrics text.
func (c *Client) PredictGenreByLyrics(ctx context.Context, lyrics string) (*Result, error) {
	form := url.Values{}
	form.Set("lyrics", lyrics)
	return c.postForm(ctx, "/predict-genre", form)
}

// PredictGenreByAudio predicts a genre label from the audio. requestID is
// the correlation id returned by an earlier similarity or transcription call.
func (c *Client) PredictGenreByAudio(ctx context.Context, audio io.Reader, filename, requestID string) (*Result, error) {
	fields := map[string]string{}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return c.postMultipart(ctx, "/predict-genre", fields, "audio_file", filename, audio)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, path)
}

func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, filename string, file io.Reader) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("failed to copy audio payload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(req, path)
}

func (c *Client) do(req *http.Request, path string) (*Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading response: %v", ErrUnavailable, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrUnavailable, path, resp.StatusCode, errorDetail(raw))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding response: %v", ErrUnavailable, path, err)
	}
	return &result, nil
}

// errorDetail extracts the service's error message from a failure body.
func errorDetail(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	detail := strings.TrimSpace(string(raw))
	if len(detail) > 256 {
		detail = detail[:256]
	}
	return detail
}
