package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"MSMA/storage"
)

// ErrDownloadFailed indicates the submitted audio could not be copied into
// local scratch storage.
var ErrDownloadFailed = errors.New("audio download failed")

// ScratchFile is a run-scoped local copy of the submitted audio. It is
// exclusively owned by the ingestion run that acquired it and must be given
// back to the store on every exit path of that run.
type ScratchFile struct {
	Path string
}

// Open opens the scratch file for reading.
func (f *ScratchFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

// Name returns the file name without the scratch directory.
func (f *ScratchFile) Name() string {
	return filepath.Base(f.Path)
}

// ScratchStore downloads remote audio objects into a local scratch directory
// for the duration of one ingestion run.
type ScratchStore struct {
	dir        string
	httpClient *http.Client
}

// NewScratchStore creates the scratch directory if needed.
func NewScratchStore(dir string) (*ScratchStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
	}
	return &ScratchStore{
		dir: dir,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// Acquire downloads the remote object to a scratch file named
// deterministically from the given name.
func (s *ScratchStore) Acquire(ctx context.Context, remoteURL, name string) (*ScratchFile, error) {
	reader, err := s.openRemote(ctx, remoteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer reader.Close()

	localPath := filepath.Join(s.dir, scratchFilename(name, remoteURL))
	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrDownloadFailed, localPath, err)
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("%w: writing %s: %v", ErrDownloadFailed, localPath, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return nil, fmt.Errorf("%w: closing %s: %v", ErrDownloadFailed, localPath, err)
	}

	return &ScratchFile{Path: localPath}, nil
}

// Release deletes the scratch file. Deleting a file that is already gone is
// not an error.
func (s *ScratchStore) Release(f *ScratchFile) error {
	if f == nil {
		return nil
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove scratch file %s: %w", f.Path, err)
	}
	return nil
}

// openRemote reads minio:// URLs through the object store and anything else
// over plain HTTP(S).
func (s *ScratchStore) openRemote(ctx context.Context, remoteURL string) (io.ReadCloser, error) {
	if bucket, objectName, ok := storage.ParseObjectURL(remoteURL); ok {
		return storage.DownloadObject(ctx, bucket, objectName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, remoteURL)
	}
	return resp.Body, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]`)
var multipleSpaces = regexp.MustCompile(`\s+`)

// scratchFilename builds a deterministic, filesystem-safe name. The
// extension is taken from the remote URL, defaulting to .mp3.
func scratchFilename(name, remoteURL string) string {
	base := strings.TrimSpace(name)
	base = multipleSpaces.ReplaceAllString(base, "_")
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	if base == "" {
		base = "scratch_audio"
	}
	if len(base) > 100 {
		base = base[:100]
	}

	ext := path.Ext(remoteURL)
	if ext == "" || len(ext) > 8 {
		ext = ".mp3"
	}
	return base + ext
}
