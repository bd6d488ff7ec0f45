package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog/log"
)

// Uploader ships result artifacts (screenshots, result files) to an
// external sink. Implementations must be safe for concurrent use.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// NopUploader discards everything. Used when no artifact endpoint is
// configured.
type NopUploader struct{}

func (NopUploader) Upload(context.Context, string, []byte) error { return nil }

// HTTPUploader PUTs artifacts to baseURL/<name>.
type HTTPUploader struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUploader(baseURL string) *HTTPUploader {
	return &HTTPUploader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (u *HTTPUploader) Upload(ctx context.Context, name string, data []byte) error {
	target := u.baseURL + "/" + path.Clean(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("upload %s rejected with status %d", name, resp.StatusCode)
	}
	return nil
}

// UploadAsync fires an upload in the background and only logs failures.
// Artifact delivery must never block or fail a check.
func UploadAsync(u Uploader, name string, data []byte) {
	if u == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := u.Upload(ctx, name, data); err != nil {
			log.Warn().Err(err).Str("artifact", name).Msg("Artifact upload failed")
		}
	}()
}
