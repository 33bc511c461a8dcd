// Package blobput streams an encrypted file to a presigned object-storage
// URL, retrying with a fresh URL and a corrected content length as needed.
package blobput

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/httpx"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
)

var log = logging.New("blobput")

// URLSource refreshes a presigned URL when a retry needs a new one (the
// previous one may have expired).
type URLSource interface {
	Refresh(ctx context.Context) (models.PresignedURL, error)
}

// Putter streams local files to presigned URLs.
type Putter struct {
	client *http.Client
}

// New returns a Putter using an httpx-constructed client with the given
// per-request timeout.
func New(timeout time.Duration) *Putter {
	return &Putter{client: httpx.NewClient(timeout)}
}

// Put uploads localPath's contents to url. On a "content size exceeds
// specified contentLength" failure (the source file grew, or the length we
// sent was stale) it retries once immediately with a freshly measured
// length against the same URL. Beyond that, each further retry asks
// urls.Refresh for a new URL, up to constants.DefaultMaxAttempts total
// attempts.
func (p *Putter) Put(ctx context.Context, initial models.PresignedURL, localPath string, urls URLSource) (objectKey string, err error) {
	target := initial
	lengthRetried := false

	for attempt := 0; attempt < constants.DefaultMaxAttempts; attempt++ {
		start := time.Now()
		size, perr := p.putOnce(ctx, target.URL, localPath)
		if perr == nil {
			elapsed := time.Since(start)
			rate := float64(size) / elapsed.Seconds()
			log.Debug().Str("object_key", target.ObjectKey).Int64("bytes", size).Dur("elapsed", elapsed).Float64("bytes_per_sec", rate).Msg("blob put succeeded")
			return target.ObjectKey, nil
		}

		if !lengthRetried && strings.Contains(strings.ToLower(perr.Error()), "content size exceeds specified contentlength") {
			lengthRetried = true
			log.Warn().Str("object_key", target.ObjectKey).Msg("retrying put with recomputed content length")
			continue
		}

		if attempt == constants.DefaultMaxAttempts-1 {
			return "", fmt.Errorf("blobput: put %s failed after %d attempts: %w", target.ObjectKey, attempt+1, perr)
		}

		errType := httpx.ClassifyError(perr)
		if errType == httpx.ErrorTypeFatal {
			return "", fmt.Errorf("blobput: put %s failed: %w", target.ObjectKey, perr)
		}

		backoff := httpx.CalculateBackoff(attempt+1, constants.DefaultInitialDelay, constants.DefaultMaxBackoff)
		log.Warn().Str("object_key", target.ObjectKey).Err(perr).Dur("backoff", backoff).Msg("blob put failed, retrying with a fresh url")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}

		fresh, rerr := urls.Refresh(ctx)
		if rerr != nil {
			return "", fmt.Errorf("blobput: refresh url after failed put: %w", rerr)
		}
		target = fresh
	}

	return "", fmt.Errorf("blobput: exhausted attempts for %s", target.ObjectKey)
}

func (p *Putter) putOnce(ctx context.Context, url, localPath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("blobput: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("blobput: stat %s: %w", localPath, err)
	}
	size := info.Size()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, f)
	if err != nil {
		return 0, fmt.Errorf("blobput: build request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Length", fmt.Sprintf("%d", size))

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("blobput: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("blobput: put failed: status %d", resp.StatusCode)
	}

	return size, nil
}
