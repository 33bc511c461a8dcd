// Package catalog implements the remote catalog service calls: presigned
// URL fetch, create-file, and update-file, with domain-specific status-code
// branching (plan limits, storage limits, subscription state) layered on
// top of transport-level retry.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/httpx"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

var log = logging.New("catalog")

// Client talks to the remote catalog service over HTTPS.
type Client struct {
	cfg    *config.Config
	client *http.Client
}

// New builds a Client from cfg, validating required fields first.
func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: invalid config: %w", err)
	}
	return &Client{cfg: cfg, client: httpx.NewClient(60 * time.Second)}, nil
}

// FetchPresignedURLs implements urlpool.Fetcher. It makes a single request
// with no request-level retry; failures are returned for classification.
func (c *Client) FetchPresignedURLs(ctx context.Context, count int) ([]models.PresignedURL, error) {
	var out models.PresignedURLResponse

	url := fmt.Sprintf("%s/files/upload-urls?count=%d", c.cfg.Endpoint, count)
	err := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		c.authenticate(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			return json.NewDecoder(resp.Body).Decode(&out)
		case http.StatusPaymentRequired:
			return uploaderrors.ErrNoActiveSubscription
		case 426:
			return uploaderrors.ErrStorageLimitExceeded
		default:
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("upload-urls failed: status %d: %s", resp.StatusCode, body)
		}
	}()
	if err != nil {
		return nil, err
	}
	return out.URLs, nil
}

// CreateFile registers a newly uploaded file with the catalog service.
func (c *Client) CreateFile(ctx context.Context, req models.CreateFileRequest) (models.RemoteFile, error) {
	var out models.RemoteFile
	err := c.call(ctx, http.MethodPost, "/files", req, &out, func(status int) error {
		switch status {
		case http.StatusRequestEntityTooLarge:
			return uploaderrors.ErrFileTooLargeForPlan
		case 426:
			return uploaderrors.ErrStorageLimitExceeded
		default:
			return nil
		}
	})
	return out, err
}

// UpdateFile re-registers content for an already-uploaded file.
func (c *Client) UpdateFile(ctx context.Context, req models.UpdateFileRequest) (models.RemoteFile, error) {
	var out models.RemoteFile
	err := c.call(ctx, http.MethodPut, "/files/update", req, &out, func(status int) error {
		if status == 426 {
			return uploaderrors.ErrStorageLimitExceeded
		}
		return nil
	})
	return out, err
}

// call performs a JSON request with retries, deferring to classify for
// domain-specific non-2xx status handling before falling back to generic
// retry classification.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}, classify func(status int) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("catalog: marshal request: %w", err)
	}

	return httpx.ExecuteWithRetry(ctx, retryConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		c.authenticate(req)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return json.NewDecoder(resp.Body).Decode(out)
		}

		if domainErr := classify(resp.StatusCode); domainErr != nil {
			return domainErr
		}

		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: status %d: %s", method, path, resp.StatusCode, respBody)
	})
}

func (c *Client) authenticate(req *http.Request) {
	req.Header.Set("X-Auth-Token", c.cfg.AuthToken)
}

func retryConfig() httpx.Config {
	return httpx.Config{
		MaxRetries:   constants.DefaultMaxAttempts,
		InitialDelay: constants.CatalogRetryDelay,
		MaxDelay:     constants.CatalogRetryDelay,
		OnRetry: func(attempt int, err error, errType httpx.ErrorType) {
			log.Warn().Int("attempt", attempt).Str("error_type", httpx.ErrorTypeName(errType)).Err(err).Msg("retrying catalog request")
		},
	}
}
