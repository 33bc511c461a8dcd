// Package httpx provides the retry and error-classification layer shared by
// the Blob Putter and the Catalog Client: a single place that decides
// whether a transport failure is worth retrying, and how long to wait
// before the next attempt.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/ente-io/uploadcore/internal/logging"
)

// ErrorType classifies a transport failure for retry purposes.
type ErrorType int

const (
	ErrorTypeSuccess ErrorType = iota
	ErrorTypeCredential
	ErrorTypeNetwork
	ErrorTypeRetryable
	ErrorTypeFatal
)

// Config holds retry parameters for ExecuteWithRetry.
type Config struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	CredentialRefresh func(context.Context) error
	OnRetry           func(attempt int, err error, errType ErrorType)
}

// ClassifyError determines the error type for retry strategy. Based on the
// same string-matching heuristics this codebase has historically used for
// object-storage transport errors, trimmed to the subset relevant to a bare
// HTTPS PUT/POST against a presigned URL or the catalog API (no cloud-SDK
// specific error strings).
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}

	if errors.Is(err, context.Canceled) {
		return ErrorTypeFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "407") ||
		strings.Contains(errStr, "proxy authentication required") {
		return ErrorTypeFatal
	}

	if strings.Contains(errStr, "expired") ||
		strings.Contains(errStr, "invalid token") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "authentication failed") {
		return ErrorTypeCredential
	}

	if strings.Contains(errStr, "tls handshake timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "server closed idle connection") ||
		strings.Contains(errStr, "stream error") ||
		strings.Contains(errStr, "http2: server sent goaway") {
		return ErrorTypeNetwork
	}

	if strings.Contains(errStr, "slowdown") ||
		strings.Contains(errStr, "throttl") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "server busy") ||
		strings.Contains(errStr, "service unavailable") {
		return ErrorTypeRetryable
	}

	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "404") ||
		strings.Contains(errStr, "invalid") {
		return ErrorTypeFatal
	}

	return ErrorTypeFatal
}

// CalculateBackoff returns an exponential backoff duration with full jitter:
// random(0, min(maxDelay, initialDelay * 2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := time.Duration(1<<uint(attempt)) * initialDelay
	if base > maxDelay {
		base = maxDelay
	}
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

var log = logging.New("httpx")

// ExecuteWithRetry runs operation with the classify/backoff strategy above:
// fatal errors return immediately, credential errors are retried after a
// one-second pause (CredentialRefresh, when set, runs before every attempt),
// network/retryable errors back off with full jitter, and a cancelled ctx
// ends that backoff wait early.
func ExecuteWithRetry(ctx context.Context, cfg Config, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if cfg.CredentialRefresh != nil {
			if err := cfg.CredentialRefresh(ctx); err != nil {
				return fmt.Errorf("credential refresh failed: %w", err)
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				log.Debugf("operation succeeded after %d retry(s)", attempt)
			}
			return nil
		}

		lastErr = err
		errType := ClassifyError(err)

		switch errType {
		case ErrorTypeFatal:
			return err

		case ErrorTypeCredential:
			if attempt < cfg.MaxRetries-1 {
				if cfg.OnRetry != nil {
					cfg.OnRetry(attempt+1, err, errType)
				}
				time.Sleep(1 * time.Second)
				continue
			}
			return fmt.Errorf("credential error after %d attempts: %w", cfg.MaxRetries, err)

		case ErrorTypeNetwork, ErrorTypeRetryable:
			if attempt < cfg.MaxRetries-1 {
				backoff := CalculateBackoff(attempt, cfg.InitialDelay, cfg.MaxDelay)
				if cfg.OnRetry != nil {
					cfg.OnRetry(attempt+1, err, errType)
				}
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries, lastErr)
}

// ErrorTypeName returns a human-readable name for errType, used in log
// fields.
func ErrorTypeName(errType ErrorType) string {
	switch errType {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
