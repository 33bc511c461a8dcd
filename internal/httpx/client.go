package httpx

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// retryLogger adapts this package's logger to retryablehttp.LeveledLogger,
// silencing the library's own request-level logging (the classify/backoff
// layer above already logs what matters).
type retryLogger struct{}

func (retryLogger) Error(string, ...interface{}) {}
func (retryLogger) Info(string, ...interface{})  {}
func (retryLogger) Debug(string, ...interface{}) {}
func (retryLogger) Warn(string, ...interface{})  {}

// NewClient returns an *http.Client backed by retryablehttp's transport-
// level retry (connection resets, truncated responses), matching the
// catalog client and blob putter's need for a resilient transport under
// this package's own request-level classification on top.
func NewClient(timeout time.Duration) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = retryLogger{}

	client := rc.StandardClient()
	client.Timeout = timeout
	return client
}
