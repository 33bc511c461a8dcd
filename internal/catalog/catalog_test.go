package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

func testConfig(endpoint string) *config.Config {
	return &config.Config{Endpoint: endpoint, AuthToken: "tok", TempDir: "/tmp"}
}

func TestCreateFileSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": 99, "updationTime": 123}`))
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.CreateFile(context.Background(), models.CreateFileRequest{CollectionID: 1})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if got.ID != 99 {
		t.Errorf("expected id 99, got %d", got.ID)
	}
}

func TestCreateFileTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.CreateFile(context.Background(), models.CreateFileRequest{})
	if !errors.Is(err, uploaderrors.ErrFileTooLargeForPlan) {
		t.Fatalf("expected ErrFileTooLargeForPlan, got %v", err)
	}
}

func TestCreateFileStorageLimitExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(426)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.CreateFile(context.Background(), models.CreateFileRequest{})
	if !errors.Is(err, uploaderrors.ErrStorageLimitExceeded) {
		t.Fatalf("expected ErrStorageLimitExceeded, got %v", err)
	}
}

func TestFetchPresignedURLsNoSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c, err := New(testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.FetchPresignedURLs(context.Background(), 5)
	if !errors.Is(err, uploaderrors.ErrNoActiveSubscription) {
		t.Fatalf("expected ErrNoActiveSubscription, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := New(&config.Config{}); err == nil {
		t.Fatal("expected validation error for empty config")
	}
}
