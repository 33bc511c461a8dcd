package uploadworker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ente-io/uploadcore/internal/blobput"
	"github.com/ente-io/uploadcore/internal/catalog"
	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/lockstore"
	"github.com/ente-io/uploadcore/internal/mapping"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
	"github.com/ente-io/uploadcore/internal/urlpool"
)

type fakeMedia struct {
	data models.MediaUploadData
	err  error
}

func (f *fakeMedia) GetMediaUploadData(context.Context, models.LocalFile) (models.MediaUploadData, error) {
	return f.data, f.err
}

type fakeThumbnails struct{}

func (fakeThumbnails) GetThumbnail(context.Context, models.LocalFile) ([]byte, error) {
	return []byte("thumbnail-bytes"), nil
}

type fakeFilesDB struct {
	updated []models.LocalFile
	marked  []string
}

func (f *fakeFilesDB) GetFile(context.Context, string) (models.LocalFile, error) {
	return models.LocalFile{}, fmt.Errorf("not found")
}
func (f *fakeFilesDB) Update(_ context.Context, file models.LocalFile) error {
	f.updated = append(f.updated, file)
	return nil
}
func (f *fakeFilesDB) Insert(context.Context, models.LocalFile) error { return nil }
func (f *fakeFilesDB) Delete(context.Context, string) error          { return nil }
func (f *fakeFilesDB) MarkInvalid(_ context.Context, localID string) error {
	f.marked = append(f.marked, localID)
	return nil
}
func (f *fakeFilesDB) GetUploadedFilesWithHashes(context.Context, []string, models.FileType, int64) ([]models.LocalFile, error) {
	return nil, nil
}
func (f *fakeFilesDB) UpdateUploadedFileAcrossCollections(context.Context, int64, models.RemoteFile) error {
	return nil
}

type fakeCollections struct{}

func (fakeCollections) GetCollectionKey(context.Context, int64) ([]byte, error) {
	return make([]byte, 32), nil
}
func (fakeCollections) AddToCollection(context.Context, int64, models.RemoteFile) error { return nil }
func (fakeCollections) LinkExistingUploadToCollection(context.Context, models.LocalFile, int64) error {
	return nil
}

type fakeSyncTracker struct {
	invalid []string
}

func (f *fakeSyncTracker) RecordInvalid(_ context.Context, localID string) error {
	f.invalid = append(f.invalid, localID)
	return nil
}

type fakeConnectivity struct{ wifi bool }

func (f fakeConnectivity) IsWiFi(context.Context) bool { return f.wifi }

type fakeSyncStop struct{ stop bool }

func (f fakeSyncStop) StopRequested() bool { return f.stop }

// newTestServer returns an httptest server implementing enough of the
// catalog API surface (presigned urls, create-file) plus PUT endpoints for
// whatever objectKey the presigned urls hand out, so blobput's real HTTP
// client can round-trip against it.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var keyCounter atomic.Int64
	var srv *httptest.Server

	mux := http.NewServeMux()
	mux.HandleFunc("/files/upload-urls", func(w http.ResponseWriter, r *http.Request) {
		n := keyCounter.Add(1)
		key1 := fmt.Sprintf("obj-%d-a", n)
		key2 := fmt.Sprintf("obj-%d-b", n)
		fmt.Fprintf(w, `{"urls":[{"url":%q,"objectKey":%q},{"url":%q,"objectKey":%q}]}`,
			srv.URL+"/blob/"+key1, key1, srv.URL+"/blob/"+key2, key2)
	})
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 555, "updationTime": 999}`)
	})
	mux.HandleFunc("/blob/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv = httptest.NewServer(mux)
	return srv
}

func newTestWorker(t *testing.T, srv *httptest.Server, media *fakeMedia, files *fakeFilesDB) (*Worker, string) {
	t.Helper()
	dir := t.TempDir()

	cfg := &config.Config{Endpoint: srv.URL, AuthToken: "tok", TempDir: dir, UserID: 1}
	c, err := catalog.New(cfg)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	locks, err := lockstore.Open(filepath.Join(dir, "locks.db"))
	if err != nil {
		t.Fatalf("lockstore.Open: %v", err)
	}
	t.Cleanup(func() { locks.Close() })

	w := &Worker{
		Config:       cfg,
		Locks:        locks,
		URLs:         urlpool.New(c),
		Blobs:        blobput.New(5 * time.Second),
		Catalog:      c,
		Mapper:       mapping.New(files, fakeCollections{}),
		Media:        media,
		Thumbnails:   fakeThumbnails{},
		Files:        files,
		Collections:  fakeCollections{},
		Connectivity: fakeConnectivity{wifi: true},
		SyncStop:     fakeSyncStop{},
		Owner:        models.OwnerForeground,
	}
	return w, dir
}

func writeSourceFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func TestTryToUpload_NewFileSuccess(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	media := &fakeMedia{data: models.MediaUploadData{FileHash: "hash-1", Metadata: map[string]any{"title": "a.jpg"}}}
	files := &fakeFilesDB{}
	w, dir := newTestWorker(t, srv, media, files)

	srcPath := writeSourceFile(t, dir, "source.jpg", []byte("hello world, this is a tiny photo"))
	media.data.SourceFile = srcPath

	local := models.LocalFile{LocalID: "local-1", GeneratedID: srcPath, Type: models.FileTypeImage}

	remote, err := w.TryToUpload(context.Background(), local, 42)
	if err != nil {
		t.Fatalf("TryToUpload: %v", err)
	}
	if remote.ID != 555 {
		t.Fatalf("expected remote id 555, got %d", remote.ID)
	}
	if len(files.updated) != 1 {
		t.Fatalf("expected one persisted local file update, got %d", len(files.updated))
	}
	if files.updated[0].UploadedFileID != 555 {
		t.Fatalf("expected persisted record to carry uploaded file id, got %+v", files.updated[0])
	}

	locked, err := w.Locks.IsLocked("local-1", models.OwnerForeground)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Fatal("expected lock released after successful upload")
	}

	if _, err := os.Stat(filepath.Join(dir, local.LocalID+".encrypted")); !os.IsNotExist(err) {
		t.Fatalf("expected encrypted temp file to be cleaned up, stat err = %v", err)
	}
}

func TestTryToUpload_InvalidFileMarksAndReturnsError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	media := &fakeMedia{err: uploaderrors.ErrInvalidFile}
	files := &fakeFilesDB{}
	w, dir := newTestWorker(t, srv, media, files)
	tracker := &fakeSyncTracker{}
	w.SyncTracker = tracker

	srcPath := writeSourceFile(t, dir, "bad.jpg", []byte("not really a photo"))
	local := models.LocalFile{LocalID: "local-2", GeneratedID: srcPath, Type: models.FileTypeImage}

	_, err := w.TryToUpload(context.Background(), local, 42)
	if err != uploaderrors.ErrInvalidFile {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}
	if len(files.marked) != 1 || files.marked[0] != "local-2" {
		t.Fatalf("expected local-2 marked invalid, got %v", files.marked)
	}
	if len(tracker.invalid) != 1 || tracker.invalid[0] != "local-2" {
		t.Fatalf("expected local-2 recorded in sync tracker, got %v", tracker.invalid)
	}

	locked, lerr := w.Locks.IsLocked("local-2", models.OwnerForeground)
	if lerr != nil {
		t.Fatalf("IsLocked: %v", lerr)
	}
	if locked {
		t.Fatal("expected lock released even on failure")
	}
}

func TestTryToUpload_WiFiUnavailableSkipsLock(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	media := &fakeMedia{data: models.MediaUploadData{FileHash: "hash-3"}}
	files := &fakeFilesDB{}
	w, _ := newTestWorker(t, srv, media, files)
	w.Connectivity = fakeConnectivity{wifi: false}
	w.Config.AllowMobileDataBackup = false

	local := models.LocalFile{LocalID: "local-3", GeneratedID: "/does/not/matter", Type: models.FileTypeImage}

	_, err := w.TryToUpload(context.Background(), local, 42)
	if err != uploaderrors.ErrWiFiUnavailable {
		t.Fatalf("expected ErrWiFiUnavailable, got %v", err)
	}
}

func TestTryToUpload_SecondLockHolderIsParked(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	media := &fakeMedia{data: models.MediaUploadData{FileHash: "hash-4"}}
	files := &fakeFilesDB{}
	w, _ := newTestWorker(t, srv, media, files)

	if err := w.Locks.Acquire("local-4", models.OwnerBackground, time.Now().UnixMicro()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	local := models.LocalFile{LocalID: "local-4", GeneratedID: "/does/not/matter", Type: models.FileTypeImage}
	_, err := w.TryToUpload(context.Background(), local, 42)
	if err != uploaderrors.ErrLockAlreadyAcquired {
		t.Fatalf("expected ErrLockAlreadyAcquired, got %v", err)
	}
}
