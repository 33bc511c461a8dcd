package liaison

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ente-io/uploadcore/internal/lockstore"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/queue"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

type fakeUploader struct{ err error }

func (f fakeUploader) TryToUpload(context.Context, models.LocalFile, int64) (models.RemoteFile, error) {
	return models.RemoteFile{}, f.err
}

type fakeFilesDB struct {
	files map[string]models.LocalFile
	err   error
}

func (f *fakeFilesDB) GetFile(_ context.Context, localID string) (models.LocalFile, error) {
	if f.err != nil {
		return models.LocalFile{}, f.err
	}
	return f.files[localID], nil
}
func (f *fakeFilesDB) Update(context.Context, models.LocalFile) error { return nil }
func (f *fakeFilesDB) Insert(context.Context, models.LocalFile) error { return nil }
func (f *fakeFilesDB) Delete(context.Context, string) error          { return nil }
func (f *fakeFilesDB) MarkInvalid(context.Context, string) error     { return nil }
func (f *fakeFilesDB) GetUploadedFilesWithHashes(context.Context, []string, models.FileType, int64) ([]models.LocalFile, error) {
	return nil, nil
}
func (f *fakeFilesDB) UpdateUploadedFileAcrossCollections(context.Context, int64, models.RemoteFile) error {
	return nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newParkedScheduler(t *testing.T, localID string) *queue.Scheduler {
	t.Helper()
	s := queue.New(fakeUploader{err: uploaderrors.ErrLockAlreadyAcquired}, nil, nil, 4, 2)
	s.Start()
	t.Cleanup(s.Stop)

	s.Enqueue(models.LocalFile{LocalID: localID}, 10)
	waitFor(t, time.Second, func() bool { return len(s.InBackgroundItems()) == 1 })
	return s
}

func newTestLocks(t *testing.T) *lockstore.Store {
	t.Helper()
	locks, err := lockstore.Open(filepath.Join(t.TempDir(), "locks.db"))
	if err != nil {
		t.Fatalf("lockstore.Open: %v", err)
	}
	t.Cleanup(func() { locks.Close() })
	return locks
}

func TestReconcileFulfillsWhenRemoteIDAppears(t *testing.T) {
	s := newParkedScheduler(t, "a")
	locks := newTestLocks(t)

	files := &fakeFilesDB{files: map[string]models.LocalFile{
		"a": {LocalID: "a", UploadedFileID: 77, CollectionID: 10, UpdationTime: 5},
	}}

	li := &Liaison{Scheduler: s, Locks: locks, Files: files, Interval: 10 * time.Millisecond}
	li.Start()
	defer li.Stop()

	handle := s.InBackgroundItems()[0].Result
	remote, err := handle.Wait(make(chan struct{}))
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if remote.ID != 77 {
		t.Fatalf("expected remote id 77, got %d", remote.ID)
	}
	waitFor(t, time.Second, func() bool { return len(s.InBackgroundItems()) == 0 })
}

func TestReconcileRejectsWhenStillUnuploaded(t *testing.T) {
	s := newParkedScheduler(t, "b")
	locks := newTestLocks(t)

	files := &fakeFilesDB{files: map[string]models.LocalFile{
		"b": {LocalID: "b"},
	}}

	li := &Liaison{Scheduler: s, Locks: locks, Files: files, Interval: 10 * time.Millisecond}
	li.Start()
	defer li.Stop()

	handle := s.InBackgroundItems()[0].Result
	_, err := handle.Wait(make(chan struct{}))
	if !errors.Is(err, uploaderrors.ErrSilentlyCancelUploads) {
		t.Fatalf("expected ErrSilentlyCancelUploads, got %v", err)
	}
}

func TestReconcileLeavesItemAloneWhileStillLocked(t *testing.T) {
	s := newParkedScheduler(t, "c")
	locks := newTestLocks(t)
	if err := locks.Acquire("c", models.OwnerBackground, time.Now().UnixMicro()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	files := &fakeFilesDB{files: map[string]models.LocalFile{
		"c": {LocalID: "c", UploadedFileID: 1},
	}}

	li := &Liaison{Scheduler: s, Locks: locks, Files: files, Interval: 10 * time.Millisecond}
	li.Start()
	defer li.Stop()

	time.Sleep(50 * time.Millisecond)
	items := s.InBackgroundItems()
	if len(items) != 1 {
		t.Fatalf("expected item to remain parked while lock is held, got %d items", len(items))
	}
}
