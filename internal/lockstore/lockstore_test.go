package lockstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locks.bolt")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAcquireRelease(t *testing.T) {
	s := newTestStore(t)

	if err := s.Acquire("local-1", models.OwnerForeground, 1000); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	err := s.Acquire("local-1", models.OwnerBackground, 2000)
	if !errors.Is(err, uploaderrors.ErrLockAlreadyAcquired) {
		t.Fatalf("expected ErrLockAlreadyAcquired, got %v", err)
	}

	if err := s.Release("local-1", models.OwnerBackground); err != nil {
		t.Fatalf("Release by wrong owner should be a no-op, got error: %v", err)
	}
	locked, err := s.IsLocked("local-1", models.OwnerForeground)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Fatal("expected lock to still be held after no-op release by wrong owner")
	}

	if err := s.Release("local-1", models.OwnerForeground); err != nil {
		t.Fatalf("Release: %v", err)
	}
	locked, err = s.IsLocked("local-1", models.OwnerForeground)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Fatal("expected lock to be released")
	}

	if err := s.Acquire("local-1", models.OwnerBackground, 3000); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestReleaseAllAcquiredBefore(t *testing.T) {
	s := newTestStore(t)

	if err := s.Acquire("old", models.OwnerForeground, 1000); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := s.Acquire("new", models.OwnerForeground, 5000); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if err := s.ReleaseAllAcquiredBefore(3000); err != nil {
		t.Fatalf("ReleaseAllAcquiredBefore: %v", err)
	}

	oldLocked, _ := s.IsLocked("old", models.OwnerForeground)
	newLocked, _ := s.IsLocked("new", models.OwnerForeground)
	if oldLocked {
		t.Error("expected old lock to be released")
	}
	if !newLocked {
		t.Error("expected new lock to remain held")
	}
}

func TestStartupRecoverReclaimsDeadBackgroundLocks(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMicro()
	if err := s.Acquire("bg-file", models.OwnerBackground, now-10*time.Second.Microseconds()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	staleHeartbeat := now - 10*time.Second.Microseconds()
	if err := s.StartupRecover(now, staleHeartbeat); err != nil {
		t.Fatalf("StartupRecover: %v", err)
	}

	locked, err := s.IsLocked("bg-file", models.OwnerBackground)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if locked {
		t.Error("expected background lock to be reclaimed after a stale heartbeat")
	}
}

func TestStartupRecoverKeepsLiveBackgroundLocks(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UnixMicro()
	if err := s.Acquire("bg-file", models.OwnerBackground, now); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	freshHeartbeat := now
	if err := s.StartupRecover(now, freshHeartbeat); err != nil {
		t.Fatalf("StartupRecover: %v", err)
	}

	locked, err := s.IsLocked("bg-file", models.OwnerBackground)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Error("expected background lock to survive with a fresh heartbeat")
	}
}
