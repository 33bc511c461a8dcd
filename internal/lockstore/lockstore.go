// Package lockstore implements the durable, cross-process advisory lock
// over local files: at most one of the foreground and background upload
// processes may hold the lock for a given local file at a time.
package lockstore

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

var bucketLocks = []byte("locks")

var log = logging.New("lockstore")

// Store persists LockRecord values keyed by localID in a bbolt database,
// the same embedded-KV shape this codebase's upload manager lineage uses
// for durable per-item state, chosen over a one-sidecar-file-per-item
// layout because the store is read and written from two OS processes and
// benefits from bbolt's single-writer transactional guarantees.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database at path and ensures
// the locks bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("lockstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLocks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lockstore: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Acquire takes the lock for localID on behalf of owner. It fails with
// uploaderrors.ErrLockAlreadyAcquired if any active record already exists,
// regardless of owner.
func (s *Store) Acquire(localID, owner string, nowMicros int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		if existing := b.Get([]byte(localID)); existing != nil {
			return uploaderrors.ErrLockAlreadyAcquired
		}
		rec := models.LockRecord{Owner: owner, AcquiredMicros: nowMicros}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("lockstore: marshal record: %w", err)
		}
		return b.Put([]byte(localID), data)
	})
}

// Release removes the lock for localID iff it is currently held by owner.
// A missing record or one owned by somebody else is a silent no-op.
func (s *Store) Release(localID, owner string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		data := b.Get([]byte(localID))
		if data == nil {
			return nil
		}
		var rec models.LockRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("lockstore: unmarshal record for %s: %w", localID, err)
		}
		if rec.Owner != owner {
			return nil
		}
		return b.Delete([]byte(localID))
	})
}

// IsLocked reports whether localID currently has an active lock held by
// owner.
func (s *Store) IsLocked(localID, owner string) (bool, error) {
	var locked bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		data := b.Get([]byte(localID))
		if data == nil {
			return nil
		}
		var rec models.LockRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("lockstore: unmarshal record for %s: %w", localID, err)
		}
		locked = rec.Owner == owner
		return nil
	})
	return locked, err
}

// ReleaseAcquiredByOwnerBefore deletes every record owned by owner whose
// AcquiredMicros is before cutoffMicros. Used at foreground startup to
// recover from a prior crash: any lock the foreground process itself held
// cannot still be legitimately in use.
func (s *Store) ReleaseAcquiredByOwnerBefore(owner string, cutoffMicros int64) error {
	return s.sweep(func(rec models.LockRecord) bool {
		return rec.Owner == owner && rec.AcquiredMicros < cutoffMicros
	})
}

// ReleaseAllAcquiredBefore deletes every record (any owner) older than
// cutoffMicros — the global staleness sweep.
func (s *Store) ReleaseAllAcquiredBefore(cutoffMicros int64) error {
	return s.sweep(func(rec models.LockRecord) bool {
		return rec.AcquiredMicros < cutoffMicros
	})
}

func (s *Store) sweep(shouldDelete func(models.LockRecord) bool) error {
	return s.db.Batch(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLocks)
		var toDelete [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec models.LockRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Warn().Str("local_id", string(k)).Err(err).Msg("skipping unreadable lock record during sweep")
				return nil
			}
			if shouldDelete(rec) {
				key := make([]byte, len(k))
				copy(key, k)
				toDelete = append(toDelete, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// StartupRecover runs the foreground process's startup recovery policy:
// release any foreground-owned locks (crash recovery), sweep globally
// expired locks, and — if the background process's heartbeat is stale past
// the death timeout — also release background-owned locks.
func (s *Store) StartupRecover(nowMicros int64, backgroundHeartbeatMicros int64) error {
	if err := s.ReleaseAcquiredByOwnerBefore(models.OwnerForeground, nowMicros); err != nil {
		return fmt.Errorf("lockstore: release stale foreground locks: %w", err)
	}

	expiredCutoff := nowMicros - constants.LockExpiry.Microseconds()
	if err := s.ReleaseAllAcquiredBefore(expiredCutoff); err != nil {
		return fmt.Errorf("lockstore: release globally expired locks: %w", err)
	}

	heartbeatAge := time.Duration(nowMicros-backgroundHeartbeatMicros) * time.Microsecond
	if heartbeatAge > constants.BackgroundDeathTimeout {
		log.Warn().Dur("heartbeat_age", heartbeatAge).Msg("background process heartbeat stale, reclaiming its locks")
		if err := s.ReleaseAcquiredByOwnerBefore(models.OwnerBackground, nowMicros); err != nil {
			return fmt.Errorf("lockstore: release stale background locks: %w", err)
		}
	}

	return nil
}
