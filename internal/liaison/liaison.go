// Package liaison implements the Background Liaison: a foreground-only
// poller that reconciles queue items parked inBackground once the
// background process that claimed their lock finishes (or drops) the work.
package liaison

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ente-io/uploadcore/internal/collaborators"
	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/lockstore"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/queue"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

var log = logging.New("liaison")

// Liaison periodically reconciles inBackground queue items against the
// Lock Store and local files DB.
type Liaison struct {
	Scheduler *queue.Scheduler
	Locks     *lockstore.Store
	Files     collaborators.FilesDB

	// Interval defaults to constants.BackgroundLiaisonPollInterval when zero.
	Interval time.Duration

	running atomic.Bool
	stopCh  chan struct{}
}

// Start launches the poll loop on its own goroutine. Safe to call once.
func (l *Liaison) Start() {
	interval := l.Interval
	if interval <= 0 {
		interval = constants.BackgroundLiaisonPollInterval
	}
	l.stopCh = make(chan struct{})

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.tick()
			case <-l.stopCh:
				return
			}
		}
	}()
}

// Stop ends the poll loop. Does not wait for an in-flight tick to finish;
// tick() is itself guarded against overlap, so this is safe to call
// concurrently with a running tick.
func (l *Liaison) Stop() {
	if l.stopCh != nil {
		close(l.stopCh)
	}
}

// tick is non-reentrant: an overlapping timer fire while a previous tick is
// still running is a silent no-op rather than a concurrent pass over the
// same items.
func (l *Liaison) tick() {
	if !l.running.CompareAndSwap(false, true) {
		return
	}
	defer l.running.Store(false)

	ctx := context.Background()
	for _, item := range l.Scheduler.InBackgroundItems() {
		l.reconcile(ctx, item)
	}
}

func (l *Liaison) reconcile(ctx context.Context, item *models.UploadItem) {
	locked, err := l.Locks.IsLocked(item.LocalID, models.OwnerBackground)
	if err != nil {
		log.Warn().Str("local_id", item.LocalID).Err(err).Msg("failed to probe lock state")
		return
	}
	if locked {
		return
	}

	file, err := l.Files.GetFile(ctx, item.LocalID)
	if err != nil {
		log.Warn().Str("local_id", item.LocalID).Err(err).Msg("failed to re-read file after lock released")
		l.Scheduler.RemoveItem(item.LocalID)
		item.Result.Reject(err)
		return
	}

	l.Scheduler.RemoveItem(item.LocalID)

	if file.HasValidRemoteID() {
		item.Result.Fulfill(models.RemoteFile{
			ID:           file.UploadedFileID,
			CollectionID: file.CollectionID,
			UpdationTime: file.UpdationTime,
			LocalID:      file.LocalID,
		})
		return
	}

	log.Debug().Str("local_id", item.LocalID).Msg("background process released lock without completing upload")
	item.Result.Reject(uploaderrors.ErrSilentlyCancelUploads)
}
