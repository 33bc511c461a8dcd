// Package queue implements the Queue Scheduler: a bounded, concurrency-aware
// admission loop over pending uploads, plus the session upload counter the
// host UI reads for progress.
//
// All queue-state mutation happens on a single goroutine (run), which
// receives enqueue/completion signals over channels rather than being
// called directly by arbitrary caller goroutines — the same
// one-mutator-goroutine shape this codebase's transfer queue has always
// used, just applied to admission instead of byte transfer.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/ente-io/uploadcore/internal/collaborators"
	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

var log = logging.New("queue")

type completion struct {
	localID string
	remote  models.RemoteFile
	err     error
}

// Uploader is the subset of uploadworker.Worker the scheduler depends on;
// narrowed to an interface so tests can dispatch against a fake.
type Uploader interface {
	TryToUpload(ctx context.Context, file models.LocalFile, collectionID int64) (models.RemoteFile, error)
}

// Scheduler owns the in-memory upload queue and drives admission of
// notStarted items up to the configured global and video concurrency
// limits.
type Scheduler struct {
	worker      Uploader
	collections collaborators.CollectionsService
	syncStop    collaborators.SyncStopSignal

	globalLimit int
	videoLimit  int

	mu              sync.Mutex
	items           []*models.UploadItem
	totalInSession  int
	inProgress      int
	videoInProgress int

	wake        chan struct{}
	completions chan completion
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// New builds a Scheduler. A globalLimit or videoLimit of 0 falls back to
// the package defaults (constants.DefaultGlobalConcurrency /
// constants.DefaultVideoConcurrency).
func New(worker Uploader, collections collaborators.CollectionsService, syncStop collaborators.SyncStopSignal, globalLimit, videoLimit int) *Scheduler {
	if globalLimit <= 0 {
		globalLimit = constants.DefaultGlobalConcurrency
	}
	if videoLimit <= 0 {
		videoLimit = constants.DefaultVideoConcurrency
	}
	return &Scheduler{
		worker:      worker,
		collections: collections,
		syncStop:    syncStop,
		globalLimit: globalLimit,
		videoLimit:  videoLimit,
		wake:        make(chan struct{}, 1),
		completions: make(chan completion, 64),
		stopCh:      make(chan struct{}),
	}
}

// Start launches the scheduler's mutator goroutine. Safe to call once.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
}

// Stop signals the mutator goroutine to exit and waits for it to return.
// Items currently inProgress are not cancelled; their workers keep running
// until their own deadlines and report completions nobody is listening for
// anymore.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.wake:
			s.pollOnce()
		case c := <-s.completions:
			s.handleCompletion(c)
			s.pollOnce()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds file for upload into collectionID and returns a handle that
// resolves once the upload (or an equivalent already-in-flight upload)
// finishes.
func (s *Scheduler) Enqueue(file models.LocalFile, collectionID int64) *models.ResultHandle {
	s.mu.Lock()
	s.totalInSession++

	if existing := s.findLocked(file.LocalID); existing != nil {
		if existing.CollectionID == collectionID {
			// We counted once too many above: this isn't a new item.
			s.totalInSession--
			result := existing.Result
			s.mu.Unlock()
			return result
		}

		// Same file already queued for a different collection: reuse its
		// upload, then link the result into the newly requested collection
		// once it completes. Also not a new distinct item.
		s.totalInSession--
		s.mu.Unlock()
		return s.deriveLinkedHandle(existing.Result, collectionID)
	}

	item := &models.UploadItem{
		LocalID:      file.LocalID,
		File:         file,
		CollectionID: collectionID,
		Status:       models.StatusNotStarted,
		Result:       models.NewResultHandle(),
	}
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.signalWake()
	return item.Result
}

func (s *Scheduler) deriveLinkedHandle(source *models.ResultHandle, targetCollectionID int64) *models.ResultHandle {
	derived := models.NewResultHandle()
	go func() {
		never := make(chan struct{})
		remote, err := source.Wait(never)
		if err != nil {
			derived.Reject(err)
			return
		}
		if s.collections != nil {
			if aerr := s.collections.AddToCollection(context.Background(), targetCollectionID, remote); aerr != nil {
				derived.Reject(aerr)
				return
			}
		}
		derived.Fulfill(remote)
	}()
	return derived
}

// findLocked returns the queue item for localID, or nil. Caller must hold mu.
func (s *Scheduler) findLocked(localID string) *models.UploadItem {
	for _, it := range s.items {
		if it.LocalID == localID {
			return it
		}
	}
	return nil
}

func (s *Scheduler) indexOfLocked(localID string) int {
	for i, it := range s.items {
		if it.LocalID == localID {
			return i
		}
	}
	return -1
}

// ClearQueue fulfills every notStarted item's handle with reason and
// removes it, resetting the session counter. inProgress and inBackground
// items are left untouched.
func (s *Scheduler) ClearQueue(reason error) {
	s.mu.Lock()
	removed, kept := partition(s.items, func(it *models.UploadItem) bool {
		return it.Status == models.StatusNotStarted
	})
	s.items = kept
	s.totalInSession = 0
	s.mu.Unlock()

	for _, it := range removed {
		it.Result.Reject(reason)
	}
}

// RemoveWhere removes notStarted items matching predicate, fulfilling their
// handles with reason and decrementing the session counter accordingly.
func (s *Scheduler) RemoveWhere(predicate func(models.LocalFile) bool, reason error) {
	s.mu.Lock()
	removed, kept := partition(s.items, func(it *models.UploadItem) bool {
		return it.Status == models.StatusNotStarted && predicate(it.File)
	})
	s.items = kept
	s.totalInSession -= len(removed)
	if s.totalInSession < 0 {
		s.totalInSession = 0
	}
	s.mu.Unlock()

	for _, it := range removed {
		it.Result.Reject(reason)
	}
}

// partition splits items into those matching pred (removed from the slice)
// and those not (kept in place, insertion order preserved).
func partition(items []*models.UploadItem, pred func(*models.UploadItem) bool) (matched, rest []*models.UploadItem) {
	rest = items[:0]
	for _, it := range items {
		if pred(it) {
			matched = append(matched, it)
			continue
		}
		rest = append(rest, it)
	}
	return matched, rest
}

func (s *Scheduler) pollOnce() {
	s.mu.Lock()

	if s.syncStop != nil && s.syncStop.StopRequested() {
		s.mu.Unlock()
		s.ClearQueue(uploaderrors.ErrSyncStopRequested)
		return
	}

	if len(s.items) == 0 {
		s.totalInSession = 0
		s.mu.Unlock()
		return
	}

	for s.inProgress < s.globalLimit {
		idx := s.findAdmittableLocked()
		if idx < 0 {
			break
		}
		item := s.items[idx]
		item.Status = models.StatusInProgress
		s.inProgress++
		isVideo := item.File.Type == models.FileTypeVideo
		if isVideo {
			s.videoInProgress++
		}
		s.mu.Unlock()

		s.dispatch(item)

		s.mu.Lock()
	}
	s.mu.Unlock()
}

// findAdmittableLocked implements the admission rule: the first notStarted
// item in insertion order, unless it is video and the video class is
// saturated, in which case the first non-video notStarted item is chosen
// instead. Caller must hold mu.
func (s *Scheduler) findAdmittableLocked() int {
	firstIdx := -1
	for i, it := range s.items {
		if it.Status == models.StatusNotStarted {
			firstIdx = i
			break
		}
	}
	if firstIdx == -1 {
		return -1
	}

	first := s.items[firstIdx]
	if first.File.Type != models.FileTypeVideo || s.videoInProgress < s.videoLimit {
		return firstIdx
	}

	for i, it := range s.items {
		if it.Status == models.StatusNotStarted && it.File.Type != models.FileTypeVideo {
			return i
		}
	}
	return -1
}

func (s *Scheduler) dispatch(item *models.UploadItem) {
	go func() {
		remote, err := s.worker.TryToUpload(context.Background(), item.File, item.CollectionID)
		s.completions <- completion{localID: item.LocalID, remote: remote, err: err}
	}()
}

func (s *Scheduler) handleCompletion(c completion) {
	s.mu.Lock()
	idx := s.indexOfLocked(c.localID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	item := s.items[idx]

	s.inProgress--
	if item.File.Type == models.FileTypeVideo {
		s.videoInProgress--
	}

	switch {
	case c.err == nil:
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		s.mu.Unlock()
		item.Result.Fulfill(c.remote)

	case errors.Is(c.err, uploaderrors.ErrLockAlreadyAcquired):
		item.Status = models.StatusInBackground
		s.mu.Unlock()
		log.Debug().Str("local_id", item.LocalID).Msg("parked item in background; another process holds its lock")

	default:
		s.items = append(s.items[:idx], s.items[idx+1:]...)
		s.mu.Unlock()
		item.Result.Reject(c.err)
		if uploaderrors.Classify(c.err) == uploaderrors.PropagationSession {
			s.ClearQueue(c.err)
		}
	}
}

// Len returns the current number of items tracked by the queue (any
// status), used to size presigned-URL refills.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CurrentSessionUploadCount returns the number of distinct items enqueued
// in the current upload session.
func (s *Scheduler) CurrentSessionUploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalInSession
}

// InBackgroundItems returns a snapshot of items currently parked
// inBackground, for the Background Liaison to reconcile.
func (s *Scheduler) InBackgroundItems() []*models.UploadItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.UploadItem, 0, len(s.items))
	for _, it := range s.items {
		if it.Status == models.StatusInBackground {
			out = append(out, it)
		}
	}
	return out
}

// RemoveItem removes localID unconditionally, used by the Background
// Liaison once it has resolved an inBackground item.
func (s *Scheduler) RemoveItem(localID string) {
	s.mu.Lock()
	idx := s.indexOfLocked(localID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.mu.Unlock()
}
