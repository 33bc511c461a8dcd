// Package orchestrator is the composition root for the upload pipeline: it
// wires the Lock Store, URL Pool, Blob Putter, Catalog Client, Mapping
// Resolver, Upload Worker, Queue Scheduler, and Background Liaison into one
// process-lifetime object, and bridges the event bus signals that cross
// between them and the rest of the host application.
package orchestrator

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/ente-io/uploadcore/internal/blobput"
	"github.com/ente-io/uploadcore/internal/catalog"
	"github.com/ente-io/uploadcore/internal/collaborators"
	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/events"
	"github.com/ente-io/uploadcore/internal/liaison"
	"github.com/ente-io/uploadcore/internal/lockstore"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/mapping"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/queue"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
	"github.com/ente-io/uploadcore/internal/uploadworker"
	"github.com/ente-io/uploadcore/internal/urlpool"
)

var log = logging.New("orchestrator")

// Deps are the host-supplied collaborators this package cannot build for
// itself: the local files database, media/thumbnail extraction,
// collections service, connectivity probe, and sync-stop signal.
type Deps struct {
	Config *config.Config

	Media        collaborators.MediaExtractor
	Thumbnails   uploadworker.ThumbnailSource
	Files        collaborators.FilesDB
	Collections  collaborators.CollectionsService
	Connectivity collaborators.ConnectivityProbe
	SyncStop     collaborators.SyncStopSignal
	SyncTracker  collaborators.SyncTracker

	// GlobalConcurrency and VideoConcurrency default to the package
	// concurrency limits when zero.
	GlobalConcurrency int
	VideoConcurrency  int

	// EventBufferSize defaults to constants.EventBusDefaultBuffer when zero.
	EventBufferSize int
}

// Orchestrator owns the wired pipeline and its process lifecycle.
type Orchestrator struct {
	cfg *config.Config

	Events    *events.EventBus
	Locks     *lockstore.Store
	URLs      *urlpool.Pool
	Blobs     *blobput.Putter
	Catalog   *catalog.Client
	Worker    *uploadworker.Worker
	Scheduler *queue.Scheduler
	Liaison   *liaison.Liaison

	mu           sync.Mutex
	running      bool
	isBackground bool
	stopSubs     chan struct{}
}

// New builds every component and wires them together, but does not start
// any goroutines — call Init to bring the pipeline up.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("orchestrator: config is required")
	}
	if err := deps.Config.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: invalid config: %w", err)
	}

	cat, err := catalog.New(deps.Config)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build catalog client: %w", err)
	}

	locksPath := filepath.Join(deps.Config.TempDir, "uploadcore-locks.db")
	locks, err := lockstore.Open(locksPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open lock store: %w", err)
	}

	urls := urlpool.New(cat)
	blobs := blobput.New(5 * time.Minute)
	mapper := mapping.New(deps.Files, deps.Collections)
	bus := events.NewEventBus(deps.EventBufferSize)

	worker := &uploadworker.Worker{
		Config:       deps.Config,
		Locks:        locks,
		URLs:         urls,
		Blobs:        blobs,
		Catalog:      cat,
		Mapper:       mapper,
		Media:        deps.Media,
		Thumbnails:   deps.Thumbnails,
		Files:        deps.Files,
		Collections:  deps.Collections,
		Connectivity: deps.Connectivity,
		SyncStop:     deps.SyncStop,
		SyncTracker:  deps.SyncTracker,
		Events:       bus,
		Owner:        models.OwnerForeground,
	}

	scheduler := queue.New(worker, deps.Collections, deps.SyncStop, deps.GlobalConcurrency, deps.VideoConcurrency)
	worker.QueueSizeHint = scheduler.Len

	li := &liaison.Liaison{
		Scheduler: scheduler,
		Locks:     locks,
		Files:     deps.Files,
	}

	return &Orchestrator{
		cfg:       deps.Config,
		Events:    bus,
		Locks:     locks,
		URLs:      urls,
		Blobs:     blobs,
		Catalog:   cat,
		Worker:    worker,
		Scheduler: scheduler,
		Liaison:   li,
	}, nil
}

// Init brings the pipeline up: it runs Lock Store startup recovery, starts
// the Queue Scheduler, starts the Background Liaison (foreground processes
// only), and subscribes to the cross-cutting events the pipeline itself
// reacts to. isBackground selects which process role this instance plays;
// it determines lock ownership and whether the Liaison runs at all.
func (o *Orchestrator) Init(isBackground bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return fmt.Errorf("orchestrator: already initialized")
	}

	owner := models.OwnerForeground
	if isBackground {
		owner = models.OwnerBackground
	}
	o.Worker.Owner = owner
	o.isBackground = isBackground

	now := time.Now().UnixMicro()
	if err := o.Locks.StartupRecover(now, o.cfg.LastBGHeartbeatMicros); err != nil {
		return fmt.Errorf("orchestrator: startup recovery: %w", err)
	}

	o.stopSubs = make(chan struct{})
	o.subscribe()

	o.Scheduler.Start()
	if !isBackground {
		o.Liaison.Start()
	}

	o.running = true
	log.Info().Bool("background", isBackground).Msg("orchestrator initialized")
	return nil
}

// subscribe bridges the two events the pipeline consumes from the rest of
// the host application onto scheduler/pool state changes.
func (o *Orchestrator) subscribe() {
	deleted := o.Events.Subscribe(events.EventLocalPhotosDeleted)
	purchased := o.Events.Subscribe(events.EventSubscriptionPurchased)

	go func() {
		for {
			select {
			case ev, ok := <-deleted:
				if !ok {
					return
				}
				o.handleLocalPhotosDeleted(ev)
			case ev, ok := <-purchased:
				if !ok {
					return
				}
				_ = ev
				o.URLs.ResetCoalescing()
			case <-o.stopSubs:
				return
			}
		}
	}()
}

func (o *Orchestrator) handleLocalPhotosDeleted(ev events.Event) {
	deletedEvent, ok := ev.(*events.LocalPhotosDeletedEvent)
	if !ok {
		return
	}
	ids := make(map[string]struct{}, len(deletedEvent.LocalIDs))
	for _, id := range deletedEvent.LocalIDs {
		ids[id] = struct{}{}
	}
	o.Scheduler.RemoveWhere(func(f models.LocalFile) bool {
		_, deleted := ids[f.LocalID]
		return deleted
	}, uploaderrors.ErrInvalidFile)
}

// Enqueue queues file for upload into collectionID, returning a handle that
// resolves once the upload (or a linked upload already in flight) finishes.
func (o *Orchestrator) Enqueue(file models.LocalFile, collectionID int64) *models.ResultHandle {
	return o.Scheduler.Enqueue(file, collectionID)
}

// Shutdown stops the Liaison and Scheduler, tears down the event
// subscriptions, closes the event bus, and closes the Lock Store. Safe to
// call once; a second call is a no-op.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	o.running = false
	o.mu.Unlock()

	o.Liaison.Stop()
	o.Scheduler.Stop()
	close(o.stopSubs)
	o.Events.Close()

	if err := o.Locks.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close lock store cleanly")
	}
}
