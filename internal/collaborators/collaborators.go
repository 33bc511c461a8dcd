// Package collaborators declares the interfaces the upload pipeline expects
// from the rest of the host application: the local files database, the
// collections service, the media extractor, and the connectivity probe. The
// composition root (internal/orchestrator) wires concrete implementations;
// tests supply fakes.
package collaborators

import (
	"context"

	"github.com/ente-io/uploadcore/internal/models"
)

// MediaExtractor produces the hash/metadata bundle a new upload needs.
type MediaExtractor interface {
	GetMediaUploadData(ctx context.Context, file models.LocalFile) (models.MediaUploadData, error)
}

// FilesDB is the local database of file records.
type FilesDB interface {
	GetFile(ctx context.Context, localID string) (models.LocalFile, error)
	Update(ctx context.Context, file models.LocalFile) error
	Insert(ctx context.Context, file models.LocalFile) error
	Delete(ctx context.Context, localID string) error
	MarkInvalid(ctx context.Context, localID string) error

	// GetUploadedFilesWithHashes returns already-uploaded records (for the
	// current user) matching fileType and owning any of hashes.
	GetUploadedFilesWithHashes(ctx context.Context, hashes []string, fileType models.FileType, userID int64) ([]models.LocalFile, error)

	// UpdateUploadedFileAcrossCollections propagates a content change (new
	// object keys) to every collection row sharing the same remote id.
	UpdateUploadedFileAcrossCollections(ctx context.Context, remoteID int64, update models.RemoteFile) error
}

// CollectionsService resolves collection keys and performs cross-collection
// linking when the Mapping Resolver finds an existing upload elsewhere.
type CollectionsService interface {
	GetCollectionKey(ctx context.Context, collectionID int64) ([]byte, error)
	AddToCollection(ctx context.Context, collectionID int64, file models.RemoteFile) error
	LinkExistingUploadToCollection(ctx context.Context, existing models.LocalFile, targetCollectionID int64) error
}

// SyncTracker is the host application's local record of per-file sync
// outcomes, kept separate from FilesDB so a file permanently excluded from
// sync (e.g. one rejected as invalid) is recorded without mutating the
// file's own DB row.
type SyncTracker interface {
	// RecordInvalid notes that localID was rejected as invalid during
	// upload, so the host UI can surface it without retrying.
	RecordInvalid(ctx context.Context, localID string) error
}

// ConnectivityProbe reports the device's current network state.
type ConnectivityProbe interface {
	IsWiFi(ctx context.Context) bool
}

// SyncStopSignal is polled cooperatively by the scheduler and worker.
type SyncStopSignal interface {
	StopRequested() bool
}
