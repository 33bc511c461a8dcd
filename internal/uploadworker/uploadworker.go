// Package uploadworker implements TryToUpload: the linear, per-item upload
// flow the Queue Scheduler dispatches one goroutine per in-progress item to
// run.
package uploadworker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ente-io/uploadcore/internal/blobput"
	"github.com/ente-io/uploadcore/internal/catalog"
	"github.com/ente-io/uploadcore/internal/collaborators"
	"github.com/ente-io/uploadcore/internal/config"
	"github.com/ente-io/uploadcore/internal/constants"
	"github.com/ente-io/uploadcore/internal/cryptoengine"
	"github.com/ente-io/uploadcore/internal/diskspace"
	"github.com/ente-io/uploadcore/internal/events"
	"github.com/ente-io/uploadcore/internal/lockstore"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/mapping"
	"github.com/ente-io/uploadcore/internal/models"
	"github.com/ente-io/uploadcore/internal/urlpool"
	"github.com/ente-io/uploadcore/internal/uploaderrors"
)

var log = logging.New("uploadworker")

// ThumbnailSource supplies the raw thumbnail bytes for a local file; a
// separate collaborator from MediaExtractor because the two are produced by
// different parts of the host app's media pipeline.
type ThumbnailSource interface {
	GetThumbnail(ctx context.Context, file models.LocalFile) ([]byte, error)
}

// Worker runs TryToUpload for one item at a time; it holds no per-call state
// and is safe to share across concurrently dispatched goroutines.
type Worker struct {
	Config       *config.Config
	Locks        *lockstore.Store
	URLs         *urlpool.Pool
	Blobs        *blobput.Putter
	Catalog      *catalog.Client
	Mapper       *mapping.Resolver
	Media        collaborators.MediaExtractor
	Thumbnails   ThumbnailSource
	Files        collaborators.FilesDB
	Collections  collaborators.CollectionsService
	Connectivity collaborators.ConnectivityProbe
	SyncStop     collaborators.SyncStopSignal
	SyncTracker  collaborators.SyncTracker
	Events       *events.EventBus
	Owner        string // models.OwnerForeground or models.OwnerBackground

	// QueueSizeHint sizes presigned-URL refills; the orchestrator wires it
	// to the scheduler's Len so it reflects the current queue length. A nil
	// hint is treated as a queue size of one.
	QueueSizeHint func() int

	// IsTempCopy and IsSharedMediaSandbox decide the source-file deletion
	// policy in the cleanup stage; both are treated as "false" if left
	// unset.
	IsTempCopy           func(models.LocalFile) bool
	IsSharedMediaSandbox func(models.LocalFile) bool

	// ForceUpload bypasses the WiFi gate, used for user-initiated retries
	// of items parked for lack of connectivity.
	ForceUpload bool
}

type urlSourceAdapter struct {
	pool      *urlpool.Pool
	queueSize int
}

func (a urlSourceAdapter) Refresh(ctx context.Context) (models.PresignedURL, error) {
	return a.pool.Take(ctx, a.queueSize)
}

// TryToUpload runs the full upload flow for file into collectionID, bounded
// by a single deadline. Callers should run uploaderrors.Classify on a
// non-nil error to decide how the queue entry should be updated.
func (w *Worker) TryToUpload(parent context.Context, file models.LocalFile, collectionID int64) (models.RemoteFile, error) {
	ctx, cancel := context.WithTimeout(parent, constants.UploadWorkerDeadline)
	defer cancel()

	// Step 1: connectivity gate.
	if !w.ForceUpload && w.Connectivity != nil && !w.Connectivity.IsWiFi(ctx) && !w.Config.AllowMobileDataBackup {
		return models.RemoteFile{}, uploaderrors.ErrWiFiUnavailable
	}

	// Step 2: already-uploaded shortcut.
	if refreshed, err := w.Files.GetFile(ctx, file.LocalID); err == nil {
		if refreshed.HasValidRemoteID() && refreshed.UpdationTime != models.SentinelUpdationTime && refreshed.CollectionID == collectionID {
			return toRemoteFile(refreshed), nil
		}
		file = refreshed
	}

	// Step 3: acquire the lock. If this fails no cleanup runs — the
	// scheduler parks the item without ever entering the cleanup stage.
	if err := w.Locks.Acquire(file.LocalID, w.Owner, time.Now().UnixMicro()); err != nil {
		return models.RemoteFile{}, err
	}

	var tempFilePath, tempThumbPath, sourceFile string
	var result models.RemoteFile
	var opErr error

	func() {
		// Step 4: media extraction.
		data, merr := w.Media.GetMediaUploadData(ctx, file)
		if merr != nil {
			opErr = merr
			if merr == uploaderrors.ErrInvalidFile {
				w.markInvalid(ctx, file)
			}
			return
		}
		sourceFile = data.SourceFile

		isUpdate := file.IsUpdate()

		var fileKey []byte
		if isUpdate {
			wrappingKey, werr := w.Collections.GetCollectionKey(ctx, collectionID)
			if werr != nil {
				opErr = fmt.Errorf("uploadworker: get collection key for update: %w", werr)
				return
			}
			keyBytes, dkerr := base64.StdEncoding.DecodeString(file.EncryptedKey)
			if dkerr != nil {
				opErr = fmt.Errorf("uploadworker: decode encrypted key: %w", dkerr)
				return
			}
			nonceBytes, dnerr := base64.StdEncoding.DecodeString(file.KeyNonce)
			if dnerr != nil {
				opErr = fmt.Errorf("uploadworker: decode key nonce: %w", dnerr)
				return
			}
			fk, uwerr := cryptoengine.UnwrapKey(keyBytes, nonceBytes, wrappingKey)
			if uwerr != nil {
				opErr = fmt.Errorf("uploadworker: recover file key: %w", uwerr)
				return
			}
			fileKey = fk
		} else {
			// Mapping resolver — skipped entirely for updates, which
			// always target an already-known remote file.
			skip, merr2 := w.Mapper.Resolve(ctx, file, data, collectionID, w.Config.UserID)
			if merr2 != nil {
				opErr = merr2
				return
			}
			if skip {
				result = toRemoteFile(file)
				return
			}
		}

		// Streaming-encrypt the source file.
		suffix := ""
		if w.Owner == models.OwnerBackground {
			suffix = "_bg"
		}
		tempFilePath = filepath.Join(w.Config.TempDir, file.LocalID+suffix+".encrypted")
		os.Remove(tempFilePath)

		src, operr := os.Open(sourceFile)
		if operr != nil {
			opErr = fmt.Errorf("uploadworker: open source file: %w", operr)
			return
		}
		defer src.Close()

		if srcInfo, serr := src.Stat(); serr == nil {
			if derr := diskspace.CheckAvailableSpace(tempFilePath, srcInfo.Size(), constants.DiskSpaceSafetyMargin); derr != nil {
				opErr = fmt.Errorf("%w: %s", uploaderrors.ErrInsufficientDiskSpace, derr)
				return
			}
		}

		dst, cerr := os.Create(tempFilePath)
		if cerr != nil {
			opErr = fmt.Errorf("uploadworker: create temp file: %w", cerr)
			return
		}
		defer dst.Close()

		var enc *cryptoengine.StreamEncryptor
		var header []byte
		if isUpdate {
			hdr, gherr := cryptoengine.GenerateHeader()
			if gherr != nil {
				opErr = fmt.Errorf("uploadworker: generate header: %w", gherr)
				return
			}
			e, neerr := cryptoengine.NewStreamEncryptorWithKey(fileKey, hdr)
			if neerr != nil {
				opErr = fmt.Errorf("uploadworker: new encryptor: %w", neerr)
				return
			}
			enc, header = e, hdr
		} else {
			e, k, hdr, neerr := cryptoengine.NewStreamEncryptor()
			if neerr != nil {
				opErr = fmt.Errorf("uploadworker: new encryptor: %w", neerr)
				return
			}
			enc, header, fileKey = e, hdr, k
		}

		fileSize, eerr := enc.EncryptAll(dst, src)
		if eerr != nil {
			opErr = fmt.Errorf("uploadworker: encrypt file: %w", eerr)
			return
		}

		// Encrypt the thumbnail under the same file key.
		var thumbHeader []byte
		if w.Thumbnails != nil {
			thumbBytes, terr := w.Thumbnails.GetThumbnail(ctx, file)
			if terr != nil {
				opErr = fmt.Errorf("uploadworker: get thumbnail: %w", terr)
				return
			}
			thumbCipher, th, serr := cryptoengine.SealBlobWithKey(thumbBytes, fileKey)
			if serr != nil {
				opErr = fmt.Errorf("uploadworker: encrypt thumbnail: %w", serr)
				return
			}
			thumbHeader = th

			tempThumbPath = filepath.Join(w.Config.TempDir, file.LocalID+suffix+"_thumbnail.encrypted")
			if werr := os.WriteFile(tempThumbPath, thumbCipher, 0600); werr != nil {
				opErr = fmt.Errorf("uploadworker: write thumbnail temp file: %w", werr)
				return
			}
		}

		// PUT thumbnail then file.
		qsize := 1
		if w.QueueSizeHint != nil {
			qsize = w.QueueSizeHint()
		}
		urlSrc := urlSourceAdapter{pool: w.URLs, queueSize: qsize}

		var thumbObjectKey, fileObjectKey string
		if tempThumbPath != "" {
			u, uerr := w.URLs.Take(ctx, qsize)
			if uerr != nil {
				opErr = fmt.Errorf("uploadworker: take thumbnail url: %w", uerr)
				return
			}
			key, perr := w.Blobs.Put(ctx, u, tempThumbPath, urlSrc)
			if perr != nil {
				opErr = fmt.Errorf("uploadworker: put thumbnail: %w", perr)
				return
			}
			thumbObjectKey = key
		}

		fileURL, uerr := w.URLs.Take(ctx, qsize)
		if uerr != nil {
			opErr = fmt.Errorf("uploadworker: take file url: %w", uerr)
			return
		}
		key, perr := w.Blobs.Put(ctx, fileURL, tempFilePath, urlSrc)
		if perr != nil {
			opErr = fmt.Errorf("uploadworker: put file: %w", perr)
			return
		}
		fileObjectKey = key

		// Build and encrypt metadata.
		metadataJSON, jerr := json.Marshal(data.Metadata)
		if jerr != nil {
			opErr = fmt.Errorf("uploadworker: marshal metadata: %w", jerr)
			return
		}
		metaCipher, metaHeader, serr := cryptoengine.SealBlobWithKey(metadataJSON, fileKey)
		if serr != nil {
			opErr = fmt.Errorf("uploadworker: encrypt metadata: %w", serr)
			return
		}

		// Cooperative stop check, right before committing state.
		if w.SyncStop != nil && w.SyncStop.StopRequested() {
			opErr = uploaderrors.ErrSyncStopRequested
			return
		}

		fileRef := models.ObjectRef{ObjectKey: fileObjectKey, DecryptionHeader: base64.StdEncoding.EncodeToString(header), Size: fileSize}
		thumbRef := models.ObjectRef{ObjectKey: thumbObjectKey, DecryptionHeader: base64.StdEncoding.EncodeToString(thumbHeader)}
		metaBlob := models.EncryptedBlob{
			EncryptedData:    base64.StdEncoding.EncodeToString(metaCipher),
			DecryptionHeader: base64.StdEncoding.EncodeToString(metaHeader),
		}

		// Commit metadata to the catalog.
		if isUpdate {
			remote, uerr := w.Catalog.UpdateFile(ctx, models.UpdateFileRequest{
				ID:        file.UploadedFileID,
				File:      fileRef,
				Thumbnail: thumbRef,
				Metadata:  metaBlob,
			})
			if uerr != nil {
				opErr = uerr
				return
			}
			if perr := w.Files.UpdateUploadedFileAcrossCollections(ctx, file.UploadedFileID, remote); perr != nil {
				opErr = fmt.Errorf("uploadworker: propagate update across collections: %w", perr)
				return
			}
			result = remote
		} else {
			wrappingKey, werr := w.Collections.GetCollectionKey(ctx, collectionID)
			if werr != nil {
				opErr = fmt.Errorf("uploadworker: get collection key: %w", werr)
				return
			}
			encryptedKey, nonce, kwerr := cryptoengine.WrapKey(fileKey, wrappingKey)
			if kwerr != nil {
				opErr = fmt.Errorf("uploadworker: wrap file key: %w", kwerr)
				return
			}

			remote, cerr := w.Catalog.CreateFile(ctx, models.CreateFileRequest{
				CollectionID:       collectionID,
				EncryptedKey:       base64.StdEncoding.EncodeToString(encryptedKey),
				KeyDecryptionNonce: base64.StdEncoding.EncodeToString(nonce),
				File:               fileRef,
				Thumbnail:          thumbRef,
				Metadata:           metaBlob,
			})
			if cerr != nil {
				opErr = cerr
				return
			}
			if data.IsDeleted {
				remote.LocalID = ""
			} else {
				remote.LocalID = file.LocalID
			}
			if perr := w.Files.Update(ctx, localFileFromRemote(file, remote)); perr != nil {
				opErr = fmt.Errorf("uploadworker: persist uploaded file: %w", perr)
				return
			}
			result = remote
		}

		// Foreground-only event.
		if w.Owner == models.OwnerForeground && w.Events != nil {
			w.Events.Publish(&events.LocalPhotosUpdatedEvent{
				BaseEvent:      events.BaseEvent{EventType: events.EventLocalPhotosUpdated, Time: time.Now()},
				LocalID:        file.LocalID,
				UploadedFileID: result.ID,
			})
		}
	}()

	// Cleanup always runs once the lock has been acquired.
	w.cleanup(file, sourceFile, tempFilePath, tempThumbPath, opErr == nil)

	if opErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			opErr = fmt.Errorf("%w: %v", uploaderrors.ErrTimeout, opErr)
		}
		if uploaderrors.IsPolicyOutcome(opErr) {
			log.Warn().Str("local_id", file.LocalID).Err(opErr).Msg("upload did not complete")
		} else {
			log.Error().Str("local_id", file.LocalID).Err(opErr).Msg("upload failed")
		}
		return models.RemoteFile{}, opErr
	}
	return result, nil
}

func (w *Worker) cleanup(file models.LocalFile, sourceFile, tempFilePath, tempThumbPath string, uploaded bool) {
	deleteSource := false
	if w.IsTempCopy != nil && w.IsTempCopy(file) {
		deleteSource = true
	}
	if uploaded && w.IsSharedMediaSandbox != nil && w.IsSharedMediaSandbox(file) {
		deleteSource = true
	}
	if deleteSource && sourceFile != "" {
		if err := os.Remove(sourceFile); err != nil && !os.IsNotExist(err) {
			log.Warn().Str("local_id", file.LocalID).Err(err).Msg("failed to delete temporary source copy")
		}
	}

	if tempFilePath != "" {
		os.Remove(tempFilePath)
	}
	if tempThumbPath != "" {
		os.Remove(tempThumbPath)
	}

	if err := w.Locks.Release(file.LocalID, w.Owner); err != nil {
		log.Warn().Str("local_id", file.LocalID).Err(err).Msg("failed to release lock during cleanup")
	}
}

func (w *Worker) markInvalid(ctx context.Context, file models.LocalFile) {
	log.Error().Str("local_id", file.LocalID).Str("title", fallbackTitle(file)).Msg("invalid file")
	if err := w.Files.MarkInvalid(ctx, file.LocalID); err != nil {
		log.Warn().Str("local_id", file.LocalID).Err(err).Msg("failed to mark file invalid")
	}
	if w.SyncTracker != nil {
		if err := w.SyncTracker.RecordInvalid(ctx, file.LocalID); err != nil {
			log.Warn().Str("local_id", file.LocalID).Err(err).Msg("failed to record file in sync tracker")
		}
	}
}

func fallbackTitle(file models.LocalFile) string {
	if file.Title != "" {
		return file.Title
	}
	return fmt.Sprintf("<untitled-%s>", file.LocalID)
}

func toRemoteFile(file models.LocalFile) models.RemoteFile {
	return models.RemoteFile{
		ID:           file.UploadedFileID,
		CollectionID: file.CollectionID,
		UpdationTime: file.UpdationTime,
		LocalID:      file.LocalID,
	}
}

func localFileFromRemote(file models.LocalFile, remote models.RemoteFile) models.LocalFile {
	file.UploadedFileID = remote.ID
	file.UpdationTime = remote.UpdationTime
	file.CollectionID = remote.CollectionID
	file.LocalID = remote.LocalID
	return file
}
