// Package models holds the data types shared across the upload orchestrator:
// the queue entry, the persisted lock record, presigned URL handles, and the
// wire-facing request/response shapes exchanged with the catalog service.
package models

import "time"

// FileType classifies a local media item for concurrency-class and
// encryption-path decisions.
type FileType int

const (
	FileTypeImage FileType = iota
	FileTypeVideo
	FileTypeLivePhoto
)

func (t FileType) String() string {
	switch t {
	case FileTypeImage:
		return "image"
	case FileTypeVideo:
		return "video"
	case FileTypeLivePhoto:
		return "livePhoto"
	default:
		return "unknown"
	}
}

// UploadStatus is the lifecycle state of an UploadItem in the queue.
type UploadStatus int

const (
	StatusNotStarted UploadStatus = iota
	StatusInProgress
	StatusInBackground
	StatusCompleted
)

func (s UploadStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "notStarted"
	case StatusInProgress:
		return "inProgress"
	case StatusInBackground:
		return "inBackground"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// LocalFile is the local record for a candidate upload. UploadedFileID and
// UpdationTime use the sentinel -1 to mean "not yet uploaded" /
// "forced re-upload", matching the remote service's own convention.
type LocalFile struct {
	LocalID        string
	GeneratedID    string
	Title          string
	Type           FileType
	CollectionID   int64
	UploadedFileID int64
	UpdationTime   int64
	EncryptedKey   string
	KeyNonce       string
	IsDeleted      bool
}

const SentinelUpdationTime = -1

// HasValidRemoteID reports whether this file already has an uploaded
// counterpart on the server.
func (f LocalFile) HasValidRemoteID() bool {
	return f.UploadedFileID > 0
}

// IsUpdate reports whether processing this file means updating existing
// remote content rather than creating a new remote file.
func (f LocalFile) IsUpdate() bool {
	return f.HasValidRemoteID() && f.UpdationTime == SentinelUpdationTime
}

// MediaUploadData is produced by the media extractor collaborator.
type MediaUploadData struct {
	// SourceFile is the collaborator-resolved handle to the original media
	// bytes on disk, opaque to the rest of the pipeline: the worker opens
	// it directly and never derives it from LocalFile itself.
	SourceFile string
	FileHash   string
	ZipHash    string // set only for live photos
	IsDeleted  bool
	Metadata   map[string]any
}

// ResultHandle is a one-shot future: exactly one of Fulfill or Reject is
// ever called, and Wait blocks until one of them has been.
type ResultHandle struct {
	done chan struct{}
	val  RemoteFile
	err  error
}

// NewResultHandle returns an unfulfilled handle.
func NewResultHandle() *ResultHandle {
	return &ResultHandle{done: make(chan struct{})}
}

// Fulfill completes the handle with a successful result. Safe to call once.
func (h *ResultHandle) Fulfill(v RemoteFile) {
	h.val = v
	close(h.done)
}

// Reject completes the handle with a failure. Safe to call once.
func (h *ResultHandle) Reject(err error) {
	h.err = err
	close(h.done)
}

// Wait blocks until the handle is fulfilled or the context is done.
func (h *ResultHandle) Wait(done <-chan struct{}) (RemoteFile, error) {
	select {
	case <-h.done:
		return h.val, h.err
	case <-done:
		return RemoteFile{}, nil
	}
}

// UploadItem is the queue entry tracked by the scheduler.
type UploadItem struct {
	LocalID      string
	File         LocalFile
	CollectionID int64
	Status       UploadStatus
	Result       *ResultHandle
	EnqueuedAt   time.Time
}

// LockRecord is the persisted advisory lock for a single localID.
type LockRecord struct {
	Owner          string `json:"owner"`
	AcquiredMicros int64  `json:"acquiredAtMicros"`
}

const (
	OwnerForeground = "foreground"
	OwnerBackground = "background"
)

// PresignedURL is a single-use object-storage PUT target.
type PresignedURL struct {
	URL       string `json:"url"`
	ObjectKey string `json:"objectKey"`
}

// RemoteFile is the catalog service's view of an uploaded file.
type RemoteFile struct {
	ID           int64          `json:"id"`
	OwnerID      int64          `json:"ownerID"`
	CollectionID int64          `json:"collectionID"`
	UpdationTime int64          `json:"updationTime"`
	File         ObjectRef      `json:"file"`
	Thumbnail    ObjectRef      `json:"thumbnail"`
	Metadata     EncryptedBlob  `json:"metadata"`
	EncryptedKey string         `json:"encryptedKey,omitempty"`
	KeyNonce     string         `json:"keyDecryptionNonce,omitempty"`
	LocalID      string         `json:"-"`
	Extra        map[string]any `json:"-"`
}

// ObjectRef describes one uploaded object (file or thumbnail) together with
// the per-object decryption header produced by the streaming AEAD cipher.
type ObjectRef struct {
	ObjectKey         string `json:"objectKey"`
	DecryptionHeader  string `json:"decryptionHeader"`
	Size              int64  `json:"size"`
}

// EncryptedBlob is base64-encoded ciphertext plus its AEAD header.
type EncryptedBlob struct {
	EncryptedData    string `json:"encryptedData"`
	DecryptionHeader string `json:"decryptionHeader"`
}

// CreateFileRequest is the body of POST /files.
type CreateFileRequest struct {
	CollectionID        int64         `json:"collectionID"`
	EncryptedKey        string        `json:"encryptedKey"`
	KeyDecryptionNonce  string        `json:"keyDecryptionNonce"`
	File                ObjectRef     `json:"file"`
	Thumbnail           ObjectRef     `json:"thumbnail"`
	Metadata            EncryptedBlob `json:"metadata"`
}

// UpdateFileRequest is the body of PUT /files/update.
type UpdateFileRequest struct {
	ID        int64         `json:"id"`
	File      ObjectRef     `json:"file"`
	Thumbnail ObjectRef     `json:"thumbnail"`
	Metadata  EncryptedBlob `json:"metadata"`
}

// PresignedURLResponse is the body of GET /files/upload-urls.
type PresignedURLResponse struct {
	URLs []PresignedURL `json:"urls"`
}

// FileAttributes holds the per-file symmetric key produced or recovered
// during encryption, plus the stream header needed to decrypt later.
type FileAttributes struct {
	Key    []byte
	Header []byte
}
