package main

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ente-io/uploadcore/internal/models"
)

// fileMedia implements collaborators.MediaExtractor and
// uploadworker.ThumbnailSource directly against the local filesystem,
// standing in for the host app's media library on this standalone CLI.
type fileMedia struct{}

func (fileMedia) GetMediaUploadData(_ context.Context, file models.LocalFile) (models.MediaUploadData, error) {
	f, err := os.Open(file.GeneratedID)
	if err != nil {
		return models.MediaUploadData{}, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return models.MediaUploadData{}, fmt.Errorf("hash source file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return models.MediaUploadData{}, fmt.Errorf("stat source file: %w", err)
	}

	return models.MediaUploadData{
		SourceFile: file.GeneratedID,
		FileHash:   base64.StdEncoding.EncodeToString(h.Sum(nil)),
		Metadata: map[string]any{
			"title":          filepath.Base(file.GeneratedID),
			"fileType":       file.Type.String(),
			"modificationTime": info.ModTime().UnixMicro(),
			"size":           info.Size(),
		},
	}, nil
}

// thumbnailCap bounds how much of the source file stands in for its
// thumbnail: this CLI has no image/video decoding, so it ships a prefix of
// the source bytes rather than a real downsized preview.
const thumbnailCap = 32 * 1024

func (fileMedia) GetThumbnail(_ context.Context, file models.LocalFile) ([]byte, error) {
	f, err := os.Open(file.GeneratedID)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, thumbnailCap)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("read source file: %w", err)
	}
	return buf[:n], nil
}

// alwaysOnline reports connectivity as always available: this CLI runs
// one-shot, not as a mobile background process with a data-usage policy.
type alwaysOnline struct{}

func (alwaysOnline) IsWiFi(context.Context) bool { return true }

// neverStopped never requests the cooperative sync-stop this CLI has no
// user-facing cancel button for.
type neverStopped struct{}

func (neverStopped) StopRequested() bool { return false }
