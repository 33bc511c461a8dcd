// Package mapping implements the same-hash dedupe/relink resolver: given a
// candidate local file and its content hash(es), decides whether an upload
// can be skipped because a matching remote file already exists.
package mapping

import (
	"context"
	"fmt"

	"github.com/ente-io/uploadcore/internal/collaborators"
	"github.com/ente-io/uploadcore/internal/logging"
	"github.com/ente-io/uploadcore/internal/models"
)

var log = logging.New("mapping")

// Resolver decides, for a candidate file whose content hash already matches
// an uploaded record, whether to skip, link, or proceed with a fresh upload.
type Resolver struct {
	Files       collaborators.FilesDB
	Collections collaborators.CollectionsService
}

// New builds a Resolver over the given collaborators.
func New(files collaborators.FilesDB, collections collaborators.CollectionsService) *Resolver {
	return &Resolver{Files: files, Collections: collections}
}

// Resolve returns true if the candidate's upload can be skipped because an
// equivalent remote file was found (and, where needed, already linked into
// the target collection).
func (r *Resolver) Resolve(ctx context.Context, candidate models.LocalFile, data models.MediaUploadData, targetCollectionID int64, userID int64) (bool, error) {
	if candidate.HasValidRemoteID() {
		// Already uploaded; the caller's "already uploaded" shortcut
		// should have caught this earlier. Defensive only.
		return false, nil
	}

	hashes := []string{data.FileHash}
	if candidate.Type == models.FileTypeLivePhoto && data.ZipHash != "" {
		hashes = append(hashes, data.ZipHash)
	}

	matches, err := r.Files.GetUploadedFilesWithHashes(ctx, hashes, candidate.Type, userID)
	if err != nil {
		return false, fmt.Errorf("mapping: query hash matches: %w", err)
	}
	if len(matches) == 0 {
		return false, nil
	}

	match := matches[0]

	switch {
	case match.LocalID == candidate.LocalID && match.CollectionID == targetCollectionID:
		// Case A: identical entry already uploaded in this collection.
		if err := r.Files.Delete(ctx, candidate.LocalID); err != nil {
			return false, fmt.Errorf("mapping: delete duplicate local entry: %w", err)
		}
		return true, nil

	case match.CollectionID == targetCollectionID && match.LocalID == "":
		// Case B: remote file exists in this collection with no local
		// counterpart yet; adopt the candidate's local id onto it.
		match.LocalID = candidate.LocalID
		if err := r.Files.Update(ctx, match); err != nil {
			return false, fmt.Errorf("mapping: stamp local id onto existing upload: %w", err)
		}
		if err := r.Files.Delete(ctx, candidate.LocalID); err != nil {
			return false, fmt.Errorf("mapping: delete duplicate local entry: %w", err)
		}
		return true, nil

	case match.CollectionID != targetCollectionID:
		// Case C/D: already uploaded elsewhere (with or without a localID,
		// matching or not); link into target collection instead of
		// re-uploading bytes.
		if err := r.Collections.LinkExistingUploadToCollection(ctx, match, targetCollectionID); err != nil {
			return false, fmt.Errorf("mapping: link existing upload into collection: %w", err)
		}
		return true, nil

	default:
		// Case E: matches exist in the target collection but belong to a
		// different, non-null local id — treat as a likely device-side
		// duplicate and upload anew.
		log.Debug().Str("local_id", candidate.LocalID).Str("matched_local_id", match.LocalID).Msg("hash match found but owned by a different local id; uploading anew")
		return false, nil
	}
}
