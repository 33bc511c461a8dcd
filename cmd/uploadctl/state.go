package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ente-io/uploadcore/internal/models"
)

// localStateFile is the persisted shape of localState: local file records,
// one symmetric key per collection the CLI has touched, and the set of
// local ids rejected as invalid.
type localStateFile struct {
	Files       map[string]models.LocalFile `json:"files"`
	Collections map[string]string           `json:"collections"` // collectionID -> base64 key
	Invalid     []string                    `json:"invalid"`
}

// localState is a single-process, JSON-file-backed stand-in for the host
// app's files database and collections service. It persists with the same
// write-to-tmp-then-rename pattern config.Config.Save uses.
type localState struct {
	path string

	mu   sync.Mutex
	data localStateFile
}

func openLocalState(path string) (*localState, error) {
	s := &localState{path: path, data: localStateFile{
		Files:       make(map[string]models.LocalFile),
		Collections: make(map[string]string),
	}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if s.data.Files == nil {
		s.data.Files = make(map[string]models.LocalFile)
	}
	if s.data.Collections == nil {
		s.data.Collections = make(map[string]string)
	}
	return s, nil
}

func (s *localState) saveLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("save state file: %w", err)
	}
	return nil
}

// --- collaborators.FilesDB ---

func (s *localState) GetFile(_ context.Context, localID string) (models.LocalFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.data.Files[localID]
	if !ok {
		return models.LocalFile{}, fmt.Errorf("no local record for %q", localID)
	}
	return file, nil
}

func (s *localState) Update(_ context.Context, file models.LocalFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Files[file.LocalID] = file
	return s.saveLocked()
}

func (s *localState) Insert(ctx context.Context, file models.LocalFile) error {
	return s.Update(ctx, file)
}

func (s *localState) Delete(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data.Files, localID)
	return s.saveLocked()
}

func (s *localState) MarkInvalid(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	file := s.data.Files[localID]
	file.LocalID = localID
	file.IsDeleted = true
	s.data.Files[localID] = file
	return s.saveLocked()
}

// GetUploadedFilesWithHashes always reports no match: this standalone CLI
// does not maintain a content-hash index, so every upload proceeds as new
// rather than being deduped or relinked.
func (s *localState) GetUploadedFilesWithHashes(context.Context, []string, models.FileType, int64) ([]models.LocalFile, error) {
	return nil, nil
}

func (s *localState) UpdateUploadedFileAcrossCollections(_ context.Context, remoteID int64, update models.RemoteFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, f := range s.data.Files {
		if f.UploadedFileID == remoteID {
			f.UpdationTime = update.UpdationTime
			s.data.Files[id] = f
		}
	}
	return s.saveLocked()
}

// --- collaborators.SyncTracker ---

// RecordInvalid appends localID to the persisted invalid-file list, skipping
// the write if it's already recorded.
func (s *localState) RecordInvalid(_ context.Context, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.data.Invalid {
		if id == localID {
			return nil
		}
	}
	s.data.Invalid = append(s.data.Invalid, localID)
	return s.saveLocked()
}

// --- collaborators.CollectionsService ---

func (s *localState) GetCollectionKey(_ context.Context, collectionID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d", collectionID)
	if encoded, ok := s.data.Collections[key]; ok {
		return base64.StdEncoding.DecodeString(encoded)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate collection key: %w", err)
	}
	s.data.Collections[key] = base64.StdEncoding.EncodeToString(raw)
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *localState) AddToCollection(_ context.Context, _ int64, _ models.RemoteFile) error {
	return nil
}

func (s *localState) LinkExistingUploadToCollection(_ context.Context, _ models.LocalFile, _ int64) error {
	return nil
}
