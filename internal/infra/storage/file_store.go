package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MRamiBalles/FantasyEROperations/server/internal/engine"
)

// FileStore writes each finished session to dir/game_YYYYMMDD_HHMMSS.json.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates a store rooted at dir. The directory is created on first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Save writes the snapshot indented with four spaces and returns the file path.
func (s *FileStore) Save(ctx context.Context, snap engine.SessionSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}

	stamp := snap.SaveTimestamp
	if stamp == "" {
		stamp = s.now().Format("20060102_150405")
	}
	path := filepath.Join(s.dir, "game_"+stamp+".json")

	data, err := json.MarshalIndent(snap, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write save file: %w", err)
	}
	return path, nil
}

// List returns every save file in the directory, newest first.
func (s *FileStore) List(ctx context.Context) ([]SessionRecord, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "game_*.json"))
	if err != nil {
		return nil, err
	}

	records := make([]SessionRecord, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.read(path)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SavedAt.After(records[j].SavedAt)
	})
	return records, nil
}

// Get finds a save by session id, file name or path.
func (s *FileStore) Get(ctx context.Context, id string) (*SessionRecord, error) {
	if strings.HasSuffix(id, ".json") {
		path := id
		if filepath.Dir(id) == "." {
			path = filepath.Join(s.dir, id)
		}
		rec, err := s.read(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return rec, err
	}

	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].SessionID == id {
			return &records[i], nil
		}
	}
	return nil, ErrSessionNotFound
}

func (s *FileStore) read(path string) (*SessionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap engine.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	savedAt, err := time.Parse(time.RFC3339, snap.SaveDate)
	if err != nil {
		info, statErr := os.Stat(path)
		if statErr != nil {
			return nil, statErr
		}
		savedAt = info.ModTime()
	}
	rec := recordFromSnapshot(snap, path, savedAt)
	return &rec, nil
}
