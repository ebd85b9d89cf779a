package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists entries in a single JSON file. Every operation re-reads
// the file, so several processes sharing the file see each other's writes;
// writes within one process are serialized and replace the file atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

var _ Store = (*FileStore)(nil)

type cacheFile struct {
	Entries []Entry `json:"entries"`
}

// NewFileStore returns a store backed by path. The file and its directory
// are created on the first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Get(_ context.Context, landmark, storyType string) (*Entry, error) {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.LandmarkName == key.landmark && e.StoryType == key.storyType {
			return e.clone(), nil
		}
	}
	return nil, nil
}

func (s *FileStore) Put(_ context.Context, landmark, storyType, videoPath string, metadata map[string]string) error {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	now := s.now()
	for i, e := range entries {
		if e.LandmarkName == key.landmark && e.StoryType == key.storyType {
			entries[i] = upsert(e, key, videoPath, metadata, now)
			return s.save(entries)
		}
	}
	entries = append(entries, upsert(Entry{}, key, videoPath, metadata, now))
	return s.save(entries)
}

func (s *FileStore) Delete(_ context.Context, landmark, storyType string) (int, error) {
	name := NormalizeLandmark(landmark)
	if name == "" {
		return 0, ErrEmptyLandmark
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if matches(entryKey{landmark: e.LandmarkName, storyType: e.StoryType}, name, storyType) {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(kept)
}

func (s *FileStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return len(entries), s.save(nil)
}

func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

func (s *FileStore) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries), nil
}

func (s *FileStore) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return file.Entries, nil
}

// save writes entries to a temp file and renames it over the cache file.
func (s *FileStore) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(cacheFile{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}
