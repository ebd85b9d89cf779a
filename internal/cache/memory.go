package cache

import (
	"context"
	"sync"
	"time"
)

type entryKey struct {
	landmark  string
	storyType string
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[entryKey]Entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory cache.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[entryKey]Entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, landmark, storyType string) (*Entry, error) {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	return entry.clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, landmark, storyType, videoPath string, metadata map[string]string) error {
	key, err := makeKey(landmark, storyType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = upsert(s.entries[key], key, videoPath, metadata, s.now())
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, landmark, storyType string) (int, error) {
	name := NormalizeLandmark(landmark)
	if name == "" {
		return 0, ErrEmptyLandmark
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if matches(key, name, storyType) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.entries)
	s.entries = make(map[entryKey]Entry)
	return removed, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e.clone())
	}
	sortEntries(entries)
	return entries, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(entries), nil
}

func makeKey(landmark, storyType string) (entryKey, error) {
	name := NormalizeLandmark(landmark)
	if name == "" {
		return entryKey{}, ErrEmptyLandmark
	}
	return entryKey{landmark: name, storyType: NormalizeStoryType(storyType)}, nil
}

// matches reports whether key belongs to landmark and, when storyType is
// non-empty, to that story type or one of its clips.
func matches(key entryKey, landmark, storyType string) bool {
	return key.landmark == landmark && storyTypeMatches(key.storyType, storyType)
}

// upsert returns the entry that results from writing videoPath over prev,
// keeping prev's creation time when there was one.
func upsert(prev Entry, key entryKey, videoPath string, metadata map[string]string, now time.Time) Entry {
	created := prev.CreatedAt
	if created.IsZero() {
		created = now
	}
	return Entry{
		LandmarkName: key.landmark,
		StoryType:    key.storyType,
		VideoPath:    videoPath,
		Metadata:     copyMetadata(metadata),
		CreatedAt:    created,
		UpdatedAt:    now,
	}
}
