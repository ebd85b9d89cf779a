package video

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/cache"
)

// metaPrompt is the metadata key holding the prompt a clip was rendered from.
const metaPrompt = "prompt"

// Request is one cacheable clip.
type Request struct {
	Landmark  string
	StoryType string
	Options   SubmitOptions
	Dest      string
}

// CachedGenerator consults a cache.Store before calling the service and
// records every clip it produces. Identical concurrent requests are
// serialized so the service sees at most one of them.
type CachedGenerator struct {
	store  cache.Store
	gen    Generator
	policy PollPolicy
	force  bool

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCachedGenerator wraps gen. With force set, cached entries are ignored
// and overwritten.
func NewCachedGenerator(store cache.Store, gen Generator, policy PollPolicy, force bool) *CachedGenerator {
	return &CachedGenerator{
		store:  store,
		gen:    gen,
		policy: policy,
		force:  force,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Generate returns the clip path and whether it came from the cache.
func (c *CachedGenerator) Generate(ctx context.Context, req Request) (string, bool, error) {
	unlock := c.lock(req.Landmark, req.StoryType)
	defer unlock()

	if entry, ok := c.lookup(ctx, req.Landmark, req.StoryType); ok {
		// A clip rendered from another prompt belongs to a different shot
		// list and is replaced.
		if prompt := entry.Metadata[metaPrompt]; prompt == "" || prompt == req.Options.Prompt {
			return entry.VideoPath, true, nil
		}
		log.Info().Str("landmark", entry.LandmarkName).Str("story_type", entry.StoryType).Msg("Cached clip prompt changed; regenerating")
	}

	path, err := Generate(ctx, c.gen, req.Options, req.Dest, c.policy)
	if err != nil {
		return "", false, err
	}

	meta := map[string]string{
		metaPrompt: req.Options.Prompt,
		"model":    req.Options.Model,
		"size":     req.Options.Size,
	}
	if err := c.store.Put(ctx, req.Landmark, req.StoryType, path, meta); err != nil {
		// The clip exists; only future reuse is lost.
		log.Warn().Err(err).Str("landmark", req.Landmark).Str("story_type", req.StoryType).Msg("Failed to cache video")
	}
	return path, false, nil
}

// Lookup returns a cached path whose file still exists. It always misses
// when force is set.
func (c *CachedGenerator) Lookup(ctx context.Context, landmark, storyType string) (string, bool) {
	entry, ok := c.lookup(ctx, landmark, storyType)
	if !ok {
		return "", false
	}
	return entry.VideoPath, true
}

func (c *CachedGenerator) lookup(ctx context.Context, landmark, storyType string) (*cache.Entry, bool) {
	if c.force {
		return nil, false
	}
	entry, err := c.store.Get(ctx, landmark, storyType)
	if err != nil {
		log.Warn().Err(err).Str("landmark", landmark).Msg("Video cache lookup failed")
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	if _, err := os.Stat(entry.VideoPath); err != nil {
		log.Debug().Str("path", entry.VideoPath).Msg("Cached video file is gone")
		return nil, false
	}
	log.Info().Str("landmark", entry.LandmarkName).Str("story_type", entry.StoryType).Msg("Using cached video")
	return entry, true
}

// Store records an externally produced video, such as a concatenation.
func (c *CachedGenerator) Store(ctx context.Context, landmark, storyType, path string, metadata map[string]string) error {
	if err := c.store.Put(ctx, landmark, storyType, path, metadata); err != nil {
		return fmt.Errorf("cache video: %w", err)
	}
	return nil
}

func (c *CachedGenerator) lock(landmark, storyType string) func() {
	key := cache.NormalizeLandmark(landmark) + "\x00" + cache.NormalizeStoryType(storyType)

	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
