// Package cache stores rendered videos keyed by (landmark name, story type)
// so a landmark that was already rendered is not sent to the video service
// again.
//
// All Store implementations are safe for concurrent use. Put is an upsert
// with last-write-wins semantics. Get returns (nil, nil) on a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultStoryType labels entries stored without an explicit story type.
const DefaultStoryType = "default"

// ClipMarker joins a story type and a shot number in the story type of a
// per-shot clip entry, e.g. "default#shot-02".
const ClipMarker = "#shot-"

// ErrEmptyLandmark is returned when an operation is given a blank landmark name.
var ErrEmptyLandmark = errors.New("cache: landmark name is empty")

// Entry is one cached video.
type Entry struct {
	LandmarkName string            `json:"landmark_name" dynamodbav:"landmark_name"`
	StoryType    string            `json:"story_type" dynamodbav:"story_type"`
	VideoPath    string            `json:"video_path" dynamodbav:"video_path"`
	Metadata     map[string]string `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" dynamodbav:"updated_at"`
}

// Stats summarizes a cache. Per-shot clips are counted apart from videos.
type Stats struct {
	TotalVideos     int `json:"total_videos"`
	TotalClips      int `json:"total_clips"`
	UniqueLandmarks int `json:"unique_landmarks"`
}

// Store is a video cache backend.
type Store interface {
	// Get returns the entry for the key, or nil when there is none.
	Get(ctx context.Context, landmark, storyType string) (*Entry, error)

	// Put creates or replaces the entry for the key.
	Put(ctx context.Context, landmark, storyType, videoPath string, metadata map[string]string) error

	// Delete removes the entry for the key together with the clips rendered
	// for it. An empty storyType removes every entry for the landmark. It
	// returns the number of entries removed.
	Delete(ctx context.Context, landmark, storyType string) (int, error)

	// DeleteAll empties the cache and returns the number of entries removed.
	DeleteAll(ctx context.Context) (int, error)

	// List returns every entry ordered by landmark then story type.
	List(ctx context.Context) ([]Entry, error)

	// Stats counts videos, clips and distinct landmarks.
	Stats(ctx context.Context) (Stats, error)
}

// NormalizeLandmark lowercases and trims a landmark name for use in a key.
func NormalizeLandmark(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeStoryType trims a story type, substituting DefaultStoryType for blanks.
func NormalizeStoryType(storyType string) string {
	storyType = strings.TrimSpace(storyType)
	if storyType == "" {
		return DefaultStoryType
	}
	return storyType
}

// ClipStoryType is the story type a clip for shot is cached under.
func ClipStoryType(storyType string, shot int) string {
	return fmt.Sprintf("%s%s%02d", NormalizeStoryType(storyType), ClipMarker, shot)
}

// IsClip reports whether storyType names a per-shot clip.
func IsClip(storyType string) bool {
	return strings.Contains(storyType, ClipMarker)
}

// storyTypeMatches reports whether a stored story type is covered by a
// Delete for want: the exact type, or a clip of it. An empty want matches
// everything.
func storyTypeMatches(stored, want string) bool {
	if strings.TrimSpace(want) == "" {
		return true
	}
	want = NormalizeStoryType(want)
	if stored == want {
		return true
	}
	return !IsClip(want) && strings.HasPrefix(stored, want+ClipMarker)
}

func computeStats(entries []Entry) Stats {
	var stats Stats
	landmarks := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		landmarks[e.LandmarkName] = struct{}{}
		if IsClip(e.StoryType) {
			stats.TotalClips++
		} else {
			stats.TotalVideos++
		}
	}
	stats.UniqueLandmarks = len(landmarks)
	return stats
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LandmarkName != entries[j].LandmarkName {
			return entries[i].LandmarkName < entries[j].LandmarkName
		}
		return entries[i].StoryType < entries[j].StoryType
	})
}

func copyMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

func (e Entry) clone() *Entry {
	e.Metadata = copyMetadata(e.Metadata)
	return &e
}
