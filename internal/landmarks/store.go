// Package landmarks holds the landmark gazetteer used for name resolution and
// nearby-landmark recommendations.
package landmarks

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed gazetteer.yaml
var defaultGazetteer []byte

// Landmark is one gazetteer entry.
type Landmark struct {
	Name        string  `yaml:"name" json:"name"`
	Governorate string  `yaml:"governorate" json:"governorate"`
	Category    string  `yaml:"category" json:"category"`
	Latitude    float64 `yaml:"latitude" json:"latitude"`
	Longitude   float64 `yaml:"longitude" json:"longitude"`
}

// Store is read access to a landmark collection.
type Store interface {
	// All returns every landmark in store order.
	All(ctx context.Context) ([]Landmark, error)

	// FindByNameFragment returns landmarks whose name contains text,
	// case-insensitively.
	FindByNameFragment(ctx context.Context, text string) ([]Landmark, error)
}

// MemoryStore is an immutable in-memory Store.
type MemoryStore struct {
	landmarks []Landmark
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore copies the given landmarks into a store.
func NewMemoryStore(landmarks []Landmark) *MemoryStore {
	copied := make([]Landmark, len(landmarks))
	copy(copied, landmarks)
	return &MemoryStore{landmarks: copied}
}

// All implements Store.
func (s *MemoryStore) All(_ context.Context) ([]Landmark, error) {
	out := make([]Landmark, len(s.landmarks))
	copy(out, s.landmarks)
	return out, nil
}

// FindByNameFragment implements Store.
func (s *MemoryStore) FindByNameFragment(_ context.Context, text string) ([]Landmark, error) {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return nil, nil
	}

	var out []Landmark
	for _, lm := range s.landmarks {
		if strings.Contains(strings.ToLower(lm.Name), needle) {
			out = append(out, lm)
		}
	}
	return out, nil
}

type gazetteerFile struct {
	Landmarks []Landmark `yaml:"landmarks"`
}

// Parse decodes a YAML gazetteer document.
func Parse(data []byte) ([]Landmark, error) {
	var file gazetteerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gazetteer: %w", err)
	}

	for i, lm := range file.Landmarks {
		if strings.TrimSpace(lm.Name) == "" {
			return nil, fmt.Errorf("gazetteer entry %d has no name", i)
		}
		if lm.Latitude < -90 || lm.Latitude > 90 || lm.Longitude < -180 || lm.Longitude > 180 {
			return nil, fmt.Errorf("gazetteer entry %q has invalid coordinates", lm.Name)
		}
	}
	return file.Landmarks, nil
}

// LoadFile reads a gazetteer from path, or the built-in one when path is empty.
func LoadFile(path string) (*MemoryStore, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gazetteer: %w", err)
	}
	landmarks, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(landmarks), nil
}

// Default returns a store over the built-in gazetteer of Egyptian landmarks.
func Default() (*MemoryStore, error) {
	landmarks, err := Parse(defaultGazetteer)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(landmarks), nil
}
