package landmarks

import (
	"context"
	"math"
	"sort"
	"strings"
)

const (
	earthRadiusKM = 6371.0088

	// DefaultTopN is used when a caller asks for zero or fewer recommendations.
	DefaultTopN = 5
)

// Recommendation is a nearby landmark with its distance from the origin.
type Recommendation struct {
	Landmark
	DistanceKM float64 `json:"distance_km"`
}

// Haversine returns the great-circle distance in kilometres between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// Find locates the gazetteer entry best matching name. Several spellings are
// tried in turn ("the", "great" and "the great" stripped); for each an exact
// case-insensitive match is preferred over a substring match.
func Find(ctx context.Context, store Store, name string) (Landmark, bool, error) {
	all, err := store.All(ctx)
	if err != nil {
		return Landmark{}, false, err
	}

	for _, variation := range nameVariations(name) {
		if variation == "" {
			continue
		}
		for _, lm := range all {
			if strings.ToLower(lm.Name) == variation {
				return lm, true, nil
			}
		}
		matches, err := store.FindByNameFragment(ctx, variation)
		if err != nil {
			return Landmark{}, false, err
		}
		if len(matches) > 0 {
			return matches[0], true, nil
		}
	}
	return Landmark{}, false, nil
}

func nameVariations(name string) []string {
	cleaned := strings.ToLower(strings.TrimSpace(name))
	return []string{
		cleaned,
		strings.TrimSpace(strings.ReplaceAll(cleaned, "the ", "")),
		strings.TrimSpace(strings.ReplaceAll(cleaned, "great ", "")),
		strings.TrimSpace(strings.ReplaceAll(cleaned, "the great ", "")),
	}
}

// Recommend returns up to topN landmarks closest to the one named name,
// excluding that landmark itself. An empty category or "all" disables the
// category filter. An unknown name yields no recommendations.
func Recommend(ctx context.Context, store Store, name, category string, topN int) ([]Recommendation, error) {
	target, ok, err := Find(ctx, store, name)
	if err != nil || !ok {
		return nil, err
	}

	all, err := store.All(ctx)
	if err != nil {
		return nil, err
	}

	candidates := all[:0:0]
	for _, lm := range all {
		if strings.EqualFold(lm.Name, target.Name) {
			continue
		}
		candidates = append(candidates, lm)
	}
	return rank(candidates, target.Latitude, target.Longitude, category, topN), nil
}

// NearestTo returns up to topN landmarks closest to the given coordinates.
func NearestTo(ctx context.Context, store Store, lat, lon float64, category string, topN int) ([]Recommendation, error) {
	all, err := store.All(ctx)
	if err != nil {
		return nil, err
	}
	return rank(all, lat, lon, category, topN), nil
}

func rank(candidates []Landmark, lat, lon float64, category string, topN int) []Recommendation {
	if topN <= 0 {
		topN = DefaultTopN
	}
	filter := strings.TrimSpace(category)
	if strings.EqualFold(filter, "all") {
		filter = ""
	}

	var recs []Recommendation
	for _, lm := range candidates {
		if filter != "" && !strings.EqualFold(lm.Category, filter) {
			continue
		}
		recs = append(recs, Recommendation{
			Landmark:   lm,
			DistanceKM: Haversine(lat, lon, lm.Latitude, lm.Longitude),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].DistanceKM < recs[j].DistanceKM
	})
	if len(recs) > topN {
		recs = recs[:topN]
	}
	return recs
}
