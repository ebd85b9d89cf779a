// Package resolver turns a free-text landmark analysis into one canonical
// landmark name.
package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/zhe.chen/landmark-story/internal/landmarks"
	"github.com/zhe.chen/landmark-story/internal/llm"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Source records which signal produced a resolved name.
type Source string

const (
	SourceUser    Source = "user"
	SourceLLM     Source = "llm"
	SourceLabel   Source = "label"
	SourceKeyword Source = "keyword"
	SourceUnknown Source = "unknown"
)

// Result is a resolved name. Name is never empty.
type Result struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
}

const extractionPrompt = `Below is an analysis of a photograph of a historical building or landmark.

ANALYSIS:
%s

TASK: Reply with the proper name of the landmark only, for example "Karnak Temple".
Do not add any other words or punctuation. If the analysis does not name a
specific landmark, reply with "Unknown".`

// maxNameLength bounds an accepted model answer; longer replies are prose.
const maxNameLength = 100

var nonAnswers = map[string]bool{
	"unknown":             true,
	"unnamed":             true,
	"unidentified":        true,
	"not specified":       true,
	"could not determine": true,
}

var nameLabel = regexp.MustCompile(`(?im)\bname\b[^:\n]{0,40}:\s*([^\n]+)`)

// Resolver combines the user override, model extraction, a literal
// "Name: X" label in the analysis, and gazetteer keyword scoring.
type Resolver struct {
	provider   llm.Provider
	store      landmarks.Store
	preferUser bool
}

// New creates a Resolver. provider and store may be nil, which disables the
// corresponding signal. When preferUser is false a user-supplied name is
// only used once every automated signal has failed.
func New(provider llm.Provider, store landmarks.Store, preferUser bool) *Resolver {
	return &Resolver{
		provider:   provider,
		store:      store,
		preferUser: preferUser,
	}
}

// Resolve returns the canonical name for analysis.
func (r *Resolver) Resolve(ctx context.Context, analysis, userName string) Result {
	userName = strings.TrimSpace(userName)
	if userName != "" && r.preferUser {
		return Result{Name: userName, Source: SourceUser}
	}

	if strings.TrimSpace(analysis) != "" {
		if name, ok := r.extract(ctx, analysis); ok {
			return Result{Name: name, Source: SourceLLM}
		}
		if name, ok := labeledName(analysis); ok {
			return Result{Name: name, Source: SourceLabel}
		}
		if name, ok := r.bestKeywordMatch(ctx, analysis); ok {
			return Result{Name: name, Source: SourceKeyword}
		}
	}

	if userName != "" {
		return Result{Name: userName, Source: SourceUser}
	}
	return Result{Name: types.UnknownLandmark, Source: SourceUnknown}
}

func (r *Resolver) extract(ctx context.Context, analysis string) (string, bool) {
	if r.provider == nil || !r.provider.IsEnabled() {
		return "", false
	}

	answer, err := r.provider.Generate(ctx, llm.Request{
		Prompt:    fmt.Sprintf(extractionPrompt, analysis),
		MaxTokens: 64,
	})
	if err != nil {
		log.Warn().Err(err).Str("provider", r.provider.Name()).Msg("Landmark name extraction failed")
		return "", false
	}

	name, ok := CleanName(answer)
	if !ok {
		log.Debug().Str("answer", answer).Msg("Rejected landmark name answer")
	}
	return name, ok
}

// labeledName finds a "Name: X" style line in the analysis.
func labeledName(analysis string) (string, bool) {
	for _, m := range nameLabel.FindAllStringSubmatch(analysis, -1) {
		if name, ok := CleanName(m[1]); ok {
			return name, true
		}
	}
	return "", false
}

// CleanName normalizes a model answer into a bare landmark name. It keeps the
// first line, strips markdown emphasis, quotes, a leading "Name:" label, and
// a trailing period. The second result is false for empty answers, overlong
// answers, and non-answers such as "Unknown".
func CleanName(answer string) (string, bool) {
	name := strings.TrimSpace(answer)
	if first, _, found := strings.Cut(name, "\n"); found {
		name = strings.TrimSpace(first)
	}

	for i := 0; i < 3; i++ {
		before := name
		name = strings.Trim(name, " \t*_`\"'“”‘’")
		if label, rest, found := strings.Cut(name, ":"); found && strings.EqualFold(strings.TrimSpace(label), "name") {
			name = strings.TrimSpace(rest)
		}
		name = strings.TrimSpace(strings.TrimSuffix(name, "."))
		if name == before {
			break
		}
	}

	if name == "" || len(name) > maxNameLength {
		return "", false
	}
	if nonAnswers[strings.ToLower(name)] {
		return "", false
	}
	return name, true
}

func (r *Resolver) bestKeywordMatch(ctx context.Context, analysis string) (string, bool) {
	if r.store == nil {
		return "", false
	}
	all, err := r.store.All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read landmark store")
		return "", false
	}

	counts := tokenCounts(analysis)
	best, bestScore := "", 0
	for _, lm := range all {
		if score := Score(lm, counts); score > bestScore {
			best, bestScore = lm.Name, score
		}
	}
	return best, bestScore > 0
}
