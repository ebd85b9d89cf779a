package normalize

import (
	"strings"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

// fieldAliases lists the keys accepted for each shot field, canonical first.
var fieldAliases = map[string][]string{
	"duration_seconds":     {"duration_seconds", "duration", "seconds"},
	"shot_type":            {"shot_type", "type"},
	"visual_description":   {"visual_description", "visual", "description"},
	"narration":            {"narration", "narration_text", "voiceover"},
	"mood":                 {"mood", "tone"},
	"transition":           {"transition"},
	"ai_generation_prompt": {"ai_generation_prompt", "generation_prompt", "prompt", "video_prompt"},
}

// Shots decodes a shot list from a model reply. The payload may be an object
// with a "shots" array or a bare array. Every returned shot has all fields
// set and shots are numbered 1..n in list order.
func Shots(raw string) ([]types.Shot, error) {
	text := Extract(raw)
	if !gjson.Valid(text) {
		return nil, &ParseError{Preview: preview(text), Err: errInvalidJSON}
	}

	items := gjson.Parse(text)
	if !items.IsArray() {
		root, err := object(text, "shots")
		if err != nil {
			return nil, err
		}
		items = root.Get("shots")
		if !items.IsArray() {
			return nil, &StructureError{Key: "shots", Reason: "is not a list"}
		}
	}

	var shots []types.Shot
	for _, item := range items.Array() {
		if !item.IsObject() {
			continue
		}
		shots = append(shots, shotFromJSON(item))
	}
	if len(shots) == 0 {
		return nil, &StructureError{Key: "shots", Reason: "has no shot objects"}
	}

	return FillDefaults(shots), nil
}

// FillDefaults renumbers shots sequentially and fills any missing field:
// non-positive durations become types.DefaultShotDuration and an empty shot
// type becomes types.DefaultShotType. String fields are trimmed.
func FillDefaults(shots []types.Shot) []types.Shot {
	out := make([]types.Shot, len(shots))
	for i, shot := range shots {
		shot.ShotNumber = i + 1
		if shot.DurationSeconds <= 0 {
			shot.DurationSeconds = types.DefaultShotDuration
		}
		shot.ShotType = strings.TrimSpace(shot.ShotType)
		if shot.ShotType == "" {
			shot.ShotType = types.DefaultShotType
		}
		shot.VisualDescription = strings.TrimSpace(shot.VisualDescription)
		shot.Narration = strings.TrimSpace(shot.Narration)
		shot.Mood = strings.TrimSpace(shot.Mood)
		shot.Transition = strings.TrimSpace(shot.Transition)
		shot.AIGenerationPrompt = strings.TrimSpace(shot.AIGenerationPrompt)
		out[i] = shot
	}
	return out
}

func shotFromJSON(item gjson.Result) types.Shot {
	fields := item.Map()

	return types.Shot{
		DurationSeconds:    toSeconds(lookup(fields, "duration_seconds")),
		ShotType:           toText(lookup(fields, "shot_type")),
		VisualDescription:  toText(lookup(fields, "visual_description")),
		Narration:          toText(lookup(fields, "narration")),
		Mood:               toText(lookup(fields, "mood")),
		Transition:         toText(lookup(fields, "transition")),
		AIGenerationPrompt: toText(lookup(fields, "ai_generation_prompt")),
	}
}

func lookup(fields map[string]gjson.Result, field string) gjson.Result {
	for _, key := range fieldAliases[field] {
		if v, ok := fields[key]; ok && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func toText(v gjson.Result) string {
	if !v.Exists() {
		return ""
	}
	if v.IsArray() || v.IsObject() {
		return v.Raw
	}
	return cast.ToString(v.Value())
}

// toSeconds accepts 8, 8.0, "8", or "8 seconds".
func toSeconds(v gjson.Result) int {
	if !v.Exists() {
		return 0
	}
	if n, err := cast.ToIntE(v.Value()); err == nil {
		return n
	}
	return leadingInt(v.String())
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
