// Package normalize recovers structured data from model replies that were asked
// to return only JSON but may wrap it in code fences or surrounding prose.
//
// Failures come in two tiers. A *ParseError means no JSON could be decoded at
// all; a *StructureError means the JSON decoded but lacks an expected key.
// Use IsParse and IsStructure to tell them apart.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const previewLen = 200

var errInvalidJSON = errors.New("invalid JSON")

// ParseError reports that the text contained no decodable JSON.
type ParseError struct {
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v (text: %s)", e.Err, e.Preview)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StructureError reports JSON that decoded but is missing an expected key.
type StructureError struct {
	Key    string
	Reason string
}

func (e *StructureError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("structure error: missing %q", e.Key)
	}
	return fmt.Sprintf("structure error: %q %s", e.Key, e.Reason)
}

// IsParse reports whether err is (or wraps) a *ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsStructure reports whether err is (or wraps) a *StructureError.
func IsStructure(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// Extract returns the most likely JSON payload inside raw:
// the first ```json fence, else the first fence of any kind, else the slice
// from the first { to the last } (see sliceJSON for when a list wins).
// When nothing looks like JSON the trimmed input is returned unchanged.
func Extract(raw string) string {
	text := strings.TrimSpace(raw)

	if inner, ok := fenced(text, "```json"); ok {
		return sliceJSON(inner)
	}
	if inner, ok := fenced(text, "```"); ok {
		return sliceJSON(dropFenceLabel(inner))
	}
	return sliceJSON(text)
}

// fenced returns the interior of the first fence opened by marker.
// An unterminated fence yields everything after the marker.
func fenced(text, marker string) (string, bool) {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(marker):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// dropFenceLabel removes a language tag such as "javascript" that sits on the
// fence's opening line.
func dropFenceLabel(inner string) string {
	first, rest, found := strings.Cut(inner, "\n")
	if !found {
		return inner
	}
	first = strings.TrimSpace(first)
	if first != "" && !strings.ContainsAny(first, "{[") {
		return strings.TrimSpace(rest)
	}
	return inner
}

// sliceJSON cuts text down to the outermost object, from the first { to the
// last }. A list is used instead only when there is no object, or when the
// list starts first and is itself valid JSON, as in a bare list of objects.
func sliceJSON(text string) string {
	obj, hasObj := span(text, "{", "}")
	arr, hasArr := span(text, "[", "]")
	switch {
	case !hasObj && !hasArr:
		return text
	case !hasObj:
		return arr
	case hasArr && strings.Index(text, "[") < strings.Index(text, "{") && gjson.Valid(arr):
		return arr
	}
	return obj
}

// span returns text from the first opener to the last closer after it.
func span(text, opener, closer string) (string, bool) {
	start := strings.Index(text, opener)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text[start:], true
	}
	return text[start : end+1], true
}

// Decode extracts JSON from raw and unmarshals it into T.
func Decode[T any](raw string) (T, error) {
	var result T
	text := Extract(raw)
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		var zero T
		return zero, &ParseError{Preview: preview(text), Err: err}
	}
	return result, nil
}

// object parses text as a JSON object and checks that every key in required
// is present at the top level.
func object(text string, required ...string) (gjson.Result, error) {
	if !gjson.Valid(text) {
		return gjson.Result{}, &ParseError{Preview: preview(text), Err: errInvalidJSON}
	}

	root := gjson.Parse(text)
	if !root.IsObject() {
		return gjson.Result{}, &StructureError{Key: "$", Reason: "is not an object"}
	}
	for _, key := range required {
		if !root.Get(gjson.Escape(key)).Exists() {
			return gjson.Result{}, &StructureError{Key: key}
		}
	}
	return root, nil
}

func preview(text string) string {
	if len(text) > previewLen {
		return text[:previewLen] + "..."
	}
	return text
}
