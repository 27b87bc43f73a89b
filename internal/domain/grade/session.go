package grade

import (
	"context"
	"fmt"
	"strings"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// Stream names one of the two session-marker kinds.
type Stream string

const (
	StreamWritten Stream = "written"
	StreamProject Stream = "project"
)

// IsValid reports whether the stream is known.
func (s Stream) IsValid() bool {
	return s == StreamWritten || s == StreamProject
}

// Session carries the current appeal markers for both streams.
// It is passed explicitly to every merge and verdict call.
type Session struct {
	Written string `json:"written"`
	Project string `json:"project"`
}

// Key returns the marker for the given stream.
func (s Session) Key(stream Stream) string {
	if stream == StreamWritten {
		return s.Written
	}
	return s.Project
}

// With returns a copy with the stream's marker replaced.
func (s Session) With(stream Stream, key string) Session {
	if stream == StreamWritten {
		s.Written = key
	} else {
		s.Project = key
	}
	return s
}

// MarkerRepository persists the current session markers between runs.
type MarkerRepository interface {
	// CurrentSession returns both markers; unset markers are empty strings.
	CurrentSession(ctx context.Context) (Session, error)

	// SetMarker records key as the current session of stream.
	SetMarker(ctx context.Context, stream Stream, key string) error
}

// Normalizer turns a raw session cell into a canonical session key.
type Normalizer func(raw string) (string, error)

// Tag derives the single session key shared by every row of a batch.
// Empty batches, missing cells, unparseable values and rows that disagree
// are all MalformedBatch.
func Tag(stream Stream, rows []Payload, column string, normalize Normalizer) (string, error) {
	if !stream.IsValid() {
		return "", shared.Malformed("Tag", "unknown stream %q", stream)
	}
	if len(rows) == 0 {
		return "", shared.Malformed("Tag", "%s batch is empty", stream)
	}
	if normalize == nil {
		normalize = func(raw string) (string, error) { return strings.TrimSpace(raw), nil }
	}

	key := ""
	for i, row := range rows {
		raw, ok := row[column]
		if !ok || strings.TrimSpace(raw) == "" {
			return "", shared.Malformed("Tag", "%s row %d: missing session column %q", stream, i+1, column)
		}
		k, err := normalize(raw)
		if err != nil {
			return "", shared.WrapError("batch", "Tag", shared.ErrMalformedBatch,
				fmt.Sprintf("%s row %d: unparseable session key %q", stream, i+1, raw), err)
		}
		if k == "" {
			return "", shared.Malformed("Tag", "%s row %d: empty session key", stream, i+1)
		}
		if key != "" && k != key {
			return "", shared.Malformed("Tag", "%s rows disagree on session: %q vs %q", stream, key, k)
		}
		key = k
	}
	return key, nil
}

// Override validates an operator-supplied session key.
func Override(stream Stream, key string) (string, error) {
	key = strings.TrimSpace(key)
	if !stream.IsValid() {
		return "", shared.Malformed("Tag", "unknown stream %q", stream)
	}
	if key == "" {
		return "", shared.Malformed("Tag", "%s session override is empty", stream)
	}
	return key, nil
}
