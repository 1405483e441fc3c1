// Package script extracts completed scene records from a growing buffer of
// streamed LLM output. The model is instructed to emit a single JSON array of
// {script, image_description} objects; scenes are emitted as soon as their
// object is structurally complete, without waiting for the array to close.
package script

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"sceneforge/pkg/model"
)

// ErrNoScenes is the terminal error for a stream that never produced a
// single parseable scene.
var ErrNoScenes = errors.New("stream produced no parseable scenes")

// RawScene is one array element as the model emits it.
type RawScene struct {
	Script           string `json:"script"`
	ImageDescription string `json:"image_description"`
}

// Extractor accumulates streamed text and emits newly completed scenes.
// Emission is append-only: a scene, once returned, is never retracted or
// changed by a later parse. Not safe for concurrent use.
type Extractor struct {
	buf     strings.Builder
	emitted int
}

// NewExtractor creates an empty Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Append adds a chunk of streamed text and returns scenes that became
// complete with this chunk. A buffer that does not parse yet yields nothing;
// it is expected to keep growing.
func (e *Extractor) Append(chunk string) []model.Scene {
	e.buf.WriteString(chunk)
	return e.drain()
}

// Finish runs the final parse after the stream ends and returns any last
// scenes. If the stream never yielded a single valid element, the whole
// stream is reported as malformed.
func (e *Extractor) Finish() ([]model.Scene, error) {
	scenes := e.drain()
	if e.emitted == 0 {
		return nil, ErrNoScenes
	}
	return scenes, nil
}

// Emitted returns how many scenes have been returned so far.
func (e *Extractor) Emitted() int {
	return e.emitted
}

func (e *Extractor) drain() []model.Scene {
	parsed := parseBuffer(e.buf.String())
	if len(parsed) <= e.emitted {
		return nil
	}

	var out []model.Scene
	for i, raw := range parsed[e.emitted:] {
		out = append(out, model.Scene{
			ID:               uuid.NewString(),
			Index:            e.emitted + i,
			Script:           raw.Script,
			ImageDescription: raw.ImageDescription,
			IsEdited:         false,
		})
	}
	e.emitted = len(parsed)
	return out
}

// parseBuffer best-effort parses the buffer as a JSON array, truncating at
// the last structurally complete top-level element so a missing closing
// bracket, a trailing partial object, or a dangling comma do not block the
// elements already complete. Any parse failure yields nil, never an error:
// the buffer may self-correct as more tokens arrive.
func parseBuffer(buf string) []RawScene {
	start := strings.IndexByte(buf, '[')
	if start < 0 {
		return nil
	}

	// Scan for the end of the last complete top-level element, respecting
	// strings and escapes.
	depth := 0
	inString := false
	escaped := false
	lastEnd := -1

scan:
	for i := start + 1; i < len(buf); i++ {
		c := buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			if depth == 0 {
				// The array itself closed.
				break scan
			}
			depth--
			if depth == 0 && c == '}' {
				lastEnd = i
			}
		}
	}

	if lastEnd < 0 {
		return nil
	}

	candidate := buf[start:lastEnd+1] + "]"
	var scenes []RawScene
	if err := json.Unmarshal([]byte(candidate), &scenes); err != nil {
		return nil
	}
	return scenes
}
