// Package timing converts character-level narration alignment into
// word-level timing records.
package timing

import (
	"fmt"
	"strings"

	"sceneforge/pkg/model"
)

// Convert maps per-character start/end timestamps to word timings.
//
// A space (or end of input) closes the current word. A word starts at its
// first character's start time and ends at its last character's end time.
// Whitespace-only words are dropped. The result is deterministic for a given
// alignment.
func Convert(assetID string, a model.Alignment) (model.AudioTiming, error) {
	n := len(a.Characters)
	if len(a.StartTimes) != n || len(a.EndTimes) != n {
		return model.AudioTiming{}, fmt.Errorf("alignment arrays length mismatch: %d chars, %d starts, %d ends",
			n, len(a.StartTimes), len(a.EndTimes))
	}

	var words []model.WordTiming
	var current strings.Builder
	var wordStart, wordEnd float64

	for i := 0; i < n; i++ {
		ch := a.Characters[i]
		last := i == n-1

		if ch == " " || last {
			if last && ch != " " {
				if current.Len() == 0 {
					wordStart = a.StartTimes[i]
				}
				current.WriteString(ch)
				wordEnd = a.EndTimes[i]
			}

			if w := strings.TrimSpace(current.String()); w != "" {
				words = append(words, model.WordTiming{Word: w, Start: wordStart, End: wordEnd})
			}
			current.Reset()
			continue
		}

		if current.Len() == 0 {
			wordStart = a.StartTimes[i]
		}
		current.WriteString(ch)
		wordEnd = a.EndTimes[i]
	}

	t := model.AudioTiming{AssetID: assetID, Words: words}
	if len(words) > 0 {
		t.TotalDuration = words[len(words)-1].End
	}
	return t, nil
}
