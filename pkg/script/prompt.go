package script

import (
	"fmt"
	"math"
)

// wordsPerSecond is the narration pace the word budget is derived from.
const wordsPerSecond = 2.5

// SystemPrompt builds the generation instructions for a script run. The model
// is told to emit a bare JSON array so the extractor can parse it as it
// arrives.
func SystemPrompt(numScenes int, targetDuration float64) string {
	targetWords := int(math.Round(targetDuration * wordsPerSecond))

	return fmt.Sprintf(`You are a video script generator. Generate exactly %d scenes for a short video.

Each scene should have:
- "script": The narration text (total across all scenes should be around %d words)
- "image_description": A detailed visual description for image generation

Output ONLY a JSON array with no additional text: [{"script": "...", "image_description": "..."}, ...]

Make each scene's script flow naturally into the next. Image descriptions should be vivid and specific, suitable for AI image generation.`, numScenes, targetWords)
}
