package model

// Scene is one narrated segment of the video: the narration script plus a
// visual description used to generate its still image.
type Scene struct {
	ID               string `json:"id"`
	Index            int    `json:"index"`
	Script           string `json:"script"`
	ImageDescription string `json:"image_description"`
	IsEdited         bool   `json:"is_edited"`
}

// AssetType identifies what kind of artifact an asset holds.
type AssetType string

const (
	AssetImage AssetType = "image"
	AssetAudio AssetType = "audio"
)

// AssetStatus is the lifecycle state of a generation unit.
type AssetStatus string

const (
	StatusPending    AssetStatus = "pending"
	StatusGenerating AssetStatus = "generating"
	StatusComplete   AssetStatus = "complete"
	StatusFailed     AssetStatus = "failed"
)

// Asset is one generated artifact (image or audio) belonging to a scene.
// Payload and DisplayRef are set only on completion; Error only on failure.
type Asset struct {
	ID         string      `json:"id"`
	SceneID    string      `json:"scene_id"`
	Type       AssetType   `json:"type"`
	Status     AssetStatus `json:"status"`
	Payload    []byte      `json:"-"`
	DisplayRef string      `json:"display_ref,omitempty"`
	Duration   float64     `json:"duration,omitempty"`
	Error      string      `json:"error,omitempty"`
	RetryCount int         `json:"retry_count"`
}

// WordTiming is the start/end of a single spoken word, in seconds.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AudioTiming is word-level timing for one audio asset, derived once from the
// narration provider's character alignment and immutable afterwards.
type AudioTiming struct {
	AssetID       string       `json:"asset_id"`
	Words         []WordTiming `json:"words"`
	TotalDuration float64      `json:"total_duration"`
}

// Alignment is the character-level timing returned by the narration provider:
// three parallel arrays of character, start time, and end time.
type Alignment struct {
	Characters []string  `json:"characters"`
	StartTimes []float64 `json:"character_start_times_seconds"`
	EndTimes   []float64 `json:"character_end_times_seconds"`
}

// TokenUsage is the prompt/completion token summary reported by a script
// stream once it finishes.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}
