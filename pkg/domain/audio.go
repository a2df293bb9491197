package domain

// AudioSegment references one synthesized clip for exactly one DialogueLine.
type AudioSegment struct {
	// Locator is the opaque object storage key of the clip.
	Locator string `json:"locator"`

	// DurationHint is advisory only, in seconds.
	DurationHint float64 `json:"duration_hint,omitempty"`
}

// MergedAudioAsset is the single playable object produced by concatenating segments.
type MergedAudioAsset struct {
	StorageKey string `json:"storage_key"`
	PublicURL  string `json:"public_url"`
}
