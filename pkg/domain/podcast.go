package domain

import "time"

// Podcast is the record that owns a generated script and its merged audio.
type Podcast struct {
	ID    string `bson:"id" json:"id"`
	Title string `bson:"title" json:"title"`

	// SourceURL is the article, feed item or file the script was generated from, when available.
	SourceURL string `bson:"source_url,omitempty" json:"source_url,omitempty"`

	// SourceText is the plain text handed to the script generator.
	SourceText string `bson:"source_text,omitempty" json:"source_text,omitempty"`

	Dialogues []DialogueLine `bson:"dialogues" json:"dialogues"`

	// AudioURL points at the merged audio asset. It is overwritten on every successful merge.
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
