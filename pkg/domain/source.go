package domain

// SourceKind identifies where the text for a podcast came from.
type SourceKind string

const (
	TextSource SourceKind = "text"
	URLSource  SourceKind = "url"
	FileSource SourceKind = "file"
	FeedSource SourceKind = "feed"
)

// Source is the material a script is generated from.
type Source struct {
	Kind  SourceKind
	Title string
	Text  string
	URL   string
}
