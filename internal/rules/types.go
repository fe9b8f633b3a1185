package rules

import "time"

// Source tags for rule/context documents. They record how a document
// entered the corpus and drive the initial-override policy in ListActive.
const (
	// SourceFile is content extracted from an uploaded or bundled file.
	SourceFile = "file"

	// SourceText is pasted free-form text.
	SourceText = "text"

	// SourceURL is content fetched from a URL.
	SourceURL = "url"

	// SourceInitial is the seeded default ruleset shipped with the app.
	// Initial rows are suppressed as soon as any user-supplied row is
	// visible in the same scope.
	SourceInitial = "initial"

	// SourceNone marks the sentinel placeholder used when the corpus is
	// empty. It never appears in the database.
	SourceNone = "none"
)

// Document is one rule/context document visible to a session.
// ID 0 means the document does not come from the database (fallback file
// or sentinel). SessionID "" means global, shared across sessions.
type Document struct {
	ID        int64
	Source    string
	Filename  string
	Content   string
	SessionID string
	CreatedAt time.Time
}
