package rag

import (
	"strings"

	"github.com/GengGao/hackathon-agent/internal/rules"
)

// SentinelChunk is indexed when the corpus is empty so the vector index
// is never built over zero rows.
const SentinelChunk = "No rules/context available."

// ChunkMeta describes the origin of one retrievable chunk. It is aligned
// positionally with the chunk and embedding slices of a snapshot.
type ChunkMeta struct {
	RuleID   int64  `json:"rule_id"`
	Source   string `json:"source"`
	Filename string `json:"filename,omitempty"`
	Length   int    `json:"length"`
}

// chunkCorpus splits every document into paragraph chunks and attaches
// per-chunk metadata, preserving document order and paragraph order
// within each document.
//
// A document whose content yields no paragraphs contributes its whole
// trimmed content as a single chunk; documents that are pure whitespace
// contribute nothing. An overall-empty corpus yields the sentinel chunk.
func chunkCorpus(docs []rules.Document) ([]string, []ChunkMeta) {
	var chunks []string
	var metas []ChunkMeta

	for _, doc := range docs {
		for _, c := range splitParagraphs(doc.Content) {
			chunks = append(chunks, c)
			metas = append(metas, ChunkMeta{
				RuleID:   doc.ID,
				Source:   doc.Source,
				Filename: doc.Filename,
				Length:   len(c),
			})
		}
	}

	if len(chunks) == 0 {
		chunks = []string{SentinelChunk}
		metas = []ChunkMeta{{Source: rules.SourceNone}}
	}
	return chunks, metas
}

// splitParagraphs splits content on blank-line boundaries, trimming
// whitespace and dropping empty pieces. Content with no blank lines
// becomes a single chunk.
func splitParagraphs(content string) []string {
	var out []string
	for _, part := range strings.Split(content, "\n\n") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if out == nil {
		if p := strings.TrimSpace(content); p != "" {
			out = []string{p}
		}
	}
	return out
}
