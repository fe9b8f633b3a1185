package rag

import (
	"reflect"
	"testing"

	"github.com/GengGao/hackathon-agent/internal/rules"
)

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "blank line separated",
			content: "First rule.\n\nSecond rule.\n\nThird rule.",
			want:    []string{"First rule.", "Second rule.", "Third rule."},
		},
		{
			name:    "trims surrounding whitespace",
			content: "  padded  \n\n\ttabbed\t",
			want:    []string{"padded", "tabbed"},
		},
		{
			name:    "consecutive blank lines collapse",
			content: "one\n\n\n\ntwo",
			want:    []string{"one", "two"},
		},
		{
			name:    "no blank lines is a single chunk",
			content: "line one\nline two\nline three",
			want:    []string{"line one\nline two\nline three"},
		},
		{
			name:    "whitespace only yields nothing",
			content: "  \n\n\t\n  ",
			want:    nil,
		},
		{
			name:    "empty yields nothing",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitParagraphs(tt.content)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitParagraphs(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}

func TestChunkCorpus_OrderAndMetadata(t *testing.T) {
	docs := []rules.Document{
		{ID: 1, Source: rules.SourceFile, Filename: "rules.txt", Content: "Alpha rule.\n\nBeta rule."},
		{ID: 2, Source: rules.SourceText, Content: "Gamma rule."},
	}

	chunks, metas := chunkCorpus(docs)

	wantChunks := []string{"Alpha rule.", "Beta rule.", "Gamma rule."}
	if !reflect.DeepEqual(chunks, wantChunks) {
		t.Fatalf("chunks = %v, want %v", chunks, wantChunks)
	}
	if len(metas) != len(chunks) {
		t.Fatalf("got %d metas for %d chunks", len(metas), len(chunks))
	}

	for i, m := range metas {
		if m.Length != len(chunks[i]) {
			t.Errorf("meta[%d].Length = %d, want %d", i, m.Length, len(chunks[i]))
		}
	}
	if metas[0].RuleID != 1 || metas[0].Filename != "rules.txt" {
		t.Errorf("meta[0] = %+v, want rule 1 from rules.txt", metas[0])
	}
	if metas[1].RuleID != 1 {
		t.Errorf("meta[1].RuleID = %d, want 1", metas[1].RuleID)
	}
	if metas[2].RuleID != 2 || metas[2].Source != rules.SourceText {
		t.Errorf("meta[2] = %+v, want rule 2 source %q", metas[2], rules.SourceText)
	}
}

func TestChunkCorpus_EmptyCorpusSentinel(t *testing.T) {
	tests := []struct {
		name string
		docs []rules.Document
	}{
		{name: "nil corpus", docs: nil},
		{name: "whitespace only content", docs: []rules.Document{
			{ID: 7, Source: rules.SourceText, Content: "   \n\n  "},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, metas := chunkCorpus(tt.docs)
			if len(chunks) != 1 || chunks[0] != SentinelChunk {
				t.Fatalf("chunks = %v, want single sentinel", chunks)
			}
			if len(metas) != 1 || metas[0].Source != rules.SourceNone {
				t.Fatalf("metas = %+v, want single %q meta", metas, rules.SourceNone)
			}
			if metas[0].RuleID != 0 {
				t.Errorf("sentinel RuleID = %d, want 0", metas[0].RuleID)
			}
		})
	}
}
