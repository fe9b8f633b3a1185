package rag

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
)

// embedBatchSize caps documents per EmbedRequest. Purely a throughput
// knob for the local Ollama server; correctness does not depend on it.
const embedBatchSize = 32

// embedTexts embeds texts through the provider in batches, returning one
// vector per input in input order. Vectors are returned as the provider
// produced them; callers normalize.
func embedTexts(ctx context.Context, embedder ai.Embedder, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		docs := make([]*ai.Document, len(batch))
		for i, t := range batch {
			docs[i] = ai.DocumentFromText(t, nil)
		}

		resp, err := embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
		if err != nil {
			return nil, fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d inputs",
				len(resp.Embeddings), len(batch))
		}
		for i, emb := range resp.Embeddings {
			if emb == nil || len(emb.Embedding) == 0 {
				return nil, fmt.Errorf("empty embedding for input %d", start+i)
			}
			vectors = append(vectors, emb.Embedding)
		}
	}
	return vectors, nil
}
