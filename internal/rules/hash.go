package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashCorpus computes a stable fingerprint over an ordered corpus.
// Two corpora with identical (id, source, filename, content) tuples in
// identical order hash identically; any content change, reordering, or
// row addition/removal changes the digest. The RAG engine uses it both
// as the rebuild-needed check and as the disk-cache key.
func HashCorpus(docs []Document) string {
	h := sha256.New()
	for _, d := range docs {
		fmt.Fprintf(h, "%d|%s|%s|%s\n", d.ID, d.Source, d.Filename, d.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}
