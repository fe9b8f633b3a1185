// Package rag implements the session-scoped Retrieval-Augmented
// Generation index over the rules/context corpus.
//
// # Overview
//
// The engine turns the set of rule/context documents visible to a chat
// session into a searchable semantic index and keeps that index
// consistent with the underlying rows:
//
//   - Corpus gathering via a RuleSource (the rules.Store in production)
//   - Paragraph chunking with per-chunk metadata
//   - Batch embedding through a Genkit ai.Embedder
//   - Exact inner-product search over L2-normalized vectors
//     (equivalent to cosine-similarity ranking)
//   - A content-hash-addressed disk cache so an unchanged corpus is
//     never re-embedded, across rebuilds and process restarts
//
// # Rebuild model
//
// Rebuilds are all-or-nothing: a new snapshot (chunks, metadata,
// embeddings, index) is assembled off to the side and swapped in under
// the engine lock. Readers always observe a complete snapshot. At most
// one rebuild runs at a time; a concurrent Rebuild call returns false
// immediately instead of queuing.
//
// # Session scoping
//
// SetSession switches the corpus scope. The previous index keeps serving
// retrievals until the next rebuild completes, so a session switch never
// makes retrieval return nothing while the new index is built.
//
// # Thread safety
//
// Engine is safe for concurrent use by multiple goroutines.
package rag
