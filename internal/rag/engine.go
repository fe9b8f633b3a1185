package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/GengGao/hackathon-agent/internal/rules"
)

// DefaultTopK is the retrieval depth used when a caller passes k <= 0.
const DefaultTopK = 5

// RuleSource gathers the ordered corpus visible to a session.
// rules.Store satisfies this interface; tests supply fakes.
type RuleSource interface {
	ListActive(ctx context.Context, sessionID string) ([]rules.Document, error)
}

// Config tunes an Engine.
type Config struct {
	// TopK is the default number of results per retrieval.
	TopK int

	// SimilarityCutoff drops results scoring below it. 0 keeps everything
	// with non-negative similarity semantics disabled (no filtering).
	SimilarityCutoff float32

	// CacheDir is the embedding cache root. Empty disables the cache.
	CacheDir string
}

// Match is one retrieval result.
type Match struct {
	Text  string    `json:"text"`
	Score float32   `json:"score"`
	Meta  ChunkMeta `json:"meta"`
}

// Status reports index readiness for polling endpoints.
type Status struct {
	Ready       bool      `json:"ready"`
	Building    bool      `json:"building"`
	Chunks      int       `json:"chunks"`
	LastBuiltAt time.Time `json:"last_built_at,omitzero"`
	RulesHash   string    `json:"rules_hash,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
}

// snapshot is one atomically-replaced index generation. Its slices are
// positionally aligned: metas[i] and vectors[i] describe chunks[i].
// A snapshot is immutable once installed.
type snapshot struct {
	chunks  []string
	metas   []ChunkMeta
	vectors [][]float32
	index   *vectorIndex
	builtAt time.Time
}

// Engine owns the session-scoped semantic index over the rules corpus.
//
// One Engine instance is shared process-wide; the composing application
// constructs it at startup and hands it to request handlers. All state
// transitions happen under a single mutex, but the expensive work
// (gathering, embedding, index construction) runs outside it so
// retrievals against the previous snapshot are never blocked by a
// rebuild in progress.
type Engine struct {
	source   RuleSource
	embedder ai.Embedder
	cache    *diskCache
	topK     int
	cutoff   float32
	logger   *slog.Logger

	mu       sync.Mutex
	building bool
	session  string
	hash     string // "" = unknown; forces the next EnsureIndex to rebuild
	snap     *snapshot
}

// New creates an Engine. logger may be nil.
func New(source RuleSource, embedder ai.Embedder, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	e := &Engine{
		source:   source,
		embedder: embedder,
		topK:     topK,
		cutoff:   cfg.SimilarityCutoff,
		logger:   logger,
	}
	if cfg.CacheDir != "" {
		e.cache = newDiskCache(cfg.CacheDir, logger)
	}
	return e
}

// SetSession switches the corpus scope. A changed session invalidates
// the recorded corpus hash so the next EnsureIndex rebuilds, but the
// current snapshot keeps serving retrievals until that rebuild lands.
// Unchanged session ids are a no-op.
func (e *Engine) SetSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSessionLocked(sessionID)
}

func (e *Engine) setSessionLocked(sessionID string) {
	if sessionID == e.session {
		return
	}
	e.session = sessionID
	e.hash = ""
}

// EnsureIndex lazily builds the index for the current session. It is a
// no-op once a build has recorded a corpus hash for this scope.
func (e *Engine) EnsureIndex(ctx context.Context) error {
	e.mu.Lock()
	needed := e.hash == ""
	e.mu.Unlock()

	if !needed {
		return nil
	}
	_, err := e.Rebuild(ctx, false)
	return err
}

// Rebuild refreshes the index from the current corpus and reports
// whether an actual rebuild occurred.
//
// A rebuild already in progress makes this call return false
// immediately. Without force, an unchanged corpus hash with a live index
// is a no-op. Cache hits skip re-embedding; force always re-embeds.
// Embedding and index-construction errors propagate; the previous
// snapshot stays installed and the building flag is always cleared.
func (e *Engine) Rebuild(ctx context.Context, force bool) (bool, error) {
	e.mu.Lock()
	if e.building {
		e.mu.Unlock()
		return false, nil
	}
	e.building = true
	session := e.session
	prevHash := e.hash
	hasIndex := e.snap != nil
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.building = false
		e.mu.Unlock()
	}()

	docs, err := e.source.ListActive(ctx, session)
	if err != nil {
		// Degrade to an empty corpus; the sentinel chunk keeps the
		// index buildable.
		e.logger.Warn("gathering corpus failed", "session_id", session, "error", err)
		docs = nil
	}

	hash := rules.HashCorpus(docs)
	if !force && hash == prevHash && hasIndex {
		return false, nil
	}

	if !force && e.cache != nil {
		if entry, ok := e.cache.load(hash); ok {
			snap := snapshotFromEntry(entry)
			installed := e.install(session, hash, snap)
			if installed {
				e.logger.Debug("index restored from cache",
					"hash", hash, "chunks", len(snap.chunks))
			}
			return installed, nil
		}
	}

	chunks, metas := chunkCorpus(docs)
	vectors, err := embedTexts(ctx, e.embedder, chunks)
	if err != nil {
		return false, fmt.Errorf("embedding corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return false, fmt.Errorf("embedding count %d does not match %d chunks",
			len(vectors), len(chunks))
	}
	for i := range vectors {
		normalize(vectors[i])
	}

	snap := &snapshot{
		chunks:  chunks,
		metas:   metas,
		vectors: vectors,
		index:   newVectorIndex(vectors),
		builtAt: time.Now(),
	}

	installed := e.install(session, hash, snap)
	if installed && e.cache != nil {
		e.cache.save(hash, cacheEntry{chunks: chunks, metas: metas, vectors: vectors})
	}
	e.logger.Info("rules index rebuilt",
		"session_id", session, "chunks", len(chunks), "installed", installed)
	return installed, nil
}

// install swaps a snapshot in under the lock. A snapshot built for a
// session the engine has since left is discarded, so a concurrent
// SetSession can never end up served by another session's index.
func (e *Engine) install(session, hash string, snap *snapshot) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != session {
		e.logger.Debug("discarding snapshot for stale session",
			"built_for", session, "current", e.session)
		return false
	}
	e.snap = snap
	e.hash = hash
	return true
}

// snapshotFromEntry reconstructs a snapshot from cached artifacts. The
// cached vectors are re-normalized and the index rebuilt fresh; the
// chunk/metadata/embedding triple is the portable source of truth, never
// a serialized index structure.
func snapshotFromEntry(entry cacheEntry) *snapshot {
	for i := range entry.vectors {
		normalize(entry.vectors[i])
	}
	return &snapshot{
		chunks:  entry.chunks,
		metas:   entry.metas,
		vectors: entry.vectors,
		index:   newVectorIndex(entry.vectors),
		builtAt: time.Now(),
	}
}

// Retrieve returns the top-k chunks ranked by cosine similarity to the
// query. k <= 0 uses the configured default.
//
// Results scoring below the similarity cutoff are dropped. When that
// filtering would empty a non-empty result set, the single best-ranked
// raw result is returned instead. Downstream prompt building
// treats "no chunks" as "no context available", so retrieval never
// returns nothing while chunks exist.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	if err := e.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	snap := e.snap
	cutoff := e.cutoff
	if k <= 0 {
		k = e.topK
	}
	e.mu.Unlock()

	if snap == nil || snap.index.size() == 0 {
		return nil, nil
	}

	vectors, err := embedTexts(ctx, e.embedder, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	q := vectors[0]
	normalize(q)

	idxs, scores := snap.index.search(q, k)
	if len(idxs) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(idxs))
	for i, idx := range idxs {
		if scores[i] < cutoff {
			continue
		}
		matches = append(matches, Match{
			Text:  snap.chunks[idx],
			Score: scores[i],
			Meta:  snap.metas[idx],
		})
	}

	if len(matches) == 0 {
		// Cutoff removed everything; fall back to the best raw result.
		matches = append(matches, Match{
			Text:  snap.chunks[idxs[0]],
			Score: scores[0],
			Meta:  snap.metas[idxs[0]],
		})
	}
	return matches, nil
}

// Status reports readiness of the current index.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// StatusScoped atomically switches to sessionID and reports status, so a
// concurrent request cannot change the session between the two steps.
func (e *Engine) StatusScoped(sessionID string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSessionLocked(sessionID)
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	st := Status{
		Building:  e.building,
		RulesHash: e.hash,
		SessionID: e.session,
	}
	if e.snap != nil {
		st.Chunks = len(e.snap.chunks)
		st.LastBuiltAt = e.snap.builtAt
	}
	// Half-initialized state must report not-ready: every piece of the
	// snapshot and the recorded hash have to be present simultaneously.
	st.Ready = e.snap != nil &&
		e.hash != "" &&
		len(e.snap.chunks) > 0 &&
		len(e.snap.vectors) > 0
	return st
}

// ChunkCount returns the number of chunks in the current snapshot.
func (e *Engine) ChunkCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return 0
	}
	return len(e.snap.chunks)
}
