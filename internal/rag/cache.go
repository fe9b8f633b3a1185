package rag

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Cache artifact names inside each per-hash directory.
const (
	cacheChunksFile     = "chunks.json"
	cacheMetaFile       = "meta.json"
	cacheEmbeddingsFile = "embeddings.bin"
	cacheLockFile       = ".lock"
)

// cacheEntry is the portable source of truth persisted per corpus hash:
// the chunk list, its metadata, and the raw embedding matrix. The vector
// index itself is never serialized; it is rebuilt from the vectors on
// every load.
type cacheEntry struct {
	chunks  []string
	metas   []ChunkMeta
	vectors [][]float32
}

// diskCache stores cacheEntry values in content-hash-addressed
// directories so identical corpora are never re-embedded, including
// across process restarts. Entries are never evicted; operators prune
// the directory externally.
//
// All failures are reported as a miss (load) or logged and dropped
// (save). The cache can only ever cost a re-embed, never a failure.
type diskCache struct {
	root   string
	logger *slog.Logger
}

func newDiskCache(root string, logger *slog.Logger) *diskCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &diskCache{root: root, logger: logger}
}

// load reads the entry for hash. ok is false on any missing, corrupt, or
// inconsistent artifact.
func (c *diskCache) load(hash string) (cacheEntry, bool) {
	dir := filepath.Join(c.root, hash)

	var entry cacheEntry
	if err := readJSON(filepath.Join(dir, cacheChunksFile), &entry.chunks); err != nil {
		return cacheEntry{}, false
	}
	if err := readJSON(filepath.Join(dir, cacheMetaFile), &entry.metas); err != nil {
		c.logger.Debug("cache metadata unreadable", "hash", hash, "error", err)
		return cacheEntry{}, false
	}

	n := len(entry.chunks)
	if n == 0 || len(entry.metas) != n {
		c.logger.Debug("cache entry lengths disagree",
			"hash", hash, "chunks", n, "metas", len(entry.metas))
		return cacheEntry{}, false
	}

	vectors, err := readEmbeddings(filepath.Join(dir, cacheEmbeddingsFile), n)
	if err != nil {
		c.logger.Debug("cache embeddings unreadable", "hash", hash, "error", err)
		return cacheEntry{}, false
	}
	entry.vectors = vectors
	return entry, true
}

// save persists the entry under hash, best-effort. A temp directory is
// renamed into place so readers never observe a partial entry, and a
// file lock keeps concurrent processes from racing on the same hash.
func (c *diskCache) save(hash string, entry cacheEntry) {
	if err := c.trySave(hash, entry); err != nil {
		c.logger.Warn("embedding cache write skipped", "hash", hash, "error", err)
	}
}

func (c *diskCache) trySave(hash string, entry cacheEntry) error {
	if len(entry.chunks) == 0 ||
		len(entry.chunks) != len(entry.metas) ||
		len(entry.chunks) != len(entry.vectors) {
		return fmt.Errorf("refusing to cache misaligned entry (%d chunks, %d metas, %d vectors)",
			len(entry.chunks), len(entry.metas), len(entry.vectors))
	}

	if err := os.MkdirAll(c.root, 0o750); err != nil {
		return fmt.Errorf("creating cache root: %w", err)
	}

	lock := flock.New(filepath.Join(c.root, cacheLockFile))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		return fmt.Errorf("cache lock unavailable: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	final := filepath.Join(c.root, hash)
	if _, err := os.Stat(final); err == nil {
		// Same hash means same content; nothing to do.
		return nil
	}

	tmp, err := os.MkdirTemp(c.root, "tmp-"+hash[:8]+"-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(tmp)
	}()

	if err := writeJSON(filepath.Join(tmp, cacheChunksFile), entry.chunks); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(tmp, cacheMetaFile), entry.metas); err != nil {
		return err
	}
	if err := writeEmbeddings(filepath.Join(tmp, cacheEmbeddingsFile), entry.vectors); err != nil {
		return err
	}

	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("installing cache entry: %w", err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readEmbeddings reads a raw little-endian float32 matrix and reshapes
// it into n rows. The dimension is derived from the file size, which
// must divide evenly.
func readEmbeddings(path string, n int) ([][]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("embedding file has %d bytes, not a float32 array", len(data))
	}
	total := len(data) / 4
	if total%n != 0 {
		return nil, fmt.Errorf("%d floats do not divide into %d rows", total, n)
	}
	dim := total / n

	vectors := make([][]float32, n)
	off := 0
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			bits := binary.LittleEndian.Uint32(data[off:])
			row[j] = math.Float32frombits(bits)
			off += 4
		}
		vectors[i] = row
	}
	return vectors, nil
}

func writeEmbeddings(path string, vectors [][]float32) error {
	var size int
	for _, row := range vectors {
		size += 4 * len(row)
	}
	buf := make([]byte, 0, size)
	for _, row := range vectors {
		for _, x := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(x))
		}
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("writing embeddings: %w", err)
	}
	return nil
}
