// Package index builds, persists, and searches per-material vector
// indices. Each ingested source gets its own immutable SQLite file holding
// the chunk texts and their embeddings; search is brute-force cosine
// similarity, which is ample at per-material scale (tens to hundreds of
// chunks).
package index

import (
	"container/heap"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// ErrCreation is returned when an index could not be built, e.g. every
	// chunk failed to embed.
	ErrCreation = errors.New("index creation failed")

	// ErrNotFound is returned when no persisted index exists for the
	// requested (source type, source id).
	ErrNotFound = errors.New("index not found")
)

// Record is one embedded chunk stored in an index.
type Record struct {
	ID        string
	Ordinal   int
	TextChunk string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with a similarity score attached. Higher is
// more similar (cosine, range [-1, 1]).
type ScoredRecord struct {
	Record
	Score float32
}

// Meta describes how an index was built. EmbeddedCount < ChunkCount marks
// a degraded-but-usable index where some chunks failed to embed.
type Meta struct {
	SourceType    string
	SourceID      string
	ChunkCount    int
	EmbeddedCount int
	CreatedAt     time.Time
}

// EmbeddedFraction reports the share of chunks that made it into the index.
func (m Meta) EmbeddedFraction() float64 {
	if m.ChunkCount == 0 {
		return 0
	}
	return float64(m.EmbeddedCount) / float64(m.ChunkCount)
}

// Index is an opened per-material vector index. Immutable after creation.
type Index struct {
	db   *sql.DB
	meta Meta
}

// Meta returns the index build metadata.
func (ix *Index) Meta() Meta {
	return ix.meta
}

// Close releases the underlying database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Search returns the topK records most similar to the query vector,
// ordered by descending cosine similarity.
func (ix *Index) Search(vector []float32, topK int) ([]ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	queryNorm := norm(vector)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := ix.db.Query(`SELECT id, ordinal, text_chunk, embedding, created_at FROM chunk_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &scoredHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var r Record
		var blob []byte
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Ordinal, &r.TextChunk, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", r.ID, err)
		}
		score := cosine(vector, buf, queryNorm)

		if h.Len() < topK {
			r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			heap.Push(h, ScoredRecord{Record: r, Score: score})
		} else if score > (*h)[0].Score {
			r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			(*h)[0] = ScoredRecord{Record: r, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	// Pop ascending, fill the result back-to-front for descending order.
	results := make([]ScoredRecord, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(ScoredRecord)
	}
	return results, nil
}

// Count returns the number of embedded chunks in the index.
func (ix *Index) Count() (int, error) {
	var count int
	err := ix.db.QueryRow(`SELECT COUNT(*) FROM chunk_vectors`).Scan(&count)
	return count, err
}

func readMeta(db *sql.DB) (Meta, error) {
	rows, err := db.Query(`SELECT key, value FROM index_meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("querying meta: %w", err)
	}
	defer rows.Close()

	var m Meta
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, fmt.Errorf("scanning meta: %w", err)
		}
		switch k {
		case "source_type":
			m.SourceType = v
		case "source_id":
			m.SourceID = v
		case "chunk_count":
			m.ChunkCount, _ = strconv.Atoi(v)
		case "embedded_count":
			m.EmbeddedCount, _ = strconv.Atoi(v)
		case "created_at":
			m.CreatedAt, _ = time.Parse(time.RFC3339, v)
		}
	}
	return m, rows.Err()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it across rows. Length not divisible by 4 indicates corruption.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * |b|). aNorm is precomputed.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// scoredHeap is a min-heap of ScoredRecord ordered by Score, used to track
// the top-K candidates during a scan.
type scoredHeap []ScoredRecord

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x interface{}) { *h = append(*h, x.(ScoredRecord)) }
func (h *scoredHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
