package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studymate/internal/chunker"
	"studymate/internal/llm"
)

// DefaultConcurrency bounds how many chunks are embedded in parallel.
const DefaultConcurrency = 4

// Builder turns chunked material text into a persisted vector index.
type Builder struct {
	store       *Store
	engine      llm.Engine
	model       string
	concurrency int
	logger      *slog.Logger
}

// NewBuilder creates a builder that embeds with the given engine and model
// and persists through store.
func NewBuilder(store *Store, engine llm.Engine, model string, logger *slog.Logger) *Builder {
	return &Builder{
		store:       store,
		engine:      engine,
		model:       model,
		concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// Build embeds the chunks and writes a fresh index for the material,
// replacing any previous one. Chunks whose embedding fails are skipped and
// the shortfall is recorded in the index metadata; the build only fails
// with ErrCreation when no chunk embeds at all.
func (b *Builder) Build(ctx context.Context, sourceType, sourceID, transcript string, chunks []chunker.Chunk) (*Index, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks to index for %s/%s", ErrCreation, sourceType, sourceID)
	}

	embeddings := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for i, ch := range chunks {
		g.Go(func() error {
			vec, err := b.engine.Embed(gctx, b.model, ch.Text)
			if err != nil {
				// A failed chunk degrades the index instead of sinking the
				// whole build. Context cancellation still aborts everything.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				b.logger.Warn("embedding chunk failed",
					"source_type", sourceType,
					"source_id", sourceID,
					"ordinal", ch.Ordinal,
					"error", err)
				return nil
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embedding chunks for %s/%s: %w", sourceType, sourceID, err)
	}

	now := time.Now().UTC()
	records := make([]Record, 0, len(chunks))
	for i, ch := range chunks {
		if embeddings[i] == nil {
			continue
		}
		records = append(records, Record{
			ID:        uuid.NewString(),
			Ordinal:   ch.Ordinal,
			TextChunk: ch.Text,
			Embedding: embeddings[i],
			CreatedAt: now,
		})
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: all %d chunks failed to embed for %s/%s", ErrCreation, len(chunks), sourceType, sourceID)
	}

	meta := Meta{
		SourceType:    sourceType,
		SourceID:      sourceID,
		ChunkCount:    len(chunks),
		EmbeddedCount: len(records),
		CreatedAt:     now,
	}
	if meta.EmbeddedCount < meta.ChunkCount {
		b.logger.Warn("index built with partial coverage",
			"source_type", sourceType,
			"source_id", sourceID,
			"embedded", meta.EmbeddedCount,
			"total", meta.ChunkCount)
	}

	db, err := b.store.create(sourceType, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: preparing storage for %s/%s: %v", ErrCreation, sourceType, sourceID, err)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: beginning transaction: %v", ErrCreation, err)
	}
	for _, r := range records {
		if _, err := tx.Exec(
			`INSERT INTO chunk_vectors (id, ordinal, text_chunk, embedding, created_at) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Ordinal, r.TextChunk, encodeFloat32s(r.Embedding), r.CreatedAt.Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("%w: inserting chunk %d: %v", ErrCreation, r.Ordinal, err)
		}
	}
	for k, v := range map[string]string{
		"source_type":    meta.SourceType,
		"source_id":      meta.SourceID,
		"chunk_count":    fmt.Sprint(meta.ChunkCount),
		"embedded_count": fmt.Sprint(meta.EmbeddedCount),
		"created_at":     meta.CreatedAt.Format(time.RFC3339),
	} {
		if _, err := tx.Exec(`INSERT INTO index_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("%w: writing meta %s: %v", ErrCreation, k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: committing index: %v", ErrCreation, err)
	}

	if err := b.store.WriteTranscript(sourceType, sourceID, transcript); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCreation, err)
	}

	b.logger.Info("index built",
		"source_type", sourceType,
		"source_id", sourceID,
		"chunks", meta.ChunkCount,
		"embedded", meta.EmbeddedCount)
	return &Index{db: db, meta: meta}, nil
}
