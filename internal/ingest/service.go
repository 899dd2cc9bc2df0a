// Package ingest orchestrates the upload path: extract text from a source,
// chunk it, build (or reuse) its vector index, and register the material to
// the uploader's session.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"studymate/internal/chunker"
	"studymate/internal/extract"
	"studymate/internal/index"
	"studymate/internal/session"
)

// Extractor converts an upload into plain text.
type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (extract.Result, error)
}

// IndexBuilder persists an embedded index for chunked material text.
type IndexBuilder interface {
	Build(ctx context.Context, sourceType, sourceID, transcript string, chunks []chunker.Chunk) (*index.Index, error)
}

// Service wires extraction, chunking, and indexing into one upload flow.
type Service struct {
	extractor    Extractor
	builder      IndexBuilder
	store        *index.Store
	registry     session.Registry
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// New creates an ingest service. chunkSize and chunkOverlap <= 0 fall back
// to the chunker defaults.
func New(extractor Extractor, builder IndexBuilder, store *index.Store, registry session.Registry, chunkSize, chunkOverlap int, logger *slog.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = chunker.DefaultSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = chunker.DefaultOverlap
	}
	return &Service{
		extractor:    extractor,
		builder:      builder,
		store:        store,
		registry:     registry,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Ingest runs the full upload flow for one source and returns the material
// as registered to the session.
//
// Identity is derived up front: when an index for the same (type, id)
// already exists on disk, extraction and embedding are skipped entirely and
// the existing index is registered to the session as-is. Same-named uploads
// are treated as the same material.
func (s *Service) Ingest(ctx context.Context, sessionID string, src extract.Source) (session.Material, error) {
	sourceType, sourceID, err := extract.DeriveID(src)
	if err != nil {
		return session.Material{}, err
	}

	if s.store.Exists(string(sourceType), sourceID) {
		existing, err := s.store.Load(string(sourceType), sourceID)
		if err == nil {
			meta := existing.Meta()
			existing.Close()
			s.logger.Info("reusing existing index",
				"source_type", sourceType, "source_id", sourceID)
			return s.register(sessionID, meta), nil
		}
		// Unreadable leftover index: rebuild from scratch.
		s.logger.Warn("existing index unreadable, rebuilding",
			"source_type", sourceType, "source_id", sourceID, "error", err)
	}

	result, err := s.extractor.Extract(ctx, src)
	if err != nil {
		return session.Material{}, err
	}

	chunks, err := chunker.Split(result.Text, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return session.Material{}, fmt.Errorf("chunking %s/%s: %w", sourceType, sourceID, err)
	}

	ix, err := s.builder.Build(ctx, string(result.SourceType), result.SourceID, result.Text, chunks)
	if err != nil {
		return session.Material{}, err
	}
	meta := ix.Meta()
	ix.Close()

	return s.register(sessionID, meta), nil
}

func (s *Service) register(sessionID string, meta index.Meta) session.Material {
	m := session.Material{
		SourceType:    meta.SourceType,
		SourceID:      meta.SourceID,
		ChunkCount:    meta.ChunkCount,
		EmbeddedCount: meta.EmbeddedCount,
		AddedAt:       time.Now().UTC(),
	}
	s.registry.Register(sessionID, m)
	return m
}
