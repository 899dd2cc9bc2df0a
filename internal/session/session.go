// Package session tracks which study materials each session has uploaded.
// The registry is in-memory only: sessions are scoped to a server run, while
// the indices themselves live on disk and survive restarts.
package session

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when a session has no entry for the requested
// material.
var ErrNotFound = errors.New("material not found in session")

// Material is one indexed source registered to a session.
type Material struct {
	SourceType    string    `json:"source_type"`
	SourceID      string    `json:"source_id"`
	ChunkCount    int       `json:"chunk_count"`
	EmbeddedCount int       `json:"embedded_count"`
	AddedAt       time.Time `json:"added_at"`
}

// Registry maps session ids to their uploaded materials.
type Registry interface {
	// Register adds a material to a session. Re-registering the same
	// (source type, source id) replaces the previous entry in place, so a
	// re-upload keeps its original position in the list.
	Register(sessionID string, m Material)

	// List returns a session's materials in insertion order. Unknown
	// sessions yield an empty list.
	List(sessionID string) []Material

	// Resolve looks up one material by source type and id.
	Resolve(sessionID, sourceType, sourceID string) (Material, error)
}

type memoryRegistry struct {
	mu       sync.RWMutex
	sessions map[string][]Material
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() Registry {
	return &memoryRegistry{sessions: make(map[string][]Material)}
}

var _ Registry = (*memoryRegistry)(nil)

func (r *memoryRegistry) Register(sessionID string, m Material) {
	r.mu.Lock()
	defer r.mu.Unlock()

	materials := r.sessions[sessionID]
	for i, existing := range materials {
		if existing.SourceType == m.SourceType && existing.SourceID == m.SourceID {
			materials[i] = m
			return
		}
	}
	r.sessions[sessionID] = append(materials, m)
}

func (r *memoryRegistry) List(sessionID string) []Material {
	r.mu.RLock()
	defer r.mu.RUnlock()

	materials := r.sessions[sessionID]
	out := make([]Material, len(materials))
	copy(out, materials)
	return out
}

func (r *memoryRegistry) Resolve(sessionID, sourceType, sourceID string) (Material, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.sessions[sessionID] {
		if m.SourceType == sourceType && m.SourceID == sourceID {
			return m, nil
		}
	}
	return Material{}, ErrNotFound
}
