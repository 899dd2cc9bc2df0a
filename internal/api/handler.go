// Package api exposes the study-material pipeline over HTTP and MCP.
// Sessions are cookie-scoped: every route runs behind WithSession and all
// material state is keyed by the session id it carries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studymate/internal/answer"
	"studymate/internal/extract"
	"studymate/internal/index"
	"studymate/internal/session"
)

const maxUploadBodySize = 60 << 20 // 60MB, fits the 50MB document cap plus multipart overhead
const maxJSONBodySize = 1 << 20    // 1MB

// Ingester runs the upload pipeline for one source.
type Ingester interface {
	Ingest(ctx context.Context, sessionID string, src extract.Source) (session.Material, error)
}

// Answerer serves grounded answers and study-aid generation.
type Answerer interface {
	Ask(ctx context.Context, sessionID, question string) (answer.Answer, error)
	GenerateMCQs(ctx context.Context, sessionID, topic, difficulty string, count int) ([]answer.MCQ, error)
	GenerateFlashcards(ctx context.Context, sessionID, topic string, count int) ([]answer.Flashcard, error)
}

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Ingest   Ingester
	Answer   Answerer
	Registry session.Registry
	Store    *index.Store
	Token    string // optional; empty disables bearer auth
	Logger   *slog.Logger
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Use(WithSession)

		r.Post("/upload", handleUpload(deps))
		r.Post("/query", handleQuery(deps))
		r.Post("/generate/mcq", handleGenerateMCQ(deps))
		r.Post("/generate/flashcards", handleGenerateFlashcards(deps))
		r.Get("/materials", handleListMaterials(deps))
		r.Get("/transcript/{type}/{id}", handleGetTranscript(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		src, err := uploadSource(r)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		m, err := deps.Ingest.Ingest(r.Context(), SessionID(r.Context()), src)
		if err != nil {
			writePipelineError(w, deps.Logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m)
	}
}

// uploadSource accepts either a multipart form with a "file" part (and
// optional "youtube_url" field) or a JSON body carrying "youtube_url".
func uploadSource(r *http.Request) (extract.Source, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
			return extract.Source{}, fmt.Errorf("invalid multipart form: %v", err)
		}
		if u := r.FormValue("youtube_url"); u != "" {
			return extract.Source{YouTubeURL: u}, nil
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return extract.Source{}, fmt.Errorf("either file or youtube_url is required")
		}
		return extract.Source{Filename: header.Filename, Content: file}, nil
	}

	var req struct {
		YouTubeURL string `json:"youtube_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return extract.Source{}, fmt.Errorf("invalid request body: %v", err)
	}
	if req.YouTubeURL == "" {
		return extract.Source{}, fmt.Errorf("either file or youtube_url is required")
	}
	return extract.Source{YouTubeURL: req.YouTubeURL}, nil
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
		defer r.Body.Close()

		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Question == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "question is required")
			return
		}

		ans, err := deps.Answer.Ask(r.Context(), SessionID(r.Context()), req.Question)
		if err != nil {
			writePipelineError(w, deps.Logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ans)
	}
}

type generateRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"` // MCQs only
	Count      int    `json:"count"`
}

func decodeGenerateRequest(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	defer r.Body.Close()

	var req generateRequest
	// An empty body means "default count, no topic".
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return generateRequest{}, false
	}
	return req, true
}

func handleGenerateMCQ(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeGenerateRequest(w, r)
		if !ok {
			return
		}

		mcqs, err := deps.Answer.GenerateMCQs(r.Context(), SessionID(r.Context()), req.Topic, req.Difficulty, req.Count)
		if err != nil {
			writePipelineError(w, deps.Logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]answer.MCQ{"questions": mcqs})
	}
}

func handleGenerateFlashcards(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeGenerateRequest(w, r)
		if !ok {
			return
		}

		cards, err := deps.Answer.GenerateFlashcards(r.Context(), SessionID(r.Context()), req.Topic, req.Count)
		if err != nil {
			writePipelineError(w, deps.Logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]answer.Flashcard{"flashcards": cards})
	}
}

func handleListMaterials(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		materials := deps.Registry.List(SessionID(r.Context()))
		if materials == nil {
			materials = []session.Material{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]session.Material{"materials": materials})
	}
}

func handleGetTranscript(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceType, err := extract.ParseSourceType(chi.URLParam(r, "type"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		sourceID := chi.URLParam(r, "id")

		// The transcript must belong to this session's materials.
		if _, err := deps.Registry.Resolve(SessionID(r.Context()), string(sourceType), sourceID); err != nil {
			httpError(w, http.StatusNotFound, "not_found", "material not found")
			return
		}

		text, err := deps.Store.ReadTranscript(string(sourceType), sourceID)
		if errors.Is(err, index.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "transcript not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading transcript: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"source_type": string(sourceType),
			"source_id":   sourceID,
			"transcript":  text,
		})
	}
}

// writePipelineError maps pipeline sentinels onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, extract.ErrUnsupportedFormat):
		httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
	case errors.Is(err, extract.ErrExtraction):
		httpError(w, http.StatusUnprocessableEntity, "extraction_error", "%v", err)
	case errors.Is(err, answer.ErrNoContent):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "upload study materials before querying")
	case errors.Is(err, index.ErrNotFound), errors.Is(err, session.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "%v", err)
	case errors.Is(err, answer.ErrRetrieval):
		httpError(w, http.StatusBadGateway, "retrieval_error", "%v", err)
	case errors.Is(err, index.ErrCreation),
		errors.Is(err, answer.ErrGeneration),
		errors.Is(err, answer.ErrMalformedGeneration):
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	default:
		logger.Error("request failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
