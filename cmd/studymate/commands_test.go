package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	Session     string
	ContentType string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		rec := recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		}
		if c, err := r.Cookie("session_id"); err == nil {
			rec.Session = c.Value
		}
		ts.requests = append(ts.requests, rec)

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		sessionID:  "test-session",
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestUploadCommand_YouTube(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /upload": `{"source_type":"youtube","source_id":"dQw4w9WgXcQ","chunk_count":12,"embedded_count":12,"added_at":"2025-06-01T00:00:00Z"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/upload", map[string]string{"youtube_url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m material
	if err := decodeJSON(resp, &m); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if m.SourceType != "youtube" || m.SourceID != "dQw4w9WgXcQ" {
		t.Errorf("material = %+v", m)
	}
	if m.ChunkCount != 12 {
		t.Errorf("chunk_count = %d, want 12", m.ChunkCount)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}

	r := ts.requests[0]
	if r.Session != "test-session" {
		t.Errorf("session cookie = %q, want test-session", r.Session)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["youtube_url"] != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("body.youtube_url = %q", body["youtube_url"])
	}
}

func TestUploadCommand_File(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /upload": `{"source_type":"document","source_id":"notes.txt","chunk_count":3,"embedded_count":3}`,
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := writeTestFile(path, "mitochondria are the powerhouse of the cell"); err != nil {
		t.Fatal(err)
	}

	client := ts.client()
	resp, err := client.postFile(ctx, "/upload", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m material
	if err := decodeJSON(resp, &m); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if m.SourceID != "notes.txt" {
		t.Errorf("source_id = %q, want notes.txt", m.SourceID)
	}

	r := ts.requests[0]
	if !strings.HasPrefix(r.ContentType, "multipart/form-data") {
		t.Errorf("content type = %q, want multipart/form-data", r.ContentType)
	}
	if !strings.Contains(r.Body, `filename="notes.txt"`) {
		t.Errorf("multipart body missing filename part: %q", r.Body)
	}
	if !strings.Contains(r.Body, "powerhouse of the cell") {
		t.Error("multipart body missing file content")
	}
}

func TestUploadCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"upload"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestQueryCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /query": `{"answer":"The Krebs cycle produces ATP.","sources":[{"source_type":"document","source_id":"bio.pdf","text":"...","score":0.91}]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/query", map[string]string{"question": "what does the Krebs cycle produce?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var ans struct {
		Answer  string `json:"answer"`
		Sources []struct {
			SourceID string  `json:"source_id"`
			Score    float32 `json:"score"`
		} `json:"sources"`
	}
	if err := decodeJSON(resp, &ans); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if ans.Answer != "The Krebs cycle produces ATP." {
		t.Errorf("answer = %q", ans.Answer)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].SourceID != "bio.pdf" {
		t.Errorf("sources = %+v", ans.Sources)
	}

	var body map[string]string
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["question"] != "what does the Krebs cycle produce?" {
		t.Errorf("body.question = %q", body["question"])
	}
}

func TestMCQCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /generate/mcq": `{"questions":[{"question":"What produces ATP?","options":["Krebs cycle","Golgi body","Ribosome","Vacuole"],"answer":"Krebs cycle"}]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/generate/mcq", map[string]any{"topic": "cell biology", "count": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Questions []struct {
			Question string   `json:"question"`
			Options  []string `json:"options"`
			Answer   string   `json:"answer"`
		} `json:"questions"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(result.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(result.Questions))
	}
	q := result.Questions[0]
	if len(q.Options) != 4 {
		t.Errorf("options = %v", q.Options)
	}
	if q.Answer != "Krebs cycle" {
		t.Errorf("answer = %q", q.Answer)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["topic"] != "cell biology" {
		t.Errorf("body.topic = %v", body["topic"])
	}
	if body["count"] != float64(5) {
		t.Errorf("body.count = %v", body["count"])
	}
}

func TestFlashcardsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /generate/flashcards": `{"flashcards":[{"question":"What is ATP?","answer":"The cell's energy currency."}]}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/generate/flashcards", map[string]any{"topic": "", "count": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Flashcards []struct {
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"flashcards"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if len(result.Flashcards) != 1 {
		t.Fatalf("expected 1 flashcard, got %d", len(result.Flashcards))
	}
	if result.Flashcards[0].Answer != "The cell's energy currency." {
		t.Errorf("answer = %q", result.Flashcards[0].Answer)
	}
}

func TestMaterialsCommand_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /materials": `{"materials":[]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/materials")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Materials []material `json:"materials"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(result.Materials) != 0 {
		t.Errorf("expected no materials, got %d", len(result.Materials))
	}
}

func TestTranscriptCommand_PathEscaping(t *testing.T) {
	ts := newTestServer(t, map[string]string{})

	client := ts.client()
	path := fmt.Sprintf("/transcript/%s/%s", url.PathEscape("document"), url.PathEscape("my notes.pdf"))
	resp, err := client.get(ctx, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	reqPath := ts.requests[0].Path
	if strings.Contains(reqPath, " ") {
		t.Errorf("path not escaped: %q", reqPath)
	}
	if !strings.Contains(reqPath, "my%20notes.pdf") {
		t.Errorf("unexpected encoded path: %q", reqPath)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}
}

func TestAPIClientNoToken(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = ""

	resp, err := client.get(ctx, "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if ts.requests[0].Auth != "" {
		t.Errorf("auth = %q, want empty", ts.requests[0].Auth)
	}
}

func TestServerUnreachable(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(415)
		w.Write([]byte(`{"error":{"message":"unsupported format \".exe\"","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		sessionID:  "test-session",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/upload")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 415 response")
	}
	if !strings.Contains(err.Error(), "415") {
		t.Errorf("error = %q, want it to contain '415'", err.Error())
	}
}

func TestLoadOrCreateSessionID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "cli_session")

	first, err := loadOrCreateSessionID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == "" {
		t.Fatal("expected a session id")
	}

	second, err := loadOrCreateSessionID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("session id changed between calls: %q then %q", first, second)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func writeTestFile(path string, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
