package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete_PlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Mitochondria produce ATP."}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-key")
	result, err := c.Complete(context.Background(), "gpt-4o-mini", []Message{
		{Role: "user", Content: "What do mitochondria do?"},
	}, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result != "Mitochondria produce ATP." {
		t.Errorf("result = %q", result)
	}
}

func TestComplete_StructuredRequestsJSONFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("unmarshalling request: %v", err)
		}
		format, ok := req["response_format"].(map[string]any)
		if !ok || format["type"] != "json_object" {
			t.Errorf("response_format = %v, want json_object", req["response_format"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": `{"ok":true}`}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.Complete(context.Background(), "gpt-4o-mini", []Message{
		{Role: "user", Content: "give me json"},
	}, &Schema{Type: "object"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Complete(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Error("expected error for empty choices, got nil")
	}
}

func TestComplete_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Complete(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Error("expected error for 429 response, got nil")
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	vec, err := c.Embed(context.Background(), "text-embedding-3-small", "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dims, want 3", len(vec))
	}
	if vec[1] != 0.2 {
		t.Errorf("vec[1] = %f, want 0.2", vec[1])
	}
}

func TestEmbed_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	if _, err := c.Embed(context.Background(), "m", "text"); err == nil {
		t.Error("expected error for empty data, got nil")
	}
}
