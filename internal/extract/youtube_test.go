package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=abc123", "abc123"},
		{"https://www.youtube.com/watch?v=abc123&t=42s", "abc123"},
		{"https://youtu.be/xyz789", "xyz789"},
		{"https://www.youtube.com/shorts/short01", "short01"},
	}
	for _, tc := range cases {
		got, err := VideoID(tc.url)
		if err != nil {
			t.Errorf("VideoID(%q): %v", tc.url, err)
			continue
		}
		if got != tc.want {
			t.Errorf("VideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestVideoID_Invalid(t *testing.T) {
	for _, u := range []string{"https://www.youtube.com/watch", "https://youtu.be/", "://bad"} {
		if _, err := VideoID(u); !errors.Is(err, ErrExtraction) {
			t.Errorf("VideoID(%q) err = %v, want ErrExtraction", u, err)
		}
	}
}

const timedTextXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.0" dur="3.2">The mitochondria is</text>
  <text start="3.2" dur="2.8">the powerhouse of the cell &amp;#39;obviously&amp;#39;</text>
</transcript>`

// fakeYouTube serves a watch page whose player response points back at the
// server's own /timedtext endpoint.
func fakeYouTube(t *testing.T, withCaptions bool) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			var player string
			if withCaptions {
				player = fmt.Sprintf(
					`var ytInitialPlayerResponse = {"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"%s/timedtext?v=abc123","languageCode":"en"}]}}};`,
					srv.URL)
			} else {
				player = `var ytInitialPlayerResponse = {"playabilityStatus":{"status":"OK"}};`
			}
			fmt.Fprintf(w, `<html><head><script>%s</script></head><body></body></html>`, player)
		case "/timedtext":
			w.Header().Set("Content-Type", "text/xml")
			fmt.Fprint(w, timedTextXML)
		default:
			http.NotFound(w, r)
		}
	}))
	return srv
}

func TestFetchTranscript(t *testing.T) {
	srv := fakeYouTube(t, true)
	defer srv.Close()

	c := NewYouTubeClient(srv.URL)
	text, videoID, err := c.FetchTranscript(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("FetchTranscript: %v", err)
	}
	if videoID != "abc123" {
		t.Errorf("videoID = %q, want abc123", videoID)
	}
	if !strings.Contains(text, "powerhouse of the cell") {
		t.Errorf("text = %q", text)
	}
	// Double-escaped entities in the caption payload are decoded.
	if strings.Contains(text, "&#39;") {
		t.Errorf("text still contains escaped entity: %q", text)
	}
}

func TestFetchTranscript_NoCaptions(t *testing.T) {
	srv := fakeYouTube(t, false)
	defer srv.Close()

	c := NewYouTubeClient(srv.URL)
	_, _, err := c.FetchTranscript(context.Background(), "https://www.youtube.com/watch?v=abc123")
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestFetchTranscript_PageUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewYouTubeClient(srv.URL)
	_, _, err := c.FetchTranscript(context.Background(), "https://www.youtube.com/watch?v=missing")
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}
