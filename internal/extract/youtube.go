package extract

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	nethtml "html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxWatchPageBytes = 10 << 20 // 10MB

// YouTubeClient fetches a video's caption track from its watch page.
// YouTube embeds the available caption tracks in the player response JSON
// inside a script tag; the track body itself is timedtext XML.
type YouTubeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewYouTubeClient creates a client against the given base URL
// (https://www.youtube.com in production, an httptest server in tests).
func NewYouTubeClient(baseURL string) *YouTubeClient {
	return &YouTubeClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchTranscript returns the caption text and video id for the given
// video URL. Fails when the URL carries no video id or the video has no
// caption tracks (captions disabled, private, or nonexistent).
func (c *YouTubeClient) FetchTranscript(ctx context.Context, videoURL string) (text, videoID string, err error) {
	videoID, err = VideoID(videoURL)
	if err != nil {
		return "", "", err
	}

	page, err := c.fetch(ctx, c.baseURL+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", "", fmt.Errorf("%w: fetching watch page for %s: %v", ErrExtraction, videoID, err)
	}

	trackURL, err := captionTrackURL(page)
	if err != nil {
		return "", "", fmt.Errorf("%w: video %s: %v", ErrExtraction, videoID, err)
	}

	body, err := c.fetch(ctx, trackURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: fetching captions for %s: %v", ErrExtraction, videoID, err)
	}

	text, err = parseTimedText(body)
	if err != nil {
		return "", "", fmt.Errorf("%w: parsing captions for %s: %v", ErrExtraction, videoID, err)
	}
	return text, videoID, nil
}

// VideoID extracts the video id from watch, youtu.be, and shorts URLs.
func VideoID(videoURL string) (string, error) {
	u, err := url.Parse(videoURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL %q: %v", ErrExtraction, videoURL, err)
	}

	var id string
	switch {
	case strings.HasSuffix(u.Host, "youtu.be"):
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
		id = strings.TrimSuffix(id, "/")
	default:
		id = u.Query().Get("v")
	}
	if id == "" {
		return "", fmt.Errorf("%w: could not extract video id from %q", ErrExtraction, videoURL)
	}
	return id, nil
}

func (c *YouTubeClient) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxWatchPageBytes))
}

// captionTrackURL walks the watch page's script tags for the player
// response and returns the first caption track's base URL.
func captionTrackURL(page []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(page)))
	if err != nil {
		return "", fmt.Errorf("parsing watch page: %w", err)
	}

	var script string
	for n := range doc.Descendants() {
		if n.Type == html.ElementNode && n.Data == "script" && n.FirstChild != nil {
			if strings.Contains(n.FirstChild.Data, `"captionTracks"`) {
				script = n.FirstChild.Data
				break
			}
		}
	}
	if script == "" {
		return "", fmt.Errorf("no caption tracks available")
	}

	tracksJSON, err := extractJSONArray(script, `"captionTracks":`)
	if err != nil {
		return "", err
	}

	var tracks []struct {
		BaseURL      string `json:"baseUrl"`
		LanguageCode string `json:"languageCode"`
	}
	if err := json.Unmarshal([]byte(tracksJSON), &tracks); err != nil {
		return "", fmt.Errorf("parsing caption tracks: %w", err)
	}
	if len(tracks) == 0 || tracks[0].BaseURL == "" {
		return "", fmt.Errorf("no caption tracks available")
	}
	return tracks[0].BaseURL, nil
}

// extractJSONArray returns the bracket-balanced JSON array following marker.
func extractJSONArray(s, marker string) (string, error) {
	idx := strings.Index(s, marker)
	if idx == -1 {
		return "", fmt.Errorf("marker %s not found", marker)
	}
	rest := s[idx+len(marker):]
	start := strings.Index(rest, "[")
	if start == -1 {
		return "", fmt.Errorf("no array after %s", marker)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		ch := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced array after %s", marker)
}

// timedText mirrors the caption track XML: <transcript><text ...>…</text>…
type timedText struct {
	Texts []struct {
		Value string `xml:",chardata"`
	} `xml:"text"`
}

func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parsing timedtext: %w", err)
	}
	if len(tt.Texts) == 0 {
		return "", fmt.Errorf("caption track is empty")
	}

	parts := make([]string, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		// Caption payloads are HTML-escaped on top of the XML escaping.
		s := strings.TrimSpace(nethtml.UnescapeString(t.Value))
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "), nil
}
