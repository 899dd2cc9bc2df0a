// Package extract converts heterogeneous study sources (YouTube videos,
// documents, audio recordings) into plain text plus minimal metadata.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"studymate/internal/transcribe"
)

var (
	// ErrUnsupportedFormat is returned for file extensions outside the
	// recognized document and audio sets.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrExtraction is returned when a recognized source cannot be read:
	// missing captions, corrupt file, transcription failure.
	ErrExtraction = errors.New("extraction failed")
)

// SourceType tags the kind of ingested material.
type SourceType string

const (
	SourceYouTube  SourceType = "youtube"
	SourceDocument SourceType = "document"
	SourceAudio    SourceType = "audio"
)

// ParseSourceType validates a source type string from an external caller.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceYouTube, SourceDocument, SourceAudio:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// Source describes one upload. Exactly one of YouTubeURL or
// Filename+Content is expected.
type Source struct {
	YouTubeURL string
	Filename   string
	Content    io.Reader
}

// Result is the extractor output: plain text plus attribution metadata.
type Result struct {
	Text       string
	SourceType SourceType
	SourceID   string
}

var documentExts = map[string]bool{
	".pdf": true, ".docx": true, ".pptx": true, ".txt": true,
}

var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true,
}

// Extractor dispatches a Source to the handler for its kind.
type Extractor struct {
	youtube     *YouTubeClient
	transcriber transcribe.Transcriber
}

// New creates an Extractor wired to the given YouTube client and
// transcription capability.
func New(youtube *YouTubeClient, transcriber transcribe.Transcriber) *Extractor {
	return &Extractor{youtube: youtube, transcriber: transcriber}
}

// Extract converts the source into plain text. The source kind is a closed
// set: a YouTube URL, a document file, or an audio file, selected here and
// nowhere else.
func (e *Extractor) Extract(ctx context.Context, src Source) (Result, error) {
	if src.YouTubeURL != "" {
		text, videoID, err := e.youtube.FetchTranscript(ctx, src.YouTubeURL)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, SourceType: SourceYouTube, SourceID: videoID}, nil
	}

	ext := strings.ToLower(filepath.Ext(src.Filename))
	switch {
	case documentExts[ext]:
		text, err := extractDocument(src.Filename, src.Content)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, SourceType: SourceDocument, SourceID: src.Filename}, nil

	case audioExts[ext]:
		text, err := e.extractAudio(ctx, src.Content)
		if err != nil {
			return Result{}, err
		}
		return Result{Text: text, SourceType: SourceAudio, SourceID: audioID(src.Filename)}, nil

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// DeriveID computes the source identity without extracting anything,
// letting callers check for an existing index before paying for caption
// fetching or transcription.
func DeriveID(src Source) (SourceType, string, error) {
	if src.YouTubeURL != "" {
		id, err := VideoID(src.YouTubeURL)
		if err != nil {
			return "", "", err
		}
		return SourceYouTube, id, nil
	}

	ext := strings.ToLower(filepath.Ext(src.Filename))
	switch {
	case documentExts[ext]:
		return SourceDocument, src.Filename, nil
	case audioExts[ext]:
		return SourceAudio, audioID(src.Filename), nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func (e *Extractor) extractAudio(ctx context.Context, audio io.Reader) (string, error) {
	if e.transcriber == nil {
		return "", fmt.Errorf("%w: audio transcription is not configured", ErrUnsupportedFormat)
	}
	text, err := e.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", fmt.Errorf("%w: transcribing audio: %v", ErrExtraction, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: transcription returned no text", ErrExtraction)
	}
	return text, nil
}

// audioID derives a stable source id from the uploaded filename, so
// re-uploading the same recording reuses its persisted index.
func audioID(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return hex.EncodeToString(sum[:8])
}
