package extract

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader) (string, error) {
	io.Copy(io.Discard, audio)
	return f.text, f.err
}

func TestExtract_TxtDocument(t *testing.T) {
	e := New(nil, nil)
	res, err := e.Extract(context.Background(), Source{
		Filename: "notes.txt",
		Content:  strings.NewReader("The mitochondria is the powerhouse of the cell."),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.SourceType != SourceDocument {
		t.Errorf("SourceType = %q, want document", res.SourceType)
	}
	if res.SourceID != "notes.txt" {
		t.Errorf("SourceID = %q, want notes.txt", res.SourceID)
	}
	if !strings.Contains(res.Text, "powerhouse") {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	e := New(nil, nil)
	for _, name := range []string{"image.png", "archive.tar.gz", "noext", "video.mp4"} {
		_, err := e.Extract(context.Background(), Source{Filename: name, Content: strings.NewReader("x")})
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("Extract(%q) err = %v, want ErrUnsupportedFormat", name, err)
		}
	}
}

func TestExtract_Audio(t *testing.T) {
	e := New(nil, &fakeTranscriber{text: "welcome to the lecture"})
	res, err := e.Extract(context.Background(), Source{
		Filename: "lecture.mp3",
		Content:  strings.NewReader("fake-mp3-bytes"),
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.SourceType != SourceAudio {
		t.Errorf("SourceType = %q, want audio", res.SourceType)
	}
	if res.SourceID == "" || res.SourceID == "lecture.mp3" {
		t.Errorf("SourceID = %q, want derived id", res.SourceID)
	}
	if res.Text != "welcome to the lecture" {
		t.Errorf("Text = %q", res.Text)
	}
}

func TestExtract_AudioIDStable(t *testing.T) {
	e := New(nil, &fakeTranscriber{text: "hello"})
	first, err := e.Extract(context.Background(), Source{Filename: "talk.wav", Content: strings.NewReader("a")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := e.Extract(context.Background(), Source{Filename: "talk.wav", Content: strings.NewReader("b")})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if first.SourceID != second.SourceID {
		t.Errorf("ids differ for the same filename: %q vs %q", first.SourceID, second.SourceID)
	}
}

func TestExtract_TranscriptionFailure(t *testing.T) {
	e := New(nil, &fakeTranscriber{err: errors.New("provider down")})
	_, err := e.Extract(context.Background(), Source{Filename: "talk.m4a", Content: strings.NewReader("x")})
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestExtract_EmptyTranscription(t *testing.T) {
	e := New(nil, &fakeTranscriber{text: "   "})
	_, err := e.Extract(context.Background(), Source{Filename: "talk.ogg", Content: strings.NewReader("x")})
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestParseSourceType(t *testing.T) {
	for _, valid := range []string{"youtube", "document", "audio"} {
		if _, err := ParseSourceType(valid); err != nil {
			t.Errorf("ParseSourceType(%q): %v", valid, err)
		}
	}
	if _, err := ParseSourceType("webpage"); err == nil {
		t.Error("expected error for unknown source type")
	}
}
