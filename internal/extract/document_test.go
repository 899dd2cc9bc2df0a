package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"
)

// buildZip assembles an in-memory zip archive from name -> content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

const docxBody = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Photosynthesis converts light</w:t></w:r><w:r><w:t> into chemical energy.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Chlorophyll absorbs red and blue light.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractDocument_DOCX(t *testing.T) {
	data := buildZip(t, map[string]string{"word/document.xml": docxBody})
	text, err := extractDocument("bio.docx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extractDocument: %v", err)
	}
	if !strings.Contains(text, "Photosynthesis converts light into chemical energy.") {
		t.Errorf("text = %q", text)
	}
	// Paragraphs become separate lines.
	if !strings.Contains(text, "\n") {
		t.Error("expected newline between paragraphs")
	}
}

func TestExtractDocument_DOCXMissingPart(t *testing.T) {
	data := buildZip(t, map[string]string{"other.xml": "<x/>"})
	_, err := extractDocument("broken.docx", bytes.NewReader(data))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

const slideBody = `<?xml version="1.0"?>
<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
       xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">
  <p:cSld><p:spTree>
    <a:p><a:r><a:t>%s</a:t></a:r></a:p>
  </p:spTree></p:cSld>
</p:sld>`

func TestExtractDocument_PPTXSlideOrder(t *testing.T) {
	data := buildZip(t, map[string]string{
		"ppt/slides/slide1.xml": strings.Replace(slideBody, "%s", "First slide", 1),
		"ppt/slides/slide2.xml": strings.Replace(slideBody, "%s", "Second slide", 1),
	})
	text, err := extractDocument("deck.pptx", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("extractDocument: %v", err)
	}
	first := strings.Index(text, "First slide")
	second := strings.Index(text, "Second slide")
	if first == -1 || second == -1 || first > second {
		t.Errorf("slide order wrong in %q", text)
	}
}

func TestExtractDocument_PPTXNoSlides(t *testing.T) {
	data := buildZip(t, map[string]string{"ppt/presentation.xml": "<x/>"})
	_, err := extractDocument("empty.pptx", bytes.NewReader(data))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocument_CorruptPDF(t *testing.T) {
	_, err := extractDocument("bad.pdf", strings.NewReader("this is not a pdf"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocument_EmptyFile(t *testing.T) {
	_, err := extractDocument("empty.txt", strings.NewReader(""))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractDocument_WhitespaceOnlyTxt(t *testing.T) {
	_, err := extractDocument("blank.txt", strings.NewReader("  \n\t "))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("err = %v, want ErrExtraction", err)
	}
}
