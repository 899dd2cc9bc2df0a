package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

const maxDocumentBytes = 50 << 20 // 50MB

// extractDocument reads the whole file and dispatches on its extension.
// The extension set was validated by the caller.
func extractDocument(filename string, content io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(content, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", ErrExtraction, filename, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrExtraction, filename)
	}

	var text string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".pptx":
		text, err = extractPPTX(data)
	case ".txt":
		text = string(data)
	}
	if err != nil {
		return "", fmt.Errorf("%w: parsing %s: %v", ErrExtraction, filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: %s contains no extractable text", ErrExtraction, filename)
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// extractDOCX pulls paragraph text out of word/document.xml. A .docx file
// is a zip archive of XML parts; runs of text live in <w:t> elements.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return collectXMLText(rc, "t", "p")
	}
	return "", fmt.Errorf("word/document.xml not found in archive")
}

// extractPPTX pulls text from every slide part, in slide order. Slide text
// lives in <a:t> elements inside ppt/slides/slideN.xml.
func extractPPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var slides []*zip.File
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f)
		}
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found in archive")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].Name < slides[j].Name })

	var sb strings.Builder
	for _, f := range slides {
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		text, err := collectXMLText(rc, "t", "p")
		rc.Close()
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// collectXMLText streams an XML document and concatenates character data
// found inside elements named textElem, inserting a newline at the end of
// each breakElem.
func collectXMLText(r io.Reader, textElem, breakElem string) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == textElem {
				depth++
			}
		case xml.EndElement:
			if t.Name.Local == textElem && depth > 0 {
				depth--
			}
			if t.Name.Local == breakElem {
				sb.WriteString("\n")
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
