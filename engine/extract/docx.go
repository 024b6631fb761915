package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// readDocx pulls paragraph text out of word/document.xml, paragraphs joined
// with newlines. A .docx is a zip; only the main document part matters here.
func readDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("extract: open docx %s: %w", path, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract: docx %s: %w", path, err)
		}
		defer rc.Close()
		text, err := docxText(rc)
		if err != nil {
			return "", fmt.Errorf("extract: docx %s: %w", path, err)
		}
		return text, nil
	}
	return "", fmt.Errorf("extract: docx %s: word/document.xml missing", path)
}

// docxText streams the document XML, collecting character data inside w:t
// runs and a newline per closed w:p paragraph.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var b strings.Builder
	inRun := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}
