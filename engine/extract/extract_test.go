package extract

import (
	"archive/zip"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		path string
		want Kind
	}{
		{"notes.txt", KindText},
		{"README.md", KindText},
		{"paper.PDF", KindPDF},
		{"report.Docx", KindDocx},
		{"talk.mp3", KindAudioVideo},
		{"demo.MP4", KindAudioVideo},
		{"cat.png", KindImage},
		{"photo.JPEG", KindImage},
		{"archive.tar.gz", KindUnsupported},
		{"binary", KindUnsupported},
		{"/deep/nested/dir/file.TXT", KindText},
	}
	for _, c := range cases {
		if got := Classify(c.path); got != c.want {
			t.Errorf("Classify(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestKindTextual(t *testing.T) {
	for _, k := range []Kind{KindText, KindPDF, KindDocx, KindAudioVideo} {
		if !k.Textual() {
			t.Errorf("%v should be textual", k)
		}
	}
	for _, k := range []Kind{KindImage, KindUnsupported} {
		if k.Textual() {
			t.Errorf("%v should not be textual", k)
		}
	}
}

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	os.WriteFile(path, []byte("hello world"), 0o644)

	c, err := New(nil, nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "hello world" {
		t.Errorf("text = %q", c.Text)
	}
	if c.Image != nil {
		t.Error("text file should not yield an image")
	}
}

func TestExtractMissingFile(t *testing.T) {
	_, err := New(nil, nil).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExtractUnsupportedIsNotAnError(t *testing.T) {
	c, err := New(nil, nil).Extract(context.Background(), "thing.bin")
	if err != nil {
		t.Fatalf("unsupported kind should not error: %v", err)
	}
	if c.Text != "" || c.Image != nil {
		t.Errorf("unsupported kind should yield empty content: %+v", c)
	}
}

func TestExtractImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	png.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	f.Close()

	c, err := New(nil, nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Image == nil {
		t.Fatal("expected decoded image")
	}
	if c.Text != "" {
		t.Error("image should not yield text")
	}
}

func TestExtractBMPImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.bmp")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(f, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	c, err := New(nil, nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Image == nil {
		t.Fatal("expected decoded bmp image")
	}
}

func TestExtractCorruptImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.png")
	os.WriteFile(path, []byte("not a png"), 0o644)

	if _, err := New(nil, nil).Extract(context.Background(), path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestExtractDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("word/document.xml")
	w.Write([]byte(`<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t> paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	zw.Close()
	f.Close()

	c, err := New(nil, nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	want := "First paragraph.\nSecond paragraph.\n"
	if c.Text != want {
		t.Errorf("text = %q, want %q", c.Text, want)
	}
}

func TestExtractDocxMissingDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, _ := os.Create(path)
	zip.NewWriter(f).Close()
	f.Close()

	if _, err := New(nil, nil).Extract(context.Background(), path); err == nil {
		t.Fatal("expected error for docx without document.xml")
	}
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, string) (string, error) {
	return f.text, f.err
}

func TestExtractAudioUsesTranscriber(t *testing.T) {
	e := New(fakeTranscriber{text: "spoken words"}, nil)
	c, err := e.Extract(context.Background(), "talk.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if c.Text != "spoken words" {
		t.Errorf("text = %q", c.Text)
	}
}

func TestExtractAudioWithoutTranscriber(t *testing.T) {
	if _, err := New(nil, nil).Extract(context.Background(), "talk.mp3"); err == nil {
		t.Fatal("expected error without transcriber")
	}
}

func TestExtractAudioTranscriberError(t *testing.T) {
	e := New(fakeTranscriber{err: errors.New("whisper down")}, nil)
	if _, err := e.Extract(context.Background(), "talk.mp3"); err == nil {
		t.Fatal("expected transcriber error to surface")
	}
}
