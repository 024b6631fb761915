// Package extract classifies files by modality and pulls their content out
// as text or a decoded image. Extraction failures are expected at corpus
// scale; callers treat an error from Extract as "skip this file", never as a
// reason to abort a run.
package extract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Content is what a file yields: text for the text lane, an image for the
// image lane. Both zero means the file contributed nothing.
type Content struct {
	Text  string
	Image image.Image
}

// Transcriber converts an audio/video file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Extractor turns a file path into Content according to its Kind.
type Extractor struct {
	transcriber Transcriber
	logger      *slog.Logger
}

// New creates an Extractor. transcriber may be nil, in which case
// audio/video files are skipped.
func New(transcriber Transcriber, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{transcriber: transcriber, logger: logger}
}

// Extract reads the file at path and returns its content. Unsupported kinds
// yield empty Content with no error; unreadable or corrupt files return an
// error the caller records as a skip reason.
func (e *Extractor) Extract(ctx context.Context, path string) (Content, error) {
	switch Classify(path) {
	case KindText:
		data, err := os.ReadFile(path)
		if err != nil {
			return Content{}, fmt.Errorf("extract: read %s: %w", path, err)
		}
		return Content{Text: string(data)}, nil

	case KindPDF:
		text, err := readPDF(path)
		if err != nil {
			return Content{}, err
		}
		return Content{Text: text}, nil

	case KindDocx:
		text, err := readDocx(path)
		if err != nil {
			return Content{}, err
		}
		return Content{Text: text}, nil

	case KindAudioVideo:
		if e.transcriber == nil {
			return Content{}, fmt.Errorf("extract: %s: no transcriber configured", path)
		}
		text, err := e.transcriber.Transcribe(ctx, path)
		if err != nil {
			return Content{}, err
		}
		return Content{Text: text}, nil

	case KindImage:
		img, err := decodeImage(path)
		if err != nil {
			return Content{}, err
		}
		return Content{Image: img}, nil

	default:
		return Content{}, nil
	}
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("extract: decode image %s: %w", path, err)
	}
	return img, nil
}
