package extract

import (
	"path/filepath"
	"strings"
)

// Kind classifies a file into its extraction path.
type Kind int

const (
	KindUnsupported Kind = iota
	KindText
	KindPDF
	KindDocx
	KindAudioVideo
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	case KindDocx:
		return "docx"
	case KindAudioVideo:
		return "audio/video"
	case KindImage:
		return "image"
	default:
		return "unsupported"
	}
}

// Textual reports whether this kind extracts to text and is chunked into the
// text space. Images go to the image space; unsupported files go nowhere.
func (k Kind) Textual() bool {
	switch k {
	case KindText, KindPDF, KindDocx, KindAudioVideo:
		return true
	default:
		return false
	}
}

// Classify routes a file path by extension, case-insensitively. Pure.
func Classify(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".rst", ".log":
		return KindText
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDocx
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac", ".mp4", ".mkv", ".mov", ".webm":
		return KindAudioVideo
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return KindImage
	default:
		return KindUnsupported
	}
}
