// Package embed routes extracted content to the encoder that owns each
// vector space and shapes the results into store points. It is the only
// place that decides which space a piece of content lands in.
package embed

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/polyrag/polyrag/engine/semantic"
)

// TextEncoder produces text-space embeddings.
type TextEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	EncodeBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
}

// ImageEncoder produces image-space embeddings for both images and query
// text, so text queries can search the image space.
type ImageEncoder interface {
	EncodeText(ctx context.Context, text string) ([]float32, error)
	EncodeImage(ctx context.Context, img image.Image) ([]float32, error)
	Dims() int
}

// Dispatcher owns the modality-to-encoder mapping. The image encoder is
// optional; without it the dispatcher runs text-only and images are skipped
// upstream.
type Dispatcher struct {
	text   TextEncoder
	image  ImageEncoder
	logger *slog.Logger
}

func NewDispatcher(text TextEncoder, image ImageEncoder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{text: text, image: image, logger: logger}
}

// Spaces returns the vector spaces this dispatcher can populate, in a fixed
// order: the text space always, the image space when an image encoder is
// configured. The store's collection is created from exactly this set.
func (d *Dispatcher) Spaces() []semantic.Space {
	spaces := []semantic.Space{{Name: semantic.SpaceText, Dims: d.text.Dims()}}
	if d.image != nil {
		spaces = append(spaces, semantic.Space{Name: semantic.SpaceImage, Dims: d.image.Dims()})
	}
	return spaces
}

// ImageEnabled reports whether the image space is available.
func (d *Dispatcher) ImageEnabled() bool {
	return d.image != nil
}

// ChunkID derives a stable point ID from the source path and chunk index, so
// re-indexing the same file overwrites its previous points instead of
// accumulating duplicates.
func ChunkID(path string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", path, index))).String()
}

// ImageID derives the stable point ID for a whole-file image point.
func ImageID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(path+"#image")).String()
}

// ChunkPoints embeds a file's text chunks into the text space. The returned
// points carry chunk_index in both ID derivation and payload, preserving
// document order end to end.
func (d *Dispatcher) ChunkPoints(ctx context.Context, path string, chunks []string) ([]semantic.Point, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vecs, err := d.text.EncodeBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed: %s: %w", path, err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed: %s: got %d vectors for %d chunks", path, len(vecs), len(chunks))
	}

	points := make([]semantic.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = semantic.Point{
			ID:      ChunkID(path, i),
			Vectors: map[string][]float32{semantic.SpaceText: vecs[i]},
			Payload: map[string]any{
				"path":        path,
				"type":        "text",
				"text":        chunk,
				"chunk_index": i,
			},
		}
	}
	return points, nil
}

// ImagePoint embeds one image into the image space. The payload text is a
// label derived from the filename, shown when the hit surfaces in context.
func (d *Dispatcher) ImagePoint(ctx context.Context, path string, img image.Image) (semantic.Point, error) {
	if d.image == nil {
		return semantic.Point{}, fmt.Errorf("embed: %s: image encoder not configured", path)
	}

	vec, err := d.image.EncodeImage(ctx, img)
	if err != nil {
		return semantic.Point{}, fmt.Errorf("embed: %s: %w", path, err)
	}

	return semantic.Point{
		ID:      ImageID(path),
		Vectors: map[string][]float32{semantic.SpaceImage: vec},
		Payload: map[string]any{
			"path":        path,
			"type":        "image",
			"text":        "image: " + filepath.Base(path),
			"chunk_index": 0,
		},
	}, nil
}

// QueryVectors embeds the query once per requested space. A failure in any
// space fails the whole query; a silently missing lane would skew fusion.
func (d *Dispatcher) QueryVectors(ctx context.Context, query string, spaces []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(spaces))
	for _, space := range spaces {
		switch space {
		case semantic.SpaceText:
			vec, err := d.text.Encode(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("embed: query in %s: %w", space, err)
			}
			out[space] = vec
		case semantic.SpaceImage:
			if d.image == nil {
				return nil, fmt.Errorf("embed: query in %s: image encoder not configured", space)
			}
			vec, err := d.image.EncodeText(ctx, query)
			if err != nil {
				return nil, fmt.Errorf("embed: query in %s: %w", space, err)
			}
			out[space] = vec
		default:
			return nil, fmt.Errorf("embed: unknown vector space %q", space)
		}
	}
	return out, nil
}
