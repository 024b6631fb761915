// Package index walks a directory tree and turns its files into vector
// points: extract, chunk, embed, buffer, upsert. Per-file failures are
// recorded and skipped; store failures abort the run.
package index

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/polyrag/polyrag/engine/extract"
	"github.com/polyrag/polyrag/engine/semantic"
	"github.com/polyrag/polyrag/pkg/fn"
)

// ContentExtractor yields a file's text or image.
type ContentExtractor interface {
	Extract(ctx context.Context, path string) (extract.Content, error)
}

// PointDispatcher embeds content into store points.
type PointDispatcher interface {
	ChunkPoints(ctx context.Context, path string, chunks []string) ([]semantic.Point, error)
	ImagePoint(ctx context.Context, path string, img image.Image) (semantic.Point, error)
	ImageEnabled() bool
}

// Deps holds the external dependencies of an indexing run.
type Deps struct {
	Extractor  ContentExtractor
	Dispatcher PointDispatcher
	Store      Upserter
	ChunkSize  int
	BatchSize  int
	Logger     *slog.Logger
	// Dedup, if set, reports whether a file is already indexed and can be
	// skipped without touching it.
	Dedup func(path string, size int64) bool
}

// Skip records one file left out of the index and why.
type Skip struct {
	Path   string
	Reason string
}

// Summary is the outcome of a run.
type Summary struct {
	Files   int // files that produced at least one point
	Chunks  int // text chunks indexed
	Images  int // image points indexed
	Skipped []Skip
}

// Indexer drives the per-file pipeline over a directory tree.
type Indexer struct {
	deps     Deps
	pipeline fn.Stage[string, filePoints]
}

type fileDoc struct {
	path    string
	content extract.Content
}

type filePoints struct {
	points []semantic.Point
	chunks int
	image  bool
}

// New creates an Indexer. Extractor, Dispatcher and Store are required.
func New(deps Deps) *Indexer {
	if deps.ChunkSize <= 0 {
		deps.ChunkSize = DefaultChunkSize
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	extractStage := fn.TracedStage("index.extract", func(ctx context.Context, path string) fn.Result[fileDoc] {
		content, err := deps.Extractor.Extract(ctx, path)
		if err != nil {
			return fn.Err[fileDoc](err)
		}
		return fn.Ok(fileDoc{path: path, content: content})
	})

	embedStage := fn.TracedStage("index.embed", func(ctx context.Context, doc fileDoc) fn.Result[filePoints] {
		if doc.content.Image != nil {
			if !deps.Dispatcher.ImageEnabled() {
				return fn.Errf[filePoints]("index: %s: image space disabled", doc.path)
			}
			p, err := deps.Dispatcher.ImagePoint(ctx, doc.path, doc.content.Image)
			if err != nil {
				return fn.Err[filePoints](err)
			}
			return fn.Ok(filePoints{points: []semantic.Point{p}, image: true})
		}

		chunks := Chunks(doc.content.Text, deps.ChunkSize)
		points, err := deps.Dispatcher.ChunkPoints(ctx, doc.path, chunks)
		if err != nil {
			return fn.Err[filePoints](err)
		}
		return fn.Ok(filePoints{points: points, chunks: len(points)})
	})

	return &Indexer{
		deps:     deps,
		pipeline: fn.Then(extractStage, embedStage),
	}
}

// Run indexes every regular file under dataDir. It returns an error only
// when the walk itself or a store write fails; per-file problems end up in
// Summary.Skipped.
func (ix *Indexer) Run(ctx context.Context, dataDir string) (Summary, error) {
	buf := NewBuffer(ix.deps.Store, ix.deps.BatchSize)
	var sum Summary

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if ix.deps.Dedup != nil {
			info, ierr := d.Info()
			if ierr == nil && ix.deps.Dedup(path, info.Size()) {
				return nil
			}
		}

		return ix.indexInto(ctx, buf, path, &sum)
	})
	if err != nil {
		return sum, fmt.Errorf("index: walk %s: %w", dataDir, err)
	}

	if err := buf.Flush(ctx); err != nil {
		return sum, fmt.Errorf("index: final flush: %w", err)
	}

	ix.deps.Logger.Info("index: run complete",
		"dir", dataDir,
		"files", sum.Files,
		"chunks", sum.Chunks,
		"images", sum.Images,
		"skipped", len(sum.Skipped),
	)
	return sum, nil
}

// IndexFile indexes a single file and flushes immediately. Used by the job
// consumer, where each message is one file.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (Summary, error) {
	buf := NewBuffer(ix.deps.Store, ix.deps.BatchSize)
	var sum Summary
	if err := ix.indexInto(ctx, buf, path, &sum); err != nil {
		return sum, err
	}
	if err := buf.Flush(ctx); err != nil {
		return sum, fmt.Errorf("index: flush %s: %w", path, err)
	}
	if len(sum.Skipped) > 0 {
		return sum, fmt.Errorf("index: %s: %s", path, sum.Skipped[0].Reason)
	}
	return sum, nil
}

// indexInto runs one file through the pipeline into buf. Pipeline errors
// become skips; buffer errors propagate because they mean the store is
// failing.
func (ix *Indexer) indexInto(ctx context.Context, buf *Buffer, path string, sum *Summary) error {
	if !ix.wanted(path) {
		return nil
	}

	result := ix.pipeline(ctx, path)
	if result.IsErr() {
		_, err := result.Unwrap()
		ix.deps.Logger.Warn("index: skipping file", "path", path, "error", err)
		sum.Skipped = append(sum.Skipped, Skip{Path: path, Reason: err.Error()})
		return nil
	}

	fp, _ := result.Unwrap()
	if len(fp.points) == 0 {
		return nil
	}

	if err := buf.Add(ctx, fp.points...); err != nil {
		return fmt.Errorf("index: buffer %s: %w", path, err)
	}

	sum.Files++
	sum.Chunks += fp.chunks
	if fp.image {
		sum.Images++
	}
	return nil
}

// wanted filters out files no extractor handles, and images when the image
// space is off, before any I/O happens.
func (ix *Indexer) wanted(path string) bool {
	switch k := extract.Classify(path); {
	case k.Textual():
		return true
	case k == extract.KindImage:
		if !ix.deps.Dispatcher.ImageEnabled() {
			ix.deps.Logger.Debug("index: image space disabled", "path", path)
			return false
		}
		return true
	default:
		return false
	}
}
