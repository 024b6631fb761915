// Package rag answers questions over the local index: embed the query per
// vector space, search every space, fuse the ranked lists, assemble a
// context block, and hand it to the generator.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polyrag/polyrag/engine/semantic"
	"github.com/polyrag/polyrag/pkg/fn"
	"github.com/polyrag/polyrag/pkg/resilience"
)

// QueryEmbedder embeds a query once per vector space.
type QueryEmbedder interface {
	QueryVectors(ctx context.Context, query string, spaces []string) (map[string][]float32, error)
	Spaces() []semantic.Space
}

// Searcher abstracts the vector store's read side.
type Searcher interface {
	Search(ctx context.Context, space string, vector []float32, topK int) ([]semantic.Hit, error)
	FusedQuery(ctx context.Context, lanes []semantic.Lane, topK int) ([]semantic.Hit, error)
}

// Generator produces the final answer from a prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options configures retrieval and generation.
type Options struct {
	TopK            int
	RRFK            int
	MaxContextBytes int
	// ServerFusion delegates rank fusion to the store instead of fusing
	// client-side. Server fusion skips the deterministic tie-break.
	ServerFusion  bool
	SystemPrompt  string
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            5,
		RRFK:            DefaultRRFK,
		MaxContextBytes: DefaultMaxContextBytes,
		SystemPrompt:    defaultSystemPrompt,
		SearchTimeout:   5 * time.Second,
	}
}

const defaultSystemPrompt = `Answer the question using ONLY the provided sources.
If the sources do not contain the answer, say you don't know.`

// Service is the retrieval and answering pipeline.
type Service struct {
	embed   QueryEmbedder
	search  Searcher
	gen     Generator
	breaker *resilience.Breaker
	opts    Options
	logger  *slog.Logger
}

// New creates a Service. gen may be nil when only Retrieve is used.
func New(embed QueryEmbedder, search Searcher, gen Generator, opts Options, logger *slog.Logger) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.RRFK <= 0 {
		opts.RRFK = DefaultRRFK
	}
	if opts.MaxContextBytes <= 0 {
		opts.MaxContextBytes = DefaultMaxContextBytes
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embed:   embed,
		search:  search,
		gen:     gen,
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:    opts,
		logger:  logger,
	}
}

// Answer is the structured response to a question.
type Answer struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Source cites one file backing the answer.
type Source struct {
	Path  string  `json:"path"`
	Type  string  `json:"type"`
	Score float32 `json:"score"`
}

// Retrieve returns the fused top-K hits for a query across every vector
// space the index declares.
func (s *Service) Retrieve(ctx context.Context, query string) ([]semantic.Hit, error) {
	spaces := fn.Map(s.embed.Spaces(), func(sp semantic.Space) string { return sp.Name })

	vectors, err := s.embed.QueryVectors(ctx, query, spaces)
	if err != nil {
		return nil, fmt.Errorf("rag: embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	if s.opts.ServerFusion {
		lanes := fn.Map(spaces, func(space string) semantic.Lane {
			return semantic.Lane{Space: space, Vector: vectors[space], TopK: s.opts.TopK}
		})
		hits, err := s.search.FusedQuery(searchCtx, lanes, s.opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("rag: fused search: %w", err)
		}
		return hits, nil
	}

	// One search per space, concurrently; fuse client-side so ranking is
	// deterministic under score ties.
	searches := fn.Map(spaces, func(space string) func() fn.Result[[]semantic.Hit] {
		return func() fn.Result[[]semantic.Hit] {
			return fn.FromPair(s.search.Search(searchCtx, space, vectors[space], s.opts.TopK))
		}
	})
	lanes, err := fn.FanOutResult(searches...).Unwrap()
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}

	hits := fuseRRF(lanes, s.opts.RRFK, s.opts.TopK)
	s.logger.Debug("rag: retrieved", "query_len", len(query), "lanes", len(lanes), "hits", len(hits))
	return hits, nil
}

// Ask retrieves context for the question and generates an answer. Returns
// ErrNoContext when retrieval finds nothing; the generator is never called
// without grounding.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	hits, err := s.Retrieve(ctx, question)
	if err != nil {
		return Answer{}, err
	}

	contextBlock, err := BuildContext(hits, s.opts.MaxContextBytes)
	if err != nil {
		return Answer{}, err
	}

	prompt := s.buildPrompt(question, contextBlock)

	var text string
	err = s.breaker.Call(ctx, func(ctx context.Context) error {
		var gerr error
		text, gerr = s.gen.Complete(ctx, prompt)
		return gerr
	})
	if err != nil {
		return Answer{}, fmt.Errorf("rag: generate: %w", err)
	}

	sources := fn.Map(hits, func(h semantic.Hit) Source {
		return Source{Path: h.Path, Type: h.Type, Score: h.Score}
	})
	sources = fn.UniqueBy(sources, func(src Source) string { return src.Path })

	return Answer{Text: text, Sources: sources}, nil
}

func (s *Service) buildPrompt(question, contextBlock string) string {
	var b strings.Builder
	b.WriteString(s.opts.SystemPrompt)
	b.WriteString("\n\n")
	b.WriteString(contextBlock)
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
