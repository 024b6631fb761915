// Command ask answers questions over the local index from the terminal,
// either one-shot with -q or as an interactive loop.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/polyrag/polyrag/engine/embed"
	"github.com/polyrag/polyrag/engine/rag"
	"github.com/polyrag/polyrag/engine/semantic"
	"github.com/polyrag/polyrag/pkg/clip"
	"github.com/polyrag/polyrag/pkg/config"
	"github.com/polyrag/polyrag/pkg/llm"
	"github.com/polyrag/polyrag/pkg/ollama"
)

func main() {
	var (
		configPath   = flag.String("config", "", "YAML config file")
		question     = flag.String("q", "", "one-shot question; empty starts the interactive loop")
		serverFusion = flag.Bool("server-fusion", false, "fuse ranks in Qdrant instead of client-side")
	)
	flag.Parse()
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, closeFn, err := buildService(cfg, *serverFusion, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeFn()

	if *question != "" {
		answer(ctx, svc, *question)
		return
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Ask (or exit): ")
		if !scanner.Scan() {
			return
		}
		q := strings.TrimSpace(scanner.Text())
		switch q {
		case "":
			continue
		case "exit", "quit":
			return
		}
		answer(ctx, svc, q)
		if ctx.Err() != nil {
			return
		}
	}
}

func buildService(cfg config.Config, serverFusion bool, logger *slog.Logger) (*rag.Service, func(), error) {
	text := ollama.New(cfg.TextEmbed.URL, cfg.TextEmbed.Model, cfg.TextEmbed.Dims, cfg.TextEmbed.RPS)
	var imageEnc embed.ImageEncoder
	if cfg.ImageEmbed.Enabled {
		imageEnc = clip.New(cfg.ImageEmbed.URL, cfg.ImageEmbed.Dims, cfg.ImageEmbed.RPS)
	}
	dispatcher := embed.NewDispatcher(text, imageEnc, logger)

	store, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection, dispatcher.Spaces())
	if err != nil {
		return nil, nil, fmt.Errorf("qdrant: %w", err)
	}

	gen := llm.NewChat(cfg.Chat.BaseURL, cfg.Chat.APIKey(), cfg.Chat.Model, "")

	opts := rag.DefaultOptions()
	opts.TopK = cfg.Retrieve.TopK
	opts.MaxContextBytes = cfg.Retrieve.MaxContextBytes
	opts.ServerFusion = serverFusion || cfg.Retrieve.ServerFusion

	return rag.New(dispatcher, store, gen, opts, logger), func() { store.Close() }, nil
}

func answer(ctx context.Context, svc *rag.Service, question string) {
	ans, err := svc.Ask(ctx, question)
	if errors.Is(err, rag.ErrNoContext) {
		fmt.Println("No relevant context found.")
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return
	}

	fmt.Println(ans.Text)
	if len(ans.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range ans.Sources {
			fmt.Printf("  %s (%s, %.4f)\n", s.Path, s.Type, s.Score)
		}
	}
	fmt.Println()
}
