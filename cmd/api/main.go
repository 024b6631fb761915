// Command api serves the question-answering pipeline over HTTP.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/polyrag/polyrag/engine/embed"
	"github.com/polyrag/polyrag/engine/rag"
	"github.com/polyrag/polyrag/engine/semantic"
	"github.com/polyrag/polyrag/pkg/clip"
	"github.com/polyrag/polyrag/pkg/config"
	"github.com/polyrag/polyrag/pkg/llm"
	"github.com/polyrag/polyrag/pkg/metrics"
	"github.com/polyrag/polyrag/pkg/mid"
	"github.com/polyrag/polyrag/pkg/ollama"
)

var met = metrics.New()

var (
	mAsks      = met.Counter("polyrag_api_asks_total", "Questions answered")
	mNoContext = met.Counter("polyrag_api_no_context_total", "Questions with no retrievable context")
	mErrors    = met.Counter("polyrag_api_errors_total", "Failed questions")
	mAskDur    = met.Histogram("polyrag_api_ask_duration_seconds", "End-to-end ask latency", nil)
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		port       = flag.Int("port", 8080, "HTTP port")
		corsOrigin = flag.String("cors", "*", "allowed CORS origin")
	)
	flag.Parse()
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	text := ollama.New(cfg.TextEmbed.URL, cfg.TextEmbed.Model, cfg.TextEmbed.Dims, cfg.TextEmbed.RPS)
	var imageEnc embed.ImageEncoder
	if cfg.ImageEmbed.Enabled {
		imageEnc = clip.New(cfg.ImageEmbed.URL, cfg.ImageEmbed.Dims, cfg.ImageEmbed.RPS)
	}
	dispatcher := embed.NewDispatcher(text, imageEnc, logger)

	store, err := semantic.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection, dispatcher.Spaces())
	if err != nil {
		logger.Error("qdrant connect failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	gen := llm.NewChat(cfg.Chat.BaseURL, cfg.Chat.APIKey(), cfg.Chat.Model, "")

	opts := rag.DefaultOptions()
	opts.TopK = cfg.Retrieve.TopK
	opts.MaxContextBytes = cfg.Retrieve.MaxContextBytes
	opts.ServerFusion = cfg.Retrieve.ServerFusion

	svc := rag.New(dispatcher, store, gen, opts, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/ask", handleAsk(svc, logger))
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", met.Handler())

	handler := mid.Chain(mux,
		mid.Logger(logger),
		mid.Recover(logger),
		mid.CORS(*corsOrigin),
		mid.OTel("polyrag-api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func handleAsk(svc *rag.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST only"})
			return
		}

		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
			return
		}

		start := time.Now()
		ans, err := svc.Ask(r.Context(), req.Question)
		mAskDur.Since(start)

		switch {
		case errors.Is(err, rag.ErrNoContext):
			mNoContext.Inc()
			writeJSON(w, http.StatusOK, askResponse{Answer: "No relevant context found.", Sources: []rag.Source{}})
		case err != nil:
			mErrors.Inc()
			logger.Error("ask failed", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "answer generation failed"})
		default:
			mAsks.Inc()
			writeJSON(w, http.StatusOK, askResponse{Answer: ans.Text, Sources: ans.Sources})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
