// Command index builds the vector index from a local directory: it scans on
// an interval, extracts and embeds new files, and upserts them into Qdrant.
// With -nats it can instead publish per-file jobs or consume them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/polyrag/polyrag/engine/embed"
	"github.com/polyrag/polyrag/engine/extract"
	"github.com/polyrag/polyrag/engine/index"
	"github.com/polyrag/polyrag/engine/semantic"
	"github.com/polyrag/polyrag/pkg/clip"
	"github.com/polyrag/polyrag/pkg/config"
	"github.com/polyrag/polyrag/pkg/llm"
	"github.com/polyrag/polyrag/pkg/metrics"
	"github.com/polyrag/polyrag/pkg/natsutil"
	"github.com/polyrag/polyrag/pkg/ollama"
)

var met = metrics.New()

var (
	mFiles    = met.Counter("polyrag_index_files_total", "Files indexed")
	mChunks   = met.Counter("polyrag_index_chunks_total", "Text chunks indexed")
	mImages   = met.Counter("polyrag_index_images_total", "Image points indexed")
	mSkipped  = met.Counter("polyrag_index_skipped_total", "Files skipped with errors")
	mLastScan = met.Gauge("polyrag_index_last_scan_timestamp", "Epoch of last directory scan")
	mScanDur  = met.Histogram("polyrag_index_scan_duration_seconds", "Full scan time", nil)
)

func main() {
	var (
		configPath  = flag.String("config", "", "YAML config file")
		dataDir     = flag.String("dir", "./data", "directory to index")
		recreate    = flag.Bool("recreate", false, "drop and recreate the collection")
		once        = flag.Bool("once", false, "scan once and exit")
		interval    = flag.Duration("interval", 30*time.Second, "scan interval")
		stateFile   = flag.String("state", "", "processed-files state file (default <dir>/.index-state.json)")
		natsURL     = flag.String("nats", "", "NATS URL; enables job consumer mode")
		publish     = flag.Bool("publish", false, "with -nats, publish one job per file instead of indexing")
		metricsPort = flag.Int("metrics-port", 9092, "metrics HTTP port")
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

	met.ServeAsync(*metricsPort)

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
	if err := store.EnsureCollection(ctx, *recreate); err != nil {
		logger.Error("ensure collection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to Qdrant",
		"collection", cfg.Qdrant.Collection,
		"spaces", len(dispatcher.Spaces()),
	)

	var transcriber extract.Transcriber
	if cfg.Chat.TranscribeModel != "" {
		transcriber = llm.NewTranscriber(cfg.Chat.BaseURL, cfg.Chat.APIKey(), cfg.Chat.TranscribeModel)
		logger.Info("transcription enabled", "model", cfg.Chat.TranscribeModel)
	}

	if *stateFile == "" {
		*stateFile = filepath.Join(*dataDir, ".index-state.json")
	}
	processed := loadState(*stateFile)

	ix := index.New(index.Deps{
		Extractor:  extract.New(transcriber, logger),
		Dispatcher: dispatcher,
		Store:      store,
		ChunkSize:  cfg.Index.ChunkSize,
		BatchSize:  cfg.Index.BatchSize,
		Logger:     logger,
		Dedup: func(path string, size int64) bool {
			return processed[stateKey(path, size)]
		},
	})

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			logger.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		if *publish {
			if err := publishJobs(ctx, nc, *dataDir, logger); err != nil {
				logger.Error("publish failed", "error", err)
				os.Exit(1)
			}
			return
		}

		sub, err := index.StartConsumer(nc, ix, logger)
		if err != nil {
			logger.Error("consumer start failed", "error", err)
			os.Exit(1)
		}
		defer sub.Unsubscribe()
		logger.Info("consuming index jobs", "subject", index.JobsSubject)
		<-ctx.Done()
		return
	}

	scan := func() {
		start := time.Now()
		mLastScan.Set(start.Unix())

		sum, err := ix.Run(ctx, *dataDir)
		if err != nil {
			logger.Error("scan failed", "error", err)
			return
		}
		mScanDur.Since(start)
		mFiles.Add(int64(sum.Files))
		mChunks.Add(int64(sum.Chunks))
		mImages.Add(int64(sum.Images))
		mSkipped.Add(int64(len(sum.Skipped)))

		markProcessed(*dataDir, sum, processed)
		saveState(*stateFile, processed)
	}

	logger.Info("indexing", "dir", *dataDir, "interval", *interval)
	scan()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case <-ticker.C:
			scan()
		}
	}
}

// publishJobs walks the directory and publishes one job per file.
func publishJobs(ctx context.Context, nc *nats.Conn, dataDir string, logger *slog.Logger) error {
	n := 0
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if extract.Classify(path) == extract.KindUnsupported {
			return nil
		}
		if err := natsutil.Publish(ctx, nc, index.JobsSubject, index.Job{Path: path}); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("published index jobs", "count", n)
	return nc.Flush()
}

func stateKey(path string, size int64) string {
	return fmt.Sprintf("%s:%d", path, size)
}

// markProcessed records every file the scan handled cleanly, so the next
// scan skips it. Skipped files stay unmarked and get retried.
func markProcessed(dataDir string, sum index.Summary, processed map[string]bool) {
	skipped := make(map[string]bool, len(sum.Skipped))
	for _, s := range sum.Skipped {
		skipped[s.Path] = true
	}

	filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || skipped[path] {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil {
			processed[stateKey(path, info.Size())] = true
		}
		return nil
	})
}

func loadState(path string) map[string]bool {
	m := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return m
	}
	json.Unmarshal(data, &m)
	return m
}

func saveState(path string, m map[string]bool) {
	data, _ := json.Marshal(m)
	os.WriteFile(path, data, 0o644)
}
