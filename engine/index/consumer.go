package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/polyrag/polyrag/pkg/natsutil"
)

const (
	// JobsSubject carries single-file indexing jobs.
	JobsSubject = "polyrag.index.jobs"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "polyrag.index.dlq"
	// MaxRetries before a job goes to the DLQ.
	MaxRetries = 3
)

// Job asks the consumer to index one file.
type Job struct {
	Path string `json:"path"`
}

type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StartConsumer subscribes to the jobs subject and runs each job through the
// indexer. Failed jobs are re-published with an incremented retry header and
// dead-lettered after MaxRetries.
func StartConsumer(nc *nats.Conn, ix *Indexer, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return natsutil.Subscribe(nc, JobsSubject, func(ctx context.Context, job Job, msg *nats.Msg) {
		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		sum, err := ix.IndexFile(ctx, job.Path)
		if err == nil {
			logger.Info("index: job done", "path", job.Path, "chunks", sum.Chunks, "images", sum.Images)
			return
		}

		retries++
		logger.Error("index: job failed", "path", job.Path, "error", err, "retry", retries)

		if retries >= MaxRetries {
			dlq := dlqMessage{Job: job, Error: err.Error(), Retries: retries}
			if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
				logger.Error("index: DLQ publish failed", "error", perr)
			}
			return
		}

		retry := nats.NewMsg(JobsSubject)
		retry.Data = msg.Data
		retry.Header = nats.Header{}
		retry.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
		if perr := nc.PublishMsg(retry); perr != nil {
			logger.Error("index: retry publish failed", "error", perr)
		}
	})
}
