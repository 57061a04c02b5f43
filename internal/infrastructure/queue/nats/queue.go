// Package nats carries bulk extraction requests between the API and the
// worker over a NATS subject with a shared queue group.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/scanreader/internal/infrastructure/resilience"
)

const (
	subjectExtractRequested = "scanreader.extract.requested"
	workerQueueGroup        = "workers"
)

type Options struct {
	URL        string
	Resilience resilience.Config
}

// Queue implements ports.MessageQueue on a NATS connection.
type Queue struct {
	conn     *nats.Conn
	executor *resilience.Executor
	logger   *slog.Logger
}

func Connect(opts Options, logger *slog.Logger) (*Queue, error) {
	conn, err := nats.Connect(opts.URL,
		nats.Name("scanreader"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats_reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", opts.URL, err)
	}

	return &Queue{
		conn:     conn,
		executor: resilience.NewExecutor("nats", opts.Resilience, classifyError),
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if err := q.conn.Drain(); err != nil {
		q.logger.Warn("nats_drain_failed", "error", err)
	}
}

type extractRequested struct {
	DocumentID  string    `json:"document_id"`
	RequestedAt time.Time `json:"requested_at"`
}

func (q *Queue) PublishExtractRequested(ctx context.Context, documentID string) error {
	payload, err := json.Marshal(extractRequested{
		DocumentID:  documentID,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal extract request: %w", err)
	}

	err = q.executor.Execute(ctx, "publish", func(context.Context) error {
		return q.conn.Publish(subjectExtractRequested, payload)
	})
	if err != nil {
		return fmt.Errorf("publish extract request for %s: %w", documentID, err)
	}

	q.logger.Info("extract_request_published", "document_id", documentID)
	return nil
}

// SubscribeExtractRequested consumes requests in the worker queue group until
// the context ends, then drains the subscription. Handler errors are logged
// and the message dropped; re-running the bulk job is cheap because cached
// pages are skipped.
func (q *Queue) SubscribeExtractRequested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(subjectExtractRequested, workerQueueGroup, func(msg *nats.Msg) {
		var req extractRequested
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			q.logger.Error("extract_request_malformed", "error", err)
			return
		}
		if req.DocumentID == "" {
			q.logger.Error("extract_request_missing_document_id")
			return
		}

		if err := handler(ctx, req.DocumentID); err != nil {
			q.logger.Error("extract_request_failed", "document_id", req.DocumentID, "error", err)
			return
		}
		q.logger.Info("extract_request_handled", "document_id", req.DocumentID)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subjectExtractRequested, err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		q.logger.Warn("nats_subscription_drain_failed", "error", err)
	}
	return ctx.Err()
}
