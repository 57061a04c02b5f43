package metrics

import (
	"context"
	"time"

	"github.com/kirillkom/scanreader/internal/core/domain"
	"github.com/kirillkom/scanreader/internal/core/ports"
)

type timedOCR struct {
	next    ports.OCREngine
	metrics *WorkerMetrics
}

// InstrumentOCR wraps an engine so every recognition call feeds the duration
// histogram.
func (m *WorkerMetrics) InstrumentOCR(next ports.OCREngine) ports.OCREngine {
	return &timedOCR{next: next, metrics: m}
}

func (t *timedOCR) Recognize(ctx context.Context, image []byte, pageNumber int) (ports.OCRResult, error) {
	started := time.Now()
	res, err := t.next.Recognize(ctx, image, pageNumber)
	t.metrics.OCRDuration.Observe(time.Since(started).Seconds())
	return res, err
}

type countedJobs struct {
	next    ports.JobStatusRepository
	metrics *WorkerMetrics
}

// InstrumentJobs wraps the checkpoint repository so failed progress writes
// are counted.
func (m *WorkerMetrics) InstrumentJobs(next ports.JobStatusRepository) ports.JobStatusRepository {
	return &countedJobs{next: next, metrics: m}
}

func (c *countedJobs) UpdateJobProgress(ctx context.Context, state domain.BulkJobState) error {
	err := c.next.UpdateJobProgress(ctx, state)
	if err != nil {
		c.metrics.CheckpointFailures.Inc()
	}
	return err
}

func (c *countedJobs) GetJobProgress(ctx context.Context, documentID string) (domain.BulkJobState, error) {
	return c.next.GetJobProgress(ctx, documentID)
}
