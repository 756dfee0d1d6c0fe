package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/metrics"
	"vecdb/internal/middleware"
)

// IndexConsumer handles vectorization.embedding_created: it mirrors the
// committed embedding into the searchable vector index. The index add is
// an upsert keyed by embedding id, so redeliveries converge.
type IndexConsumer struct {
	index  VectorIndex
	logger *slog.Logger
}

func NewIndexConsumer(index VectorIndex, logger *slog.Logger) *IndexConsumer {
	return &IndexConsumer{index: index, logger: logger}
}

func (c *IndexConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}
	var payload domain.EmbeddingCreated
	env, err := events.Unmarshal(m.Body, &payload)
	if err != nil {
		c.logger.Error("poison pill: invalid embedding event", "error", err)
		return nil
	}
	if env.EventName != domain.EventEmbeddingCreated {
		return nil
	}

	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}

	emb := domain.Embedding{
		ChunkID:             payload.ChunkID,
		EmbeddingStrategyID: payload.EmbeddingStrategyID,
		Vector:              payload.Vector,
		LibraryID:           payload.LibraryID,
		ConfigID:            payload.ConfigID,
	}

	start := time.Now()
	err = c.index.Add(ctx, emb)
	metrics.PipelineStageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineStageErrors.WithLabelValues("index").Inc()
		c.logger.ErrorContext(ctx, "index add failed", "error", err, "embedding_id", payload.EmbeddingID)
		return err // Retry
	}
	c.logger.InfoContext(ctx, "embedding indexed", "embedding_id", payload.EmbeddingID, "library_id", payload.LibraryID)
	return nil
}
