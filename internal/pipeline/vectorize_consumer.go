package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/metrics"
	"vecdb/internal/middleware"
	"vecdb/internal/uow"
)

// VectorizeConsumer handles vectorization.pending: it chunks every
// extracted content of the document per the config's strategies, embeds
// the chunks, and records the outcome in the status ledger.
//
// The stage is idempotent end to end. Chunk and embedding ids are
// deterministic, so a retried delivery recomputes the same ids, finds
// the embeddings already persisted, and skips the provider calls.
type VectorizeConsumer struct {
	starter  uow.Starter
	pub      events.Publisher
	contents ContentSource
	lookup   EmbeddingLookup
	embedder Embedder
	statuses StatusStore
	logger   *slog.Logger
}

func NewVectorizeConsumer(starter uow.Starter, pub events.Publisher, contents ContentSource, lookup EmbeddingLookup, embedder Embedder, statuses StatusStore, logger *slog.Logger) *VectorizeConsumer {
	return &VectorizeConsumer{
		starter:  starter,
		pub:      pub,
		contents: contents,
		lookup:   lookup,
		embedder: embedder,
		statuses: statuses,
		logger:   logger,
	}
}

func (c *VectorizeConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}
	var payload domain.DocumentVectorizationPending
	env, err := events.Unmarshal(m.Body, &payload)
	if err != nil {
		c.logger.Error("poison pill: invalid vectorization event", "error", err)
		return nil
	}
	if env.EventName != domain.EventVectorizationPending {
		return nil
	}

	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}

	start := time.Now()
	err = c.vectorize(ctx, payload)
	metrics.PipelineStageDuration.WithLabelValues("vectorize").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineStageErrors.WithLabelValues("vectorize").Inc()
		c.logger.ErrorContext(ctx, "vectorization failed", "error", err,
			"document_id", payload.DocumentID, "config_id", payload.ConfigID)
		return c.fail(ctx, payload, err)
	}
	return nil
}

func (c *VectorizeConsumer) vectorize(ctx context.Context, payload domain.DocumentVectorizationPending) error {
	err := c.statuses.Upsert(ctx, VectorizationStatus{
		DocumentID: payload.DocumentID,
		ConfigID:   payload.ConfigID,
		LibraryID:  payload.LibraryID,
		State:      StateProcessing,
	})
	if err != nil {
		return err
	}

	err = uow.Do(ctx, c.starter, c.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, payload.LibraryID)
		if err != nil {
			return err
		}
		cfg, err := u.Configs().Get(ctx, payload.ConfigID)
		if err != nil {
			return err
		}
		ecs, err := c.contents.ListExtractedContents(ctx, payload.DocumentID)
		if err != nil {
			return err
		}

		for _, ec := range ecs {
			if ec.Status == domain.ExtractedFailed {
				continue
			}
			if err := c.vectorizeContent(ctx, lib, cfg, ec); err != nil {
				return fmt.Errorf("extracted content %s: %w", ec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = c.statuses.Upsert(ctx, VectorizationStatus{
		DocumentID: payload.DocumentID,
		ConfigID:   payload.ConfigID,
		LibraryID:  payload.LibraryID,
		State:      StateCompleted,
	})
	if err != nil {
		return err
	}
	done := &domain.DocumentVectorizationCompleted{
		EventMeta:  domain.NewEventMeta(domain.EventVectorizationCompleted),
		DocumentID: payload.DocumentID,
		LibraryID:  payload.LibraryID,
		ConfigID:   payload.ConfigID,
	}
	return c.pub.PublishEvents(ctx, []domain.Event{done})
}

// vectorizeContent chunks one extracted content and embeds what the
// config's embedder accepts. Contents whose modality has no chunking
// strategy are skipped, not failed.
func (c *VectorizeConsumer) vectorizeContent(ctx context.Context, lib *domain.Library, cfg *domain.VectorizationConfig, ec *domain.ExtractedContent) error {
	strategy, ok := cfg.ChunkingStrategyFor(ec.Modality)
	if !ok {
		return nil
	}
	chunker, err := ChunkerFor(strategy.Behavior)
	if err != nil {
		return err
	}
	pieces, err := chunker.Chunk(ec.Content, strategy)
	if err != nil {
		return err
	}

	embed := cfg.EmbeddingStrategy.CanEmbed(ec.Modality)
	for _, piece := range pieces {
		chunk, err := domain.NewChunk(lib.ID, ec.DocumentID, ec.ID, ec.Modality, piece, strategy.ID)
		if err != nil {
			return err
		}
		chunk = lib.AddChunk(chunk)
		if !embed {
			continue
		}

		embID := domain.NewEmbeddingID(chunk.ID(), cfg.EmbeddingStrategy.ID)
		if _, cached := lib.GetEmbedding(embID); cached {
			continue
		}
		exists, err := c.lookup.EmbeddingExists(ctx, embID)
		if err != nil {
			return err
		}
		if exists {
			metrics.EmbeddingsDeduplicated.Inc()
			continue
		}

		vector, err := c.embedder.Embed(ctx, chunk.Text())
		if err != nil {
			return fmt.Errorf("embed chunk %s: %w", chunk.ID(), err)
		}
		if len(vector) != cfg.EmbeddingStrategy.Dimensions {
			return fmt.Errorf("embedder returned %d dimensions, strategy %s expects %d",
				len(vector), cfg.EmbeddingStrategy.ID, cfg.EmbeddingStrategy.Dimensions)
		}
		emb, err := domain.NewEmbedding(chunk.ID(), cfg.EmbeddingStrategy.ID, vector, lib.ID, cfg.ID)
		if err != nil {
			return err
		}
		lib.AddEmbedding(emb, cfg.IndexingStrategy)
	}
	// The CHUNKED transition commits together with the chunks it covers.
	return lib.MarkExtractedContentChunked(ctx, ec)
}

// fail records the failure and signals it. A validation error is
// deterministic, so the message is dropped; anything else is retried.
func (c *VectorizeConsumer) fail(ctx context.Context, payload domain.DocumentVectorizationPending, cause error) error {
	st := VectorizationStatus{
		DocumentID: payload.DocumentID,
		ConfigID:   payload.ConfigID,
		LibraryID:  payload.LibraryID,
		State:      StateFailed,
		Error:      cause.Error(),
	}
	if err := c.statuses.Upsert(ctx, st); err != nil {
		c.logger.ErrorContext(ctx, "status upsert failed", "error", err)
	}
	failed := &domain.DocumentVectorizationFailed{
		EventMeta:  domain.NewEventMeta(domain.EventVectorizationFailed),
		DocumentID: payload.DocumentID,
		LibraryID:  payload.LibraryID,
		ConfigID:   payload.ConfigID,
		Reason:     cause.Error(),
	}
	if err := c.pub.PublishEvents(ctx, []domain.Event{failed}); err != nil {
		c.logger.ErrorContext(ctx, "failure event publish failed", "error", err)
	}

	var verr *domain.ValidationError
	if errors.As(cause, &verr) {
		return nil
	}
	return cause
}
