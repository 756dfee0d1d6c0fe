package vector

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"vecdb/internal/domain"
	"vecdb/internal/events"
	"vecdb/internal/middleware"
	"vecdb/internal/uow"
)

// SchemaConsumer provisions a Weaviate class when a config is created, so
// the index stage never races class creation. The similarity metric is
// fixed at class creation, which is why this must happen per config
// before any embedding of that config is indexed.
type SchemaConsumer struct {
	starter uow.Starter
	client  SchemaClient
	logger  *slog.Logger
}

func NewSchemaConsumer(starter uow.Starter, client SchemaClient, logger *slog.Logger) *SchemaConsumer {
	return &SchemaConsumer{starter: starter, client: client, logger: logger}
}

func (c *SchemaConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload struct {
		ConfigID domain.VectorizationConfigID `json:"config_id"`
	}
	env, err := events.Unmarshal(m.Body, &payload)
	if err != nil {
		c.logger.Error("dropping malformed message", "error", err)
		return nil
	}
	if env.EventName != domain.EventConfigCreated && env.EventName != domain.EventConfigVersionCreated {
		return nil
	}
	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}

	u, err := c.starter.Begin(ctx)
	if err != nil {
		return err
	}
	defer u.Rollback() //nolint:errcheck

	cfg, err := u.Configs().Get(ctx, payload.ConfigID)
	if err != nil {
		// A config we cannot load is either deleted or the message
		// predates the migration; neither resolves by retrying forever.
		if errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("config not found for schema provisioning", "config_id", payload.ConfigID)
			return nil
		}
		return err
	}

	if err := EnsureClass(ctx, c.client, cfg.ID, cfg.SimilarityMetric); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "vector class provisioned", "config_id", cfg.ID, "class", ClassNameFor(cfg.ID))
	return nil
}
