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
	"vecdb/internal/uow"
)

// ParseConsumer handles document.fragment_received: it parses the
// fragment into typed extracted contents and, on the final fragment,
// closes the document's ingestion state machine.
//
// Parsing per fragment starts as soon as each fragment lands; it never
// waits for the upload to finish.
type ParseConsumer struct {
	starter  uow.Starter
	pub      events.Publisher
	parser   Parser
	contents ContentSource
	logger   *slog.Logger
}

func NewParseConsumer(starter uow.Starter, pub events.Publisher, parser Parser, contents ContentSource, logger *slog.Logger) *ParseConsumer {
	return &ParseConsumer{starter: starter, pub: pub, parser: parser, contents: contents, logger: logger}
}

func (c *ParseConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}
	var payload domain.DocumentFragmentReceived
	env, err := events.Unmarshal(m.Body, &payload)
	if err != nil {
		// Poison pill: invalid JSON, don't retry.
		c.logger.Error("poison pill: invalid fragment event", "error", err)
		return nil
	}
	if env.EventName != domain.EventDocumentFragmentReceived {
		return nil
	}

	ctx := context.Background()
	if env.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, env.CorrelationID)
	}
	start := time.Now()
	err = c.parseFragment(ctx, payload)
	metrics.PipelineStageDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PipelineStageErrors.WithLabelValues("parse").Inc()
		c.logger.ErrorContext(ctx, "fragment parse failed", "error", err,
			"document_id", payload.DocumentID, "fragment_id", payload.FragmentID)
		return err // Retry
	}
	return nil
}

func (c *ParseConsumer) parseFragment(ctx context.Context, payload domain.DocumentFragmentReceived) error {
	return uow.Do(ctx, c.starter, c.pub, func(ctx context.Context, u uow.UnitOfWork) error {
		lib, err := u.Libraries().Get(ctx, payload.LibraryID)
		if err != nil {
			return err
		}
		doc, err := lib.GetDocument(ctx, payload.DocumentID)
		if err != nil {
			return err
		}
		frag, err := doc.GetFragment(ctx, payload.FragmentID)
		if err != nil {
			return err
		}

		existing, err := c.contents.ListExtractedContents(ctx, doc.ID)
		if err != nil {
			return err
		}
		// Redelivery guard: a fragment that already produced extracted
		// content was parsed by a previous delivery.
		for _, ec := range existing {
			if ec.FragmentID == frag.ID {
				return nil
			}
		}

		parsed, parseErr := c.parser.Parse(frag)
		if parseErr != nil {
			// Deterministic failure: record it instead of retrying
			// forever. A document still mid-upload cannot be failed yet,
			// so the FAILED content row carries the verdict until the
			// final fragment lands.
			c.logger.WarnContext(ctx, "unparseable fragment", "error", parseErr,
				"document_id", doc.ID, "fragment_id", frag.ID)
			failed, err := domain.NewFailedExtractedContent(doc.ID, frag.ID, parseErr.Error())
			if err != nil {
				return err
			}
			if err := lib.AddDocumentExtractedContent(ctx, doc.ID, failed); err != nil {
				return err
			}
			if doc.Status == domain.DocumentStatusProcessing {
				return lib.MarkDocumentParsed(ctx, doc.ID, true)
			}
			return nil
		}

		seqs := nextModalitySequences(existing)
		for i, p := range parsed {
			seqs[p.Modality]++
			isLast := payload.IsFinal && lastOfModality(parsed, i)
			ec, err := domain.NewExtractedContent(doc.ID, frag.ID, p.Content, p.Modality, seqs[p.Modality], isLast)
			if err != nil {
				return err
			}
			if err := lib.AddDocumentExtractedContent(ctx, doc.ID, ec); err != nil {
				return err
			}
		}

		if payload.IsFinal {
			// An earlier fragment may have failed while the upload was
			// still streaming; its FAILED row decides the outcome now.
			return lib.MarkDocumentParsed(ctx, doc.ID, hasFailedContent(existing))
		}
		return nil
	})
}

func hasFailedContent(ecs []*domain.ExtractedContent) bool {
	for _, ec := range ecs {
		if ec.Status == domain.ExtractedFailed {
			return true
		}
	}
	return false
}

// nextModalitySequences reads the highest persisted sequence per
// modality so new contents continue the 1-indexed numbering.
func nextModalitySequences(existing []*domain.ExtractedContent) map[domain.Modality]int {
	seqs := make(map[domain.Modality]int)
	for _, ec := range existing {
		if ec.ModalitySequenceNumber > seqs[ec.Modality] {
			seqs[ec.Modality] = ec.ModalitySequenceNumber
		}
	}
	return seqs
}

// lastOfModality reports whether parsed[i] is the final entry of its
// modality within the batch.
func lastOfModality(parsed []ParsedContent, i int) bool {
	for j := i + 1; j < len(parsed); j++ {
		if parsed[j].Modality == parsed[i].Modality {
			return false
		}
	}
	return true
}
