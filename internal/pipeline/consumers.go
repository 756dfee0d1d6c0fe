package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/nsqio/go-nsq"

	"vecdb/internal/config"
)

// ConsumerGroup owns the NSQ consumers of the pipeline workers and stops
// them together on shutdown.
type ConsumerGroup struct {
	consumers []*nsq.Consumer
	logger    *slog.Logger
}

func NewConsumerGroup(logger *slog.Logger) *ConsumerGroup {
	return &ConsumerGroup{logger: logger}
}

// Subscribe attaches a handler to one (topic, channel) pair. Channels
// split the stages: each stage reads its topic on its own channel so
// every stage sees every message.
func (g *ConsumerGroup) Subscribe(cfg *config.Config, topic, channel string, handler nsq.Handler) error {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = cfg.PipelineConcurrency

	consumer, err := nsq.NewConsumer(topic, channel, nsqCfg)
	if err != nil {
		return fmt.Errorf("create consumer %s/%s: %w", topic, channel, err)
	}
	consumer.AddConcurrentHandlers(handler, cfg.PipelineConcurrency)
	if cfg.NSQLookupd != "" {
		if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
			return fmt.Errorf("connect %s/%s to nsqlookupd: %w", topic, channel, err)
		}
	} else {
		// No lookupd configured, talk to nsqd directly. Single-node
		// deployments and tests run this way.
		if err := consumer.ConnectToNSQD(cfg.NSQDHost); err != nil {
			return fmt.Errorf("connect %s/%s to nsqd: %w", topic, channel, err)
		}
	}
	g.consumers = append(g.consumers, consumer)
	g.logger.Info("consumer connected", "topic", topic, "channel", channel)
	return nil
}

// Stop signals all consumers and blocks until they drain.
func (g *ConsumerGroup) Stop() {
	for _, c := range g.consumers {
		c.Stop()
	}
	for _, c := range g.consumers {
		<-c.StopChan
	}
	g.logger.Info("consumers stopped")
}
