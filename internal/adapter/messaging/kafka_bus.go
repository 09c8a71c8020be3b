package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/order-saga/internal/core/domain"
	"github.com/rl1809/order-saga/internal/metrics"
	"github.com/rl1809/order-saga/internal/port"
	"github.com/rl1809/order-saga/internal/tracing"
)

type KafkaConfig struct {
	Brokers      []string
	TopicPrefix  string
	GroupID      string
	BatchTimeout time.Duration
}

func (c KafkaConfig) topic(channel string) string {
	return c.TopicPrefix + channel
}

// KafkaPublisher writes each event to the topic named after its channel,
// keyed by order ID.
type KafkaPublisher struct {
	writer *kafka.Writer
	cfg    KafkaConfig
}

func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			BatchTimeout:           cfg.BatchTimeout,
			AllowAutoTopicCreation: true,
		},
		cfg: cfg,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, channel string, event domain.Event) error {
	ctx, span := tracing.Tracer().Start(ctx, "publish "+channel,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("order.id", event.OrderID)),
	)
	defer span.End()

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic:   p.cfg.topic(channel),
		Key:     []byte(event.OrderID),
		Value:   value,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		metrics.EventsPublishedTotal.WithLabelValues(channel, "error").Inc()
		return fmt.Errorf("write %s: %w", channel, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues(channel, "ok").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaSubscriber runs one consumer-group reader per subscribed channel.
// Offsets are committed after the handler returns, whatever its result.
type KafkaSubscriber struct {
	cfg    KafkaConfig
	logger *zap.Logger

	wg sync.WaitGroup
}

func NewKafkaSubscriber(cfg KafkaConfig, logger *zap.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{cfg: cfg, logger: logger}
}

func (s *KafkaSubscriber) Subscribe(ctx context.Context, channel string, handler port.Handler) error {
	if len(s.cfg.Brokers) == 0 {
		return errors.New("kafka: no brokers configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: s.cfg.Brokers,
		Topic:   s.cfg.topic(channel),
		GroupID: s.cfg.GroupID + "." + channel,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consume(ctx, channel, reader, handler); err != nil {
			s.logger.Error("consumer stopped", zap.String("channel", channel), zap.Error(err))
		}
	}()
	return nil
}

func (s *KafkaSubscriber) consume(ctx context.Context, channel string, reader *kafka.Reader, handler port.Handler) error {
	defer reader.Close()

	log := s.logger.With(zap.String("channel", channel))
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		s.handle(ctx, channel, msg, handler, log)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (s *KafkaSubscriber) handle(ctx context.Context, channel string, msg kafka.Message, handler port.Handler, log *zap.Logger) {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := tracing.Tracer().Start(msgCtx, "consume "+channel, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var ev domain.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		metrics.EventsConsumedTotal.WithLabelValues(channel, "malformed").Inc()
		log.Error("unmarshal failed, skipping", zap.Int64("offset", msg.Offset), zap.Error(err))
		return
	}
	span.SetAttributes(attribute.String("order.id", ev.OrderID))

	if err := handler(msgCtx, ev); err != nil {
		span.RecordError(err)
		metrics.EventsConsumedTotal.WithLabelValues(channel, "error").Inc()
		log.Error("event handler failed", zap.String("event_id", ev.ID),
			zap.String("order_id", ev.OrderID), zap.Error(err))
		return
	}
	metrics.EventsConsumedTotal.WithLabelValues(channel, "ok").Inc()
}

// Wait blocks until every consumer loop has exited. Cancel the subscription
// contexts first.
func (s *KafkaSubscriber) Wait() {
	s.wg.Wait()
}
