package history

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams each record as JSON keyed by record id.
type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaSink creates an async writer; delivery errors are logged from the writer's completion callback.
func NewKafkaSink(brokers string, topic string, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("kafka")
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("record export failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return NewKafkaSinkWithWriter(writer, logger)
}

func NewKafkaSinkWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{writer: writer, timeout: 5 * time.Second, logger: logger}
}

func (k *KafkaSink) Publish(record model.TransmissionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(record.Id),
		Value: data,
		Time:  record.Time(),
	})
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
