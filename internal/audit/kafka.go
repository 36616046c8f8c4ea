package audit

import (
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"

	"ccfallback/internal/logger"
)

const topic = "ccfallback-routing-events"

// KafkaSink publishes Events to a single Kafka topic via an async
// producer, mirroring the teacher's Producer.SendTaskEvent shape.
type KafkaSink struct {
	producer sarama.AsyncProducer
	log      *slog.Logger
}

// NewKafkaSink dials brokers and starts draining the producer's error
// channel in the background, per the teacher's pattern of exposing
// Errors() for the caller to drain rather than leaving it to block
// internally. Successes are not returned (Return.Successes is false), so
// there is no success channel to drain.
func NewKafkaSink(brokers []string) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	sink := &KafkaSink{producer: producer, log: logger.WithComponent("audit")}
	go sink.drainErrors()
	return sink, nil
}

func (s *KafkaSink) drainErrors() {
	for perr := range s.producer.Errors() {
		s.log.Warn("audit: failed to publish routing event", "error", perr.Err.Error())
	}
}

// Publish is best-effort and non-blocking: a marshal failure is logged
// and dropped, and the send itself goes through the producer's buffered
// input channel rather than waiting for a broker ack.
func (s *KafkaSink) Publish(event Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		s.log.Warn("audit: failed to encode routing event", "error", err.Error())
		return
	}
	s.producer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.Provider),
		Value: sarama.ByteEncoder(raw),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}
}

// Close shuts down the underlying producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
