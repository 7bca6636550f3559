package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/segmentio/encoding/json"
	"github.com/streadway/amqp"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

// amqpPayload is the JSON body of one sample message on the bus.
type amqpPayload struct {
	DeviceID      string  `json:"device"`
	MeasurementID string  `json:"measurement"`
	Value         float64 `json:"value"`
	Unit          string  `json:"unit"`
}

// amqpSource consumes sample messages from an AMQP topic exchange. It
// declares a non-durable auto-delete queue named after the source id and
// binds it to the configured topic keys.
type amqpSource struct {
	src   config.Source
	store timeseries.Store

	connection *amqp.Connection
	channel    *amqp.Channel
	queue      amqp.Queue
}

func newAMQPSource(src config.Source, store timeseries.Store) *amqpSource {
	return &amqpSource{src: src, store: store}
}

// Run consumes until ctx is cancelled or the broker closes the connection.
func (s *amqpSource) Run(ctx context.Context) error {
	err := retry.Do(
		s.setup,
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("ingest: amqp setup failed, retrying",
				"source", s.src.ID, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("ingest %q: amqp setup: %w", s.src.ID, err)
	}
	defer s.connection.Close()

	deliveries, err := s.channel.Consume(
		s.queue.Name,
		s.src.ID, // consumer tag
		true,     // autoAck
		false,    // exclusive
		false,    // noLocal
		false,    // noWait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("ingest %q: amqp consume: %w", s.src.ID, err)
	}

	slog.Info("ingest: amqp consuming",
		"source", s.src.ID, "queue", s.queue.Name, "topics", s.src.Topics)

	for {
		select {
		case <-ctx.Done():
			slog.Info("ingest: amqp stopped", "source", s.src.ID)
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("ingest %q: amqp delivery channel closed", s.src.ID)
			}
			s.handleDelivery(d)
		}
	}
}

func (s *amqpSource) setup() error {
	conn, err := amqp.Dial(s.src.DSN())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("channel: %w", err)
	}

	queue, err := ch.QueueDeclare(
		fmt.Sprintf("deltaflow-%s", s.src.ID),
		false, // durable
		true,  // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, topic := range s.src.Topics {
		if err := ch.QueueBind(queue.Name, topic, s.src.Exchange, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("bind topic %q: %w", topic, err)
		}
	}

	s.connection = conn
	s.channel = ch
	s.queue = queue
	return nil
}

func (s *amqpSource) handleDelivery(d amqp.Delivery) {
	var p amqpPayload
	if err := json.Unmarshal(d.Body, &p); err != nil {
		slog.Warn("ingest: amqp payload rejected",
			"source", s.src.ID, "routing_key", d.RoutingKey, "err", err)
		return
	}
	if p.DeviceID == "" || p.MeasurementID == "" {
		slog.Warn("ingest: amqp payload missing device/measurement",
			"source", s.src.ID, "routing_key", d.RoutingKey)
		return
	}

	stream := timeseries.Selector{DeviceID: p.DeviceID, MeasurementID: p.MeasurementID}.Stream()
	sample := timeseries.Sample{Time: time.Now().UTC(), Value: p.Value}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := s.store.Append(ctx, stream, sample, p.Unit); err != nil {
		slog.Warn("ingest: append failed", "source", s.src.ID, "stream", stream, "err", err)
		return
	}
	slog.Debug("ingest: sample stored", "source", s.src.ID, "stream", stream, "value", p.Value)
}
