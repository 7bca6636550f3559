package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/encoding/json"

	"github.com/deltaflow/deltaflow/internal/config"
	"github.com/deltaflow/deltaflow/internal/timeseries"
)

const (
	mqttKeepAlive    = 60 * time.Second
	mqttPingTimeout  = 10 * time.Second
	mqttDisconnectMs = 250
	appendTimeout    = 5 * time.Second
)

// mqttPayload is the JSON form of a sample message. Plain numeric payloads
// are also accepted and treated as a bare value.
type mqttPayload struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// mqttSource subscribes to <topic_prefix>/<device>/<measurement> and appends
// each received value to the corresponding stream. Timestamps are assigned
// server-side on receipt.
type mqttSource struct {
	src   config.Source
	store timeseries.Store
}

func newMQTTSource(src config.Source, store timeseries.Store) *mqttSource {
	return &mqttSource{src: src, store: store}
}

// Run connects to the broker and subscribes until ctx is cancelled. The
// initial connect is retried; after that the paho client reconnects and
// re-subscribes on its own.
func (s *mqttSource) Run(ctx context.Context) error {
	prefix := s.src.TopicPrefix
	if prefix == "" {
		prefix = "sensors"
	}
	filter := prefix + "/+/+"

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.src.Broker)
	opts.SetClientID(s.src.ClientID)
	opts.SetUsername(s.src.Username)
	opts.SetPassword(s.src.Password())
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(mqttKeepAlive)
	opts.SetPingTimeout(mqttPingTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("ingest: mqtt connection lost", "source", s.src.ID, "err", err)
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		// Re-subscribe on every (re)connect.
		if token := c.Subscribe(filter, 1, s.handleMessage); token.Wait() && token.Error() != nil {
			slog.Error("ingest: mqtt subscribe failed",
				"source", s.src.ID, "filter", filter, "err", token.Error())
			return
		}
		slog.Info("ingest: mqtt subscribed", "source", s.src.ID, "filter", filter)
	})

	client := mqtt.NewClient(opts)
	err := retry.Do(
		func() error {
			if token := client.Connect(); token.Wait() && token.Error() != nil {
				return token.Error()
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(2*time.Second),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("ingest: mqtt connect failed, retrying",
				"source", s.src.ID, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("ingest %q: mqtt connect: %w", s.src.ID, err)
	}

	<-ctx.Done()
	client.Disconnect(mqttDisconnectMs)
	slog.Info("ingest: mqtt stopped", "source", s.src.ID)
	return nil
}

func (s *mqttSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	device, measurement, ok := splitSampleTopic(msg.Topic())
	if !ok {
		slog.Warn("ingest: mqtt topic has no device/measurement segments",
			"source", s.src.ID, "topic", msg.Topic())
		return
	}

	value, unit, err := parseSamplePayload(msg.Payload())
	if err != nil {
		slog.Warn("ingest: mqtt payload rejected",
			"source", s.src.ID, "topic", msg.Topic(), "err", err)
		return
	}

	stream := timeseries.Selector{DeviceID: device, MeasurementID: measurement}.Stream()
	sample := timeseries.Sample{Time: time.Now().UTC(), Value: value}

	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	defer cancel()
	if err := s.store.Append(ctx, stream, sample, unit); err != nil {
		slog.Warn("ingest: append failed", "source", s.src.ID, "stream", stream, "err", err)
		return
	}
	slog.Debug("ingest: sample stored", "source", s.src.ID, "stream", stream, "value", value)
}

// splitSampleTopic extracts the device and measurement ids from the last two
// topic segments, e.g. "sensors/greenhouse-1/temperature".
func splitSampleTopic(topic string) (device, measurement string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return "", "", false
	}
	device = parts[len(parts)-2]
	measurement = parts[len(parts)-1]
	if device == "" || measurement == "" {
		return "", "", false
	}
	return device, measurement, true
}

// parseSamplePayload accepts either a JSON object {"value": .., "unit": ..}
// or a bare numeric payload.
func parseSamplePayload(payload []byte) (float64, string, error) {
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		var p mqttPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return 0, "", fmt.Errorf("decode json payload: %w", err)
		}
		return p.Value, p.Unit, nil
	}

	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse numeric payload %q: %w", trimmed, err)
	}
	return value, "", nil
}
