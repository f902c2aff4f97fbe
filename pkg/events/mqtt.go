package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const (
	mqttQoS            = 1
	mqttPublishTimeout = 5 * time.Second
	mqttDisconnectWait = 250
)

// MQTTPublisher pushes the now-playing state to a creator's player devices.
// Messages are retained so a device that connects later still gets the
// current item.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
}

func NewMQTTPublisher(brokerURL, clientID, topicPrefix string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.OnConnect = func(mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("connected to MQTT broker")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newMQTTPublisher(client, topicPrefix), nil
}

func newMQTTPublisher(client mqtt.Client, topicPrefix string) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: topicPrefix}
}

func (m *MQTTPublisher) NowPlayingTopic(creatorID string) string {
	return fmt.Sprintf("%s/%s/now-playing", m.prefix, creatorID)
}

type nowPlaying struct {
	CreatorID string    `json:"creator_id"`
	StreamID  string    `json:"stream_id,omitempty"`
	Type      string    `json:"type,omitempty"`
	VideoID   string    `json:"extracted_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Idle      bool      `json:"idle"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish only reacts to playback changes; other events are ignored.
func (m *MQTTPublisher) Publish(ctx context.Context, event Event) error {
	payload := nowPlaying{
		CreatorID: event.CreatorID,
		Timestamp: event.Timestamp,
	}

	switch event.Type {
	case EventTypeStreamStarted:
		if event.Stream == nil {
			return fmt.Errorf("stream_started event without stream")
		}
		payload.StreamID = event.Stream.ID
		payload.Type = event.Stream.Type
		payload.VideoID = event.Stream.ExtractedID
		payload.Title = event.Stream.Title
	case EventTypeQueueDrained:
		payload.Idle = true
	default:
		return nil
	}

	message, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal now playing: %w", err)
	}

	topic := m.NowPlayingTopic(event.CreatorID)
	token := m.client.Publish(topic, mqttQoS, true, message)

	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

func (m *MQTTPublisher) Close() error {
	m.client.Disconnect(mqttDisconnectWait)
	return nil
}
