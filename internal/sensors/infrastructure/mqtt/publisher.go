// Package mqtt publishes snapshots to an MQTT broker through the gobot MQTT adaptor.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	gobotmqtt "gobot.io/x/gobot/v2/platforms/mqtt"

	"agro-simulator/internal/sensors/application"
	sensors "agro-simulator/internal/sensors/domain"
)

const (
	DefaultBrokerURL   = "tcp://localhost:1883"
	DefaultTopicPrefix = "agro/algodao"

	topicSensors  = "sensores"
	topicCommands = "comandos"
	topicOverlay  = "painel_forcado"
)

// ErrPublishRejected is returned when the adaptor refuses a message, usually because the
// broker connection is down.
var ErrPublishRejected = errors.New("mqtt: publish rejected")

// broker is the subset of the gobot adaptor used by the publisher.
type broker interface {
	Connect() error
	Finalize() error
	Publish(topic string, message []byte) bool
	PublishAndRetain(topic string, message []byte) bool
	On(topic string, f func(msg gobotmqtt.Message)) bool
}

// Config configures the publisher.
type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// Publisher implements application.Publisher over MQTT topics.
type Publisher struct {
	broker broker
	prefix string
	logger *log.Logger

	mu        sync.Mutex
	connected bool
}

var _ application.Publisher = (*Publisher)(nil)

// NewPublisher constructs a publisher with a gobot MQTT adaptor.
func NewPublisher(cfg Config, logger *log.Logger) (*Publisher, error) {
	if cfg.BrokerURL == "" {
		cfg.BrokerURL = DefaultBrokerURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "agro-simulator-" + uuid.NewString()[:8]
	}
	var adaptor *gobotmqtt.Adaptor
	if cfg.Username != "" {
		adaptor = gobotmqtt.NewAdaptorWithAuth(cfg.BrokerURL, cfg.ClientID, cfg.Username, cfg.Password)
	} else {
		adaptor = gobotmqtt.NewAdaptor(cfg.BrokerURL, cfg.ClientID)
	}
	adaptor.SetAutoReconnect(true)
	return newPublisher(adaptor, cfg.TopicPrefix, logger)
}

func newPublisher(b broker, prefix string, logger *log.Logger) (*Publisher, error) {
	if b == nil {
		return nil, errors.New("mqtt: nil broker")
	}
	if logger == nil {
		logger = log.Default()
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Publisher{broker: b, prefix: prefix, logger: logger}, nil
}

// Topic returns the full topic for a leaf name.
func (p *Publisher) Topic(leaf string) string {
	return p.prefix + "/" + leaf
}

// TestConnection connects to the broker.
func (p *Publisher) TestConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}
	if err := p.broker.Connect(); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	p.connected = true
	p.logger.Printf("mqtt: connected prefix=%s", p.prefix)
	return nil
}

// PublishSnapshot publishes the snapshot record.
func (p *Publisher) PublishSnapshot(ctx context.Context, snapshot sensors.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.Topic(topicSensors), payload, false)
}

// SetOverlay publishes the forced panel as a retained message.
func (p *Publisher) SetOverlay(ctx context.Context, overlay sensors.PanelOverlay) error {
	payload, err := json.Marshal(overlay)
	if err != nil {
		return err
	}
	return p.publish(ctx, p.Topic(topicOverlay), payload, true)
}

// ClearOverlay removes the retained forced panel.
func (p *Publisher) ClearOverlay(ctx context.Context) error {
	return p.publish(ctx, p.Topic(topicOverlay), []byte{}, true)
}

// SubscribeCommands subscribes to the commands topic and blocks until ctx is cancelled.
func (p *Publisher) SubscribeCommands(ctx context.Context, handler application.CommandHandler) error {
	if err := p.TestConnection(ctx); err != nil {
		return err
	}
	topic := p.Topic(topicCommands)
	ok := p.broker.On(topic, func(msg gobotmqtt.Message) {
		cmd, err := decodeCommand(msg.Payload())
		if err != nil {
			p.logger.Printf("mqtt: malformed command on %s: %v", topic, err)
			return
		}
		if cmd != nil {
			handler(cmd)
		}
	})
	if !ok {
		return fmt.Errorf("mqtt: subscribe %s failed", topic)
	}
	<-ctx.Done()
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	p.connected = false
	return p.broker.Finalize()
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var ok bool
	if retain {
		ok = p.broker.PublishAndRetain(topic, payload)
	} else {
		ok = p.broker.Publish(topic, payload)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrPublishRejected, topic)
	}
	return nil
}

// decodeCommand returns nil for an empty or null payload.
func decodeCommand(payload []byte) (*sensors.ForceCommand, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var cmd sensors.ForceCommand
	if err := json.Unmarshal([]byte(trimmed), &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}
