// Package publish sends finished predictions to an MQTT broker. Publication
// is optional and best effort; the prediction service only logs failures.
package publish

import (
	"context"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/f1predict/f1predict/internal/conf"
	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/logger"
	"github.com/f1predict/f1predict/internal/prediction"
)

// Defaults
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultQoS            = 0
	disconnectQuiesceMs   = 250
)

// Publisher publishes predictions.
type Publisher interface {
	Publish(ctx context.Context, p *prediction.Prediction) error
	Close() error
}

// Nop discards predictions.
type Nop struct{}

func (Nop) Publish(context.Context, *prediction.Prediction) error { return nil }
func (Nop) Close() error                                          { return nil }

// Config holds the broker connection settings.
type Config struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	Topic          string // predictions go to <Topic>/<circuit_key>
	Retain         bool
	ConnectTimeout time.Duration
	Logger         logger.Logger
}

// MQTTPublisher publishes predictions as JSON with paho.
type MQTTPublisher struct {
	cfg    Config
	log    logger.Logger
	client mqtt.Client

	mu sync.Mutex
}

// newClient is replaced in tests.
var newClient = mqtt.NewClient

// NewMQTTPublisher creates a publisher; call Connect before publishing.
func NewMQTTPublisher(cfg Config) *MQTTPublisher {
	if cfg.ClientID == "" {
		cfg.ClientID = "f1predict-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	p := &MQTTPublisher{cfg: cfg, log: cfg.Logger}
	if p.log == nil {
		p.log = logger.Global().Module("publish")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.log.Info("connected to MQTT broker", logger.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.String("broker", cfg.Broker), logger.Error(err))
	})
	p.client = newClient(opts)
	return p
}

// Connect establishes the broker connection within the connect timeout.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := p.client.Connect()
	if err := wait(ctx, token, p.cfg.ConnectTimeout); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			NetworkContext(p.cfg.Broker, p.cfg.ConnectTimeout).
			Context("operation", "connect").
			Build()
	}
	return nil
}

// Topic returns the topic a prediction for circuitKey is published to.
func (p *MQTTPublisher) Topic(circuitKey string) string {
	return p.cfg.Topic + "/" + circuitKey
}

// Publish sends the prediction as JSON at QoS 0.
func (p *MQTTPublisher) Publish(ctx context.Context, pred *prediction.Prediction) error {
	payload, err := json.Marshal(pred)
	if err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryProcessing).
			Build()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.client.IsConnected() {
		return errors.New(errors.NewStd("not connected to MQTT broker")).
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	topic := p.Topic(pred.CircuitKey)
	token := p.client.Publish(topic, DefaultQoS, p.cfg.Retain, payload)
	if err := wait(ctx, token, 0); err != nil {
		return errors.New(err).
			Component("publish").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	p.log.Debug("published prediction", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesceMs)
	}
	return nil
}

// wait blocks until the token completes, ctx ends or timeout passes.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-expired:
		return errors.NewStd("timed out waiting for broker")
	}
}

// NewFromSettings returns an MQTT publisher when mqtt.enabled is set, or Nop.
func NewFromSettings(ctx context.Context, settings *conf.Settings) (Publisher, error) {
	if !settings.MQTT.Enabled {
		return Nop{}, nil
	}
	p := NewMQTTPublisher(Config{
		Broker:   settings.MQTT.Broker,
		ClientID: settings.MQTT.ClientID,
		Username: settings.MQTT.Username,
		Password: settings.MQTT.Password,
		Topic:    settings.MQTT.Topic,
		Retain:   settings.MQTT.Retain,
	})
	if err := p.Connect(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
