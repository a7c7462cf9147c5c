package sensor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/antonholmquist/jason"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout = 30 * time.Second
	disconnectQuiesceMs   = 250
)

// MQTTConfig configures an MQTT-fed source.
type MQTTConfig struct {
	Broker           string // e.g. tcp://localhost:1883
	ClientID         string
	Username         string
	Password         string
	TemperatureTopic string
	HumidityTopic    string
	ConnectTimeout   time.Duration
}

// MQTT keeps the latest temperature and humidity published on two
// topics. Payloads are a bare number or a JSON object with a numeric
// "value" field.
type MQTT struct {
	cfg       MQTTConfig
	logger    *slog.Logger
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu     sync.Mutex
	client mqtt.Client

	temp     reading
	humidity reading
}

// NewMQTT creates a source. Nothing connects until Start.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker required")
	}
	if cfg.TemperatureTopic == "" && cfg.HumidityTopic == "" {
		return nil, errors.New("at least one sensor topic required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "ecowatch"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTT{cfg: cfg, logger: logger, newClient: mqtt.NewClient}, nil
}

// Start connects and subscribes. Subscriptions are renewed on every
// reconnect.
func (s *MQTT) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	opts.SetUsername(s.cfg.Username)
	opts.SetPassword(s.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("sensor feed connection lost", "broker", s.cfg.Broker, "error", err)
	})

	client := s.newClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return ctx.Err()
	case <-time.After(s.cfg.ConnectTimeout):
		client.Disconnect(0)
		return fmt.Errorf("connect to %s: timeout", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Broker, err)
	}

	s.client = client
	s.logger.Info("sensor feed started", "broker", s.cfg.Broker)
	return nil
}

// Stop unsubscribes and disconnects. Readings are cleared: a stopped
// source has no current values.
func (s *MQTT) Stop() {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return
	}

	if topics := s.topics(); len(topics) > 0 && client.IsConnected() {
		client.Unsubscribe(topics...).WaitTimeout(time.Second)
	}
	client.Disconnect(disconnectQuiesceMs)
	s.temp.clear()
	s.humidity.clear()
	s.logger.Info("sensor feed stopped", "broker", s.cfg.Broker)
}

func (s *MQTT) CurrentTemperature() *float64 { return s.temp.get() }
func (s *MQTT) CurrentHumidity() *float64    { return s.humidity.get() }

func (s *MQTT) topics() []string {
	var topics []string
	for _, t := range []string{s.cfg.TemperatureTopic, s.cfg.HumidityTopic} {
		if t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

func (s *MQTT) onConnect(client mqtt.Client) {
	for _, topic := range s.topics() {
		token := client.Subscribe(topic, 0, s.onMessage)
		if !token.WaitTimeout(s.cfg.ConnectTimeout) {
			s.logger.Error("sensor subscribe timed out", "topic", topic, "timeout", s.cfg.ConnectTimeout)
			continue
		}
		if err := token.Error(); err != nil {
			s.logger.Error("sensor subscribe failed", "topic", topic, "error", err)
			continue
		}
		s.logger.Debug("subscribed to sensor topic", "topic", topic)
	}
}

func (s *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	v, err := parsePayload(msg.Payload())
	if err != nil {
		s.logger.Warn("ignoring sensor payload", "topic", msg.Topic(), "error", err)
		return
	}
	switch msg.Topic() {
	case s.cfg.TemperatureTopic:
		s.temp.set(v)
	case s.cfg.HumidityTopic:
		s.humidity.set(v)
	}
}

// parsePayload accepts "21.5" or {"value": 21.5}.
func parsePayload(b []byte) (float64, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0, errors.New("empty payload")
	}
	if b[0] != '{' {
		v, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", b)
		}
		return v, nil
	}
	obj, err := jason.NewObjectFromBytes(b)
	if err != nil {
		return 0, fmt.Errorf("parse json payload: %w", err)
	}
	v, err := obj.GetFloat64("value")
	if err != nil {
		return 0, fmt.Errorf("json payload: %w", err)
	}
	return v, nil
}
