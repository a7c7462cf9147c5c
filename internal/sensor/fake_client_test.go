package sensor

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeClient is an mqtt.Client that connects instantly and lets tests
// publish straight into subscription handlers.
type fakeClient struct {
	opts *mqtt.ClientOptions

	mu           sync.Mutex
	connected    bool
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	disconnects  int

	// subscribeToken, when set, replaces the instantly completed token.
	subscribeToken func() mqtt.Token
}

func newFakeClient(opts *mqtt.ClientOptions) *fakeClient {
	return &fakeClient{opts: opts, handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	if c.opts.OnConnect != nil {
		c.opts.OnConnect(c)
	}
	return &mqtt.DummyToken{}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case string:
		b = []byte(p)
	case []byte:
		b = p
	}
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, &fakeMessage{topic: topic, payload: b})
	}
	return &mqtt.DummyToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = h
	if c.subscribeToken != nil {
		return c.subscribeToken()
	}
	return &mqtt.DummyToken{}
}

func (c *fakeClient) SubscribeMultiple(filters map[string]byte, h mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		c.Subscribe(topic, 0, h)
	}
	return &mqtt.DummyToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range topics {
		delete(c.handlers, t)
	}
	c.unsubscribed = append(c.unsubscribed, topics...)
	return &mqtt.DummyToken{}
}

func (c *fakeClient) AddRoute(topic string, h mqtt.MessageHandler) {
	c.Subscribe(topic, 0, h)
}

func (c *fakeClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// stalledToken never completes.
type stalledToken struct{}

func (stalledToken) Wait() bool                     { return false }
func (stalledToken) WaitTimeout(time.Duration) bool { return false }
func (stalledToken) Done() <-chan struct{}          { return make(chan struct{}) }
func (stalledToken) Error() error                   { return nil }
