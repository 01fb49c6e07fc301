// Package mqtt is a control channel over an MQTT broker: commands are
// received from one topic and events are published to another.
package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

var ErrClosed = errors.New("the channel is closed")

const (
	incomingQueueSize = 64
	disconnectQuiesce = 250 // milliseconds
)

type Config struct {
	Broker   string
	ClientID string

	// Topic is where the commands are received from.
	Topic string

	// PublishTopic is where Send publishes to; Topic + "/events" if empty.
	PublishTopic string

	QoS byte
}

// Message is the JSON form of a message; a plain event name is
// accepted too.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type Channel struct {
	Config Config

	handlersLocker sync.Mutex
	handlers       map[string]capability.MessageHandler

	clientLocker sync.Mutex
	client       mqtt.Client

	incoming  chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

var _ capability.ControlChannel = (*Channel)(nil)

func New(cfg Config) *Channel {
	if cfg.PublishTopic == "" {
		cfg.PublishTopic = cfg.Topic + "/events"
	}
	return &Channel{
		Config:   cfg,
		handlers: map[string]capability.MessageHandler{},
		incoming: make(chan []byte, incomingQueueSize),
		closed:   make(chan struct{}),
	}
}

// ParseMessage accepts `mic_on`, `"mic_on"` and `{"event":"mic_on","data":...}`.
func ParseMessage(payload []byte) (string, []byte, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return "", nil, fmt.Errorf("empty message")
	}
	switch payload[0] {
	case '{':
		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", nil, fmt.Errorf("unable to parse the message '%s': %w", payload, err)
		}
		if msg.Event == "" {
			return "", nil, fmt.Errorf("no event name in the message '%s'", payload)
		}
		return msg.Event, msg.Data, nil
	case '"':
		var name string
		if err := json.Unmarshal(payload, &name); err != nil {
			return "", nil, fmt.Errorf("unable to parse the message '%s': %w", payload, err)
		}
		if name == "" {
			return "", nil, fmt.Errorf("empty event name")
		}
		return name, nil, nil
	default:
		if bytes.ContainsAny(payload, " \t\r\n") {
			return "", nil, fmt.Errorf("invalid event name '%s'", payload)
		}
		return string(payload), nil, nil
	}
}

func (c *Channel) OnMessage(name string, handler capability.MessageHandler) {
	c.handlersLocker.Lock()
	defer c.handlersLocker.Unlock()
	c.handlers[name] = handler
}

func (c *Channel) Off(name string) {
	c.handlersLocker.Lock()
	defer c.handlersLocker.Unlock()
	delete(c.handlers, name)
}

func (c *Channel) dispatch(ctx context.Context, payload []byte) {
	name, data, err := ParseMessage(payload)
	if err != nil {
		logger.Warnf(ctx, "%v", err)
		return
	}
	c.handlersLocker.Lock()
	handler := c.handlers[name]
	c.handlersLocker.Unlock()
	if handler == nil {
		logger.Debugf(ctx, "no handler for event '%s'", name)
		return
	}
	handler(ctx, name, data)
}

func (c *Channel) onPahoMessage(_ mqtt.Client, msg mqtt.Message) {
	select {
	case c.incoming <- msg.Payload():
	case <-c.closed:
	}
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects to the broker and dispatches the received messages in
// their arrival order until ctx is cancelled or Close is called.
func (c *Channel) Run(ctx context.Context) error {
	logger.Debugf(ctx, "Run")
	defer logger.Debugf(ctx, "/Run")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.Config.Broker)
	opts.SetClientID(c.Config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Second)
	opts.SetMaxReconnectInterval(5 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOrderMatters(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		logger.Infof(ctx, "connected to the MQTT broker %s", c.Config.Broker)
		token := client.Subscribe(c.Config.Topic, c.Config.QoS, c.onPahoMessage)
		if err := waitToken(ctx, token); err != nil {
			logger.Errorf(ctx, "unable to subscribe to '%s': %v", c.Config.Topic, err)
			return
		}
		logger.Debugf(ctx, "subscribed to '%s'", c.Config.Topic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnf(ctx, "MQTT connection lost: %v", err)
	})

	client := mqtt.NewClient(opts)
	c.clientLocker.Lock()
	c.client = client
	c.clientLocker.Unlock()
	defer func() {
		client.Disconnect(disconnectQuiesce)
		c.clientLocker.Lock()
		c.client = nil
		c.clientLocker.Unlock()
	}()

	if err := waitToken(ctx, client.Connect()); err != nil {
		return fmt.Errorf("unable to connect to the MQTT broker %s: %w", c.Config.Broker, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		case payload := <-c.incoming:
			c.dispatch(ctx, payload)
		}
	}
}

func (c *Channel) Send(ctx context.Context, name string, payload any) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	msg := Message{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("unable to serialize the payload of '%s': %w", name, err)
		}
		msg.Data = data
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("unable to serialize the message '%s': %w", name, err)
	}

	c.clientLocker.Lock()
	client := c.client
	c.clientLocker.Unlock()
	if client == nil || !client.IsConnectionOpen() {
		return fmt.Errorf("not connected to the MQTT broker")
	}

	if err := waitToken(ctx, client.Publish(c.Config.PublishTopic, c.Config.QoS, false, b)); err != nil {
		return fmt.Errorf("unable to publish to '%s': %w", c.Config.PublishTopic, err)
	}
	return nil
}

func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}
