package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/meshtools/meshdb/internal/observability"
)

const (
	defaultKeepAlive          = 30 * time.Second
	defaultConnectRetry       = 5 * time.Second
	defaultMessageBufferDepth = 1024
)

// Config holds connection parameters for the MQTT broker.
type Config struct {
	BrokerHost   string
	BrokerPort   int
	Username     string
	Password     string
	TopicPrefix  string
	TopicSuffix  string
	ClientID     string
	KeepAlive    time.Duration
	ReconnectGap time.Duration
	QueueSize    int
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// SubscriptionTopic joins prefix and suffix into a valid MQTT subscription topic.
func (c Config) SubscriptionTopic() string {
	prefix := strings.TrimSuffix(c.TopicPrefix, "/")
	suffix := strings.TrimPrefix(c.TopicSuffix, "/")

	switch {
	case prefix == "" && suffix == "":
		return "#"
	case prefix == "":
		return suffix
	case suffix == "":
		return prefix
	default:
		return prefix + "/" + suffix
	}
}

func (c *Config) normalise() {
	if c.KeepAlive == 0 {
		c.KeepAlive = defaultKeepAlive
	}
	if c.ReconnectGap == 0 {
		c.ReconnectGap = defaultConnectRetry
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultMessageBufferDepth
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BrokerHost) == "" {
		return errors.New("mqtt: broker host must be provided")
	}
	if c.BrokerPort <= 0 {
		return errors.New("mqtt: broker port must be positive")
	}
	return nil
}

// Message represents a received MQTT message.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
	Time     time.Time
}

// Client manages MQTT connectivity and exposes an async message stream.
type Client struct {
	cfg      Config
	client   mqtt.Client
	messages chan Message
	errs     chan error
	stopOnce sync.Once

	// mu orders late paho callbacks against channel close: enqueue holds the
	// read side while sending, stop takes the write side before closing.
	mu      sync.RWMutex
	stopped bool
}

// NewClient creates a Client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.normalise()

	return &Client{
		cfg:      cfg,
		messages: make(chan Message, cfg.QueueSize),
		errs:     make(chan error, 16),
	}, nil
}

// Messages returns a read-only channel with incoming MQTT messages.
func (c *Client) Messages() <-chan Message {
	return c.messages
}

// Errors returns asynchronous error notifications (connection loss, subscribe failures, etc.).
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Start connects to the broker and begins streaming messages until the context is cancelled.
func (c *Client) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.BrokerHost, c.cfg.BrokerPort))
	opts.SetOrderMatters(false)
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(c.cfg.ReconnectGap)
	opts.SetAutoReconnect(true)

	if c.cfg.ClientID != "" {
		opts.SetClientID(c.cfg.ClientID)
	}
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}

	topic := c.cfg.SubscriptionTopic()

	opts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.enqueue(Message{
			Topic:    msg.Topic(),
			Payload:  append([]byte(nil), msg.Payload()...),
			QoS:      msg.Qos(),
			Retained: msg.Retained(),
			Time:     time.Now(),
		})
	})

	opts.OnConnect = func(m mqtt.Client) {
		token := m.Subscribe(topic, 0, nil)
		token.Wait()
		if err := token.Error(); err != nil {
			c.publishErr(fmt.Errorf("mqtt: subscribe failed for %s: %w", topic, err))
		} else {
			c.cfg.Logger.Info("mqtt subscribed", slog.String("topic", topic))
		}
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.publishErr(fmt.Errorf("mqtt: connection lost: %w", err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect failed: %w", err)
	}

	c.client = client

	go func() {
		<-ctx.Done()
		c.stop()
	}()

	return nil
}

// Stop terminates the MQTT session and closes channels.
func (c *Client) Stop() {
	c.stop()
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		if c.client != nil && c.client.IsConnected() {
			c.client.Disconnect(250)
		}
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.messages)
		close(c.errs)
	})
}

// enqueue hands a received message to the consumer without blocking the paho
// callback. Messages arriving after shutdown or into a full queue are dropped
// and counted.
func (c *Client) enqueue(msg Message) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		c.cfg.Metrics.IncDroppedMessages()
		return
	}
	select {
	case c.messages <- msg:
	default:
		c.cfg.Metrics.IncDroppedMessages()
		c.cfg.Logger.Warn("mqtt message dropped, channel full", slog.String("topic", msg.Topic))
	}
}

func (c *Client) publishErr(err error) {
	if err == nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped {
		return
	}
	select {
	case c.errs <- err:
	default:
		c.cfg.Logger.Warn("mqtt error dropped", slog.Any("error", err))
	}
}
