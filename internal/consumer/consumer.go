// Package consumer owns the MQTT subscription lifecycle: connect,
// subscribe, single-threaded dispatch, reconnect with backoff and
// cooperative shutdown.
package consumer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBackoffInitial is the first reconnect delay.
	DefaultBackoffInitial = 2 * time.Second
	// DefaultBackoffMax caps the reconnect delay.
	DefaultBackoffMax = 30 * time.Second
	// DefaultMaxReconnectAttempts bounds one reconnect sequence;
	// exceeding it is fatal to the consumer.
	DefaultMaxReconnectAttempts = 10
)

// ErrReconnectExhausted is returned by Run when a reconnect sequence
// used up every attempt.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// Config describes the broker session.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	Topics         []string
	QoS            byte

	BackoffInitial       time.Duration
	BackoffMax           time.Duration
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.KeepAlive <= 0 {
		c.KeepAlive = 30 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = DefaultBackoffInitial
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
}

// Message is one inbound frame handed to the handler.
type Message struct {
	Topic   string
	Payload []byte
}

// Handler processes one message. It is invoked from the single Run
// goroutine, one message at a time, preserving delivery order.
type Handler func(msg Message)

// Consumer pulls messages from the broker and feeds them to the
// handler sequentially.
type Consumer struct {
	cfg     Config
	handler Handler
	client  mqtt.Client

	messages chan Message
	connLost chan error
	stop     chan struct{}
	stopOnce sync.Once

	// injection points for tests
	newClient func(opts *mqtt.ClientOptions) mqtt.Client
	sleep     func(time.Duration)
}

// New builds a Consumer for the given session and handler.
func New(cfg Config, handler Handler) *Consumer {
	cfg.applyDefaults()
	return &Consumer{
		cfg:       cfg,
		handler:   handler,
		messages:  make(chan Message, 1),
		connLost:  make(chan error, 1),
		stop:      make(chan struct{}),
		newClient: mqtt.NewClient,
		sleep:     time.Sleep,
	}
}

// Connect establishes the broker session and subscribes to the
// configured topics. Fatal at startup; during steady state the Run
// loop retries through reconnect instead.
func (c *Consumer) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.BrokerURL)
	opts.SetClientID(c.cfg.ClientID)
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username)
		opts.SetPassword(c.cfg.Password)
	}
	opts.SetKeepAlive(c.cfg.KeepAlive)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	// Reconnection policy is owned by the Run loop, not by paho.
	opts.SetAutoReconnect(false)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		select {
		case c.connLost <- err:
		default:
		}
	})

	c.client = c.newClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.BrokerURL, token.Error())
	}

	if err := c.subscribe(); err != nil {
		c.client.Disconnect(250)
		return err
	}
	return nil
}

func (c *Consumer) subscribe() error {
	for _, topic := range c.cfg.Topics {
		token := c.client.Subscribe(topic, c.cfg.QoS, c.onMessage)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt subscribe %s: %w", topic, token.Error())
		}
		log.WithFields(log.Fields{"topic": topic, "qos": c.cfg.QoS}).Info("Subscribed to topic")
	}
	return nil
}

// onMessage runs on paho's router goroutine. The payload is copied and
// queued for the Run loop; the small buffer plus a blocking send keeps
// delivery order and applies backpressure to the broker.
func (c *Consumer) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case c.messages <- Message{Topic: msg.Topic(), Payload: payload}:
	case <-c.stop:
		log.WithField("topic", msg.Topic()).Warn("Consumer stopping, message dropped")
	}
}

// Run is the consuming loop: one message at a time, full pipeline per
// message, reconnect with backoff on transport errors. It returns nil
// after Stop, or a fatal error when a reconnect sequence is exhausted.
func (c *Consumer) Run() error {
	for {
		select {
		case <-c.stop:
			c.shutdown()
			return nil
		case msg := <-c.messages:
			c.dispatch(msg)
		case err := <-c.connLost:
			log.WithError(err).Warn("Connection to broker lost, reconnecting")
			if rerr := c.reconnect(); rerr != nil {
				c.shutdown()
				return rerr
			}
		}
	}
}

// dispatch invokes the handler, guaranteeing that nothing escapes the
// handler boundary: one bad message must never take the loop down.
func (c *Consumer) dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"topic":   msg.Topic,
				"payload": Truncate(msg.Payload, 100),
				"panic":   r,
			}).Error("Message handler panicked")
		}
	}()
	c.handler(msg)
}

// reconnect retries the session with exponential backoff: 2s doubling
// to a 30s cap, at most MaxReconnectAttempts tries.
func (c *Consumer) reconnect() error {
	backoff := c.cfg.BackoffInitial
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		log.WithFields(log.Fields{
			"attempt": attempt,
			"backoff": backoff,
		}).Info("Waiting before reconnect attempt")
		c.sleep(backoff)

		select {
		case <-c.stop:
			return nil
		default:
		}

		if err := c.Connect(); err != nil {
			log.WithError(err).WithField("attempt", attempt).Warn("Reconnect attempt failed")
			backoff *= 2
			if backoff > c.cfg.BackoffMax {
				backoff = c.cfg.BackoffMax
			}
			continue
		}
		log.WithField("attempt", attempt).Info("Reconnected to broker")
		return nil
	}
	return fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, c.cfg.MaxReconnectAttempts)
}

// Stop requests a cooperative shutdown. The in-flight message finishes
// before the loop exits.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Consumer) shutdown() {
	if c.client == nil || !c.client.IsConnected() {
		return
	}
	for _, topic := range c.cfg.Topics {
		if token := c.client.Unsubscribe(topic); token.WaitTimeout(2*time.Second) && token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", topic).
				Warn("Failed to unsubscribe during shutdown")
		}
	}
	c.client.Disconnect(500)
	log.Info("Disconnected from broker")
}

// Truncate clips a payload for log output.
func Truncate(payload []byte, n int) string {
	if len(payload) <= n {
		return string(payload)
	}
	return string(payload[:n]) + "..."
}
