// client.go: paho-backed implementation of the Frigate MQTT subscription.
package frigate

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/observability/metrics"
)

// client implements the Client interface.
type client struct {
	config          Config
	handler         MessageHandler
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	reconnectTimer  *time.Timer
	reconnectStop   chan struct{}
	stopOnce        sync.Once
	metrics         *metrics.MQTTMetrics
}

// NewClient creates a new Frigate MQTT client. Every message arriving on the
// subscribed topics is passed to handler.
func NewClient(settings *conf.Settings, m *metrics.MQTTMetrics, handler MessageHandler) (Client, error) {
	if handler == nil {
		return nil, fmt.Errorf("message handler is required")
	}
	cfg := DefaultConfig()
	cfg.Broker = settings.Frigate.MQTT.Broker
	cfg.ClientID = fmt.Sprintf("%s-%s", settings.Main.Name, uuid.New().String()[:8])
	cfg.Username = settings.Frigate.MQTT.Username
	cfg.Password = settings.Frigate.MQTT.Password

	return &client{
		config:        cfg,
		handler:       handler,
		reconnectStop: make(chan struct{}),
		metrics:       m,
	}, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return fmt.Errorf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt))
	}
	c.lastConnAttempt = time.Now()

	// Parse the broker URL
	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}

	host := u.Hostname()

	// Check if the host is an IP address
	if net.ParseIP(host) == nil {
		// It's not an IP address, so attempt to resolve it
		_, err = net.DefaultResolver.LookupHost(ctx, host)
		if err != nil {
			// If it's a DNS error, return it directly
			if dnsErr, ok := err.(*net.DNSError); ok {
				return dnsErr
			}
			// For other errors, wrap it
			return fmt.Errorf("failed to resolve hostname %s: %w", host, err)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetConnectRetry(true)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}

	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}

	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker. Safe to call more
// than once; shutdown paths can race a supervisor's cleanup.
func (c *client) Disconnect() {
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		if c.metrics != nil {
			c.metrics.UpdateConnectionStatus(false)
		}
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.stopOnce.Do(func() {
		close(c.reconnectStop)
	})
}

// onConnect subscribes to the Frigate topics. Subscriptions do not survive a
// clean-session reconnect, so they are re-established here on every connect.
func (c *client) onConnect(client mqtt.Client) {
	frigateLogger.Info("Connected to MQTT broker", "broker", c.config.Broker)
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}

	for _, topic := range c.config.Topics {
		token := client.Subscribe(topic, 0, c.onMessage)
		if !token.WaitTimeout(c.config.ConnectTimeout) || token.Error() != nil {
			frigateLogger.Error("Failed to subscribe to topic",
				"topic", topic,
				"error", token.Error())
			if c.metrics != nil {
				c.metrics.IncrementErrors()
			}
			continue
		}
		frigateLogger.Info("Subscribed to topic", "topic", topic)
	}
}

func (c *client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if c.metrics != nil {
		c.metrics.IncrementMessagesReceived(msg.Topic())
		c.metrics.ObserveMessageSize(float64(len(msg.Payload())))
	}
	c.handler(msg.Topic(), msg.Payload())
}

func (c *client) onConnectionLost(client mqtt.Client, err error) {
	frigateLogger.Warn("Connection to MQTT broker lost",
		"broker", c.config.Broker,
		"error", err)
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
		c.metrics.IncrementErrors()
	}
	c.startReconnectTimer()
}

func (c *client) startReconnectTimer() {
	c.reconnectTimer = time.AfterFunc(c.config.ReconnectDelay, func() {
		select {
		case <-c.reconnectStop:
			return
		default:
			c.reconnectWithBackoff()
		}
	})
}

func (c *client) reconnectWithBackoff() {
	backoff := time.Second
	maxBackoff := 5 * time.Minute

	for {
		if c.metrics != nil {
			c.metrics.IncrementReconnectAttempts()
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()

		if err == nil {
			frigateLogger.Info("Successfully reconnected to MQTT broker")
			return
		}

		if c.metrics != nil {
			c.metrics.IncrementErrors()
		}
		frigateLogger.Warn("Failed to reconnect to MQTT broker",
			"error", err,
			"retry_in", backoff.String())

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-c.reconnectStop:
			return
		}
	}
}
