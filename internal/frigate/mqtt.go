// mqtt.go: Package frigate consumes detection events from a Frigate NVR
// over MQTT and exposes its HTTP API for frame retrieval.
package frigate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanceAddiction/DogShitAEye/internal/logging"
)

// Topics Frigate publishes detection data on. The wildcard topics carry
// per-camera object counts for each tracked label.
const (
	TopicEvents      = "frigate/events"
	TopicPersonCount = "frigate/+/person"
	TopicDogCount    = "frigate/+/dog"
)

// MessageHandler receives every message from a subscribed topic. Handlers
// run on the paho client's router goroutine and must not block.
type MessageHandler func(topic string, payload []byte)

// Client defines the interface for the Frigate MQTT subscription.
type Client interface {
	// Connect attempts to connect to the MQTT broker and subscribe to the
	// Frigate topics. It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topics            []string
	ReconnectCooldown time.Duration
	ReconnectDelay    time.Duration
	// Connection timeouts
	ConnectTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// Package-level logger for Frigate related events
var frigateLogger *slog.Logger

func init() {
	var err error
	frigateLogger, _, err = logging.NewFileLogger("logs/frigate.log", "frigate", slog.LevelInfo)
	if err != nil {
		logging.Error("Failed to initialize Frigate file logger", "error", err)
		// Fallback to the default structured logger
		frigateLogger = logging.Structured().With("service", "frigate")
		if frigateLogger == nil {
			panic(fmt.Sprintf("Failed to initialize any logger for Frigate service: %v", err))
		}
		logging.Warn("Frigate service falling back to default logger due to file logger initialization error.")
	}
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topics:            []string{TopicEvents, TopicPersonCount, TopicDogCount},
		ReconnectCooldown: 5 * time.Second,
		ReconnectDelay:    1 * time.Second,
		ConnectTimeout:    30 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}
