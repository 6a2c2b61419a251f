package frigate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
)

func TestNewClientRequiresHandler(t *testing.T) {
	settings := &conf.Settings{}
	settings.Frigate.MQTT.Broker = "tcp://localhost:1883"

	_, err := NewClient(settings, nil, nil)
	assert.Error(t, err)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	settings := &conf.Settings{}
	settings.Main.Name = "DogWalker-Tracker"
	settings.Frigate.MQTT.Broker = "tcp://localhost:1883"

	c, err := NewClient(settings, nil, func(string, []byte) {})
	require.NoError(t, err)

	// Shutdown can race a supervisor's cleanup; a second Disconnect must
	// not panic on the reconnect stop channel.
	assert.NotPanics(t, func() {
		c.Disconnect()
		c.Disconnect()
	})
}
