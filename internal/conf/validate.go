package conf

import (
	"fmt"
	"strings"
)

// ValidationError holds field-level validation failures for a settings load.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings checks the loaded settings for inconsistencies that would
// make the tracker misbehave at runtime.
func ValidateSettings(settings *Settings) error {
	var ve ValidationError

	if settings.Tracking.CrossCameraWindow <= 0 {
		ve.Errors = append(ve.Errors, "tracking.crosscamerawindow must be positive")
	}
	if settings.Tracking.SameCameraDebounce <= 0 {
		ve.Errors = append(ve.Errors, "tracking.samecameradebounce must be positive")
	}
	if settings.Tracking.MinPersonConfidence < 0 || settings.Tracking.MinPersonConfidence > 1 {
		ve.Errors = append(ve.Errors, "tracking.minpersonconfidence must be between 0 and 1")
	}
	if settings.Tracking.QueueSize <= 0 {
		ve.Errors = append(ve.Errors, "tracking.queuesize must be positive")
	}

	if settings.Images.Enabled {
		if settings.Images.MaxPerWalker <= 0 {
			ve.Errors = append(ve.Errors, "images.maxperwalker must be positive")
		}
		if settings.Images.StoragePath == "" {
			ve.Errors = append(ve.Errors, "images.storagepath must be set")
		}
	}

	if settings.Frigate.MQTT.Broker == "" {
		ve.Errors = append(ve.Errors, "frigate.mqtt.broker must be set")
	}

	for name, cam := range settings.Cameras {
		if cam.PathName == "" {
			ve.Errors = append(ve.Errors, fmt.Sprintf("cameras.%s.pathname must be set", name))
		}
	}

	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		ve.Errors = append(ve.Errors, "only one of output.sqlite and output.mysql may be enabled")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		ve.Errors = append(ve.Errors, "one of output.sqlite and output.mysql must be enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
