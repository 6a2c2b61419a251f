// Package conf loads and validates the application configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// CameraConfig describes one monitored camera and the walking path it covers.
type CameraConfig struct {
	Zone     string // named zone within the camera's field of view
	PathName string // walking path the camera observes
}

// TrackingConfig holds the identity-matching thresholds.
type TrackingConfig struct {
	CrossCameraWindow   time.Duration // window within which cross-camera detections may join
	SameCameraDebounce  time.Duration // minimum gap before a same-camera redetection counts as new
	MinPersonConfidence float64       // minimum person confidence reported by detections
	DogCorrelation      time.Duration // window for pairing a dog count with a person count
	SessionTimeout      time.Duration // inactivity after which an open walk session is closed
	SessionPoll         time.Duration // how often to poll for stale sessions
	QueueSize           int           // bounded event queue size between MQTT and the tracker
}

// ImagesConfig holds evidence image capture and retention settings.
type ImagesConfig struct {
	Enabled      bool    // true to capture frames for resolved walkers
	StoragePath  string  // directory for stored images
	MaxPerWalker int     // retention bound per walker
	FrameQuality float64 // quality score assigned to latest-frame captures
}

// FrigateConfig holds connection settings for the Frigate NVR.
type FrigateConfig struct {
	Host string // Frigate HTTP API host
	Port int    // Frigate HTTP API port

	MQTT struct {
		Broker   string // MQTT broker URI, e.g. tcp://localhost:1883
		Username string
		Password string
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

// Settings is the application configuration tree, unmarshaled from viper.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of this tracker node, used as MQTT client id prefix
		Log  LogConfig // main logging configuration
	}

	Frigate FrigateConfig

	// Cameras maps Frigate camera names to their zone/path configuration.
	// Detections from cameras not present here are dropped at ingestion.
	Cameras map[string]CameraConfig

	Tracking TrackingConfig

	Images ImagesConfig

	Analytics struct {
		SuspiciousThreshold int // minimum walk count before a never-with-dog walker is flagged
		RegularWalkerDays   int // lookback window for regular-walker queries
	}

	WebServer struct {
		Enabled bool
		Port    int
	}

	Output struct {
		SQLite struct {
			Enabled bool
			Path    string
		}

		MySQL struct {
			Enabled  bool
			Username string
			Password string
			Database string
			Host     string
			Port     string
		}
	}
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter,
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, run on defaults
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns a list of default config paths for the current OS
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		configPaths = []string{
			".",
			filepath.Join(homeDir, "AppData", "Local", "dogwalker"),
		}
	default:
		configPaths = []string{
			".",
			filepath.Join(homeDir, ".config", "dogwalker"),
			"/etc/dogwalker",
		}
	}

	return configPaths, nil
}

// GetBasePath expands a possibly relative directory to an absolute one,
// creating it if needed.
func GetBasePath(path string) string {
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "."
	}
	return path
}
