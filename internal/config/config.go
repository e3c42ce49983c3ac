// Package config loads gaze.report settings from JSON or YAML.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/gaze.report/internal/gaze"
	"github.com/banshee-data/gaze.report/internal/sensor"
)

// Config holds every setting of a gaze session and its server. Nil fields
// fall back to the defaults reported by the Get* methods, so partial
// files are safe.
type Config struct {
	// Sensor
	Device          *string  `json:"device,omitempty" yaml:"device,omitempty"` // mouse | tobii
	Python          *string  `json:"python,omitempty" yaml:"python,omitempty"`
	Command         []string `json:"command,omitempty" yaml:"command,omitempty"`
	SerialPort      *string  `json:"serial_port,omitempty" yaml:"serial_port,omitempty"`
	SerialBaud      *int     `json:"serial_baud,omitempty" yaml:"serial_baud,omitempty"`
	SampleFrequency *float64 `json:"sample_frequency,omitempty" yaml:"sample_frequency,omitempty"`

	// Projection
	DominantEye  *string `json:"dominant_eye,omitempty" yaml:"dominant_eye,omitempty"`
	ScreenWidth  *int    `json:"screen_width,omitempty" yaml:"screen_width,omitempty"`
	ScreenHeight *int    `json:"screen_height,omitempty" yaml:"screen_height,omitempty"`

	// Storage and serving
	DBPath          *string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	Listen          *string `json:"listen,omitempty" yaml:"listen,omitempty"`
	Realtime        *bool   `json:"realtime,omitempty" yaml:"realtime,omitempty"`
	ProjectRoot     *string `json:"project_root,omitempty" yaml:"project_root,omitempty"`
	UIQueueSize     *int    `json:"ui_queue_size,omitempty" yaml:"ui_queue_size,omitempty"`
	ShutdownTimeout *string `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"` // duration string like "5s"
}

func ptrString(v string) *string { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a .json, .yaml or .yml file and validates it.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the set values are usable.
func (c *Config) Validate() error {
	if c.Device != nil {
		if _, err := sensor.ParseDevice(*c.Device); err != nil {
			return err
		}
	}
	if c.DominantEye != nil {
		if _, err := gaze.ParseDominantEye(*c.DominantEye); err != nil {
			return err
		}
	}
	if c.SampleFrequency != nil && *c.SampleFrequency <= 0 {
		return fmt.Errorf("sample_frequency must be positive, got %v", *c.SampleFrequency)
	}
	if c.ScreenWidth != nil && *c.ScreenWidth <= 0 {
		return fmt.Errorf("screen_width must be positive, got %d", *c.ScreenWidth)
	}
	if c.ScreenHeight != nil && *c.ScreenHeight <= 0 {
		return fmt.Errorf("screen_height must be positive, got %d", *c.ScreenHeight)
	}
	if c.SerialBaud != nil && *c.SerialBaud < 0 {
		return fmt.Errorf("serial_baud must be non-negative, got %d", *c.SerialBaud)
	}
	if c.UIQueueSize != nil && *c.UIQueueSize <= 0 {
		return fmt.Errorf("ui_queue_size must be positive, got %d", *c.UIQueueSize)
	}
	if len(c.Command) > 0 && c.Command[0] == "" {
		return fmt.Errorf("command must name a program")
	}
	if c.ShutdownTimeout != nil && *c.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(*c.ShutdownTimeout); err != nil {
			return fmt.Errorf("invalid shutdown_timeout '%s': %w", *c.ShutdownTimeout, err)
		}
	}
	return nil
}

// GetDevice returns the sensor device, defaulting to the mouse surrogate.
func (c *Config) GetDevice() sensor.Device {
	if c.Device == nil {
		return sensor.Mouse
	}
	d, err := sensor.ParseDevice(*c.Device)
	if err != nil {
		return sensor.Mouse
	}
	return d
}

// GetPython returns the interpreter for the embedded sensor scripts.
func (c *Config) GetPython() string {
	if c.Python == nil || *c.Python == "" {
		return sensor.DefaultPython
	}
	return *c.Python
}

// GetSerialPort returns the serial device path, empty when unset.
func (c *Config) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

// GetSerialBaud returns the serial baud rate; zero selects the sensor default.
func (c *Config) GetSerialBaud() int {
	if c.SerialBaud == nil {
		return 0
	}
	return *c.SerialBaud
}

// GetSampleFrequency returns the sample frequency in Hz.
func (c *Config) GetSampleFrequency() float64 {
	if c.SampleFrequency == nil {
		return 60
	}
	return *c.SampleFrequency
}

// GetDominantEye returns the dominant eye, defaulting to left.
func (c *Config) GetDominantEye() gaze.DominantEye {
	if c.DominantEye == nil {
		return gaze.EyeLeft
	}
	eye, err := gaze.ParseDominantEye(*c.DominantEye)
	if err != nil {
		return gaze.EyeLeft
	}
	return eye
}

func (c *Config) GetScreenWidth() int {
	if c.ScreenWidth == nil {
		return 1920
	}
	return *c.ScreenWidth
}

func (c *Config) GetScreenHeight() int {
	if c.ScreenHeight == nil {
		return 1080
	}
	return *c.ScreenHeight
}

func (c *Config) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "gaze.db"
	}
	return *c.DBPath
}

func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return "localhost:8090"
	}
	return *c.Listen
}

// GetRealtime reports whether records are pushed to live subscribers.
func (c *Config) GetRealtime() bool {
	if c.Realtime == nil {
		return true
	}
	return *c.Realtime
}

// GetProjectRoot returns the directory editor paths are made relative to.
// Empty keeps paths as reported.
func (c *Config) GetProjectRoot() string {
	if c.ProjectRoot == nil {
		return ""
	}
	return *c.ProjectRoot
}

func (c *Config) GetUIQueueSize() int {
	if c.UIQueueSize == nil {
		return 1024
	}
	return *c.UIQueueSize
}

// GetShutdownTimeout parses the shutdown grace period.
func (c *Config) GetShutdownTimeout() time.Duration {
	if c.ShutdownTimeout == nil || *c.ShutdownTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// SensorOptions builds the launcher options for this config.
func (c *Config) SensorOptions() sensor.Options {
	return sensor.Options{
		Device:     c.GetDevice(),
		Frequency:  c.GetSampleFrequency(),
		Python:     c.GetPython(),
		Command:    c.Command,
		SerialPort: c.GetSerialPort(),
		Serial:     sensor.SerialOptions{BaudRate: c.GetSerialBaud()},
	}
}
