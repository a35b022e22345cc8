// Package config loads the JSON calibration configuration. Fields are
// pointer-typed so that a partial config file only overrides what it
// names; the Get* accessors supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/luminance.report/internal/gamma"
	"github.com/banshee-data/luminance.report/internal/photometer"
	"github.com/banshee-data/luminance.report/internal/session"
	"github.com/banshee-data/luminance.report/internal/units"
)

// CalibrationConfig is the root configuration. The schema matches the
// /api/config endpoint so the same JSON works for startup configuration
// and for inspection at runtime.
type CalibrationConfig struct {
	// Photometer serial connection
	SerialPort *string `json:"serial_port,omitempty"`
	BaudRate   *int    `json:"baud_rate,omitempty"`
	DataBits   *int    `json:"data_bits,omitempty"`
	StopBits   *int    `json:"stop_bits,omitempty"`
	Parity     *string `json:"parity,omitempty"`

	// Measurement session
	Steps       *int    `json:"steps,omitempty"`
	Repeats     *int    `json:"repeats,omitempty"`
	Settle      *string `json:"settle,omitempty"`       // duration string like "500ms"
	ReadTimeout *string `json:"read_timeout,omitempty"` // duration string like "2s"
	Channels    *int    `json:"channels,omitempty"`

	// Fit
	Method *int `json:"method,omitempty"`

	// Output
	Device  *string `json:"device,omitempty"`
	PlotDir *string `json:"plot_dir,omitempty"`
	Units   *string `json:"units,omitempty"`
}

// Empty returns a CalibrationConfig with all fields unset.
func Empty() *CalibrationConfig {
	return &CalibrationConfig{}
}

// Load reads a CalibrationConfig from a JSON file. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func Load(path string) (*CalibrationConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every set field. Unset fields are always valid because
// their defaults are.
func (c *CalibrationConfig) Validate() error {
	if c.Steps != nil && *c.Steps < 2 {
		return fmt.Errorf("steps must be at least 2, got %d", *c.Steps)
	}
	if c.Repeats != nil && *c.Repeats < 1 {
		return fmt.Errorf("repeats must be at least 1, got %d", *c.Repeats)
	}
	if c.Channels != nil && *c.Channels != 1 && *c.Channels != 3 {
		return fmt.Errorf("channels must be 1 or 3, got %d", *c.Channels)
	}
	if c.Method != nil && !gamma.Method(*c.Method).Valid() {
		return fmt.Errorf("unknown fit method %d", *c.Method)
	}
	if c.Settle != nil {
		if _, err := time.ParseDuration(*c.Settle); err != nil {
			return fmt.Errorf("invalid settle duration %q: %v", *c.Settle, err)
		}
	}
	if c.ReadTimeout != nil {
		if _, err := time.ParseDuration(*c.ReadTimeout); err != nil {
			return fmt.Errorf("invalid read_timeout duration %q: %v", *c.ReadTimeout, err)
		}
	}
	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("unknown units %q, valid units are: %s", *c.Units, units.GetValidUnitsString())
	}
	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}
	return nil
}

func (c *CalibrationConfig) GetSerialPort() string {
	if c.SerialPort != nil {
		return *c.SerialPort
	}
	return "/dev/ttyUSB0"
}

func (c *CalibrationConfig) GetSteps() int {
	if c.Steps != nil {
		return *c.Steps
	}
	return 9
}

func (c *CalibrationConfig) GetRepeats() int {
	if c.Repeats != nil {
		return *c.Repeats
	}
	return 3
}

func (c *CalibrationConfig) GetSettle() time.Duration {
	if c.Settle != nil {
		if d, err := time.ParseDuration(*c.Settle); err == nil {
			return d
		}
	}
	return 500 * time.Millisecond
}

func (c *CalibrationConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout != nil {
		if d, err := time.ParseDuration(*c.ReadTimeout); err == nil {
			return d
		}
	}
	return 2 * time.Second
}

func (c *CalibrationConfig) GetChannels() int {
	if c.Channels != nil {
		return *c.Channels
	}
	return 1
}

func (c *CalibrationConfig) GetMethod() gamma.Method {
	if c.Method != nil {
		return gamma.Method(*c.Method)
	}
	return gamma.DefaultMethod
}

func (c *CalibrationConfig) GetDevice() string {
	if c.Device != nil {
		return *c.Device
	}
	return ""
}

func (c *CalibrationConfig) GetPlotDir() string {
	if c.PlotDir != nil {
		return *c.PlotDir
	}
	return "plots"
}

func (c *CalibrationConfig) GetUnits() string {
	if c.Units != nil {
		return *c.Units
	}
	return units.CDM2
}

// PortOptions assembles the serial options for the photometer port.
func (c *CalibrationConfig) PortOptions() photometer.PortOptions {
	opts := photometer.PortOptions{}
	if c.BaudRate != nil {
		opts.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		opts.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		opts.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		opts.Parity = *c.Parity
	}
	return opts
}

// SessionOptions assembles the measurement session options.
func (c *CalibrationConfig) SessionOptions() session.Options {
	return session.Options{
		Steps:       c.GetSteps(),
		Repeats:     c.GetRepeats(),
		Settle:      c.GetSettle(),
		ReadTimeout: c.GetReadTimeout(),
		Channels:    c.GetChannels(),
	}
}
