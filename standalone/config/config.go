package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"homefw/standalone"
)

var ErrUnknownFormat = errors.New("config: unknown file format")

// LoadConfig parses a JSON configuration string and returns a MachineConfig
func LoadConfig(jsonData []byte) (*standalone.MachineConfig, error) {
	var config standalone.MachineConfig

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	applyDefaults(&config)

	return &config, nil
}

// LoadTOML parses a TOML configuration
func LoadTOML(data []byte) (*standalone.MachineConfig, error) {
	var config standalone.MachineConfig

	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadYAML parses a YAML configuration
func LoadYAML(data []byte) (*standalone.MachineConfig, error) {
	var config standalone.MachineConfig

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	applyDefaults(&config)
	return &config, nil
}

// LoadFile reads a configuration file, choosing the decoder by extension
func LoadFile(path string) (*standalone.MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *standalone.MachineConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		config, err = LoadConfig(data)
	case ".toml":
		config, err = LoadTOML(data)
	case ".yaml", ".yml":
		config, err = LoadYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return config, nil
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *standalone.MachineConfig) {
	// Default mode
	if config.Mode == "" {
		config.Mode = "standalone"
	}

	// Default kinematics
	if config.Kinematics == "" {
		config.Kinematics = "cartesian"
	}

	if config.Acceleration == 0 {
		config.Acceleration = 1000.0 // mm/s^2
	}

	// Apply defaults to each axis
	for name, axis := range config.Axes {
		if axis.StepsPerMM == 0 {
			axis.StepsPerMM = 80.0 // Common value
		}
		if axis.MaxFeedrate == 0 {
			axis.MaxFeedrate = 6000 // mm/min
		}
		config.Axes[name] = axis
	}
}

var endstopNames = map[string]bool{
	"x_min": true, "x_max": true,
	"y_min": true, "y_max": true,
	"z_min": true, "z_max": true,
}

// Validate checks a configuration. Fatal problems are returned as an error;
// warnings describe settings that silently disable part of homing.
func Validate(config *standalone.MachineConfig) (warnings []string, err error) {
	var errs []error

	switch config.Kinematics {
	case "cartesian", "delta":
	default:
		errs = append(errs, fmt.Errorf("unsupported kinematics %q", config.Kinematics))
	}

	if config.Acceleration <= 0 {
		errs = append(errs, errors.New("acceleration must be positive"))
	}

	for name := range config.Endstops {
		if !endstopNames[name] {
			errs = append(errs, fmt.Errorf("unknown endstop %q", name))
		}
	}

	for a := standalone.X; a <= standalone.Z; a++ {
		axis, ok := config.Axes[a.String()]
		for _, d := range []standalone.Direction{standalone.Negative, standalone.Positive} {
			if !config.HasEndstop(a, d) {
				continue
			}
			name := standalone.EndstopName(a, d)
			if !ok {
				errs = append(errs, fmt.Errorf("endstop %s has no %s axis", name, a))
				continue
			}
			if axis.SearchFeedrate == 0 {
				errs = append(errs, fmt.Errorf("axis %s: search_feedrate required for endstop %s", a, name))
			}
			if d == standalone.Positive && axis.MaxPosition == nil && config.Kinematics != "delta" {
				warnings = append(warnings, fmt.Sprintf("endstop %s has no max_position for axis %s, max homing disabled", name, a))
			}
			if axis.EndstopClearance == 0 {
				warnings = append(warnings, fmt.Sprintf("axis %s has no endstop_clearance, searching at %d mm/min only", a, axis.SearchFeedrate))
			}
		}
	}

	if config.Kinematics == "delta" {
		if config.Delta.Height <= 0 {
			errs = append(errs, errors.New("delta: height must be positive"))
		}
		for a := standalone.X; a <= standalone.Z; a++ {
			if !config.HasEndstop(a, standalone.Positive) {
				errs = append(errs, fmt.Errorf("delta: tower endstop %s required", standalone.EndstopName(a, standalone.Positive)))
			}
		}
		if config.Axis(standalone.X).MaxFeedrate == 0 {
			errs = append(errs, errors.New("delta: x max_feedrate required for the coarse probe"))
		}
	}

	return warnings, errors.Join(errs...)
}

func fp(v float64) *float64 { return &v }

// DefaultCartesianConfig returns a default configuration for a Cartesian printer
func DefaultCartesianConfig() *standalone.MachineConfig {
	return &standalone.MachineConfig{
		Mode:         "standalone",
		Kinematics:   "cartesian",
		Acceleration: 1000.0,
		Axes: map[string]standalone.AxisConfig{
			"x": {
				StepPin:          "gpio0",
				DirPin:           "gpio1",
				EnablePin:        "gpio8",
				StepsPerMM:       80.0,
				MaxFeedrate:      18000,
				SearchFeedrate:   300,
				EndstopClearance: 1000,
				MinPosition:      fp(0.0),
				MaxPosition:      fp(220.0),
			},
			"y": {
				StepPin:          "gpio2",
				DirPin:           "gpio3",
				EnablePin:        "gpio8",
				StepsPerMM:       80.0,
				MaxFeedrate:      18000,
				SearchFeedrate:   300,
				EndstopClearance: 1000,
				MinPosition:      fp(0.0),
				MaxPosition:      fp(220.0),
			},
			"z": {
				StepPin:          "gpio4",
				DirPin:           "gpio5",
				EnablePin:        "gpio8",
				StepsPerMM:       400.0,
				MaxFeedrate:      600,
				SearchFeedrate:   60,
				EndstopClearance: 500,
				MinPosition:      fp(0.0),
				MaxPosition:      fp(250.0),
			},
			"e": {
				StepPin:     "gpio6",
				DirPin:      "gpio7",
				EnablePin:   "gpio8",
				StepsPerMM:  96.0,
				MaxFeedrate: 3000,
			},
		},
		Endstops: map[string]standalone.EndstopConfig{
			"x_min": {Pin: "gpio20", PullUp: true},
			"y_min": {Pin: "gpio21", PullUp: true},
			"z_min": {Pin: "gpio22", PullUp: true},
		},
	}
}

// DefaultDeltaConfig returns a default configuration for a delta printer with
// top-mounted tower endstops
func DefaultDeltaConfig() *standalone.MachineConfig {
	tower := func(step, dir string) standalone.AxisConfig {
		return standalone.AxisConfig{
			StepPin:          step,
			DirPin:           dir,
			EnablePin:        "gpio8",
			StepsPerMM:       80.0,
			MaxFeedrate:      12000,
			SearchFeedrate:   300,
			EndstopClearance: 2000,
		}
	}
	return &standalone.MachineConfig{
		Mode:         "standalone",
		Kinematics:   "delta",
		Acceleration: 1000.0,
		Axes: map[string]standalone.AxisConfig{
			"x": tower("gpio0", "gpio1"),
			"y": tower("gpio2", "gpio3"),
			"z": tower("gpio4", "gpio5"),
			"e": {
				StepPin:     "gpio6",
				DirPin:      "gpio7",
				EnablePin:   "gpio8",
				StepsPerMM:  96.0,
				MaxFeedrate: 3000,
			},
		},
		Endstops: map[string]standalone.EndstopConfig{
			"x_max": {Pin: "gpio20", PullUp: true},
			"y_max": {Pin: "gpio21", PullUp: true},
			"z_max": {Pin: "gpio22", PullUp: true},
		},
		Delta: standalone.DeltaGeometry{
			Height: 250.0,
		},
	}
}
