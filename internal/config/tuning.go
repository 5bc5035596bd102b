package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file,
// the single source of truth for default sync parameters.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig holds the runtime-tunable sync parameters. All fields are
// pointers so a partial JSON file only overrides what it names; the Get*
// methods supply defaults for everything else.
type TuningConfig struct {
	// Strategy A (buffered multi-queue syncer) params
	AttitudeCapacity      *int   `json:"attitude_capacity,omitempty"`
	AccelerometerCapacity *int   `json:"accelerometer_capacity,omitempty"`
	GyroscopeCapacity     *int   `json:"gyroscope_capacity,omitempty"`
	GravityCapacity       *int   `json:"gravity_capacity,omitempty"`
	StaleOffsetNanos      *int64 `json:"stale_offset_nanos,omitempty"`
	StaleDetection        *bool  `json:"stale_detection,omitempty"`
	StopWhenFilledBuffer  *bool  `json:"stop_when_filled_buffer,omitempty"`

	// Strategy B (push-based collector) params
	WindowNanos   *int64  `json:"window_nanos,omitempty"`
	Interpolation *bool   `json:"interpolation,omitempty"`
	PrimarySensor *string `json:"primary_sensor,omitempty"`

	// Recording params
	DatabasePath *string `json:"database_path,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the size cap; fields omitted
// from the JSON keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
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

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching upward from the current directory.
// Panics if the file cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field carries a usable value.
func (c *TuningConfig) Validate() error {
	capacities := map[string]*int{
		"attitude_capacity":      c.AttitudeCapacity,
		"accelerometer_capacity": c.AccelerometerCapacity,
		"gyroscope_capacity":     c.GyroscopeCapacity,
		"gravity_capacity":       c.GravityCapacity,
	}
	for name, v := range capacities {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	if c.StaleOffsetNanos != nil && *c.StaleOffsetNanos <= 0 {
		return fmt.Errorf("stale_offset_nanos must be positive, got %d", *c.StaleOffsetNanos)
	}
	if c.WindowNanos != nil && *c.WindowNanos <= 0 {
		return fmt.Errorf("window_nanos must be positive, got %d", *c.WindowNanos)
	}
	if c.PrimarySensor != nil {
		switch *c.PrimarySensor {
		case "attitude", "accelerometer", "gyroscope", "gravity", "magnetometer":
		default:
			return fmt.Errorf("unknown primary_sensor %q", *c.PrimarySensor)
		}
	}
	return nil
}

// GetAttitudeCapacity returns the attitude collector capacity or the default.
func (c *TuningConfig) GetAttitudeCapacity() int {
	if c.AttitudeCapacity == nil {
		return 100
	}
	return *c.AttitudeCapacity
}

// GetAccelerometerCapacity returns the accelerometer collector capacity or the default.
func (c *TuningConfig) GetAccelerometerCapacity() int {
	if c.AccelerometerCapacity == nil {
		return 100
	}
	return *c.AccelerometerCapacity
}

// GetGyroscopeCapacity returns the gyroscope collector capacity or the default.
func (c *TuningConfig) GetGyroscopeCapacity() int {
	if c.GyroscopeCapacity == nil {
		return 100
	}
	return *c.GyroscopeCapacity
}

// GetGravityCapacity returns the gravity collector capacity or the default.
func (c *TuningConfig) GetGravityCapacity() int {
	if c.GravityCapacity == nil {
		return 100
	}
	return *c.GravityCapacity
}

// GetStaleOffsetNanos returns the stale eviction horizon or the default (5ms).
func (c *TuningConfig) GetStaleOffsetNanos() int64 {
	if c.StaleOffsetNanos == nil {
		return 5_000_000
	}
	return *c.StaleOffsetNanos
}

// GetStaleDetection returns whether the stale sweep is enabled (default true).
func (c *TuningConfig) GetStaleDetection() bool {
	if c.StaleDetection == nil {
		return true
	}
	return *c.StaleDetection
}

// GetStopWhenFilledBuffer returns the overflow policy (default false).
func (c *TuningConfig) GetStopWhenFilledBuffer() bool {
	if c.StopWhenFilledBuffer == nil {
		return false
	}
	return *c.StopWhenFilledBuffer
}

// GetWindowNanos returns the push-collector sample window or the default (1ms).
func (c *TuningConfig) GetWindowNanos() int64 {
	if c.WindowNanos == nil {
		return 1_000_000
	}
	return *c.WindowNanos
}

// GetInterpolation returns whether push-collector interpolation is enabled (default true).
func (c *TuningConfig) GetInterpolation() bool {
	if c.Interpolation == nil {
		return true
	}
	return *c.Interpolation
}

// GetPrimarySensor returns the push-collector primary kind name (default attitude).
func (c *TuningConfig) GetPrimarySensor() string {
	if c.PrimarySensor == nil {
		return "attitude"
	}
	return *c.PrimarySensor
}

// GetDatabasePath returns the recording database path or the default.
func (c *TuningConfig) GetDatabasePath() string {
	if c.DatabasePath == nil {
		return "synced_measurements.db"
	}
	return *c.DatabasePath
}
