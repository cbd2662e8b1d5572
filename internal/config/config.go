// Package config loads and validates the engine tuning: predictor, path
// synthesis, trajectory policy and the control loop.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/cursorflow/internal/path"
	"github.com/ayusman/cursorflow/internal/predict"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// PipelineConfig controls the fixed-rate control loop.
type PipelineConfig struct {
	// IdleHz is the tick rate while no detections arrive.
	IdleHz int `yaml:"idle_hz" json:"idle_hz"`
	// ActiveHz is the tick rate while detections are flowing.
	ActiveHz int `yaml:"active_hz" json:"active_hz"`
	// IdleTimeout drops back to IdleHz and resets the predictor.
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	// MinMoveDistance suppresses paths shorter than this many pixels.
	MinMoveDistance float64 `yaml:"min_move_distance" json:"min_move_distance"`
	// RecordTraces stores every detection of a session in the trace store.
	RecordTraces bool `yaml:"record_traces" json:"record_traces"`
	// Executor names the plugin that receives generated paths; empty disables it.
	Executor string `yaml:"executor" json:"executor"`
}

// Config is the complete engine configuration.
type Config struct {
	Predictor predict.Config    `yaml:"predictor" json:"predictor"`
	Path      path.Config       `yaml:"path" json:"path"`
	Policy    path.PolicyConfig `yaml:"policy" json:"policy"`
	Pipeline  PipelineConfig    `yaml:"pipeline" json:"pipeline"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Predictor: predict.DefaultConfig(),
		Path:      path.DefaultConfig(),
		Policy:    path.DefaultPolicyConfig(),
		Pipeline: PipelineConfig{
			IdleHz:          5,
			ActiveHz:        60,
			IdleTimeout:     2 * time.Second,
			MinMoveDistance: 2,
		},
	}
}

// Validate reports the first invalid section.
func (c Config) Validate() error {
	if err := c.Predictor.Validate(); err != nil {
		return fmt.Errorf("%w: predictor: %w", ErrInvalid, err)
	}
	if err := c.Path.Validate(); err != nil {
		return fmt.Errorf("%w: path: %w", ErrInvalid, err)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: policy: %w", ErrInvalid, err)
	}

	p := c.Pipeline
	switch {
	case p.IdleHz < 1:
		return fmt.Errorf("%w: pipeline: idle_hz must be at least 1, got %d", ErrInvalid, p.IdleHz)
	case p.ActiveHz < p.IdleHz:
		return fmt.Errorf("%w: pipeline: active_hz %d is below idle_hz %d", ErrInvalid, p.ActiveHz, p.IdleHz)
	case p.IdleTimeout <= 0:
		return fmt.Errorf("%w: pipeline: idle_timeout must be positive, got %s", ErrInvalid, p.IdleTimeout)
	case p.MinMoveDistance < 0:
		return fmt.Errorf("%w: pipeline: min_move_distance must not be negative, got %v", ErrInvalid, p.MinMoveDistance)
	}
	return nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)
	if err := d.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads and parses a YAML file.
func Load(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config %s: %w", filename, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	text, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}
	return text, nil
}

// Save validates cfg and writes it to filename.
func Save(filename string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	text, err := Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, text, 0644); err != nil {
		return fmt.Errorf("error writing config %s: %w", filename, err)
	}
	return nil
}
