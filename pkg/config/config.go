// Package config holds the simulator tolerances and model cards, loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Tolerances are the relative/absolute convergence and bypass limits shared by every device.
type Tolerances struct {
	Reltol  float64 `yaml:"reltol" validate:"gt=0,lt=1"`
	Abstol  float64 `yaml:"abstol" validate:"gt=0"`  // Current tolerance (A)
	Vntol   float64 `yaml:"vntol" validate:"gt=0"`   // Voltage tolerance (V)
	Chgtol  float64 `yaml:"chgtol" validate:"gt=0"`  // Charge tolerance (C)
	Trtol   float64 `yaml:"trtol" validate:"gte=1"`  // Truncation error overestimate factor
	Gmin    float64 `yaml:"gmin" validate:"gte=0"`   // Junction shunt conductance (S)
	Xmu     float64 `yaml:"xmu" validate:"gte=0,lte=0.5"`
	MaxIter int     `yaml:"max_iter" validate:"gte=1"`
	Bypass  bool    `yaml:"bypass"`
}

func DefaultTolerances() Tolerances {
	return Tolerances{
		Reltol:  1e-3,
		Abstol:  1e-12,
		Vntol:   1e-6,
		Chgtol:  1e-14,
		Trtol:   7,
		Gmin:    1e-12,
		Xmu:     0.5,
		MaxIter: 100,
		Bypass:  true,
	}
}

// ModelCard is one named model statement.
type ModelCard struct {
	Name   string             `yaml:"name" validate:"required"`
	Type   string             `yaml:"type" validate:"required,oneof=nmos pmos"`
	Params map[string]float64 `yaml:"params"`
}

// Config is the top level file layout.
type Config struct {
	Temperature float64     `yaml:"temperature" validate:"gt=-273.15"` // Circuit temperature (degC)
	Tolerances  Tolerances  `yaml:"tolerances"`
	Models      []ModelCard `yaml:"models" validate:"dive"`
}

func Default() Config {
	return Config{
		Temperature: 27,
		Tolerances:  DefaultTolerances(),
	}
}

func (c Config) Validate() error {
	return validate.Struct(c)
}

// Model returns the card with the given name.
func (c Config) Model(name string) (ModelCard, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelCard{}, false
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load reads a YAML file. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), fmt.Errorf("load config file: %w", err)
	}
	return Parse(data)
}
