package contract

import (
	"fmt"
	"os"

	"github.com/tallyhq/tally/core/agg"
	"github.com/tallyhq/tally/schema"
	"gopkg.in/yaml.v3"
)

// WeightsFile is the YAML document holding an incentive rule draft.
type WeightsFile struct {
	Weights schema.WeightSet `yaml:"weights"`
	Caps    schema.CapSet    `yaml:"caps,omitempty"`
}

// LoadWeightsFile reads and validates a weights file.
func LoadWeightsFile(path string) (WeightsFile, error) {
	var out WeightsFile
	data, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("read weights file: %w", err)
	}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("parse weights file %s: %w", path, err)
	}
	if err := agg.ValidateWeights(out.Weights); err != nil {
		return out, fmt.Errorf("weights file %s: %w", path, err)
	}
	if err := ValidateCaps(out.Caps); err != nil {
		return out, fmt.Errorf("weights file %s: %w", path, err)
	}
	return out, nil
}

// SaveWeightsFile writes a weights file, replacing any existing one.
func SaveWeightsFile(path string, file WeightsFile) error {
	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode weights file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
