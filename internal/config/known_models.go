package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// knownModelsFile is the YAML overlay extending the built-in known-model set.
// The overlay only ever adds names; the built-in set stays recognized.
type knownModelsFile struct {
	Models []string `yaml:"models"`
}

// LoadKnownModels reads extra known-model names from a YAML file.
func LoadKnownModels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read known models file %s: %w", path, err)
	}

	var parsed knownModelsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse known models file %s: %w", path, err)
	}

	var models []string
	for _, m := range parsed.Models {
		if trimmed := strings.TrimSpace(m); trimmed != "" {
			models = append(models, trimmed)
		}
	}
	return models, nil
}
