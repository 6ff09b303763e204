package blueprint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Save writes a blueprint to disk as YAML.
func Save(b *Blueprint, path string) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal blueprint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write blueprint: %w", err)
	}
	return nil
}

// Load reads a YAML blueprint from disk.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blueprint: %w", err)
	}
	var b Blueprint
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse blueprint %s: %w", path, err)
	}
	if b.Metadata.Name == "" {
		return nil, fmt.Errorf("blueprint %s: missing metadata.name", path)
	}
	return &b, nil
}
