package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/bte/internal/bt"
)

// ErrSeedNotMapping is returned when a seed document is not a YAML mapping.
var ErrSeedNotMapping = errors.New("blackboard seed must be a mapping")

// LoadSeed reads a YAML blackboard seed file.
func LoadSeed(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	values, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// ParseSeed decodes a YAML mapping of blackboard entries. An empty document
// yields an empty map. Nested mappings decode as map[string]any.
func ParseSeed(data []byte) (map[string]any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	values := make(map[string]any)
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return values, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w (line %d)", ErrSeedNotMapping, root.Line)
	}
	if err := root.Decode(&values); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	return values, nil
}

// ApplySeed writes values into bb in key order.
func ApplySeed(bb *bt.Blackboard, values map[string]any) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bb.Set(k, values[k])
	}
}
