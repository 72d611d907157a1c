package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// mergeMappings merges override into base following override-file
// semantics: mappings merge recursively, every other node kind is
// replaced wholesale. Base key order is preserved; new keys append in
// override order.
func mergeMappings(base, override *yaml.Node) (*yaml.Node, error) {
	if base.Kind != yaml.MappingNode || override.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("cannot merge %s into %s", nodeKind(override), nodeKind(base))
	}

	merged := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	index := make(map[string]int)
	for i := 0; i+1 < len(base.Content); i += 2 {
		key := base.Content[i]
		value := base.Content[i+1]
		index[key.Value] = len(merged.Content)
		merged.Content = append(merged.Content, key, value)
	}
	for i := 0; i+1 < len(override.Content); i += 2 {
		key := override.Content[i]
		value := override.Content[i+1]
		at, exists := index[key.Value]
		if !exists {
			index[key.Value] = len(merged.Content)
			merged.Content = append(merged.Content, key, value)
			continue
		}
		existing := merged.Content[at+1]
		if existing.Kind == yaml.MappingNode && value.Kind == yaml.MappingNode {
			child, err := mergeMappings(existing, value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key.Value, err)
			}
			merged.Content[at+1] = child
			continue
		}
		merged.Content[at+1] = value
	}
	return merged, nil
}
