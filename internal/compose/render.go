package compose

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Marshal renders the manifest back to YAML. Declared forms (map vs
// list environment, short vs long depends_on, shell vs exec commands)
// and declaration order within them are preserved.
func Marshal(p *Project) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(p); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}
