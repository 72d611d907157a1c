package compose

import (
	"fmt"
	"os"
	"path/filepath"

	envparse "github.com/hashicorp/go-envparse"
)

// loadEnvFiles reads each env file in order into a single map; later
// files override earlier ones. Relative paths resolve against dir.
func loadEnvFiles(dir string, paths []string) (map[string]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	merged := make(map[string]string)
	for _, p := range paths {
		resolved := p
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Clean(filepath.Join(dir, resolved))
		}
		values, err := loadEnvFile(resolved)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}
	return merged, nil
}

func loadEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load env file %q: %w", path, err)
	}
	defer f.Close()

	values, err := envparse.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file %q: %w", path, err)
	}
	return values, nil
}
