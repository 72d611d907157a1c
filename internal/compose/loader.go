package compose

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFileNames are probed in order when no manifest is named.
var DefaultFileNames = []string{
	"compose.yaml",
	"compose.yml",
	"docker-compose.yaml",
	"docker-compose.yml",
}

// LoadOptions controls manifest loading.
type LoadOptions struct {
	// Files lists manifests to merge in order. When empty the loader
	// discovers one in ProjectDir.
	Files []string
	// ProjectDir anchors discovery and relative env_file paths.
	// Defaults to the directory of the first manifest file.
	ProjectDir string
	// NoInterpolate leaves ${VAR} references untouched.
	NoInterpolate bool
	// LookupEnv overrides the variable source. Defaults to os.LookupEnv.
	LookupEnv LookupFunc
}

func (o LoadOptions) lookup() LookupFunc {
	if o.LookupEnv != nil {
		return o.LookupEnv
	}
	return os.LookupEnv
}

// Discover locates a manifest in dir using the conventional names.
func Discover(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no compose file found in %q (looked for %s)", dir, strings.Join(DefaultFileNames, ", "))
}

// Load reads, merges, interpolates and validates a manifest.
func Load(opts LoadOptions) (*Project, error) {
	files := opts.Files
	if len(files) == 0 {
		dir := opts.ProjectDir
		if dir == "" {
			dir = "."
		}
		discovered, err := Discover(dir)
		if err != nil {
			return nil, err
		}
		files = []string{discovered}
	}

	sources := make([]string, 0, len(files))
	var merged *yaml.Node
	for _, file := range files {
		absPath, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("resolve manifest path: %w", err)
		}
		sources = append(sources, absPath)

		root, err := parseManifestNode(absPath)
		if err != nil {
			return nil, err
		}
		if !opts.NoInterpolate {
			if err := interpolateNode(root, opts.lookup()); err != nil {
				return nil, fmt.Errorf("%s: %w", absPath, err)
			}
		}
		if merged == nil {
			merged = root
			continue
		}
		merged, err = mergeMappings(merged, root)
		if err != nil {
			return nil, fmt.Errorf("%s: merge: %w", absPath, err)
		}
	}

	if err := validateAgainstSchema(merged); err != nil {
		return nil, fmt.Errorf("%s: %w", sources[0], err)
	}

	project, err := decodeProject(merged)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sources[0], err)
	}
	project.Sources = sources
	project.WorkingDir = opts.ProjectDir
	if project.WorkingDir == "" {
		project.WorkingDir = filepath.Dir(sources[0])
	}

	for _, name := range project.ServicesSorted() {
		svc := project.Services[name]
		if svc == nil || svc.EnvFiles == nil {
			continue
		}
		fileEnv, err := loadEnvFiles(project.WorkingDir, svc.EnvFiles.Values())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", serviceField(name, "env_file"), err)
		}
		svc.fileEnv = fileEnv
	}

	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", sources[0], err)
	}
	return project, nil
}

// Parse reads a single manifest document from r and validates it. No
// interpolation or env_file resolution is performed.
func Parse(r io.Reader) (*Project, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	var project Project
	if err := decoder.Decode(&project); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return &project, nil
}

func parseManifestNode(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%s: manifest is empty", path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: manifest root must be a mapping, got %s", path, nodeKind(root))
	}
	return root, nil
}

// interpolateNode rewrites string scalars in place. Mapping keys are
// left untouched.
func interpolateNode(node *yaml.Node, lookup LookupFunc) error {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if err := interpolateNode(node.Content[i+1], lookup); err != nil {
				return err
			}
		}
	case yaml.SequenceNode, yaml.DocumentNode:
		for _, child := range node.Content {
			if err := interpolateNode(child, lookup); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if node.Tag != "!!str" || !strings.ContainsRune(node.Value, '$') {
			return nil
		}
		expanded, err := Interpolate(node.Value, lookup)
		if err != nil {
			return err
		}
		node.Value = expanded
	}
	return nil
}

func decodeProject(root *yaml.Node) (*Project, error) {
	encoded, err := yaml.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("encode merged manifest: %w", err)
	}
	decoder := yaml.NewDecoder(strings.NewReader(string(encoded)))
	decoder.KnownFields(true)
	var project Project
	if err := decoder.Decode(&project); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &project, nil
}
