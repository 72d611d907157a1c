package compose

import (
	"fmt"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshalling. The original
// textual form is retained so re-serialization emits what was declared.
type Duration struct {
	time.Duration
	raw string
}

// UnmarshalYAML parses a scalar duration, accepting empty strings.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar duration, got %s", nodeKind(node))
	}
	d.raw = node.Value
	if node.Value == "" || node.Tag == "!!null" {
		d.raw = ""
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as originally declared.
func (d Duration) MarshalYAML() (any, error) {
	if d.raw != "" {
		return d.raw, nil
	}
	return d.Duration.String(), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.raw != "" || d.Duration != 0
}

// IsZero allows yaml omitempty to elide unset durations.
func (d Duration) IsZero() bool {
	return !d.IsSet()
}

// ByteSize is a memory quantity declared either as a bare byte count or
// a human-readable size such as "512m". The declared form is retained.
type ByteSize struct {
	bytes int64
	raw   string
}

// UnmarshalYAML parses a scalar byte quantity.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar byte size, got %s", nodeKind(node))
	}
	b.raw = node.Value
	size, err := units.RAMInBytes(node.Value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", node.Value, err)
	}
	if size < 0 {
		return fmt.Errorf("byte size %q must be non-negative", node.Value)
	}
	b.bytes = size
	return nil
}

// MarshalYAML renders the size as originally declared.
func (b ByteSize) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: b.raw}, nil
}

// Bytes returns the parsed quantity.
func (b ByteSize) Bytes() int64 { return b.bytes }

// String renders the quantity in human-readable form.
func (b ByteSize) String() string { return units.BytesSize(float64(b.bytes)) }

// Command represents a command declared either as a single shell string
// or as an argv sequence.
type Command struct {
	parts     []string
	shellForm bool
}

// ShellCommand constructs a shell-form command.
func ShellCommand(line string) *Command {
	return &Command{parts: []string{line}, shellForm: true}
}

// ArgvCommand constructs an exec-form command.
func ArgvCommand(args ...string) *Command {
	return &Command{parts: args}
}

// UnmarshalYAML accepts a scalar string or a sequence of scalars.
func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		c.shellForm = true
		c.parts = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		parts, err := decodeScalarSequence(node)
		if err != nil {
			return fmt.Errorf("command: %w", err)
		}
		c.parts = parts
		return nil
	default:
		return fmt.Errorf("command must be a string or a list of strings, got %s", nodeKind(node))
	}
}

// MarshalYAML emits the command in its declared form.
func (c Command) MarshalYAML() (any, error) {
	if c.shellForm {
		if len(c.parts) == 0 {
			return "", nil
		}
		return c.parts[0], nil
	}
	return c.parts, nil
}

// ShellForm reports whether the command was declared as a shell string.
func (c *Command) ShellForm() bool { return c != nil && c.shellForm }

// Args returns the command tokens. Shell-form commands yield one token.
func (c *Command) Args() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.parts...)
}

// String renders the command for display.
func (c *Command) String() string {
	if c == nil || len(c.parts) == 0 {
		return ""
	}
	return strings.Join(c.parts, " ")
}

// StringList is a value declared either as a single scalar or as a
// sequence of scalars.
type StringList struct {
	values []string
	scalar bool
}

// NewStringList constructs a sequence-form list.
func NewStringList(values ...string) *StringList {
	return &StringList{values: values}
}

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		l.scalar = true
		l.values = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		values, err := decodeScalarSequence(node)
		if err != nil {
			return err
		}
		l.values = values
		return nil
	default:
		return fmt.Errorf("expected a string or a list of strings, got %s", nodeKind(node))
	}
}

// MarshalYAML emits the list in its declared form.
func (l StringList) MarshalYAML() (any, error) {
	if l.scalar {
		if len(l.values) == 0 {
			return "", nil
		}
		return l.values[0], nil
	}
	return l.values, nil
}

// Values returns the declared entries.
func (l *StringList) Values() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.values...)
}

// Environment is a set of variables declared either as a mapping or as
// a KEY=VALUE list. Declaration order is preserved for both forms; a
// key without a value marks a passthrough from the caller environment.
type Environment struct {
	listForm bool
	order    []string
	values   map[string]*string
	// tags remembers the YAML scalar tag of each mapping-form value so
	// re-serialization keeps numbers and quoted strings distinct.
	tags map[string]string
}

// UnmarshalYAML accepts a mapping or a sequence of KEY=VALUE strings.
func (e *Environment) UnmarshalYAML(node *yaml.Node) error {
	e.values = make(map[string]*string)
	switch node.Kind {
	case yaml.MappingNode:
		e.tags = make(map[string]string)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("environment key must be a scalar, got %s", nodeKind(keyNode))
			}
			key := keyNode.Value
			if _, dup := e.values[key]; dup {
				return fmt.Errorf("duplicate environment key %q", key)
			}
			e.order = append(e.order, key)
			if valNode.Kind == yaml.ScalarNode && valNode.Tag == "!!null" {
				e.values[key] = nil
				continue
			}
			if valNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("environment value for %q must be a scalar, got %s", key, nodeKind(valNode))
			}
			value := valNode.Value
			e.values[key] = &value
			e.tags[key] = valNode.Tag
		}
		return nil
	case yaml.SequenceNode:
		e.listForm = true
		entries, err := decodeScalarSequence(node)
		if err != nil {
			return fmt.Errorf("environment: %w", err)
		}
		for _, entry := range entries {
			key, value, found := strings.Cut(entry, "=")
			if key == "" {
				return fmt.Errorf("invalid environment entry %q", entry)
			}
			if _, dup := e.values[key]; dup {
				return fmt.Errorf("duplicate environment key %q", key)
			}
			e.order = append(e.order, key)
			if !found {
				e.values[key] = nil
				continue
			}
			e.values[key] = &value
		}
		return nil
	default:
		return fmt.Errorf("environment must be a mapping or a list, got %s", nodeKind(node))
	}
}

// MarshalYAML emits the variables in their declared form and order.
func (e Environment) MarshalYAML() (any, error) {
	if e.listForm {
		entries := make([]string, 0, len(e.order))
		for _, key := range e.order {
			if value := e.values[key]; value != nil {
				entries = append(entries, key+"="+*value)
			} else {
				entries = append(entries, key)
			}
		}
		return entries, nil
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range e.order {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{Kind: yaml.ScalarNode, Value: ""}
		if value := e.values[key]; value != nil {
			valNode.Value = *value
			if tag := e.tags[key]; tag != "" {
				valNode.Tag = tag
			}
		} else {
			valNode.Tag = "!!null"
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}
	return mapping, nil
}

// Keys returns variable names in declaration order.
func (e *Environment) Keys() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.order...)
}

// Lookup returns the declared value for a key. A passthrough key
// reports ok with a nil value pointer.
func (e *Environment) Lookup(key string) (*string, bool) {
	if e == nil {
		return nil, false
	}
	value, ok := e.values[key]
	return value, ok
}

// Dependency describes the long-form attributes of a depends_on entry.
type Dependency struct {
	Condition string `yaml:"condition,omitempty"`
	Restart   bool   `yaml:"restart,omitempty"`
	Required  *bool  `yaml:"required,omitempty"`
}

// Startup dependency conditions understood by the orchestrator.
const (
	ConditionStarted   = "service_started"
	ConditionHealthy   = "service_healthy"
	ConditionCompleted = "service_completed_successfully"
)

// EffectiveCondition returns the condition, defaulting to service_started.
func (d Dependency) EffectiveCondition() string {
	if d.Condition == "" {
		return ConditionStarted
	}
	return d.Condition
}

// DependsOn captures startup dependencies declared either as a short
// list of service names or as a mapping with per-dependency conditions.
type DependsOn struct {
	shortForm bool
	order     []string
	deps      map[string]Dependency
}

// UnmarshalYAML accepts a sequence of names or a mapping to attributes.
func (d *DependsOn) UnmarshalYAML(node *yaml.Node) error {
	d.deps = make(map[string]Dependency)
	switch node.Kind {
	case yaml.SequenceNode:
		d.shortForm = true
		names, err := decodeScalarSequence(node)
		if err != nil {
			return fmt.Errorf("depends_on: %w", err)
		}
		for _, name := range names {
			if _, dup := d.deps[name]; dup {
				return fmt.Errorf("duplicate depends_on entry %q", name)
			}
			d.order = append(d.order, name)
			d.deps[name] = Dependency{}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := node.Content[i]
			valNode := node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return fmt.Errorf("depends_on key must be a scalar, got %s", nodeKind(keyNode))
			}
			name := keyNode.Value
			if _, dup := d.deps[name]; dup {
				return fmt.Errorf("duplicate depends_on entry %q", name)
			}
			var dep Dependency
			if err := valNode.Decode(&dep); err != nil {
				return fmt.Errorf("depends_on entry %q: %w", name, err)
			}
			d.order = append(d.order, name)
			d.deps[name] = dep
		}
		return nil
	default:
		return fmt.Errorf("depends_on must be a list or a mapping, got %s", nodeKind(node))
	}
}

// MarshalYAML emits the dependencies in their declared form and order.
func (d DependsOn) MarshalYAML() (any, error) {
	if d.shortForm {
		return append([]string(nil), d.order...), nil
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, name := range d.order {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
		valNode := &yaml.Node{}
		if err := valNode.Encode(d.deps[name]); err != nil {
			return nil, err
		}
		mapping.Content = append(mapping.Content, keyNode, valNode)
	}
	return mapping, nil
}

// Services returns dependency targets in declaration order.
func (d *DependsOn) Services() []string {
	if d == nil {
		return nil
	}
	return append([]string(nil), d.order...)
}

// Get returns the attributes declared for a dependency target.
func (d *DependsOn) Get(name string) (Dependency, bool) {
	if d == nil {
		return Dependency{}, false
	}
	dep, ok := d.deps[name]
	return dep, ok
}

// Len returns the number of declared dependencies.
func (d *DependsOn) Len() int {
	if d == nil {
		return 0
	}
	return len(d.order)
}

// Healthcheck test prefixes.
const (
	TestKindCmd      = "CMD"
	TestKindCmdShell = "CMD-SHELL"
	TestKindNone     = "NONE"
)

// HealthcheckTest is a probe command declared either as a plain shell
// string or as a sequence whose first element names the test kind.
type HealthcheckTest struct {
	parts     []string
	shellForm bool
}

// UnmarshalYAML accepts a scalar string or a sequence of scalars.
func (t *HealthcheckTest) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		t.shellForm = true
		t.parts = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		parts, err := decodeScalarSequence(node)
		if err != nil {
			return fmt.Errorf("healthcheck test: %w", err)
		}
		t.parts = parts
		return nil
	default:
		return fmt.Errorf("healthcheck test must be a string or a list, got %s", nodeKind(node))
	}
}

// MarshalYAML emits the test in its declared form.
func (t HealthcheckTest) MarshalYAML() (any, error) {
	if t.shellForm {
		if len(t.parts) == 0 {
			return "", nil
		}
		return t.parts[0], nil
	}
	return t.parts, nil
}

// Kind returns the declared probe kind. Plain strings imply CMD-SHELL.
func (t *HealthcheckTest) Kind() string {
	if t == nil || len(t.parts) == 0 {
		return ""
	}
	if t.shellForm {
		return TestKindCmdShell
	}
	return t.parts[0]
}

// Args returns the probe arguments, excluding the kind prefix for
// sequence-form tests.
func (t *HealthcheckTest) Args() []string {
	if t == nil || len(t.parts) == 0 {
		return nil
	}
	if t.shellForm {
		return append([]string(nil), t.parts...)
	}
	return append([]string(nil), t.parts[1:]...)
}

func decodeScalarSequence(node *yaml.Node) ([]string, error) {
	values := make([]string, 0, len(node.Content))
	for i, item := range node.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("entry %d must be a scalar, got %s", i, nodeKind(item))
		}
		values = append(values, item.Value)
	}
	return values, nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown node"
	}
}
