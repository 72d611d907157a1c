package compose

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/distribution/reference"
	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

// Project mirrors a compose manifest document.
type Project struct {
	Version  string              `yaml:"version,omitempty"`
	Name     string              `yaml:"name,omitempty"`
	Services map[string]*Service `yaml:"services"`
	Volumes  map[string]*Volume  `yaml:"volumes,omitempty"`
	Networks map[string]*Network `yaml:"networks,omitempty"`

	// WorkingDir anchors relative paths (env_file, build context). Set
	// by the loader to the directory of the first manifest file.
	WorkingDir string   `yaml:"-"`
	Sources    []string `yaml:"-"`
}

// Service describes an individual service in the topology.
type Service struct {
	Image         string            `yaml:"image,omitempty"`
	Build         *Build            `yaml:"build,omitempty"`
	ContainerName string            `yaml:"container_name,omitempty"`
	Command       *Command          `yaml:"command,omitempty"`
	Entrypoint    *Command          `yaml:"entrypoint,omitempty"`
	WorkingDir    string            `yaml:"working_dir,omitempty"`
	User          string            `yaml:"user,omitempty"`
	Restart       string            `yaml:"restart,omitempty"`
	EnvFiles      *StringList       `yaml:"env_file,omitempty"`
	Environment   *Environment      `yaml:"environment,omitempty"`
	Labels        map[string]string `yaml:"labels,omitempty"`
	Ports         []string          `yaml:"ports,omitempty"`
	Expose        *StringList       `yaml:"expose,omitempty"`
	Networks      []string          `yaml:"networks,omitempty"`
	Volumes       []string          `yaml:"volumes,omitempty"`
	DependsOn     *DependsOn        `yaml:"depends_on,omitempty"`
	Healthcheck   *Healthcheck      `yaml:"healthcheck,omitempty"`
	MemLimit      *ByteSize         `yaml:"mem_limit,omitempty"`
	ShmSize       *ByteSize         `yaml:"shm_size,omitempty"`
	Develop       *Develop          `yaml:"develop,omitempty"`

	// fileEnv holds variables read from env_file, populated by Load.
	fileEnv map[string]string
}

// Build describes how a service image is built. The short form
// (`build: ./dir`) is preserved on re-serialization.
type Build struct {
	Context    string       `yaml:"context,omitempty"`
	Dockerfile string       `yaml:"dockerfile,omitempty"`
	Args       *Environment `yaml:"args,omitempty"`
	Target     string       `yaml:"target,omitempty"`

	shortForm bool
}

// UnmarshalYAML accepts a context string or a build mapping.
func (b *Build) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		b.shortForm = true
		b.Context = node.Value
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("build must be a string or a mapping, got %s", nodeKind(node))
	}
	type plain Build
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*b = Build(p)
	return nil
}

// MarshalYAML emits the build section in its declared form.
func (b Build) MarshalYAML() (any, error) {
	if b.shortForm {
		return b.Context, nil
	}
	type plain Build
	return plain(b), nil
}

// Healthcheck is the probe the orchestrator runs to decide readiness.
type Healthcheck struct {
	Test          *HealthcheckTest `yaml:"test,omitempty"`
	Interval      Duration         `yaml:"interval,omitempty"`
	Timeout       Duration         `yaml:"timeout,omitempty"`
	Retries       *int             `yaml:"retries,omitempty"`
	StartPeriod   Duration         `yaml:"start_period,omitempty"`
	StartInterval Duration         `yaml:"start_interval,omitempty"`
	Disable       bool             `yaml:"disable,omitempty"`
}

// Defaults applied by the orchestrator when a healthcheck field is
// omitted. The manifest keeps only declared values; these surface
// through the Effective accessors.
const (
	DefaultHealthInterval = 30 * time.Second
	DefaultHealthTimeout  = 30 * time.Second
	DefaultHealthRetries  = 3
)

// EffectiveInterval returns the polling interval, applying the default.
func (h *Healthcheck) EffectiveInterval() time.Duration {
	if h != nil && h.Interval.IsSet() {
		return h.Interval.Duration
	}
	return DefaultHealthInterval
}

// EffectiveTimeout returns the probe timeout, applying the default.
func (h *Healthcheck) EffectiveTimeout() time.Duration {
	if h != nil && h.Timeout.IsSet() {
		return h.Timeout.Duration
	}
	return DefaultHealthTimeout
}

// EffectiveRetries returns the retry budget, applying the default.
func (h *Healthcheck) EffectiveRetries() int {
	if h != nil && h.Retries != nil {
		return *h.Retries
	}
	return DefaultHealthRetries
}

// Disabled reports whether the probe is turned off, either explicitly
// or via a NONE test.
func (h *Healthcheck) Disabled() bool {
	if h == nil {
		return false
	}
	return h.Disable || h.Test.Kind() == TestKindNone
}

// Develop holds rebuild-on-change tooling configuration.
type Develop struct {
	Watch []WatchRule `yaml:"watch,omitempty"`
}

// WatchRule tells file-watch tooling how to react to changes under a path.
type WatchRule struct {
	Action string   `yaml:"action"`
	Path   string   `yaml:"path"`
	Target string   `yaml:"target,omitempty"`
	Ignore []string `yaml:"ignore,omitempty"`
}

// Volume declares a named volume whose lifecycle is owned by the
// orchestrator's storage layer.
type Volume struct {
	Name       string            `yaml:"name,omitempty"`
	Driver     string            `yaml:"driver,omitempty"`
	DriverOpts map[string]string `yaml:"driver_opts,omitempty"`
	External   bool              `yaml:"external,omitempty"`
	Labels     map[string]string `yaml:"labels,omitempty"`
}

// Network declares a named network joining services into one
// reachability domain.
type Network struct {
	Name     string            `yaml:"name,omitempty"`
	Driver   string            `yaml:"driver,omitempty"`
	External bool              `yaml:"external,omitempty"`
	Labels   map[string]string `yaml:"labels,omitempty"`
}

var containerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Validate enforces schema invariants and the static properties the
// topology must satisfy before an orchestrator may consume it.
func (p *Project) Validate() error {
	if len(p.Services) == 0 {
		return fmt.Errorf("%s: must define at least one service", fieldPath("services"))
	}
	containerNames := make(map[string]string)
	for _, name := range p.ServicesSorted() {
		svc := p.Services[name]
		if svc == nil {
			return fmt.Errorf("%s: is null", fieldPath("services", name))
		}
		if err := p.validateService(name, svc, containerNames); err != nil {
			return err
		}
	}
	if err := validatePortCollisions(p); err != nil {
		return err
	}
	return nil
}

func (p *Project) validateService(name string, svc *Service, containerNames map[string]string) error {
	if strings.TrimSpace(svc.Image) == "" && svc.Build == nil {
		return fmt.Errorf("%s: requires an image or a build context", fieldPath("services", name))
	}
	if svc.Image != "" {
		if _, err := reference.ParseNormalizedNamed(svc.Image); err != nil {
			return fmt.Errorf("%s: invalid image reference %q: %w", serviceField(name, "image"), svc.Image, err)
		}
	}
	if svc.Build != nil && strings.TrimSpace(svc.Build.Context) == "" {
		return fmt.Errorf("%s: is required", serviceField(name, "build", "context"))
	}
	if svc.ContainerName != "" {
		if !containerNamePattern.MatchString(svc.ContainerName) {
			return fmt.Errorf("%s: invalid container name %q", serviceField(name, "container_name"), svc.ContainerName)
		}
		if other, taken := containerNames[svc.ContainerName]; taken {
			return fmt.Errorf("%s: container name %q already used by service %q", serviceField(name, "container_name"), svc.ContainerName, other)
		}
		containerNames[svc.ContainerName] = name
	}
	if err := validateRestartPolicy(svc.Restart); err != nil {
		return fmt.Errorf("%s: %w", serviceField(name, "restart"), err)
	}
	for i, port := range svc.Ports {
		if err := validatePort(port); err != nil {
			return fmt.Errorf("%s: %w", serviceField(name, fmt.Sprintf("ports[%d]", i)), err)
		}
	}
	for i, port := range svc.Expose.Values() {
		if _, _, err := nat.ParsePortRange(port); err != nil {
			return fmt.Errorf("%s: invalid exposed port %q", serviceField(name, fmt.Sprintf("expose[%d]", i)), port)
		}
	}
	for i, spec := range svc.Volumes {
		mount, err := parseVolumeSpec(spec)
		if err != nil {
			return fmt.Errorf("%s: %w", serviceField(name, fmt.Sprintf("volumes[%d]", i)), err)
		}
		if mount.Named() {
			if _, declared := p.Volumes[mount.Source]; !declared {
				return fmt.Errorf("%s: references undeclared volume %q", serviceField(name, fmt.Sprintf("volumes[%d]", i)), mount.Source)
			}
		}
	}
	for i, network := range svc.Networks {
		if network == "default" {
			continue
		}
		if _, declared := p.Networks[network]; !declared {
			return fmt.Errorf("%s: references undeclared network %q", serviceField(name, fmt.Sprintf("networks[%d]", i)), network)
		}
	}
	for _, target := range svc.DependsOn.Services() {
		dep, _ := svc.DependsOn.Get(target)
		if target == name {
			return fmt.Errorf("%s: service cannot depend on itself", dependencyField(name, target))
		}
		depended, declared := p.Services[target]
		if !declared {
			return fmt.Errorf("%s: references unknown service %q", dependencyField(name, target), target)
		}
		switch dep.EffectiveCondition() {
		case ConditionStarted, ConditionCompleted:
		case ConditionHealthy:
			if depended == nil || depended.Healthcheck == nil || depended.Healthcheck.Disabled() {
				return fmt.Errorf("%s: condition %s requires service %q to define a healthcheck", dependencyField(name, target, "condition"), ConditionHealthy, target)
			}
		default:
			return fmt.Errorf("%s: invalid value %q (expected one of: %s, %s, %s)", dependencyField(name, target, "condition"), dep.Condition, ConditionStarted, ConditionHealthy, ConditionCompleted)
		}
	}
	if svc.Healthcheck != nil {
		if err := validateHealthcheck(name, svc.Healthcheck); err != nil {
			return err
		}
	}
	if svc.Develop != nil {
		for i, rule := range svc.Develop.Watch {
			if err := validateWatchRule(rule); err != nil {
				return fmt.Errorf("%s: %w", serviceField(name, "develop", fmt.Sprintf("watch[%d]", i)), err)
			}
		}
	}
	return nil
}

func validateHealthcheck(name string, h *Healthcheck) error {
	if h.Disable {
		if h.Test != nil && h.Test.Kind() != TestKindNone {
			return fmt.Errorf("%s: cannot combine disable with a test command", healthField(name))
		}
	} else if h.Test == nil {
		return fmt.Errorf("%s: is required", healthField(name, "test"))
	}
	if h.Test != nil {
		switch h.Test.Kind() {
		case TestKindCmd, TestKindCmdShell:
			if len(h.Test.Args()) == 0 {
				return fmt.Errorf("%s: must contain a command", healthField(name, "test"))
			}
		case TestKindNone:
		case "":
			return fmt.Errorf("%s: must not be empty", healthField(name, "test"))
		default:
			return fmt.Errorf("%s: first element must be one of %s, %s, %s", healthField(name, "test"), TestKindCmd, TestKindCmdShell, TestKindNone)
		}
	}
	if h.Retries != nil && *h.Retries < 0 {
		return fmt.Errorf("%s: must be non-negative", healthField(name, "retries"))
	}
	durations := []struct {
		field string
		value Duration
	}{
		{"interval", h.Interval},
		{"timeout", h.Timeout},
		{"start_period", h.StartPeriod},
		{"start_interval", h.StartInterval},
	}
	for _, d := range durations {
		if d.value.IsSet() && d.value.Duration < 0 {
			return fmt.Errorf("%s: must be non-negative", healthField(name, d.field))
		}
	}
	return nil
}

func validateRestartPolicy(policy string) error {
	switch policy {
	case "", "no", "always", "unless-stopped", "on-failure":
		return nil
	}
	if rest, ok := strings.CutPrefix(policy, "on-failure:"); ok {
		if retries, err := strconv.Atoi(rest); err == nil && retries >= 0 {
			return nil
		}
	}
	return fmt.Errorf("invalid restart policy %q (expected one of: no, always, unless-stopped, on-failure[:max-retries])", policy)
}

func validateWatchRule(rule WatchRule) error {
	switch rule.Action {
	case "rebuild", "sync", "sync+restart", "sync+exec":
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("invalid watch action %q (expected one of: rebuild, sync, sync+restart, sync+exec)", rule.Action)
	}
	if strings.TrimSpace(rule.Path) == "" {
		return fmt.Errorf("path is required")
	}
	if strings.HasPrefix(rule.Action, "sync") && rule.Action != "sync+exec" && strings.TrimSpace(rule.Target) == "" {
		return fmt.Errorf("target is required for %s actions", rule.Action)
	}
	return nil
}

func validatePort(spec string) error {
	mappings, err := nat.ParsePortSpec(spec)
	if err != nil {
		return fmt.Errorf("invalid port mapping %q: %w", spec, err)
	}
	if len(mappings) == 0 {
		return fmt.Errorf("invalid port mapping %q: no port definitions found", spec)
	}
	for _, mapping := range mappings {
		hostPort := strings.TrimSpace(mapping.Binding.HostPort)
		if hostPort != "" {
			hostStart, hostEnd, err := nat.ParsePortRange(hostPort)
			if err != nil {
				return fmt.Errorf("invalid port mapping %q: invalid host port %q", spec, hostPort)
			}
			if hostStart == 0 || hostEnd == 0 {
				return fmt.Errorf("invalid port mapping %q: host port must be in range 1-65535", spec)
			}
		}
		containerStart, containerEnd, err := mapping.Port.Range()
		if err != nil {
			return fmt.Errorf("invalid port mapping %q: %w", spec, err)
		}
		if containerStart == 0 || containerEnd == 0 {
			return fmt.Errorf("invalid port mapping %q: container port must be in range 1-65535", spec)
		}
	}
	return nil
}

// EffectiveEnvironment merges env_file variables with inline
// environment entries; inline entries win. Passthrough entries resolve
// through lookup, which may be nil; a passthrough whose variable is
// unset contributes nothing.
func (s *Service) EffectiveEnvironment(lookup func(string) (string, bool)) map[string]string {
	merged := make(map[string]string, len(s.fileEnv))
	for k, v := range s.fileEnv {
		merged[k] = v
	}
	for _, key := range s.Environment.Keys() {
		value, _ := s.Environment.Lookup(key)
		if value != nil {
			merged[key] = *value
			continue
		}
		if lookup != nil {
			if resolved, ok := lookup(key); ok {
				merged[key] = resolved
			}
		}
	}
	return merged
}

// ServicesSorted returns service names sorted alphabetically.
func (p *Project) ServicesSorted() []string {
	out := make([]string, 0, len(p.Services))
	for name := range p.Services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// VolumesSorted returns declared volume names sorted alphabetically.
func (p *Project) VolumesSorted() []string {
	out := make([]string, 0, len(p.Volumes))
	for name := range p.Volumes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NetworksSorted returns declared network names sorted alphabetically.
func (p *Project) NetworksSorted() []string {
	out := make([]string, 0, len(p.Networks))
	for name := range p.Networks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func fieldPath(parts ...string) string {
	return strings.Join(parts, ".")
}

func serviceField(service string, parts ...string) string {
	pathParts := append([]string{"services", service}, parts...)
	return fieldPath(pathParts...)
}

func dependencyField(service, target string, parts ...string) string {
	dep := fmt.Sprintf("depends_on[%s]", target)
	pathParts := append([]string{dep}, parts...)
	return serviceField(service, pathParts...)
}

func healthField(service string, parts ...string) string {
	pathParts := append([]string{"healthcheck"}, parts...)
	return serviceField(service, pathParts...)
}
