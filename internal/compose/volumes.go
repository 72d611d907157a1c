package compose

import (
	"fmt"
	"path"
	"strings"
)

// VolumeMount is a parsed short-form volume specification.
type VolumeMount struct {
	Source string
	Target string
	Mode   string
}

// Named reports whether the mount references a named volume rather
// than a host path or an anonymous volume.
func (m VolumeMount) Named() bool {
	return m.Source != "" && !isHostPath(m.Source)
}

// Bind reports whether the mount binds a host path into the container.
func (m VolumeMount) Bind() bool {
	return isHostPath(m.Source)
}

func isHostPath(source string) bool {
	return strings.HasPrefix(source, "/") ||
		strings.HasPrefix(source, "./") ||
		strings.HasPrefix(source, "../") ||
		strings.HasPrefix(source, "~/") ||
		source == "." || source == ".."
}

func parseVolumeSpec(spec string) (VolumeMount, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return VolumeMount{}, fmt.Errorf("volume specification is empty")
	}
	parts := strings.Split(trimmed, ":")
	// Windows drive letters are not handled; manifests here address
	// Linux containers.
	var mount VolumeMount
	switch len(parts) {
	case 1:
		mount.Target = parts[0]
	case 2:
		mount.Source = parts[0]
		mount.Target = parts[1]
	case 3:
		mount.Source = parts[0]
		mount.Target = parts[1]
		mount.Mode = parts[2]
	default:
		return VolumeMount{}, fmt.Errorf("invalid volume specification %q: expected format [source:]target[:mode]", spec)
	}
	if strings.TrimSpace(mount.Target) == "" {
		return VolumeMount{}, fmt.Errorf("invalid volume specification %q: container path is required", spec)
	}
	if !path.IsAbs(mount.Target) {
		return VolumeMount{}, fmt.Errorf("invalid volume specification %q: container path %q must be absolute", spec, mount.Target)
	}
	if mount.Mode != "" {
		if err := validateVolumeMode(mount.Mode); err != nil {
			return VolumeMount{}, fmt.Errorf("invalid volume specification %q: %w", spec, err)
		}
	}
	return mount, nil
}

func validateVolumeMode(mode string) error {
	for _, opt := range strings.Split(mode, ",") {
		switch strings.TrimSpace(opt) {
		case "ro", "rw", "z", "Z", "cached", "delegated", "consistent":
		default:
			return fmt.Errorf("unknown mount option %q", opt)
		}
	}
	return nil
}

func isWritableVolumeMode(mode string) bool {
	for _, opt := range strings.Split(strings.ToLower(mode), ",") {
		if strings.TrimSpace(opt) == "ro" {
			return false
		}
	}
	return true
}
