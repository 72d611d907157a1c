package compose

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"
)

type portClaim struct {
	services map[string]struct{}
}

// portClaims indexes claimed host bindings by port, then by host IP.
// The per-port index lets a wildcard bind see every specific-IP claim
// already holding the port, whichever order services declare them in.
type portClaims map[int]map[string]*portClaim

func validatePortCollisions(p *Project) error {
	if len(p.Services) == 0 {
		return nil
	}
	claimed := portClaims{}
	for _, serviceName := range p.ServicesSorted() {
		svc := p.Services[serviceName]
		if svc == nil {
			continue
		}
		if err := claimServicePorts(serviceName, svc, claimed); err != nil {
			return err
		}
	}
	return nil
}

func claimServicePorts(serviceName string, svc *Service, claimed portClaims) error {
	for idx, spec := range svc.Ports {
		mappings, err := nat.ParsePortSpec(spec)
		if err != nil {
			return fmt.Errorf("%s: invalid port mapping %q: %w", serviceField(serviceName, fmt.Sprintf("ports[%d]", idx)), spec, err)
		}
		for _, mapping := range mappings {
			hostPortSpec := strings.TrimSpace(mapping.Binding.HostPort)
			if hostPortSpec == "" {
				continue
			}
			hostIP := normalizeHostIP(mapping.Binding.HostIP)
			start, end, err := nat.ParsePortRange(hostPortSpec)
			if err != nil {
				return fmt.Errorf("%s: invalid host port %q", serviceField(serviceName, fmt.Sprintf("ports[%d]", idx)), hostPortSpec)
			}
			for port := int(start); port <= int(end); port++ {
				byIP := claimed[port]

				var conflictServices map[string]struct{}
				for existingIP, claim := range byIP {
					if existingIP != hostIP && existingIP != "0.0.0.0" && hostIP != "0.0.0.0" {
						continue
					}
					if conflictServices == nil {
						conflictServices = map[string]struct{}{}
					}
					for existing := range claim.services {
						conflictServices[existing] = struct{}{}
					}
				}

				if len(conflictServices) > 0 {
					services := make([]string, 0, len(conflictServices)+1)
					for existing := range conflictServices {
						services = append(services, existing)
					}
					if _, seen := conflictServices[serviceName]; !seen {
						services = append(services, serviceName)
					}
					sort.Strings(services)
					return fmt.Errorf("%s: host port %d on IP %q conflicts with service(s) %s", serviceField(serviceName, fmt.Sprintf("ports[%d]", idx)), port, hostIP, strings.Join(services, ", "))
				}

				if byIP == nil {
					byIP = map[string]*portClaim{}
					claimed[port] = byIP
				}
				claim := byIP[hostIP]
				if claim == nil {
					claim = &portClaim{services: map[string]struct{}{}}
					byIP[hostIP] = claim
				}
				claim.services[serviceName] = struct{}{}
			}
		}
	}
	return nil
}

func normalizeHostIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "0.0.0.0" {
		return "0.0.0.0"
	}
	return ip
}

// Warnings reports topology smells that do not invalidate the
// manifest: writable mounts shared between services, and volumes or
// networks declared but never referenced.
func (p *Project) Warnings() []string {
	var warnings []string
	warnings = append(warnings, collectMountConflicts(p)...)
	warnings = append(warnings, collectOrphans(p)...)
	return warnings
}

func collectMountConflicts(p *Project) []string {
	writable := make(map[string]map[string]struct{})
	for serviceName, svc := range p.Services {
		if svc == nil || len(svc.Volumes) == 0 {
			continue
		}
		seen := make(map[string]struct{})
		for _, spec := range svc.Volumes {
			mount, err := parseVolumeSpec(spec)
			if err != nil || mount.Source == "" {
				continue
			}
			mode := mount.Mode
			if mode == "" {
				mode = "rw"
			}
			if !isWritableVolumeMode(mode) {
				continue
			}
			if _, dup := seen[mount.Source]; dup {
				continue
			}
			seen[mount.Source] = struct{}{}
			serviceSet := writable[mount.Source]
			if serviceSet == nil {
				serviceSet = make(map[string]struct{})
				writable[mount.Source] = serviceSet
			}
			serviceSet[serviceName] = struct{}{}
		}
	}

	var warnings []string
	for source, services := range writable {
		if len(services) < 2 {
			continue
		}
		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		sort.Strings(names)
		warnings = append(warnings, fmt.Sprintf("services %s share writable mount %q; consider mounting it read-only (mode \"ro\") for all but one service", strings.Join(names, ", "), source))
	}
	sort.Strings(warnings)
	return warnings
}

func collectOrphans(p *Project) []string {
	usedVolumes := make(map[string]struct{})
	usedNetworks := make(map[string]struct{})
	for _, svc := range p.Services {
		if svc == nil {
			continue
		}
		for _, spec := range svc.Volumes {
			mount, err := parseVolumeSpec(spec)
			if err == nil && mount.Named() {
				usedVolumes[mount.Source] = struct{}{}
			}
		}
		for _, network := range svc.Networks {
			usedNetworks[network] = struct{}{}
		}
	}

	var warnings []string
	for _, name := range p.VolumesSorted() {
		if _, used := usedVolumes[name]; !used {
			warnings = append(warnings, fmt.Sprintf("volume %q is declared but not mounted by any service", name))
		}
	}
	for _, name := range p.NetworksSorted() {
		if _, used := usedNetworks[name]; !used {
			warnings = append(warnings, fmt.Sprintf("network %q is declared but not joined by any service", name))
		}
	}
	return warnings
}
