package compose

import (
	"fmt"
	"os"
	"sort"

	"github.com/docker/go-connections/nat"
	"github.com/flanksource/commons/files"
	"github.com/samber/lo"
	"sigs.k8s.io/yaml"
)

type manifestService struct {
	Image string   `json:"image"`
	Ports []string `json:"ports"`
}

type manifest struct {
	Services map[string]manifestService `json:"services"`
}

// Files is a validated set of docker-compose manifest files. Later files
// override services declared in earlier ones, matching docker-compose's
// own -f semantics.
type Files struct {
	paths    []string
	services map[string]manifestService
}

// NewFiles reads and validates one or more compose files.
func NewFiles(paths ...string) (Files, error) {
	if len(paths) == 0 {
		return Files{}, fmt.Errorf("at least one docker-compose file is required")
	}

	services := map[string]manifestService{}
	for _, path := range paths {
		if !files.Exists(path) {
			return Files{}, fmt.Errorf("docker-compose file %s does not exist", path)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return Files{}, fmt.Errorf("reading %s: %w", path, err)
		}

		var m manifest
		if err := yaml.Unmarshal(raw, &m); err != nil {
			return Files{}, fmt.Errorf("parsing %s: %w", path, err)
		}
		if len(m.Services) == 0 {
			return Files{}, fmt.Errorf("%s declares no services", path)
		}
		for name, svc := range m.Services {
			services[name] = svc
		}
	}

	return Files{paths: paths, services: services}, nil
}

// Paths returns the manifest file paths in the order they were given.
func (f Files) Paths() []string {
	return f.paths
}

// ServiceNames returns the names of all declared services, sorted.
func (f Files) ServiceNames() []string {
	names := lo.Keys(f.services)
	sort.Strings(names)
	return names
}

// HasService reports whether the manifest declares the named service.
func (f Files) HasService(name string) bool {
	_, ok := f.services[name]
	return ok
}

// DeclaredPorts returns the internal ports the manifest declares for a
// service. Entries it cannot parse as a port spec are skipped.
func (f Files) DeclaredPorts(service string) []int {
	svc, ok := f.services[service]
	if !ok {
		return nil
	}

	var declared []int
	for _, spec := range svc.Ports {
		mappings, err := nat.ParsePortSpec(spec)
		if err != nil {
			continue
		}
		for _, m := range mappings {
			declared = append(declared, m.Port.Int())
		}
	}
	return declared
}

// args returns the -f flags shared by every docker-compose invocation.
func (f Files) args() []string {
	var args []string
	for _, path := range f.paths {
		args = append(args, "-f", path)
	}
	return args
}
