package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Docker is the slice of the orchestration accessor this package needs:
// raw status output per service and the host on which mapped ports are
// reachable.
type Docker interface {
	Ps(service string) (string, error)
	HostIP() string
}

var httpProbe = resty.New().SetTimeout(2 * time.Second)

// Container is a live view onto one logical service. It holds no state
// beyond its name and the accessor; every query goes back to
// docker-compose, so answers always reflect the current container, even
// across restarts.
type Container struct {
	name   string
	docker Docker
}

func NewContainer(name string, docker Docker) *Container {
	return &Container{name: name, docker: docker}
}

func (c *Container) Name() string {
	return c.name
}

// Ports returns the service's current port set. Fails with
// ErrContainerNotRunning when no container is up for this service.
func (c *Container) Ports() (Ports, error) {
	output, err := c.docker.Ps(c.name)
	if err != nil {
		return Ports{}, err
	}
	ports, err := ParsePorts(output, c.docker.HostIP())
	if err != nil {
		return Ports{}, fmt.Errorf("container %q: %w", c.name, err)
	}
	return ports, nil
}

// PortMappedExternallyTo resolves the (host, external port) endpoint for
// a declared internal port.
func (c *Container) PortMappedExternallyTo(internalPort int) (DockerPort, error) {
	ports, err := c.Ports()
	if err != nil {
		return DockerPort{}, err
	}
	port, err := ports.External(internalPort)
	if err != nil {
		return DockerPort{}, fmt.Errorf("container %q: %w", c.name, err)
	}
	return port, nil
}

// PortMappedInternallyTo resolves the internally-declared endpoint for a
// declared internal port.
func (c *Container) PortMappedInternallyTo(internalPort int) (DockerPort, error) {
	ports, err := c.Ports()
	if err != nil {
		return DockerPort{}, err
	}
	port, err := ports.Internal(internalPort)
	if err != nil {
		return DockerPort{}, fmt.Errorf("container %q: %w", c.name, err)
	}
	return port, nil
}

// IsRunning reports whether the service currently has a container in an
// Up state. A ps invocation failure is a real error, not "stopped".
func (c *Container) IsRunning() (bool, error) {
	output, err := c.docker.Ps(c.name)
	if err != nil {
		return false, err
	}
	if _, err := ParsePorts(output, c.docker.HostIP()); err != nil {
		if errors.Is(err, ErrContainerNotRunning) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// AllPortsOpen reports whether every port the container exposes accepts
// a TCP connection. A container that is not up yet is simply not ready.
func (c *Container) AllPortsOpen() (bool, error) {
	ports, err := c.Ports()
	if err != nil {
		if errors.Is(err, ErrContainerNotRunning) {
			return false, nil
		}
		return false, err
	}
	for _, port := range ports.All() {
		if !port.IsListeningNow() {
			return false, nil
		}
	}
	return true, nil
}

// RespondsOverHTTP reports whether a GET against the URL built from the
// resolved external endpoint answers with a 2xx status. Connection
// refused and timeouts mean "not yet ready"; an undeclared port is a
// caller error and propagates.
func (c *Container) RespondsOverHTTP(internalPort int, urlFor func(DockerPort) string) (bool, error) {
	port, err := c.PortMappedExternallyTo(internalPort)
	if err != nil {
		if errors.Is(err, ErrContainerNotRunning) {
			return false, nil
		}
		return false, err
	}

	resp, err := httpProbe.R().Get(urlFor(port))
	if err != nil {
		return false, nil
	}
	return resp.IsSuccess(), nil
}
