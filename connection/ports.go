// Package connection resolves logical service names to live network
// endpoints by interrogating docker-compose, and hands out identity-stable
// container handles for readiness checks and test code to query.
package connection

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-connections/nat"
)

var (
	// ErrContainerNotRunning means the queried service has no running
	// container, so no port mapping can be trusted.
	ErrContainerNotRunning = errors.New("container is not running")

	// ErrPortNotExposed means the queried internal port is not declared
	// by the service.
	ErrPortNotExposed = errors.New("port is not exposed")
)

const dialTimeout = 500 * time.Millisecond

// mapped ports render as "0.0.0.0:32768->80/tcp" in ps output
var mappedPortPattern = regexp.MustCompile(`(\d+(?:\.\d+){3}):(\d+)->(\d+)/(tcp|udp)`)

// unexposed ports render bare, e.g. "443/tcp"
var barePortPattern = regexp.MustCompile(`(?:^|[\s,])(\d+/(?:tcp|udp))`)

// DockerPort is one resolved port on a container: the host and external
// port reachable from the test runner, plus the internally declared port.
type DockerPort struct {
	host         string
	externalPort int
	internalPort int
}

func NewDockerPort(host string, externalPort, internalPort int) DockerPort {
	return DockerPort{host: host, externalPort: externalPort, internalPort: internalPort}
}

func (p DockerPort) Host() string {
	return p.host
}

func (p DockerPort) ExternalPort() int {
	return p.externalPort
}

func (p DockerPort) InternalPort() int {
	return p.internalPort
}

// Address returns the externally reachable host:port form.
func (p DockerPort) Address() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.externalPort))
}

func (p DockerPort) String() string {
	return fmt.Sprintf("%s (internal port %d)", p.Address(), p.internalPort)
}

// IsListeningNow reports whether a TCP connection to the external
// endpoint currently succeeds. Connection failure means "not yet", so it
// is returned as false rather than an error.
func (p DockerPort) IsListeningNow() bool {
	conn, err := net.DialTimeout("tcp", p.Address(), dialTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ports is the full set of ports one service currently exposes.
type Ports struct {
	ports []DockerPort
}

// ParsePorts extracts port mappings from docker-compose ps output for a
// single service. host replaces the wildcard bind address 0.0.0.0, since
// that is the address the daemon listens on, not the one tests dial.
//
// It fails with ErrContainerNotRunning when the output shows no container
// in an Up state.
func ParsePorts(psOutput, host string) (Ports, error) {
	lines := nonEmptyLines(psOutput)
	var rows []string
	for i, line := range lines {
		if i == 0 {
			// column header
			continue
		}
		if strings.Trim(line, "- ") == "" {
			// separator row in the classic docker-compose layout
			continue
		}
		rows = append(rows, line)
	}
	if len(rows) == 0 {
		return Ports{}, fmt.Errorf("no container listed in ps output: %w", ErrContainerNotRunning)
	}
	body := strings.Join(rows, "\n")
	if !strings.Contains(body, "Up") {
		return Ports{}, ErrContainerNotRunning
	}

	var ports []DockerPort
	for _, m := range mappedPortPattern.FindAllStringSubmatch(body, -1) {
		bindAddr := m[1]
		if bindAddr == "0.0.0.0" && host != "" {
			bindAddr = host
		}
		external, _ := strconv.Atoi(m[2])
		internal, _ := strconv.Atoi(m[3])
		ports = append(ports, NewDockerPort(bindAddr, external, internal))
	}

	// strip mapped entries so their "->80/tcp" tails don't match again
	remainder := mappedPortPattern.ReplaceAllString(body, "")
	for _, m := range barePortPattern.FindAllStringSubmatch(remainder, -1) {
		internal := nat.Port(m[1]).Int()
		ports = append(ports, NewDockerPort(host, internal, internal))
	}

	return Ports{ports: ports}, nil
}

// All returns every port in declaration order.
func (p Ports) All() []DockerPort {
	return p.ports
}

// External resolves the externally reachable endpoint for an internal
// port. Ports the daemon did not map keep their internal number.
func (p Ports) External(internalPort int) (DockerPort, error) {
	for _, port := range p.ports {
		if port.internalPort == internalPort {
			return port, nil
		}
	}
	return DockerPort{}, fmt.Errorf("port %d: %w", internalPort, ErrPortNotExposed)
}

// Internal resolves an internal port to its internally-declared address,
// for checks that run from another container's perspective.
func (p Ports) Internal(internalPort int) (DockerPort, error) {
	for _, port := range p.ports {
		if port.internalPort == internalPort {
			return NewDockerPort(port.host, internalPort, internalPort), nil
		}
	}
	return DockerPort{}, fmt.Errorf("port %d: %w", internalPort, ErrPortNotExposed)
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
