package compose

import (
	"net/url"
	"os"
)

const defaultHostIP = "127.0.0.1"

// DockerHost resolves the IP the test runner should use to reach ports
// that docker publishes on the host. A remote daemon configured through
// DOCKER_HOST (tcp://ip:port) wins; socket-based daemons map to loopback.
func DockerHost() string {
	raw := os.Getenv("DOCKER_HOST")
	if raw == "" {
		return defaultHostIP
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return defaultHostIP
	}
	return u.Hostname()
}
