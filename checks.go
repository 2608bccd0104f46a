// Package composetest brings up a docker-compose environment for
// integration tests, waits until caller-defined readiness checks hold,
// exposes resolved network endpoints to test code, and tears everything
// down afterward, optionally archiving container logs.
//
// The host test framework is responsible for calling Start and Stop in
// matching pairs, typically from its setup/teardown hooks; Stop should
// run even when Start failed.
package composetest

import (
	"errors"
	"fmt"

	"github.com/flanksource/compose-test/connection"
)

// ReadinessCheck decides whether a single service is usable by tests.
// Checks are evaluated many times per wait, so they must be idempotent,
// and they must report "not ready yet" as (false, nil): a returned error
// is treated as a broken check and aborts the wait immediately.
type ReadinessCheck interface {
	Evaluate(container *connection.Container) (bool, error)
}

// CheckFunc adapts a plain function to a ReadinessCheck.
type CheckFunc func(*connection.Container) (bool, error)

func (f CheckFunc) Evaluate(c *connection.Container) (bool, error) {
	return f(c)
}

// ToHaveAllPortsOpen is satisfied once every port the container exposes
// accepts a TCP connection.
func ToHaveAllPortsOpen() ReadinessCheck {
	return CheckFunc(func(c *connection.Container) (bool, error) {
		return c.AllPortsOpen()
	})
}

// ToRespondOverHTTP is satisfied once a GET against the URL built from
// the resolved external endpoint of internalPort answers 2xx.
func ToRespondOverHTTP(internalPort int, urlFor func(connection.DockerPort) string) ReadinessCheck {
	return CheckFunc(func(c *connection.Container) (bool, error) {
		return c.RespondsOverHTTP(internalPort, urlFor)
	})
}

// ToRespondOverHTTPAt is ToRespondOverHTTP for the common case of a
// fixed path on the resolved endpoint.
func ToRespondOverHTTPAt(internalPort int, path string) ReadinessCheck {
	return ToRespondOverHTTP(internalPort, func(p connection.DockerPort) string {
		return fmt.Sprintf("http://%s%s", p.Address(), path)
	})
}

// errorIsTransient reports whether a resolution failure just means the
// container is not up yet.
func errorIsTransient(err error) bool {
	return errors.Is(err, connection.ErrContainerNotRunning)
}
