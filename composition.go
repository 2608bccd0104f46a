package composetest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/flanksource/commons/logger"
	"go.uber.org/multierr"

	"github.com/flanksource/compose-test/connection"
	"github.com/flanksource/compose-test/logging"
	"github.com/flanksource/compose-test/wait"
)

// Executor is the docker-compose surface the composition drives. It is
// satisfied by compose.DockerCompose; tests substitute fakes.
type Executor interface {
	Build() error
	Up() error
	Down() error
	Kill() error
	Rm() error
	Ps(service string) (string, error)
	Logs(ctx context.Context, service string, w io.Writer) error
	ServiceNames() []string
	HostIP() string
}

// State is the lifecycle phase a Composition is in.
type State string

const (
	StateConfigured         State = "configured"
	StateBuilding           State = "building"
	StateStarting           State = "starting"
	StateWaitingForServices State = "waiting for services"
	StateRunning            State = "running"
	StateTearingDown        State = "tearing down"
	StateStopped            State = "stopped"
	StateFailed             State = "failed"
)

type serviceWait struct {
	container *connection.Container
	check     ReadinessCheck
}

// Composition is one configured test environment. Build one with
// NewComposition and drive it with Start/Stop from the host framework's
// setup and teardown hooks.
type Composition struct {
	docker       Executor
	containers   *connection.ContainerCache
	waits        []serviceWait
	timeout      time.Duration
	pollInterval time.Duration
	logs         logging.Collector

	mu    sync.Mutex
	state State
}

// State returns the current lifecycle phase.
func (c *Composition) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Composition) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start builds and starts the environment, begins log collection, and
// blocks until every registered service passes its readiness check.
//
// A failure leaves the composition in StateFailed without attempting any
// cleanup; the host framework is expected to call Stop regardless of the
// outcome.
func (c *Composition) Start(ctx context.Context) error {
	if current := c.State(); current != StateConfigured {
		return fmt.Errorf("cannot start a composition that is %s", current)
	}

	c.setState(StateBuilding)
	logger.Debugf("building compose environment")
	if err := c.docker.Build(); err != nil {
		c.setState(StateFailed)
		return err
	}

	c.setState(StateStarting)
	logger.Debugf("starting compose environment")
	if err := c.docker.Up(); err != nil {
		c.setState(StateFailed)
		return err
	}

	// collection starts as soon as containers exist so that services
	// failing their readiness checks still leave logs behind
	logger.Debugf("starting log collection")
	if err := c.logs.StartCollecting(c.docker); err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("starting log collection: %w", err)
	}

	c.setState(StateWaitingForServices)
	for _, sw := range c.waits {
		name := sw.container.Name()
		logger.Debugf("waiting up to %s for service %s", c.timeout, name)
		err := wait.Until(ctx, name, c.timeout, c.pollInterval, func(context.Context) (bool, error) {
			return sw.check.Evaluate(sw.container)
		})
		if err != nil {
			c.setState(StateFailed)
			return err
		}
	}

	c.setState(StateRunning)
	logger.Infof("compose environment up, %d service(s) ready", len(c.waits))
	return nil
}

// Stop tears the environment down: down, kill and rm are each attempted
// regardless of earlier step failures, then log collection is stopped.
// Errors from all steps are aggregated and surfaced together, first step
// first. Stop is safe to call on an already-stopped or failed
// composition.
func (c *Composition) Stop() error {
	c.setState(StateTearingDown)
	logger.Debugf("tearing down compose environment")

	var errs error
	steps := []struct {
		name string
		run  func() error
	}{
		{"down", c.docker.Down},
		{"kill", c.docker.Kill},
		{"rm", c.docker.Rm},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			logger.Errorf("docker-compose %s: %v", step.name, err)
			errs = multierr.Append(errs, err)
		}
	}

	if err := c.logs.StopCollecting(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stopping log collection: %w", err))
	}

	c.setState(StateStopped)
	return errs
}

// Container returns the identity-stable handle for a service.
func (c *Composition) Container(name string) *connection.Container {
	return c.containers.Container(name)
}

// PortOnContainerWithExternalMapping resolves the (host, port) endpoint
// reachable from the test runner for a service's internal port.
func (c *Composition) PortOnContainerWithExternalMapping(name string, internalPort int) (connection.DockerPort, error) {
	return c.containers.Container(name).PortMappedExternallyTo(internalPort)
}

// PortOnContainerWithInternalMapping resolves the internally-declared
// endpoint for a service's internal port.
func (c *Composition) PortOnContainerWithInternalMapping(name string, internalPort int) (connection.DockerPort, error) {
	return c.containers.Container(name).PortMappedInternallyTo(internalPort)
}
