package composetest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/flanksource/compose-test/compose"
	"github.com/flanksource/compose-test/connection"
	"github.com/flanksource/compose-test/logging"
	"github.com/flanksource/compose-test/wait"
)

// DefaultServiceTimeout bounds each registered service's readiness wait.
const DefaultServiceTimeout = 2 * time.Minute

// Builder assembles a Composition. Configuration methods record the
// first failure instead of returning it; Build surfaces it.
type Builder struct {
	docker       Executor
	containers   *connection.ContainerCache
	waits        []serviceWait
	timeout      time.Duration
	pollInterval time.Duration
	logs         logging.Collector
	err          error
}

// NewComposition starts building a composition around an accessor,
// usually a compose.DockerCompose.
func NewComposition(docker Executor) *Builder {
	return &Builder{
		docker:       docker,
		containers:   connection.NewContainerCache(docker),
		timeout:      DefaultServiceTimeout,
		pollInterval: wait.DefaultPollInterval,
		logs:         logging.NewDoNothingCollector(),
	}
}

// FromFiles is NewComposition for the common case of one or more
// docker-compose files on disk.
func FromFiles(paths ...string) *Builder {
	files, err := compose.NewFiles(paths...)
	if err != nil {
		return &Builder{err: err}
	}
	return NewComposition(compose.New(files))
}

// WaitingForService registers a readiness check that Start will block
// on. Waits run in registration order.
func (b *Builder) WaitingForService(name string, check ReadinessCheck) *Builder {
	if b.err != nil {
		return b
	}
	if check == nil {
		b.fail(fmt.Errorf("readiness check for service %q is nil", name))
		return b
	}
	b.waits = append(b.waits, serviceWait{container: b.containers.Container(name), check: check})
	return b
}

// ServiceTimeout bounds each individual service's readiness wait.
func (b *Builder) ServiceTimeout(timeout time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if timeout <= 0 {
		b.fail(fmt.Errorf("service timeout must be positive, got %s", timeout))
		return b
	}
	b.timeout = timeout
	return b
}

// PollInterval sets the delay between readiness check evaluations.
func (b *Builder) PollInterval(interval time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if interval <= 0 {
		b.fail(fmt.Errorf("poll interval must be positive, got %s", interval))
		return b
	}
	b.pollInterval = interval
	return b
}

// SaveLogsTo archives container logs under dir, one file per service.
// The directory is created if missing; an existing regular file at dir
// is a configuration error.
func (b *Builder) SaveLogsTo(dir string) *Builder {
	if b.err != nil {
		return b
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		b.fail(fmt.Errorf("log directory %s is a regular file", dir))
		return b
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		b.fail(fmt.Errorf("creating log directory: %w", err))
		return b
	}
	b.logs = logging.NewFileCollector(dir)
	return b
}

// WithLogCollector substitutes a custom collector.
func (b *Builder) WithLogCollector(collector logging.Collector) *Builder {
	if b.err != nil {
		return b
	}
	if collector == nil {
		b.fail(errors.New("log collector is nil"))
		return b
	}
	b.logs = collector
	return b
}

// Build validates the configuration and returns an immutable
// Composition in StateConfigured.
func (b *Builder) Build() (*Composition, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.docker == nil {
		return nil, errors.New("no docker-compose accessor configured")
	}
	return &Composition{
		docker:       b.docker,
		containers:   b.containers,
		waits:        b.waits,
		timeout:      b.timeout,
		pollInterval: b.pollInterval,
		logs:         b.logs,
		state:        StateConfigured,
	}, nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
