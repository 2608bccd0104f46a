// Package logging archives container output for the lifetime of one
// test environment. Collection runs in the background between
// StartCollecting and StopCollecting; stopping waits for every stream to
// terminate so no writes happen after the environment reports stopped.
package logging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/flanksource/commons/logger"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// LogSource streams logs for the services of one compose environment.
type LogSource interface {
	ServiceNames() []string
	Logs(ctx context.Context, service string, w io.Writer) error
}

// Collector archives service logs to some sink between matching
// StartCollecting/StopCollecting calls.
type Collector interface {
	StartCollecting(source LogSource) error
	StopCollecting() error
}

type doNothingCollector struct{}

// NewDoNothingCollector returns the default collector, which discards
// all logs.
func NewDoNothingCollector() Collector {
	return doNothingCollector{}
}

func (doNothingCollector) StartCollecting(LogSource) error { return nil }
func (doNothingCollector) StopCollecting() error           { return nil }

// FileCollector writes one <service>.log file per service into a
// directory, following each service's log stream in its own goroutine.
type FileCollector struct {
	dir    string
	cancel context.CancelFunc
	group  *errgroup.Group
	files  []*os.File
}

func NewFileCollector(dir string) *FileCollector {
	return &FileCollector{dir: dir}
}

// StartCollecting begins following logs for every service in the
// manifest. Call it once the containers exist so startup output is
// captured too.
func (c *FileCollector) StartCollecting(source LogSource) error {
	if c.cancel != nil {
		return errors.New("log collection already started")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	group := &errgroup.Group{}

	for _, service := range source.ServiceNames() {
		file, err := os.Create(filepath.Join(c.dir, service+".log"))
		if err != nil {
			cancel()
			return multierr.Append(err, c.closeFiles())
		}
		c.files = append(c.files, file)

		logger.Debugf("collecting logs for %s into %s", service, file.Name())
		group.Go(func() error {
			err := source.Logs(ctx, service, file)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("log stream for %s: %v", service, err)
				return err
			}
			return nil
		})
	}

	c.cancel = cancel
	c.group = group
	return nil
}

// StopCollecting signals every stream to stop, waits for them to
// terminate, and closes the log files. Safe to call when collection
// never started.
func (c *FileCollector) StopCollecting() error {
	if c.cancel == nil {
		return nil
	}

	c.cancel()
	err := c.group.Wait()
	err = multierr.Append(err, c.closeFiles())

	c.cancel = nil
	c.group = nil
	return err
}

func (c *FileCollector) closeFiles() error {
	var err error
	for _, file := range c.files {
		err = multierr.Append(err, file.Close())
	}
	c.files = nil
	return err
}
