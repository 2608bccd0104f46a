// Package compose wraps the docker-compose executable. It shells out for
// every operation and never talks to the docker daemon directly, so the
// harness observes exactly what the orchestration tool reports.
package compose

import (
	"context"
	"fmt"
	"io"

	"github.com/flanksource/compose-test/command"
)

// DefaultBinary is the orchestration executable invoked for all operations.
const DefaultBinary = "docker-compose"

// DockerCompose drives one compose project. All process invocations go
// through the same runner and are issued sequentially, never concurrently
// against the same project.
type DockerCompose struct {
	files       Files
	projectName string
	host        string
	binary      string
	runner      *command.Runner
}

// New creates an accessor for the environment described by files.
func New(files Files) *DockerCompose {
	return &DockerCompose{
		files:  files,
		host:   DockerHost(),
		binary: DefaultBinary,
		runner: command.NewCommandRunner(true),
	}
}

// WithProjectName scopes all invocations with -p so parallel test runs
// do not collide on container names.
func (d *DockerCompose) WithProjectName(name string) *DockerCompose {
	d.projectName = name
	return d
}

// WithBinary overrides the docker-compose executable.
func (d *DockerCompose) WithBinary(binary string) *DockerCompose {
	d.binary = binary
	return d
}

// WithHost overrides the resolved docker host IP.
func (d *DockerCompose) WithHost(host string) *DockerCompose {
	d.host = host
	return d
}

// Build builds the images for all services.
func (d *DockerCompose) Build() error {
	return d.runVoid("build")
}

// Up starts the environment detached.
func (d *DockerCompose) Up() error {
	return d.runVoid("up", "-d")
}

// Down stops and removes the environment's containers and networks.
func (d *DockerCompose) Down() error {
	return d.runVoid("down")
}

// Kill force-stops any containers still running.
func (d *DockerCompose) Kill() error {
	return d.runVoid("kill")
}

// Rm removes stopped containers. -f tolerates containers that are
// already gone, which keeps teardown idempotent.
func (d *DockerCompose) Rm() error {
	return d.runVoid("rm", "-f")
}

// Ps returns the raw status output for one service, including its state
// and port mappings.
func (d *DockerCompose) Ps(service string) (string, error) {
	result := d.runner.RunCommandQuiet(d.binary, d.args("ps", service)...)
	if result.Err != nil {
		return "", fmt.Errorf("docker-compose ps %s: %w", service, result.Err)
	}
	return result.Stdout, nil
}

// Logs follows the log stream of one service, writing to w until the
// stream ends or ctx is cancelled.
func (d *DockerCompose) Logs(ctx context.Context, service string, w io.Writer) error {
	return d.runner.RunCommandStream(ctx, w, w, d.binary, d.args("logs", "--no-color", "--follow", service)...)
}

// ServiceNames lists the services declared in the manifest files.
func (d *DockerCompose) ServiceNames() []string {
	return d.files.ServiceNames()
}

// HostIP returns the IP on which externally mapped ports are reachable.
func (d *DockerCompose) HostIP() string {
	return d.host
}

func (d *DockerCompose) runVoid(subcommand string, extra ...string) error {
	result := d.runner.RunCommand(d.binary, d.args(subcommand, extra...)...)
	if result.Err != nil {
		return fmt.Errorf("docker-compose %s: %w", subcommand, result.Err)
	}
	return nil
}

func (d *DockerCompose) args(subcommand string, extra ...string) []string {
	args := d.files.args()
	if d.projectName != "" {
		args = append(args, "-p", d.projectName)
	}
	args = append(args, subcommand)
	return append(args, extra...)
}
