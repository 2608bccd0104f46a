package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/flanksource/commons/logger"
)

// ExecError records a failed external command invocation: a non-zero
// exit, an I/O failure, or an interruption via context cancellation.
type ExecError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Result holds the outcome of a single command invocation.
type Result struct {
	Command string
	Stdout  string
	Stderr  string
	Err     error
}

func (r Result) String() string {
	var sb strings.Builder
	sb.WriteString(r.Command)
	if r.Err != nil {
		sb.WriteString(": " + r.Err.Error())
	}
	if out := strings.TrimSpace(r.Stdout); out != "" {
		sb.WriteString("\n" + out)
	}
	if errOut := strings.TrimSpace(r.Stderr); errOut != "" {
		sb.WriteString("\n" + errOut)
	}
	return sb.String()
}

// Runner executes external commands and captures their output.
type Runner struct {
	color bool
}

func NewCommandRunner(color bool) *Runner {
	return &Runner{color: color}
}

// RunCommand runs a command and echoes its combined output to the logger.
func (r *Runner) RunCommand(name string, args ...string) Result {
	result := r.run(context.Background(), name, args)
	if out := strings.TrimSpace(result.Stdout); out != "" {
		r.Infof("%s", out)
	}
	if errOut := strings.TrimSpace(result.Stderr); errOut != "" {
		r.Errorf("%s", errOut)
	}
	return result
}

// RunCommandQuiet runs a command without echoing its output.
func (r *Runner) RunCommandQuiet(name string, args ...string) Result {
	return r.run(context.Background(), name, args)
}

// RunCommandContext is RunCommandQuiet with caller-controlled cancellation.
func (r *Runner) RunCommandContext(ctx context.Context, name string, args ...string) Result {
	return r.run(ctx, name, args)
}

// RunCommandStream runs a command with stdout/stderr attached to the
// given writers and blocks until the command exits or ctx is cancelled.
// Cancellation is reported as ctx's error, not as an ExecError.
func (r *Runner) RunCommandStream(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error {
	r.Debugf("streaming: %s %s", name, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return &ExecError{
			Command:  commandLine(name, args),
			ExitCode: exitCode(err),
			Err:      err,
		}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, name string, args []string) Result {
	line := commandLine(name, args)
	r.Debugf("running: %s", line)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := Result{Command: line}
	err := cmd.Run()
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		result.Err = &ExecError{
			Command:  line,
			ExitCode: exitCode(err),
			Stderr:   result.Stderr,
			Err:      err,
		}
	}
	return result
}

func (r *Runner) Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func (r *Runner) Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

func (r *Runner) Errorf(format string, args ...interface{}) {
	if r.color {
		logger.Errorf("\x1b[31m"+format+"\x1b[0m", args...)
	} else {
		logger.Errorf(format, args...)
	}
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
