package compose

import (
	"os/exec"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/deps"
)

// EnsureInstalled verifies that the docker-compose binary is on PATH,
// installing it via deps if missing, and logs the version it found.
func EnsureInstalled(binary string) error {
	if binary == "" {
		binary = DefaultBinary
	}

	if _, err := exec.LookPath(binary); err != nil {
		deps.Install(binary)
	}

	version := clicky.Exec(binary).AsWrapper()
	resp, err := version("version")
	if resp != nil {
		logger.Infof(resp.PrettyFull().ANSI())
	}
	return err
}
