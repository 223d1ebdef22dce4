package target

import (
	"context"
	"fmt"
	"os"

	"github.com/stackpilot/stackpilot/pkg/telemetry"
)

// DockerTarget runs commands inside a named Docker container by
// wrapping them in `docker exec ... sh -c`. The docker client itself is
// invoked on the host through an inner Runner, normally a LocalTarget.
type DockerTarget struct {
	container string
	host      Runner
	log       *telemetry.Logger
}

// NewDockerTarget creates a target addressing the named container.
func NewDockerTarget(container string, host Runner, log *telemetry.Logger) *DockerTarget {
	return &DockerTarget{
		container: container,
		host:      host,
		log:       log,
	}
}

// wrap turns a container-local command into the host-side docker exec
// invocation. The command is rendered as a quoted shell script so
// argument boundaries survive the `sh -c` hop.
func (t *DockerTarget) wrap(cmd Command) Command {
	return Exec("docker", "exec", t.container, "sh", "-c", cmd.shellScript())
}

// Run executes a command strictly inside the container.
func (t *DockerTarget) Run(ctx context.Context, cmd Command) (Result, error) {
	return t.host.Run(ctx, t.wrap(cmd))
}

// Try executes a command inside the container as a probe.
func (t *DockerTarget) Try(ctx context.Context, cmd Command) (Result, error) {
	return t.host.Try(ctx, t.wrap(cmd))
}

// DoesFileExist probes for a file inside the container.
func (t *DockerTarget) DoesFileExist(ctx context.Context, path string) (bool, error) {
	res, err := t.host.Try(ctx, Exec("docker", "exec", t.container, "test", "-e", path))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// WriteFile stages content into a host-side temporary file and copies
// it into the container with docker cp, replacing any existing file at
// path.
func (t *DockerTarget) WriteFile(ctx context.Context, path string, content []byte) error {
	tmp, err := os.CreateTemp("", "stackpilot-file-*")
	if err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}

	dest := fmt.Sprintf("%s:%s", t.container, path)
	if _, err := t.host.Run(ctx, Exec("docker", "cp", tmpPath, dest)); err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	return nil
}

// Addr describes the target for log output.
func (t *DockerTarget) Addr() string {
	return "docker://" + t.container
}
