// Package sandbox executes an allowed command inside an ephemeral,
// locked-down container (spec §1 treats this as an opaque collaborator;
// spec §12 supplements it with a concrete docker implementation grounded
// on the Python original's sandbox/docker_runner.py).
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/user"

	"github.com/agentsafe/agentsafe/internal/shellwords"
)

// Result is the outcome of one sandboxed run.
type Result struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	ContainerID string
	Command     []string
}

// Runner executes a command in an isolated environment. DockerRunner is
// the only production implementation; the interface exists so callers
// (and tests) can swap in a fake.
type Runner interface {
	Run(ctx context.Context, cmd []string, opts Options) (Result, error)
}

// Options configures one sandboxed invocation.
type Options struct {
	Image         string
	WorkspaceRoot string
	NetworkMode   string // docker --network value: "none", "bridge", ...
	Env           map[string]string
	CPUs          string
	MemoryLimit   string
}

// DockerRunner shells out to the docker CLI to run commands the exact way
// the original Python sandbox did: read-only root, dropped capabilities,
// no new privileges, a noexec tmpfs, and the workspace bind-mounted
// read-write at /workspace.
type DockerRunner struct {
	DockerBinary string
}

// NewDockerRunner returns a DockerRunner using "docker" on PATH unless
// overridden.
func NewDockerRunner() *DockerRunner {
	return &DockerRunner{DockerBinary: "docker"}
}

func (d *DockerRunner) binary() string {
	if d.DockerBinary != "" {
		return d.DockerBinary
	}
	return "docker"
}

// Run builds and executes the `docker run` invocation described in spec
// §12: `--rm -i --read-only --tmpfs /tmp:rw,noexec,nosuid,size=64m
// --cap-drop ALL --security-opt no-new-privileges --add-host
// host.docker.internal:host-gateway -u <uid>:<gid> -v
// <workspace>:/workspace:rw -w /workspace --network <mode> [--cpus]
// [--memory] [-e K=V ...] <image> <cmd...>`. The command is passed as
// separate argv entries, not joined into one shell string.
func (d *DockerRunner) Run(ctx context.Context, cmd []string, opts Options) (Result, error) {
	if len(cmd) == 0 {
		return Result{}, fmt.Errorf("sandbox: empty command")
	}

	uid, gid, err := currentUIDGID()
	if err != nil {
		return Result{}, fmt.Errorf("sandbox: resolving uid/gid: %w", err)
	}

	networkMode := opts.NetworkMode
	if networkMode == "" {
		networkMode = "none"
	}

	args := []string{
		"run", "--rm", "-i",
		"--read-only",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=64m",
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--add-host", "host.docker.internal:host-gateway",
		"-u", fmt.Sprintf("%s:%s", uid, gid),
		"-v", fmt.Sprintf("%s:/workspace:rw", opts.WorkspaceRoot),
		"-w", "/workspace",
		"--network", networkMode,
	}
	if opts.CPUs != "" {
		args = append(args, "--cpus", opts.CPUs)
	}
	if opts.MemoryLimit != "" {
		args = append(args, "--memory", opts.MemoryLimit)
	}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, opts.Image)
	args = append(args, cmd...)

	execCmd := exec.CommandContext(ctx, d.binary(), args...)
	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	runErr := execCmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("sandbox: running container: %w", runErr)
		}
	}

	return Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Command:  cmd,
	}, nil
}

func currentUIDGID() (string, string, error) {
	if uid := os.Getenv("AGENTSAFE_SANDBOX_UID"); uid != "" {
		gid := os.Getenv("AGENTSAFE_SANDBOX_GID")
		if gid == "" {
			gid = uid
		}
		return uid, gid, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", "", err
	}
	return u.Uid, u.Gid, nil
}

// Shlex joins cmd the same way grant scope strings and arg_regex rendering
// do, for
// logging a sandbox invocation without re-deriving the quoting rules.
func Shlex(cmd []string) string {
	return shellwords.Join(cmd)
}
