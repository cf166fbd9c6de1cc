package tools

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
)

// Runner abstracts external command execution for the orchestrator and the
// toolchain resolver.
type Runner interface {
	// Run executes the command and captures output.
	Run(name string, args ...string) ([]byte, []byte, int, error)
	// RunStreaming executes the command with output wired to the given
	// writers, for long-running invocations whose progress the user should
	// see live.
	RunStreaming(name string, args []string, stdout, stderr io.Writer) (int, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.Command(name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), exitCode(err), err
}

func (ExecRunner) RunStreaming(name string, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(name, args...)
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	err := cmd.Run()
	return exitCode(err), err
}

// exitCode maps an exec error to a shell-style exit status. A command that
// could not be started at all reports 127.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
