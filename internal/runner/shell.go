package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ShellRunner pipes the snippet to an interpreter on stdin and captures its
// combined output. Snippets run with the full privileges of the service
// process; there is no sandboxing. This mirrors the behaviour of the system
// it replaces and is the documented reason snippetd must not face untrusted
// users.
type ShellRunner struct {
	interpreter string
	args        []string
}

// NewShellRunner builds a runner for the given interpreter command line,
// e.g. "/bin/sh" or "/usr/bin/python3 -u".
func NewShellRunner(command string) *ShellRunner {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{"/bin/sh"}
	}
	return &ShellRunner{
		interpreter: fields[0],
		args:        fields[1:],
	}
}

func (r *ShellRunner) Execute(ctx context.Context, source string) (string, error) {
	cmd := exec.CommandContext(ctx, r.interpreter, r.args...)
	cmd.Stdin = strings.NewReader(source)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if out.Len() > 0 {
			return "", fmt.Errorf("%s: %w", strings.TrimSpace(out.String()), err)
		}
		return "", err
	}
	return out.String(), nil
}
