package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CommandRunner abstracts subprocess execution so tests can fake the process
// table. Production impl shells out via os/exec.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner implements CommandRunner using os/exec.
type ExecCommandRunner struct{}

// Run executes a command and returns its stdout as bytes.
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if ok := errors.As(err, &exitErr); ok {
			return nil, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return out, nil
}

// scan walks the live process table looking for an editor whose launch
// arguments reference the bound workspace. This scan is the single source of
// truth for editor identity; the stored record is advisory only.
//
// Returns (0, false, nil) when no matching process exists.
func (s *Supervisor) scan(ctx context.Context) (int, bool, error) {
	out, err := s.runner.Run(ctx, "ps", "axo", "pid=,args=")
	if err != nil {
		return 0, false, fmt.Errorf("scan process table: %w", err)
	}
	pid, ok := matchEditorProcess(string(out), s.editorBin, s.workspace)
	return pid, ok, nil
}

// matchEditorProcess finds the first ps line whose command invokes editorBin
// with an argument referencing workspace. The supervisor's own `ps` child and
// unrelated editors bound to other workspaces never match.
func matchEditorProcess(psOutput, editorBin, workspace string) (int, bool) {
	for _, line := range strings.Split(psOutput, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pidField, args, found := strings.Cut(line, " ")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}

		fields := strings.Fields(args)
		if len(fields) == 0 || !commandMatches(fields[0], editorBin) {
			continue
		}
		for _, arg := range fields[1:] {
			if workspaceMatches(arg, workspace) {
				return pid, true
			}
		}
	}
	return 0, false
}

// workspaceMatches compares a launch argument against the bound workspace on
// path boundaries. A sibling workspace sharing a name prefix (/work/proj vs
// /work/proj2) must never match, or the supervisor would adopt and signal the
// wrong workspace's editor.
func workspaceMatches(arg, workspace string) bool {
	return arg == workspace || strings.HasPrefix(arg, workspace+"/")
}

// commandMatches compares a ps command field against the configured editor
// binary, tolerating absolute paths on either side.
func commandMatches(cmd, editorBin string) bool {
	return cmd == editorBin ||
		strings.HasSuffix(cmd, "/"+editorBin) ||
		strings.HasSuffix(editorBin, "/"+cmd)
}
