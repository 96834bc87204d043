package supervisor

import (
	"fmt"
	"time"
)

// LaunchError reports that a launched editor never appeared in the process
// scan within the launch timeout. Fatal: no automatic retry.
type LaunchError struct {
	Workspace string
	Timeout   time.Duration
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("editor for workspace %s did not appear within %s", e.Workspace, e.Timeout)
}

// ShutdownTimeoutError reports that the editor ignored the termination signal
// for the full timeout. Fatal and operator-actionable: the supervisor never
// escalates to a forced kill, because killing the editor mid-write can
// corrupt its own session state (open buffers, auth tokens).
type ShutdownTimeoutError struct {
	PID     int
	Timeout time.Duration
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("editor pid %d still alive after %s; refusing to force-kill, stop it manually", e.PID, e.Timeout)
}
