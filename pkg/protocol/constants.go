package protocol

// Directory and path constants used throughout Ferry.
const (
	// FerryDir is the user-level state directory (e.g., ~/.ferry).
	FerryDir = ".ferry"

	// MailboxDir is the default mailbox root relative to the workspace.
	MailboxDir = ".ferry/mailbox"

	// PingInstruction is the reserved health-check instruction. The editor
	// extension answers it with PongResponse without invoking a model.
	PingInstruction = "ping"

	// PongResponse is the response body the editor must produce for a
	// PingInstruction request.
	PongResponse = "pong"
)

// Stage names the mailbox directory a work unit currently lives in. The
// location of a unit's file is its state; there is no separate state store.
type Stage string

// Mailbox stages, in lifecycle order.
const (
	StageRequests   Stage = "requests"   // submitted, waiting for the editor to claim
	StageProcessing Stage = "processing" // claimed by the editor
	StageResponses  Stage = "responses"  // editor produced a response
	StageFailed     Stage = "failed"     // editor reported failure, or the request was malformed
	StageTimedOut   Stage = "timed_out"  // no response within the retry budget
	StageProcessed  Stage = "processed"  // archived after judgment
)

// Stages lists every mailbox stage. Iteration order matches lifecycle order
// so Locate finds the earliest stage first.
var Stages = []Stage{
	StageRequests,
	StageProcessing,
	StageResponses,
	StageFailed,
	StageTimedOut,
	StageProcessed,
}

// ActiveStages are the stages a unit occupies while still in flight. A
// duplicate submission is only a duplicate if the id has a file in one of
// these.
var ActiveStages = []Stage{StageRequests, StageProcessing, StageResponses}

// Terminal reports whether a stage ends the unit's lifecycle.
func (s Stage) Terminal() bool {
	return s == StageFailed || s == StageTimedOut || s == StageProcessed
}
