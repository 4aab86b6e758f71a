package job

// Status is the tri-state result of one execution attempt.
type Status int

const (
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is produced once per job per tick and consumed only for logging
// and the optional run history; it is never fed back into scheduling.
type Outcome struct {
	Status Status

	// Reason is set for Skipped outcomes.
	Reason string

	// Err is set for Failed outcomes.
	Err error
}

// Skipped marks a run that never touched the data dependency.
func Skipped(reason string) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason}
}

// Succeeded marks a completed run. An empty result set still succeeds; it is
// delivered as an explicit "no records" message.
func Succeeded() Outcome {
	return Outcome{Status: StatusSucceeded}
}

// Failed marks a run that errored after the window check.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}
