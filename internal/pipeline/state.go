package pipeline

import "fmt"

// State is the executor's position in a run.
//
//	NotStarted -> FoldersReady -> Running(i) -> Completed
//	                              Running(i) -> Failed
type State struct {
	Phase Phase
	Step  int // index of the running step, valid in PhaseRunning
}

// Phase enumerates executor phases.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseFoldersReady
	PhaseRunning
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFoldersReady:
		return "folders_ready"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return "not_started"
	}
}

func (s State) String() string {
	if s.Phase == PhaseRunning {
		return fmt.Sprintf("running(%d)", s.Step)
	}
	return s.Phase.String()
}
