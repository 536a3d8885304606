package eventstore

// RunStartedPayload is recorded when a run's folders are ready.
type RunStartedPayload struct {
	Site  string   `json:"site"`
	Root  string   `json:"root"`
	Kinds []string `json:"kinds"`
	Steps []string `json:"steps"`
}

// StepCompletedPayload is recorded after every step, successful or not.
type StepCompletedPayload struct {
	Step       string `json:"step"`
	Index      int    `json:"index"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunCompletedPayload is recorded when a run succeeds.
type RunCompletedPayload struct {
	DurationMS int64 `json:"duration_ms"`
	Sections   int   `json:"sections"`
	Items      int   `json:"items"`
	Pages      int   `json:"pages"`
}

// RunFailedPayload is recorded when a run fails or is canceled.
type RunFailedPayload struct {
	Outcome    string `json:"outcome"`
	Step       string `json:"step,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Error      string `json:"error"`
	DurationMS int64  `json:"duration_ms"`
}

func (RunStartedPayload) EventType() EventType    { return TypeRunStarted }
func (StepCompletedPayload) EventType() EventType { return TypeStepCompleted }
func (RunCompletedPayload) EventType() EventType  { return TypeRunCompleted }
func (RunFailedPayload) EventType() EventType     { return TypeRunFailed }
