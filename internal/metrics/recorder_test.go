package metrics

import (
	"testing"
	"time"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStepDuration("Generate HTML", time.Second)
	r.IncStepResult("Generate HTML", ResultSuccess)
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome("success")
	r.SetPublishedItems(3)
}
