package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeySite       = "site"
	KeyStep       = "step"
	KeyStepIndex  = "step_index"
	KeyStepCount  = "step_count"
	KeyKinds      = "kinds"
	KeyPath       = "path"
	KeySection    = "section"
	KeyDomain     = "domain"
	KeyFile       = "file"
	KeyRoot       = "root"
	KeyDurationMS = "duration_ms"
	KeyOutcome    = "outcome"
	KeyRemote     = "remote"
	KeySchedule   = "schedule"
	KeyBranch     = "branch"
	KeyCommit     = "commit"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Site(name string) slog.Attr      { return slog.String(KeySite, name) }
func Step(name string) slog.Attr      { return slog.String(KeyStep, name) }
func StepIndex(i int) slog.Attr       { return slog.Int(KeyStepIndex, i) }
func StepCount(n int) slog.Attr       { return slog.Int(KeyStepCount, n) }
func Kinds(k string) slog.Attr        { return slog.String(KeyKinds, k) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Section(s string) slog.Attr      { return slog.String(KeySection, s) }
func Domain(d string) slog.Attr       { return slog.String(KeyDomain, d) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Root(r string) slog.Attr         { return slog.String(KeyRoot, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Remote(r string) slog.Attr       { return slog.String(KeyRemote, r) }
func Schedule(s string) slog.Attr     { return slog.String(KeySchedule, s) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
