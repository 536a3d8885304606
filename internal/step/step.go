// Package step describes publishing work as an immutable tree of steps and
// flattens it into the ordered list of operations a run executes.
package step

import (
	"context"
	"slices"
	"strings"

	"git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/foundation/normalization"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

// Kind restricts when a step runs. System steps always run; the others run
// only when requested.
type Kind string

const (
	KindSystem     Kind = "system"
	KindGeneration Kind = "generation"
	KindDeployment Kind = "deployment"
)

// AllKinds lists every recognized kind in canonical order.
var AllKinds = []Kind{KindSystem, KindGeneration, KindDeployment}

// ParseKind converts a user supplied name into a Kind. "content-generation"
// is accepted as an alias for generation.
func ParseKind(s string) (Kind, error) {
	return kindNames.Parse(s)
}

var kindNames = normalization.NewEnum("step kind", map[string]Kind{
	string(KindSystem):     KindSystem,
	string(KindGeneration): KindGeneration,
	"content-generation":   KindGeneration,
	string(KindDeployment): KindDeployment,
	"deploy":               KindDeployment,
})

// Kinds is the set of kinds requested for a run.
type Kinds map[Kind]struct{}

// NewKinds builds a set from ks.
func NewKinds(ks ...Kind) Kinds {
	set := make(Kinds, len(ks))
	for _, k := range ks {
		set[k] = struct{}{}
	}
	return set
}

// ParseKinds parses every name in names.
func ParseKinds(names []string) (Kinds, error) {
	set := make(Kinds, len(names))
	for _, n := range names {
		k, err := ParseKind(n)
		if err != nil {
			return nil, err
		}
		set[k] = struct{}{}
	}
	return set, nil
}

// Has reports whether k was requested.
func (ks Kinds) Has(k Kind) bool {
	_, ok := ks[k]
	return ok
}

// Sorted returns the kinds in canonical order.
func (ks Kinds) Sorted() []Kind {
	out := make([]Kind, 0, len(ks))
	for _, k := range AllKinds {
		if ks.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (ks Kinds) String() string {
	sorted := ks.Sorted()
	names := make([]string, len(sorted))
	for i, k := range sorted {
		names[i] = string(k)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// Closure is the unit of work of an operation step. It receives the run's
// generation context and may fail.
type Closure func(ctx context.Context, gc *site.Context) error

// BodyKind tags the variant held by a step.
type BodyKind int

const (
	BodyEmpty BodyKind = iota
	BodyGroup
	BodyOperation
)

// Step is a node in a step tree. The zero value is an empty system step.
// Steps are values; a group holds its own copy of its children so a tree can
// never be modified, or made cyclic, after construction.
type Step struct {
	kind     Kind
	body     BodyKind
	name     string
	closure  Closure
	children []Step
}

// Empty returns a step that does nothing.
func Empty() Step {
	return Step{kind: KindSystem, body: BodyEmpty}
}

// Group returns a step running steps in order.
func Group(steps ...Step) Step {
	return Step{kind: KindSystem, body: BodyGroup, children: slices.Clone(steps)}
}

// Operation returns a named unit of work of the given kind. A nil fn fails
// when the step runs.
func Operation(kind Kind, name string, fn Closure) Step {
	if fn == nil {
		fn = func(context.Context, *site.Context) error {
			return errors.ValidationError("step has no operation").
				WithContext("step", name).
				Build()
		}
	}
	return Step{kind: kind, body: BodyOperation, name: name, closure: fn}
}

// Generation returns a generation operation.
func Generation(name string, fn Closure) Step {
	return Operation(KindGeneration, name, fn)
}

// Deployment returns a deployment operation.
func Deployment(name string, fn Closure) Step {
	return Operation(KindDeployment, name, fn)
}

// System returns an operation that runs regardless of the requested kinds.
func System(name string, fn Closure) Step {
	return Operation(KindSystem, name, fn)
}

// If returns s when cond holds and an empty step otherwise.
func If(cond bool, s Step) Step {
	if !cond {
		return Empty()
	}
	return s
}

// Kind returns the step's kind.
func (s Step) Kind() Kind {
	if s.kind == "" {
		return KindSystem
	}
	return s.kind
}

// Body returns which variant s holds.
func (s Step) Body() BodyKind { return s.body }

// Name returns the operation name; empty for groups and empty steps.
func (s Step) Name() string { return s.name }

// Children returns a copy of a group's children.
func (s Step) Children() []Step { return slices.Clone(s.children) }

// Runnable is a flattened operation ready to execute.
type Runnable struct {
	Name string
	Kind Kind
	Run  Closure
}

// Flatten returns the operations of s that run for kinds, depth-first and in
// declaration order. System operations are always included.
func (s Step) Flatten(kinds Kinds) []Runnable {
	return s.appendRunnable(nil, kinds)
}

func (s Step) appendRunnable(out []Runnable, kinds Kinds) []Runnable {
	switch s.body {
	case BodyGroup:
		for _, child := range s.children {
			out = child.appendRunnable(out, kinds)
		}
	case BodyOperation:
		if s.Kind() == KindSystem || kinds.Has(s.kind) {
			out = append(out, Runnable{Name: s.name, Kind: s.Kind(), Run: s.closure})
		}
	case BodyEmpty:
	}
	return out
}

// FlattenAll flattens each step in order and concatenates the results.
func FlattenAll(steps []Step, kinds Kinds) []Runnable {
	var out []Runnable
	for _, s := range steps {
		out = s.appendRunnable(out, kinds)
	}
	return out
}
