package step

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

func noop(context.Context, *site.Context) error { return nil }

func names(rs []Runnable) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func sampleTree() Step {
	return Group(
		System("A", noop),
		Group(
			Generation("B", noop),
			Deployment("C", noop),
		),
	)
}

func TestFlattenFiltersByKind(t *testing.T) {
	tests := []struct {
		name  string
		kinds Kinds
		want  []string
	}{
		{"generation only", NewKinds(KindGeneration), []string{"A", "B"}},
		{"deployment only", NewKinds(KindDeployment), []string{"A", "C"}},
		{"both", NewKinds(KindGeneration, KindDeployment), []string{"A", "B", "C"}},
		{"none requested keeps system", NewKinds(), []string{"A"}},
		{"nil set keeps system", nil, []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(sampleTree().Flatten(tt.kinds)))
		})
	}
}

func TestFlattenDeepNestingPreservesOrder(t *testing.T) {
	tree := Group(
		Generation("1", noop),
		Group(
			Group(
				Group(Generation("2", noop), Empty(), Deployment("skip", noop)),
				System("3", noop),
			),
			Empty(),
		),
		Group(),
		Generation("4", noop),
	)

	got := names(tree.Flatten(NewKinds(KindGeneration)))
	assert.Equal(t, []string{"1", "2", "3", "4"}, got)
}

func TestFlattenIsDeterministic(t *testing.T) {
	tree := sampleTree()
	kinds := NewKinds(KindGeneration, KindDeployment)
	assert.Equal(t, names(tree.Flatten(kinds)), names(tree.Flatten(kinds)))
}

func TestFlattenEmpty(t *testing.T) {
	assert.Empty(t, Empty().Flatten(NewKinds(KindGeneration)))
	assert.Empty(t, Group(Deployment("C", noop)).Flatten(NewKinds(KindGeneration)))
}

func TestGroupCopiesChildren(t *testing.T) {
	children := []Step{Generation("B", noop)}
	g := Group(children...)
	children[0] = Generation("mutated", noop)

	assert.Equal(t, []string{"B"}, names(g.Flatten(NewKinds(KindGeneration))))

	got := g.Children()
	got[0] = Empty()
	assert.Equal(t, []string{"B"}, names(g.Flatten(NewKinds(KindGeneration))))
}

func TestIf(t *testing.T) {
	s := Group(If(false, Generation("off", noop)), If(true, Generation("on", noop)))
	assert.Equal(t, []string{"on"}, names(s.Flatten(NewKinds(KindGeneration))))
}

func TestOperationWithoutClosureFails(t *testing.T) {
	s := Generation("nil", nil)
	assert.Equal(t, BodyOperation, s.Body())

	rs := s.Flatten(NewKinds(KindGeneration))
	require.Len(t, rs, 1)
	assert.Equal(t, "nil", rs[0].Name)

	err := rs[0].Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Contains(t, err.Error(), "step has no operation")
}

func TestRunnableCarriesKind(t *testing.T) {
	rs := sampleTree().Flatten(NewKinds(KindGeneration))
	require.Len(t, rs, 2)
	assert.Equal(t, KindSystem, rs[0].Kind)
	assert.Equal(t, KindGeneration, rs[1].Kind)
}

func TestFlattenAll(t *testing.T) {
	steps := []Step{System("A", noop), Generation("B", noop), Deployment("C", noop)}
	assert.Equal(t, []string{"A", "C"}, names(FlattenAll(steps, NewKinds(KindDeployment))))
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"content-generation", "Deployment"})
	require.NoError(t, err)
	assert.True(t, kinds.Has(KindGeneration))
	assert.True(t, kinds.Has(KindDeployment))
	assert.False(t, kinds.Has(KindSystem))
	assert.Equal(t, "[generation, deployment]", kinds.String())

	_, err = ParseKinds([]string{"publish"})
	require.Error(t, err)
}
