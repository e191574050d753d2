package ninja

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko-build/gekko/internal/project"
)

func TestCheckAcyclic(t *testing.T) {
	g := &Graph{}
	g.AddAction(Action{Rule: "cc", Outputs: []string{"a.o"}, Inputs: []string{"a.c"}})
	g.AddAction(Action{Rule: "link", Outputs: []string{"main.elf"}, Inputs: []string{"a.o"}})
	assert.NoError(t, g.Check())
}

func TestCheckDirectCycle(t *testing.T) {
	g := &Graph{}
	g.AddAction(Action{Rule: "gen", Outputs: []string{"x"}, Inputs: []string{"y"}})
	g.AddAction(Action{Rule: "gen", Outputs: []string{"y"}, Inputs: []string{"x"}})

	err := g.Check()
	require.Error(t, err)

	var cycle *project.GraphCycleError
	require.True(t, errors.As(err, &cycle))
	assert.NotEmpty(t, cycle.Cycle)
}

func TestCheckSelfCycle(t *testing.T) {
	g := &Graph{}
	g.AddAction(Action{Rule: "gen", Outputs: []string{"x"}, Inputs: []string{"x"}})

	var cycle *project.GraphCycleError
	require.True(t, errors.As(g.Check(), &cycle))
}

// the reported path must name exactly the edges walked into the cycle, even
// when sibling branches were explored first
func TestCheckCyclePathAccuracy(t *testing.T) {
	g := &Graph{}
	g.AddAction(Action{Rule: "link", Outputs: []string{"bin"}, Inputs: []string{"a.o", "b.o"}})
	g.AddAction(Action{Rule: "cc", Outputs: []string{"a.o"}, Inputs: []string{"a.c"}})
	g.AddAction(Action{Rule: "cc", Outputs: []string{"b.o"}, Inputs: []string{"c.o"}})
	g.AddAction(Action{Rule: "cc", Outputs: []string{"c.o"}, Inputs: []string{"b.o"}})

	var cycle *project.GraphCycleError
	require.True(t, errors.As(g.Check(), &cycle))
	assert.Equal(t, []string{"b.o", "c.o", "b.o", "b.o"}, cycle.Cycle)
}

func TestCheckImplicitEdgeCycle(t *testing.T) {
	g := &Graph{}
	g.AddAction(Action{Rule: "gen", Outputs: []string{"x"}, Implicit: []string{"y"}})
	g.AddAction(Action{Rule: "gen", Outputs: []string{"y"}, OrderOnly: []string{"x"}})

	var cycle *project.GraphCycleError
	require.True(t, errors.As(g.Check(), &cycle))
}
