package ninja

import (
	"slices"

	"github.com/gekko-build/gekko/internal/project"
)

// Rule is a Ninja rule declaration.
type Rule struct {
	Name        string
	Command     string
	Description string
	Depfile     string
	Deps        string
	Generator   bool
}

// Action is one build statement: a rule application with explicit
// input/output edges. Input and variable order is preserved verbatim in the
// serialized graph.
type Action struct {
	Rule         string
	Outputs      []string
	ImplicitOuts []string
	Inputs       []string
	Implicit     []string
	OrderOnly    []string
	Vars         [][2]string
}

// Graph is a build graph in Ninja's model: toplevel variables, rules and
// actions. It must be a strict DAG before it may be serialized.
type Graph struct {
	Vars     [][2]string
	Rules    []Rule
	Actions  []Action
	Defaults []string
}

func (g *Graph) SetVar(name, value string) {
	g.Vars = append(g.Vars, [2]string{name, value})
}

func (g *Graph) AddRule(r Rule) {
	g.Rules = append(g.Rules, r)
}

func (g *Graph) AddAction(a Action) {
	g.Actions = append(g.Actions, a)
}

// Check verifies the graph is acyclic, walking dependency edges from every
// action. A cycle is a configuration bug and aborts generation before
// anything is written.
func (g *Graph) Check() error {
	producer := make(map[string]int) // output path -> action index
	for i, action := range g.Actions {
		for _, out := range action.Outputs {
			producer[out] = i
		}
		for _, out := range action.ImplicitOuts {
			producer[out] = i
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make([]int, len(g.Actions))

	var visit func(i int, trail []string) *project.GraphCycleError
	visit = func(i int, trail []string) *project.GraphCycleError {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return &project.GraphCycleError{Cycle: append(trail, g.Actions[i].Outputs...)}
		}
		state[i] = visiting

		deps := make([]string, 0, len(g.Actions[i].Inputs)+len(g.Actions[i].Implicit)+len(g.Actions[i].OrderOnly))
		deps = append(deps, g.Actions[i].Inputs...)
		deps = append(deps, g.Actions[i].Implicit...)
		deps = append(deps, g.Actions[i].OrderOnly...)

		for _, dep := range deps {
			j, ok := producer[dep]
			if !ok {
				continue // plain file input
			}
			// each branch gets its own trail, sibling branches must not share
			// a backing array
			if err := visit(j, append(slices.Clone(trail), dep)); err != nil {
				return err
			}
		}

		state[i] = done
		return nil
	}

	for i := range g.Actions {
		if state[i] == unvisited {
			if err := visit(i, nil); err != nil {
				return err
			}
		}
	}

	return nil
}
