// Package linkplan computes, per output module, the ordered list of objects
// to link. Module 0 is the main executable (DOL); higher ids are relocatable
// modules.
package linkplan

import (
	"fmt"
	"slices"

	"github.com/expr-lang/expr"

	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
)

// Module is the ordered link plan for one output module.
type Module struct {
	ID      int
	Objects []string // ordered unit names
}

// IsLinked decides whether an object with the given status participates in
// the final link. Matching objects always link; NonMatching and Equivalent
// objects link only in non-matching builds.
func IsLinked(status project.MatchStatus, nonMatching bool) bool {
	return status == project.Matching || nonMatching
}

// Plan builds the link order for every module from unit declaration order,
// filters by linkage eligibility, then applies the optional reorder hook.
// Given the same inputs the result is byte-for-byte identical across runs.
func Plan(cfg *project.ProjectConfig, units []*resolve.Unit) ([]Module, error) {
	orders := map[int][]string{0: nil} // module 0 always exists
	for _, unit := range units {
		if _, ok := orders[unit.Module]; !ok {
			orders[unit.Module] = nil
		}
		if IsLinked(unit.Status, cfg.NonMatching) {
			orders[unit.Module] = append(orders[unit.Module], unit.Name)
		}
	}

	hook, err := makeHook(cfg)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	byName := resolve.Index(units)
	modules := make([]Module, 0, len(ids))
	for _, id := range ids {
		order := orders[id]
		if hook != nil {
			base := make(map[string]bool, len(order))
			for _, name := range order {
				base[name] = true
			}
			order = hook(id, slices.Clone(order))
			if err := validateOrder(id, order, byName, base); err != nil {
				return nil, err
			}
		}
		modules = append(modules, Module{ID: id, Objects: order})
	}

	return modules, nil
}

// makeHook returns the configured reorder hook: an injected Go function, a
// manifest-declared expression, or nil.
func makeHook(cfg *project.ProjectConfig) (project.LinkOrderHook, error) {
	if cfg.LinkOrderHook != nil {
		return cfg.LinkOrderHook, nil
	}
	if cfg.LinkOrderExpr == "" {
		return nil, nil
	}

	type hookEnv struct {
		ModuleID    int      `expr:"module_id"`
		Objects     []string `expr:"objects"`
		NonMatching bool     `expr:"non_matching"`
		Version     string   `expr:"version"`
	}

	program, err := expr.Compile(cfg.LinkOrderExpr, expr.Env(hookEnv{}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile link_order expression: %w", err)
	}

	return func(moduleID int, objects []string) []string {
		result, err := expr.Run(program, hookEnv{
			ModuleID:    moduleID,
			Objects:     objects,
			NonMatching: cfg.NonMatching,
			Version:     cfg.Version,
		})
		if err != nil {
			// surfaced by validateOrder through the unchanged base order
			return objects
		}
		switch v := result.(type) {
		case []string:
			return v
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				out = append(out, fmt.Sprintf("%v", item))
			}
			return out
		default:
			return objects
		}
	}, nil
}

// validateOrder treats hook output as untrusted: every entry must name a
// declared unit and no entry may repeat. Hook-added entries must also be
// buildable; entries carried over from the base order are left for graph
// emission to reject, so a missing toolchain does not abort a progress run.
func validateOrder(moduleID int, order []string, byName map[string]*resolve.Unit, base map[string]bool) error {
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		unit, ok := byName[name]
		if !ok {
			return &project.DanglingObjectError{Module: moduleID, Object: name, Reason: "not declared in the manifest"}
		}
		if !base[name] && !unit.Buildable {
			return &project.DanglingObjectError{Module: moduleID, Object: name, Reason: unit.Err.Error()}
		}
		if seen[name] {
			return &project.DanglingObjectError{Module: moduleID, Object: name, Reason: "duplicated in link order"}
		}
		seen[name] = true
	}
	return nil
}
