package linkplan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
)

func unit(name string, module int, status project.MatchStatus) *resolve.Unit {
	return &resolve.Unit{Name: name, Module: module, Status: status, Buildable: true}
}

func TestIsLinked(t *testing.T) {
	assert.True(t, IsLinked(project.Matching, false))
	assert.True(t, IsLinked(project.Matching, true))
	assert.False(t, IsLinked(project.NonMatching, false))
	assert.True(t, IsLinked(project.NonMatching, true))
	assert.False(t, IsLinked(project.Equivalent, false))
	assert.True(t, IsLinked(project.Equivalent, true))
}

func TestPlanFiltersByStatus(t *testing.T) {
	units := []*resolve.Unit{
		unit("a", 0, project.Matching),
		unit("b", 0, project.NonMatching),
		unit("c", 0, project.Equivalent),
	}

	plans, err := Plan(&project.ProjectConfig{NonMatching: false}, units)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 0, plans[0].ID)
	assert.Equal(t, []string{"a"}, plans[0].Objects)

	plans, err = Plan(&project.ProjectConfig{NonMatching: true}, units)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, plans[0].Objects)
}

func TestPlanModuleZeroAlwaysPresent(t *testing.T) {
	units := []*resolve.Unit{
		unit("rel/a", 2, project.Matching),
		unit("rel/b", 1, project.Matching),
	}

	plans, err := Plan(&project.ProjectConfig{}, units)
	require.NoError(t, err)
	require.Len(t, plans, 3)
	assert.Equal(t, 0, plans[0].ID)
	assert.Empty(t, plans[0].Objects)
	assert.Equal(t, 1, plans[1].ID)
	assert.Equal(t, []string{"rel/b"}, plans[1].Objects)
	assert.Equal(t, 2, plans[2].ID)
	assert.Equal(t, []string{"rel/a"}, plans[2].Objects)
}

func TestPlanGoHook(t *testing.T) {
	units := []*resolve.Unit{
		unit("a", 0, project.Matching),
		unit("dummy", 0, project.NonMatching),
	}
	cfg := &project.ProjectConfig{
		LinkOrderHook: func(moduleID int, objects []string) []string {
			// dummy object fills the gap left by unlinked objects
			return append(objects, "dummy")
		},
	}

	plans, err := Plan(cfg, units)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "dummy"}, plans[0].Objects)
}

func TestPlanExprHook(t *testing.T) {
	units := []*resolve.Unit{
		unit("a", 0, project.Matching),
		unit("b", 0, project.Matching),
	}
	cfg := &project.ProjectConfig{
		LinkOrderExpr: `module_id == 0 ? ["b", "a"] : objects`,
	}

	plans, err := Plan(cfg, units)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, plans[0].Objects)
}

func TestPlanBadExprHook(t *testing.T) {
	cfg := &project.ProjectConfig{LinkOrderExpr: `objects +`}
	_, err := Plan(cfg, nil)
	assert.Error(t, err)
}

func TestPlanHookUnknownObject(t *testing.T) {
	units := []*resolve.Unit{unit("a", 0, project.Matching)}
	cfg := &project.ProjectConfig{
		LinkOrderHook: func(moduleID int, objects []string) []string {
			return append(objects, "ghost")
		},
	}

	_, err := Plan(cfg, units)
	require.Error(t, err)

	var dangling *project.DanglingObjectError
	require.True(t, errors.As(err, &dangling))
	assert.Equal(t, "ghost", dangling.Object)
}

func TestPlanHookDuplicateObject(t *testing.T) {
	units := []*resolve.Unit{unit("a", 0, project.Matching)}
	cfg := &project.ProjectConfig{
		LinkOrderHook: func(moduleID int, objects []string) []string {
			return append(objects, "a")
		},
	}

	_, err := Plan(cfg, units)
	var dangling *project.DanglingObjectError
	require.True(t, errors.As(err, &dangling))
}

// a missing toolchain must not abort planning for objects already in the
// base order; emission rejects them, progress runs keep going
func TestPlanHookKeepsUnbuildableBaseObject(t *testing.T) {
	broken := unit("a", 0, project.Matching)
	broken.Buildable = false
	broken.Err = errors.New("compiler not found")

	cfg := &project.ProjectConfig{
		LinkOrderHook: func(moduleID int, objects []string) []string {
			return objects
		},
	}

	plans, err := Plan(cfg, []*resolve.Unit{broken, unit("b", 0, project.Matching)})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plans[0].Objects)
}

func TestPlanHookUnbuildableObject(t *testing.T) {
	broken := unit("a", 0, project.NonMatching)
	broken.Buildable = false
	broken.Err = errors.New("compiler not found")

	cfg := &project.ProjectConfig{
		LinkOrderHook: func(moduleID int, objects []string) []string {
			return append(objects, "a")
		},
	}

	_, err := Plan(cfg, []*resolve.Unit{broken})
	var dangling *project.DanglingObjectError
	require.True(t, errors.As(err, &dangling))
}
