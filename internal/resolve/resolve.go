// Package resolve turns manifest objects into fully resolved compile
// commands: merged flag lists, concrete compiler and source/output paths.
package resolve

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/gekko-build/gekko/internal/msg"
	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/toolchain"
)

// Unit is one resolved compilation unit. Units are derived values: they are
// recomputed whenever configuration changes and never mutated in place.
type Unit struct {
	Name    string // object identifier, source path without extension
	Library string
	Module  int
	Kind    project.SourceKind
	Status  project.MatchStatus

	SrcPath      string
	ObjPath      string // compiled object
	ExpectedPath string // reference object extracted from the target binary

	Compiler string // concrete compiler or assembler binary
	Flags    []string

	Category        string
	ShiftJIS        bool
	ScratchPresetID *int

	// Buildable is false when the toolchain lookup failed; the unit is
	// surfaced in reports but cannot be part of an emitted graph.
	Buildable bool
	Err       error
}

// Resolve produces the unit for one object, or (nil, nil) when the object's
// version predicate excludes the active version. Resolving the same inputs
// twice yields identical flag lists and paths.
func Resolve(cfg *project.ProjectConfig, tc *toolchain.Toolchain, lib project.Library, obj project.Object) (*Unit, error) {
	if !obj.EligibleFor(cfg.Version) {
		return nil, nil
	}

	kind, err := obj.Kind()
	if err != nil {
		return nil, &project.ValidationError{Library: lib.Name, Object: obj.Source, Msg: err.Error()}
	}

	category := lib.Category
	if obj.Category != "" {
		category = obj.Category
	}

	unit := &Unit{
		Name:            obj.Name(),
		Library:         lib.Name,
		Module:          lib.Module,
		Kind:            kind,
		Status:          obj.Status,
		SrcPath:         path.Join("src", obj.Source),
		ObjPath:         path.Join(cfg.SrcObjDir(), obj.Source+".o"),
		ExpectedPath:    path.Join(cfg.ObjDir(), obj.Source+".o"),
		Category:        category,
		ShiftJIS:        obj.ShiftJIS,
		ScratchPresetID: obj.ScratchPresetID,
		Buildable:       true,
	}

	if kind == project.SourceAsm {
		unit.Flags = slices.Clone(cfg.AsFlags)
		unit.Compiler, err = tc.Assembler()
	} else {
		unit.Flags = mergeCflags(cfg, lib, obj)
		tag := lib.MWVersion
		if tag == "" {
			tag = cfg.LinkerVersion
		}
		unit.Compiler, err = tc.Compiler(tag)
	}
	if err != nil {
		// Missing toolchain is not fatal to the resolve pass; the unit is
		// marked unbuildable and surfaced later.
		unit.Buildable = false
		unit.Err = err
	}

	return unit, nil
}

// mergeCflags applies the flag merge order: global base flags, then library
// flags, then object flags. Object cflags replace the base+library layers
// entirely; extra_cflags append to them. Command-line debug/warning
// additions always come last.
func mergeCflags(cfg *project.ProjectConfig, lib project.Library, obj project.Object) []string {
	var flags []string
	if obj.Cflags != nil {
		flags = slices.Clone(obj.Cflags)
	} else {
		flags = slices.Clone(cfg.BaseCflags)
		flags = append(flags, lib.Cflags...)
	}
	flags = append(flags, obj.ExtraCflags...)
	flags = append(flags, cfg.CliCflags...)
	return flags
}

// ResolveAll resolves every declared object with a bounded worker pool and
// returns units in manifest declaration order. Version-gated objects are
// skipped; unbuildable units are kept and reported by the caller.
func ResolveAll(ctx context.Context, cfg *project.ProjectConfig, tc *toolchain.Toolchain) ([]*Unit, error) {
	type job struct {
		lib project.Library
		obj project.Object
	}

	var jobs []job
	for _, lib := range cfg.Libs {
		for _, obj := range lib.Objects {
			jobs = append(jobs, job{lib, obj})
		}
	}

	units := make([]*Unit, len(jobs))
	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())

	for i, j := range jobs {
		eg.Go(func() error {
			unit, err := Resolve(cfg, tc, j.lib, j.obj)
			if err != nil {
				return err
			}
			units[i] = unit
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// drop version-gated objects, preserving declaration order
	resolved := make([]*Unit, 0, len(units))
	for _, unit := range units {
		if unit == nil {
			continue
		}
		if cfg.WarnMissingSource {
			if _, err := os.Stat(filepath.FromSlash(unit.SrcPath)); os.IsNotExist(err) {
				msg.Warn("source file %s does not exist", unit.SrcPath)
			}
		}
		resolved = append(resolved, unit)
	}

	return resolved, nil
}

// Index maps unit names to units for hook validation and progress lookup.
func Index(units []*Unit) map[string]*Unit {
	byName := make(map[string]*Unit, len(units))
	for _, unit := range units {
		byName[unit.Name] = unit
	}
	return byName
}
