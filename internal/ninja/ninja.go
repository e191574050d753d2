// Package ninja converts resolved compile commands and link plans into a
// Ninja build graph with explicit input/output edges, and writes it
// atomically so a failed generation never leaves a corrupt graph behind.
package ninja

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gekko-build/gekko/internal/linkplan"
	"github.com/gekko-build/gekko/internal/msg"
	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
)

// GraphFile is the emitted graph's file name, relative to the project root.
const GraphFile = "build.ninja"

// ConfigDeps returns every file the configuration resolution depends on: the
// manifest itself plus all reconfig_deps glob matches. Editing any of them
// triggers regeneration.
func ConfigDeps(cfg *project.ProjectConfig) []string {
	deps := []string{cfg.ManifestPath}
	for _, pattern := range cfg.ReconfigDeps {
		matches, err := doublestar.FilepathGlob(filepath.FromSlash(pattern))
		if err != nil {
			msg.Warn("bad reconfig_deps pattern %q: %v", pattern, err)
			continue
		}
		for _, match := range matches {
			deps = append(deps, filepath.ToSlash(match))
		}
	}
	sort.Strings(deps[1:]) // glob order is filesystem-dependent
	return deps
}

// Emit builds the full action graph: one compile or assemble action per
// resolved unit, one link action per module (inputs in verbatim plan order),
// a post-process action for the main executable, an aggregate phony target
// and a self-regeneration rule. The result is checked to be a strict DAG.
func Emit(cfg *project.ProjectConfig, units []*resolve.Unit, plans []linkplan.Module, tools Tools) (*Graph, error) {
	byName := resolve.Index(units)

	// a plan containing an unbuildable unit is fatal for generation
	for _, plan := range plans {
		for _, name := range plan.Objects {
			unit, ok := byName[name]
			if !ok {
				return nil, &project.DanglingObjectError{Module: plan.ID, Object: name, Reason: "not resolved"}
			}
			if !unit.Buildable {
				return nil, fmt.Errorf("module %d links %s: %w", plan.ID, name, unit.Err)
			}
		}
	}

	configDeps := ConfigDeps(cfg)

	g := &Graph{}
	g.SetVar("ninja_required_version", "1.3")
	g.SetVar("builddir", cfg.BuildDir)
	g.SetVar("wrapper", tools.Wrapper)
	g.SetVar("mwld", tools.Linker)
	g.SetVar("dtk", tools.DTK)
	g.SetVar("gekko", tools.Gekko)

	g.AddRule(Rule{
		Name:        "mwcc",
		Command:     "$wrapper $mwcc $cflags -MMD -c $in -o $out",
		Description: "CC $out",
		Depfile:     "$out.d",
		Deps:        "gcc",
	})
	if tools.Sjiswrap != "" {
		g.SetVar("sjiswrap", tools.Sjiswrap)
		g.AddRule(Rule{
			Name:        "mwcc_sjis",
			Command:     "$wrapper $sjiswrap $mwcc $cflags -MMD -c $in -o $out",
			Description: "CC $out",
			Depfile:     "$out.d",
			Deps:        "gcc",
		})
	}
	g.AddRule(Rule{
		Name:        "as",
		Command:     "$as $asflags -o $out $in",
		Description: "AS $out",
	})
	g.AddRule(Rule{
		Name:        "link",
		Command:     "$wrapper $mwld $ldflags -o $out $in",
		Description: "LINK $out",
	})
	g.AddRule(Rule{
		Name:        "elf2dol",
		Command:     "$dtk elf2dol $in $out",
		Description: "DOL $out",
	})
	g.AddRule(Rule{
		Name:        "configure",
		Command:     "$gekko configure " + strings.Join(regenArgs(cfg), " "),
		Description: "CONFIG $out",
		Generator:   true,
	})

	// compile and assemble actions; unbuildable units outside every link
	// plan are skipped with a notice, not an error
	for _, unit := range units {
		if !unit.Buildable {
			msg.Warn("skipping %s: %v", unit.Name, unit.Err)
			continue
		}

		rule, flagsVar := "mwcc", "cflags"
		toolVar := "mwcc"
		implicit := []string{unit.Compiler}
		switch {
		case unit.Kind == project.SourceAsm:
			rule, flagsVar = "as", "asflags"
			toolVar = "as"
		case unit.ShiftJIS:
			if tools.Sjiswrap == "" {
				return nil, fmt.Errorf("%s is Shift JIS encoded but no sjiswrap binary is configured", unit.Name)
			}
			rule = "mwcc_sjis"
			implicit = append(implicit, tools.Sjiswrap)
		}

		g.AddAction(Action{
			Rule:     rule,
			Outputs:  []string{unit.ObjPath},
			Inputs:   []string{unit.SrcPath},
			Implicit: append(implicit, configDeps...),
			Vars: [][2]string{
				{toolVar, unit.Compiler},
				{flagsVar, strings.Join(unit.Flags, " ")},
			},
		})
	}

	// link actions, one per module, object order preserved verbatim
	var moduleOuts []string
	for _, plan := range plans {
		out := moduleOutput(cfg, plan.ID)
		ldflags := slices.Clone(cfg.LdFlags)

		action := Action{
			Rule:     "link",
			Outputs:  []string{out},
			Implicit: []string{tools.Linker},
		}
		for _, name := range plan.Objects {
			action.Inputs = append(action.Inputs, byName[name].ObjPath)
		}
		if cfg.GenerateMap {
			mapFile := strings.TrimSuffix(out, path.Ext(out)) + ".map"
			ldflags = append(ldflags, "-map "+mapFile)
			action.ImplicitOuts = append(action.ImplicitOuts, mapFile)
		}
		action.Vars = [][2]string{{"ldflags", strings.Join(ldflags, " ")}}
		g.AddAction(action)

		if plan.ID == 0 {
			dol := path.Join(cfg.OutDir(), "main.dol")
			g.AddAction(Action{
				Rule:     "elf2dol",
				Outputs:  []string{dol},
				Inputs:   []string{out},
				Implicit: []string{tools.DTK},
			})
			moduleOuts = append(moduleOuts, dol)
		} else {
			moduleOuts = append(moduleOuts, out)
		}
	}

	// aggregate target and graph self-regeneration
	g.AddAction(Action{
		Rule:    "phony",
		Outputs: []string{"all"},
		Inputs:  moduleOuts,
	})
	g.AddAction(Action{
		Rule:         "configure",
		Outputs:      []string{GraphFile},
		ImplicitOuts: []string{ObjdiffConfigFile},
		Implicit:     configDeps,
	})
	g.Defaults = append(g.Defaults, "all")

	if err := g.Check(); err != nil {
		return nil, err
	}
	return g, nil
}

// Tools holds the concrete binary paths the graph invokes.
type Tools struct {
	Wrapper  string
	Linker   string
	DTK      string
	Sjiswrap string // empty unless a Shift JIS unit is declared
	Gekko    string // this executable, for the regeneration rule
}

func moduleOutput(cfg *project.ProjectConfig, id int) string {
	if id == 0 {
		return path.Join(cfg.OutDir(), "main.elf")
	}
	return path.Join(cfg.OutDir(), fmt.Sprintf("module%d.elf", id))
}

// regenArgs reproduces every command-line switch that shaped this graph, so
// Ninja's self-regeneration rebuilds it against the same manifest, build
// directory, tool paths and mode switches as the original invocation.
func regenArgs(cfg *project.ProjectConfig) []string {
	args := []string{
		"--manifest", cfg.ManifestPath,
		"--version", cfg.Version,
		"--build-dir", cfg.BuildDir,
	}
	paths := [][2]string{
		{"--compilers", cfg.CompilersDir},
		{"--binutils", cfg.BinutilsDir},
		{"--dtk", cfg.DTKPath},
		{"--objdiff", cfg.ObjdiffPath},
		{"--ninja", cfg.NinjaPath},
		{"--wrapper", cfg.WrapperPath},
		{"--sjiswrap", cfg.SjiswrapPath},
	}
	for _, p := range paths {
		if p[1] != "" {
			args = append(args, p[0], p[1])
		}
	}
	if cfg.NonMatching {
		args = append(args, "--non-matching")
	}
	if cfg.Debug {
		args = append(args, "--debug")
	}
	if cfg.Develop {
		args = append(args, "--develop")
	}
	if cfg.GenerateMap {
		args = append(args, "--map")
	}
	if cfg.WarnMode != "" && cfg.WarnMode != "default" {
		args = append(args, "--warn", cfg.WarnMode)
	}
	if cfg.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

var ninjaPathEscaper = strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")

func quote(s string) string { return ninjaPathEscaper.Replace(s) }

// Serialize renders the graph in Ninja syntax. Output is deterministic:
// variables, rules and actions appear in insertion order.
func (g *Graph) Serialize() string {
	var sb strings.Builder

	for _, v := range g.Vars {
		fmt.Fprintf(&sb, "%s = %s\n", v[0], v[1])
	}
	sb.WriteByte('\n')

	for _, r := range g.Rules {
		fmt.Fprintf(&sb, "rule %s\n  command = %s\n", r.Name, r.Command)
		if r.Description != "" {
			fmt.Fprintf(&sb, "  description = %s\n", r.Description)
		}
		if r.Depfile != "" {
			fmt.Fprintf(&sb, "  depfile = %s\n", r.Depfile)
		}
		if r.Deps != "" {
			fmt.Fprintf(&sb, "  deps = %s\n", r.Deps)
		}
		if r.Generator {
			sb.WriteString("  generator = 1\n")
		}
		sb.WriteByte('\n')
	}

	for _, a := range g.Actions {
		sb.WriteString("build")
		for _, out := range a.Outputs {
			sb.WriteString(" " + quote(out))
		}
		if len(a.ImplicitOuts) > 0 {
			sb.WriteString(" |")
			for _, out := range a.ImplicitOuts {
				sb.WriteString(" " + quote(out))
			}
		}
		sb.WriteString(": " + a.Rule)
		for _, in := range a.Inputs {
			sb.WriteString(" " + quote(in))
		}
		if len(a.Implicit) > 0 {
			sb.WriteString(" |")
			for _, in := range a.Implicit {
				sb.WriteString(" " + quote(in))
			}
		}
		if len(a.OrderOnly) > 0 {
			sb.WriteString(" ||")
			for _, in := range a.OrderOnly {
				sb.WriteString(" " + quote(in))
			}
		}
		sb.WriteByte('\n')
		for _, v := range a.Vars {
			fmt.Fprintf(&sb, "  %s = %s\n", v[0], v[1])
		}
	}

	if len(g.Defaults) > 0 {
		sb.WriteByte('\n')
		fmt.Fprintf(&sb, "default %s\n", strings.Join(g.Defaults, " "))
	}

	return sb.String()
}

// GraphWrite is one pending output file.
type GraphWrite struct {
	Path    string
	Content string
}

// WriteGraphFiles writes a set of generated files via temporary files that
// are renamed only after every temp was written, so a failure leaves all
// previous contents intact and the set is never half-updated. Re-writing
// identical content is a no-op, which keeps repeated generation
// byte-identical and mtime-stable. With verbose enabled, a patch against
// each file's previous content is printed.
func WriteGraphFiles(files []GraphWrite, verbose bool) error {
	type staged struct {
		tmp, path string
	}
	var pending []staged
	cleanup := func() {
		for _, s := range pending {
			os.Remove(s.tmp)
		}
	}

	for _, f := range files {
		old, err := os.ReadFile(f.Path)
		if err == nil && string(old) == f.Content {
			continue
		}

		if verbose && err == nil {
			dmp := diffmatchpatch.New()
			patches := dmp.PatchMake(string(old), f.Content)
			if text := dmp.PatchToText(patches); text != "" {
				msg.Info("%s changed:", f.Path)
				fmt.Print(text)
			}
		}

		if dir := filepath.Dir(f.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				cleanup()
				return err
			}
		}

		tmp := f.Path + "." + uuid.NewString() + ".tmp"
		if err := os.WriteFile(tmp, []byte(f.Content), 0644); err != nil {
			cleanup()
			return err
		}
		pending = append(pending, staged{tmp: tmp, path: f.Path})
	}

	for _, s := range pending {
		if err := os.Rename(s.tmp, s.path); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}

// WriteGraphFile writes a single generated file with the same staging rules.
func WriteGraphFile(graphPath, content string, verbose bool) error {
	return WriteGraphFiles([]GraphWrite{{Path: graphPath, Content: content}}, verbose)
}
