// Package progress aggregates external differ verdicts into per-category
// completion percentages. It never caches: every report comes from a fresh
// differ invocation.
package progress

import (
	"context"
	"errors"

	git "github.com/go-git/go-git/v6"

	"github.com/gekko-build/gekko/internal/linkplan"
	"github.com/gekko-build/gekko/internal/msg"
	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
	"github.com/gekko-build/gekko/internal/toolchain"
)

// Verdict is the differ's judgement for one object.
type Verdict int

const (
	VerdictMatch Verdict = iota
	VerdictMismatch
	VerdictUnknown // differ failed or did not cover the unit
)

func (v Verdict) String() string {
	switch v {
	case VerdictMatch:
		return "match"
	case VerdictMismatch:
		return "mismatch"
	}
	return "unknown"
}

// UnitResult is the differ's measurement for one object.
type UnitResult struct {
	Name        string
	Verdict     Verdict
	MatchedCode uint64
	TotalCode   uint64
	MatchedData uint64
	TotalData   uint64
	Err         string // set for unknown verdicts
}

// Differ produces a verdict and measured sizes per object. The reference
// implementation shells out to objdiff-cli in batch mode; tests substitute
// their own.
type Differ interface {
	Report(ctx context.Context, cfg *project.ProjectConfig, units []*resolve.Unit) ([]UnitResult, error)
}

// Fraction is matched units over total units in one measurement unit.
type Fraction struct {
	Matched uint64 `json:"matched" yaml:"matched"`
	Total   uint64 `json:"total" yaml:"total"`
}

// Percent is vacuously 100 for an empty total, never a division fault.
func (f Fraction) Percent() float64 {
	if f.Total == 0 {
		return 100
	}
	return float64(f.Matched) / float64(f.Total) * 100
}

// FancyStat maps a fraction onto a project-flavored display unit.
type FancyStat struct {
	Value float64 `json:"value" yaml:"value"`
	Out   uint64  `json:"out_of" yaml:"out_of"`
	Item  string  `json:"item" yaml:"item"`
}

// Scorer converts overall code/data fractions into display units. The
// weighting scheme is policy, not contract; install any function here.
type Scorer func(code, data Fraction) []FancyStat

// DefaultScorer scales the matched fraction onto the configured
// denominators, e.g. 66.7% code of frac 30 -> "20.0/30 ship parts".
func DefaultScorer(cfg *project.ProjectConfig) Scorer {
	return func(code, data Fraction) []FancyStat {
		var stats []FancyStat
		if cfg.CodeFancyFrac > 0 {
			stats = append(stats, FancyStat{
				Value: code.Percent() / 100 * float64(cfg.CodeFancyFrac),
				Out:   cfg.CodeFancyFrac,
				Item:  cfg.CodeFancyItem,
			})
		}
		if cfg.DataFancyFrac > 0 {
			stats = append(stats, FancyStat{
				Value: data.Percent() / 100 * float64(cfg.DataFancyFrac),
				Out:   cfg.DataFancyFrac,
				Item:  cfg.DataFancyItem,
			})
		}
		return stats
	}
}

// CategoryReport aggregates one progress category in every measurement unit.
type CategoryReport struct {
	ID    string   `json:"id" yaml:"id"`
	Name  string   `json:"name" yaml:"name"`
	Code  Fraction `json:"code" yaml:"code"`
	Data  Fraction `json:"data" yaml:"data"`
	Units Fraction `json:"units" yaml:"units"`
}

func (c *CategoryReport) add(r UnitResult) {
	c.Code.Matched += r.MatchedCode
	c.Code.Total += r.TotalCode
	c.Data.Matched += r.MatchedData
	c.Data.Total += r.TotalData
	if r.Verdict == VerdictMatch {
		c.Units.Matched++
	}
	c.Units.Total++
}

// ModuleReport is the per-module breakdown; with progress_each_module off
// only module 0 is present.
type ModuleReport struct {
	Module     int              `json:"module" yaml:"module"`
	Categories []CategoryReport `json:"categories" yaml:"categories"`
	Overall    CategoryReport   `json:"overall" yaml:"overall"`
	Fancy      []FancyStat      `json:"fancy,omitempty" yaml:"fancy,omitempty"`
	Unmeasured []string         `json:"unmeasured,omitempty" yaml:"unmeasured,omitempty"`
}

// Report is the aggregated, transient progress result.
type Report struct {
	Version   string         `json:"version" yaml:"version"`
	Revision  string         `json:"revision,omitempty" yaml:"revision,omitempty"`
	Available bool           `json:"available" yaml:"available"`
	Modules   []ModuleReport `json:"modules,omitempty" yaml:"modules,omitempty"`
}

// Tracker drives the differ and aggregates its verdicts.
type Tracker struct {
	Differ Differ
	Scorer Scorer
}

// Calculate measures the objects eligible for linking in the current build
// mode: module 0 only, or every module when progress_each_module is set.
// A missing or failing differ degrades to an unavailable report; per-object
// gaps degrade to unknown verdicts, flagged but counted.
func (t *Tracker) Calculate(ctx context.Context, cfg *project.ProjectConfig, units []*resolve.Unit, plans []linkplan.Module) (*Report, error) {
	report := &Report{
		Version:  cfg.Version,
		Revision: headRevision(),
	}

	measured := plans
	if !cfg.ProgressEachModule {
		measured = nil
		for _, plan := range plans {
			if plan.ID == 0 {
				measured = []linkplan.Module{plan}
				break
			}
		}
	}

	byName := resolve.Index(units)
	var wanted []*resolve.Unit
	seen := make(map[string]bool)
	for _, plan := range measured {
		for _, name := range plan.Objects {
			if unit, ok := byName[name]; ok && !seen[name] {
				seen[name] = true
				wanted = append(wanted, unit)
			}
		}
	}

	results, err := t.Differ.Report(ctx, cfg, wanted)
	if err != nil {
		var notFound *toolchain.NotFoundError
		if errors.As(err, &notFound) {
			msg.Warn("progress unavailable: %v", err)
			return report, nil
		}
		msg.Warn("differ failed, progress unavailable: %v", err)
		return report, nil
	}
	report.Available = true

	byResult := make(map[string]UnitResult, len(results))
	for _, r := range results {
		byResult[r.Name] = r
	}

	for _, plan := range measured {
		report.Modules = append(report.Modules, t.aggregate(cfg, plan, byName, byResult))
	}

	return report, nil
}

func (t *Tracker) aggregate(cfg *project.ProjectConfig, plan linkplan.Module, byName map[string]*resolve.Unit, byResult map[string]UnitResult) ModuleReport {
	mod := ModuleReport{Module: plan.ID}

	categories := make([]*CategoryReport, len(cfg.ProgressCategories))
	index := make(map[string]*CategoryReport, len(cfg.ProgressCategories))
	for i, cat := range cfg.ProgressCategories {
		categories[i] = &CategoryReport{ID: cat.ID, Name: cat.Name}
		index[cat.ID] = categories[i]
	}
	overall := &CategoryReport{ID: "all", Name: "Overall"}

	for _, name := range plan.Objects {
		unit := byName[name]
		result, ok := byResult[name]
		if !ok {
			result = UnitResult{Name: name, Verdict: VerdictUnknown, Err: "no differ verdict"}
		}
		if result.Verdict == VerdictUnknown {
			mod.Unmeasured = append(mod.Unmeasured, name)
		}

		// uncategorized objects count toward the overall row only
		if cat, ok := index[unit.Category]; ok {
			cat.add(result)
		}
		overall.add(result)
	}

	for _, cat := range categories {
		mod.Categories = append(mod.Categories, *cat)
	}
	mod.Overall = *overall

	if cfg.ProgressFancy && t.Scorer != nil {
		mod.Fancy = t.Scorer(overall.Code, overall.Data)
	}

	return mod
}

// headRevision stamps reports with the repository HEAD, best effort.
func headRevision() string {
	repo, err := git.PlainOpenWithOptions(".", &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()[:12]
}
