package progress

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/gekko-build/gekko/internal/msg"
	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
)

// ObjdiffCLI is the production differ: one batch `objdiff-cli report
// generate` invocation per progress run.
type ObjdiffCLI struct {
	Path string // resolved objdiff-cli binary
}

type objdiffReport struct {
	Units []objdiffReportUnit `json:"units"`
}

type objdiffReportUnit struct {
	Name     string          `json:"name"`
	Measures objdiffMeasures `json:"measures"`
}

type objdiffMeasures struct {
	FuzzyMatchPercent float64 `json:"fuzzy_match_percent"`
	TotalCode         uint64  `json:"total_code"`
	MatchedCode       uint64  `json:"matched_code"`
	TotalData         uint64  `json:"total_data"`
	MatchedData       uint64  `json:"matched_data"`
}

// Report runs the differ once and maps its report back onto the requested
// units. Units the report does not cover come back with an unknown verdict.
func (d *ObjdiffCLI) Report(ctx context.Context, cfg *project.ProjectConfig, units []*resolve.Unit) ([]UnitResult, error) {
	tmp, err := os.CreateTemp("", "objdiff-report-*.json")
	if err != nil {
		return nil, err
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	args := []string{"report", "generate", "-o", tmp.Name()}
	args = append(args, cfg.ReportArgs...)

	cmd := exec.CommandContext(ctx, d.Path, args...)
	cmd.Stdout = &msg.IndentWriter{Indent: "  ", W: os.Stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	var report objdiffReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	byName := make(map[string]objdiffReportUnit, len(report.Units))
	for _, u := range report.Units {
		byName[u.Name] = u
	}

	results := make([]UnitResult, 0, len(units))
	for _, unit := range units {
		u, ok := byName[unit.Name]
		if !ok {
			results = append(results, UnitResult{
				Name:    unit.Name,
				Verdict: VerdictUnknown,
				Err:     "unit missing from differ report",
			})
			continue
		}

		verdict := VerdictMismatch
		if u.Measures.MatchedCode == u.Measures.TotalCode && u.Measures.MatchedData == u.Measures.TotalData {
			verdict = VerdictMatch
		}
		results = append(results, UnitResult{
			Name:        unit.Name,
			Verdict:     verdict,
			MatchedCode: u.Measures.MatchedCode,
			TotalCode:   u.Measures.TotalCode,
			MatchedData: u.Measures.MatchedData,
			TotalData:   u.Measures.TotalData,
		})
	}

	return results, nil
}

// UnitDiffer measures a single object; Parallel adapts one into a batch
// Differ with a bounded worker pool. Per-unit failures become unknown
// verdicts, never a failed run.
type UnitDiffer interface {
	DiffUnit(ctx context.Context, cfg *project.ProjectConfig, unit *resolve.Unit) (UnitResult, error)
}

type parallelDiffer struct {
	differ UnitDiffer
	limit  int
}

// Parallel fans unit diffs out over at most limit workers (NumCPU when
// limit <= 0). Result order matches unit order.
func Parallel(d UnitDiffer, limit int) Differ {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return &parallelDiffer{differ: d, limit: limit}
}

func (p *parallelDiffer) Report(ctx context.Context, cfg *project.ProjectConfig, units []*resolve.Unit) ([]UnitResult, error) {
	results := make([]UnitResult, len(units))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.limit)

	for i, unit := range units {
		eg.Go(func() error {
			result, err := p.differ.DiffUnit(ctx, cfg, unit)
			if err != nil {
				result = UnitResult{Name: unit.Name, Verdict: VerdictUnknown, Err: err.Error()}
			}
			results[i] = result
			return nil
		})
	}

	eg.Wait()
	return results, nil
}
