// gekko configure, gekko progress, gekko verify
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/gekko-build/gekko/internal/linkplan"
	"github.com/gekko-build/gekko/internal/msg"
	"github.com/gekko-build/gekko/internal/ninja"
	"github.com/gekko-build/gekko/internal/progress"
	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
	"github.com/gekko-build/gekko/internal/shacheck"
	"github.com/gekko-build/gekko/internal/toolchain"
)

var (
	flagManifest    string
	flagVersion     string
	flagBuildDir    string
	flagCompilers   string
	flagBinutils    string
	flagDTK         string
	flagObjdiff     string
	flagNinja       string
	flagWrapper     string
	flagSjiswrap    string
	flagMap         bool
	flagDebug       bool
	flagDevelop     bool
	flagNonMatching bool
	flagProgress    bool
	flagVerbose     bool
	flagRun         bool

	flagWarn EnumValue = NewEnumValue("default", map[string]string{
		"default": "Use the manifest's warning flags",
		"all":     "Enable all warnings",
		"off":     "Disable warnings",
		"error":   "Treat warnings as errors",
	})
	flagFormat EnumValue = NewEnumValue("text", map[string]string{
		"text": "Human-readable report",
		"json": "Machine-readable JSON",
		"yaml": "Machine-readable YAML",
	})
)

// prepare resolves every object and plans the link order; shared by
// configure and progress.
func prepare(cfg *project.ProjectConfig, tc *toolchain.Toolchain) ([]*resolve.Unit, []linkplan.Module) {
	units, err := resolve.ResolveAll(context.Background(), cfg, tc)
	if err != nil {
		msg.Fatal("%v", err)
	}
	plans, err := linkplan.Plan(cfg, units)
	if err != nil {
		msg.Fatal("%v", err)
	}
	return units, plans
}

func doConfigure(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		msg.Fatal("%v", err)
	}
	tc := makeToolchain(cfg)
	units, plans := prepare(cfg, tc)

	wrapper, err := tc.Wrapper()
	if err != nil {
		msg.Fatal("%v", err)
	}
	linker, err := tc.Linker(cfg.LinkerVersion)
	if err != nil {
		msg.Fatal("%v", err)
	}
	dtk, err := tc.DTK()
	if err != nil {
		msg.Fatal("%v", err)
	}
	var sjiswrap string
	for _, unit := range units {
		if unit.ShiftJIS {
			sjiswrap, err = tc.Sjiswrap()
			if err != nil {
				msg.Fatal("%v", err)
			}
			break
		}
	}
	gekko, err := os.Executable()
	if err != nil {
		gekko = "gekko"
	}

	graph, err := ninja.Emit(cfg, units, plans, ninja.Tools{
		Wrapper:  wrapper,
		Linker:   linker,
		DTK:      dtk,
		Sjiswrap: sjiswrap,
		Gekko:    gekko,
	})
	if err != nil {
		msg.Fatal("%v", err)
	}

	objdiffCfg, err := ninja.ObjdiffConfig(cfg, units)
	if err != nil {
		msg.Fatal("%v", err)
	}

	// both outputs are staged and renamed together, so a failed generation
	// leaves neither file behind nor a mismatched pair
	err = ninja.WriteGraphFiles([]ninja.GraphWrite{
		{Path: ninja.GraphFile, Content: graph.Serialize()},
		{Path: ninja.ObjdiffConfigFile, Content: objdiffCfg},
	}, cfg.Verbose)
	if err != nil {
		msg.Fatal("failed to write %s and %s: %v", ninja.GraphFile, ninja.ObjdiffConfigFile, err)
	}
	msg.Verbosef("wrote %s and %s for %s", ninja.GraphFile, ninja.ObjdiffConfigFile, cfg.Version)

	if flagRun {
		ninjaBin, err := tc.Ninja()
		if err != nil {
			msg.Fatal("%v", err)
		}
		run := exec.Command(ninjaBin)
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			msg.Fatal("ninja failed: %v", err)
		}
	}
}

func doProgress(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		msg.Fatal("%v", err)
	}
	if !cfg.Progress {
		msg.Info("progress calculation is disabled")
		return
	}
	tc := makeToolchain(cfg)
	units, plans := prepare(cfg, tc)

	tracker := progress.Tracker{
		Differ: makeDiffer(tc),
		Scorer: progress.DefaultScorer(cfg),
	}
	report, err := tracker.Calculate(context.Background(), cfg, units, plans)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if err := progress.Render(os.Stdout, report, flagFormat.Value()); err != nil {
		msg.Fatal("%v", err)
	}
}

// makeDiffer hands a missing objdiff binary to the tracker as an error
// differ rather than failing outright: progress degrades, never crashes.
func makeDiffer(tc *toolchain.Toolchain) progress.Differ {
	path, err := tc.Objdiff()
	if err != nil {
		return unavailableDiffer{err: err}
	}
	return &progress.ObjdiffCLI{Path: path}
}

type unavailableDiffer struct{ err error }

func (d unavailableDiffer) Report(context.Context, *project.ProjectConfig, []*resolve.Unit) ([]progress.UnitResult, error) {
	return nil, d.err
}

func doVerify(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		msg.Fatal("%v", err)
	}
	if cfg.CheckShaPath == "" {
		msg.Fatal("no check_sha file configured for version %s", cfg.Version)
	}

	var progressW io.Writer
	var bar *msg.ProgressBar
	if cfg.Verbose {
		bar = msg.NewProgressBar(0, os.Stdout)
		progressW = bar
	}

	results, err := shacheck.Check(cfg.CheckShaPath, ".", progressW)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		msg.Fatal("%v", err)
	}

	failed := 0
	for _, result := range results {
		switch {
		case result.Missing:
			msg.Warn("%s: not built", result.Path)
			failed++
		case !result.OK():
			msg.Error("%s: FAILED (want %s, got %s)", result.Path, result.Want, result.Got)
			failed++
		default:
			msg.Info("%s: OK", result.Path)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gekko",
	Short: "Build configurator for matching decompilation projects",
	Long: `Gekko generates the Ninja build graph and objdiff configuration for a
matching decompilation project, and reports how much of the target
binary has been reproduced.`,
	Run: doConfigure,
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Generate build.ninja and objdiff.json",
	Run:   doConfigure,
}

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Calculate and print matching progress",
	Run:   doProgress,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify built artifacts against the version's SHA-1 check file",
	Run:   doVerify,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagManifest, "manifest", "gekko.toml", "path to the project manifest")
	pf.StringVarP(&flagVersion, "version", "v", "", "version to build (default: the manifest's default version)")
	pf.StringVar(&flagBuildDir, "build-dir", "build", "base build directory")
	pf.StringVar(&flagCompilers, "compilers", "", "path to compilers (optional)")
	pf.StringVar(&flagBinutils, "binutils", "", "path to binutils (optional)")
	pf.StringVar(&flagDTK, "dtk", "", "path to decomp-toolkit binary (optional)")
	pf.StringVar(&flagObjdiff, "objdiff", "", "path to objdiff-cli binary (optional)")
	pf.StringVar(&flagNinja, "ninja", "", "path to ninja binary (optional)")
	pf.StringVar(&flagWrapper, "wrapper", "", "path to wibo or wine (optional)")
	pf.StringVar(&flagSjiswrap, "sjiswrap", "", "path to sjiswrap binary (optional)")
	pf.BoolVar(&flagMap, "map", false, "generate map file(s)")
	pf.BoolVar(&flagDebug, "debug", false, "build with debug info (non-matching)")
	pf.BoolVar(&flagDevelop, "develop", false, "build equivalent objects and code with the DEVELOP flag")
	pf.BoolVar(&flagNonMatching, "non-matching", false, "build non-matching or modded objects")
	pf.BoolVar(&flagProgress, "progress", true, "enable progress calculation")
	pf.BoolVar(&flagVerbose, "verbose", false, "print verbose output")
	pf.VarP(&flagWarn, "warn", "W", "how to handle warnings, one of "+flagWarn.HelpString())
	rootCmd.RegisterFlagCompletionFunc("warn", flagWarn.CompletionFunc())

	configureCmd.Flags().BoolVar(&flagRun, "run", false, "invoke ninja after generating the graph")
	progressCmd.Flags().Var(&flagFormat, "format", "report output format, one of "+flagFormat.HelpString())
	progressCmd.RegisterFlagCompletionFunc("format", flagFormat.CompletionFunc())

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(verifyCmd)

	cobra.OnInitialize(func() {
		msg.Verbose = flagVerbose
	})
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
