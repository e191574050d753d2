package cmd

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/toolchain"
)

// loadConfig parses the manifest and assembles the immutable ProjectConfig
// from it and the command-line flags. The manifest is parsed twice when no
// version was given: once to learn the default version, once with the full
// expression environment.
func loadConfig() (*project.ProjectConfig, error) {
	env := project.NewEnv(flagVersion, 0)
	m, err := project.ParseManifestFromFile(flagManifest, env)
	if err != nil {
		return nil, err
	}

	version := flagVersion
	if version == "" {
		version = m.Project.DefaultVersion
		if version == "" && len(m.Project.Versions) > 0 {
			version = m.Project.Versions[0]
		}
	}
	versionNum := slices.Index(m.Project.Versions, version)
	if versionNum < 0 {
		return nil, fmt.Errorf("unknown version %q, known versions: %v", version, m.Project.Versions)
	}

	env = project.NewEnv(version, versionNum)
	env.NonMatching = flagNonMatching
	env.Debug = flagDebug
	env.Develop = flagDevelop
	env.Map = flagMap

	m, err = project.ParseManifestFromFile(flagManifest, env)
	if err != nil {
		return nil, err
	}

	if err := project.Validate(m.Libs, m.Progress.Categories); err != nil {
		return nil, err
	}

	cfg := &project.ProjectConfig{
		Name:       m.Project.Name,
		Version:    version,
		VersionNum: versionNum,
		Versions:   m.Project.Versions,

		BuildDir:     flagBuildDir,
		ManifestPath: flagManifest,
		ReconfigDeps: m.Project.ReconfigDeps,

		Tools:         m.Tools,
		CompilersDir:  flagCompilers,
		BinutilsDir:   flagBinutils,
		DTKPath:       flagDTK,
		ObjdiffPath:   flagObjdiff,
		NinjaPath:     flagNinja,
		WrapperPath:   flagWrapper,
		SjiswrapPath:  flagSjiswrap,
		LinkerVersion: m.Project.LinkerVersion,
		WarnMode:      flagWarn.Value(),

		BaseCflags: m.Flags.Base,
		AsFlags:    m.Flags.AsFlags,
		LdFlags:    m.Flags.LdFlags,

		NonMatching: flagNonMatching,
		Debug:       flagDebug,
		Develop:     flagDevelop,
		GenerateMap: flagMap,
		Verbose:     flagVerbose,
		Progress:    flagProgress,

		WarnMissingSource: m.Project.WarnMissingSource,
		CheckShaPath:      m.Project.CheckSha,

		ProgressCategories: m.Progress.Categories,
		ProgressEachModule: m.Progress.EachModule || flagVerbose,
		ProgressFancy:      m.Progress.Fancy,
		CodeFancyFrac:      m.Progress.CodeFrac,
		CodeFancyItem:      m.Progress.CodeItem,
		DataFancyFrac:      m.Progress.DataFrac,
		DataFancyItem:      m.Progress.DataItem,
		ReportArgs:         m.Progress.ReportArgs,

		LinkOrderExpr: m.Project.LinkOrder,

		Libs: m.Libs,
	}

	// command-line warning handling merges after every manifest layer
	switch flagWarn.Value() {
	case "all":
		cfg.CliCflags = append(cfg.CliCflags, "-W all")
	case "off":
		cfg.CliCflags = append(cfg.CliCflags, "-W off")
	case "error":
		cfg.CliCflags = append(cfg.CliCflags, "-W error")
	}

	return cfg, nil
}

// makeToolchain builds the binary locator from explicit flag paths and tool
// tags, defaulting to the versioned directories under build/tools.
func makeToolchain(cfg *project.ProjectConfig) *toolchain.Toolchain {
	compilersDir := cfg.CompilersDir
	if compilersDir == "" {
		compilersDir = filepath.Join(cfg.BuildDir, "tools", "compilers-"+cfg.Tools.Compilers)
	}
	binutilsDir := cfg.BinutilsDir
	if binutilsDir == "" && cfg.Tools.Binutils != "" {
		binutilsDir = filepath.Join(cfg.BuildDir, "tools", "binutils-"+cfg.Tools.Binutils)
	}
	sjiswrapPath := cfg.SjiswrapPath
	if sjiswrapPath == "" && cfg.Tools.Sjiswrap != "" {
		sjiswrapPath = filepath.Join(cfg.BuildDir, "tools", "sjiswrap-"+cfg.Tools.Sjiswrap, "sjiswrap.exe")
	}

	return &toolchain.Toolchain{
		CompilersDir: compilersDir,
		BinutilsDir:  binutilsDir,
		DTKPath:      cfg.DTKPath,
		ObjdiffPath:  cfg.ObjdiffPath,
		NinjaPath:    cfg.NinjaPath,
		WrapperPath:  cfg.WrapperPath,
		SjiswrapPath: sjiswrapPath,
	}
}
