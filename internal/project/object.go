package project

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

// MatchStatus describes how faithfully an object's compiled output reproduces
// the reference binary, and therefore whether it is eligible for linking.
type MatchStatus int

const (
	// Matching objects are byte-identical to the reference and always linked.
	Matching MatchStatus = iota
	// NonMatching objects are linked only in non-matching builds.
	NonMatching
	// Equivalent objects are functionally equivalent but not byte-identical;
	// they follow the same linkage rule as NonMatching.
	Equivalent
)

func (s MatchStatus) String() string {
	switch s {
	case Matching:
		return "Matching"
	case NonMatching:
		return "NonMatching"
	case Equivalent:
		return "Equivalent"
	}
	return fmt.Sprintf("MatchStatus(%d)", int(s))
}

func (s MatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *MatchStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Matching":
		*s = Matching
	case "NonMatching":
		*s = NonMatching
	case "Equivalent":
		*s = Equivalent
	default:
		return fmt.Errorf("unknown match status %q (want Matching, NonMatching or Equivalent)", text)
	}
	return nil
}

// SourceKind is inferred from the source file extension.
type SourceKind int

const (
	SourceC SourceKind = iota
	SourceCpp
	SourceAsm
)

func (k SourceKind) String() string {
	switch k {
	case SourceC:
		return "c"
	case SourceCpp:
		return "c++"
	case SourceAsm:
		return "asm"
	}
	return fmt.Sprintf("SourceKind(%d)", int(k))
}

// InferSourceKind maps a source path to its kind by extension.
func InferSourceKind(source string) (SourceKind, error) {
	switch strings.ToLower(path.Ext(source)) {
	case ".c":
		return SourceC, nil
	case ".cpp", ".cp", ".cc", ".cxx":
		return SourceCpp, nil
	case ".s":
		return SourceAsm, nil
	}
	return 0, fmt.Errorf("cannot infer source kind of %q", source)
}

// Object is a single compilation unit declared by the manifest.
type Object struct {
	Status          MatchStatus `toml:"status"`
	Source          string      `toml:"source"`
	Cflags          []string    `toml:"cflags"`       // replaces the library baseline
	ExtraCflags     []string    `toml:"extra_cflags"` // appended to the baseline
	Category        string      `toml:"category"`     // progress category override
	Versions        []string    `toml:"versions"`     // participates only for these versions
	ShiftJIS        bool        `toml:"shift_jis"`    // source is Shift JIS encoded
	ScratchPresetID *int        `toml:"scratch_preset_id"`
}

// Name is the object's identifier: the source path without its extension.
func (o Object) Name() string {
	return strings.TrimSuffix(o.Source, path.Ext(o.Source))
}

func (o Object) Kind() (SourceKind, error) {
	return InferSourceKind(o.Source)
}

// EligibleFor reports whether the object participates in a build of version.
// An empty version list means every version.
func (o Object) EligibleFor(version string) bool {
	return len(o.Versions) == 0 || slices.Contains(o.Versions, version)
}

// Library is a named group of objects sharing a compiler version and flag
// baseline. Module selects the linked output the objects belong to
// (0 is the main executable).
type Library struct {
	Name      string   `toml:"name"`
	MWVersion string   `toml:"mw_version"`
	Cflags    []string `toml:"cflags"`
	Category  string   `toml:"category"`
	Module    int      `toml:"module"`
	Objects   []Object `toml:"objects"`
}

// ProgressCategory groups objects for completion reporting.
type ProgressCategory struct {
	ID   string `toml:"id" json:"id" yaml:"id"`
	Name string `toml:"name" json:"name" yaml:"name"`
}

// ToolTags pins the external toolchain versions the project builds with.
type ToolTags struct {
	Binutils  string `toml:"binutils"`
	Compilers string `toml:"compilers"`
	DTK       string `toml:"dtk"`
	Objdiff   string `toml:"objdiff"`
	Sjiswrap  string `toml:"sjiswrap"`
	Wibo      string `toml:"wibo"`
}

// LinkOrderHook may add, remove or permute a module's link order. The
// returned order is validated before it is trusted.
type LinkOrderHook func(moduleID int, objects []string) []string

// ProjectConfig is the fully assembled, process-wide configuration. It is
// built once by the CLI layer from the manifest and command-line flags and
// treated as immutable by every component.
type ProjectConfig struct {
	Name       string
	Version    string
	VersionNum int
	Versions   []string

	BuildDir     string
	ManifestPath string
	ReconfigDeps []string

	Tools         ToolTags
	CompilersDir  string
	BinutilsDir   string
	DTKPath       string
	ObjdiffPath   string
	NinjaPath     string
	WrapperPath   string
	SjiswrapPath  string
	LinkerVersion string
	WarnMode      string // --warn value, carried into the regeneration command

	BaseCflags []string
	CliCflags  []string // command-line debug/warning additions, merged last
	AsFlags    []string
	LdFlags    []string

	NonMatching bool
	Debug       bool
	Develop     bool
	GenerateMap bool
	Verbose     bool
	Progress    bool

	WarnMissingSource bool
	CheckShaPath      string

	ProgressCategories []ProgressCategory
	ProgressEachModule bool
	ProgressFancy      bool
	CodeFancyFrac      uint64
	CodeFancyItem      string
	DataFancyFrac      uint64
	DataFancyItem      string
	ReportArgs         []string

	LinkOrderHook LinkOrderHook
	LinkOrderExpr string

	Libs []Library
}

// ObjDir is the directory holding expected objects extracted from the
// reference binary; the differ compares compiled output against these.
func (c *ProjectConfig) ObjDir() string {
	return path.Join(c.BuildDir, c.Version, "obj")
}

// SrcObjDir is the directory compiled objects are written to.
func (c *ProjectConfig) SrcObjDir() string {
	return path.Join(c.BuildDir, c.Version, "src")
}

// OutDir is the directory linked modules are written to.
func (c *ProjectConfig) OutDir() string {
	return path.Join(c.BuildDir, c.Version)
}
