// Package toolchain resolves version-tagged tool binaries (compiler, linker,
// assembler, dtk, objdiff) to concrete paths. It never downloads anything;
// fetching and pinning are owned by an external downloader.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	compilerExe = "mwcceppc.exe"
	linkerExe   = "mwldeppc.exe"
)

var wrapperCandidates = []string{"wibo", "wine"}

// NotFoundError reports a tool binary that could not be located. Missing
// compilers are fatal for generation; a missing differ only disables
// progress reporting.
type NotFoundError struct {
	Tool string
	Tag  string
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("%s (tag %s) not found at %s", e.Tool, e.Tag, e.Path)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s not found at %s", e.Tool, e.Path)
	}
	return fmt.Sprintf("%s not found", e.Tool)
}

// Toolchain locates tool binaries from explicit paths, versioned tool
// directories and PATH, in that order.
type Toolchain struct {
	CompilersDir string // holds one subdirectory per compiler version tag
	BinutilsDir  string
	DTKPath      string
	ObjdiffPath  string
	NinjaPath    string
	WrapperPath  string
	SjiswrapPath string
}

// Compiler returns the mwcc binary for a compiler version tag,
// e.g. <compilers>/GC/3.0a5.2/mwcceppc.exe. The MWCC environment variable
// overrides the lookup.
func (t *Toolchain) Compiler(tag string) (string, error) {
	if cc := os.Getenv("MWCC"); cc != "" {
		return cc, nil
	}
	path := filepath.Join(t.CompilersDir, filepath.FromSlash(tag), compilerExe)
	if !fileExists(path) {
		return "", &NotFoundError{Tool: "compiler", Tag: tag, Path: path}
	}
	return path, nil
}

// Linker returns the mwld binary for a linker version tag. The MWLD
// environment variable overrides the lookup.
func (t *Toolchain) Linker(tag string) (string, error) {
	if ld := os.Getenv("MWLD"); ld != "" {
		return ld, nil
	}
	path := filepath.Join(t.CompilersDir, filepath.FromSlash(tag), linkerExe)
	if !fileExists(path) {
		return "", &NotFoundError{Tool: "linker", Tag: tag, Path: path}
	}
	return path, nil
}

// Assembler returns the powerpc-eabi-as binary.
func (t *Toolchain) Assembler() (string, error) {
	if as := os.Getenv("AS"); as != "" {
		return as, nil
	}
	if t.BinutilsDir != "" {
		path := filepath.Join(t.BinutilsDir, exeName("powerpc-eabi-as"))
		if !fileExists(path) {
			return "", &NotFoundError{Tool: "assembler", Path: path}
		}
		return path, nil
	}
	return lookPath("assembler", "powerpc-eabi-as")
}

// DTK returns the decomp-toolkit binary used for object extraction and
// post-processing (elf2dol).
func (t *Toolchain) DTK() (string, error) {
	if t.DTKPath != "" {
		if !fileExists(t.DTKPath) {
			return "", &NotFoundError{Tool: "dtk", Path: t.DTKPath}
		}
		return t.DTKPath, nil
	}
	return lookPath("dtk", "dtk")
}

// Objdiff returns the objdiff-cli binary, the external differ.
func (t *Toolchain) Objdiff() (string, error) {
	if t.ObjdiffPath != "" {
		if !fileExists(t.ObjdiffPath) {
			return "", &NotFoundError{Tool: "objdiff", Path: t.ObjdiffPath}
		}
		return t.ObjdiffPath, nil
	}
	return lookPath("objdiff", "objdiff-cli")
}

// Sjiswrap returns the sjiswrap binary that re-encodes Shift JIS sources
// before they reach the compiler.
func (t *Toolchain) Sjiswrap() (string, error) {
	if t.SjiswrapPath != "" {
		if !fileExists(t.SjiswrapPath) {
			return "", &NotFoundError{Tool: "sjiswrap", Path: t.SjiswrapPath}
		}
		return t.SjiswrapPath, nil
	}
	return lookPath("sjiswrap", "sjiswrap")
}

// Ninja returns the ninja binary the emitted graph is handed to.
func (t *Toolchain) Ninja() (string, error) {
	if t.NinjaPath != "" {
		if !fileExists(t.NinjaPath) {
			return "", &NotFoundError{Tool: "ninja", Path: t.NinjaPath}
		}
		return t.NinjaPath, nil
	}
	return lookPath("ninja", "ninja")
}

// Wrapper returns the binary the Windows-only compiler runs under (wibo or
// wine). On Windows no wrapper is needed and the result is empty.
func (t *Toolchain) Wrapper() (string, error) {
	if runtime.GOOS == "windows" {
		return "", nil
	}
	if t.WrapperPath != "" {
		if !fileExists(t.WrapperPath) {
			return "", &NotFoundError{Tool: "wrapper", Path: t.WrapperPath}
		}
		return t.WrapperPath, nil
	}
	for _, candidate := range wrapperCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", &NotFoundError{Tool: "wrapper (wibo or wine)"}
}

func lookPath(tool, name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &NotFoundError{Tool: tool, Path: name}
	}
	return path, nil
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}
