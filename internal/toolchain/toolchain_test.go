package toolchain

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilerEnvOverride(t *testing.T) {
	t.Setenv("MWCC", "/custom/mwcceppc.exe")
	tc := &Toolchain{CompilersDir: "/does/not/exist"}

	path, err := tc.Compiler("GC/1.2.5")
	require.NoError(t, err)
	assert.Equal(t, "/custom/mwcceppc.exe", path)
}

func TestCompilerLookup(t *testing.T) {
	t.Setenv("MWCC", "")
	dir := t.TempDir()
	exe := filepath.Join(dir, "GC", "1.2.5", "mwcceppc.exe")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0755))
	require.NoError(t, os.WriteFile(exe, nil, 0755))

	tc := &Toolchain{CompilersDir: dir}
	path, err := tc.Compiler("GC/1.2.5")
	require.NoError(t, err)
	assert.Equal(t, exe, path)

	_, err = tc.Compiler("GC/3.0a5.2")
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "compiler", notFound.Tool)
	assert.Equal(t, "GC/3.0a5.2", notFound.Tag)
}

func TestLinkerLookup(t *testing.T) {
	t.Setenv("MWLD", "")
	tc := &Toolchain{CompilersDir: t.TempDir()}

	_, err := tc.Linker("GC/1.3.2")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "linker", notFound.Tool)
}

func TestAssemblerEnvOverride(t *testing.T) {
	t.Setenv("AS", "/custom/powerpc-eabi-as")
	tc := &Toolchain{}

	path, err := tc.Assembler()
	require.NoError(t, err)
	assert.Equal(t, "/custom/powerpc-eabi-as", path)
}

func TestExplicitPathMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	var notFound *NotFoundError

	tc := &Toolchain{DTKPath: missing, ObjdiffPath: missing, NinjaPath: missing, WrapperPath: missing, SjiswrapPath: missing}
	_, err := tc.DTK()
	assert.True(t, errors.As(err, &notFound))
	_, err = tc.Objdiff()
	assert.True(t, errors.As(err, &notFound))
	_, err = tc.Ninja()
	assert.True(t, errors.As(err, &notFound))
	_, err = tc.Sjiswrap()
	assert.True(t, errors.As(err, &notFound))

	if runtime.GOOS != "windows" {
		_, err = tc.Wrapper()
		assert.True(t, errors.As(err, &notFound))
	}
}

func TestNotFoundErrorMessage(t *testing.T) {
	assert.Equal(t, "compiler (tag GC/1.2.5) not found at /x", (&NotFoundError{Tool: "compiler", Tag: "GC/1.2.5", Path: "/x"}).Error())
	assert.Equal(t, "dtk not found at /x", (&NotFoundError{Tool: "dtk", Path: "/x"}).Error())
	assert.Equal(t, "wrapper not found", (&NotFoundError{Tool: "wrapper"}).Error())
}
