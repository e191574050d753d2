package shacheck

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha1("hello world")
const helloSum = "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build", "GAME01"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "build", "GAME01", "main.dol"), []byte("hello world"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tampered.bin"), []byte("not the same"), 0644))

	checkFile := filepath.Join(dir, "build.sha1")
	require.NoError(t, os.WriteFile(checkFile, []byte(`
# build artifacts for GAME01
`+helloSum+` *build/GAME01/main.dol
`+helloSum+`  tampered.bin
da39a3ee5e6b4b0d3255bfef95601890afd80709  missing.bin
`), 0644))

	results, err := Check(checkFile, dir, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "build/GAME01/main.dol", results[0].Path)
	assert.True(t, results[0].OK())
	assert.Equal(t, helloSum, results[0].Got)

	assert.False(t, results[1].OK())
	assert.False(t, results[1].Missing)
	assert.NotEqual(t, results[1].Want, results[1].Got)

	assert.Equal(t, "missing.bin", results[2].Path)
	assert.True(t, results[2].Missing)
	assert.False(t, results[2].OK())
}

func TestCheckUppercaseHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.dol"), []byte("hello world"), 0644))

	checkFile := filepath.Join(dir, "build.sha1")
	require.NoError(t, os.WriteFile(checkFile, []byte("2AAE6C35C94FCFB415DBE95F408B9CE91EE846ED  main.dol\n"), 0644))

	results, err := Check(checkFile, dir, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
}

func TestCheckMalformedLine(t *testing.T) {
	dir := t.TempDir()
	checkFile := filepath.Join(dir, "build.sha1")
	require.NoError(t, os.WriteFile(checkFile, []byte("deadbeef  main.dol\n"), 0644))

	_, err := Check(checkFile, dir, nil)
	assert.Error(t, err)
}

func TestCheckMissingCheckFile(t *testing.T) {
	_, err := Check(filepath.Join(t.TempDir(), "nope.sha1"), ".", nil)
	assert.Error(t, err)
}

func TestCheckProgressWriter(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.dol"), []byte("hello world"), 0644))
	checkFile := filepath.Join(dir, "build.sha1")
	require.NoError(t, os.WriteFile(checkFile, []byte(helloSum+"  main.dol\n"), 0644))

	var progress bytes.Buffer
	_, err := Check(checkFile, dir, &progress)
	require.NoError(t, err)
	assert.Equal(t, "hello world", progress.String())
}
