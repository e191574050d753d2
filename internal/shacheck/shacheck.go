// Package shacheck verifies built artifacts against a version's sha1sum
// check file.
package shacheck

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Result is the verdict for one checked artifact.
type Result struct {
	Path    string
	Want    string
	Got     string
	Missing bool
}

func (r Result) OK() bool {
	return !r.Missing && r.Want == r.Got
}

// Check reads a sha1sum-format check file (`<hash>  <path>` per line) and
// hashes each named artifact relative to baseDir. When progress is non-nil,
// hashed bytes are streamed through it.
func Check(checkFile, baseDir string, progress io.Writer) ([]Result, error) {
	f, err := os.Open(checkFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var results []Result
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != sha1.Size*2 {
			return nil, fmt.Errorf("%s: malformed check line %q", checkFile, line)
		}
		want := strings.ToLower(fields[0])
		relPath := strings.TrimPrefix(strings.Join(fields[1:], " "), "*")

		result := Result{Path: relPath, Want: want}
		got, err := hashFile(filepath.Join(baseDir, filepath.FromSlash(relPath)), progress)
		if os.IsNotExist(err) {
			result.Missing = true
		} else if err != nil {
			return nil, err
		} else {
			result.Got = got
		}
		results = append(results, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func hashFile(path string, progress io.Writer) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha1.New()
	var w io.Writer = hash
	if progress != nil {
		w = io.MultiWriter(hash, progress)
	}
	if _, err := io.Copy(w, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
