package project

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
)

// Manifest is the parsed form of gekko.toml: the declarative description of
// libraries, objects and flags for one project. Sections may contain
// conditional sub-tables whose keys are expressions over Env; matching
// sections are merged into the base section in declaration order.
type Manifest struct {
	Project  ProjectSection
	Tools    ToolTags
	Flags    FlagsSection
	Progress ProgressSection
	Libs     []Library
}

// ProjectSection defines the [project] section.
type ProjectSection struct {
	Name              string   `toml:"name"`
	Versions          []string `toml:"versions"`
	DefaultVersion    string   `toml:"default_version"`
	LinkerVersion     string   `toml:"linker_version"`
	CheckSha          string   `toml:"check_sha"`
	ReconfigDeps      []string `toml:"reconfig_deps"`
	WarnMissingSource bool     `toml:"warn_missing_source"`
	LinkOrder         string   `toml:"link_order"` // expression hook, see linkplan
}

// FlagsSection defines the [flags] section.
type FlagsSection struct {
	Base    []string `toml:"base"`
	AsFlags []string `toml:"asflags"`
	LdFlags []string `toml:"ldflags"`
}

// ProgressSection defines the [progress] section.
type ProgressSection struct {
	Fancy      bool               `toml:"fancy"`
	CodeFrac   uint64             `toml:"code_frac"`
	CodeItem   string             `toml:"code_item"`
	DataFrac   uint64             `toml:"data_frac"`
	DataItem   string             `toml:"data_item"`
	EachModule bool               `toml:"each_module"`
	ReportArgs []string           `toml:"report_args"`
	Categories []ProgressCategory `toml:"categories"`
}

// Env is the expression environment conditional sections and {{...}}
// interpolations are evaluated against.
type Env struct {
	Version     string `expr:"version"`
	VersionNum  int    `expr:"version_num"`
	NonMatching bool   `expr:"non_matching"`
	Debug       bool   `expr:"debug"`
	Develop     bool   `expr:"develop"`
	Map         bool   `expr:"map"`
	TargetOS    string `expr:"target_os"`
}

func NewEnv(version string, versionNum int) Env {
	return Env{
		Version:    version,
		VersionNum: versionNum,
		TargetOS:   runtime.GOOS,
	}
}

// mergeStructs merges the fields of the src struct into the dst struct.
// Slices concatenate, maps overlay, booleans or, scalars last-writer-wins.
func mergeStructs(dst, src any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}

		switch dstField.Kind() {
		case reflect.Slice:
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
		case reflect.Map:
			if !srcField.IsNil() {
				if dstField.IsNil() {
					dstField.Set(reflect.MakeMap(dstField.Type()))
				}
				for _, key := range srcField.MapKeys() {
					dstField.SetMapIndex(key, srcField.MapIndex(key))
				}
			}
		case reflect.Bool:
			dstField.SetBool(dstField.Bool() || srcField.Bool())
		default:
			if !srcField.IsZero() {
				dstField.Set(srcField)
			}
		}
	}

	return nil
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(raw map[string]any, name string, dst any) error {
	if data, ok := raw[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section, then evaluates and merges any
// sub-tables whose keys compile as expressions over env.
func unmarshalConditionalSection[T any](raw map[string]any, name string, dst *T, env Env) error {
	sectionData, ok := raw[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalKeys := make([]string, 0)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalKeys = append(conditionalKeys, key)
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	// merge order must not depend on map iteration
	slices.Sort(conditionalKeys)

	for _, expression := range conditionalKeys {
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return fmt.Errorf("failed to compile expression for [%s.%q]: %w", name, expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return fmt.Errorf("failed to run expression for [%s.%q]: %w", name, expression, err)
		}

		if matched, ok := result.(bool); !ok || !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(conditionalFields[expression])), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env Env) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var builder strings.Builder
	lastIndex := 0

	for _, matchIndexes := range matches {
		builder.WriteString(s[lastIndex:matchIndexes[0]])

		expression := strings.TrimSpace(s[matchIndexes[2]:matchIndexes[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		builder.WriteString(fmt.Sprintf("%v", result))
		lastIndex = matchIndexes[1]
	}

	builder.WriteString(s[lastIndex:])

	return builder.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates
// expressions in strings
func processExpressions(data any, env Env) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// ParseManifest parses a manifest, interpolating {{...}} expressions and
// merging conditional sections against env.
func ParseManifest(rdr io.Reader, env Env) (*Manifest, error) {
	var raw map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&raw); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processed, err := processExpressions(raw, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in manifest: %w", err)
	}
	raw = processed.(map[string]any)

	m := new(Manifest)

	if err := unmarshalSection(raw, "project", &m.Project); err != nil {
		return nil, err
	}
	if err := unmarshalSection(raw, "tools", &m.Tools); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(raw, "flags", &m.Flags, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(raw, "progress", &m.Progress, env); err != nil {
		return nil, err
	}

	if data, ok := raw["libs"]; ok {
		var wrapper struct {
			Libs []Library `toml:"libs"`
		}
		if err := toml.Unmarshal([]byte(mustMarshal(map[string]any{"libs": data})), &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse [[libs]] sections: %w", err)
		}
		m.Libs = wrapper.Libs
	}

	return m, nil
}

// ParseManifestFromFile parses a manifest from a filepath.
func ParseManifestFromFile(path string, env Env) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseManifest(bufio.NewReader(f), env)
}
