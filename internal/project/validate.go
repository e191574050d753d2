package project

import "fmt"

// Validate checks the library/object declarations before any graph work:
// library names must be unique and non-empty, object paths must not repeat
// across libraries, every source kind must be inferrable, and every
// referenced progress category must be declared.
func Validate(libs []Library, categories []ProgressCategory) error {
	catIDs := make(map[string]bool, len(categories))
	for _, cat := range categories {
		if cat.ID == "" {
			return &ValidationError{Msg: "progress category with empty id"}
		}
		if catIDs[cat.ID] {
			return &ValidationError{Msg: fmt.Sprintf("duplicate progress category %q", cat.ID)}
		}
		catIDs[cat.ID] = true
	}

	libNames := make(map[string]bool, len(libs))
	objSources := make(map[string]string) // source -> owning library
	objNames := make(map[string]string)   // name (source minus extension) -> source

	for _, lib := range libs {
		if lib.Name == "" {
			return &ValidationError{Msg: "library with empty name"}
		}
		if libNames[lib.Name] {
			return &ValidationError{Library: lib.Name, Msg: "duplicate library name"}
		}
		libNames[lib.Name] = true

		if lib.Category != "" && !catIDs[lib.Category] {
			return &ValidationError{
				Library: lib.Name,
				Msg:     fmt.Sprintf("undeclared progress category %q", lib.Category),
			}
		}
		if lib.Module < 0 {
			return &ValidationError{Library: lib.Name, Msg: fmt.Sprintf("negative module id %d", lib.Module)}
		}

		for _, obj := range lib.Objects {
			if obj.Source == "" {
				return &ValidationError{Library: lib.Name, Msg: "object with empty source path"}
			}
			if owner, dup := objSources[obj.Source]; dup {
				return &ValidationError{
					Library: lib.Name,
					Object:  obj.Source,
					Msg:     fmt.Sprintf("already declared by library %q", owner),
				}
			}
			objSources[obj.Source] = lib.Name

			if other, dup := objNames[obj.Name()]; dup {
				return &ValidationError{
					Library: lib.Name,
					Object:  obj.Source,
					Msg:     fmt.Sprintf("object name collides with %q", other),
				}
			}
			objNames[obj.Name()] = obj.Source

			if _, err := obj.Kind(); err != nil {
				return &ValidationError{Library: lib.Name, Object: obj.Source, Msg: err.Error()}
			}
			if obj.Category != "" && !catIDs[obj.Category] {
				return &ValidationError{
					Library: lib.Name,
					Object:  obj.Source,
					Msg:     fmt.Sprintf("undeclared progress category %q", obj.Category),
				}
			}
		}
	}

	return nil
}
