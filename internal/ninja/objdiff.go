package ninja

import (
	"encoding/json"

	"github.com/gekko-build/gekko/internal/project"
	"github.com/gekko-build/gekko/internal/resolve"
)

// ObjdiffConfigFile is the side file mapping object/library metadata for the
// differ's own reporting.
const ObjdiffConfigFile = "objdiff.json"

type objdiffConfig struct {
	MinVersion         string                     `json:"min_version"`
	CustomMake         string                     `json:"custom_make,omitempty"`
	CustomArgs         []string                   `json:"custom_args,omitempty"`
	BuildTarget        bool                       `json:"build_target"`
	BuildBase          bool                       `json:"build_base"`
	WatchPatterns      []string                   `json:"watch_patterns"`
	ProgressCategories []project.ProgressCategory `json:"progress_categories"`
	Units              []objdiffUnit              `json:"units"`
}

type objdiffUnit struct {
	Name       string          `json:"name"`
	TargetPath string          `json:"target_path"`
	BasePath   string          `json:"base_path"`
	Metadata   objdiffMetadata `json:"metadata"`
}

type objdiffMetadata struct {
	Complete           *bool    `json:"complete,omitempty"`
	SourcePath         string   `json:"source_path"`
	ProgressCategories []string `json:"progress_categories,omitempty"`
	ScratchPresetID    *int     `json:"scratch_preset_id,omitempty"`
}

var defaultWatchPatterns = []string{"*.c", "*.cp", "*.cpp", "*.cxx", "*.h", "*.hpp", "*.s"}

// ObjdiffConfig renders the objdiff.json side file contents for the
// resolved unit list.
func ObjdiffConfig(cfg *project.ProjectConfig, units []*resolve.Unit) (string, error) {
	out := objdiffConfig{
		MinVersion:         "2.0.0",
		BuildBase:          true,
		WatchPatterns:      defaultWatchPatterns,
		ProgressCategories: cfg.ProgressCategories,
		Units:              make([]objdiffUnit, 0, len(units)),
	}

	for _, unit := range units {
		complete := unit.Status == project.Matching
		u := objdiffUnit{
			Name:       unit.Name,
			TargetPath: unit.ExpectedPath,
			BasePath:   unit.ObjPath,
			Metadata: objdiffMetadata{
				Complete:        &complete,
				SourcePath:      unit.SrcPath,
				ScratchPresetID: unit.ScratchPresetID,
			},
		}
		if unit.Category != "" {
			u.Metadata.ProgressCategories = []string{unit.Category}
		}
		out.Units = append(out.Units, u)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}
