package progress

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes the report in the requested format. The text form is for
// humans; json and yaml are stable machine-readable encodings.
func Render(w io.Writer, report *Report, format string) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(report)
	case FormatText:
		renderText(w, report)
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderText(w io.Writer, report *Report) {
	header := fmt.Sprintf("Progress for %s", report.Version)
	if report.Revision != "" {
		header += " @ " + report.Revision
	}
	fmt.Fprintln(w, color.HiWhiteString(header))

	if !report.Available {
		fmt.Fprintln(w, color.YellowString("progress unavailable (differ missing or failed)"))
		return
	}

	for _, mod := range report.Modules {
		if len(report.Modules) > 1 || mod.Module != 0 {
			fmt.Fprintln(w, color.HiWhiteString(moduleLabel(mod.Module)+":"))
		}

		for _, cat := range mod.Categories {
			printCategory(w, cat)
		}
		printCategory(w, mod.Overall)

		for _, fancy := range mod.Fancy {
			fmt.Fprintf(w, "  %s\n", color.HiCyanString("%.1f/%d %s", fancy.Value, fancy.Out, fancy.Item))
		}
		if len(mod.Unmeasured) > 0 {
			fmt.Fprintf(w, "  %s %d object(s) without a verdict:\n", color.YellowString("unmeasured:"), len(mod.Unmeasured))
			for _, name := range mod.Unmeasured {
				fmt.Fprintf(w, "    %s\n", name)
			}
		}
	}
}

func printCategory(w io.Writer, cat CategoryReport) {
	codePct := cat.Code.Percent()
	fmt.Fprintf(w, "  %-24s %s code (%d/%d bytes), %s data (%d/%d bytes), %d/%d objects\n",
		cat.Name,
		percentString(codePct),
		cat.Code.Matched, cat.Code.Total,
		percentString(cat.Data.Percent()),
		cat.Data.Matched, cat.Data.Total,
		cat.Units.Matched, cat.Units.Total,
	)
}

func percentString(pct float64) string {
	s := fmt.Sprintf("%6.2f%%", pct)
	switch {
	case pct >= 100:
		return color.HiGreenString(s)
	case pct >= 50:
		return color.GreenString(s)
	case pct > 0:
		return color.YellowString(s)
	}
	return color.RedString(s)
}

func moduleLabel(id int) string {
	if id == 0 {
		return "DOL"
	}
	return fmt.Sprintf("module %d", id)
}
