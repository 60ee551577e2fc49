package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/layervault/psd"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// writeStructured encodes v as JSON, YAML or an XML property list.
func writeStructured(w io.Writer, v interface{}, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "plist":
		data, err := plist.MarshalIndent(v, plist.XMLFormat, "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plist: %w", err)
		}
		_, err = w.Write(append(data, '\n'))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func printWarnings(w io.Writer, warnings []psd.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", yellow(fmt.Sprintf("Warnings (%d):", len(warnings))))
	for _, warning := range warnings {
		fmt.Fprintf(w, "  %s\n", yellow(warning.String()))
	}
}

func yesNo(b bool) string {
	if b {
		return green("yes")
	}
	return "no"
}
