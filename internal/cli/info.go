package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/layervault/psd"
	"github.com/spf13/cobra"
)

func (a *app) infoCommand() *cobra.Command {
	var metadata bool
	cmd := &cobra.Command{
		Use:   "info FILE",
		Short: "Print document metadata",
		Long: `Print the header, resources and layer count of a document.

With --metadata the full metadata, layer tree included, is written in the
configured metadata format (json, yaml or plist).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			md, err := doc.Metadata()
			if err != nil {
				return err
			}
			if metadata {
				return writeStructured(cmd.OutOrStdout(), md.Summary(), a.cfg.Metadata.Format)
			}
			printInfo(cmd.OutOrStdout(), filepath.Base(args[0]), md)
			return nil
		},
	}
	cmd.Flags().BoolVar(&metadata, "metadata", false, "write the full metadata instead of a summary")
	cmd.Flags().String("format", "json", "metadata format: json, yaml or plist")
	a.bind("metadata.format", cmd.Flags().Lookup("format"))
	return cmd
}

func printInfo(w io.Writer, name string, md *psd.Metadata) {
	h := md.Header
	kind := "PSD"
	if h.IsBig() {
		kind = "PSB"
	}
	fmt.Fprintf(w, "%s %s\n", bold(name), faint("("+kind+")"))
	fmt.Fprintf(w, "  Mode:       %s\n", cyan(h.ModeName()))
	fmt.Fprintf(w, "  Size:       %d x %d\n", h.Width(), h.Height())
	fmt.Fprintf(w, "  Depth:      %d bits\n", h.Depth)
	fmt.Fprintf(w, "  Channels:   %d\n", h.Channels)
	fmt.Fprintf(w, "  Layers:     %d\n", len(md.Layers))
	fmt.Fprintf(w, "  Alpha:      %s\n", yesNo(md.LayerCount < 0))
	fmt.Fprintf(w, "  Merged:     %s\n", yesNo(md.HasRealMergedData()))
	if hr, vr, ok := md.Resolution(); ok {
		fmt.Fprintf(w, "  Resolution: %.0f x %.0f ppi\n", hr, vr)
	}
	if md.Resources != nil {
		fmt.Fprintf(w, "  Resources:  %d\n", len(md.Resources.Resources))
	}
	printWarnings(w, md.Warnings)
}
