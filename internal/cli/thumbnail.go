package cli

import (
	"fmt"

	"github.com/layervault/psd/internal/exportutil"
	"github.com/spf13/cobra"
)

func (a *app) thumbnailCommand() *cobra.Command {
	var (
		output string
		index  int
	)
	cmd := &cobra.Command{
		Use:   "thumbnail FILE",
		Short: "Write an embedded thumbnail as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			n, err := doc.NumThumbnails()
			if err != nil {
				return err
			}
			if n == 0 {
				return fmt.Errorf("%s has no thumbnail", args[0])
			}
			img, err := doc.ReadThumbnail(index)
			if err != nil {
				return err
			}
			if err := writeImageFile(output, img, exportutil.FormatPNG); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%dx%d)\n", green("wrote"), output, img.Bounds().Dx(), img.Bounds().Dy())
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "thumbnail.png", "output file")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "thumbnail index")
	return cmd
}
