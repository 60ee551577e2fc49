package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/layervault/psd"
	"github.com/layervault/psd/internal/exportutil"
	"github.com/layervault/psd/internal/logger"
	"github.com/spf13/cobra"
)

func (a *app) convertCommand() *cobra.Command {
	var (
		output string
		rle    bool
	)
	cmd := &cobra.Command{
		Use:   "convert IMAGE",
		Short: "Write a PNG, JPEG or TIFF image as a flattened document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, format, err := exportutil.ReadImage(args[0])
			if err != nil {
				return err
			}

			opts := &psd.EncoderOptions{Compression: psd.CompressionRaw}
			if rle {
				opts.Compression = psd.CompressionRLE
			}

			out, err := os.Create(output)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(out)
			if err := psd.Encode(w, img, opts); err != nil {
				out.Close()
				return fmt.Errorf("failed to encode %s: %w", output, err)
			}
			if err := w.Flush(); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

			logger.LogInfo("Converted image", map[string]interface{}{
				"input":       args[0],
				"format":      format,
				"output":      output,
				"compression": opts.Compression.String(),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("wrote"), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "out.psd", "output document")
	cmd.Flags().BoolVar(&rle, "rle", false, "compress scan lines with PackBits")
	return cmd
}
