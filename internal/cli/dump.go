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

func (a *app) dumpCommand() *cobra.Command {
	var (
		output      string
		index       int
		interleaved bool
	)
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Write the decoded samples of an image as raw bytes",
		Long: `Write the decoded samples of image INDEX in native big-endian order, one
plane per band unless --interleaved is given. The stream is compressed with
the configured export compression: none, zstd, lz4, xz or bzip2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			opts := &psd.DecodeOptions{Layout: psd.LayoutBanded}
			if interleaved {
				opts.Layout = psd.LayoutInterleaved
			}
			res, err := doc.Decode(cmd.Context(), index, opts)
			if err != nil {
				return err
			}
			if res.Aborted {
				return fmt.Errorf("dump of image %d cancelled", index)
			}
			if res.Raster == nil {
				return fmt.Errorf("image %d is an empty layer", index)
			}

			name := output + exportutil.Extension(a.cfg.Export.Compression)
			n, err := dumpRaster(name, res.Raster, a.cfg.Export.Compression)
			if err != nil {
				return err
			}

			r := res.Raster
			logger.LogDebug("Dumped raster", map[string]interface{}{"output": name, "bytes": n})
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %dx%d, %d bands of %d bits, %s, %d bytes\n",
				green("wrote"), name, r.Width, r.Height, r.Bands, r.Depth, r.Layout, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "image.raw", "output file, extended by the compression suffix")
	cmd.Flags().IntVarP(&index, "index", "i", 0, "image index, 0 for the composite")
	cmd.Flags().BoolVar(&interleaved, "interleaved", false, "interleave the bands of each pixel")
	cmd.Flags().String("compression", "none", "stream compression: none, zstd, lz4, xz or bzip2")
	a.bind("export.compression", cmd.Flags().Lookup("compression"))
	return cmd
}

// dumpRaster writes every plane of r and returns the uncompressed size.
func dumpRaster(path string, r *psd.Raster, compression string) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	buf := bufio.NewWriter(out)
	cw, err := exportutil.NewCompressor(buf, compression)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, plane := range r.Pix {
		m, err := cw.Write(plane)
		n += int64(m)
		if err != nil {
			return n, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := cw.Close(); err != nil {
		return n, err
	}
	if err := buf.Flush(); err != nil {
		return n, err
	}
	return n, out.Close()
}
