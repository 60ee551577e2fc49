package cli

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/layervault/psd"
	"github.com/layervault/psd/internal/exportutil"
	"github.com/layervault/psd/internal/logger"
	"github.com/spf13/cobra"
)

type exportFlags struct {
	output string
	index  int
	region string
	xSub   int
	ySub   int
	rgb    bool
}

func (a *app) exportCommand() *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Export the composite or a layer as PNG or TIFF",
		Long: `Export image INDEX of a document: 0 is the composite, 1 and up are the
layers in file order. A region and subsampling factors select the pixels to
decode; the scale factor resizes the result before it is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExport(cmd, args[0], f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.output, "output", "o", "", "output file (default FILE-INDEX.FORMAT)")
	fl.IntVarP(&f.index, "index", "i", 0, "image index, 0 for the composite")
	fl.StringVar(&f.region, "region", "", "source region as x,y,width,height")
	fl.IntVar(&f.xSub, "xsub", 1, "keep every Nth column")
	fl.IntVar(&f.ySub, "ysub", 1, "keep every Nth row")
	fl.BoolVar(&f.rgb, "rgb", false, "convert to RGB before writing")
	fl.String("format", "png", "image format: png or tiff")
	fl.Float64("scale", 1, "resize factor applied after decoding")
	a.bind("export.format", fl.Lookup("format"))
	a.bind("export.scale", fl.Lookup("scale"))
	return cmd
}

func (a *app) runExport(cmd *cobra.Command, path string, f exportFlags) error {
	opts := &psd.DecodeOptions{XSubsample: f.xSub, YSubsample: f.ySub}
	if f.region != "" {
		region, err := parseRegion(f.region)
		if err != nil {
			return err
		}
		opts.Region = region
	}
	if f.rgb {
		cs := psd.DefaultColorSpace(psd.ModelRGB)
		opts.ColorSpace = &cs
	}

	doc, err := a.open(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	res, err := doc.Decode(cmd.Context(), f.index, opts)
	if err != nil {
		return err
	}
	if res.Aborted {
		return fmt.Errorf("export of image %d cancelled", f.index)
	}
	if res.Raster == nil {
		return fmt.Errorf("image %d is an empty layer", f.index)
	}
	img, err := res.Image()
	if err != nil {
		return err
	}
	if img, err = exportutil.Scale(img, a.cfg.Export.Scale); err != nil {
		return err
	}

	output := f.output
	if output == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		output = fmt.Sprintf("%s-%d.%s", base, f.index, a.cfg.Export.Format)
	}
	if err := writeImageFile(output, img, a.cfg.Export.Format); err != nil {
		return err
	}

	logger.LogInfo("Exported image", map[string]interface{}{
		"index":  f.index,
		"output": output,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	})
	printWarnings(cmd.ErrOrStderr(), res.Warnings)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("wrote"), output)
	return nil
}

func writeImageFile(path string, img image.Image, format string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exportutil.WriteImage(out, img, format); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// parseRegion parses "x,y,width,height".
func parseRegion(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid region %q, expected x,y,width,height", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid region %q, width and height must be positive", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
