package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/layervault/psd"
	"github.com/spf13/cobra"
)

func (a *app) layersCommand() *cobra.Command {
	var structured bool
	cmd := &cobra.Command{
		Use:   "layers FILE",
		Short: "Print the layer tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer doc.Close()

			tree, err := doc.Tree()
			if err != nil {
				return err
			}
			if structured {
				return writeStructured(cmd.OutOrStdout(), tree.ToMap(), a.cfg.Metadata.Format)
			}
			for _, child := range tree.Children {
				printNode(cmd.OutOrStdout(), child, 0)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&structured, "structured", false, "write the tree in the metadata format")
	return cmd
}

func printNode(w io.Writer, n *psd.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	name := n.Name
	if n.Type == psd.NodeTypeGroup {
		name = cyan(name + "/")
	}
	line := fmt.Sprintf("%s%s  [%d,%d %dx%d] %s %.0f%%", indent, name, n.Left, n.Top, n.Width(), n.Height(),
		n.BlendMode, float64(n.Opacity)/2.55)
	if n.Layer != nil {
		line = fmt.Sprintf("%s #%d", line, n.Layer.Index)
	}
	if !n.Visible {
		line = faint(line + " (hidden)")
	}
	fmt.Fprintln(w, line)

	for _, child := range n.Children {
		printNode(w, child, depth+1)
	}
}
