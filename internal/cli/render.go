package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string
	format   string // "dot" or "svg"
	maxDepth int
}

// newRenderCmd creates the render command, which draws a hierarchy diagram.
func newRenderCmd() *cobra.Command {
	opts := renderOpts{format: "svg"}

	cmd := &cobra.Command{
		Use:   "render <file.bvh>",
		Short: "Generate a DOT or SVG hierarchy diagram",
		Long: `Generate a DOT or SVG diagram of a BVH file's joint hierarchy.

Examples:
  boneforge render walk.bvh -o walk.svg
  boneforge render walk.bvh --format dot
  boneforge render walk.bvh -o top.svg --max-depth 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			s, err := bvh.ParseFile(args[0])
			if err != nil {
				return err
			}

			var ropts []render.Option
			if opts.maxDepth > 0 {
				ropts = append(ropts, render.WithMaxDepth(opts.maxDepth))
			}

			var data []byte
			switch opts.format {
			case "dot":
				data = []byte(render.ToDOT(s, ropts...))
			case "svg":
				spin := newSpinner(c.Context(), "Rendering hierarchy...")
				spin.Start()
				data, err = render.RenderSVG(c.Context(), s, ropts...)
				spin.Stop()
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (want dot or svg)", opts.format)
			}

			if opts.output == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(opts.output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Rendered %d joints", s.JointCount())
			printFile(opts.output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot or svg")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", 0, "limit drawn joint levels (0 = unlimited)")

	return cmd
}
