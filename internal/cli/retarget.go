package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/skeleton/transform"
)

// retargetOpts holds the command-line flags for the retarget command.
type retargetOpts struct {
	output     string   // output BVH path
	offsets    bool     // replace bone proportions instead of projecting motion
	compensate bool     // inject compensating rotations on offset replacement
	exclude    []string // joints exempt from offset replacement
}

// newRetargetCmd creates the retarget command. By default it projects the
// donor's motion onto the target hierarchy; with --offsets it instead adopts
// the donor's bone proportions while keeping the target's motion.
func newRetargetCmd() *cobra.Command {
	var opts retargetOpts

	cmd := &cobra.Command{
		Use:   "retarget <target.bvh> <donor.bvh>",
		Short: "Project motion or bone proportions from a donor file",
		Long: `Project motion or bone proportions from a donor file onto a target rig.

Joints are matched by name; donor joints with no counterpart in the target
are skipped and reported.

Examples:
  boneforge retarget rig.bvh walk.bvh -o rig-walk.bvh
  boneforge retarget rig.bvh scan.bvh --offsets --compensate -o resized.bvh
  boneforge retarget rig.bvh scan.bvh --offsets --exclude Hips,Spine -o out.bvh`,
		Args: cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			logger := loggerFromContext(c.Context())

			target, err := bvh.ParseFile(args[0])
			if err != nil {
				return err
			}
			donor, err := bvh.ParseFile(args[1])
			if err != nil {
				return err
			}

			prog := newProgress(logger)
			var report *transform.Report
			if opts.offsets {
				var topts []transform.RetargetOption
				if len(opts.exclude) > 0 {
					topts = append(topts, transform.WithExclude(opts.exclude...))
				}
				if opts.compensate {
					topts = append(topts, transform.WithCompensation())
				}
				report, err = transform.ReplaceOffsetsAll(target, donor, topts...)
			} else {
				report, err = transform.Project(target, donor)
			}
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Matched %d joints", len(report.Matched)))

			if len(report.Skipped) > 0 {
				printWarning("Skipped %d unmatched donor joints", len(report.Skipped))
				printDetail("%s", strings.Join(report.Skipped, ", "))
			}

			if opts.output != "" {
				if err := bvh.WriteFile(opts.output, target); err != nil {
					return err
				}
				printFile(opts.output)
			}
			printStats(target.JointCount(), target.FrameCount(), false)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output BVH file")
	cmd.Flags().BoolVar(&opts.offsets, "offsets", false, "adopt the donor's bone proportions instead of its motion")
	cmd.Flags().BoolVar(&opts.compensate, "compensate", false, "inject compensating rotations when replacing offsets")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "joints exempt from offset replacement")

	return cmd
}
