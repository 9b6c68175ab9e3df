package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// newInfoCmd creates the info command, which summarizes a BVH file.
func newInfoCmd() *cobra.Command {
	var showJoints bool

	cmd := &cobra.Command{
		Use:   "info <file.bvh>",
		Short: "Summarize a BVH file's hierarchy and motion",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			s, err := bvh.ParseFile(args[0])
			if err != nil {
				return err
			}

			rotating, leaves := 0, 0
			for _, i := range s.Indices() {
				if s.IsLeaf(i) {
					leaves++
				} else {
					rotating++
				}
			}

			rootJoint, _ := s.Joint(s.Root())
			printKeyValue("File", args[0])
			printKeyValue("Root", rootJoint.Name)
			printKeyValue("Joints", fmt.Sprintf("%d (%d rotating, %d end sites)", s.JointCount(), rotating, leaves))
			printKeyValue("Frames", fmt.Sprintf("%d", s.FrameCount()))
			printKeyValue("Frame time", fmt.Sprintf("%gs (%.1f fps)", s.FrameTime(), 1/s.FrameTime()))
			printKeyValue("Duration", fmt.Sprintf("%.2fs", float64(s.FrameCount())*s.FrameTime()))

			if showJoints {
				fmt.Println()
				printJointTable(s)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showJoints, "joints", false, "list every joint with its rotation order and offset")
	return cmd
}

// printJointTable lists joints sorted by name with order and offset.
func printJointTable(s *skeleton.Skeleton) {
	indices := s.Indices()
	sort.Slice(indices, func(a, b int) bool {
		ja, _ := s.Joint(indices[a])
		jb, _ := s.Joint(indices[b])
		return ja.Name < jb.Name
	})
	for _, i := range indices {
		j, _ := s.Joint(i)
		order := j.Order.String()
		if s.IsLeaf(i) {
			order = "-"
		}
		off := s.RootOffset()
		if i != s.Root() {
			off = s.Offset(i)
		}
		printDetail("%-24s %-4s (%g, %g, %g)", j.Name, order, off.X(), off.Y(), off.Z())
	}
}
