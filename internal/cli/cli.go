// Package cli implements the boneforge command-line interface.
//
// This package provides commands for inspecting BVH files, applying edit
// plans, retargeting motion between rigs, rendering hierarchy diagrams, and
// managing the clip store. The CLI is built using cobra and supports verbose
// logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - info: Summarize a BVH file's hierarchy and motion
//   - edit: Apply a TOML edit plan to a BVH file
//   - retarget: Project motion or bone proportions from a donor file
//   - render: Generate DOT or SVG hierarchy diagrams
//   - tree: Browse a hierarchy interactively
//   - clips: Manage the clip store
//   - cache: Manage the local result cache
//   - serve: Run the HTTP API
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/buildinfo"
)

// Execute runs the boneforge CLI and returns an error if any command fails.
//
// Logging:
//   - Default: info level (logs to stderr)
//   - With --verbose (-v): debug level
//
// The logger is attached to the context and accessible to all commands via
// loggerFromContext.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:          "boneforge",
		Short:        "Boneforge edits BVH skeletal animation files",
		Long:         `Boneforge is a CLI tool for restructuring BVH skeletal hierarchies: inserting and removing joints with motion-preserving compensation, converting rotation orders, and retargeting motion between rigs.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			ctx := withLogger(cmd.Context(), newLogger(os.Stderr, level))
			cmd.SetContext(ctx)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newInfoCmd())
	root.AddCommand(newEditCmd())
	root.AddCommand(newRetargetCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newTreeCmd())
	root.AddCommand(newClipsCmd())
	root.AddCommand(newCacheCmd())
	root.AddCommand(newServeCmd())

	return root.ExecuteContext(ctx)
}
