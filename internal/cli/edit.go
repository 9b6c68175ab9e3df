package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/cache"
	"github.com/boneforge/boneforge/pkg/pipeline"
)

// editOpts holds the command-line flags for the edit command.
type editOpts struct {
	plan    string // edit plan path
	output  string // output BVH path
	saveAs  string // clip name to store the result under
	noCache bool   // bypass the result cache
	ttl     time.Duration
}

// newEditCmd creates the edit command, which runs a TOML edit plan against a
// BVH file through the pipeline. Results are cached under the user cache
// directory keyed by the input and plan content.
func newEditCmd() *cobra.Command {
	opts := editOpts{ttl: 24 * time.Hour}

	cmd := &cobra.Command{
		Use:   "edit <file.bvh>",
		Short: "Apply a TOML edit plan to a BVH file",
		Long: `Apply a TOML edit plan to a BVH file.

Examples:
  boneforge edit walk.bvh --plan trim.toml -o out.bvh
  boneforge edit walk.bvh --plan trim.toml --save walk-trimmed
  boneforge edit walk.bvh --plan trim.toml -o out.bvh --no-cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			logger := loggerFromContext(c.Context())

			resultCache := cache.NewNullCache()
			if !opts.noCache {
				dir, err := cacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				if resultCache, err = cache.NewFileCache(dir); err != nil {
					return fmt.Errorf("open cache: %w", err)
				}
			}
			defer resultCache.Close()

			var clips *storeHandle
			if opts.saveAs != "" {
				var err error
				if clips, err = openStore(c.Context(), c.Flags()); err != nil {
					return err
				}
				defer clips.close()
			}

			prog := newProgress(logger)
			runOpts := pipeline.Options{
				Input:    args[0],
				Output:   opts.output,
				PlanPath: opts.plan,
				Cache:    resultCache,
				TTL:      opts.ttl,
				SaveAs:   opts.saveAs,
				Logger:   logger,
			}
			if clips != nil {
				runOpts.Store = clips.store
			}
			res, err := pipeline.Run(c.Context(), runOpts)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Edited %s", filepath.Base(args[0])))

			printStats(res.Stats.Joints, res.Stats.Frames, res.Cache.Hit)
			if opts.output != "" {
				printFile(opts.output)
			}
			if opts.saveAs != "" {
				printDetail("Saved as clip %q", opts.saveAs)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.plan, "plan", "p", "", "TOML edit plan to apply")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output BVH file (omit to skip writing)")
	cmd.Flags().StringVar(&opts.saveAs, "save", "", "store the result as a named clip")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the result cache")
	cmd.Flags().DurationVar(&opts.ttl, "cache-ttl", opts.ttl, "lifetime of cached results")
	addStoreFlags(cmd)

	return cmd
}

// cacheDir returns the boneforge cache directory, creating it if needed.
func cacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "boneforge")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
