package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/graphio"
	"github.com/boneforge/boneforge/pkg/store"
)

// addStoreFlags registers the clip store connection flags.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string for the clip store")
	cmd.Flags().String("db", "boneforge", "MongoDB database name")
}

// storeHandle pairs a store with its shutdown context.
type storeHandle struct {
	store store.Store
	ctx   context.Context
}

func (h *storeHandle) close() {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()
	_ = h.store.Close(ctx)
}

// openStore connects to the clip store named by the command's flags.
func openStore(ctx context.Context, flags *pflag.FlagSet) (*storeHandle, error) {
	uri, _ := flags.GetString("mongo-uri")
	db, _ := flags.GetString("db")
	st, err := store.NewMongoStore(ctx, uri, db)
	if err != nil {
		return nil, err
	}
	return &storeHandle{store: st, ctx: context.WithoutCancel(ctx)}, nil
}

// newClipsCmd creates the clips command group for the store.
func newClipsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clips",
		Short: "Manage the clip store",
	}

	cmd.PersistentFlags().String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string for the clip store")
	cmd.PersistentFlags().String("db", "boneforge", "MongoDB database name")

	cmd.AddCommand(newClipsListCmd())
	cmd.AddCommand(newClipsPutCmd())
	cmd.AddCommand(newClipsGetCmd())
	cmd.AddCommand(newClipsDeleteCmd())

	return cmd
}

func newClipsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored clips",
		RunE: func(c *cobra.Command, args []string) error {
			h, err := openStore(c.Context(), c.Flags())
			if err != nil {
				return err
			}
			defer h.close()

			infos, err := h.store.List(c.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				printInfo("Store is empty")
				return nil
			}
			for _, info := range infos {
				printDetail("%-24s %4d joints  %6d frames  %s",
					info.Name, info.Joints, info.Frames, info.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newClipsPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <name> <file.bvh>",
		Short: "Store a BVH file as a named clip",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			s, err := bvh.ParseFile(args[1])
			if err != nil {
				return err
			}
			clip, err := store.NewClip(args[0], graphio.FromSkeleton(s))
			if err != nil {
				return err
			}

			h, err := openStore(c.Context(), c.Flags())
			if err != nil {
				return err
			}
			defer h.close()

			if err := h.store.Put(c.Context(), clip); err != nil {
				return err
			}
			printSuccess("Stored clip %q", clip.Name)
			printStats(s.JointCount(), s.FrameCount(), false)
			return nil
		},
	}
}

func newClipsGetCmd() *cobra.Command {
	var output string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Fetch a clip as BVH or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			h, err := openStore(c.Context(), c.Flags())
			if err != nil {
				return err
			}
			defer h.close()

			clip, err := h.store.Get(c.Context(), args[0])
			if err != nil {
				return err
			}

			var data []byte
			if asJSON {
				if data, err = json.MarshalIndent(clip.Document, "", "  "); err != nil {
					return err
				}
				data = append(data, '\n')
			} else {
				s, err := clip.Document.ToSkeleton()
				if err != nil {
					return err
				}
				if data, err = bvh.Marshal(s); err != nil {
					return err
				}
			}

			if output == "" {
				fmt.Print(string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the stored document as JSON instead of BVH")
	return cmd
}

func newClipsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			h, err := openStore(c.Context(), c.Flags())
			if err != nil {
				return err
			}
			defer h.close()

			if err := h.store.Delete(c.Context(), args[0]); err != nil {
				return err
			}
			printSuccess("Deleted clip %q", args[0])
			return nil
		},
	}
}
