package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/api"
	"github.com/boneforge/boneforge/pkg/cache"
	"github.com/boneforge/boneforge/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr     string
	mongoURI string
	db       string
	redisURL string
	memory   bool // in-memory store, for local experiments
}

// newServeCmd creates the serve command, which runs the HTTP API.
func newServeCmd() *cobra.Command {
	opts := serveOpts{
		addr:     ":8080",
		mongoURI: "mongodb://localhost:27017",
		db:       "boneforge",
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the clip API server",
		Long: `Run the HTTP API over the clip store.

Clips persist to MongoDB unless --memory is set. Rendered artifacts are
cached in Redis when --redis-url is given, otherwise in the local file cache.

Examples:
  boneforge serve
  boneforge serve --addr :9000 --redis-url redis://localhost:6379/0
  boneforge serve --memory`,
		RunE: func(c *cobra.Command, args []string) error {
			logger := loggerFromContext(c.Context())

			var clips store.Store
			if opts.memory {
				clips = store.NewMemoryStore()
			} else {
				var err error
				if clips, err = store.NewMongoStore(c.Context(), opts.mongoURI, opts.db); err != nil {
					return err
				}
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = clips.Close(ctx)
			}()

			var renderCache cache.Cache
			var err error
			if opts.redisURL != "" {
				renderCache, err = cache.NewRedisCache(c.Context(), opts.redisURL)
			} else {
				var dir string
				if dir, err = cacheDir(); err == nil {
					renderCache, err = cache.NewFileCache(dir)
				}
			}
			if err != nil {
				return err
			}
			defer renderCache.Close()

			srv := &http.Server{
				Addr:              opts.addr,
				Handler:           api.NewServer(clips, api.WithCache(renderCache, cache.NewDefaultKeyer()), api.WithLogger(logger)).Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("listening", "addr", opts.addr)

			select {
			case err := <-errCh:
				return err
			case <-c.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("shut down")
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", opts.mongoURI, "MongoDB connection string for the clip store")
	cmd.Flags().StringVar(&opts.db, "db", opts.db, "MongoDB database name")
	cmd.Flags().StringVar(&opts.redisURL, "redis-url", "", "Redis URL for the render cache")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "use an in-memory clip store")

	return cmd
}
