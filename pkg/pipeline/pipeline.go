// Package pipeline orchestrates the full edit flow: parse a BVH file, apply
// an edit plan, and deliver the result to a file, a clip store, or both.
// Results are cached by content hash so repeated runs over unchanged inputs
// skip the parse and edit stages.
package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/cache"
	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/graphio"
	"github.com/boneforge/boneforge/pkg/observability"
	"github.com/boneforge/boneforge/pkg/plan"
	"github.com/boneforge/boneforge/pkg/skeleton"
	"github.com/boneforge/boneforge/pkg/store"
)

// Options configures a pipeline run.
type Options struct {
	// Input is the path of the BVH file to load.
	Input string

	// Output, when set, is where the edited BVH is written.
	Output string

	// PlanPath, when set, names a TOML edit plan to apply.
	PlanPath string

	// Cache stores edited results keyed by input and plan content. Nil
	// disables caching.
	Cache cache.Cache

	// Keyer derives cache keys. Defaults to cache.NewDefaultKeyer().
	Keyer cache.Keyer

	// TTL bounds the lifetime of cached results. Zero means no expiry.
	TTL time.Duration

	// Store, together with SaveAs, persists the result as a named clip.
	Store  store.Store
	SaveAs string

	// Logger receives progress output. Nil silences the pipeline.
	Logger *log.Logger
}

// Stats records per-stage timings and result shape.
type Stats struct {
	Joints    int           `json:"joints"`
	Frames    int           `json:"frames"`
	LoadTime  time.Duration `json:"loadTime"`
	EditTime  time.Duration `json:"editTime"`
	WriteTime time.Duration `json:"writeTime"`
}

// CacheInfo reports how the cache participated in a run.
type CacheInfo struct {
	Hit bool   `json:"hit"`
	Key string `json:"key"`
}

// Result is the outcome of a pipeline run.
type Result struct {
	RunID    string             `json:"runId"`
	Skeleton *skeleton.Skeleton `json:"-"`
	Stats    Stats              `json:"stats"`
	Cache    CacheInfo          `json:"cache"`
}

// Run executes the pipeline described by opts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	res := &Result{RunID: uuid.NewString()}

	for _, path := range []string{opts.Input, opts.Output, opts.PlanPath} {
		if path == "" {
			continue
		}
		if err := errors.ValidatePath(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", opts.Input)
	}
	sourceHash := cache.Hash(data)

	var (
		edits    *plan.Plan
		planHash string
	)
	if opts.PlanPath != "" {
		planData, err := os.ReadFile(opts.PlanPath)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", opts.PlanPath)
		}
		if edits, err = plan.Parse(planData); err != nil {
			return nil, err
		}
		planHash = cache.Hash(planData)
	}

	s, err := loadOrEdit(ctx, opts, res, logger, data, sourceHash, planHash, edits)
	if err != nil {
		return nil, err
	}
	res.Skeleton = s
	res.Stats.Joints = s.JointCount()
	res.Stats.Frames = s.FrameCount()

	if opts.Output != "" {
		start := time.Now()
		if err := bvh.WriteFile(opts.Output, s); err != nil {
			return nil, err
		}
		res.Stats.WriteTime = time.Since(start)
		logger.Info("wrote output", "path", opts.Output, "duration", res.Stats.WriteTime)
	}

	if opts.Store != nil && opts.SaveAs != "" {
		if err := save(ctx, opts.Store, opts.SaveAs, s); err != nil {
			return nil, err
		}
		logger.Info("saved clip", "name", opts.SaveAs)
	}

	return res, nil
}

// loadOrEdit produces the edited skeleton, from the cache when possible.
func loadOrEdit(ctx context.Context, opts Options, res *Result, logger *log.Logger, data []byte, sourceHash, planHash string, edits *plan.Plan) (*skeleton.Skeleton, error) {
	var key string
	if opts.Cache != nil {
		keyer := opts.Keyer
		if keyer == nil {
			keyer = cache.NewDefaultKeyer()
		}
		key = keyer.PipelineKey(sourceHash, planHash)
		res.Cache.Key = key

		cached, ok, err := opts.Cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache read failed", "err", err)
		} else if ok {
			s, err := bvh.Parse(bytes.NewReader(cached))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "pipeline")
				logger.Debug("cache hit", "key", key)
				res.Cache.Hit = true
				return s, nil
			}
			logger.Warn("discarding corrupt cache entry", "key", key, "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "pipeline")
	}

	start := time.Now()
	observability.Pipeline().OnParseStart(ctx, opts.Input)
	s, err := bvh.Parse(bytes.NewReader(data))
	res.Stats.LoadTime = time.Since(start)
	if err != nil {
		observability.Pipeline().OnParseComplete(ctx, opts.Input, 0, res.Stats.LoadTime, err)
		return nil, err
	}
	observability.Pipeline().OnParseComplete(ctx, opts.Input, s.JointCount(), res.Stats.LoadTime, nil)
	logger.Debug("parsed input", "joints", s.JointCount(), "frames", s.FrameCount(), "duration", res.Stats.LoadTime)

	if edits != nil {
		start = time.Now()
		observability.Pipeline().OnEditStart(ctx, len(edits.Ops), s.FrameCount())
		err = edits.Apply(s)
		res.Stats.EditTime = time.Since(start)
		observability.Pipeline().OnEditComplete(ctx, len(edits.Ops), res.Stats.EditTime, err)
		if err != nil {
			return nil, err
		}
		logger.Debug("applied plan", "ops", len(edits.Ops), "duration", res.Stats.EditTime)
	}

	if opts.Cache != nil {
		out, err := bvh.Marshal(s)
		if err != nil {
			return nil, err
		}
		if err := opts.Cache.Set(ctx, key, out, opts.TTL); err != nil {
			logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "pipeline", len(out))
		}
	}
	return s, nil
}

// save persists the skeleton as a named clip.
func save(ctx context.Context, st store.Store, name string, s *skeleton.Skeleton) error {
	clip, err := store.NewClip(name, graphio.FromSkeleton(s))
	if err != nil {
		return err
	}
	start := time.Now()
	if err := st.Put(ctx, clip); err != nil {
		observability.Store().OnStoreError(ctx, "put", name, err)
		return err
	}
	observability.Store().OnStoreOp(ctx, "put", name, time.Since(start))
	return nil
}
