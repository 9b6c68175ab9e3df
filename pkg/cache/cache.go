// Package cache provides caching for parsed skeletons and pipeline results.
//
// Two layers cooperate: a Cache stores opaque bytes under string keys with
// optional expiry, and a Keyer derives deterministic keys from skeleton
// content hashes so identical inputs hit the same entry. Backends exist for
// local files (CLI usage), Redis (server usage) and a null cache for tests
// and --no-cache runs.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional TTL.
type Cache interface {
	// Get retrieves a value. The second result reports whether the key was
	// present; an absent key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// RenderKeyOpts captures the options that change a rendered artifact.
type RenderKeyOpts struct {
	Format   string // "dot" or "svg"
	MaxDepth int    // 0 means unlimited
}

// Keyer derives cache keys from skeleton and plan content.
type Keyer interface {
	// SkeletonKey keys a parsed skeleton document by the hash of its
	// source text.
	SkeletonKey(sourceHash string) string

	// PipelineKey keys an edited skeleton by its input hash and the hash
	// of the edit plan applied to it.
	PipelineKey(sourceHash, planHash string) string

	// RenderKey keys a rendered hierarchy artifact.
	RenderKey(sourceHash string, opts RenderKeyOpts) string
}

// DefaultKeyer generates unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// SkeletonKey generates a key for a parsed skeleton document.
func (k *DefaultKeyer) SkeletonKey(sourceHash string) string {
	return hashKey("skeleton", sourceHash)
}

// PipelineKey generates a key for a pipeline result.
func (k *DefaultKeyer) PipelineKey(sourceHash, planHash string) string {
	return hashKey("pipeline", sourceHash, planHash)
}

// RenderKey generates a key for a rendered artifact.
func (k *DefaultKeyer) RenderKey(sourceHash string, opts RenderKeyOpts) string {
	return hashKey("render", sourceHash, opts)
}
