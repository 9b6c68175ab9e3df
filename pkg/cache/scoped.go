package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// Useful when several projects or users share one Redis instance and need
// separate cache namespaces.
//
// Example usage:
//
//	// Project-specific keys
//	projKeyer := NewScopedKeyer(NewDefaultKeyer(), "proj:retarget01:")
//
//	// Global keys
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SkeletonKey generates a prefixed key for a parsed skeleton document.
func (k *ScopedKeyer) SkeletonKey(sourceHash string) string {
	return k.prefix + k.inner.SkeletonKey(sourceHash)
}

// PipelineKey generates a prefixed key for a pipeline result.
func (k *ScopedKeyer) PipelineKey(sourceHash, planHash string) string {
	return k.prefix + k.inner.PipelineKey(sourceHash, planHash)
}

// RenderKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) RenderKey(sourceHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(sourceHash, opts)
}
