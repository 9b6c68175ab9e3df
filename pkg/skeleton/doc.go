// Package skeleton models an articulated joint hierarchy with fixed-length
// bones, per-joint Euler rotation tracks and a root translation track.
//
// The model is a rooted tree: each non-root joint hangs off its parent by a
// bind-pose offset vector, and each non-leaf joint rotates its subtree by a
// per-frame Euler angle triple. Leaf joints are end sites - terminal markers
// with no rotation data. Joints live in an arena and are addressed by stable
// indices or by unique names; see [Ref].
//
// This package provides the model and local primitives only. Animation-aware
// structural edits that keep world-space motion consistent (inserting or
// removing joints mid-chain, retargeting, offset replacement) live in the
// transform subpackage.
package skeleton
