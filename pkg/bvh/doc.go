// Package bvh reads and writes skeletons in the Biovision Hierarchy text
// format.
//
// The HIERARCHY section maps onto the skeleton model directly: ROOT/JOINT
// blocks become joints, OFFSET lines become bone offsets, the rotation
// channel order becomes the joint's Euler sequence and End Site blocks
// become leaf joints named after their parent with an "_end" suffix. The
// MOTION section fills the root position track and the per-joint rotation
// tracks, one row per frame in channel declaration order.
package bvh
