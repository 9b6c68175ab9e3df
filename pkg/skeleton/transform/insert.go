package transform

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/skeleton"
)

var (
	// ErrInvalidFraction is returned by [InsertOnBone] when the split
	// fraction lies outside the open interval (0, 1).
	ErrInvalidFraction = errors.New("split fraction must lie in (0, 1)")

	// ErrZeroScale is returned by [Scale] for a zero factor.
	ErrZeroScale = errors.New("scale factor must be non-zero")

	// ErrNegativeFrames is returned by [ExtendFrames] for a negative count.
	ErrNegativeFrames = errors.New("frame extension must be non-negative")
)

// InsertOnBone splits the bone leading into child at fraction t, inserting a
// new joint between the child and its parent. The new joint copies the
// parent's rotation order and starts with a zero rotation track, so no
// compensation is needed: the bone stays a straight line and every world
// position is unchanged at every frame.
//
// The parent keeps t of the original offset, the child keeps the rest.
// Returns the new joint's index.
func InsertOnBone(s *skeleton.Skeleton, child skeleton.Ref, name string, t float64) (int, error) {
	if t <= 0 || t >= 1 {
		return 0, fmt.Errorf("%w: %g", ErrInvalidFraction, t)
	}
	c, err := s.Resolve(child)
	if err != nil {
		return 0, err
	}
	p, ok := s.Parent(c)
	if !ok {
		return 0, fmt.Errorf("%w: %s has no incoming bone", skeleton.ErrInvalidTopology, child)
	}
	pj, _ := s.Joint(p)
	off := s.Offset(c)

	n, err := s.AddJoint(skeleton.ByIndex(p), name, pj.Order, off.Mul(t))
	if err != nil {
		return 0, err
	}
	if err := s.Reparent(c, n, off.Mul(1-t)); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertChild adds a new joint under parent with the given offset and moves
// the listed existing children of parent underneath it. Each moved child n
// keeps its bind-pose world position: its new offset is offset(parent,n)
// minus the new joint's offset. The new joint copies the parent's rotation
// order and starts with a zero rotation track, so no compensation is needed.
//
// Returns the new joint's index. The reparent list may be empty, in which
// case the new joint is a plain end site.
func InsertChild(s *skeleton.Skeleton, parent skeleton.Ref, name string, offset mgl64.Vec3, reparent []skeleton.Ref) (int, error) {
	p, err := s.Resolve(parent)
	if err != nil {
		return 0, err
	}

	// Resolve the whole move list before touching anything.
	moved := make([]int, 0, len(reparent))
	for _, r := range reparent {
		i, err := s.Resolve(r)
		if err != nil {
			return 0, err
		}
		if got, ok := s.Parent(i); !ok || got != p {
			return 0, fmt.Errorf("%w: %s is not a child of %s", skeleton.ErrInvalidTopology, r, parent)
		}
		if slices.Contains(moved, i) {
			return 0, fmt.Errorf("%w: %s listed twice", skeleton.ErrInvalidTopology, r)
		}
		moved = append(moved, i)
	}

	pj, _ := s.Joint(p)
	n, err := s.AddJoint(skeleton.ByIndex(p), name, pj.Order, offset)
	if err != nil {
		return 0, err
	}
	for _, i := range moved {
		if err := s.Reparent(i, n, s.Offset(i).Sub(offset)); err != nil {
			return 0, err
		}
	}
	return n, nil
}
