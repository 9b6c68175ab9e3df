package transform

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// ExtendFrames appends k zero-rotation, zero-position frames to every track
// and grows the frame count by k. All tracks grow together; existing rows
// are untouched.
func ExtendFrames(s *skeleton.Skeleton, k int) error {
	if k < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeFrames, k)
	}
	s.SetFrameCount(s.FrameCount() + k)
	return nil
}

// ConvertOrder re-expresses one joint's rotation track under a new Euler
// sequence: each frame's matrix is rebuilt from the current angles and
// re-extracted under the new sequence. The rotations themselves are
// unchanged up to floating-point precision; gimbal-locked frames may come
// back as a different but equivalent triple. For a leaf only the order
// label changes.
func ConvertOrder(s *skeleton.Skeleton, joint skeleton.Ref, order rotation.Order) error {
	if !order.Valid() {
		return fmt.Errorf("%w: %d", rotation.ErrInvalidOrder, int(order))
	}
	i, err := s.Resolve(joint)
	if err != nil {
		return err
	}
	j, _ := s.Joint(i)
	if j.Order == order {
		return nil
	}
	for f := range j.Track {
		m := rotation.EulerToMat(j.Track[f], j.Order)
		j.Track[f] = rotation.MatToEuler(m, order)
	}
	j.Order = order
	return nil
}

// ConvertOrderAll applies [ConvertOrder] to every joint.
func ConvertOrderAll(s *skeleton.Skeleton, order rotation.Order) error {
	for _, i := range s.Indices() {
		if err := ConvertOrder(s, skeleton.ByIndex(i), order); err != nil {
			return err
		}
	}
	return nil
}

// Scale multiplies every bone offset, the root's bind-pose offset and the
// root position track by factor. Rotations are invariant under uniform
// scaling and are untouched.
func Scale(s *skeleton.Skeleton, factor float64) error {
	if factor == 0 {
		return ErrZeroScale
	}
	for _, i := range s.Indices() {
		if i == s.Root() {
			continue
		}
		if err := s.SetOffset(i, s.Offset(i).Mul(factor)); err != nil {
			return err
		}
	}
	s.SetRootOffset(s.RootOffset().Mul(factor))
	pos := s.Positions()
	for f := range pos {
		floats.Scale(factor, pos[f][:])
	}
	return nil
}

// Zero resets the pose: every rotation track and the root position track
// become all zeros. Frame count, offsets and topology are preserved.
func Zero(s *skeleton.Skeleton) {
	for _, i := range s.Indices() {
		j, _ := s.Joint(i)
		for f := range j.Track {
			j.Track[f] = [3]float64{}
		}
	}
	pos := s.Positions()
	for f := range pos {
		pos[f] = [3]float64{}
	}
}
