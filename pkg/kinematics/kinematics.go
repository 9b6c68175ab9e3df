// Package kinematics evaluates world-space joint transforms for a posed
// skeleton. Each joint's world transform is its parent's transform followed
// by the bind-pose offset translation and the joint's local rotation at the
// frame.
package kinematics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/skeleton"
)

// Pose holds the world-space result of evaluating one frame.
type Pose struct {
	// Positions maps joint index to world position.
	Positions map[int]mgl64.Vec3
	// Orientations maps joint index to accumulated world rotation.
	Orientations map[int]mgl64.Quat
}

// Evaluate computes world positions and orientations for every joint at
// frame f.
func Evaluate(s *skeleton.Skeleton, f int) (*Pose, error) {
	if f < 0 || f >= s.FrameCount() {
		return nil, fmt.Errorf("%w: %d of %d", skeleton.ErrFrameRange, f, s.FrameCount())
	}
	pose := &Pose{
		Positions:    make(map[int]mgl64.Vec3, s.JointCount()),
		Orientations: make(map[int]mgl64.Quat, s.JointCount()),
	}

	rootPos, err := s.PositionAt(f)
	if err != nil {
		return nil, err
	}
	rootRot, err := s.RotationAt(s.Root(), f)
	if err != nil {
		return nil, err
	}
	pose.Positions[s.Root()] = s.RootOffset().Add(rootPos)
	pose.Orientations[s.Root()] = rootRot

	var walk func(parent int) error
	walk = func(parent int) error {
		pp := pose.Positions[parent]
		pq := pose.Orientations[parent]
		for _, c := range s.Children(parent) {
			q, err := s.RotationAt(c, f)
			if err != nil {
				return err
			}
			pose.Positions[c] = pp.Add(pq.Rotate(s.Offset(c)))
			pose.Orientations[c] = pq.Mul(q)
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(s.Root()); err != nil {
		return nil, err
	}
	return pose, nil
}

// WorldPosition computes the world position of a single joint at frame f.
func WorldPosition(s *skeleton.Skeleton, joint, f int) (mgl64.Vec3, error) {
	pose, err := Evaluate(s, f)
	if err != nil {
		return mgl64.Vec3{}, err
	}
	p, ok := pose.Positions[joint]
	if !ok {
		return mgl64.Vec3{}, fmt.Errorf("%w: #%d", skeleton.ErrNotFound, joint)
	}
	return p, nil
}

// Trajectory computes the world position of one joint across all frames.
func Trajectory(s *skeleton.Skeleton, joint int) ([]mgl64.Vec3, error) {
	out := make([]mgl64.Vec3, s.FrameCount())
	for f := range out {
		p, err := WorldPosition(s, joint, f)
		if err != nil {
			return nil, err
		}
		out[f] = p
	}
	return out, nil
}
