package transform

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// zeroTol classifies an offset as having no usable direction.
const zeroTol = 1e-12

// RemoveOption configures [Remove] and [RemoveAll].
type RemoveOption func(*removeConfig)

type removeConfig struct {
	primary      *skeleton.Ref
	fallbackAxis *mgl64.Vec3
}

// WithPrimaryChild selects which child of the removed joint is the primary
// branch, the one whose motion the compensating rotation matches exactly.
// The default is the first child in insertion order.
func WithPrimaryChild(r skeleton.Ref) RemoveOption {
	return func(c *removeConfig) { c.primary = &r }
}

// WithFallbackAxis supplies the flip axis used when a compensating rotation
// is degenerate (the combined and virtual offsets are antiparallel).
// Without it such a frame fails with [rotation.ErrDegenerateRotation].
func WithFallbackAxis(axis mgl64.Vec3) RemoveOption {
	return func(c *removeConfig) { c.fallbackAxis = &axis }
}

// Remove deletes an interior joint and closes the kinematic gap: the
// removed joint's children are re-parented onto its parent with combined
// offsets, and compensating rotations are injected per frame so the
// remaining joints keep their world-space motion.
//
// With v between parent p and primary child c, the combined bone carries
// offset(p,v)+offset(v,c). Per frame, a compensating rotation B aims that
// bone at the direction the two-bone chain actually produced; p's rotation
// becomes R_p·R_v·B, v's former children absorb B⁻¹ and p's surviving
// children absorb (R_v·B)⁻¹ so the injected rotation does not drift into
// their subtrees. The match is exact for a straight chain whose removed
// joint carries no rotation; for rotated or branching joints the primary
// child's bone direction is matched exactly and sibling branches take a
// best-effort correction.
//
// Removing a leaf just deletes it (the parent becomes an end site if it was
// the last child). Removing the root is [skeleton.ErrInvalidTopology].
// All per-frame corrections are computed before any mutation, so an error
// leaves the skeleton unchanged.
func Remove(s *skeleton.Skeleton, joint skeleton.Ref, opts ...RemoveOption) error {
	var cfg removeConfig
	for _, o := range opts {
		o(&cfg)
	}

	v, err := s.Resolve(joint)
	if err != nil {
		return err
	}
	if v == s.Root() {
		return fmt.Errorf("%w: cannot remove the root", skeleton.ErrInvalidTopology)
	}
	if s.IsLeaf(v) {
		return s.RemoveJoint(v)
	}

	p, _ := s.Parent(v)
	kids := slices.Clone(s.Children(v))

	c := kids[0]
	if cfg.primary != nil {
		c, err = s.Resolve(*cfg.primary)
		if err != nil {
			return err
		}
		if !slices.Contains(kids, c) {
			return fmt.Errorf("%w: %s is not a child of %s",
				skeleton.ErrInvalidTopology, cfg.primary, joint)
		}
	}

	offV := s.Offset(v)
	offC := s.Offset(c)
	total := offV.Add(offC)

	// Precompute every corrected track so the edit is all-or-nothing.
	frames := s.FrameCount()
	newParent := make([][3]float64, frames)
	corrected := map[int][][3]float64{}
	track := func(i int) [][3]float64 {
		if corrected[i] == nil {
			corrected[i] = make([][3]float64, frames)
		}
		return corrected[i]
	}

	for f := 0; f < frames; f++ {
		rv, err := s.RotationAt(v, f)
		if err != nil {
			return err
		}
		virtual := rv.Inverse().Rotate(offV).Add(offC)

		b, err := aim(total, virtual, cfg.fallbackAxis)
		if err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}

		rp, err := s.RotationAt(p, f)
		if err != nil {
			return err
		}
		pj, _ := s.Joint(p)
		newParent[f] = rotation.QuatToEuler(rp.Mul(rv).Mul(b), pj.Order)

		bInv := b.Inverse()
		for _, w := range kids {
			if s.IsLeaf(w) {
				continue
			}
			rw, err := s.RotationAt(w, f)
			if err != nil {
				return err
			}
			wj, _ := s.Joint(w)
			track(w)[f] = rotation.QuatToEuler(bInv.Mul(rw), wj.Order)
		}

		rvbInv := rv.Mul(b).Inverse()
		for _, w := range s.Children(p) {
			if w == v || s.IsLeaf(w) {
				continue
			}
			rw, err := s.RotationAt(w, f)
			if err != nil {
				return err
			}
			wj, _ := s.Joint(w)
			track(w)[f] = rotation.QuatToEuler(rvbInv.Mul(rw), wj.Order)
		}
	}

	for _, w := range kids {
		if err := s.Reparent(w, p, offV.Add(s.Offset(w))); err != nil {
			return err
		}
	}
	if err := s.RemoveJoint(v); err != nil {
		return err
	}

	pj, _ := s.Joint(p)
	pj.Track = newParent
	for i, rows := range corrected {
		j, ok := s.Joint(i)
		if !ok {
			continue
		}
		j.Track = rows
	}
	return nil
}

// aim returns the minimal rotation mapping from onto the direction of to.
// Offsets without a usable direction leave the frame uncompensated.
func aim(from, to mgl64.Vec3, fallback *mgl64.Vec3) (mgl64.Quat, error) {
	if from.Len() < zeroTol || to.Len() < zeroTol {
		return mgl64.QuatIdent(), nil
	}
	q, err := rotation.Between(from, to)
	if err == nil {
		return q, nil
	}
	if errors.Is(err, rotation.ErrDegenerateRotation) && fallback != nil {
		return rotation.BetweenAxis(from, to, *fallback)
	}
	return mgl64.QuatIdent(), err
}

// RemoveAll removes the named joints in order. Each name is resolved
// against the current state of the skeleton, so earlier removals may change
// what a later name's removal compensates for. Stops at the first failure;
// joints removed so far stay removed.
func RemoveAll(s *skeleton.Skeleton, names []string, opts ...RemoveOption) error {
	for _, name := range names {
		if err := Remove(s, skeleton.ByName(name), opts...); err != nil {
			return fmt.Errorf("remove %q: %w", name, err)
		}
	}
	return nil
}

// Rename applies a set of old-to-new name pairs atomically. Swaps and
// rotations among the pairs are allowed. Fails with [skeleton.ErrNotFound]
// if any old name does not resolve and [skeleton.ErrDuplicateName] if the
// resulting name set would collide, in both cases without renaming anything.
func Rename(s *skeleton.Skeleton, mapping map[string]string) error {
	olds := make([]string, 0, len(mapping))
	for old := range mapping {
		olds = append(olds, old)
	}
	slices.Sort(olds)

	// Dry-run against the final name set.
	final := map[string]bool{}
	for _, i := range s.Indices() {
		j, _ := s.Joint(i)
		final[j.Name] = true
	}
	indices := make(map[string]int, len(olds))
	for _, old := range olds {
		i, err := s.Lookup(old)
		if err != nil {
			return err
		}
		indices[old] = i
		delete(final, old)
	}
	for _, old := range olds {
		new := mapping[old]
		if new == "" {
			return skeleton.ErrInvalidName
		}
		if final[new] {
			return fmt.Errorf("%w: %q", skeleton.ErrDuplicateName, new)
		}
		final[new] = true
	}

	// Two phases so pairs may exchange names.
	for _, old := range olds {
		if err := s.Rename(old, "\x00"+strconv.Itoa(indices[old])); err != nil {
			return err
		}
	}
	for _, old := range olds {
		if err := s.Rename("\x00"+strconv.Itoa(indices[old]), mapping[old]); err != nil {
			return err
		}
	}
	return nil
}
