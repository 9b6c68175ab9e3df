package transform

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// Report lists which joints a cross-skeleton operation touched and which it
// skipped because no counterpart matched by name.
type Report struct {
	Matched []string
	Skipped []string
}

// RetargetOption configures [Project], [ReplaceOffset] and
// [ReplaceOffsetsAll].
type RetargetOption func(*retargetConfig)

type retargetConfig struct {
	align        mgl64.Mat3
	compensate   bool
	exclude      map[string]bool
	fallbackAxis *mgl64.Vec3
}

// WithAlignment supplies the global change-of-basis rotation T applied when
// the two skeletons' world axes differ: projected rotations become
// T·R·T⁻¹ and transferred vectors are multiplied by T. Defaults to the
// identity.
func WithAlignment(t mgl64.Mat3) RetargetOption {
	return func(c *retargetConfig) { c.align = t }
}

// WithCompensation makes offset replacement inject a compensating rotation
// at the parent per frame, so the child keeps its world position and the
// parent's other branches absorb the inverse correction.
func WithCompensation() RetargetOption {
	return func(c *retargetConfig) { c.compensate = true }
}

// WithExclude lists joint names that [ReplaceOffsetsAll] must leave alone.
func WithExclude(names ...string) RetargetOption {
	return func(c *retargetConfig) {
		if c.exclude == nil {
			c.exclude = map[string]bool{}
		}
		for _, n := range names {
			c.exclude[n] = true
		}
	}
}

// WithRetargetFallbackAxis supplies the flip axis for degenerate
// compensating rotations, like [WithFallbackAxis] does for removal.
func WithRetargetFallbackAxis(axis mgl64.Vec3) RetargetOption {
	return func(c *retargetConfig) { c.fallbackAxis = &axis }
}

func newRetargetConfig(opts []RetargetOption) retargetConfig {
	cfg := retargetConfig{align: mgl64.Ident3()}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Project copies the donor's motion onto the target by joint name: for
// every rotating donor joint with a same-named rotating counterpart, the
// per-frame rotation T·R·T⁻¹ is stored under the counterpart's own Euler
// sequence. The target is resized to the donor's frame count, its frame
// time is copied from the donor, and the root position track is transferred
// through T.
//
// Donor joints without a usable counterpart are skipped and listed in the
// report, they are not errors.
func Project(target, donor *skeleton.Skeleton, opts ...RetargetOption) (*Report, error) {
	cfg := newRetargetConfig(opts)
	alignInv := cfg.align.Inv()
	report := &Report{}

	target.SetFrameCount(donor.FrameCount())
	target.SetFrameTime(donor.FrameTime())

	for _, di := range donor.Indices() {
		dj, _ := donor.Joint(di)
		if dj.Track == nil {
			continue
		}
		ti, err := target.Lookup(dj.Name)
		if err != nil {
			report.Skipped = append(report.Skipped, dj.Name)
			continue
		}
		tj, _ := target.Joint(ti)
		if tj.Track == nil {
			// Counterpart is an end site and cannot hold rotations.
			report.Skipped = append(report.Skipped, dj.Name)
			continue
		}
		for f := range dj.Track {
			m := rotation.EulerToMat(dj.Track[f], dj.Order)
			m = cfg.align.Mul3(m).Mul3(alignInv)
			tj.Track[f] = rotation.MatToEuler(m, tj.Order)
		}
		report.Matched = append(report.Matched, dj.Name)
	}

	for f, row := range donor.Positions() {
		v := cfg.align.Mul3x1(mgl64.Vec3{row[0], row[1], row[2]})
		if err := target.SetPositionAt(f, v); err != nil {
			return report, err
		}
	}
	return report, nil
}

// ReplaceOffset points the bone leading into child in the donor's
// direction while keeping its original length: the donor's same-named bone
// supplies the direction (through the alignment rotation) and the target's
// offset supplies the length.
//
// With [WithCompensation], the parent's rotation absorbs B, the rotation
// mapping the new offset onto the old one, per frame, and the parent's
// other rotating children absorb B⁻¹, so the child keeps its world position
// and unrelated limbs do not inherit the swing.
func ReplaceOffset(s *skeleton.Skeleton, child skeleton.Ref, donor *skeleton.Skeleton, opts ...RetargetOption) error {
	cfg := newRetargetConfig(opts)
	i, err := s.Resolve(child)
	if err != nil {
		return err
	}
	return replaceOffset(s, i, donor, cfg)
}

// ReplaceOffsetsAll applies [ReplaceOffset] to every non-root joint whose
// bone has a same-named counterpart in the donor, skipping excluded names.
// Skipped and unmatched joints are listed in the report.
func ReplaceOffsetsAll(s *skeleton.Skeleton, donor *skeleton.Skeleton, opts ...RetargetOption) (*Report, error) {
	cfg := newRetargetConfig(opts)
	report := &Report{}
	for _, i := range s.Indices() {
		if i == s.Root() {
			continue
		}
		j, _ := s.Joint(i)
		if cfg.exclude[j.Name] {
			report.Skipped = append(report.Skipped, j.Name)
			continue
		}
		err := replaceOffset(s, i, donor, cfg)
		switch {
		case errors.Is(err, skeleton.ErrNotFound):
			report.Skipped = append(report.Skipped, j.Name)
		case err != nil:
			return report, fmt.Errorf("replace offset of %q: %w", j.Name, err)
		default:
			report.Matched = append(report.Matched, j.Name)
		}
	}
	return report, nil
}

func replaceOffset(s *skeleton.Skeleton, child int, donor *skeleton.Skeleton, cfg retargetConfig) error {
	if child == s.Root() {
		return fmt.Errorf("%w: root has no incoming bone", skeleton.ErrInvalidTopology)
	}
	cj, _ := s.Joint(child)
	p, _ := s.Parent(child)
	pj, _ := s.Joint(p)

	// The donor bone is identified by matching both endpoint names.
	dc, err := donor.Lookup(cj.Name)
	if err != nil {
		return err
	}
	dp, ok := donor.Parent(dc)
	if !ok {
		return fmt.Errorf("%w: donor joint %q is a root", skeleton.ErrNotFound, cj.Name)
	}
	dpj, _ := donor.Joint(dp)
	if dpj.Name != pj.Name {
		return fmt.Errorf("%w: donor bone %s->%s does not match %s->%s",
			skeleton.ErrNotFound, dpj.Name, cj.Name, pj.Name, cj.Name)
	}

	orig := s.Offset(child)
	dir := cfg.align.Mul3x1(donor.Offset(dc))
	if dir.Len() < zeroTol {
		return fmt.Errorf("donor offset of %q: %w", cj.Name, rotation.ErrZeroVector)
	}
	newOff := dir.Normalize().Mul(orig.Len())

	if cfg.compensate && orig.Len() >= zeroTol {
		b, err := aim(newOff, orig, cfg.fallbackAxis)
		if err != nil {
			return err
		}
		bInv := b.Inverse()
		for f := 0; f < s.FrameCount(); f++ {
			rp, err := s.RotationAt(p, f)
			if err != nil {
				return err
			}
			pj.Track[f] = rotation.QuatToEuler(rp.Mul(b), pj.Order)
			for _, w := range s.Children(p) {
				if w == child || s.IsLeaf(w) {
					continue
				}
				rw, err := s.RotationAt(w, f)
				if err != nil {
					return err
				}
				wj, _ := s.Joint(w)
				wj.Track[f] = rotation.QuatToEuler(bInv.Mul(rw), wj.Order)
			}
		}
	}
	return s.SetOffset(child, newOff)
}
