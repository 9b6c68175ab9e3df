package transform

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// rig builds Root -> Spine -> Head plus Root -> Arm with the given orders
// and frame count.
func rig(t *testing.T, order rotation.Order, frames int) *skeleton.Skeleton {
	t.Helper()
	s, err := skeleton.New("Root", order, mgl64.Vec3{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	add := func(parent, name string, off mgl64.Vec3) {
		t.Helper()
		if _, err := s.AddJoint(skeleton.ByName(parent), name, order, off); err != nil {
			t.Fatalf("AddJoint(%s) error = %v", name, err)
		}
	}
	add("Root", "Spine", mgl64.Vec3{0, 8, 0})
	add("Spine", "Head", mgl64.Vec3{0, 4, 0})
	add("Root", "Arm", mgl64.Vec3{5, 0, 0})
	s.SetFrameCount(frames)
	return s
}

func TestProject(t *testing.T) {
	donor := rig(t, rotation.ZXY, 3)
	donor.SetFrameTime(1.0 / 120.0)
	spine, _ := donor.Lookup("Spine")
	for f := 0; f < 3; f++ {
		q := mgl64.QuatRotate(0.3*float64(f+1), mgl64.Vec3{0, 0, 1})
		if err := donor.SetRotationAt(spine, f, q); err != nil {
			t.Fatalf("SetRotationAt() error = %v", err)
		}
		if err := donor.SetPositionAt(f, mgl64.Vec3{float64(f), 0, 0}); err != nil {
			t.Fatalf("SetPositionAt() error = %v", err)
		}
	}

	// Different order and frame count on the target to exercise both the
	// re-extraction and the resize.
	target := rig(t, rotation.XYZ, 1)
	report, err := Project(target, donor)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if target.FrameCount() != 3 {
		t.Errorf("FrameCount() = %d, want 3", target.FrameCount())
	}
	if got := target.FrameTime(); got != 1.0/120.0 {
		t.Errorf("FrameTime() = %v, want 1/120", got)
	}
	ts, _ := target.Lookup("Spine")
	for f := 0; f < 3; f++ {
		want, _ := donor.RotationAt(spine, f)
		got, err := target.RotationAt(ts, f)
		if err != nil {
			t.Fatalf("RotationAt() error = %v", err)
		}
		if d := math.Abs(math.Abs(want.Dot(got)) - 1); d > tol {
			t.Errorf("frame %d: projected rotation drift %g", f, d)
		}
		p, _ := target.PositionAt(f)
		if !vecsEqual(p, mgl64.Vec3{float64(f), 0, 0}, tol) {
			t.Errorf("frame %d: position = %v", f, p)
		}
	}
	if !slices.Contains(report.Matched, "Spine") {
		t.Errorf("report.Matched = %v, want Spine included", report.Matched)
	}
}

func TestProject_SkipsUnmatched(t *testing.T) {
	donor := rig(t, rotation.ZXY, 2)
	if _, err := donor.AddJoint(skeleton.ByName("Root"), "Tail", rotation.ZXY, mgl64.Vec3{0, -3, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	if _, err := donor.AddJoint(skeleton.ByName("Tail"), "TailTip", rotation.ZXY, mgl64.Vec3{0, -1, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}

	target := rig(t, rotation.ZXY, 2)
	report, err := Project(target, donor)
	if err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	if !slices.Contains(report.Skipped, "Tail") {
		t.Errorf("report.Skipped = %v, want Tail included", report.Skipped)
	}
	if slices.Contains(report.Skipped, "TailTip") {
		t.Errorf("leaf TailTip reported as skipped donor joint")
	}
}

func TestProject_Alignment(t *testing.T) {
	donor := rig(t, rotation.ZXY, 1)
	spine, _ := donor.Lookup("Spine")
	// Donor bends about its X axis; aligned by 90° about Y, the target
	// must bend about -Z.
	if err := donor.SetRotationAt(spine, 0, mgl64.QuatRotate(0.5, mgl64.Vec3{1, 0, 0})); err != nil {
		t.Fatalf("SetRotationAt() error = %v", err)
	}
	align := mgl64.Rotate3DY(math.Pi / 2)

	target := rig(t, rotation.ZXY, 1)
	if _, err := Project(target, donor, WithAlignment(align)); err != nil {
		t.Fatalf("Project() error = %v", err)
	}
	ts, _ := target.Lookup("Spine")
	got, _ := target.RotationAt(ts, 0)
	want := mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, -1})
	if d := math.Abs(math.Abs(got.Dot(want)) - 1); d > tol {
		t.Errorf("aligned rotation drift %g", d)
	}
}

func TestReplaceOffset(t *testing.T) {
	s := rig(t, rotation.ZXY, 2)
	donor := rig(t, rotation.ZXY, 1)
	dspine, _ := donor.Lookup("Spine")
	if err := donor.SetOffset(dspine, mgl64.Vec3{3, 3, 0}); err != nil {
		t.Fatalf("SetOffset() error = %v", err)
	}

	if err := ReplaceOffset(s, skeleton.ByName("Spine"), donor); err != nil {
		t.Fatalf("ReplaceOffset() error = %v", err)
	}
	spine, _ := s.Lookup("Spine")
	got := s.Offset(spine)
	want := mgl64.Vec3{1, 1, 0}.Normalize().Mul(8)
	if !vecsEqual(got, want, tol) {
		t.Errorf("Offset(Spine) = %v, want %v", got, want)
	}
}

func TestReplaceOffset_Compensated(t *testing.T) {
	s := rig(t, rotation.ZXY, 3)
	if _, err := s.AddJoint(skeleton.ByName("Arm"), "Hand", rotation.ZXY, mgl64.Vec3{2, 0, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	root := s.Root()
	arm, _ := s.Lookup("Arm")
	for f := 0; f < 3; f++ {
		if err := s.SetRotationAt(root, f, mgl64.QuatRotate(0.2*float64(f), mgl64.Vec3{0, 0, 1})); err != nil {
			t.Fatalf("SetRotationAt(Root) error = %v", err)
		}
		if err := s.SetRotationAt(arm, f, mgl64.QuatRotate(0.5*float64(f), mgl64.Vec3{0, 1, 0})); err != nil {
			t.Fatalf("SetRotationAt(Arm) error = %v", err)
		}
	}
	var wantSpine, wantHandRel []mgl64.Vec3
	for f := 0; f < 3; f++ {
		wantSpine = append(wantSpine, worldOf(t, s, "Spine", f))
		wantHandRel = append(wantHandRel, worldOf(t, s, "Hand", f).Sub(worldOf(t, s, "Arm", f)))
	}

	donor := rig(t, rotation.ZXY, 1)
	dspine, _ := donor.Lookup("Spine")
	if err := donor.SetOffset(dspine, mgl64.Vec3{1, 0, 0}); err != nil {
		t.Fatalf("SetOffset() error = %v", err)
	}

	if err := ReplaceOffset(s, skeleton.ByName("Spine"), donor, WithCompensation()); err != nil {
		t.Fatalf("ReplaceOffset() error = %v", err)
	}
	spine, _ := s.Lookup("Spine")
	if got := s.Offset(spine).Len(); math.Abs(got-8) > tol {
		t.Errorf("|Offset(Spine)| = %v, want 8", got)
	}
	for f := 0; f < 3; f++ {
		// The compensating rotation keeps the re-pointed bone's endpoint
		// where it was.
		if got := worldOf(t, s, "Spine", f); !vecsEqual(got, wantSpine[f], tol) {
			t.Errorf("frame %d: Spine at %v, want %v", f, got, wantSpine[f])
		}
		// The sibling limb absorbs the inverse correction: its internal
		// geometry is unchanged even though the parent now carries B.
		rel := worldOf(t, s, "Hand", f).Sub(worldOf(t, s, "Arm", f))
		if !vecsEqual(rel, wantHandRel[f], tol) {
			t.Errorf("frame %d: Hand-Arm = %v, want %v", f, rel, wantHandRel[f])
		}
		// Bone length into Head is rigid.
		d := worldOf(t, s, "Head", f).Sub(worldOf(t, s, "Spine", f)).Len()
		if math.Abs(d-4) > tol {
			t.Errorf("frame %d: |Head-Spine| = %v, want 4", f, d)
		}
	}
}

func TestReplaceOffset_NotFound(t *testing.T) {
	s := rig(t, rotation.ZXY, 1)
	donor, err := skeleton.New("Other", rotation.ZXY, mgl64.Vec3{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ReplaceOffset(s, skeleton.ByName("Spine"), donor); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestReplaceOffsetsAll(t *testing.T) {
	s := rig(t, rotation.ZXY, 1)
	if _, err := s.AddJoint(skeleton.ByName("Root"), "Extra", rotation.ZXY, mgl64.Vec3{0, 0, 2}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	donor := rig(t, rotation.ZXY, 1)
	darm, _ := donor.Lookup("Arm")
	if err := donor.SetOffset(darm, mgl64.Vec3{0, 2, 0}); err != nil {
		t.Fatalf("SetOffset() error = %v", err)
	}

	report, err := ReplaceOffsetsAll(s, donor, WithExclude("Spine"))
	if err != nil {
		t.Fatalf("ReplaceOffsetsAll() error = %v", err)
	}
	arm, _ := s.Lookup("Arm")
	if got := s.Offset(arm); !vecsEqual(got, mgl64.Vec3{0, 5, 0}, tol) {
		t.Errorf("Offset(Arm) = %v, want (0,5,0)", got)
	}
	spine, _ := s.Lookup("Spine")
	if got := s.Offset(spine); !vecsEqual(got, mgl64.Vec3{0, 8, 0}, tol) {
		t.Errorf("excluded Spine offset changed: %v", got)
	}
	for _, name := range []string{"Spine", "Extra"} {
		if !slices.Contains(report.Skipped, name) {
			t.Errorf("report.Skipped = %v, want %s included", report.Skipped, name)
		}
	}
	if !slices.Contains(report.Matched, "Arm") {
		t.Errorf("report.Matched = %v, want Arm included", report.Matched)
	}
}
