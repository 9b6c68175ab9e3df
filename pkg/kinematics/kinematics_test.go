package kinematics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

const tol = 1e-9

func vecsEqual(a, b mgl64.Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

// arm builds Root -> Elbow -> Hand along +Y with one frame.
func arm(t *testing.T) (*skeleton.Skeleton, int, int, int) {
	t.Helper()
	s, err := skeleton.New("Root", rotation.ZXY, mgl64.Vec3{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	elbow, err := s.AddJoint(skeleton.ByName("Root"), "Elbow", rotation.ZXY, mgl64.Vec3{0, 10, 0})
	if err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	hand, err := s.AddJoint(skeleton.ByIndex(elbow), "Hand", rotation.ZXY, mgl64.Vec3{0, 5, 0})
	if err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	s.SetFrameCount(1)
	return s, s.Root(), elbow, hand
}

func TestEvaluate_RestPose(t *testing.T) {
	s, root, elbow, hand := arm(t)

	pose, err := Evaluate(s, 0)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !vecsEqual(pose.Positions[root], mgl64.Vec3{}, tol) {
		t.Errorf("root position = %v, want origin", pose.Positions[root])
	}
	if !vecsEqual(pose.Positions[elbow], mgl64.Vec3{0, 10, 0}, tol) {
		t.Errorf("elbow position = %v", pose.Positions[elbow])
	}
	if !vecsEqual(pose.Positions[hand], mgl64.Vec3{0, 15, 0}, tol) {
		t.Errorf("hand position = %v", pose.Positions[hand])
	}
}

func TestEvaluate_Rotated(t *testing.T) {
	s, _, elbow, hand := arm(t)

	// Bend the elbow 90° about Z: the hand bone swings from +Y to -X.
	q := mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})
	if err := s.SetRotationAt(elbow, 0, q); err != nil {
		t.Fatalf("SetRotationAt() error = %v", err)
	}
	p, err := WorldPosition(s, hand, 0)
	if err != nil {
		t.Fatalf("WorldPosition() error = %v", err)
	}
	if !vecsEqual(p, mgl64.Vec3{-5, 10, 0}, tol) {
		t.Errorf("hand position = %v, want (-5,10,0)", p)
	}
}

func TestEvaluate_RootTranslation(t *testing.T) {
	s, _, _, hand := arm(t)

	s.SetRootOffset(mgl64.Vec3{1, 0, 0})
	if err := s.SetPositionAt(0, mgl64.Vec3{0, 0, 2}); err != nil {
		t.Fatalf("SetPositionAt() error = %v", err)
	}
	p, err := WorldPosition(s, hand, 0)
	if err != nil {
		t.Fatalf("WorldPosition() error = %v", err)
	}
	if !vecsEqual(p, mgl64.Vec3{1, 15, 2}, tol) {
		t.Errorf("hand position = %v, want (1,15,2)", p)
	}
}

func TestTrajectory(t *testing.T) {
	s, _, elbow, hand := arm(t)
	s.SetFrameCount(3)

	for f := 0; f < 3; f++ {
		q := mgl64.QuatRotate(float64(f)*math.Pi/2, mgl64.Vec3{0, 0, 1})
		if err := s.SetRotationAt(elbow, f, q); err != nil {
			t.Fatalf("SetRotationAt() error = %v", err)
		}
	}
	traj, err := Trajectory(s, hand)
	if err != nil {
		t.Fatalf("Trajectory() error = %v", err)
	}
	want := []mgl64.Vec3{{0, 15, 0}, {-5, 10, 0}, {0, 5, 0}}
	for f, w := range want {
		if !vecsEqual(traj[f], w, tol) {
			t.Errorf("frame %d: position = %v, want %v", f, traj[f], w)
		}
	}
}

func TestEvaluate_FrameRange(t *testing.T) {
	s, _, _, _ := arm(t)
	if _, err := Evaluate(s, 5); err == nil {
		t.Errorf("Evaluate(5) expected error")
	}
}
