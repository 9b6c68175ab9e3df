package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/kinematics"
	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

const tol = 1e-9

func vecsEqual(a, b mgl64.Vec3, eps float64) bool {
	return a.Sub(b).Len() <= eps
}

// chainY builds Root -> A -> B along +Y with the given frame count.
func chainY(t *testing.T, frames int) *skeleton.Skeleton {
	t.Helper()
	s, err := skeleton.New("Root", rotation.ZXY, mgl64.Vec3{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.AddJoint(skeleton.ByName("Root"), "A", rotation.ZXY, mgl64.Vec3{0, 10, 0}); err != nil {
		t.Fatalf("AddJoint(A) error = %v", err)
	}
	if _, err := s.AddJoint(skeleton.ByName("A"), "B", rotation.ZXY, mgl64.Vec3{0, 5, 0}); err != nil {
		t.Fatalf("AddJoint(B) error = %v", err)
	}
	s.SetFrameCount(frames)
	return s
}

func worldOf(t *testing.T, s *skeleton.Skeleton, name string, f int) mgl64.Vec3 {
	t.Helper()
	i, err := s.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup(%q) error = %v", name, err)
	}
	p, err := kinematics.WorldPosition(s, i, f)
	if err != nil {
		t.Fatalf("WorldPosition(%q, %d) error = %v", name, f, err)
	}
	return p
}

func TestExtendFrames(t *testing.T) {
	s := chainY(t, 2)
	a, _ := s.Lookup("A")
	if err := s.SetRotationAt(a, 1, mgl64.QuatRotate(1, mgl64.Vec3{0, 0, 1})); err != nil {
		t.Fatalf("SetRotationAt() error = %v", err)
	}
	before, _ := s.Joint(a)
	row1 := before.Track[1]

	if err := ExtendFrames(s, 3); err != nil {
		t.Fatalf("ExtendFrames() error = %v", err)
	}
	if got := s.FrameCount(); got != 5 {
		t.Fatalf("FrameCount() = %d, want 5", got)
	}
	j, _ := s.Joint(a)
	if j.Track[1] != row1 {
		t.Errorf("existing row changed: %v", j.Track[1])
	}
	for f := 2; f < 5; f++ {
		if j.Track[f] != ([3]float64{}) {
			t.Errorf("appended row %d = %v, want zero", f, j.Track[f])
		}
		if s.Positions()[f] != ([3]float64{}) {
			t.Errorf("appended position %d = %v, want zero", f, s.Positions()[f])
		}
	}

	if err := ExtendFrames(s, 0); err != nil {
		t.Errorf("ExtendFrames(0) error = %v", err)
	}
	if err := ExtendFrames(s, -1); !errors.Is(err, ErrNegativeFrames) {
		t.Errorf("ExtendFrames(-1) error = %v, want ErrNegativeFrames", err)
	}
}

func TestInsertOnBone(t *testing.T) {
	for _, frac := range []float64{0.1, 0.5, 0.9} {
		s := chainY(t, 1)
		b, _ := s.Lookup("B")
		origOff := s.Offset(b)
		origPos := worldOf(t, s, "B", 0)

		n, err := InsertOnBone(s, skeleton.ByName("B"), "Mid", frac)
		if err != nil {
			t.Fatalf("InsertOnBone(t=%g) error = %v", frac, err)
		}
		if got := s.Offset(n).Add(s.Offset(b)); !vecsEqual(got, origOff, tol) {
			t.Errorf("t=%g: split offsets sum to %v, want %v", frac, got, origOff)
		}
		if got := worldOf(t, s, "B", 0); !vecsEqual(got, origPos, tol) {
			t.Errorf("t=%g: B moved to %v, want %v", frac, got, origPos)
		}
		nj, _ := s.Joint(n)
		if nj.Order != rotation.ZXY {
			t.Errorf("inserted joint order = %v, want parent's ZXY", nj.Order)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	}
}

func TestInsertOnBone_Errors(t *testing.T) {
	s := chainY(t, 1)
	if _, err := InsertOnBone(s, skeleton.ByName("B"), "Mid", 0); !errors.Is(err, ErrInvalidFraction) {
		t.Errorf("t=0 error = %v, want ErrInvalidFraction", err)
	}
	if _, err := InsertOnBone(s, skeleton.ByName("B"), "Mid", 1); !errors.Is(err, ErrInvalidFraction) {
		t.Errorf("t=1 error = %v, want ErrInvalidFraction", err)
	}
	if _, err := InsertOnBone(s, skeleton.ByName("Root"), "Mid", 0.5); !errors.Is(err, skeleton.ErrInvalidTopology) {
		t.Errorf("root split error = %v, want ErrInvalidTopology", err)
	}
}

func TestInsertChild(t *testing.T) {
	s := chainY(t, 1)
	// Give Root a second child so there is a subset to move.
	if _, err := s.AddJoint(skeleton.ByName("Root"), "Hip", rotation.ZXY, mgl64.Vec3{3, 0, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	posA := worldOf(t, s, "A", 0)
	posHip := worldOf(t, s, "Hip", 0)

	n, err := InsertChild(s, skeleton.ByName("Root"), "Pelvis", mgl64.Vec3{0, 2, 0},
		[]skeleton.Ref{skeleton.ByName("A"), skeleton.ByName("Hip")})
	if err != nil {
		t.Fatalf("InsertChild() error = %v", err)
	}
	if got := worldOf(t, s, "A", 0); !vecsEqual(got, posA, tol) {
		t.Errorf("A moved to %v, want %v", got, posA)
	}
	if got := worldOf(t, s, "Hip", 0); !vecsEqual(got, posHip, tol) {
		t.Errorf("Hip moved to %v, want %v", got, posHip)
	}
	a, _ := s.Lookup("A")
	if p, _ := s.Parent(a); p != n {
		t.Errorf("Parent(A) = %d, want %d", p, n)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestInsertChild_NotAChild(t *testing.T) {
	s := chainY(t, 1)
	_, err := InsertChild(s, skeleton.ByName("Root"), "New", mgl64.Vec3{0, 1, 0},
		[]skeleton.Ref{skeleton.ByName("B")})
	if !errors.Is(err, skeleton.ErrInvalidTopology) {
		t.Errorf("error = %v, want ErrInvalidTopology", err)
	}
	if _, err := s.Lookup("New"); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("failed insert left the new joint behind")
	}
}

// Removing a twisted joint on a straight chain is exact: a rotation about
// the bone axis leaves the virtual offset equal to the combined offset, so
// the parent absorbs the twist and descendants stay put.
func TestRemove_StraightChainExact(t *testing.T) {
	s := chainY(t, 4)
	if _, err := s.AddJoint(skeleton.ByName("B"), "Tip", rotation.ZXY, mgl64.Vec3{0, 2, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	a, _ := s.Lookup("A")
	b, _ := s.Lookup("B")
	for f := 0; f < 4; f++ {
		twist := mgl64.QuatRotate(float64(f)*0.7, mgl64.Vec3{0, 1, 0})
		if err := s.SetRotationAt(a, f, twist); err != nil {
			t.Fatalf("SetRotationAt(A) error = %v", err)
		}
		bend := mgl64.QuatRotate(float64(f)*0.3, mgl64.Vec3{1, 0, 1}.Normalize())
		if err := s.SetRotationAt(b, f, bend); err != nil {
			t.Fatalf("SetRotationAt(B) error = %v", err)
		}
	}
	var wantB, wantTip []mgl64.Vec3
	for f := 0; f < 4; f++ {
		wantB = append(wantB, worldOf(t, s, "B", f))
		wantTip = append(wantTip, worldOf(t, s, "Tip", f))
	}

	if err := Remove(s, skeleton.ByName("A")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.Lookup("A"); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("A still present after removal")
	}
	if got := s.Offset(b); !vecsEqual(got, mgl64.Vec3{0, 15, 0}, tol) {
		t.Errorf("Offset(B) = %v, want (0,15,0)", got)
	}
	for f := 0; f < 4; f++ {
		if got := worldOf(t, s, "B", f); !vecsEqual(got, wantB[f], tol) {
			t.Errorf("frame %d: B at %v, want %v", f, got, wantB[f])
		}
		if got := worldOf(t, s, "Tip", f); !vecsEqual(got, wantTip[f], tol) {
			t.Errorf("frame %d: Tip at %v, want %v", f, got, wantTip[f])
		}
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// Insert followed by removal of the inserted joint restores the original
// chain exactly, because the synthetic joint never rotates.
func TestRemove_UndoesInsert(t *testing.T) {
	s := chainY(t, 3)
	a, _ := s.Lookup("A")
	b, _ := s.Lookup("B")
	for f := 0; f < 3; f++ {
		q := mgl64.QuatRotate(float64(f)*0.5, mgl64.Vec3{1, 0, 0})
		if err := s.SetRotationAt(a, f, q); err != nil {
			t.Fatalf("SetRotationAt() error = %v", err)
		}
	}
	var want []mgl64.Vec3
	for f := 0; f < 3; f++ {
		want = append(want, worldOf(t, s, "B", f))
	}

	if _, err := InsertOnBone(s, skeleton.ByName("B"), "Mid", 0.25); err != nil {
		t.Fatalf("InsertOnBone() error = %v", err)
	}
	if err := Remove(s, skeleton.ByName("Mid")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := s.Offset(b); !vecsEqual(got, mgl64.Vec3{0, 5, 0}, tol) {
		t.Errorf("Offset(B) = %v, want (0,5,0)", got)
	}
	for f := 0; f < 3; f++ {
		if got := worldOf(t, s, "B", f); !vecsEqual(got, want[f], tol) {
			t.Errorf("frame %d: B at %v, want %v", f, got, want[f])
		}
	}
}

// The bent-elbow scenario: Root->A->B with A rotated 90° about X. The
// combined bone keeps its full length, so removal preserves B's bearing
// from the root exactly while the distance becomes the bone length; Root's
// new rotation alone aims the combined bone along that bearing.
func TestRemove_BentJoint(t *testing.T) {
	s := chainY(t, 1)
	a, _ := s.Lookup("A")
	if err := s.SetRotationAt(a, 0, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{1, 0, 0})); err != nil {
		t.Fatalf("SetRotationAt() error = %v", err)
	}
	before := worldOf(t, s, "B", 0)
	if !vecsEqual(before, mgl64.Vec3{0, 10, 5}, tol) {
		t.Fatalf("pre-removal B at %v, want (0,10,5)", before)
	}

	if err := Remove(s, skeleton.ByName("A")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	b, _ := s.Lookup("B")
	if got := s.Offset(b); !vecsEqual(got, mgl64.Vec3{0, 15, 0}, tol) {
		t.Errorf("Offset(B) = %v, want (0,15,0)", got)
	}

	after := worldOf(t, s, "B", 0)
	if got := after.Len(); math.Abs(got-15) > tol {
		t.Errorf("|B| = %v, want 15", got)
	}
	if !vecsEqual(after.Normalize(), before.Normalize(), tol) {
		t.Errorf("B bearing %v, want %v", after.Normalize(), before.Normalize())
	}

	// Root's rotation alone must reproduce B's position for the new bone.
	q, err := s.RotationAt(s.Root(), 0)
	if err != nil {
		t.Fatalf("RotationAt() error = %v", err)
	}
	if got := q.Rotate(mgl64.Vec3{0, 15, 0}); !vecsEqual(got, after, tol) {
		t.Errorf("Root rotation places B at %v, want %v", got, after)
	}
}

func TestRemove_Branching(t *testing.T) {
	s := chainY(t, 2)
	if _, err := s.AddJoint(skeleton.ByName("A"), "C", rotation.ZXY, mgl64.Vec3{4, 0, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	if _, err := s.AddJoint(skeleton.ByName("C"), "CTip", rotation.ZXY, mgl64.Vec3{1, 0, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	a, _ := s.Lookup("A")
	for f := 0; f < 2; f++ {
		if err := s.SetRotationAt(a, f, mgl64.QuatRotate(0.4*float64(f+1), mgl64.Vec3{0, 1, 0})); err != nil {
			t.Fatalf("SetRotationAt() error = %v", err)
		}
	}
	wantB := worldOf(t, s, "B", 1)

	if err := Remove(s, skeleton.ByName("A"), WithPrimaryChild(skeleton.ByName("B"))); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// The primary branch runs along the twist axis, so it is matched
	// exactly; the side branch is best-effort.
	if got := worldOf(t, s, "B", 1); !vecsEqual(got, wantB, tol) {
		t.Errorf("primary child B at %v, want %v", got, wantB)
	}
	root := s.Root()
	for _, name := range []string{"B", "C"} {
		i, _ := s.Lookup(name)
		if p, _ := s.Parent(i); p != root {
			t.Errorf("Parent(%s) = %d, want root", name, p)
		}
	}
	c, _ := s.Lookup("C")
	if got := s.Offset(c); !vecsEqual(got, mgl64.Vec3{4, 10, 0}, tol) {
		t.Errorf("Offset(C) = %v, want (4,10,0)", got)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestRemove_LeafDemotesParent(t *testing.T) {
	s := chainY(t, 2)
	if err := Remove(s, skeleton.ByName("B")); err != nil {
		t.Fatalf("Remove(B) error = %v", err)
	}
	a, _ := s.Lookup("A")
	if !s.IsLeaf(a) {
		t.Errorf("A should become an end site")
	}
	j, _ := s.Joint(a)
	if j.Track != nil {
		t.Errorf("demoted A still has a rotation track")
	}
}

func TestRemove_Errors(t *testing.T) {
	s := chainY(t, 1)
	if err := Remove(s, skeleton.ByName("Root")); !errors.Is(err, skeleton.ErrInvalidTopology) {
		t.Errorf("remove root error = %v, want ErrInvalidTopology", err)
	}
	if err := Remove(s, skeleton.ByName("Nope")); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("remove missing error = %v, want ErrNotFound", err)
	}
	if err := Remove(s, skeleton.ByName("A"), WithPrimaryChild(skeleton.ByName("Root"))); !errors.Is(err, skeleton.ErrInvalidTopology) {
		t.Errorf("bad primary error = %v, want ErrInvalidTopology", err)
	}
}

func TestRemoveAll(t *testing.T) {
	s := chainY(t, 1)
	if _, err := s.AddJoint(skeleton.ByName("B"), "Tip", rotation.ZXY, mgl64.Vec3{0, 1, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	if err := RemoveAll(s, []string{"A", "B"}); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	tip, _ := s.Lookup("Tip")
	if p, _ := s.Parent(tip); p != s.Root() {
		t.Errorf("Tip not re-parented to root")
	}
	if got := s.Offset(tip); !vecsEqual(got, mgl64.Vec3{0, 16, 0}, tol) {
		t.Errorf("Offset(Tip) = %v, want (0,16,0)", got)
	}

	if err := RemoveAll(s, []string{"Nope"}); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("RemoveAll(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRename(t *testing.T) {
	s := chainY(t, 1)
	if err := Rename(s, map[string]string{"A": "B", "B": "A"}); err != nil {
		t.Fatalf("swap Rename() error = %v", err)
	}
	a, _ := s.Lookup("A")
	if p, _ := s.Parent(a); s.Root() == p {
		t.Errorf("swap did not exchange names: A is still the middle joint's name")
	}

	if err := Rename(s, map[string]string{"Nope": "X"}); !errors.Is(err, skeleton.ErrNotFound) {
		t.Errorf("Rename(missing) error = %v, want ErrNotFound", err)
	}
	if err := Rename(s, map[string]string{"A": "Root"}); !errors.Is(err, skeleton.ErrDuplicateName) {
		t.Errorf("Rename(collision) error = %v, want ErrDuplicateName", err)
	}
	if _, err := s.Lookup("A"); err != nil {
		t.Errorf("failed rename mutated the skeleton: %v", err)
	}
}

func TestConvertOrder_RoundTrip(t *testing.T) {
	s := chainY(t, 2)
	a, _ := s.Lookup("A")
	j, _ := s.Joint(a)
	j.Track[0] = [3]float64{30, 45, 60}
	j.Track[1] = [3]float64{-10, 20, -30}
	orig := [][3]float64{j.Track[0], j.Track[1]}

	if err := ConvertOrder(s, skeleton.ByIndex(a), rotation.XYZ); err != nil {
		t.Fatalf("ConvertOrder() error = %v", err)
	}
	if j.Order != rotation.XYZ {
		t.Errorf("order = %v, want XYZ", j.Order)
	}
	if err := ConvertOrder(s, skeleton.ByIndex(a), rotation.ZXY); err != nil {
		t.Fatalf("ConvertOrder() back error = %v", err)
	}
	for f := range orig {
		for k := 0; k < 3; k++ {
			if math.Abs(j.Track[f][k]-orig[f][k]) > 1e-8 {
				t.Errorf("frame %d: angles %v, want %v", f, j.Track[f], orig[f])
			}
		}
	}
}

func TestConvertOrderAll(t *testing.T) {
	s := chainY(t, 1)
	if err := ConvertOrderAll(s, rotation.YZX); err != nil {
		t.Fatalf("ConvertOrderAll() error = %v", err)
	}
	for _, i := range s.Indices() {
		j, _ := s.Joint(i)
		if j.Order != rotation.YZX {
			t.Errorf("joint %q order = %v, want YZX", j.Name, j.Order)
		}
	}
}

func TestScale_RoundTrip(t *testing.T) {
	s := chainY(t, 2)
	s.SetRootOffset(mgl64.Vec3{1, 2, 3})
	if err := s.SetPositionAt(1, mgl64.Vec3{4, 5, 6}); err != nil {
		t.Fatalf("SetPositionAt() error = %v", err)
	}
	b, _ := s.Lookup("B")
	origOff := s.Offset(b)

	if err := Scale(s, 2.5); err != nil {
		t.Fatalf("Scale() error = %v", err)
	}
	if got := s.Offset(b); !vecsEqual(got, origOff.Mul(2.5), tol) {
		t.Errorf("scaled Offset(B) = %v", got)
	}
	if err := Scale(s, 1/2.5); err != nil {
		t.Fatalf("Scale() inverse error = %v", err)
	}
	if got := s.Offset(b); !vecsEqual(got, origOff, tol) {
		t.Errorf("Offset(B) = %v, want %v", got, origOff)
	}
	if got := s.RootOffset(); !vecsEqual(got, mgl64.Vec3{1, 2, 3}, tol) {
		t.Errorf("RootOffset() = %v", got)
	}
	if p, _ := s.PositionAt(1); !vecsEqual(p, mgl64.Vec3{4, 5, 6}, tol) {
		t.Errorf("PositionAt(1) = %v", p)
	}

	if err := Scale(s, 0); !errors.Is(err, ErrZeroScale) {
		t.Errorf("Scale(0) error = %v, want ErrZeroScale", err)
	}
}

func TestZero(t *testing.T) {
	s := chainY(t, 2)
	a, _ := s.Lookup("A")
	if err := s.SetRotationAt(a, 0, mgl64.QuatRotate(1, mgl64.Vec3{0, 0, 1})); err != nil {
		t.Fatalf("SetRotationAt() error = %v", err)
	}
	if err := s.SetPositionAt(1, mgl64.Vec3{7, 8, 9}); err != nil {
		t.Fatalf("SetPositionAt() error = %v", err)
	}

	Zero(s)
	j, _ := s.Joint(a)
	for f := range j.Track {
		if j.Track[f] != ([3]float64{}) {
			t.Errorf("frame %d rotation = %v, want zero", f, j.Track[f])
		}
	}
	for f, row := range s.Positions() {
		if row != ([3]float64{}) {
			t.Errorf("frame %d position = %v, want zero", f, row)
		}
	}
	if got := s.FrameCount(); got != 2 {
		t.Errorf("FrameCount() = %d, want 2", got)
	}
}
