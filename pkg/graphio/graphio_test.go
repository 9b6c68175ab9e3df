package graphio

import (
	"encoding/json"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

func buildSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	s, err := skeleton.New("Hips", rotation.ZXY, mgl64.Vec3{0, 1, 0})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.AddJoint(skeleton.ByName("Hips"), "Spine", rotation.ZXY, mgl64.Vec3{0, 5, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	if _, err := s.AddJoint(skeleton.ByName("Spine"), "Head", rotation.XYZ, mgl64.Vec3{0, 3, 0}); err != nil {
		t.Fatalf("AddJoint() error = %v", err)
	}
	s.SetFrameCount(2)
	hips, _ := s.Lookup("Hips")
	j, _ := s.Joint(hips)
	j.Track[1] = [3]float64{10, 20, 30}
	s.SetPositionAt(0, mgl64.Vec3{1, 2, 3})
	return s
}

func TestRoundTrip(t *testing.T) {
	s := buildSkeleton(t)
	doc := FromSkeleton(s)

	back, err := doc.ToSkeleton()
	if err != nil {
		t.Fatalf("ToSkeleton() error = %v", err)
	}
	if err := back.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got, want := back.JointCount(), s.JointCount(); got != want {
		t.Errorf("JointCount() = %d, want %d", got, want)
	}
	if got := back.RootOffset(); got != (mgl64.Vec3{0, 1, 0}) {
		t.Errorf("RootOffset() = %v", got)
	}
	hips, _ := back.Lookup("Hips")
	j, _ := back.Joint(hips)
	if j.Track[1] != ([3]float64{10, 20, 30}) {
		t.Errorf("Hips frame 1 = %v", j.Track[1])
	}
	head, _ := back.Lookup("Head")
	hj, _ := back.Joint(head)
	if hj.Order != rotation.XYZ {
		t.Errorf("Head order = %v, want XYZ", hj.Order)
	}
	if hj.Track != nil {
		t.Errorf("leaf Head has a track")
	}
	if p, _ := back.PositionAt(0); p != (mgl64.Vec3{1, 2, 3}) {
		t.Errorf("PositionAt(0) = %v", p)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	doc := FromSkeleton(buildSkeleton(t))
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if _, err := decoded.ToSkeleton(); err != nil {
		t.Errorf("ToSkeleton() after JSON error = %v", err)
	}
}

func TestToSkeleton_UnorderedJoints(t *testing.T) {
	// Children listed before their parents must still attach.
	doc := &Document{
		Root:   "Root",
		Frames: 0,
		Joints: []JointDoc{
			{Name: "Head", Parent: "Spine", Order: "XYZ", Offset: [3]float64{0, 3, 0}},
			{Name: "Spine", Parent: "Root", Order: "ZXY", Offset: [3]float64{0, 5, 0}},
			{Name: "Root", Order: "ZXY"},
		},
	}
	s, err := doc.ToSkeleton()
	if err != nil {
		t.Fatalf("ToSkeleton() error = %v", err)
	}
	head, _ := s.Lookup("Head")
	spine, _ := s.Lookup("Spine")
	if p, _ := s.Parent(head); p != spine {
		t.Errorf("Parent(Head) = %d, want %d", p, spine)
	}
}

func TestToSkeleton_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		code errors.Code
	}{
		{
			name: "missing root",
			doc:  Document{Root: "Nope", Joints: []JointDoc{{Name: "A", Order: "XYZ"}}},
			code: errors.ErrCodeInvalidTopology,
		},
		{
			name: "orphan joint",
			doc: Document{Root: "Root", Joints: []JointDoc{
				{Name: "Root", Order: "XYZ"},
				{Name: "Lost", Parent: "Ghost", Order: "XYZ"},
			}},
			code: errors.ErrCodeInvalidTopology,
		},
		{
			name: "bad order",
			doc: Document{Root: "Root", Joints: []JointDoc{
				{Name: "Root", Order: "XXZ"},
			}},
			code: errors.ErrCodeInvalidOrder,
		},
		{
			name: "track length mismatch",
			doc: Document{Root: "Root", Frames: 2, Positions: [][3]float64{{}, {}}, Joints: []JointDoc{
				{Name: "Root", Order: "XYZ", Track: [][3]float64{{}}},
				{Name: "A", Parent: "Root", Order: "XYZ"},
			}},
			code: errors.ErrCodeDimensionMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.ToSkeleton()
			if err == nil {
				t.Fatalf("ToSkeleton() expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("error code = %v, want %v", got, tt.code)
			}
		})
	}
}
