// Package graphio converts skeletons to and from a flat document form used
// for JSON APIs and BSON clip storage.
//
// A document lists joints with their parent names, so it is order-insensitive
// on input and deterministic on output: FromSkeleton emits joints in stable
// arena order and ToSkeleton rebuilds the tree by walking parent links from
// the root.
package graphio

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// JointDoc is one joint in document form. Parent is empty for the root and
// Track is absent for end sites.
type JointDoc struct {
	Name   string       `json:"name" bson:"name"`
	Parent string       `json:"parent,omitempty" bson:"parent,omitempty"`
	Order  string       `json:"order" bson:"order"`
	Offset [3]float64   `json:"offset" bson:"offset"`
	Track  [][3]float64 `json:"track,omitempty" bson:"track,omitempty"`
}

// Document is a complete skeleton with motion in document form.
type Document struct {
	Root      string       `json:"root" bson:"root"`
	Frames    int          `json:"frames" bson:"frames"`
	FrameTime float64      `json:"frameTime" bson:"frameTime"`
	Positions [][3]float64 `json:"positions" bson:"positions"`
	Joints    []JointDoc   `json:"joints" bson:"joints"`
}

// FromSkeleton flattens a skeleton into a document. Joints appear in stable
// arena order, so equal skeletons produce byte-identical serializations.
func FromSkeleton(s *skeleton.Skeleton) *Document {
	doc := &Document{
		Frames:    s.FrameCount(),
		FrameTime: s.FrameTime(),
		Positions: s.Positions(),
	}
	for _, i := range s.Indices() {
		j, _ := s.Joint(i)
		jd := JointDoc{
			Name:  j.Name,
			Order: j.Order.String(),
			Track: j.Track,
		}
		if i == s.Root() {
			doc.Root = j.Name
			off := s.RootOffset()
			jd.Offset = [3]float64{off[0], off[1], off[2]}
		} else {
			p, _ := s.Parent(i)
			pj, _ := s.Joint(p)
			jd.Parent = pj.Name
			off := s.Offset(i)
			jd.Offset = [3]float64{off[0], off[1], off[2]}
		}
		doc.Joints = append(doc.Joints, jd)
	}
	return doc
}

// ToSkeleton rebuilds a skeleton from document form. Joint order in the
// document does not matter; the tree is grown from the root by repeatedly
// attaching joints whose parent already exists. Tracks are validated
// against the frame count.
func (d *Document) ToSkeleton() (*skeleton.Skeleton, error) {
	var root *JointDoc
	byParent := map[string][]*JointDoc{}
	for i := range d.Joints {
		jd := &d.Joints[i]
		if jd.Name == d.Root {
			if jd.Parent != "" {
				return nil, errors.New(errors.ErrCodeInvalidTopology, "root %q has a parent", jd.Name)
			}
			root = jd
			continue
		}
		if jd.Parent == "" {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "joint %q has no parent", jd.Name)
		}
		byParent[jd.Parent] = append(byParent[jd.Parent], jd)
	}
	if root == nil {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "root %q not among joints", d.Root)
	}

	order, err := rotation.ParseOrder(root.Order)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidOrder, err, "joint %q", root.Name)
	}
	s, err := skeleton.New(root.Name, order, vec(root.Offset))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "root joint")
	}

	// Breadth-first attachment; anything left over is unreachable.
	attached := 1
	queue := []string{root.Name}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, jd := range byParent[parent] {
			order, err := rotation.ParseOrder(jd.Order)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidOrder, err, "joint %q", jd.Name)
			}
			if _, err := s.AddJoint(skeleton.ByName(parent), jd.Name, order, vec(jd.Offset)); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "joint %q", jd.Name)
			}
			attached++
			queue = append(queue, jd.Name)
		}
	}
	if attached != len(d.Joints) {
		return nil, errors.New(errors.ErrCodeInvalidTopology,
			"%d joints are not reachable from the root", len(d.Joints)-attached)
	}

	s.SetFrameCount(d.Frames)
	s.SetFrameTime(d.FrameTime)
	if d.Positions != nil {
		if err := s.SetPositions(d.Positions); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDimensionMismatch, err, "root positions")
		}
	}
	for i := range d.Joints {
		jd := &d.Joints[i]
		if jd.Track == nil {
			continue
		}
		idx, err := s.Lookup(jd.Name)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNotFound, err, "joint %q", jd.Name)
		}
		if s.IsLeaf(idx) {
			return nil, errors.New(errors.ErrCodeInvalidTopology, "leaf %q carries a track", jd.Name)
		}
		if len(jd.Track) != d.Frames {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				"joint %q has %d rows for %d frames", jd.Name, len(jd.Track), d.Frames)
		}
		j, _ := s.Joint(idx)
		j.Track = jd.Track
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTopology, err, "rebuilt skeleton")
	}
	return s, nil
}

func vec(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}
