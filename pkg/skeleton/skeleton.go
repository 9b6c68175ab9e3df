package skeleton

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/rotation"
)

var (
	// ErrInvalidName is returned by [Skeleton.AddJoint] and [Skeleton.Rename]
	// when the joint name is empty. All joints must have non-empty names.
	ErrInvalidName = errors.New("joint name must not be empty")

	// ErrDuplicateName is returned when a joint with the same name already
	// exists. Joint names must be unique because operations accept joints
	// by name.
	ErrDuplicateName = errors.New("duplicate joint name")

	// ErrNotFound is returned by [Skeleton.Lookup], [Skeleton.Resolve] and
	// name-based operations when no joint matches.
	ErrNotFound = errors.New("joint not found")

	// ErrInvalidTopology is returned when an edit would break the tree
	// shape: re-parenting a joint under its own descendant, removing a
	// joint that still has children, operating on a bone that does not
	// exist, or removing the root.
	ErrInvalidTopology = errors.New("invalid topology")

	// ErrDimensionMismatch is returned when a rotation or position track
	// does not have exactly one row per frame before an edit that assumes
	// frame alignment.
	ErrDimensionMismatch = errors.New("track length does not match frame count")

	// ErrFrameRange is returned when a frame index is outside [0, FrameCount).
	ErrFrameRange = errors.New("frame index out of range")
)

// Joint is a node of the skeletal hierarchy. Non-leaf joints carry a
// rotation track with one Euler-angle row (degrees, interpreted under Order)
// per animation frame. Leaf joints are end sites: they carry no rotation
// track and represent terminal points such as fingertips.
type Joint struct {
	Name  string
	Order rotation.Order

	// Track holds one angle triple per frame for non-leaf joints and is nil
	// for leaves. Rows are interpreted against Order.
	Track [][3]float64
}

// Skeleton is a rooted tree of joints connected by fixed-length offset
// vectors, with per-joint rotation tracks and a root position track. Joints
// are stored in an arena and addressed by stable integer indices that
// survive unrelated edits; removed slots are never reused.
//
// The zero value is not usable - use [New]. Skeleton is not safe for
// concurrent use without external synchronization.
type Skeleton struct {
	joints   []*Joint       // arena; nil entries are removed joints
	names    map[string]int // name -> arena index
	parent   map[int]int    // child index -> parent index
	children map[int][]int  // parent index -> child indices, insertion order
	offsets  map[int]mgl64.Vec3

	root       int
	rootOffset mgl64.Vec3
	positions  [][3]float64 // F×3 root translation track
	frames     int
	frameTime  float64
}

// New creates a skeleton containing only the root joint. The root starts as
// a leaf; adding its first child promotes it to a rotating joint with a
// zero track of the current frame length. Frame count starts at zero - use
// SetFrameCount or the transform package's frame extension to grow it.
func New(rootName string, order rotation.Order, rootOffset mgl64.Vec3) (*Skeleton, error) {
	if rootName == "" {
		return nil, ErrInvalidName
	}
	s := &Skeleton{
		names:      map[string]int{rootName: 0},
		parent:     map[int]int{},
		children:   map[int][]int{},
		offsets:    map[int]mgl64.Vec3{},
		root:       0,
		rootOffset: rootOffset,
		frameTime:  1.0 / 30.0,
	}
	s.joints = append(s.joints, &Joint{Name: rootName, Order: order})
	return s, nil
}

// Ref addresses a joint either by arena index or by unique name, so callers
// can use whichever identity they have at hand.
type Ref struct {
	name    string
	index   int
	byIndex bool
}

// ByIndex returns a Ref addressing the joint at arena index i.
func ByIndex(i int) Ref { return Ref{index: i, byIndex: true} }

// ByName returns a Ref addressing the joint with the given display name.
func ByName(name string) Ref { return Ref{name: name} }

// String describes the reference for error messages.
func (r Ref) String() string {
	if r.byIndex {
		return fmt.Sprintf("#%d", r.index)
	}
	return fmt.Sprintf("%q", r.name)
}

// Resolve converts a Ref to an arena index. Returns ErrNotFound (wrapped
// with the reference) when the joint does not exist.
func (s *Skeleton) Resolve(r Ref) (int, error) {
	if r.byIndex {
		if !s.exists(r.index) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, r)
		}
		return r.index, nil
	}
	return s.Lookup(r.name)
}

// Lookup returns the arena index of the joint with the given name, or
// ErrNotFound if no joint matches.
func (s *Skeleton) Lookup(name string) (int, error) {
	i, ok := s.names[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return i, nil
}

func (s *Skeleton) exists(i int) bool {
	return i >= 0 && i < len(s.joints) && s.joints[i] != nil
}

// Joint returns the joint record at index i and true, or nil and false.
// The pointer refers to the live record; Track and Order edits are visible
// to the skeleton (use Rename for name changes so the index stays valid).
func (s *Skeleton) Joint(i int) (*Joint, bool) {
	if !s.exists(i) {
		return nil, false
	}
	return s.joints[i], true
}

// Root returns the arena index of the root joint.
func (s *Skeleton) Root() int { return s.root }

// Parent returns the parent index of joint i and true, or 0 and false for
// the root or an unknown index.
func (s *Skeleton) Parent(i int) (int, bool) {
	p, ok := s.parent[i]
	return p, ok
}

// Children returns the child indices of joint i in insertion order.
// The returned slice is a read-only view; do not modify it.
func (s *Skeleton) Children(i int) []int { return s.children[i] }

// IsLeaf reports whether joint i has no children (an end site).
func (s *Skeleton) IsLeaf(i int) bool { return s.exists(i) && len(s.children[i]) == 0 }

// Indices returns the arena indices of all live joints in ascending order.
func (s *Skeleton) Indices() []int {
	out := make([]int, 0, len(s.names))
	for i, j := range s.joints {
		if j != nil {
			out = append(out, i)
		}
	}
	return out
}

// JointCount returns the number of live joints.
func (s *Skeleton) JointCount() int { return len(s.names) }

// FrameCount returns the number of animation frames F.
func (s *Skeleton) FrameCount() int { return s.frames }

// FrameTime returns the duration of a single frame in seconds.
func (s *Skeleton) FrameTime() float64 { return s.frameTime }

// SetFrameTime sets the duration of a single frame in seconds.
func (s *Skeleton) SetFrameTime(t float64) { s.frameTime = t }

// RootOffset returns the bind-pose placement of the root joint.
func (s *Skeleton) RootOffset() mgl64.Vec3 { return s.rootOffset }

// SetRootOffset sets the bind-pose placement of the root joint.
func (s *Skeleton) SetRootOffset(v mgl64.Vec3) { s.rootOffset = v }

// Offset returns the bind-pose offset of the bone parent→i, i.e. the local
// translation from i's parent to i. Returns the zero vector for the root.
func (s *Skeleton) Offset(i int) mgl64.Vec3 { return s.offsets[i] }

// SetOffset replaces the bind-pose offset of the bone parent→i.
// Returns ErrInvalidTopology when i is the root or unknown.
func (s *Skeleton) SetOffset(i int, v mgl64.Vec3) error {
	if !s.exists(i) || i == s.root {
		return fmt.Errorf("%w: no bone into joint #%d", ErrInvalidTopology, i)
	}
	s.offsets[i] = v
	return nil
}

// PositionAt returns the root world translation at frame f.
func (s *Skeleton) PositionAt(f int) (mgl64.Vec3, error) {
	if f < 0 || f >= s.frames {
		return mgl64.Vec3{}, fmt.Errorf("%w: %d of %d", ErrFrameRange, f, s.frames)
	}
	p := s.positions[f]
	return mgl64.Vec3{p[0], p[1], p[2]}, nil
}

// SetPositionAt sets the root world translation at frame f.
func (s *Skeleton) SetPositionAt(f int, v mgl64.Vec3) error {
	if f < 0 || f >= s.frames {
		return fmt.Errorf("%w: %d of %d", ErrFrameRange, f, s.frames)
	}
	s.positions[f] = [3]float64{v[0], v[1], v[2]}
	return nil
}

// Positions returns the root position track (F×3). The slice is live.
func (s *Skeleton) Positions() [][3]float64 { return s.positions }

// SetPositions replaces the root position track. The track must have
// exactly one row per frame.
func (s *Skeleton) SetPositions(track [][3]float64) error {
	if len(track) != s.frames {
		return fmt.Errorf("%w: %d rows for %d frames", ErrDimensionMismatch, len(track), s.frames)
	}
	s.positions = track
	return nil
}

// SetFrameCount resizes every rotation track and the root position track to
// exactly f rows, zero-padding or truncating at the end. All tracks change
// together so the frame-alignment invariant holds afterwards.
func (s *Skeleton) SetFrameCount(f int) {
	if f < 0 {
		f = 0
	}
	s.positions = resizeTrack(s.positions, f)
	for _, j := range s.joints {
		if j != nil && j.Track != nil {
			j.Track = resizeTrack(j.Track, f)
		}
	}
	s.frames = f
}

func resizeTrack(track [][3]float64, f int) [][3]float64 {
	if f <= len(track) {
		return track[:f]
	}
	out := make([][3]float64, f)
	copy(out, track)
	return out
}

// RotationAt returns joint i's rotation at frame f as a quaternion.
// Leaves rotate by the identity.
func (s *Skeleton) RotationAt(i, f int) (mgl64.Quat, error) {
	j, ok := s.Joint(i)
	if !ok {
		return mgl64.QuatIdent(), fmt.Errorf("%w: #%d", ErrNotFound, i)
	}
	if j.Track == nil {
		return mgl64.QuatIdent(), nil
	}
	if f < 0 || f >= len(j.Track) {
		return mgl64.QuatIdent(), fmt.Errorf("%w: %d of %d", ErrFrameRange, f, len(j.Track))
	}
	return rotation.EulerToQuat(j.Track[f], j.Order), nil
}

// SetRotationAt stores q as joint i's rotation at frame f, re-extracting
// Euler angles under the joint's rotation order.
func (s *Skeleton) SetRotationAt(i, f int, q mgl64.Quat) error {
	j, ok := s.Joint(i)
	if !ok {
		return fmt.Errorf("%w: #%d", ErrNotFound, i)
	}
	if j.Track == nil {
		return fmt.Errorf("%w: joint %q is a leaf", ErrInvalidTopology, j.Name)
	}
	if f < 0 || f >= len(j.Track) {
		return fmt.Errorf("%w: %d of %d", ErrFrameRange, f, len(j.Track))
	}
	j.Track[f] = rotation.QuatToEuler(q, j.Order)
	return nil
}

// AddJoint creates a new joint as a child of parent with the given
// bind-pose offset. The new joint starts as a leaf (nil track); if the
// parent was a leaf it is promoted to a rotating joint with a zero track of
// the current frame length. Returns the new joint's arena index.
func (s *Skeleton) AddJoint(parent Ref, name string, order rotation.Order, offset mgl64.Vec3) (int, error) {
	if name == "" {
		return 0, ErrInvalidName
	}
	if _, exists := s.names[name]; exists {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	p, err := s.Resolve(parent)
	if err != nil {
		return 0, err
	}

	i := len(s.joints)
	s.joints = append(s.joints, &Joint{Name: name, Order: order})
	s.names[name] = i
	s.parent[i] = p
	s.children[p] = append(s.children[p], i)
	s.offsets[i] = offset
	s.promote(p)
	return i, nil
}

// promote gives a joint that just gained its first child a zero rotation
// track of the current frame length.
func (s *Skeleton) promote(i int) {
	if j := s.joints[i]; j.Track == nil {
		j.Track = make([][3]float64, s.frames)
	}
}

// demote turns a joint that lost its last child back into an end site.
func (s *Skeleton) demote(i int) {
	if len(s.children[i]) == 0 {
		s.joints[i].Track = nil
	}
}

// Reparent moves joint i under newParent with the given bind-pose offset,
// keeping its subtree intact. Returns ErrInvalidTopology when i is the
// root, when newParent lies inside i's subtree (which would create a
// cycle), or when either joint is unknown.
func (s *Skeleton) Reparent(i, newParent int, offset mgl64.Vec3) error {
	if !s.exists(i) || !s.exists(newParent) {
		return fmt.Errorf("%w: unknown joint", ErrNotFound)
	}
	if i == s.root {
		return fmt.Errorf("%w: cannot re-parent the root", ErrInvalidTopology)
	}
	if i == newParent || s.isDescendant(newParent, i) {
		return fmt.Errorf("%w: %q is inside the subtree of %q", ErrInvalidTopology,
			s.joints[newParent].Name, s.joints[i].Name)
	}

	old := s.parent[i]
	s.children[old] = slices.DeleteFunc(s.children[old], func(c int) bool { return c == i })
	s.parent[i] = newParent
	s.children[newParent] = append(s.children[newParent], i)
	s.offsets[i] = offset
	s.promote(newParent)
	s.demote(old)
	return nil
}

// isDescendant reports whether candidate lies in the subtree rooted at i.
func (s *Skeleton) isDescendant(candidate, i int) bool {
	for _, c := range s.children[i] {
		if c == candidate || s.isDescendant(candidate, c) {
			return true
		}
	}
	return false
}

// RemoveJoint deletes a childless joint and its incoming bone. The parent
// becomes an end site if this was its last child. Removing a joint that
// still has children is ErrInvalidTopology - re-parent them first.
func (s *Skeleton) RemoveJoint(i int) error {
	if !s.exists(i) {
		return fmt.Errorf("%w: #%d", ErrNotFound, i)
	}
	if i == s.root {
		return fmt.Errorf("%w: cannot remove the root", ErrInvalidTopology)
	}
	if len(s.children[i]) > 0 {
		return fmt.Errorf("%w: joint %q still has children", ErrInvalidTopology, s.joints[i].Name)
	}

	p := s.parent[i]
	s.children[p] = slices.DeleteFunc(s.children[p], func(c int) bool { return c == i })
	delete(s.parent, i)
	delete(s.children, i)
	delete(s.offsets, i)
	delete(s.names, s.joints[i].Name)
	s.joints[i] = nil
	s.demote(p)
	return nil
}

// Rename changes a joint's display name, updating the name index.
// Returns ErrNotFound if old does not resolve and ErrDuplicateName if the
// new name is taken.
func (s *Skeleton) Rename(old, new string) error {
	if new == "" {
		return ErrInvalidName
	}
	i, ok := s.names[old]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, old)
	}
	if _, taken := s.names[new]; taken && new != old {
		return fmt.Errorf("%w: %q", ErrDuplicateName, new)
	}
	delete(s.names, old)
	s.names[new] = i
	s.joints[i].Name = new
	return nil
}

// Validate checks structural integrity and returns nil if the skeleton is
// consistent:
//
//  1. Every live non-root joint has exactly one parent and an offset.
//  2. Parent/children adjacency agree and contain no cycle.
//  3. The name index matches the arena exactly.
//  4. Non-leaf tracks have one row per frame; leaves have nil tracks.
//  5. The root position track has one row per frame.
//
// Use this after hand-building a skeleton or deserializing external data.
func (s *Skeleton) Validate() error {
	if !s.exists(s.root) {
		return fmt.Errorf("%w: missing root", ErrInvalidTopology)
	}
	for _, i := range s.Indices() {
		j := s.joints[i]
		if got, ok := s.names[j.Name]; !ok || got != i {
			return fmt.Errorf("%w: name index entry for %q", ErrInvalidTopology, j.Name)
		}
		if i == s.root {
			continue
		}
		p, ok := s.parent[i]
		if !ok || !s.exists(p) {
			return fmt.Errorf("%w: joint %q has no parent", ErrInvalidTopology, j.Name)
		}
		if !slices.Contains(s.children[p], i) {
			return fmt.Errorf("%w: adjacency mismatch at %q", ErrInvalidTopology, j.Name)
		}
		if _, ok := s.offsets[i]; !ok {
			return fmt.Errorf("%w: joint %q has no bone offset", ErrInvalidTopology, j.Name)
		}
	}
	if err := s.detectCycle(); err != nil {
		return err
	}
	if len(s.positions) != s.frames {
		return fmt.Errorf("%w: root positions have %d rows for %d frames",
			ErrDimensionMismatch, len(s.positions), s.frames)
	}
	for _, i := range s.Indices() {
		j := s.joints[i]
		switch {
		case s.IsLeaf(i) && j.Track != nil:
			return fmt.Errorf("%w: leaf %q carries a rotation track", ErrInvalidTopology, j.Name)
		case !s.IsLeaf(i) && len(j.Track) != s.frames:
			return fmt.Errorf("%w: joint %q has %d rows for %d frames",
				ErrDimensionMismatch, j.Name, len(j.Track), s.frames)
		}
	}
	return nil
}

func (s *Skeleton) detectCycle() error {
	const (
		white = iota
		gray
		black
	)
	color := make(map[int]int, len(s.names))
	var hasCycle bool

	var dfs func(i int)
	dfs = func(i int) {
		color[i] = gray
		for _, c := range s.children[i] {
			switch color[c] {
			case white:
				dfs(c)
			case gray:
				hasCycle = true
				return
			}
		}
		color[i] = black
	}

	dfs(s.root)
	if hasCycle {
		return fmt.Errorf("%w: hierarchy contains a cycle", ErrInvalidTopology)
	}
	for _, i := range s.Indices() {
		if color[i] == white {
			return fmt.Errorf("%w: joint %q is unreachable from the root",
				ErrInvalidTopology, s.joints[i].Name)
		}
	}
	return nil
}

// Clone returns a deep copy sharing no mutable state with the original.
// Arena indices are preserved, including removed slots.
func (s *Skeleton) Clone() *Skeleton {
	out := &Skeleton{
		joints:     make([]*Joint, len(s.joints)),
		names:      make(map[string]int, len(s.names)),
		parent:     make(map[int]int, len(s.parent)),
		children:   make(map[int][]int, len(s.children)),
		offsets:    make(map[int]mgl64.Vec3, len(s.offsets)),
		root:       s.root,
		rootOffset: s.rootOffset,
		positions:  slices.Clone(s.positions),
		frames:     s.frames,
		frameTime:  s.frameTime,
	}
	for i, j := range s.joints {
		if j == nil {
			continue
		}
		cp := &Joint{Name: j.Name, Order: j.Order}
		if j.Track != nil {
			cp.Track = slices.Clone(j.Track)
		}
		out.joints[i] = cp
	}
	for name, i := range s.names {
		out.names[name] = i
	}
	for c, p := range s.parent {
		out.parent[c] = p
	}
	for p, cs := range s.children {
		out.children[p] = slices.Clone(cs)
	}
	for c, v := range s.offsets {
		out.offsets[c] = v
	}
	return out
}
