// Package plan loads and applies edit plans: TOML files listing skeleton
// operations to run in order. Plans are how reproducible edit pipelines are
// described on disk, for the CLI's edit command and the pipeline runner.
//
// A plan looks like:
//
//	[[op]]
//	kind = "insert-on-bone"
//	joint = "Spine1"
//	name = "Chest"
//	fraction = 0.5
//
//	[[op]]
//	kind = "remove"
//	joint = "Neck"
//
//	[[op]]
//	kind = "scale"
//	factor = 0.01
package plan

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
	"github.com/boneforge/boneforge/pkg/skeleton/transform"
)

// Op kinds accepted in a plan.
const (
	KindInsertOnBone   = "insert-on-bone"
	KindInsertChild    = "insert-child"
	KindRemove         = "remove"
	KindRename         = "rename"
	KindConvertOrder   = "convert-order"
	KindExtendFrames   = "extend-frames"
	KindScale          = "scale"
	KindZero           = "zero"
	KindProject        = "project"
	KindReplaceOffsets = "replace-offsets"
)

// Op is one step of an edit plan. Which fields matter depends on Kind.
type Op struct {
	Kind string `toml:"kind"`

	Joint    string     `toml:"joint,omitempty"`    // target joint name
	Name     string     `toml:"name,omitempty"`     // name for inserted joints
	Parent   string     `toml:"parent,omitempty"`   // parent for insert-child
	Primary  string     `toml:"primary,omitempty"`  // primary child for remove
	Fraction float64    `toml:"fraction,omitempty"` // split fraction for insert-on-bone
	Offset   [3]float64 `toml:"offset,omitempty"`   // offset for insert-child
	Reparent []string   `toml:"reparent,omitempty"` // children to move under insert-child

	Names map[string]string `toml:"names,omitempty"` // rename pairs

	Order  string  `toml:"order,omitempty"`  // target Euler sequence
	Frames int     `toml:"frames,omitempty"` // frames to append
	Factor float64 `toml:"factor,omitempty"` // scale factor

	Donor      string   `toml:"donor,omitempty"`      // donor BVH path
	Exclude    []string `toml:"exclude,omitempty"`    // joints exempt from replace-offsets
	Compensate bool     `toml:"compensate,omitempty"` // inject compensation on replace-offsets
}

// Plan is an ordered list of operations.
type Plan struct {
	Ops []Op `toml:"op"`
}

// Load reads and validates a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPlan, err, "read %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates TOML plan text.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPlan, err, "decode plan")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the plan's shape without touching a skeleton: known
// kinds, required fields present, parsable rotation orders.
func (p *Plan) Validate() error {
	if len(p.Ops) == 0 {
		return errors.New(errors.ErrCodeInvalidPlan, "plan has no operations")
	}
	for i := range p.Ops {
		op := &p.Ops[i]
		if err := op.validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPlan, err, "op %d (%s)", i+1, op.Kind)
		}
	}
	return nil
}

func (op *Op) validate() error {
	need := func(field, value string) error {
		if value == "" {
			return errors.New(errors.ErrCodeInvalidPlan, "missing %s", field)
		}
		return nil
	}
	switch op.Kind {
	case KindInsertOnBone:
		if err := need("joint", op.Joint); err != nil {
			return err
		}
		if err := errors.ValidateJointName(op.Name); err != nil {
			return err
		}
		if op.Fraction <= 0 || op.Fraction >= 1 {
			return errors.New(errors.ErrCodeInvalidPlan, "fraction %g outside (0, 1)", op.Fraction)
		}
	case KindInsertChild:
		if err := need("parent", op.Parent); err != nil {
			return err
		}
		return errors.ValidateJointName(op.Name)
	case KindRemove:
		return need("joint", op.Joint)
	case KindRename:
		if len(op.Names) == 0 {
			return errors.New(errors.ErrCodeInvalidPlan, "missing names")
		}
		for _, name := range op.Names {
			if err := errors.ValidateJointName(name); err != nil {
				return err
			}
		}
	case KindConvertOrder:
		if _, err := rotation.ParseOrder(op.Order); err != nil {
			return err
		}
	case KindExtendFrames:
		if op.Frames < 0 {
			return errors.New(errors.ErrCodeInvalidPlan, "frames %d is negative", op.Frames)
		}
	case KindScale:
		if op.Factor == 0 {
			return errors.New(errors.ErrCodeInvalidPlan, "factor must be non-zero")
		}
	case KindZero:
	case KindProject, KindReplaceOffsets:
		return need("donor", op.Donor)
	default:
		return errors.New(errors.ErrCodeInvalidPlan, "unknown kind %q", op.Kind)
	}
	return nil
}

// Apply runs the plan's operations against the skeleton in order. It stops
// at the first failing operation; earlier operations stay applied, matching
// the sequential semantics of batch removal.
func (p *Plan) Apply(s *skeleton.Skeleton) error {
	for i := range p.Ops {
		if err := p.Ops[i].apply(s); err != nil {
			return fmt.Errorf("op %d (%s): %w", i+1, p.Ops[i].Kind, err)
		}
	}
	return nil
}

func (op *Op) apply(s *skeleton.Skeleton) error {
	switch op.Kind {
	case KindInsertOnBone:
		_, err := transform.InsertOnBone(s, skeleton.ByName(op.Joint), op.Name, op.Fraction)
		return err

	case KindInsertChild:
		refs := make([]skeleton.Ref, len(op.Reparent))
		for i, n := range op.Reparent {
			refs[i] = skeleton.ByName(n)
		}
		_, err := transform.InsertChild(s, skeleton.ByName(op.Parent), op.Name, vec(op.Offset), refs)
		return err

	case KindRemove:
		var opts []transform.RemoveOption
		if op.Primary != "" {
			opts = append(opts, transform.WithPrimaryChild(skeleton.ByName(op.Primary)))
		}
		return transform.Remove(s, skeleton.ByName(op.Joint), opts...)

	case KindRename:
		return transform.Rename(s, op.Names)

	case KindConvertOrder:
		order, err := rotation.ParseOrder(op.Order)
		if err != nil {
			return err
		}
		if op.Joint != "" {
			return transform.ConvertOrder(s, skeleton.ByName(op.Joint), order)
		}
		return transform.ConvertOrderAll(s, order)

	case KindExtendFrames:
		return transform.ExtendFrames(s, op.Frames)

	case KindScale:
		return transform.Scale(s, op.Factor)

	case KindZero:
		transform.Zero(s)
		return nil

	case KindProject:
		donor, err := bvh.ParseFile(op.Donor)
		if err != nil {
			return err
		}
		_, err = transform.Project(s, donor)
		return err

	case KindReplaceOffsets:
		donor, err := bvh.ParseFile(op.Donor)
		if err != nil {
			return err
		}
		var opts []transform.RetargetOption
		if len(op.Exclude) > 0 {
			opts = append(opts, transform.WithExclude(op.Exclude...))
		}
		if op.Compensate {
			opts = append(opts, transform.WithCompensation())
		}
		_, err = transform.ReplaceOffsetsAll(s, donor, opts...)
		return err
	}
	return errors.New(errors.ErrCodeInvalidPlan, "unknown kind %q", op.Kind)
}

func vec(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}
