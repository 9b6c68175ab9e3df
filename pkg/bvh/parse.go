package bvh

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/rotation"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// channel binds one motion column to a joint attribute.
type channel struct {
	joint    int
	rotation bool // otherwise a root position component
	axis     int  // 0..2, storage position within the row
}

type parser struct {
	toks []string
	pos  int

	skel     *skeleton.Skeleton
	channels []channel
}

// ParseFile reads a BVH file from disk.
func ParseFile(path string) (*skeleton.Skeleton, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "open %s", path)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a BVH document. The returned skeleton passes
// [skeleton.Skeleton.Validate].
func Parse(r io.Reader) (*skeleton.Skeleton, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)
	var toks []string
	for sc.Scan() {
		toks = append(toks, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "read input")
	}

	p := &parser{toks: toks}
	if err := p.hierarchy(); err != nil {
		return nil, err
	}
	if err := p.motion(); err != nil {
		return nil, err
	}
	if err := p.skel.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeParse, err, "inconsistent hierarchy")
	}
	return p.skel, nil
}

func (p *parser) next() (string, error) {
	if p.pos >= len(p.toks) {
		return "", errors.New(errors.ErrCodeParse, "unexpected end of input")
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *parser) expect(want string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if !strings.EqualFold(t, want) {
		return errors.New(errors.ErrCodeParse, "expected %q, got %q", want, t)
	}
	return nil
}

func (p *parser) float() (float64, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, errors.New(errors.ErrCodeParse, "expected number, got %q", t)
	}
	return v, nil
}

func (p *parser) int() (int, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, errors.New(errors.ErrCodeParse, "expected integer, got %q", t)
	}
	return v, nil
}

func (p *parser) vec3() (mgl64.Vec3, error) {
	var v mgl64.Vec3
	for i := 0; i < 3; i++ {
		f, err := p.float()
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

func (p *parser) hierarchy() error {
	if err := p.expect("HIERARCHY"); err != nil {
		return err
	}
	if err := p.expect("ROOT"); err != nil {
		return err
	}
	name, err := p.next()
	if err != nil {
		return err
	}
	if err := p.expect("{"); err != nil {
		return err
	}
	off, order, pos, rot, err := p.jointHeader(true)
	if err != nil {
		return err
	}

	p.skel, err = skeleton.New(name, order, off)
	if err != nil {
		return errors.Wrap(errors.ErrCodeParse, err, "root joint")
	}
	root := p.skel.Root()
	p.bind(root, pos, rot)

	if err := p.body(root); err != nil {
		return err
	}
	return nil
}

// jointHeader parses OFFSET and CHANNELS. Position channels are only legal
// on the root. The rotation channels define the joint's Euler sequence.
func (p *parser) jointHeader(isRoot bool) (mgl64.Vec3, rotation.Order, bool, bool, error) {
	if err := p.expect("OFFSET"); err != nil {
		return mgl64.Vec3{}, 0, false, false, err
	}
	off, err := p.vec3()
	if err != nil {
		return mgl64.Vec3{}, 0, false, false, err
	}
	if err := p.expect("CHANNELS"); err != nil {
		return mgl64.Vec3{}, 0, false, false, err
	}
	n, err := p.int()
	if err != nil {
		return mgl64.Vec3{}, 0, false, false, err
	}

	var axes strings.Builder
	hasPos, hasRot := false, false
	for i := 0; i < n; i++ {
		ch, err := p.next()
		if err != nil {
			return mgl64.Vec3{}, 0, false, false, err
		}
		lower := strings.ToLower(ch)
		switch {
		case strings.HasSuffix(lower, "position"):
			if !isRoot {
				return mgl64.Vec3{}, 0, false, false,
					errors.New(errors.ErrCodeParse, "position channel %q outside the root", ch)
			}
			hasPos = true
		case strings.HasSuffix(lower, "rotation"):
			hasRot = true
			axes.WriteString(strings.ToUpper(ch[:1]))
		default:
			return mgl64.Vec3{}, 0, false, false,
				errors.New(errors.ErrCodeParse, "unknown channel %q", ch)
		}
	}

	order := rotation.XYZ
	if hasRot {
		order, err = rotation.ParseOrder(axes.String())
		if err != nil {
			return mgl64.Vec3{}, 0, false, false,
				errors.Wrap(errors.ErrCodeParse, err, "rotation channels")
		}
	}
	return off, order, hasPos, hasRot, nil
}

// bind appends the joint's motion columns in declaration order. BVH always
// writes position channels before rotation channels.
func (p *parser) bind(joint int, pos, rot bool) {
	if pos {
		for a := 0; a < 3; a++ {
			p.channels = append(p.channels, channel{joint: joint, axis: a})
		}
	}
	if rot {
		for a := 0; a < 3; a++ {
			p.channels = append(p.channels, channel{joint: joint, rotation: true, axis: a})
		}
	}
}

// body parses the children of a joint up to the closing brace.
func (p *parser) body(parent int) error {
	for {
		t, err := p.next()
		if err != nil {
			return err
		}
		switch strings.ToUpper(t) {
		case "}":
			return nil

		case "JOINT":
			name, err := p.next()
			if err != nil {
				return err
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			off, order, pos, rot, err := p.jointHeader(false)
			if err != nil {
				return err
			}
			j, err := p.skel.AddJoint(skeleton.ByIndex(parent), name, order, off)
			if err != nil {
				return errors.Wrap(errors.ErrCodeParse, err, "joint %q", name)
			}
			p.bind(j, pos, rot)
			if err := p.body(j); err != nil {
				return err
			}

		case "END":
			// "End Site" block: a leaf with an offset and no channels.
			if err := p.expect("Site"); err != nil {
				return err
			}
			if err := p.expect("{"); err != nil {
				return err
			}
			if err := p.expect("OFFSET"); err != nil {
				return err
			}
			off, err := p.vec3()
			if err != nil {
				return err
			}
			if err := p.expect("}"); err != nil {
				return err
			}
			pj, _ := p.skel.Joint(parent)
			if _, err := p.skel.AddJoint(skeleton.ByIndex(parent), p.endName(pj.Name), rotation.XYZ, off); err != nil {
				return errors.Wrap(errors.ErrCodeParse, err, "end site of %q", pj.Name)
			}

		default:
			return errors.New(errors.ErrCodeParse, "unexpected token %q in joint body", t)
		}
	}
}

// endName derives a unique name for an unnamed End Site.
func (p *parser) endName(parent string) string {
	name := parent + "_end"
	for n := 2; ; n++ {
		if _, err := p.skel.Lookup(name); err != nil {
			return name
		}
		name = parent + "_end" + strconv.Itoa(n)
	}
}

func (p *parser) motion() error {
	if err := p.expect("MOTION"); err != nil {
		return err
	}
	if err := p.expect("Frames:"); err != nil {
		return err
	}
	frames, err := p.int()
	if err != nil {
		return err
	}
	if frames < 0 {
		return errors.New(errors.ErrCodeParse, "negative frame count %d", frames)
	}
	if err := p.expect("Frame"); err != nil {
		return err
	}
	if err := p.expect("Time:"); err != nil {
		return err
	}
	ft, err := p.float()
	if err != nil {
		return err
	}

	p.skel.SetFrameCount(frames)
	p.skel.SetFrameTime(ft)

	for f := 0; f < frames; f++ {
		for _, ch := range p.channels {
			v, err := p.float()
			if err != nil {
				return errors.Wrap(errors.ErrCodeParse, err, "motion frame %d", f)
			}
			if ch.rotation {
				j, _ := p.skel.Joint(ch.joint)
				if j.Track != nil {
					j.Track[f][ch.axis] = v
				}
			} else {
				p.skel.Positions()[f][ch.axis] = v
			}
		}
	}
	if p.pos != len(p.toks) {
		return errors.New(errors.ErrCodeParse, "%d trailing values after motion data", len(p.toks)-p.pos)
	}
	return nil
}
