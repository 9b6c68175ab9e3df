package bvh

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// WriteFile serializes the skeleton to a BVH file.
func WriteFile(path string, s *skeleton.Skeleton) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create %s", path)
	}
	defer f.Close()
	if err := Write(f, s); err != nil {
		return err
	}
	return f.Close()
}

// Marshal serializes the skeleton to BVH text.
func Marshal(s *skeleton.Skeleton) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write serializes the skeleton as a BVH document. Leaf joints become End
// Site blocks, so their names are not preserved; everything else
// round-trips through [Parse].
func Write(w io.Writer, s *skeleton.Skeleton) error {
	bw := bufio.NewWriter(w)
	ww := &writer{s: s, w: bw}
	ww.hierarchy()
	ww.motion()
	if ww.err != nil {
		return ww.err
	}
	return bw.Flush()
}

type writer struct {
	s   *skeleton.Skeleton
	w   *bufio.Writer
	err error

	// channel column order, mirrored by the motion rows
	columns []channel
}

func (ww *writer) printf(format string, args ...any) {
	if ww.err != nil {
		return
	}
	if _, err := fmt.Fprintf(ww.w, format, args...); err != nil {
		ww.err = err
	}
}

func (ww *writer) hierarchy() {
	root := ww.s.Root()
	j, _ := ww.s.Joint(root)

	ww.printf("HIERARCHY\n")
	ww.printf("ROOT %s\n{\n", j.Name)
	ww.offset(1, ww.s.RootOffset())
	ww.printf("%sCHANNELS 6 Xposition Yposition Zposition %s\n", indent(1), rotChannels(j))
	for a := 0; a < 3; a++ {
		ww.columns = append(ww.columns, channel{joint: root, axis: a})
	}
	for a := 0; a < 3; a++ {
		ww.columns = append(ww.columns, channel{joint: root, rotation: true, axis: a})
	}
	for _, c := range ww.s.Children(root) {
		ww.joint(c, 1)
	}
	ww.printf("}\n")
}

func (ww *writer) joint(i, depth int) {
	j, _ := ww.s.Joint(i)
	if ww.s.IsLeaf(i) {
		ww.printf("%sEnd Site\n%s{\n", indent(depth), indent(depth))
		ww.offset(depth+1, ww.s.Offset(i))
		ww.printf("%s}\n", indent(depth))
		return
	}

	ww.printf("%sJOINT %s\n%s{\n", indent(depth), j.Name, indent(depth))
	ww.offset(depth+1, ww.s.Offset(i))
	ww.printf("%sCHANNELS 3 %s\n", indent(depth+1), rotChannels(j))
	for a := 0; a < 3; a++ {
		ww.columns = append(ww.columns, channel{joint: i, rotation: true, axis: a})
	}
	for _, c := range ww.s.Children(i) {
		ww.joint(c, depth+1)
	}
	ww.printf("%s}\n", indent(depth))
}

func (ww *writer) offset(depth int, v mgl64.Vec3) {
	ww.printf("%sOFFSET %s %s %s\n", indent(depth), num(v[0]), num(v[1]), num(v[2]))
}

func (ww *writer) motion() {
	ww.printf("MOTION\n")
	ww.printf("Frames: %d\n", ww.s.FrameCount())
	ww.printf("Frame Time: %s\n", num(ww.s.FrameTime()))

	for f := 0; f < ww.s.FrameCount(); f++ {
		fields := make([]string, 0, len(ww.columns))
		for _, col := range ww.columns {
			var v float64
			if col.rotation {
				j, _ := ww.s.Joint(col.joint)
				if j.Track != nil {
					v = j.Track[f][col.axis]
				}
			} else {
				v = ww.s.Positions()[f][col.axis]
			}
			fields = append(fields, num(v))
		}
		ww.printf("%s\n", strings.Join(fields, " "))
	}
}

// rotChannels renders a joint's Euler sequence as channel names, e.g.
// "Zrotation Xrotation Yrotation" for ZXY.
func rotChannels(j *skeleton.Joint) string {
	ax := j.Order.Axes()
	parts := make([]string, 3)
	for i, a := range ax {
		parts[i] = a.String() + "rotation"
	}
	return strings.Join(parts, " ")
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

// num formats a value compactly without losing precision.
func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
