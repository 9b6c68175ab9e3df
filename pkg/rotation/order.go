package rotation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidOrder is returned by [ParseOrder] when the input is not one of
// the twelve valid Euler sequences.
var ErrInvalidOrder = errors.New("invalid rotation order")

// Axis identifies one of the three principal rotation axes.
type Axis int

// Principal axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns "X", "Y" or "Z".
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Order is one of the twelve valid Euler rotation sequences. The three
// letters name the axes of the first, second and third elemental rotation;
// a stored angle triple (a1, a2, a3) is interpreted against the sequence
// position-by-position, so for XYZ the matrix is Rx(a1)·Ry(a2)·Rz(a3).
//
// Six sequences are Tait-Bryan (all axes distinct), six are proper Euler
// (first and third axis equal). The zero value is XYZ.
type Order int

// The twelve Euler sequences.
const (
	XYZ Order = iota
	XZY
	YXZ
	YZX
	ZXY
	ZYX
	XYX
	XZX
	YXY
	YZY
	ZXZ
	ZYZ
)

// orderAxes maps each sequence to its three rotation axes.
var orderAxes = [12][3]Axis{
	XYZ: {AxisX, AxisY, AxisZ},
	XZY: {AxisX, AxisZ, AxisY},
	YXZ: {AxisY, AxisX, AxisZ},
	YZX: {AxisY, AxisZ, AxisX},
	ZXY: {AxisZ, AxisX, AxisY},
	ZYX: {AxisZ, AxisY, AxisX},
	XYX: {AxisX, AxisY, AxisX},
	XZX: {AxisX, AxisZ, AxisX},
	YXY: {AxisY, AxisX, AxisY},
	YZY: {AxisY, AxisZ, AxisY},
	ZXZ: {AxisZ, AxisX, AxisZ},
	ZYZ: {AxisZ, AxisY, AxisZ},
}

// Orders lists all twelve sequences in a stable order.
// Useful for exhaustive iteration in tests and validation.
func Orders() []Order {
	return []Order{XYZ, XZY, YXZ, YZX, ZXY, ZYX, XYX, XZX, YXY, YZY, ZXZ, ZYZ}
}

// Valid reports whether o is one of the twelve defined sequences.
func (o Order) Valid() bool { return o >= XYZ && o <= ZYZ }

// Axes returns the three rotation axes of the sequence.
func (o Order) Axes() [3]Axis {
	if !o.Valid() {
		return orderAxes[XYZ]
	}
	return orderAxes[o]
}

// IsProper reports whether the sequence is a proper Euler sequence
// (first and third axis equal), as opposed to a Tait-Bryan sequence.
func (o Order) IsProper() bool {
	ax := o.Axes()
	return ax[0] == ax[2]
}

// String returns the three-letter sequence name, e.g. "ZXY".
func (o Order) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Order(%d)", int(o))
	}
	ax := orderAxes[o]
	return ax[0].String() + ax[1].String() + ax[2].String()
}

// ParseOrder converts a three-letter sequence name (case-insensitive) to an
// Order. Returns ErrInvalidOrder for anything that is not one of the twelve
// valid sequences.
func ParseOrder(s string) (Order, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, o := range Orders() {
		if o.String() == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOrder, s)
}
