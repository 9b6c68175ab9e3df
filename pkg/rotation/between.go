package rotation

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrDegenerateRotation is returned by [Between] when the two vectors are
// antiparallel within tolerance, because the minimal rotation is then not
// unique (any axis orthogonal to the vectors gives a 180° solution). Use
// [BetweenAxis] to supply a tie-break axis.
var ErrDegenerateRotation = errors.New("degenerate rotation: vectors are antiparallel")

// ErrZeroVector is returned when either input vector has zero length.
var ErrZeroVector = errors.New("rotation between zero-length vector")

// ParallelTol is the tolerance used to classify two directions as parallel
// or antiparallel: the cross-product magnitude of the normalized vectors is
// compared against it. Directions within ~1e-9 radians of each other fall
// inside the tolerance.
const ParallelTol = 1e-9

// Between computes the minimal rotation q such that q·a is parallel to b.
// The inputs need not be normalized but must be non-zero.
//
// Parallel vectors (within [ParallelTol]) yield the identity. Antiparallel
// vectors yield ErrDegenerateRotation; callers with a preferred flip axis
// should use [BetweenAxis] instead.
func Between(a, b mgl64.Vec3) (mgl64.Quat, error) {
	return between(a, b, nil)
}

// BetweenAxis is [Between] with an explicit tie-break: when a and b are
// antiparallel, the returned rotation is 180° about axis (which must be
// non-zero and should be orthogonal to a for an exact mapping).
func BetweenAxis(a, b, axis mgl64.Vec3) (mgl64.Quat, error) {
	if axis.Len() == 0 {
		return mgl64.QuatIdent(), ErrZeroVector
	}
	return between(a, b, &axis)
}

func between(a, b mgl64.Vec3, flip *mgl64.Vec3) (mgl64.Quat, error) {
	la, lb := a.Len(), b.Len()
	if la == 0 || lb == 0 {
		return mgl64.QuatIdent(), ErrZeroVector
	}
	an := a.Mul(1 / la)
	bn := b.Mul(1 / lb)

	cross := an.Cross(bn)
	sin := cross.Len()
	cos := an.Dot(bn)

	if sin < ParallelTol {
		if cos > 0 {
			return mgl64.QuatIdent(), nil
		}
		if flip == nil {
			return mgl64.QuatIdent(), ErrDegenerateRotation
		}
		return mgl64.QuatRotate(math.Pi, flip.Normalize()), nil
	}

	angle := math.Atan2(sin, cos)
	return mgl64.QuatRotate(angle, cross.Mul(1/sin)), nil
}
