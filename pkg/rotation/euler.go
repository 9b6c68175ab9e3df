package rotation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// gimbalTol is the threshold on the middle-angle sine (Tait-Bryan) or
// cosine (proper Euler) beyond which a matrix is treated as gimbal-locked.
// Inside the locked region the third angle is reported as zero and the
// first absorbs the free degree of freedom; the returned triple still
// reconstructs the input matrix exactly.
const gimbalTol = 1e-12

// axisMat returns the elemental rotation matrix about a, angle in radians.
func axisMat(a Axis, rad float64) mgl64.Mat3 {
	switch a {
	case AxisX:
		return mgl64.Rotate3DX(rad)
	case AxisY:
		return mgl64.Rotate3DY(rad)
	default:
		return mgl64.Rotate3DZ(rad)
	}
}

// axisVec returns the unit vector along a.
func axisVec(a Axis) mgl64.Vec3 {
	switch a {
	case AxisX:
		return mgl64.Vec3{1, 0, 0}
	case AxisY:
		return mgl64.Vec3{0, 1, 0}
	default:
		return mgl64.Vec3{0, 0, 1}
	}
}

// EulerToMat builds the rotation matrix for the angle triple under the given
// sequence. Angles are in degrees; the matrix is the product of the three
// elemental rotations in sequence position order, so for XYZ it is
// Rx(a1)·Ry(a2)·Rz(a3) acting on column vectors.
func EulerToMat(angles [3]float64, order Order) mgl64.Mat3 {
	ax := order.Axes()
	m := axisMat(ax[0], mgl64.DegToRad(angles[0]))
	m = m.Mul3(axisMat(ax[1], mgl64.DegToRad(angles[1])))
	return m.Mul3(axisMat(ax[2], mgl64.DegToRad(angles[2])))
}

// EulerToQuat builds the unit quaternion for the angle triple under the given
// sequence. Angles are in degrees. The quaternion represents the same
// rotation as [EulerToMat].
func EulerToQuat(angles [3]float64, order Order) mgl64.Quat {
	ax := order.Axes()
	q := mgl64.QuatRotate(mgl64.DegToRad(angles[0]), axisVec(ax[0]))
	q = q.Mul(mgl64.QuatRotate(mgl64.DegToRad(angles[1]), axisVec(ax[1])))
	return q.Mul(mgl64.QuatRotate(mgl64.DegToRad(angles[2]), axisVec(ax[2])))
}

// QuatToEuler extracts the angle triple (degrees) for q under the given
// sequence. See [MatToEuler] for the gimbal-lock behavior.
func QuatToEuler(q mgl64.Quat, order Order) [3]float64 {
	return MatToEuler(q.Normalize().Mat4().Mat3(), order)
}

// MatToEuler extracts the angle triple (degrees) that reproduces m under the
// given sequence: EulerToMat(MatToEuler(m, o), o) == m up to floating-point
// precision for any rotation matrix m.
//
// At gimbal lock (middle angle at ±90° for Tait-Bryan sequences, 0° or 180°
// for proper Euler sequences) the decomposition is not unique; the third
// angle is returned as zero and the first angle absorbs the remaining
// rotation. The returned triple still reconstructs m exactly.
func MatToEuler(m mgl64.Mat3, order Order) [3]float64 {
	ax := order.Axes()
	if order.IsProper() {
		return properEuler(m, ax)
	}
	return taitBryan(m, ax)
}

func taitBryan(m mgl64.Mat3, ax [3]Axis) [3]float64 {
	i, j, k := int(ax[0]), int(ax[1]), int(ax[2])
	eps := permSign(ax[0], ax[1])

	sb := clamp1(eps * m.At(i, k))
	if 1-math.Abs(sb) < gimbalTol {
		beta := math.Copysign(math.Pi/2, sb)
		return lockedTriple(m, ax, beta)
	}

	beta := math.Asin(sb)
	alpha := math.Atan2(-eps*m.At(j, k), m.At(k, k))
	gamma := math.Atan2(-eps*m.At(i, j), m.At(i, i))
	return degTriple(alpha, beta, gamma)
}

func properEuler(m mgl64.Mat3, ax [3]Axis) [3]float64 {
	i, j := int(ax[0]), int(ax[1])
	k := 3 - i - j // the axis not in the sequence
	eps := permSign(ax[0], ax[1])

	cb := clamp1(m.At(i, i))
	if 1-math.Abs(cb) < gimbalTol {
		beta := 0.0
		if cb < 0 {
			beta = math.Pi
		}
		return lockedTriple(m, ax, beta)
	}

	beta := math.Acos(cb)
	alpha := math.Atan2(m.At(j, i), -eps*m.At(k, i))
	gamma := math.Atan2(m.At(i, j), eps*m.At(i, k))
	return degTriple(alpha, beta, gamma)
}

// lockedTriple solves the gimbal-locked case by fixing the third angle to
// zero: with gamma = 0 the matrix factors as Ra(alpha)·Rb(beta), so alpha
// can be read off Ra = m·Rb(beta)ᵀ.
func lockedTriple(m mgl64.Mat3, ax [3]Axis, beta float64) [3]float64 {
	ra := m.Mul3(axisMat(ax[1], beta).Transpose())
	a := int(ax[0])
	alpha := math.Atan2(ra.At((a+2)%3, (a+1)%3), ra.At((a+1)%3, (a+1)%3))
	return degTriple(alpha, beta, 0)
}

// permSign returns +1 when (first, second, remaining) is an even permutation
// of (X, Y, Z), -1 otherwise.
func permSign(first, second Axis) float64 {
	if (int(first)+1)%3 == int(second) {
		return 1
	}
	return -1
}

func degTriple(a, b, c float64) [3]float64 {
	return [3]float64{mgl64.RadToDeg(a), mgl64.RadToDeg(b), mgl64.RadToDeg(c)}
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
