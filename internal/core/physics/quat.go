package physics

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quat is a rotation quaternion. Real is the scalar part; Imag, Jmag and
// Kmag hold the x, y and z components.
type Quat quat.Number

// IdentityQuat returns the no-rotation quaternion.
func IdentityQuat() Quat { return Quat{Real: 1} }

// FromAxisAngle builds a rotation of angle radians around axis.
func FromAxisAngle(axis Vec3, angle float64) Quat {
	n := r3.Norm(axis)
	if n <= SmallNumber {
		return IdentityQuat()
	}
	axis = r3.Scale(1/n, axis)
	s := math.Sin(angle / 2)
	return Quat{Real: math.Cos(angle / 2), Imag: axis.X * s, Jmag: axis.Y * s, Kmag: axis.Z * s}
}

func (q Quat) number() quat.Number { return quat.Number(q) }

// Mul returns q*o, which applies o first and then q.
func (q Quat) Mul(o Quat) Quat { return Quat(quat.Mul(q.number(), o.number())) }

// Conj returns the conjugate, which is the inverse of a unit quaternion.
func (q Quat) Conj() Quat { return Quat(quat.Conj(q.number())) }

// Size returns the quaternion norm.
func (q Quat) Size() float64 { return quat.Abs(q.number()) }

// Dot returns the 4D dot product.
func (q Quat) Dot(o Quat) float64 {
	return q.Real*o.Real + q.Imag*o.Imag + q.Jmag*o.Jmag + q.Kmag*o.Kmag
}

// Normalize returns q scaled to unit length, or the identity for a
// degenerate quaternion.
func (q Quat) Normalize() Quat {
	n := q.Size()
	if n <= SmallNumber {
		return IdentityQuat()
	}
	return Quat(quat.Scale(1/n, q.number()))
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q.number(), p), quat.Conj(q.number()))
	return Vec3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// Equal reports whether q and o describe the same rotation within tolerance.
func (q Quat) Equal(o Quat, tolerance float64) bool {
	d := math.Abs(q.Dot(o))
	return 1-d <= tolerance
}

// Slerp interpolates along the shortest arc between a and b and returns a
// normalised result.
func Slerp(a, b Quat, f float64) Quat {
	cos := a.Dot(b)
	if cos < 0 {
		b = Quat(quat.Scale(-1, b.number()))
		cos = -cos
	}

	var sa, sb float64
	if cos > 0.9999 {
		sa, sb = 1-f, f
	} else {
		omega := math.Acos(cos)
		sin := math.Sin(omega)
		sa = math.Sin((1-f)*omega) / sin
		sb = math.Sin(f*omega) / sin
	}

	r := quat.Add(quat.Scale(sa, a.number()), quat.Scale(sb, b.number()))
	return Quat(r).Normalize()
}
