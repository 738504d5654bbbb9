package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// SmallNumber is the tolerance used for "nearly zero" blend factors and
// degenerate normalisation.
const SmallNumber = 1e-8

// Vec3 is a 3D vector. It aliases the gonum r3 vector so the r3 package
// functions apply directly.
type Vec3 = r3.Vec

// One is the unit scale.
var One = Vec3{X: 1, Y: 1, Z: 1}

// Lerp linearly interpolates between two scalars.
func Lerp(a, b, f float64) float64 { return a + (b-a)*f }

// LerpVec linearly interpolates between two vectors.
func LerpVec(a, b Vec3, f float64) Vec3 {
	return r3.Add(a, r3.Scale(f, r3.Sub(b, a)))
}

// NearlyEqual reports whether a and b differ by at most tolerance.
func NearlyEqual(a, b, tolerance float64) bool { return math.Abs(a-b) <= tolerance }

// NearlyEqualVec compares two vectors component-wise.
func NearlyEqualVec(a, b Vec3, tolerance float64) bool {
	return NearlyEqual(a.X, b.X, tolerance) &&
		NearlyEqual(a.Y, b.Y, tolerance) &&
		NearlyEqual(a.Z, b.Z, tolerance)
}

func mulVec(a, b Vec3) Vec3 { return Vec3{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z} }

func safeReciprocal(v Vec3) Vec3 {
	inv := func(x float64) float64 {
		if math.Abs(x) <= SmallNumber {
			return 0
		}
		return 1 / x
	}
	return Vec3{X: inv(v.X), Y: inv(v.Y), Z: inv(v.Z)}
}

// Transform is a translation, rotation and scale. Scale is applied first,
// then rotation, then translation.
type Transform struct {
	Translation Vec3
	Rotation    Quat
	Scale       Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: IdentityQuat(), Scale: One}
}

// NewTransform builds a unit-scale transform.
func NewTransform(translation Vec3, rotation Quat) Transform {
	return Transform{Translation: translation, Rotation: rotation, Scale: One}
}

// FromTranslation builds a transform that only translates.
func FromTranslation(translation Vec3) Transform {
	return NewTransform(translation, IdentityQuat())
}

// TransformPosition maps a local point into the space described by t.
func (t Transform) TransformPosition(p Vec3) Vec3 {
	return r3.Add(t.Rotation.Rotate(mulVec(p, t.Scale)), t.Translation)
}

// TransformVector maps a local direction, ignoring translation.
func (t Transform) TransformVector(v Vec3) Vec3 {
	return t.Rotation.Rotate(mulVec(v, t.Scale))
}

// Compose returns the world transform of child, which is expressed in the
// local space of t.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Translation: t.TransformPosition(child.Translation),
		Rotation:    t.Rotation.Mul(child.Rotation).Normalize(),
		Scale:       mulVec(t.Scale, child.Scale),
	}
}

// Inverse returns the inverse transform. Non-uniform scale combined with
// rotation is not exactly invertible; the result matches the usual
// scale-rotate-translate decomposition.
func (t Transform) Inverse() Transform {
	invRot := t.Rotation.Conj()
	invScale := safeReciprocal(t.Scale)
	invTrans := mulVec(invRot.Rotate(r3.Scale(-1, t.Translation)), invScale)
	return Transform{Translation: invTrans, Rotation: invRot, Scale: invScale}
}

// RelativeTo expresses t in the local space of root.
func (t Transform) RelativeTo(root Transform) Transform {
	return root.Inverse().Compose(t)
}

// Equal compares two transforms within tolerance. Rotations q and -q are
// considered equal.
func (t Transform) Equal(o Transform, tolerance float64) bool {
	return NearlyEqualVec(t.Translation, o.Translation, tolerance) &&
		NearlyEqualVec(t.Scale, o.Scale, tolerance) &&
		t.Rotation.Equal(o.Rotation, tolerance)
}

// Blend interpolates translation and scale linearly and rotation along the
// shortest arc.
func Blend(a, b Transform, f float64) Transform {
	return Transform{
		Translation: LerpVec(a.Translation, b.Translation, f),
		Rotation:    Slerp(a.Rotation, b.Rotation, f),
		Scale:       LerpVec(a.Scale, b.Scale, f),
	}
}
