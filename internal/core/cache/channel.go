package cache

import (
	"github.com/zeusync/chaoscache/internal/core/physics"
)

// ChannelKind tags the payload of a Value.
type ChannelKind uint8

const (
	KindFloat ChannelKind = iota
	KindInt
	KindVector
	KindQuat
	KindTransform
	KindColor
	KindStruct
)

func (k ChannelKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindVector:
		return "vector"
	case KindQuat:
		return "quat"
	case KindTransform:
		return "transform"
	case KindColor:
		return "color"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Color is a linear RGBA color.
type Color struct {
	R, G, B, A float64
}

// Value is a tagged union over the channel kinds a recording can carry.
// Only the member selected by Kind is meaningful; Struct values nest their
// members in Fields.
type Value struct {
	Kind      ChannelKind
	Float     float64
	Int       int64
	Vector    physics.Vec3
	Quat      physics.Quat
	Transform physics.Transform
	Color     Color
	Fields    []Value
}

func FloatValue(f float64) Value               { return Value{Kind: KindFloat, Float: f} }
func IntValue(i int64) Value                   { return Value{Kind: KindInt, Int: i} }
func VectorValue(v physics.Vec3) Value         { return Value{Kind: KindVector, Vector: v} }
func QuatValue(q physics.Quat) Value           { return Value{Kind: KindQuat, Quat: q} }
func TransformValue(t physics.Transform) Value { return Value{Kind: KindTransform, Transform: t} }
func ColorValue(c Color) Value                 { return Value{Kind: KindColor, Color: c} }
func StructValue(fields ...Value) Value        { return Value{Kind: KindStruct, Fields: fields} }

// Blend interpolates a toward b by f. Floats, vectors and colors lerp,
// quaternions slerp, integers lerp and truncate, structs blend field by
// field. Mismatched kinds or shapes fall back to PickClosest.
func Blend(a, b Value, f float64) Value {
	if a.Kind != b.Kind {
		return PickClosest(a, b, f)
	}
	switch a.Kind {
	case KindFloat:
		return FloatValue(physics.Lerp(a.Float, b.Float, f))
	case KindInt:
		return IntValue(a.Int + int64(float64(b.Int-a.Int)*f))
	case KindVector:
		return VectorValue(physics.LerpVec(a.Vector, b.Vector, f))
	case KindQuat:
		return QuatValue(physics.Slerp(a.Quat, b.Quat, f))
	case KindTransform:
		return TransformValue(physics.Blend(a.Transform, b.Transform, f))
	case KindColor:
		return ColorValue(Color{
			R: physics.Lerp(a.Color.R, b.Color.R, f),
			G: physics.Lerp(a.Color.G, b.Color.G, f),
			B: physics.Lerp(a.Color.B, b.Color.B, f),
			A: physics.Lerp(a.Color.A, b.Color.A, f),
		})
	case KindStruct:
		if len(a.Fields) != len(b.Fields) {
			return PickClosest(a, b, f)
		}
		fields := make([]Value, len(a.Fields))
		for i := range a.Fields {
			fields[i] = Blend(a.Fields[i], b.Fields[i], f)
		}
		return StructValue(fields...)
	}
	return PickClosest(a, b, f)
}

// PickClosest is the policy for values that are not interpolated: the
// nearer frame wins, ties going to a.
func PickClosest(a, b Value, f float64) Value {
	if f <= 0.5 {
		return a
	}
	return b
}

// ChannelSpec declares a named per-particle channel. Channels that do not
// interpolate are treated as metadata.
type ChannelSpec struct {
	Name        string
	Kind        ChannelKind
	Interpolate bool
}

// ChannelTrack holds the keys of one per-particle channel.
type ChannelTrack struct {
	Spec   ChannelSpec
	Times  []float64
	Values []Value
}

func (c *ChannelTrack) Len() int { return len(c.Times) }

func (c *ChannelTrack) AddKey(time float64, v Value) {
	c.Times = append(c.Times, time)
	c.Values = append(c.Values, v)
}

// Evaluate samples the channel at q using its channel interpolation policy.
func (c *ChannelTrack) Evaluate(q float64) (Value, bool) {
	s, ok := locate(c.Times, q)
	if !ok {
		return Value{}, false
	}
	if s.A == s.B {
		return c.Values[s.A], true
	}
	if c.Spec.Interpolate {
		return Blend(c.Values[s.A], c.Values[s.B], s.Alpha), true
	}
	return PickClosest(c.Values[s.A], c.Values[s.B], s.Alpha), true
}

func (c *ChannelTrack) clone() *ChannelTrack {
	return &ChannelTrack{
		Spec:   c.Spec,
		Times:  append([]float64(nil), c.Times...),
		Values: append([]Value(nil), c.Values...),
	}
}
