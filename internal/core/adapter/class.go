package adapter

// Class is a node in the component class hierarchy.
type Class struct {
	name   string
	parent *Class
}

func NewClass(name string, parent *Class) *Class {
	return &Class{name: name, parent: parent}
}

func (c *Class) Name() string { return c.name }

func (c *Class) Parent() *Class { return c.parent }

// IsChildOf reports whether c is o or derives from it.
func (c *Class) IsChildOf(o *Class) bool {
	for k := c; k != nil; k = k.parent {
		if k == o {
			return true
		}
	}
	return false
}

// Classify is the usual SupportsComponentClass rule: exact match is direct,
// a subclass of supported is derived.
func Classify(class, supported *Class) SupportType {
	switch {
	case class == nil:
		return SupportNone
	case class == supported:
		return SupportDirect
	case class.IsChildOf(supported):
		return SupportDerived
	default:
		return SupportNone
	}
}

var (
	SceneClass     = NewClass("SceneComponent", nil)
	PrimitiveClass = NewClass("PrimitiveComponent", SceneClass)
)
