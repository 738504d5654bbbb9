package encoding

// Serializable is implemented by values that persist themselves as a single
// self-describing blob.
type Serializable interface {
	Serialize() ([]byte, error)
	Deserialize([]byte) error
}
