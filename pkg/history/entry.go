package history

// Entry pairs a value with the entity version it was observed at and whether the
// entity existed as of that version.
type Entry[T any] struct {
	// Value is the observed domain fact.
	Value T
	// Version is the per-entity revision number the fact belongs to.
	Version int
	// Visible is false when the entity had been deleted as of Version.
	Visible bool
}

// NewEntry returns a visible Entry for value at the given version.
func NewEntry[T any](value T, version int) Entry[T] {
	return Entry[T]{Value: value, Version: version, Visible: true}
}
