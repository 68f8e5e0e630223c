package types

import "fmt"

// InputKeyKind discriminates the two forms of execution input dependency.
type InputKeyKind uint8

const (
	// KeyVersionedObject addresses a specific object version.
	KeyVersionedObject InputKeyKind = iota
	// KeyPackage addresses a package by id; packages are not versioned
	// from the scheduler's point of view.
	KeyPackage
)

// InputKey identifies one execution input dependency: either a specific
// object version or a package.
//
// InputKey is a value type with structural equality and is usable as a map
// key. For KeyPackage the Version field is always zero and ignored.
type InputKey struct {
	Kind    InputKeyKind
	ID      ObjectID
	Version Version
}

// VersionedObjectKey builds an InputKey addressing (id, version).
func VersionedObjectKey(id ObjectID, version Version) InputKey {
	return InputKey{Kind: KeyVersionedObject, ID: id, Version: version}
}

// PackageKey builds an InputKey addressing a package by id.
func PackageKey(id ObjectID) InputKey {
	return InputKey{Kind: KeyPackage, ID: id}
}

func (k InputKey) String() string {
	switch k.Kind {
	case KeyPackage:
		return fmt.Sprintf("Package(%s)", k.ID.Short())
	default:
		return fmt.Sprintf("Object(%s@%d)", k.ID.Short(), k.Version)
	}
}
