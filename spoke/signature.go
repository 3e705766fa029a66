package spoke

import (
	"fmt"
	"slices"
	"strings"

	"github.com/oliverbestmann/stockpile/internal/set"
)

// Signature is the set of component types stored by an archetype,
// split by kind. Types are kept sorted by id.
type Signature struct {
	normal []*ComponentType
	shared []*ComponentType
}

// SignatureOf builds a Signature from the given types. The order of the types
// does not matter. It panics if a type is given more than once.
func SignatureOf(types ...*ComponentType) Signature {
	seen := set.WithCapacity[ComponentTypeId](len(types))

	var sig Signature

	for _, ty := range types {
		if !seen.Insert(ty.Id) {
			panic(fmt.Sprintf("type %s appears multiple times", ty))
		}

		if ty.IsShared() {
			sig.shared = append(sig.shared, ty)
		} else {
			sig.normal = append(sig.normal, ty)
		}
	}

	sortTypes(sig.normal)
	sortTypes(sig.shared)

	return sig
}

func sortTypes(types []*ComponentType) {
	slices.SortFunc(types, func(a, b *ComponentType) int {
		return int(a.Id) - int(b.Id)
	})
}

func (s Signature) Normal() []*ComponentType {
	return s.normal
}

func (s Signature) Shared() []*ComponentType {
	return s.shared
}

// Types returns the normal types followed by the shared types.
func (s Signature) Types() []*ComponentType {
	return slices.Concat(s.normal, s.shared)
}

func (s Signature) Len() int {
	return len(s.normal) + len(s.shared)
}

func (s Signature) Has(ty *ComponentType) bool {
	if ty.IsShared() {
		return slices.Contains(s.shared, ty)
	}

	return slices.Contains(s.normal, ty)
}

// Contains returns true, if this signature is a superset of other.
func (s Signature) Contains(other Signature) bool {
	return containsAll(s.normal, other.normal) && containsAll(s.shared, other.shared)
}

// Equal returns true, if both signatures contain exactly the same types.
func (s Signature) Equal(other Signature) bool {
	if len(s.normal) != len(other.normal) || len(s.shared) != len(other.shared) {
		return false
	}

	return s.Contains(other) && other.Contains(s)
}

// With returns a copy of this signature that also includes ty.
func (s Signature) With(ty *ComponentType) Signature {
	if s.Has(ty) {
		return s
	}

	return SignatureOf(append(s.Types(), ty)...)
}

// Without returns a copy of this signature that does not include ty.
func (s Signature) Without(ty *ComponentType) Signature {
	if !s.Has(ty) {
		return s
	}

	types := slices.DeleteFunc(s.Types(), func(other *ComponentType) bool {
		return other == ty
	})

	return SignatureOf(types...)
}

func (s Signature) String() string {
	var names []string
	for _, ty := range s.normal {
		names = append(names, ty.Name)
	}

	for _, ty := range s.shared {
		names = append(names, "shared "+ty.Name)
	}

	return "{" + strings.Join(names, ", ") + "}"
}

func containsAll(haystack, needles []*ComponentType) bool {
	for _, needle := range needles {
		if !slices.Contains(haystack, needle) {
			return false
		}
	}

	return true
}
