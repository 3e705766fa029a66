package spoke

import (
	"reflect"
	"unsafe"

	"github.com/oliverbestmann/stockpile/internal/assert"
)

type isComponentMarker struct{}

// ErasedComponent holds a pointer to a value
// that implements the IsComponent interface.
type ErasedComponent interface {
	ComponentType() *ComponentType
	isComponent(isComponentMarker)
}

// Fetch is implemented by every type that can be requested in a
// typed iteration: normal components and Shared slots.
type Fetch interface {
	ComponentType() *ComponentType
}

type sharedSlot interface {
	sharedSlot()
}

// TypeOf resolves the component type for a typed slot. It panics if the
// slot does not match the kind of the component: a shared component must be
// fetched using Shared, a normal component must be fetched directly.
func TypeOf[T Fetch]() *ComponentType {
	var zeroValue T

	ty := zeroValue.ComponentType()

	_, isShared := any(zeroValue).(sharedSlot)
	if isShared != ty.IsShared() {
		panic("slot " + reflect.TypeFor[T]().String() + " does not match component kind " + ty.Kind.String())
	}

	return ty
}

func pointerTo(value ErasedComponent) unsafe.Pointer {
	assert.IsPointerType(reflect.TypeOf(value))

	type iface struct{ typ, val unsafe.Pointer }
	return (*iface)(unsafe.Pointer(&value)).val
}
