package spoke

import (
	"fmt"
)

// Get returns a pointer to the component C of the entity.
func Get[C IsComponent[C]](r *Registry, entity EntityId) (*C, bool) {
	ptr := r.GetComponent(entity, normalTypeOf[C]())
	return (*C)(ptr), ptr != nil
}

// Add adds a zero value of C to the entity, if it does not already have one.
func Add[C IsComponent[C]](r *Registry, entity EntityId) *C {
	return (*C)(r.AddComponent(entity, normalTypeOf[C]()))
}

// Set assigns the value to component C of the entity, adding the component if needed.
func Set[C IsComponent[C]](r *Registry, entity EntityId, value C) *C {
	ptr := Add[C](r, entity)
	*ptr = value
	return ptr
}

func Remove[C IsComponent[C]](r *Registry, entity EntityId) bool {
	return r.RemoveComponent(entity, ComponentTypeOf[C]())
}

func Has[C IsComponent[C]](r *Registry, entity EntityId) bool {
	return r.HasComponent(entity, ComponentTypeOf[C]())
}

// GetShared returns the index slot of the shared component S of the entity.
func GetShared[S IsComponent[S]](r *Registry, entity EntityId) (*Shared[S], bool) {
	ptr := r.GetComponent(entity, TypeOf[Shared[S]]())
	return (*Shared[S])(ptr), ptr != nil
}

// SetShared points the shared component S of the entity to the given index,
// adding the component if needed.
func SetShared[S IsComponent[S]](r *Registry, entity EntityId, index uint16) *Shared[S] {
	slot := (*Shared[S])(r.AddComponent(entity, TypeOf[Shared[S]]()))
	slot.Index = index
	return slot
}

func normalTypeOf[C IsComponent[C]]() *ComponentType {
	ty := ComponentTypeOf[C]()
	if ty.IsShared() {
		panic(fmt.Sprintf("shared component %s must be accessed using Shared", ty))
	}

	return ty
}
