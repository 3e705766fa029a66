package spoke

type IsComponent[T any] interface {
	ErasedComponent
	IsComponent(T)
}

// Component is embedded into a struct to turn it into a normal component.
// Normal components must be plain data and must not contain pointers.
type Component[C IsComponent[C]] struct{}

func (Component[C]) IsComponent(C) {}

func (Component[C]) isComponent(isComponentMarker) {}

func (Component[C]) ComponentType() *ComponentType {
	return componentTypeOf[C](KindNormal)
}

// SharedComponent is embedded into a struct to turn it into a shared component.
// Values of a shared component live in a SharedTable, entities only refer to them by index.
type SharedComponent[C IsComponent[C]] struct{}

func (SharedComponent[C]) IsComponent(C) {}

func (SharedComponent[C]) isComponent(isComponentMarker) {}

func (SharedComponent[C]) ComponentType() *ComponentType {
	return componentTypeOf[C](KindShared)
}

// Shared is the typed slot of a shared component S. It has the same memory
// layout as the index stored in the column of S.
type Shared[S IsComponent[S]] struct {
	Index uint16
}

func (Shared[S]) ComponentType() *ComponentType {
	return ComponentTypeOf[S]()
}

func (Shared[S]) sharedSlot() {}

// Value resolves the index through the given table.
// Returns nil if the index is not valid in the table.
func (s *Shared[S]) Value(table *SharedTable[S]) *S {
	return table.At(s.Index)
}
