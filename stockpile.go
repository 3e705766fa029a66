// Package stockpile is an archetype based entity component store. Entities with the
// same set of component types share one archetype, which stores each component type
// in a densely packed column.
//
// The storage engine lives in package spoke, parallel processing in package jobs.
// World ties both together.
package stockpile

import "github.com/oliverbestmann/stockpile/spoke"

// EntityId uniquely identifies an entity in a World.
type EntityId = spoke.EntityId

// IsComponent can be used in a type parameter to ensure that type T is a Component type.
//
// To implement the IsComponent interface for a type, you must embed Component or SharedComponent.
type IsComponent[T any] = spoke.IsComponent[T]

// Component is a zero sized type that may be embedded into a struct to turn that
// struct into a component (see IsComponent). The struct must not contain pointers.
type Component[T IsComponent[T]] = spoke.Component[T]

// SharedComponent is a zero sized type that may be embedded into a struct to turn that
// struct into a shared component. Entities store only an index to the value of a shared component.
type SharedComponent[T IsComponent[T]] = spoke.SharedComponent[T]

// Shared is used in typed iteration to fetch the index of a shared component.
type Shared[T IsComponent[T]] = spoke.Shared[T]

// ErasedComponent indicates a type erased Component value.
//
// Values given to the consumer of stockpile of this type are usually pointers,
// even though the interface is actually implemented directly on the component type.
type ErasedComponent = spoke.ErasedComponent
