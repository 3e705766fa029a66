package spoke

import (
	"fmt"
	"maps"
	"reflect"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

type ComponentTypeId uint16

// Kind describes how the values of a component type are stored.
type Kind uint8

const (
	// KindNormal components store their value inline in a column.
	KindNormal Kind = iota

	// KindShared components store a 16 bit index per row into a SharedTable.
	KindShared
)

func (k Kind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindShared:
		return "shared"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

type ComponentType struct {
	Name string

	// Type is the go type of the component value
	Type reflect.Type

	// The Id of the type, unique for the lifetime of the process
	Id ComponentTypeId

	Kind Kind

	// Size of one component value in bytes. For shared components this is the size
	// of the shared value, not the size of the index stored in the column.
	Size uintptr

	// element type of a column holding this type
	columnType reflect.Type

	makeSharedTable func() ErasedSharedTable
}

// ComponentTypeOf returns the type descriptor for the component type C.
func ComponentTypeOf[C IsComponent[C]]() *ComponentType {
	var zeroValue C

	//goland:noinspection GoDfaNilDereference
	return zeroValue.ComponentType()
}

func (c *ComponentType) String() string {
	return c.Name
}

func (c *ComponentType) IsShared() bool {
	return c.Kind == KindShared
}

// ColumnType returns the type of the elements of a column storing this
// component type. This is uint16 for shared components.
func (c *ComponentType) ColumnType() reflect.Type {
	return c.columnType
}

// ColumnItemSize returns the number of bytes a single row of this type occupies in a column.
func (c *ComponentType) ColumnItemSize() uintptr {
	return c.columnType.Size()
}

// NewSharedTable creates an empty table for the values of a shared component type.
// Returns nil for normal component types.
func (c *ComponentType) NewSharedTable() ErasedSharedTable {
	if c.makeSharedTable == nil {
		return nil
	}

	return c.makeSharedTable()
}

var componentTypes atomic.Pointer[map[reflect.Type]*ComponentType]

func init() {
	// initialize the lookup table
	componentTypes.Store(&map[reflect.Type]*ComponentType{})
}

func componentTypeOf[C any](kind Kind) *ComponentType {
	reflectType := reflect.TypeFor[C]()

	if cached, ok := (*componentTypes.Load())[reflectType]; ok {
		assertKind(cached, kind)
		return cached
	}

	return ensureComponentType(reflectType, kind, func(id ComponentTypeId) *ComponentType {
		ty := makeComponentType(reflectType, id, kind)

		if kind == KindShared {
			ty.makeSharedTable = func() ErasedSharedTable {
				return NewSharedTable[C]()
			}
		}

		return ty
	})
}

func ensureComponentType(reflectType reflect.Type, kind Kind, makeType func(id ComponentTypeId) *ComponentType) *ComponentType {
	for {
		previousTypes := componentTypes.Load()
		if cached, ok := (*previousTypes)[reflectType]; ok {
			assertKind(cached, kind)
			return cached
		}

		newTypeId := ComponentTypeId(len(*previousTypes) + 1)

		newType := makeType(newTypeId)

		newTypes := maps.Clone(*previousTypes)
		newTypes[reflectType] = newType

		if componentTypes.CompareAndSwap(previousTypes, &newTypes) {
			log.Debug().
				Str("name", newType.Name).
				Uint16("id", uint16(newType.Id)).
				Stringer("kind", newType.Kind).
				Msg("New component type registered")

			return newType
		}
	}
}

func makeComponentType(reflectType reflect.Type, id ComponentTypeId, kind Kind) *ComponentType {
	if kind == KindNormal && typeHasPointers(reflectType) {
		panic(fmt.Sprintf("component type %s must not contain pointers", reflectType))
	}

	ty := &ComponentType{
		Id:         id,
		Type:       reflectType,
		Name:       reflectType.String(),
		Kind:       kind,
		Size:       reflectType.Size(),
		columnType: reflectType,
	}

	if kind == KindShared {
		ty.columnType = reflect.TypeFor[uint16]()
	}

	return ty
}

func assertKind(ty *ComponentType, kind Kind) {
	if ty.Kind != kind {
		panic(fmt.Sprintf("component type %s is registered as %s, requested as %s", ty, ty.Kind, kind))
	}
}

func typeHasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false

	case reflect.Array:
		return t.Len() > 0 && typeHasPointers(t.Elem())

	case reflect.Struct:
		for idx := range t.NumField() {
			if typeHasPointers(t.Field(idx).Type) {
				return true
			}
		}

		return false

	default:
		return true
	}
}
