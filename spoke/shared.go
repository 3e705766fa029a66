package spoke

import (
	"math"
	"reflect"
	"sync"

	"github.com/rotisserie/eris"
)

// ErasedSharedTable is the untyped interface of a SharedTable.
type ErasedSharedTable interface {
	// InternValue stores the value pointed to by the component and returns its index.
	InternValue(component ErasedComponent) (uint16, error)
	Len() int
}

// SharedTable stores the values of one shared component type. Entities refer to a value by
// its index. The value at index zero is the zero value and is used by default.
// Pointers returned by a SharedTable stay valid for its lifetime.
type SharedTable[S any] struct {
	mu     sync.RWMutex
	values []*S

	// indices of values already stored, only used for comparable types
	interned map[any]uint16
}

func NewSharedTable[S any]() *SharedTable[S] {
	table := &SharedTable[S]{
		values: []*S{new(S)},
	}

	if reflect.TypeFor[S]().Comparable() {
		var zeroValue S
		table.interned = map[any]uint16{any(zeroValue): 0}
	}

	return table
}

// Add stores a new value and returns its index.
func (t *SharedTable[S]) Add(value S) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.add(value)
}

func (t *SharedTable[S]) add(value S) (uint16, error) {
	if len(t.values) > math.MaxUint16 {
		return 0, eris.Wrapf(ErrSharedTableFull, "table of %s holds %d values", reflect.TypeFor[S](), len(t.values))
	}

	index := uint16(len(t.values))
	t.values = append(t.values, &value)

	return index, nil
}

// Intern returns the index of an equal value if the type is comparable and the
// value is already stored. Otherwise the value is added.
func (t *SharedTable[S]) Intern(value S) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interned == nil {
		return t.add(value)
	}

	if index, ok := t.interned[any(value)]; ok {
		return index, nil
	}

	index, err := t.add(value)
	if err != nil {
		return 0, err
	}

	t.interned[any(value)] = index

	return index, nil
}

func (t *SharedTable[S]) InternValue(component ErasedComponent) (uint16, error) {
	value, ok := any(component).(*S)
	if !ok {
		return 0, eris.Errorf("expected *%s, got %T", reflect.TypeFor[S](), component)
	}

	return t.Intern(*value)
}

// At returns the value at the given index or nil, if the index is not valid.
func (t *SharedTable[S]) At(index uint16) *S {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(index) >= len(t.values) {
		return nil
	}

	return t.values[index]
}

// Set replaces the value at the given index. Index zero can not be replaced.
func (t *SharedTable[S]) Set(index uint16, value S) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if index == 0 || int(index) >= len(t.values) {
		return false
	}

	if t.interned != nil {
		delete(t.interned, any(*t.values[index]))
		t.interned[any(value)] = index
	}

	*t.values[index] = value

	return true
}

func (t *SharedTable[S]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.values)
}
