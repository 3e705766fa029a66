package spoke

import (
	"math"
	"reflect"
	"unsafe"
)

// trimSlack is the number of unused slots a column may hold before Trim
// reallocates its backing buffer.
const trimSlack = 8

// Column is a densely packed, growable buffer of values of one type. The
// buffer is a go slice allocated through reflection, so the garbage collector
// owns its memory. Values are addressed by row using raw pointer arithmetic.
//
// A Column performs no locking. Pointers returned by a Column are valid until
// the next call that changes its length or capacity.
type Column struct {
	ComponentType *ComponentType

	// capacity and length of the slice
	len, cap int

	// memory points to the data of the slice
	memory unsafe.Pointer

	itemSize uintptr

	// slice of values
	slice reflect.Value
}

// zeroSized is the base address of columns with zero sized elements
var zeroSized struct{}

func NewColumn(ty *ComponentType) *Column {
	sliceType := reflect.SliceOf(ty.ColumnType())
	slice := reflect.New(sliceType).Elem()

	column := &Column{
		ComponentType: ty,
		itemSize:      ty.ColumnItemSize(),
		slice:         slice,
	}

	column.updateMemory()

	return column
}

type buf *[math.MaxInt32]byte

func rawCopy(to, from unsafe.Pointer, size uintptr) {
	dst := (*buf(to))[:size]
	src := (*buf(from))[:size]
	copy(dst, src)
}

func rawZero(ptr unsafe.Pointer, size uintptr) {
	clear((*buf(ptr))[:size])
}

func (c *Column) ptrTo(row Row) unsafe.Pointer {
	return unsafe.Add(c.memory, uintptr(row)*c.itemSize)
}

// PtrTo returns a pointer to the value at the given row.
func (c *Column) PtrTo(row Row) unsafe.Pointer {
	if int(row) >= c.len {
		panic("out of bounds")
	}

	return c.ptrTo(row)
}

// Raw returns a pointer to the first value of the column.
func (c *Column) Raw() unsafe.Pointer {
	return c.memory
}

func (c *Column) Len() int {
	return c.len
}

func (c *Column) Cap() int {
	return c.cap
}

func (c *Column) ItemSize() uintptr {
	return c.itemSize
}

// Push appends one zero value and returns its row.
func (c *Column) Push() Row {
	c.reserve(1)

	row := Row(c.len)
	c.len += 1

	c.Initialize(row)

	return row
}

// PushMultiple appends n zero values and returns the row of the first one.
func (c *Column) PushMultiple(n int) Row {
	c.reserve(n)

	first := Row(c.len)
	c.len += n

	if c.itemSize > 0 && n > 0 {
		rawZero(c.ptrTo(first), uintptr(n)*c.itemSize)
	}

	return first
}

// Pop removes the last value. The value is zeroed if dispose is set.
func (c *Column) Pop(dispose bool) {
	if c.len == 0 {
		return
	}

	c.len -= 1

	if dispose {
		c.Initialize(Row(c.len))
	}
}

// RemoveByReplaceLast overwrites the value at row with the last value
// of the column and shrinks the column by one.
func (c *Column) RemoveByReplaceLast(row Row, dispose bool) {
	last := Row(c.len - 1)
	if row != last {
		c.CopyElementFrom(row, c.PtrTo(last))
	}

	c.Pop(dispose)
}

// CopyElementFrom copies one value from src into the given row.
func (c *Column) CopyElementFrom(row Row, src unsafe.Pointer) {
	if c.itemSize == 0 {
		return
	}

	rawCopy(c.PtrTo(row), src, c.itemSize)
}

// Initialize sets the value at the given row to its zero value.
func (c *Column) Initialize(row Row) {
	if c.itemSize == 0 {
		return
	}

	rawZero(c.ptrTo(row), c.itemSize)
}

// Clear removes all values without releasing the backing buffer.
func (c *Column) Clear() {
	if c.len > 0 && c.itemSize > 0 {
		rawZero(c.memory, uintptr(c.len)*c.itemSize)
	}

	c.len = 0
}

// Trim shrinks the backing buffer to the length of the column,
// if more than a few slots are unused.
func (c *Column) Trim() bool {
	if c.len+trimSlack >= c.cap {
		return false
	}

	c.slice.SetLen(c.len)

	trimmed := reflect.MakeSlice(c.slice.Type(), c.len, c.len)
	reflect.Copy(trimmed, c.slice)

	c.slice.Set(trimmed)
	c.updateMemory()

	return true
}

// Access creates a ColumnAccess for this column. The ColumnAccess
// is invalidated once the column grows or is trimmed.
func (c *Column) Access() ColumnAccess {
	if c == nil {
		return ColumnAccess{}
	}

	return ColumnAccess{
		base:   c.memory,
		stride: c.itemSize,
	}
}

func (c *Column) reserve(n int) {
	if c.cap-c.len >= n {
		return
	}

	// need to allocate memory
	c.slice.SetLen(c.len)
	c.slice.Grow(max(16, c.cap, n))
	c.updateMemory()
}

func (c *Column) updateMemory() {
	c.memory = c.slice.UnsafePointer()
	c.cap = c.slice.Cap()

	if c.memory == nil || c.itemSize == 0 {
		c.memory = unsafe.Pointer(&zeroSized)
	}
}
