package spoke

import (
	"unsafe"
)

// ColumnAccess addresses the values of a column without bounds checks.
type ColumnAccess struct {
	base   unsafe.Pointer
	stride uintptr
}

func (c *ColumnAccess) At(row Row) unsafe.Pointer {
	return unsafe.Add(c.base, c.stride*uintptr(row))
}

// Offset returns a ColumnAccess that starts at the given row.
func (c ColumnAccess) Offset(row Row) ColumnAccess {
	return ColumnAccess{
		base:   c.At(row),
		stride: c.stride,
	}
}
