package spoke

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/oliverbestmann/stockpile/internal/set"
	"github.com/rotisserie/eris"
)

type ArchetypeId uint32

// Archetype stores all entities sharing the same Signature. Each component
// type has its own Column, all columns are indexed by the same row.
//
// Exported methods acquire the archetype lock. The unexported variants expect
// the caller to already hold the lock.
//
// mu is held for structural changes and while the archetype is iterated.
// rowsMu guards the rows and column buffers. Lookups only take rowsMu, so they
// do not wait for a running iteration.
type Archetype struct {
	mu     sync.Mutex
	rowsMu sync.RWMutex

	// number of iterations currently holding mu
	iterating atomic.Int32

	Id        ArchetypeId
	Signature Signature

	normal []*Column
	shared []*Column

	rows entityRows

	rowCount atomic.Uint32
}

func NewArchetype(id ArchetypeId, signature Signature) *Archetype {
	a := &Archetype{
		Id:        id,
		Signature: signature,
		rows:      newEntityRows(),
	}

	for _, ty := range signature.Normal() {
		a.normal = append(a.normal, NewColumn(ty))
	}

	for _, ty := range signature.Shared() {
		a.shared = append(a.shared, NewColumn(ty))
	}

	return a
}

// Len returns the number of rows. Safe to call without holding the lock.
func (a *Archetype) Len() int {
	return int(a.rowCount.Load())
}

// Cap returns the number of rows the archetype can hold without reallocation.
func (a *Archetype) Cap() int {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return a.capacity()
}

func (a *Archetype) capacity() int {
	switch {
	case len(a.normal) > 0:
		return a.normal[0].Cap()
	case len(a.shared) > 0:
		return a.shared[0].Cap()
	default:
		return a.rows.Len()
	}
}

// lockForWrite acquires mu for a structural change. It panics with ErrCollectionModified
// instead of blocking if the archetype is held by an iteration.
func (a *Archetype) lockForWrite() {
	for !a.mu.TryLock() {
		if a.iterating.Load() > 0 {
			panic(eris.Wrapf(ErrCollectionModified, "archetype %d is being iterated", a.Id))
		}

		runtime.Gosched()
	}
}

func (a *Archetype) columns() []*Column {
	return slices.Concat(a.normal, a.shared)
}

// Add appends a zero initialized row for the entity. Shared components
// refer to index zero. Returns NoRow if the entity is already present.
func (a *Archetype) Add(entity EntityId) Row {
	a.lockForWrite()
	defer a.mu.Unlock()

	return a.add(entity)
}

func (a *Archetype) add(entity EntityId) Row {
	if _, exists := a.rows.Row(entity); exists {
		return NoRow
	}

	a.rowsMu.Lock()
	defer a.rowsMu.Unlock()

	row := Row(a.rows.Len())

	for _, column := range a.normal {
		column.Push()
	}

	for _, column := range a.shared {
		column.Push()
	}

	a.rows.Set(entity, row)
	a.rowCount.Store(uint32(a.rows.Len()))

	return row
}

// AddMultiple appends one row for each entity. The rows are consecutive.
// Entities already present are skipped. Returns the first new row
// and the number of rows added.
func (a *Archetype) AddMultiple(entities []EntityId) (Row, int) {
	a.lockForWrite()
	defer a.mu.Unlock()

	fresh := make([]EntityId, 0, len(entities))
	for _, entity := range entities {
		if _, exists := a.rows.Row(entity); exists || slices.Contains(fresh, entity) {
			continue
		}

		fresh = append(fresh, entity)
	}

	if len(fresh) == 0 {
		return NoRow, 0
	}

	a.rowsMu.Lock()
	defer a.rowsMu.Unlock()

	first := Row(a.rows.Len())

	for _, column := range a.columns() {
		column.PushMultiple(len(fresh))
	}

	for idx, entity := range fresh {
		a.rows.Set(entity, first+Row(idx))
	}

	a.rowCount.Store(uint32(a.rows.Len()))

	return first, len(fresh)
}

// Remove swap-removes the row of the entity. Returns false if the
// entity is not part of this archetype.
func (a *Archetype) Remove(entity EntityId, dispose bool) bool {
	a.lockForWrite()
	defer a.mu.Unlock()

	return a.remove(entity, dispose)
}

func (a *Archetype) remove(entity EntityId, dispose bool) bool {
	row, ok := a.rows.Row(entity)
	if !ok {
		return false
	}

	a.removeRow(row, dispose)

	return true
}

// RemoveByRow swap-removes the given row.
func (a *Archetype) RemoveByRow(row Row) bool {
	a.lockForWrite()
	defer a.mu.Unlock()

	if int(row) >= a.rows.Len() {
		return false
	}

	a.removeRow(row, true)

	return true
}

// removeRow moves the last row into the given row and shrinks the archetype by one.
// Returns the entity that was removed.
func (a *Archetype) removeRow(row Row, dispose bool) EntityId {
	a.rowsMu.Lock()
	defer a.rowsMu.Unlock()

	last := Row(a.rows.Len() - 1)

	removed := a.rows.Entity(row)
	a.rows.Delete(removed)

	for _, column := range a.normal {
		column.RemoveByReplaceLast(row, dispose)
	}

	for _, column := range a.shared {
		column.RemoveByReplaceLast(row, dispose)
	}

	if row != last {
		a.rows.Set(a.rows.Entity(last), row)
	}

	a.rows.Truncate(last)
	a.rowCount.Store(uint32(last))

	return removed
}

// Clear removes all rows.
func (a *Archetype) Clear() {
	a.lockForWrite()
	defer a.mu.Unlock()

	a.rowsMu.Lock()
	defer a.rowsMu.Unlock()

	for _, column := range a.columns() {
		column.Clear()
	}

	a.rows.Clear()
	a.rowCount.Store(0)
}

// Trim releases unused memory of all columns. Returns true if any column was trimmed.
func (a *Archetype) Trim() bool {
	a.lockForWrite()
	defer a.mu.Unlock()

	a.rowsMu.Lock()
	defer a.rowsMu.Unlock()

	if a.rows.Len()+trimSlack >= a.capacity() {
		return false
	}

	var trimmed bool
	for _, column := range a.columns() {
		trimmed = column.Trim() || trimmed
	}

	return trimmed
}

// ContainsArchetype returns true if this archetype stores at least
// all types of the given signature.
func (a *Archetype) ContainsArchetype(other Signature) bool {
	return a.Signature.Contains(other)
}

func (a *Archetype) IndexOfNormal(ty *ComponentType) int {
	for idx, column := range a.normal {
		if column.ComponentType == ty {
			return idx
		}
	}

	return -1
}

func (a *Archetype) IndexOfShared(ty *ComponentType) int {
	for idx, column := range a.shared {
		if column.ComponentType == ty {
			return idx
		}
	}

	return -1
}

func (a *Archetype) columnOf(ty *ComponentType) *Column {
	if ty.IsShared() {
		if idx := a.IndexOfShared(ty); idx >= 0 {
			return a.shared[idx]
		}

		return nil
	}

	if idx := a.IndexOfNormal(ty); idx >= 0 {
		return a.normal[idx]
	}

	return nil
}

// GetComponent returns a pointer to the value of ty in the given row. For shared
// types, the pointer points to the uint16 index of the value. Returns nil if the
// row is out of range or the archetype does not store ty.
func (a *Archetype) GetComponent(ty *ComponentType, row Row) unsafe.Pointer {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return a.getComponent(ty, row)
}

func (a *Archetype) getComponent(ty *ComponentType, row Row) unsafe.Pointer {
	if int(row) >= a.rows.Len() {
		return nil
	}

	column := a.columnOf(ty)
	if column == nil {
		return nil
	}

	return column.PtrTo(row)
}

// ComponentOf looks up the value of ty for the given entity.
func (a *Archetype) ComponentOf(entity EntityId, ty *ComponentType) unsafe.Pointer {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	row, ok := a.rows.Row(entity)
	if !ok {
		return nil
	}

	return a.getComponent(ty, row)
}

// Row returns the row of the given entity.
func (a *Archetype) Row(entity EntityId) (Row, bool) {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return a.rows.Row(entity)
}

// Has returns true if the entity is stored in this archetype.
func (a *Archetype) Has(entity EntityId) bool {
	_, ok := a.Row(entity)
	return ok
}

// Entity returns the entity stored in the given row, or NoEntity.
func (a *Archetype) Entity(row Row) EntityId {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return a.rows.Entity(row)
}

// Entities returns a copy of all entities, ordered by row.
func (a *Archetype) Entities() []EntityId {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return slices.Clone(a.rows.Entities())
}

// CopyFrom copies the values of srcRow in src into destRow. Types that
// src does not store are zeroed, shared types are set to index zero.
func (a *Archetype) CopyFrom(destRow, srcRow Row, src *Archetype) {
	unlock := lockPair(a, src)
	defer unlock()

	a.copyFrom(destRow, srcRow, src)
}

func (a *Archetype) copyFrom(destRow, srcRow Row, src *Archetype) {
	for _, column := range a.normal {
		if idx := src.IndexOfNormal(column.ComponentType); idx >= 0 {
			column.CopyElementFrom(destRow, src.normal[idx].PtrTo(srcRow))
		} else {
			column.Initialize(destRow)
		}
	}

	for _, column := range a.shared {
		if idx := src.IndexOfShared(column.ComponentType); idx >= 0 {
			column.CopyElementFrom(destRow, src.shared[idx].PtrTo(srcRow))
		} else {
			*(*uint16)(column.PtrTo(destRow)) = 0
		}
	}
}

// CopyFromAndDisposeOld works like CopyFrom, but also disposes
// all values of srcRow whose types this archetype does not store.
func (a *Archetype) CopyFromAndDisposeOld(destRow, srcRow Row, src *Archetype) {
	unlock := lockPair(a, src)
	defer unlock()

	a.copyFromAndDisposeOld(destRow, srcRow, src)
}

func (a *Archetype) copyFromAndDisposeOld(destRow, srcRow Row, src *Archetype) {
	a.copyFrom(destRow, srcRow, src)

	for _, column := range src.columns() {
		if a.columnOf(column.ComponentType) == nil {
			column.Initialize(srcRow)
		}
	}
}

// CheckInvariants verifies that all columns have the same length
// and that entities and rows form a bijection.
func (a *Archetype) CheckInvariants() error {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	rowCount := a.rows.Len()

	if a.Len() != rowCount {
		return eris.Wrapf(ErrInvariantViolated, "row count is %d, expected %d", a.Len(), rowCount)
	}

	for _, column := range a.columns() {
		if column.Len() != rowCount {
			return eris.Wrapf(ErrInvariantViolated,
				"column %s has %d rows, expected %d", column.ComponentType, column.Len(), rowCount)
		}
	}

	seen := set.WithCapacity[EntityId](rowCount)

	for idx, entity := range a.rows.Entities() {
		if !seen.Insert(entity) {
			return eris.Wrapf(ErrInvariantViolated, "entity %s is stored in multiple rows", entity)
		}

		row, ok := a.rows.Row(entity)
		if !ok {
			return eris.Wrapf(ErrInvariantViolated, "entity %s in row %d is not indexed", entity, idx)
		}

		if int(row) != idx {
			return eris.Wrapf(ErrInvariantViolated, "entity %s is in row %d, but indexed as %d", entity, idx, row)
		}
	}

	return nil
}

func (a *Archetype) String() string {
	return fmt.Sprintf("Archetype(id=%d, types=%s, rows=%d)", a.Id, a.Signature, a.Len())
}

// lockPair locks both archetypes for a structural change in order of their id.
func lockPair(a, b *Archetype) (unlock func()) {
	if a == b {
		a.lockForWrite()
		return a.mu.Unlock
	}

	first, second := a, b
	if second.Id < first.Id {
		first, second = second, first
	}

	first.lockForWrite()

	defer func() {
		if r := recover(); r != nil {
			first.mu.Unlock()
			panic(r)
		}
	}()

	second.lockForWrite()

	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
