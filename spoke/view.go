package spoke

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

// Range narrows an iteration over a View. Skip rows are left out at
// the start, SkipEnd rows at the end. Take limits the number of rows
// visited, a value of zero or less means no limit.
type Range struct {
	Skip    int
	SkipEnd int
	Take    int
}

// All visits every row of a view.
var All = Range{}

func (r Range) bounds(count int) (int, int) {
	end := count - r.SkipEnd
	if r.Take > 0 {
		end = min(end, r.Skip+r.Take)
	}

	return max(r.Skip, 0), end
}

// View is a window over a consecutive range of rows of one archetype.
// It holds one ColumnAccess per requested type, starting at the first row of the view. A View does not lock the
// archetype; it is only valid as long as no rows are added to or removed from
// the archetype by anyone but the View itself.
type View struct {
	archetype *Archetype
	columns   []ColumnAccess
	start     Row
	count     int
}

// View creates a view over all rows for the given types. Returns false
// if the archetype does not store all of the types.
func (a *Archetype) View(types ...*ComponentType) (View, bool) {
	a.rowsMu.RLock()
	defer a.rowsMu.RUnlock()

	return a.view(types)
}

func (a *Archetype) view(types []*ComponentType) (View, bool) {
	columns := make([]ColumnAccess, 0, len(types))

	for _, ty := range types {
		column := a.columnOf(ty)
		if column == nil {
			return View{}, false
		}

		columns = append(columns, column.Access())
	}

	view := View{
		archetype: a,
		columns:   columns,
		count:     a.rows.Len(),
	}

	return view, true
}

func (v View) Archetype() *Archetype {
	return v.archetype
}

// Len returns the number of rows in this view.
func (v View) Len() int {
	return v.count
}

// Start returns the first row of the archetype covered by this view.
func (v View) Start() Row {
	return v.start
}

// At returns a pointer to the value of the given slot at index idx relative to the start of the view.
func (v View) At(slot int, idx int) unsafe.Pointer {
	return v.columns[slot].At(Row(idx))
}

// Entity returns the entity at index idx relative to the start of the view.
func (v View) Entity(idx int) EntityId {
	return v.archetype.rows.Entity(v.start + Row(idx))
}

// Slice narrows the view to count rows starting at offset.
// The result is clamped to the rows of this view.
func (v View) Slice(offset, count int) View {
	offset = min(max(offset, 0), v.count)
	count = min(max(count, 0), v.count-offset)

	columns := make([]ColumnAccess, len(v.columns))
	for idx, column := range v.columns {
		columns[idx] = column.Offset(Row(offset))
	}

	return View{
		archetype: v.archetype,
		columns:   columns,
		start:     v.start + Row(offset),
		count:     count,
	}
}

// ForEachRow calls fn for each index in the given range. Returns ErrCollectionModified
// if the number of rows in the archetype changed while iterating.
func (v View) ForEachRow(rng Range, fn func(idx int)) error {
	rowCountBefore := v.archetype.Len()

	start, end := rng.bounds(v.count)
	for idx := start; idx < end; idx++ {
		fn(idx)
	}

	if rowCountAfter := v.archetype.Len(); rowCountAfter != rowCountBefore {
		return eris.Wrapf(ErrCollectionModified,
			"archetype %d had %d rows, now has %d", v.archetype.Id, rowCountBefore, rowCountAfter)
	}

	return nil
}

// ModifyRows calls keep for each index in the given range. If keep returns false,
// the row is swap-removed from the archetype and the last row of the archetype
// takes its place. The index only advances after a removal if invokeForNew is set,
// otherwise the row that moved in is tested next.
//
// The caller must hold the archetype lock or otherwise own the archetype exclusively.
// Returns the removed entities.
func (v *View) ModifyRows(rng Range, invokeForNew bool, keep func(idx int) bool) []EntityId {
	var removed []EntityId

	idx, end := rng.bounds(v.count)
	for idx < end {
		if keep(idx) {
			idx++
			continue
		}

		entity := v.archetype.removeRow(v.start+Row(idx), true)
		removed = append(removed, entity)

		// the archetype shrank, clamp the view if it reached the end
		if available := v.archetype.rows.Len() - int(v.start); v.count > available {
			v.count = available
			end = min(end, v.count)
		}

		if invokeForNew {
			idx++
		}
	}

	return removed
}

// ForEachBatched calls batched for each full batch of batchSize rows, passing the index of
// the first row of the batch, and basic for each remaining row.
func (v View) ForEachBatched(batchSize int, batched func(start int), basic func(idx int)) {
	if batchSize <= 0 {
		panic("batch size must be positive")
	}

	batches := v.count / batchSize
	for batch := range batches {
		batched(batch * batchSize)
	}

	for idx := batches * batchSize; idx < v.count; idx++ {
		basic(idx)
	}
}
