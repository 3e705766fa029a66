package spoke

import (
	"unsafe"
)

// Typed iteration over one View. Each slot is either a normal component C,
// fetched as *C, or a Shared[S], fetched as *Shared[S].

func ForEach1[A Fetch](v View, rng Range, fn func(*A)) error {
	return v.ForEachRow(rng, func(idx int) {
		fn((*A)(v.At(0, idx)))
	})
}

func ForEach2[A, B Fetch](v View, rng Range, fn func(*A, *B)) error {
	return v.ForEachRow(rng, func(idx int) {
		fn((*A)(v.At(0, idx)), (*B)(v.At(1, idx)))
	})
}

func ForEach3[A, B, C Fetch](v View, rng Range, fn func(*A, *B, *C)) error {
	return v.ForEachRow(rng, func(idx int) {
		fn((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)))
	})
}

func ForEach4[A, B, C, D Fetch](v View, rng Range, fn func(*A, *B, *C, *D)) error {
	return v.ForEachRow(rng, func(idx int) {
		fn((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)), (*D)(v.At(3, idx)))
	})
}

// Modify1 removes every row for which keep returns false. See View.ModifyRows.
func Modify1[A Fetch](v *View, rng Range, invokeForNew bool, keep func(*A) bool) []EntityId {
	return v.ModifyRows(rng, invokeForNew, func(idx int) bool {
		return keep((*A)(v.At(0, idx)))
	})
}

func Modify2[A, B Fetch](v *View, rng Range, invokeForNew bool, keep func(*A, *B) bool) []EntityId {
	return v.ModifyRows(rng, invokeForNew, func(idx int) bool {
		return keep((*A)(v.At(0, idx)), (*B)(v.At(1, idx)))
	})
}

func Modify3[A, B, C Fetch](v *View, rng Range, invokeForNew bool, keep func(*A, *B, *C) bool) []EntityId {
	return v.ModifyRows(rng, invokeForNew, func(idx int) bool {
		return keep((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)))
	})
}

func Modify4[A, B, C, D Fetch](v *View, rng Range, invokeForNew bool, keep func(*A, *B, *C, *D) bool) []EntityId {
	return v.ModifyRows(rng, invokeForNew, func(idx int) bool {
		return keep((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)), (*D)(v.At(3, idx)))
	})
}

// Batched1 passes full batches of batchSize values as slices to batched,
// and the remaining values one by one to basic.
func Batched1[A Fetch](v View, batchSize int, batched func([]A), basic func(*A)) {
	v.ForEachBatched(batchSize,
		func(start int) {
			batched(sliceAt[A](v, 0, start, batchSize))
		},
		func(idx int) {
			basic((*A)(v.At(0, idx)))
		},
	)
}

func Batched2[A, B Fetch](v View, batchSize int, batched func([]A, []B), basic func(*A, *B)) {
	v.ForEachBatched(batchSize,
		func(start int) {
			batched(sliceAt[A](v, 0, start, batchSize), sliceAt[B](v, 1, start, batchSize))
		},
		func(idx int) {
			basic((*A)(v.At(0, idx)), (*B)(v.At(1, idx)))
		},
	)
}

func Batched3[A, B, C Fetch](v View, batchSize int, batched func([]A, []B, []C), basic func(*A, *B, *C)) {
	v.ForEachBatched(batchSize,
		func(start int) {
			batched(
				sliceAt[A](v, 0, start, batchSize),
				sliceAt[B](v, 1, start, batchSize),
				sliceAt[C](v, 2, start, batchSize),
			)
		},
		func(idx int) {
			basic((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)))
		},
	)
}

func Batched4[A, B, C, D Fetch](v View, batchSize int, batched func([]A, []B, []C, []D), basic func(*A, *B, *C, *D)) {
	v.ForEachBatched(batchSize,
		func(start int) {
			batched(
				sliceAt[A](v, 0, start, batchSize),
				sliceAt[B](v, 1, start, batchSize),
				sliceAt[C](v, 2, start, batchSize),
				sliceAt[D](v, 3, start, batchSize),
			)
		},
		func(idx int) {
			basic((*A)(v.At(0, idx)), (*B)(v.At(1, idx)), (*C)(v.At(2, idx)), (*D)(v.At(3, idx)))
		},
	)
}

func sliceAt[T any](v View, slot, start, n int) []T {
	return unsafe.Slice((*T)(v.At(slot, start)), n)
}

// Typed iteration over all archetypes of a Registry.

func Each1[A Fetch](r *Registry, fn func(*A)) error {
	return EachWhere1(r, nil, fn)
}

func Each2[A, B Fetch](r *Registry, fn func(*A, *B)) error {
	return EachWhere2(r, nil, fn)
}

func Each3[A, B, C Fetch](r *Registry, fn func(*A, *B, *C)) error {
	return EachWhere3(r, nil, fn)
}

func Each4[A, B, C, D Fetch](r *Registry, fn func(*A, *B, *C, *D)) error {
	return EachWhere4(r, nil, fn)
}

// EachWhere1 works like Each1 but skips all archetypes whose signature
// is rejected by the filter.
func EachWhere1[A Fetch](r *Registry, filter *Filter, fn func(*A)) error {
	return r.ForEachArchetype(typeList(TypeOf[A]()), filter, func(v View) error {
		return ForEach1(v, All, fn)
	})
}

func EachWhere2[A, B Fetch](r *Registry, filter *Filter, fn func(*A, *B)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B]()), filter, func(v View) error {
		return ForEach2(v, All, fn)
	})
}

func EachWhere3[A, B, C Fetch](r *Registry, filter *Filter, fn func(*A, *B, *C)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C]()), filter, func(v View) error {
		return ForEach3(v, All, fn)
	})
}

func EachWhere4[A, B, C, D Fetch](r *Registry, filter *Filter, fn func(*A, *B, *C, *D)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C](), TypeOf[D]()), filter, func(v View) error {
		return ForEach4(v, All, fn)
	})
}

func EachBatched1[A Fetch](r *Registry, batchSize int, batched func([]A), basic func(*A)) error {
	return r.ForEachArchetype(typeList(TypeOf[A]()), nil, func(v View) error {
		Batched1(v, batchSize, batched, basic)
		return nil
	})
}

func EachBatched2[A, B Fetch](r *Registry, batchSize int, batched func([]A, []B), basic func(*A, *B)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B]()), nil, func(v View) error {
		Batched2(v, batchSize, batched, basic)
		return nil
	})
}

func EachBatched3[A, B, C Fetch](r *Registry, batchSize int, batched func([]A, []B, []C), basic func(*A, *B, *C)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C]()), nil, func(v View) error {
		Batched3(v, batchSize, batched, basic)
		return nil
	})
}

func EachBatched4[A, B, C, D Fetch](r *Registry, batchSize int, batched func([]A, []B, []C, []D), basic func(*A, *B, *C, *D)) error {
	return r.ForEachArchetype(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C](), TypeOf[D]()), nil, func(v View) error {
		Batched4(v, batchSize, batched, basic)
		return nil
	})
}

// Retain1 despawns all entities for which keep returns false.
func Retain1[A Fetch](r *Registry, keep func(*A) bool) error {
	return r.retain(typeList(TypeOf[A]()), func(v *View) []EntityId {
		return Modify1(v, All, false, keep)
	})
}

func Retain2[A, B Fetch](r *Registry, keep func(*A, *B) bool) error {
	return r.retain(typeList(TypeOf[A](), TypeOf[B]()), func(v *View) []EntityId {
		return Modify2(v, All, false, keep)
	})
}

func Retain3[A, B, C Fetch](r *Registry, keep func(*A, *B, *C) bool) error {
	return r.retain(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C]()), func(v *View) []EntityId {
		return Modify3(v, All, false, keep)
	})
}

func Retain4[A, B, C, D Fetch](r *Registry, keep func(*A, *B, *C, *D) bool) error {
	return r.retain(typeList(TypeOf[A](), TypeOf[B](), TypeOf[C](), TypeOf[D]()), func(v *View) []EntityId {
		return Modify4(v, All, false, keep)
	})
}

func typeList(tys ...*ComponentType) []*ComponentType {
	return tys
}
