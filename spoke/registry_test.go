package spoke

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_AddComponentMigrates(t *testing.T) {
	r := NewRegistry()

	r.Spawn(1, []ErasedComponent{&Counter{Value: 7}})

	health := Add[Health](r, 1)
	require.NotNil(t, health)
	require.Zero(t, health.Value)

	sig, ok := r.SignatureOf(1)
	require.True(t, ok)
	require.True(t, sig.Equal(SignatureOf(ComponentTypeOf[Counter](), ComponentTypeOf[Health]())))

	counter, ok := Get[Counter](r, 1)
	require.True(t, ok)
	require.Equal(t, uint32(7), counter.Value)

	health, ok = Get[Health](r, 1)
	require.True(t, ok)
	require.Zero(t, health.Value)
}

func TestRegistry_FindOrCreateIsUnique(t *testing.T) {
	r := NewRegistry()

	types := []*ComponentType{ComponentTypeOf[Position](), ComponentTypeOf[Velocity](), ComponentTypeOf[Team]()}

	first := r.FindOrCreateArchetype(SignatureOf(types...))

	permutations := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, perm := range permutations {
		sig := SignatureOf(types[perm[0]], types[perm[1]], types[perm[2]])
		require.Same(t, first, r.FindOrCreateArchetype(sig))
	}

	require.Len(t, r.Archetypes(), 1)

	other := r.FindOrCreateArchetype(SignatureOf(types[0], types[1]))
	require.NotSame(t, first, other)
	require.Len(t, r.Archetypes(), 2)
}

func TestRegistry_MoveEntityPreservesOverlap(t *testing.T) {
	r := NewRegistry()

	r.Spawn(1,
		[]ErasedComponent{&Position{X: 1, Y: 2}, &Counter{Value: 3}},
		SharedIndex{Type: ComponentTypeOf[Team](), Index: 5},
	)

	// a second entity in the source archetype that gets swapped on removal
	r.Spawn(2, []ErasedComponent{&Position{X: 4}, &Counter{Value: 6}},
		SharedIndex{Type: ComponentTypeOf[Team](), Index: 1},
	)

	source, _ := r.Archetype(1)

	row := r.MoveEntity(1, SignatureOf(
		ComponentTypeOf[Position](), ComponentTypeOf[Velocity](),
		ComponentTypeOf[Team](), ComponentTypeOf[Mesh](),
	))

	require.NotEqual(t, NoRow, row)

	target, _ := r.Archetype(1)
	require.NotSame(t, source, target)

	position, _ := Get[Position](r, 1)
	require.Equal(t, Position{X: 1, Y: 2}, *position)

	velocity, _ := Get[Velocity](r, 1)
	require.Equal(t, Velocity{}, *velocity)

	_, ok := Get[Counter](r, 1)
	require.False(t, ok)

	team, _ := GetShared[Team](r, 1)
	require.Equal(t, uint16(5), team.Index)

	mesh, _ := GetShared[Mesh](r, 1)
	require.Equal(t, uint16(0), mesh.Index)

	// the other entity was not touched
	counter, _ := Get[Counter](r, 2)
	require.Equal(t, uint32(6), counter.Value)

	require.Equal(t, 1, source.Len())
	require.NoError(t, source.CheckInvariants())
	require.NoError(t, target.CheckInvariants())
}

func TestRegistry_RemoveComponent(t *testing.T) {
	r := NewRegistry()
	r.Spawn(1, []ErasedComponent{&Position{X: 1}, &Velocity{X: 2}})

	require.False(t, Remove[Health](r, 1))
	require.True(t, Remove[Velocity](r, 1))
	require.False(t, Has[Velocity](r, 1))

	position, ok := Get[Position](r, 1)
	require.True(t, ok)
	require.Equal(t, float32(1), position.X)

	// removing the last component removes the entity
	require.True(t, Remove[Position](r, 1))
	_, ok = r.Archetype(1)
	require.False(t, ok)

	require.False(t, Remove[Position](r, 99))
}

func TestRegistry_AddComponentWithoutArchetype(t *testing.T) {
	r := NewRegistry()

	counter := Set(r, 5, Counter{Value: 11})
	require.Equal(t, uint32(11), counter.Value)

	again := Add[Counter](r, 5)
	require.Equal(t, uint32(11), again.Value)
	require.Equal(t, 1, r.EntityCount())
}

func TestRegistry_SpawnAndRemove(t *testing.T) {
	r := NewRegistry()

	require.Equal(t, Row(0), r.Spawn(1, []ErasedComponent{&Counter{Value: 1}}))
	require.Equal(t, NoRow, r.Spawn(1, []ErasedComponent{&Counter{Value: 1}}))
	require.Equal(t, NoRow, r.Spawn(2, nil))

	archetype := r.FindOrCreateArchetype(SignatureOf(ComponentTypeOf[Counter]()))
	require.Equal(t, Row(1), r.AddEntity(3, archetype))
	require.Equal(t, NoRow, r.AddEntity(3, archetype))

	require.True(t, r.RemoveEntity(1))
	require.False(t, r.RemoveEntity(1))
	require.Nil(t, r.GetComponent(1, ComponentTypeOf[Counter]()))

	require.Equal(t, 1, r.EntityCount())

	require.Panics(t, func() {
		r.Spawn(4, []ErasedComponent{&Team{}})
	})
}

func TestRegistry_EachVisitsMatchingRowsOnce(t *testing.T) {
	r := NewRegistry()

	var expected []float32

	for idx := range 30 {
		entity := EntityId(idx)
		position := &Position{X: float32(idx)}

		switch idx % 4 {
		case 0:
			r.Spawn(entity, []ErasedComponent{position, &Velocity{}})
			expected = append(expected, position.X)
		case 1:
			r.Spawn(entity, []ErasedComponent{position})
		case 2:
			r.Spawn(entity, []ErasedComponent{position, &Velocity{}, &Health{}})
			expected = append(expected, position.X)
		case 3:
			r.Spawn(entity, []ErasedComponent{&Velocity{}, &Counter{}})
		}
	}

	var visited []float32
	err := Each2(r, func(position *Position, velocity *Velocity) {
		visited = append(visited, position.X)
		velocity.X = position.X * 2
	})

	require.NoError(t, err)
	require.ElementsMatch(t, expected, visited)

	velocity, _ := Get[Velocity](r, 2)
	require.Equal(t, float32(4), velocity.X)

	// filtered
	visited = visited[:0]
	err = EachWhere1(r, WithoutType(ComponentTypeOf[Health]()), func(position *Position) {
		visited = append(visited, position.X)
	})

	require.NoError(t, err)
	require.Len(t, visited, 16)
}

func TestRegistry_EachSharedSlot(t *testing.T) {
	r := NewRegistry()

	table := NewSharedTable[Team]()
	red, err := table.Add(Team{Color: 0xff0000})
	require.NoError(t, err)

	r.Spawn(1, []ErasedComponent{&Counter{}}, SharedIndex{Type: ComponentTypeOf[Team](), Index: red})
	r.Spawn(2, []ErasedComponent{&Counter{}}, SharedIndex{Type: ComponentTypeOf[Team](), Index: 0})

	err = Each2(r, func(counter *Counter, team *Shared[Team]) {
		counter.Value = team.Value(table).Color
	})

	require.NoError(t, err)

	first, _ := Get[Counter](r, 1)
	require.Equal(t, uint32(0xff0000), first.Value)

	second, _ := Get[Counter](r, 2)
	require.Zero(t, second.Value)
}

func TestRegistry_EachDefersLockedArchetype(t *testing.T) {
	r := NewRegistry()

	r.Spawn(1, []ErasedComponent{&Counter{Value: 1}})
	r.Spawn(2, []ErasedComponent{&Counter{Value: 2}, &Tag{}})

	locked, _ := r.Archetype(1)
	locked.mu.Lock()

	visited := make(chan uint32, 2)
	done := make(chan error, 1)

	go func() {
		done <- Each1(r, func(counter *Counter) {
			visited <- counter.Value
		})
	}()

	select {
	case value := <-visited:
		require.Equal(t, uint32(2), value)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "unlocked archetype was not visited")
	}

	select {
	case <-done:
		require.FailNow(t, "iteration finished without visiting the locked archetype")
	default:
	}

	locked.mu.Unlock()

	require.NoError(t, <-done)
	require.Equal(t, uint32(1), <-visited)
}

func TestRegistry_EachReadsFromRegistry(t *testing.T) {
	r := NewRegistry()

	for idx := range 10 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: uint32(idx)}})
	}

	var sum uint32

	done := make(chan error, 1)
	go func() {
		done <- Each1(r, func(counter *Counter) {
			// another entity of the archetype that is currently visited
			other, ok := Get[Counter](r, EntityId(9-counter.Value))
			if ok && Has[Counter](r, EntityId(counter.Value)) {
				sum += other.Value
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "reading from the registry blocked the iteration")
	}

	require.Equal(t, uint32(45), sum)
}

func TestRegistry_EachRejectsStructuralChanges(t *testing.T) {
	r := NewRegistry()
	r.Spawn(1, []ErasedComponent{&Counter{Value: 1}})
	r.Spawn(2, []ErasedComponent{&Counter{Value: 2}})
	r.Spawn(3, []ErasedComponent{&Health{Value: 3}})

	err := Each1(r, func(counter *Counter) {
		r.RemoveEntity(2)
	})

	require.ErrorIs(t, err, ErrCollectionModified)

	err = Each1(r, func(counter *Counter) {
		Add[Health](r, 1)
	})

	require.ErrorIs(t, err, ErrCollectionModified)

	err = EachWhere1(r, nil, func(counter *Counter) {
		Set(r, EntityId(10+counter.Value), Counter{})
	})

	require.ErrorIs(t, err, ErrCollectionModified)

	// nothing was changed
	require.Equal(t, 3, r.EntityCount())
	require.True(t, Has[Counter](r, 2))
	require.False(t, Has[Health](r, 1))

	// other archetypes can be changed
	err = Each1(r, func(counter *Counter) {
		r.RemoveEntity(3)
	})

	require.NoError(t, err)
	require.False(t, Has[Health](r, 3))

	// the archetype is usable after the iteration
	require.True(t, r.RemoveEntity(2))

	for _, archetype := range r.Archetypes() {
		require.NoError(t, archetype.CheckInvariants())
	}
}

func TestRegistry_StructuralChangeDuringIterationPanics(t *testing.T) {
	r := NewRegistry()
	r.Spawn(1, []ErasedComponent{&Counter{}})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- Each1(r, func(counter *Counter) {
			close(entered)
			<-release
		})
	}()

	<-entered

	require.Panics(t, func() { r.RemoveEntity(1) })

	close(release)
	require.NoError(t, <-done)

	require.True(t, r.RemoveEntity(1))
}

func TestRegistry_EachWherePredicate(t *testing.T) {
	r := NewRegistry()

	r.Spawn(1, []ErasedComponent{&Position{X: 1}})
	r.Spawn(2, []ErasedComponent{&Position{X: 2}, &Velocity{}})
	r.Spawn(3, []ErasedComponent{&Position{X: 3}, &Velocity{}, &Health{}})
	r.Spawn(4, []ErasedComponent{&Position{X: 4}}, SharedIndex{Type: ComponentTypeOf[Team]()})

	collect := func(filter *Filter) []float32 {
		var visited []float32
		err := EachWhere1(r, filter, func(position *Position) {
			visited = append(visited, position.X)
		})

		require.NoError(t, err)
		return visited
	}

	twoTypes := Where(func(sig Signature) bool {
		return len(sig.Normal()) == 2
	})

	require.Equal(t, []float32{2}, collect(twoTypes))

	hasShared := Where(func(sig Signature) bool {
		return len(sig.Shared()) > 0
	})

	require.Equal(t, []float32{4}, collect(hasShared))
	require.ElementsMatch(t, []float32{1, 2, 3, 4}, collect(nil))
}

func TestRegistry_EachWhereOr(t *testing.T) {
	r := NewRegistry()

	r.Spawn(1, []ErasedComponent{&Position{X: 1}})
	r.Spawn(2, []ErasedComponent{&Position{X: 2}, &Velocity{}})
	r.Spawn(3, []ErasedComponent{&Position{X: 3}, &Velocity{}, &Health{}})
	r.Spawn(4, []ErasedComponent{&Position{X: 4}}, SharedIndex{Type: ComponentTypeOf[Team]()})

	collect := func(filter *Filter) []float32 {
		var visited []float32
		err := EachWhere1(r, filter, func(position *Position) {
			visited = append(visited, position.X)
		})

		require.NoError(t, err)
		return visited
	}

	healthOrShared := &Filter{
		Or: []Filter{
			{With: ComponentTypeOf[Health]()},
			{Predicate: func(sig Signature) bool { return len(sig.Shared()) > 0 }},
		},
	}

	require.ElementsMatch(t, []float32{3, 4}, collect(healthOrShared))

	// the other fields of the filter must match as well
	withoutHealth := &Filter{
		Without: ComponentTypeOf[Health](),
		Or: []Filter{
			{With: ComponentTypeOf[Velocity]()},
			{With: ComponentTypeOf[Team]()},
		},
	}

	require.ElementsMatch(t, []float32{2, 4}, collect(withoutHealth))
}

func TestRegistry_StaleIndexEntryIsIgnored(t *testing.T) {
	r := NewRegistry()
	r.Spawn(1, []ErasedComponent{&Counter{Value: 1}, &Velocity{X: 1}})
	r.Spawn(2, []ErasedComponent{&Counter{Value: 2}, &Velocity{X: 2}})

	// remove the rows but keep the index entries, like a Retain does
	// until it has finished iterating
	archetype, _ := r.Archetype(1)
	require.True(t, archetype.Remove(1, true))
	require.True(t, archetype.Remove(2, true))

	_, ok := r.Archetype(1)
	require.False(t, ok)

	_, ok = Get[Counter](r, 1)
	require.False(t, ok)

	require.NotPanics(t, func() {
		require.False(t, Remove[Velocity](r, 1))
		require.False(t, r.RemoveEntity(2))
		Set(r, 1, Health{Value: 5})
	})

	health, ok := Get[Health](r, 1)
	require.True(t, ok)
	require.Equal(t, uint32(5), health.Value)
	require.False(t, Has[Counter](r, 1))

	require.Equal(t, 1, r.EntityCount())

	for _, archetype := range r.Archetypes() {
		require.NoError(t, archetype.CheckInvariants())
	}
}

func TestRegistry_RetainReadsFromRegistry(t *testing.T) {
	r := NewRegistry()
	r.Spawn(100, []ErasedComponent{&Health{Value: 5}})

	for idx := range 10 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: uint32(idx)}})
	}

	err := Retain1(r, func(counter *Counter) bool {
		limit, _ := Get[Health](r, 100)
		return counter.Value < limit.Value && Has[Counter](r, EntityId(counter.Value))
	})

	require.NoError(t, err)
	require.Equal(t, 6, r.EntityCount())
}

func TestRegistry_Retain(t *testing.T) {
	r := NewRegistry()

	for idx := range 20 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: uint32(idx)}})
	}

	for idx := 20; idx < 30; idx++ {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: uint32(idx)}, &Tag{}})
	}

	err := Retain1(r, func(counter *Counter) bool {
		return counter.Value%2 == 1
	})

	require.NoError(t, err)
	require.Equal(t, 15, r.EntityCount())
	require.Equal(t, 15, r.entities.Len())

	for idx := range 30 {
		_, ok := r.Archetype(EntityId(idx))
		require.Equal(t, idx%2 == 1, ok, "entity %d", idx)
	}

	for _, archetype := range r.Archetypes() {
		require.NoError(t, archetype.CheckInvariants())
	}
}

func TestRegistry_EachBatched(t *testing.T) {
	r := NewRegistry()

	for idx := range 23 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: 1}})
	}

	var batches, singles int
	err := EachBatched1(r, 5,
		func(counters []Counter) {
			require.Len(t, counters, 5)
			batches++

			for idx := range counters {
				counters[idx].Value += 1
			}
		},
		func(counter *Counter) {
			singles++
			counter.Value += 1
		},
	)

	require.NoError(t, err)
	require.Equal(t, 4, batches)
	require.Equal(t, 3, singles)

	err = Each1(r, func(counter *Counter) {
		require.Equal(t, uint32(2), counter.Value)
	})

	require.NoError(t, err)
}

func TestRegistry_ClearAndTrim(t *testing.T) {
	r := NewRegistry()

	for idx := range 100 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{}})
	}

	archetypes := r.Archetypes()

	r.Clear()
	require.Zero(t, r.EntityCount())
	require.Equal(t, archetypes, r.Archetypes())

	require.Equal(t, 1, r.Trim())
	require.Zero(t, archetypes[0].Cap())

	_, ok := r.Archetype(5)
	require.False(t, ok)
}

func TestRegistry_Commands(t *testing.T) {
	r := NewRegistry()

	for idx := range 10 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Counter{Value: uint32(idx)}})
	}

	var commands Commands

	err := Each1(r, func(counter *Counter) {
		entity := EntityId(counter.Value)

		switch {
		case counter.Value < 3:
			commands.Despawn(entity)
		case counter.Value < 6:
			Insert(&commands, entity, Health{Value: 100})
		default:
			commands.Spawn(entity+100, &Counter{Value: counter.Value})
		}
	})

	require.NoError(t, err)
	require.Equal(t, 10, commands.Len())
	require.Equal(t, 10, r.Apply(&commands))
	require.Zero(t, commands.Len())

	require.Equal(t, 11, r.EntityCount())

	health, ok := Get[Health](r, 4)
	require.True(t, ok)
	require.Equal(t, uint32(100), health.Value)

	entities := r.Archetypes()[0].Entities()
	require.True(t, slices.Contains(entities, 106))
}

func BenchmarkRegistry_Each2(b *testing.B) {
	r := NewRegistry()

	for idx := range 10_000 {
		r.Spawn(EntityId(idx), []ErasedComponent{&Position{}, &Velocity{X: 1}})
	}

	b.ReportAllocs()

	for b.Loop() {
		_ = Each2(r, func(position *Position, velocity *Velocity) {
			position.X += velocity.X
		})
	}
}
