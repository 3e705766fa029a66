package spoke

import (
	"fmt"
	"slices"
	"sync"
	"unsafe"

	"github.com/kamstrup/intmap"
	"github.com/oliverbestmann/stockpile/internal/assert"
	"github.com/oliverbestmann/stockpile/internal/typedpool"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registry owns all archetypes of a world and knows which archetype each
// entity lives in. An entity without any components is not stored at all.
//
// The registry lock guards the list of archetypes and the entity index and is
// always acquired before any archetype lock. Iteration does not hold the
// registry lock while visiting an archetype.
//
// The entity index may briefly point to an archetype that no longer stores the
// entity, while a Retain is dropping the entries of the entities it removed.
// Such entries are treated as absent.
//
// Structural changes to an archetype that is currently iterated panic with
// ErrCollectionModified. ForEachArchetype recovers this panic if it was caused
// by its own callback and returns the error instead.
type Registry struct {
	mu sync.RWMutex

	archetypes []*Archetype
	entities   *intmap.Map[EntityId, ArchetypeId]

	logger zerolog.Logger

	deferred *typedpool.Pool[[]*Archetype]
}

func NewRegistry() *Registry {
	return &Registry{
		entities: intmap.New[EntityId, ArchetypeId](256),
		logger:   log.Logger,
		deferred: typedpool.New(func(archetypes *[]*Archetype) {
			clear(*archetypes)
			*archetypes = (*archetypes)[:0]
		}),
	}
}

// InjectLogger replaces the logger used by the registry.
func (r *Registry) InjectLogger(logger *zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger = logger.With().Str("component", "registry").Logger()
}

// FindOrCreateArchetype returns the archetype with exactly the given signature.
func (r *Registry) FindOrCreateArchetype(sig Signature) *Archetype {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.findOrCreateArchetype(sig)
}

func (r *Registry) findOrCreateArchetype(sig Signature) *Archetype {
	for _, archetype := range r.archetypes {
		if archetype.Signature.Equal(sig) {
			return archetype
		}
	}

	archetype := NewArchetype(ArchetypeId(len(r.archetypes)), sig)
	r.archetypes = append(r.archetypes, archetype)

	r.logger.Debug().
		Uint32("archetype_id", uint32(archetype.Id)).
		Stringer("signature", sig).
		Msg("created")

	return archetype
}

func (r *Registry) archetypeOf(entity EntityId) *Archetype {
	id, ok := r.entities.Get(entity)
	if !ok {
		return nil
	}

	archetype := r.archetypes[id]
	if !archetype.Has(entity) {
		return nil
	}

	return archetype
}

// Archetype returns the archetype the entity is stored in.
func (r *Registry) Archetype(entity EntityId) (*Archetype, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	archetype := r.archetypeOf(entity)
	return archetype, archetype != nil
}

// Archetypes returns a snapshot of all archetypes.
func (r *Registry) Archetypes() []*Archetype {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.archetypes)
}

// AddEntity appends a zero initialized row for the entity to the archetype.
// Returns NoRow if the entity is already stored.
func (r *Registry) AddEntity(entity EntityId, archetype *Archetype) Row {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.archetypeOf(entity) != nil {
		return NoRow
	}

	row := archetype.Add(entity)
	if row != NoRow {
		r.entities.Put(entity, archetype.Id)
	}

	return row
}

// SharedIndex assigns an index into a SharedTable to a shared component type.
type SharedIndex struct {
	Type  *ComponentType
	Index uint16
}

// Spawn stores a new entity with the given normal component values and shared
// indices. Component values must be pointers. Returns NoRow if the entity
// already exists or if no component was given.
func (r *Registry) Spawn(entity EntityId, components []ErasedComponent, shared ...SharedIndex) Row {
	types := make([]*ComponentType, 0, len(components)+len(shared))
	for _, component := range components {
		ty := component.ComponentType()
		if ty.IsShared() {
			panic(fmt.Sprintf("shared component %s must be spawned using a SharedIndex", ty))
		}

		types = append(types, ty)
	}

	for _, index := range shared {
		types = append(types, index.Type)
	}

	sig := SignatureOf(types...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if sig.Len() == 0 || r.archetypeOf(entity) != nil {
		return NoRow
	}

	archetype := r.findOrCreateArchetype(sig)

	archetype.lockForWrite()
	defer archetype.mu.Unlock()

	row := archetype.add(entity)

	for _, component := range components {
		column := archetype.columnOf(component.ComponentType())
		column.CopyElementFrom(row, pointerTo(component))
	}

	for _, index := range shared {
		column := archetype.columnOf(index.Type)
		*(*uint16)(column.PtrTo(row)) = index.Index
	}

	r.entities.Put(entity, archetype.Id)

	return row
}

// MoveEntity moves the entity into the archetype with the given signature.
// Values of types in both signatures are kept, values of types not in sig are dropped
// and new types are zero initialized. Moving an entity to the empty signature removes it.
func (r *Registry) MoveEntity(entity EntityId, sig Signature) Row {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.moveEntity(entity, sig)
}

func (r *Registry) moveEntity(entity EntityId, sig Signature) Row {
	source := r.archetypeOf(entity)

	if sig.Len() == 0 {
		if source != nil {
			source.Remove(entity, true)
			r.entities.Del(entity)
		}

		return NoRow
	}

	target := r.findOrCreateArchetype(sig)

	if source == target {
		if row, ok := source.Row(entity); ok {
			return row
		}

		source = nil
	}

	if source == nil {
		row := target.Add(entity)
		r.entities.Put(entity, target.Id)
		return row
	}

	unlock := lockPair(source, target)
	defer unlock()

	sourceRow, ok := source.rows.Row(entity)
	if !ok {
		// removed by a Retain after the lookup above
		row := target.add(entity)
		r.entities.Put(entity, target.Id)
		return row
	}

	row := target.add(entity)
	target.copyFromAndDisposeOld(row, sourceRow, source)
	source.remove(entity, true)

	r.entities.Put(entity, target.Id)

	return row
}

// RemoveEntity removes the entity and all its components.
func (r *Registry) RemoveEntity(entity EntityId) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	archetype := r.archetypeOf(entity)
	if archetype == nil {
		return false
	}

	removed := archetype.Remove(entity, true)
	r.entities.Del(entity)

	return removed
}

// AddComponent adds a zero value of the given type to the entity and returns a pointer to it.
// If the entity already has the component, the existing value is returned.
func (r *Registry) AddComponent(entity EntityId, ty *ComponentType) unsafe.Pointer {
	r.mu.Lock()
	defer r.mu.Unlock()

	var sig Signature
	if archetype := r.archetypeOf(entity); archetype != nil {
		sig = archetype.Signature
	}

	row := r.moveEntity(entity, sig.With(ty))

	return r.archetypeOf(entity).GetComponent(ty, row)
}

// RemoveComponent removes the given type from the entity. Returns false if
// the entity does not have the component.
func (r *Registry) RemoveComponent(entity EntityId, ty *ComponentType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	archetype := r.archetypeOf(entity)
	if archetype == nil || !archetype.Signature.Has(ty) {
		return false
	}

	r.moveEntity(entity, archetype.Signature.Without(ty))

	return true
}

// GetComponent returns a pointer to the value of the given type, or nil.
func (r *Registry) GetComponent(entity EntityId, ty *ComponentType) unsafe.Pointer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	archetype := r.archetypeOf(entity)
	if archetype == nil {
		return nil
	}

	return archetype.ComponentOf(entity, ty)
}

// SignatureOf returns the signature of the archetype the entity lives in.
func (r *Registry) SignatureOf(entity EntityId) (Signature, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	archetype := r.archetypeOf(entity)
	if archetype == nil {
		return Signature{}, false
	}

	return archetype.Signature, true
}

func (r *Registry) HasComponent(entity EntityId, ty *ComponentType) bool {
	sig, ok := r.SignatureOf(entity)
	return ok && sig.Has(ty)
}

// EntityCount returns the number of entities stored in all archetypes.
func (r *Registry) EntityCount() int {
	var count int
	for _, archetype := range r.Archetypes() {
		count += archetype.Len()
	}

	return count
}

// Clear removes all entities. The archetypes themselves are kept.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, archetype := range r.archetypes {
		archetype.Clear()
	}

	r.entities.Clear()

	r.logger.Debug().Int("archetypes", len(r.archetypes)).Msg("cleared")
}

// Trim releases unused memory of all archetypes. Returns the number of archetypes trimmed.
func (r *Registry) Trim() int {
	var trimmed int
	for _, archetype := range r.Archetypes() {
		if archetype.Trim() {
			trimmed++
		}
	}

	r.logger.Debug().Int("archetypes", trimmed).Msg("trimmed")

	return trimmed
}

// Matching returns all archetypes that store the given types and match the filter.
func (r *Registry) Matching(types []*ComponentType, filter *Filter) []*Archetype {
	required := SignatureOf(types...)

	var matching []*Archetype
	for _, archetype := range r.Archetypes() {
		if archetype.ContainsArchetype(required) && filter.MatchesSignature(archetype.Signature) {
			matching = append(matching, archetype)
		}
	}

	return matching
}

// ForEachArchetype calls fn with a view over each non-empty archetype that stores the given types
// and matches the filter. The view has one slot per type, in the order given.
//
// The archetype is locked while fn runs. An archetype that is currently locked elsewhere is
// deferred and visited once all other archetypes were visited. fn may read from the Registry.
// Adding or removing entities or components of the visited archetype through the Registry
// stops the iteration with ErrCollectionModified, use Commands instead.
func (r *Registry) ForEachArchetype(types []*ComponentType, filter *Filter, fn func(View) error) error {
	deferred := r.deferred.Get()
	defer r.deferred.Put(deferred)

	visit := func(archetype *Archetype) (err error) {
		archetype.iterating.Add(1)

		defer func() {
			archetype.iterating.Add(-1)
			archetype.mu.Unlock()
		}()

		defer recoverModification(&err)

		if archetype.rows.Len() == 0 {
			return nil
		}

		view, ok := archetype.view(types)
		assert.That(ok, "archetype %s does not store all of %v", archetype, types)

		return fn(view)
	}

	for _, archetype := range r.Matching(types, filter) {
		if !archetype.mu.TryLock() {
			*deferred = append(*deferred, archetype)
			continue
		}

		if err := visit(archetype); err != nil {
			return err
		}
	}

	for _, archetype := range *deferred {
		archetype.mu.Lock()

		if err := visit(archetype); err != nil {
			return err
		}
	}

	return nil
}

// recoverModification turns a panic caused by a structural change during
// iteration back into an error.
func recoverModification(err *error) {
	r := recover()
	if r == nil {
		return
	}

	if modErr, ok := r.(error); ok && eris.Is(modErr, ErrCollectionModified) {
		*err = modErr
		return
	}

	panic(r)
}

func (r *Registry) retain(types []*ComponentType, modify func(v *View) []EntityId) error {
	var removed []EntityId

	err := r.ForEachArchetype(types, nil, func(v View) error {
		removed = append(removed, modify(&v)...)
		return nil
	})

	if len(removed) > 0 {
		r.mu.Lock()
		defer r.mu.Unlock()

		for _, entity := range removed {
			// the entity might have been added again in the meantime
			if r.archetypeOf(entity) == nil {
				r.entities.Del(entity)
			}
		}
	}

	return err
}

// Apply runs all commands queued in the given buffer. Returns the number of commands run.
func (r *Registry) Apply(commands *Commands) int {
	queue := commands.take()

	for _, command := range queue {
		command(r)
	}

	return len(queue)
}
