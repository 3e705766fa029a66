package stockpile

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/oliverbestmann/stockpile/jobs"
	"github.com/oliverbestmann/stockpile/spoke"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// World holds all entities, the values of shared components, and the job scheduler.
type World struct {
	registry  *spoke.Registry
	scheduler *jobs.Scheduler
	pipeline  jobs.Pipeline
	commands  spoke.Commands

	entityIdSeq atomic.Uint32

	sharedMu sync.Mutex
	shared   map[*spoke.ComponentType]spoke.ErasedSharedTable

	logger zerolog.Logger
}

type Option func(w *World)

// WithLogger sets the logger of the world and all its parts.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *World) {
		w.logger = logger
	}
}

// WithPipeline replaces the default TickPipeline of the world.
func WithPipeline(pipeline jobs.Pipeline) Option {
	return func(w *World) {
		w.pipeline = pipeline
	}
}

// WithMaxThreads limits the parallelism of the default TickPipeline.
func WithMaxThreads(maxThreads int) Option {
	return func(w *World) {
		w.pipeline = jobs.NewTickPipeline(maxThreads)
	}
}

// NewWorld creates a new empty world.
func NewWorld(options ...Option) *World {
	w := &World{
		registry: spoke.NewRegistry(),
		shared:   map[*spoke.ComponentType]spoke.ErasedSharedTable{},
		logger:   log.Logger,
	}

	for _, option := range options {
		option(w)
	}

	if w.pipeline == nil {
		w.pipeline = jobs.NewTickPipeline(runtime.GOMAXPROCS(0))
	}

	w.registry.InjectLogger(&w.logger)

	w.scheduler = jobs.NewScheduler(w.registry, w.pipeline)
	w.scheduler.InjectLogger(&w.logger)

	return w
}

func (w *World) Registry() *spoke.Registry {
	return w.registry
}

func (w *World) Scheduler() *jobs.Scheduler {
	return w.scheduler
}

// Commands returns the command buffer that is applied on each Tick.
func (w *World) Commands() *spoke.Commands {
	return &w.commands
}

// ReserveEntityId returns a new entity id that has not been used before.
// It panics once all ids are used up.
func (w *World) ReserveEntityId() EntityId {
	for {
		current := w.entityIdSeq.Load()

		next := EntityId(current + 1)
		if next == spoke.NoEntity {
			panic(fmt.Sprintf("all %d entity ids are in use", current))
		}

		if w.entityIdSeq.CompareAndSwap(current, uint32(next)) {
			return next
		}
	}
}

// Spawn creates a new entity with the given components. Values of shared
// components are stored in the table of their type.
func (w *World) Spawn(components ...ErasedComponent) (EntityId, error) {
	entityId := w.ReserveEntityId()

	if err := w.SpawnWithId(entityId, components...); err != nil {
		return spoke.NoEntity, err
	}

	return entityId, nil
}

// SpawnWithId creates an entity with an id obtained from ReserveEntityId.
func (w *World) SpawnWithId(entityId EntityId, components ...ErasedComponent) error {
	var normal []ErasedComponent
	var shared []spoke.SharedIndex

	for _, component := range components {
		ty := component.ComponentType()
		if !ty.IsShared() {
			normal = append(normal, component)
			continue
		}

		index, err := w.sharedTable(ty).InternValue(component)
		if err != nil {
			return eris.Wrapf(err, "spawn entity %s", entityId)
		}

		shared = append(shared, spoke.SharedIndex{Type: ty, Index: index})
	}

	if len(components) > 0 && w.registry.Spawn(entityId, normal, shared...) == spoke.NoRow {
		return eris.Errorf("entity %s already exists", entityId)
	}

	return nil
}

// Despawn removes the entity and all of its components.
func (w *World) Despawn(entityId EntityId) bool {
	return w.registry.RemoveEntity(entityId)
}

// SetShared assigns a shared component value to the entity, adding the
// component if the entity does not have it yet.
func (w *World) SetShared(entityId EntityId, value ErasedComponent) error {
	ty := value.ComponentType()
	if !ty.IsShared() {
		return eris.Errorf("component %s is not shared", ty)
	}

	index, err := w.sharedTable(ty).InternValue(value)
	if err != nil {
		return eris.Wrapf(err, "set shared component of %s", entityId)
	}

	*(*uint16)(w.registry.AddComponent(entityId, ty)) = index

	return nil
}

func (w *World) sharedTable(ty *spoke.ComponentType) spoke.ErasedSharedTable {
	w.sharedMu.Lock()
	defer w.sharedMu.Unlock()

	table, ok := w.shared[ty]
	if !ok {
		table = ty.NewSharedTable()
		w.shared[ty] = table
	}

	return table
}

// SharedTableOf returns the table holding all values of the shared component S.
func SharedTableOf[S IsComponent[S]](w *World) *spoke.SharedTable[S] {
	ty := spoke.ComponentTypeOf[S]()
	if !ty.IsShared() {
		panic(fmt.Sprintf("component %s is not shared", ty))
	}

	return w.sharedTable(ty).(*spoke.SharedTable[S])
}

// Tick advances the pipeline, if it is a TickPipeline, and then applies all queued commands.
// Before applying commands, Tick waits for jobs still running in the background,
// so that no chunk observes the structural changes.
func (w *World) Tick(ctx context.Context) error {
	pipeline, ok := w.pipeline.(*jobs.TickPipeline)
	if ok {
		if err := pipeline.Tick(ctx); err != nil {
			return eris.Wrap(err, "tick")
		}
	}

	if w.commands.Len() == 0 {
		return nil
	}

	if ok {
		if err := pipeline.Drain(); err != nil {
			return eris.Wrap(err, "background jobs")
		}
	}

	if applied := w.registry.Apply(&w.commands); applied > 0 {
		w.logger.Debug().Int("commands", applied).Msg("applied commands")
	}

	return nil
}

// Close waits for background jobs to finish.
func (w *World) Close() error {
	if pipeline, ok := w.pipeline.(*jobs.TickPipeline); ok {
		return pipeline.Drain()
	}

	return nil
}
