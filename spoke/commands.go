package spoke

import (
	"slices"
	"sync"
)

type Command func(r *Registry)

// Commands buffers structural changes, e.g. while iterating over a Registry.
// Commands can be queued concurrently and are run by Registry.Apply.
type Commands struct {
	mu    sync.Mutex
	queue []Command
}

func (c *Commands) Queue(command Command) *Commands {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, command)
	return c
}

// Spawn queues the creation of an entity with the given component values.
func (c *Commands) Spawn(entity EntityId, components ...ErasedComponent) *Commands {
	components = slices.Clone(components)

	return c.Queue(func(r *Registry) {
		r.Spawn(entity, components)
	})
}

func (c *Commands) Despawn(entity EntityId) *Commands {
	return c.Queue(func(r *Registry) {
		r.RemoveEntity(entity)
	})
}

func (c *Commands) AddComponent(entity EntityId, ty *ComponentType) *Commands {
	return c.Queue(func(r *Registry) {
		r.AddComponent(entity, ty)
	})
}

func (c *Commands) RemoveComponent(entity EntityId, ty *ComponentType) *Commands {
	return c.Queue(func(r *Registry) {
		r.RemoveComponent(entity, ty)
	})
}

// Insert queues setting the component C of the entity to value.
func Insert[C IsComponent[C]](c *Commands, entity EntityId, value C) *Commands {
	return c.Queue(func(r *Registry) {
		Set(r, entity, value)
	})
}

func (c *Commands) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.queue)
}

func (c *Commands) take() []Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.queue
	c.queue = nil

	return queue
}
