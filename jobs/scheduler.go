package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/oliverbestmann/stockpile/spoke"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrChunkPanicked = eris.New("job chunk panicked")

// Job processes the rows of one chunk.
type Job func(view spoke.View, state JobState) error

// Query selects the archetypes a job runs on. If Archetypes is set, those
// archetypes are used instead of searching the registry.
type Query struct {
	Types  []*spoke.ComponentType
	Filter *spoke.Filter

	Archetypes []*spoke.Archetype
}

// Scheduler splits jobs over the archetypes of a registry into chunks of rows and
// dispatches them to a pipeline. Chunks of one job cover disjoint rows and never wait
// for each other. The rows of an archetype must not be added or removed while
// chunks over that archetype are pending or running.
type Scheduler struct {
	registry *spoke.Registry
	pipeline Pipeline
	logger   zerolog.Logger
}

func NewScheduler(registry *spoke.Registry, pipeline Pipeline) *Scheduler {
	return &Scheduler{
		registry: registry,
		pipeline: pipeline,
		logger:   log.Logger,
	}
}

func (s *Scheduler) InjectLogger(logger *zerolog.Logger) {
	s.logger = logger.With().Str("component", "scheduler").Logger()
}

// Schedule creates the chunks for the query and runs or enqueues them. The returned
// Handle tracks the completion of all chunks.
func (s *Scheduler) Schedule(settings Settings, query Query, job Job) (*Handle, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if !settings.enabled() {
		return newHandle(0), nil
	}

	views, err := s.views(query)
	if err != nil {
		return nil, err
	}

	var chunks []spoke.View
	for _, view := range views {
		chunkSize := settings.ChunkSize(view.Len())

		for start := 0; start < view.Len(); start += chunkSize {
			chunks = append(chunks, view.Slice(start, chunkSize))
		}
	}

	handle := newHandle(len(chunks))

	s.logger.Debug().
		Int("archetypes", len(views)).
		Int("chunks", len(chunks)).
		Bool("execute_now", settings.ExecuteNow).
		Msg("schedule job")

	opts := EnqueueOptions{
		DelayTicks:        settings.TickDelay,
		LoadBalanceTicks:  settings.LoadBalancingTicks,
		ForceSingleThread: !settings.Multithreaded,
		WaitForComplete:   settings.WaitForComplete,
	}

	for idx, chunk := range chunks {
		state := JobState{
			CurrentIteration: idx,
			MaxIteration:     len(chunks) - 1,
			completed:        handle.completed,
		}

		work := func() error {
			return handle.run(s.logger, job, chunk, state)
		}

		if settings.ExecuteNow || s.pipeline == nil {
			_ = work()
			continue
		}

		s.pipeline.Enqueue(work, opts)
	}

	return handle, nil
}

func (s *Scheduler) views(query Query) ([]spoke.View, error) {
	if query.Archetypes != nil {
		views := make([]spoke.View, 0, len(query.Archetypes))

		for _, archetype := range query.Archetypes {
			view, ok := archetype.View(query.Types...)
			if !ok {
				return nil, eris.Wrapf(spoke.ErrUnknownComponent, "archetype %d", archetype.Id)
			}

			views = append(views, view)
		}

		return views, nil
	}

	var views []spoke.View

	err := s.registry.ForEachArchetype(query.Types, query.Filter, func(view spoke.View) error {
		views = append(views, view)
		return nil
	})

	return views, err
}

// Handle tracks the chunks of one scheduled job.
type Handle struct {
	total     int
	completed *atomic.Int32

	wg sync.WaitGroup

	errOnce sync.Once
	err     error
}

func newHandle(total int) *Handle {
	h := &Handle{
		total:     total,
		completed: &atomic.Int32{},
	}

	h.wg.Add(total)

	return h
}

func (h *Handle) run(logger zerolog.Logger, job Job, view spoke.View, state JobState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Wrapf(ErrChunkPanicked, "%v", r)
		}

		if err != nil {
			err = eris.Wrapf(err, "chunk %d of %d", state.CurrentIteration, state.MaxIteration+1)

			logger.Error().
				Err(err).
				Int("chunk", state.CurrentIteration).
				Msg("job chunk failed")

			h.errOnce.Do(func() { h.err = err })
		}

		h.completed.Add(1)
		h.wg.Done()
	}()

	return job(view, state)
}

// Total returns the number of chunks of the job.
func (h *Handle) Total() int {
	return h.total
}

// Completed returns the number of chunks that finished, successful or not.
func (h *Handle) Completed() int {
	return int(h.completed.Load())
}

func (h *Handle) Done() bool {
	return h.Completed() == h.total
}

// Wait blocks until all chunks completed and returns the first error.
func (h *Handle) Wait() error {
	h.wg.Wait()
	return h.err
}

// Err returns the first error of the job once all chunks completed.
func (h *Handle) Err() error {
	if !h.Done() {
		return nil
	}

	return h.Wait()
}
