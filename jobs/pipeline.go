package jobs

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

type Work func() error

type EnqueueOptions struct {
	// Number of ticks to wait before the work is run
	DelayTicks int

	// Spread work over this many ticks
	LoadBalanceTicks int

	// Run the work on the goroutine calling Tick
	ForceSingleThread bool

	// Tick waits for the work to complete
	WaitForComplete bool
}

// Pipeline accepts work to run at a later point in time.
type Pipeline interface {
	Enqueue(work Work, opts EnqueueOptions)
}

type pendingWork struct {
	work Work
	due  uint64
	opts EnqueueOptions
}

// TickPipeline runs enqueued work when Tick is called. Work that is not single threaded
// runs on up to MaxThreads goroutines. Work that Tick does not wait for keeps running
// in the background, its errors are reported by Drain.
type TickPipeline struct {
	mu sync.Mutex

	tick    uint64
	pending []pendingWork

	// round robin counter for load balanced work
	balanceSeq uint64

	maxThreads int
	background *errgroup.Group
}

func NewTickPipeline(maxThreads int) *TickPipeline {
	return &TickPipeline{
		maxThreads: max(maxThreads, 1),
		background: newGroup(maxThreads),
	}
}

func newGroup(limit int) *errgroup.Group {
	var group errgroup.Group
	group.SetLimit(max(limit, 1))
	return &group
}

func (p *TickPipeline) Enqueue(work Work, opts EnqueueOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()

	due := p.tick + 1 + uint64(max(opts.DelayTicks, 0))

	if opts.LoadBalanceTicks > 0 {
		due += p.balanceSeq % uint64(opts.LoadBalanceTicks)
		p.balanceSeq++
	}

	p.pending = append(p.pending, pendingWork{work: work, due: due, opts: opts})
}

// Pending returns the number of work items not yet started.
func (p *TickPipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.pending)
}

// Tick advances the pipeline by one tick and starts all work that is due.
// Single threaded work runs in order of submission on the calling goroutine.
// Returns the first error of any work that Tick waited for.
func (p *TickPipeline) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "tick")
	}

	due := p.advance()

	foreground := newGroup(p.maxThreads)

	var singleThreaded []Work

	for _, item := range due {
		switch {
		case item.opts.ForceSingleThread:
			singleThreaded = append(singleThreaded, item.work)

		case item.opts.WaitForComplete:
			foreground.Go(item.work)

		default:
			p.backgroundGroup().Go(item.work)
		}
	}

	var firstErr error
	for _, work := range singleThreaded {
		if err := work(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := foreground.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Drain waits for all background work started by previous ticks.
func (p *TickPipeline) Drain() error {
	p.mu.Lock()
	group := p.background
	p.background = newGroup(p.maxThreads)
	p.mu.Unlock()

	return group.Wait()
}

func (p *TickPipeline) backgroundGroup() *errgroup.Group {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.background
}

func (p *TickPipeline) advance() []pendingWork {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tick++

	var due []pendingWork

	remaining := p.pending[:0]
	for _, item := range p.pending {
		if item.due <= p.tick {
			due = append(due, item)
		} else {
			remaining = append(remaining, item)
		}
	}

	clear(p.pending[len(remaining):])
	p.pending = remaining

	return due
}
