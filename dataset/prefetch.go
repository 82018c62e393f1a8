package dataset

import (
	"context"
	"io"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// PrefetchOptions configures a Prefetcher.
type PrefetchOptions struct {
	// Workers is the number of batches fetched concurrently.
	Workers int `json:"workers" yaml:"workers"`
	// Buffer is the number of ready batches held ahead of the consumer. Defaults to Workers.
	Buffer int `json:"buffer" yaml:"buffer"`
	// Shuffle visits batches in a random order, reseeded on every Reset.
	Shuffle bool `json:"shuffle" yaml:"shuffle"`
	// Seed for the shuffle order.
	Seed int64 `json:"seed" yaml:"seed"`
}

// Prefetcher is a Loader that fetches batches from a Source on a pool of workers.
//
// Batches are delivered in completion order, so the sequence seen by the consumer is not
// the source order even without Shuffle.
type Prefetcher struct {
	source Source
	opts   PrefetchOptions

	mu    sync.Mutex
	run   *prefetchRun
	epoch int64
}

type prefetchRun struct {
	cancel  context.CancelFunc
	batches chan Batch
	done    chan struct{}
	err     error
}

// NewPrefetcher creates a prefetching loader. Fetching starts on the first Next or Reset.
//
// Arguments:
//   - source: The batches to fetch.
//   - opts: Worker pool options.
//
// Returns:
//   - *Prefetcher: The loader. Close it to stop outstanding workers.
func NewPrefetcher(source Source, opts PrefetchOptions) *Prefetcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Buffer <= 0 {
		opts.Buffer = opts.Workers
	}
	return &Prefetcher{source: source, opts: opts}
}

// Next returns the next completed batch, or io.EOF once the source is exhausted.
func (p *Prefetcher) Next(ctx context.Context) (Batch, error) {
	p.mu.Lock()
	if p.run == nil {
		p.startLocked()
	}
	run := p.run
	p.mu.Unlock()

	select {
	case b, ok := <-run.batches:
		if !ok {
			if run.err != nil {
				return Batch{}, run.err
			}
			return Batch{}, io.EOF
		}
		return b, nil
	case <-ctx.Done():
		return Batch{}, ctx.Err()
	}
}

// Reset stops any fetch in progress and starts a new pass over the source.
func (p *Prefetcher) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.startLocked()
	return nil
}

// Close stops the workers and waits for them to exit.
func (p *Prefetcher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return nil
}

func (p *Prefetcher) stopLocked() {
	if p.run == nil {
		return
	}
	p.run.cancel()
	<-p.run.done
	p.run = nil
}

func (p *Prefetcher) startLocked() {
	order := make([]int, p.source.Len())
	for i := range order {
		order[i] = i
	}
	if p.opts.Shuffle {
		rng := rand.New(rand.NewSource(p.opts.Seed + p.epoch))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	p.epoch++

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	run := &prefetchRun{
		cancel:  cancel,
		batches: make(chan Batch, p.opts.Buffer),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(run.done)
		for _, idx := range order {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				b, err := p.source.Batch(gctx, idx)
				if err != nil {
					return errors.Wrapf(err, "fetching batch %d", idx)
				}
				select {
				case run.batches <- b:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		run.err = g.Wait()
		cancel()
		close(run.batches)
	}()

	p.run = run
}
