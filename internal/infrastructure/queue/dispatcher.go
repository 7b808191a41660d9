package queue

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-registry/internal/core/domain"
	"github.com/99minutos/user-registry/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

type job struct {
	ctx     context.Context
	index   int
	request domain.CreateUserRequest
	results chan<- ports.RegistrationResult
}

// Dispatcher routes registrations to a fixed set of workers using consistent
// hashing on the username, so items sharing a username are registered in
// submission order.
type Dispatcher struct {
	workers []chan job
	service ports.UserService
	log     zerolog.Logger

	startOnce sync.Once
	done      chan struct{}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, service ports.UserService, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		service: service,
		log:     log,
		done:    make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Done is closed once every worker has returned. Calls after the first are
// no-ops.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		var wg sync.WaitGroup
		for i, ch := range d.workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d.runWorker(ctx, i, ch)
			}()
		}
		go func() {
			wg.Wait()
			close(d.done)
		}()
	})
}

// Done returns a channel that is closed after all workers have stopped.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Submit registers every request and returns one result per request, in
// input order. It blocks until all items finished, ctx is done, or the
// workers stop. In the last case it returns ports.ErrBatchStopped.
func (d *Dispatcher) Submit(ctx context.Context, requests []domain.CreateUserRequest) ([]ports.RegistrationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-d.done:
		return nil, ports.ErrBatchStopped
	default:
	}
	results := make(chan ports.RegistrationResult, len(requests))

	submitted := 0
	for i, req := range requests {
		j := job{ctx: ctx, index: i, request: req, results: results}
		select {
		case d.workers[d.shardIndex(req.Username)] <- j:
			submitted++
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.done:
			return nil, ports.ErrBatchStopped
		}
	}

	out := make([]ports.RegistrationResult, len(requests))
	for ; submitted > 0; submitted-- {
		select {
		case r := <-results:
			out[r.Index] = r
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.done:
			return nil, ports.ErrBatchStopped
		}
	}
	return out, nil
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case j := <-ch:
			d.process(id, j)
		}
	}
}

// drain answers jobs still buffered for a stopping worker so their
// submitters are not left waiting.
func (d *Dispatcher) drain(id int, ch <-chan job) {
	for {
		select {
		case j := <-ch:
			j.results <- ports.RegistrationResult{Index: j.index, Err: ports.ErrBatchStopped}
		default:
			d.log.Debug().Int("worker_id", id).Msg("batch worker stopped")
			return
		}
	}
}

func (d *Dispatcher) process(id int, j job) {
	if err := j.ctx.Err(); err != nil {
		j.results <- ports.RegistrationResult{Index: j.index, Err: err}
		return
	}
	user, err := d.service.Register(j.ctx, j.request)
	if err != nil {
		d.log.Debug().Err(err).
			Str("username", j.request.Username).
			Int("worker_id", id).
			Msg("batch item rejected")
	}
	j.results <- ports.RegistrationResult{Index: j.index, User: user, Err: err}
}
