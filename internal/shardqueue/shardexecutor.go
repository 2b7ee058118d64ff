// Package shardqueue is a sharded work queue that keeps FIFO order per key
// while running different keys in parallel. The sidebar uses it for
// background revalidation so refreshes of one cache key never reorder.
package shardqueue

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

type queuedJob struct {
	ctx    context.Context
	key    string
	unique bool
	job    Job
}

// ShardExecutor runs Jobs on worker goroutines partitioned by a stable hash
// of the key.
type ShardExecutor struct {
	cfg    Config
	log    zerolog.Logger
	queues []chan queuedJob

	done   chan struct{} // closed in Stop()
	closed uint32

	pendingMu sync.Mutex
	pending   map[string]struct{} // keys with a queued unique job

	wg sync.WaitGroup
}

// NewShardExecutor constructs the executor and starts its shard workers.
func NewShardExecutor(cfg Config, log zerolog.Logger) *ShardExecutor {
	cfg = cfg.withDefaults()
	p := &ShardExecutor{
		cfg:     cfg,
		log:     log.With().Str("component", "shardqueue").Logger(),
		queues:  make([]chan queuedJob, cfg.Shards),
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}
	for i := 0; i < cfg.Shards; i++ {
		ch := make(chan queuedJob, cfg.QueueSize)
		p.queues[i] = ch
		p.wg.Add(1)
		go p.runWorker(i, ch)
	}
	return p
}

// Submit enqueues job for the shard derived from key.
//
//   - Returns ErrExecutorClosed if the executor is stopped.
//   - Returns a *QueueFullError if the shard stays full for EnqueueTimeout.
//   - Returns ctx.Err() if ctx is cancelled first.
func (p *ShardExecutor) Submit(ctx context.Context, key string, job Job) error {
	return p.enqueue(queuedJob{ctx: ctx, key: key, job: job})
}

// SubmitUnique is Submit that keeps at most one job pending per key. When a
// job for key is queued but not yet started it returns (false, nil) and
// drops job.
func (p *ShardExecutor) SubmitUnique(ctx context.Context, key string, job Job) (bool, error) {
	p.pendingMu.Lock()
	if _, ok := p.pending[key]; ok {
		p.pendingMu.Unlock()
		coalescedTotal.Inc()
		return false, nil
	}
	p.pending[key] = struct{}{}
	p.pendingMu.Unlock()

	if err := p.enqueue(queuedJob{ctx: ctx, key: key, unique: true, job: job}); err != nil {
		p.release(key)
		return false, err
	}
	return true, nil
}

// Pending reports whether a unique job for key is queued.
func (p *ShardExecutor) Pending(key string) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	_, ok := p.pending[key]
	return ok
}

func (p *ShardExecutor) release(key string) {
	p.pendingMu.Lock()
	delete(p.pending, key)
	p.pendingMu.Unlock()
}

func (p *ShardExecutor) enqueue(qj queuedJob) error {
	if atomic.LoadUint32(&p.closed) == 1 {
		return ErrExecutorClosed
	}
	select {
	case <-p.done:
		return ErrExecutorClosed
	default:
	}

	shard := p.shardFor(qj.key)
	ch := p.queues[shard]

	timer := time.NewTimer(p.cfg.EnqueueTimeout)
	defer timer.Stop()

	select {
	case ch <- qj:
		submissionsTotal.WithLabelValues(labelFor(shard)).Inc()
		return nil
	case <-p.done:
		return ErrExecutorClosed
	case <-qj.ctx.Done():
		return qj.ctx.Err()
	case <-timer.C:
		queueFullTotal.WithLabelValues(labelFor(shard)).Inc()
		return &QueueFullError{Shard: shard, Length: len(ch), Capacity: cap(ch)}
	}
}

// Barrier waits until every job submitted for key before the call has finished.
func (p *ShardExecutor) Barrier(ctx context.Context, key string) error {
	done := make(chan struct{})
	j := JobFunc(func(context.Context) error {
		close(done)
		return nil
	})
	if err := p.Submit(ctx, key, j); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Stop drains every queue, waits for the workers and returns. Idempotent.
func (p *ShardExecutor) Stop() {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return
	}
	p.log.Info().Int("shards", p.cfg.Shards).Msg("stopping executor")
	close(p.done)
	p.wg.Wait()
	p.log.Info().Msg("executor stopped, all queues drained")
}

// Close lets ShardExecutor satisfy io.Closer.
func (p *ShardExecutor) Close() error {
	p.Stop()
	return nil
}

// ------------------------- internals -------------------------

func (p *ShardExecutor) runWorker(idx int, ch <-chan queuedJob) {
	defer p.wg.Done()
	label := labelFor(idx)

	for {
		select {
		case qj := <-ch:
			p.runJob(label, qj)
			queueDepth.WithLabelValues(label).Set(float64(len(ch)))

		case <-p.done:
			drained := 0
			for {
				select {
				case qj := <-ch:
					if qj.unique {
						p.release(qj.key)
					}
					// Jobs whose owner already went away are skipped.
					if qj.job != nil && qj.ctx.Err() == nil {
						p.attempt(label, qj)
						drained++
					}
				default:
					if drained > 0 {
						p.log.Debug().Int("worker", idx).Int("drained", drained).Msg("worker drained jobs")
					}
					queueDepth.WithLabelValues(label).Set(0)
					return
				}
			}
		}
	}
}

func (p *ShardExecutor) runJob(label string, qj queuedJob) {
	if qj.unique {
		p.release(qj.key)
	}
	if qj.job == nil {
		return
	}
	if err := qj.ctx.Err(); err != nil {
		p.safeHandleError(label, err)
		return
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = p.cfg.MaxInterval
	exp.Reset()

	for attempts := 1; ; attempts++ {
		err := p.attempt(label, qj)
		if err == nil {
			return
		}
		if irrecoverable(err) || attempts >= p.cfg.MaxAttempts {
			p.safeHandleError(label, err)
			return
		}
		p.log.Debug().Err(err).Str("key", qj.key).Int("attempt", attempts).Msg("job failed, retrying")
		select {
		case <-time.After(exp.NextBackOff()):
		case <-p.done:
			return
		case <-qj.ctx.Done():
			p.safeHandleError(label, qj.ctx.Err())
			return
		}
	}
}

// attempt runs the job once, converting a panic into an error.
func (p *ShardExecutor) attempt(label string, qj queuedJob) (err error) {
	start := time.Now()
	defer func() {
		runDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			p.log.Error().Str("key", qj.key).Interface("panic", r).Msg("job panic")
			err = &panicError{value: r}
		}
	}()
	return qj.job.Run(qj.ctx)
}

func (p *ShardExecutor) safeHandleError(label string, err error) {
	if err == nil {
		return
	}
	failuresTotal.WithLabelValues(label).Inc()
	if p.cfg.ErrorHandler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Msg("error handler panic")
		}
	}()
	p.cfg.ErrorHandler(err)
}

func (p *ShardExecutor) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(p.cfg.Shards))
}
