package password

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "identityd/pkg/domain-errors"
)

var hashDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "identityd_password_hash_duration_seconds",
	Help:    "Latency of Argon2id derivation including pool queueing",
	Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// Pool runs Argon2id work on a fixed set of worker goroutines so a burst of
// hashing never starves unrelated request handlers. Submission waits a
// bounded time for a free slot; a saturated pool surfaces as a transient
// error the client may retry.
type Pool struct {
	hasher     *Argon2id
	jobs       chan func()
	submitWait time.Duration
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// DefaultSubmitWait bounds how long a request waits for a hashing slot.
const DefaultSubmitWait = 5 * time.Second

// NewPool starts workers goroutines draining a queue of the same size.
// Close must be called on shutdown.
func NewPool(hasher *Argon2id, workers int, submitWait time.Duration) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if submitWait <= 0 {
		submitWait = DefaultSubmitWait
	}
	p := &Pool{
		hasher:     hasher,
		jobs:       make(chan func(), workers),
		submitWait: submitWait,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
	return p
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	p.wg.Wait()
}

// Hash derives an encoded hash for plaintext on a pool worker. The calling
// goroutine suspends until the result is ready or ctx is cancelled; the
// worker itself is never cancelled mid-derivation.
func (p *Pool) Hash(ctx context.Context, plaintext string) (string, error) {
	start := time.Now()
	defer func() {
		hashDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	type result struct {
		encoded string
		err     error
	}
	out := make(chan result, 1)

	if err := p.submit(ctx, func() {
		encoded, err := p.hasher.hash(plaintext)
		out <- result{encoded: encoded, err: err}
	}); err != nil {
		return "", err
	}

	select {
	case r := <-out:
		return r.encoded, r.err
	case <-ctx.Done():
		return "", dErrors.Wrap(ctx.Err(), dErrors.CodeTransient, "hash cancelled")
	}
}

// Verify checks plaintext against an encoded hash on a pool worker.
func (p *Pool) Verify(ctx context.Context, plaintext, encoded string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	out := make(chan result, 1)

	if err := p.submit(ctx, func() {
		ok, err := p.hasher.verify(plaintext, encoded)
		out <- result{ok: ok, err: err}
	}); err != nil {
		return false, err
	}

	select {
	case r := <-out:
		return r.ok, r.err
	case <-ctx.Done():
		return false, dErrors.Wrap(ctx.Err(), dErrors.CodeTransient, "verify cancelled")
	}
}

func (p *Pool) submit(ctx context.Context, job func()) error {
	timer := time.NewTimer(p.submitWait)
	defer timer.Stop()

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTransient, "hash pool submit cancelled")
	case <-timer.C:
		return dErrors.New(dErrors.CodeTransient, "hash pool saturated")
	}
}
