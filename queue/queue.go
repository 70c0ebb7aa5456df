// Package queue bounds the number of in-flight ARI operations, retries
// transient failures with linear backoff, and sheds load through a
// circuit breaker when the server is clearly unhealthy.
package queue

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/PerMoeller/asterisk-ari/logging"
	"github.com/PerMoeller/asterisk-ari/rest"
)

// State represents the state of the circuit breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned for operations rejected without being
// attempted because the circuit breaker is open.
var ErrBreakerOpen = errors.New("queue: circuit breaker is open")

// ErrCleared is returned for pending operations rejected by Clear.
var ErrCleared = errors.New("queue: cleared before execution")

// Operation is a unit of work executed through the queue.
type Operation func(ctx context.Context) (any, error)

// Result is the settled outcome of an enqueued operation.
type Result struct {
	Value any
	Err   error
}

// Config configures the queue.
type Config struct {
	// MaxConcurrent bounds the number of operations in flight.
	MaxConcurrent int
	// MaxRetries is the per-operation retry cap for retryable failures.
	MaxRetries int
	// RetryDelay is the base of the linear backoff: the nth retry waits
	// RetryDelay × n.
	RetryDelay time.Duration
	// BreakerThreshold is the consecutive-failure count that opens the
	// breaker.
	BreakerThreshold int
	// BreakerTimeout is the cooldown before an open breaker probes
	// recovery through half-open.
	BreakerTimeout time.Duration

	// Name identifies this queue in logs and metrics.
	Name   string
	Logger logging.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:    10,
		MaxRetries:       3,
		RetryDelay:       1000 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerTimeout:   30000 * time.Millisecond,
		Name:             "default",
	}
}

func normalizeConfig(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	return cfg
}

type item struct {
	ctx     context.Context
	op      Operation
	result  chan Result
	retries int
}

// Queue is a bounded-concurrency request queue with retry and a
// consecutive-failure circuit breaker. Retried operations re-enter at the
// front of the pending list, so completion order is not FIFO.
type Queue struct {
	cfg    Config
	logger logging.Logger

	mu       sync.Mutex
	pending  []*item
	active   int
	failures int
	state    State
	openedAt time.Time
}

// New creates a queue from cfg; zero fields take defaults.
func New(cfg Config) *Queue {
	cfg = normalizeConfig(cfg)
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLoggerWithComponent("queue")
	}
	recordBreakerState(cfg.Name, StateClosed)
	return &Queue{cfg: cfg, logger: logger}
}

// Enqueue submits an operation and returns the channel its result settles
// on. When the breaker is open the operation is rejected immediately with
// ErrBreakerOpen and never invoked.
func (q *Queue) Enqueue(ctx context.Context, op Operation) <-chan Result {
	result := make(chan Result, 1)
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	q.evaluateStateLocked()
	if q.state == StateOpen {
		q.mu.Unlock()
		result <- Result{Err: ErrBreakerOpen}
		return result
	}
	q.pending = append(q.pending, &item{ctx: ctx, op: op, result: result})
	recordQueueDepth(q.cfg.Name, len(q.pending))
	q.mu.Unlock()

	q.schedule()
	return result
}

// Do submits an operation and waits for its result, honoring ctx while
// waiting.
func (q *Queue) Do(ctx context.Context, op Operation) (any, error) {
	resultCh := q.Enqueue(ctx, op)
	select {
	case res := <-resultCh:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// schedule drains pending items into free concurrency slots, re-checking
// the breaker on every pop. A breaker that tripped mid-drain rejects every
// remaining pending item.
func (q *Queue) schedule() {
	q.mu.Lock()
	for q.active < q.cfg.MaxConcurrent && len(q.pending) > 0 {
		q.evaluateStateLocked()
		if q.state == StateOpen {
			rejected := q.pending
			q.pending = nil
			recordQueueDepth(q.cfg.Name, 0)
			q.mu.Unlock()
			for _, it := range rejected {
				it.result <- Result{Err: ErrBreakerOpen}
			}
			return
		}
		it := q.pending[0]
		q.pending = q.pending[1:]
		q.active++
		recordQueueDepth(q.cfg.Name, len(q.pending))
		go q.run(it)
	}
	q.mu.Unlock()
}

func (q *Queue) run(it *item) {
	value, err := it.op(it.ctx)
	if err == nil {
		q.mu.Lock()
		q.failures = 0
		if q.state != StateClosed {
			q.setStateLocked(StateClosed)
		}
		q.active--
		q.mu.Unlock()
		it.result <- Result{Value: value}
		q.schedule()
		return
	}

	if Retryable(err) && it.retries < q.cfg.MaxRetries {
		it.retries++
		q.retryLater(it, err)
		return
	}

	q.mu.Lock()
	q.failures++
	if q.state == StateHalfOpen || (q.state == StateClosed && q.failures >= q.cfg.BreakerThreshold) {
		q.setStateLocked(StateOpen)
		q.openedAt = time.Now()
	}
	q.active--
	q.mu.Unlock()
	it.result <- Result{Err: err}
	q.schedule()
}

// retryLater frees the item's slot, waits the linear backoff, re-checks
// the breaker and re-inserts the item at the front of the pending list so
// retries take priority over fresh work.
func (q *Queue) retryLater(it *item, cause error) {
	q.mu.Lock()
	q.active--
	q.mu.Unlock()
	q.schedule()

	delay := q.cfg.RetryDelay * time.Duration(it.retries)
	recordRetry(q.cfg.Name)
	q.logger.WithError(cause).WithFields(logging.Fields{
		"retry": it.retries,
		"delay": delay.String(),
	}).Debug("Retrying operation")

	timer := time.NewTimer(delay)
	select {
	case <-it.ctx.Done():
		timer.Stop()
		it.result <- Result{Err: it.ctx.Err()}
		return
	case <-timer.C:
	}

	q.mu.Lock()
	q.evaluateStateLocked()
	if q.state == StateOpen {
		q.mu.Unlock()
		it.result <- Result{Err: ErrBreakerOpen}
		return
	}
	q.pending = append([]*item{it}, q.pending...)
	recordQueueDepth(q.cfg.Name, len(q.pending))
	q.mu.Unlock()
	q.schedule()
}

// evaluateStateLocked moves an open breaker to half-open once the cooldown
// has elapsed. Caller holds q.mu.
func (q *Queue) evaluateStateLocked() {
	if q.state == StateOpen && time.Since(q.openedAt) >= q.cfg.BreakerTimeout {
		q.setStateLocked(StateHalfOpen)
	}
}

func (q *Queue) setStateLocked(next State) {
	if q.state == next {
		return
	}
	prev := q.state
	q.state = next
	recordBreakerTransition(q.cfg.Name, prev, next)
	q.logger.WithFields(logging.Fields{
		"queue": q.cfg.Name,
		"from":  prev.String(),
		"to":    next.String(),
	}).Warn("Circuit breaker state change")
}

// Reset force-clears the failure counter and closes the breaker.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.failures = 0
	if q.state != StateClosed {
		q.setStateLocked(StateClosed)
	}
	q.mu.Unlock()
	q.schedule()
}

// Clear rejects every pending (not yet active) operation with ErrCleared.
// Active operations continue running unaffected.
func (q *Queue) Clear() {
	q.mu.Lock()
	rejected := q.pending
	q.pending = nil
	recordQueueDepth(q.cfg.Name, 0)
	q.mu.Unlock()
	for _, it := range rejected {
		it.result <- Result{Err: ErrCleared}
	}
}

// Pending reports the number of queued, not yet started operations.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Active reports the number of operations in flight.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Failures reports the consecutive-failure count.
func (q *Queue) Failures() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failures
}

// State reports the breaker state, re-evaluated against the cooldown.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.evaluateStateLocked()
	return q.state
}

// Retryable classifies an error as transient: network-class failures
// (timeouts, refused or reset connections) and server-side HTTP statuses
// (5xx, 429). A rest.RequestError with status 0 marks a local/network
// fault and is retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var reqErr *rest.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Status == 0 {
			return true
		}
		if reqErr.Status == 429 {
			return true
		}
		return reqErr.Status >= 500 && reqErr.Status <= 599
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
