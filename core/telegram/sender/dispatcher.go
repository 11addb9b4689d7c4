package sender

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashbolt/coursebot/core/logger"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// maxBackoff caps the delay between two attempts of one job.
const maxBackoff = 10 * time.Second

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// Name labels the queue in logs ("participant", "operator").
	Name string
	// QueueSize is the total capacity, split evenly between workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

type job struct {
	ctx      context.Context
	queue    string
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Each worker owns its own queue. Jobs enqueued under the same key land on the
// same worker and run in FIFO order.
type Dispatcher struct {
	opts   Options
	shards []chan job
	next   atomic.Uint32
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
	sent   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	perShard := opts.QueueSize / opts.Workers
	if perShard < 1 {
		perShard = 1
	}
	d := &Dispatcher{
		opts:   opts,
		shards: make([]chan job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, perShard)
		go d.worker(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the first worker with room, starting from a
// rotating offset. The run closure must be idempotent if retries are desired.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	j := d.newJob(ctx, action, endpoint, run)
	start := int(d.next.Add(1))
	for i := range d.shards {
		select {
		case d.shards[(start+i)%len(d.shards)] <- j:
			return nil
		default:
		}
	}
	return ErrQueueFull
}

// EnqueueSequence schedules steps to run in order as a single job on the
// worker owning key. A retry resumes from the step that failed, so steps
// already delivered are not repeated.
func (d *Dispatcher) EnqueueSequence(ctx context.Context, key, action, endpoint string, steps []func() error) error {
	if len(steps) == 0 {
		return nil
	}
	next := 0
	run := func() error {
		for next < len(steps) {
			if err := steps[next](); err != nil {
				return fmt.Errorf("step %d/%d: %w", next+1, len(steps), err)
			}
			next++
		}
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shards[d.shardOf(key)] <- d.newJob(ctx, action, endpoint, run):
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) newJob(ctx context.Context, action, endpoint string, run func() error) job {
	return job{ctx: ctx, queue: d.opts.Name, action: action, endpoint: endpoint, run: run}
}

func (d *Dispatcher) shardOf(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// SentCount returns the number of jobs that completed successfully.
func (d *Dispatcher) SentCount() uint64 {
	return d.sent.Load()
}

// Close stops accepting jobs and waits for workers to drain their queues.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		if err := d.handleJob(j); err != nil {
			d.errs.Add(1)
		} else {
			d.sent.Add(1)
		}
	}
}

// handleJob runs j until it succeeds, fails permanently, runs out of
// attempts or exceeds MaxDuration.
func (d *Dispatcher) handleJob(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// Delivery outlives the update that triggered it.
	deadlineCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(ctx, "tg.sender", "send.start", sendLogAttrs(ctx, j)...)

	attempts := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		err := j.run()
		if err == nil {
			logSendSuccess(ctx, j, attempt, time.Since(start))
			return nil
		}
		if !retryable(err) || attempt >= attempts {
			logSendFailure(ctx, j, err, attempt, time.Since(start))
			return err
		}

		delay := d.retryDelay(err, attempt)
		logger.Debug(ctx, "tg.sender", "send.retry.backoff",
			append(sendLogAttrs(ctx, j),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error_kind", classifyError(err)),
			)...,
		)
		timer := time.NewTimer(delay)
		select {
		case <-deadlineCtx.Done():
			timer.Stop()
			logSendFailure(ctx, j, fmt.Errorf("%w (last: %v)", deadlineCtx.Err(), err), attempt, time.Since(start))
			return deadlineCtx.Err()
		case <-timer.C:
		}
	}
}

// retryDelay doubles RetryBackoff per attempt up to maxBackoff. A flood
// wait from Telegram takes precedence.
func (d *Dispatcher) retryDelay(err error, attempt int) time.Duration {
	if wait, ok := floodWait(err); ok && wait > 0 {
		return wait
	}
	delay := d.opts.RetryBackoff << (attempt - 1)
	if delay <= 0 || delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func sendLogAttrs(ctx context.Context, j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
	}
	if j.queue != "" {
		attrs = append(attrs, slog.String("queue", j.queue))
	}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	if rid := logger.RIDFrom(ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", chatID))
	}
	return attrs
}

func logSendSuccess(ctx context.Context, j job, attempt int, elapsed time.Duration) {
	attrs := append(sendLogAttrs(ctx, j), slog.Int("elapsed_ms", durationToMS(elapsed)))
	if attempt > 1 {
		logger.Info(ctx, "tg.sender", "send.retry.success", append(attrs, slog.Int("attempt", attempt))...)
		return
	}
	logger.Debug(ctx, "tg.sender", "send.success", attrs...)
}

func logSendFailure(ctx context.Context, j job, err error, attempts int, elapsed time.Duration) {
	attrs := append(sendLogAttrs(ctx, j),
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Int("elapsed_ms", durationToMS(elapsed)),
	)
	logger.Error(ctx, "tg.sender", "send.fail", attrs...)
}

func durationToMS(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(logger.RoundMS(d) / time.Millisecond)
}
