// Package translation drives jobs on the remote translation service:
// key acquisition, job creation, fixed interval status polling and
// result fetch.
package translation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/menta2k/photo-translator/internal/log"
	"github.com/menta2k/photo-translator/pkg/events"
)

// DefaultPollInterval is the fixed delay between status polls
const DefaultPollInterval = 100 * time.Millisecond

// Options configures polling
type Options struct {
	PollInterval time.Duration
	// MaxWait bounds a whole job; zero polls until the service answers
	MaxWait time.Duration
	// RequestTimeout bounds each round trip; zero leaves it to the HTTP client
	RequestTimeout time.Duration
	Bus            *events.Bus
}

// Client runs one translation job at a time. Outcomes are reported through
// OnOutcome and the event bus, never returned from Submit.
type Client struct {
	service Service
	opts    Options

	mu        sync.Mutex
	pair      LanguagePair
	hasPair   bool
	job       Job
	cancel    context.CancelFunc
	done      chan struct{}
	onOutcome func(Job)
}

// NewClient creates a client. pair may be empty and chosen later with UsePair.
func NewClient(service Service, pair LanguagePair, opts Options) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	c := &Client{service: service, opts: opts}
	if pair.Name != "" || pair.Endpoint != "" {
		c.pair = pair
		c.hasPair = true
	}
	return c
}

// OnOutcome registers the callback invoked once per job when it reaches a
// terminal state. It runs on the job goroutine.
func (c *Client) OnOutcome(fn func(Job)) {
	c.mu.Lock()
	c.onOutcome = fn
	c.mu.Unlock()
}

// UsePair switches the language pair. Not allowed while a job runs.
func (c *Client) UsePair(pair LanguagePair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job.State.InFlight() {
		return ErrJobInFlight
	}
	c.pair = pair
	c.hasPair = true
	return nil
}

// Pair returns the selected language pair
func (c *Client) Pair() (LanguagePair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pair, c.hasPair
}

// Current returns a snapshot of the active job
func (c *Client) Current() Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.job
}

// Submit starts a job for text and returns immediately. It fails with
// ErrJobInFlight if the previous job has not reached a terminal state.
func (c *Client) Submit(text string) error {
	c.mu.Lock()
	if c.job.State.InFlight() {
		c.mu.Unlock()
		return ErrJobInFlight
	}
	if !c.hasPair {
		c.mu.Unlock()
		return ErrNoPair
	}
	if err := c.pair.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	if c.opts.MaxWait > 0 {
		ctx, cancel = withDeadline(ctx, cancel, c.opts.MaxWait)
	}

	token := uuid.NewString()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.job = Job{
		ID:        token,
		Pair:      c.pair.Name,
		State:     StateSubmitted,
		Text:      text,
		StartedAt: time.Now(),
	}
	pair := c.pair
	snapshot := c.job
	c.mu.Unlock()

	c.publish(snapshot)
	log.Info("translation job submitted", "job", token, "pair", pair.Name, "chars", len([]rune(text)))

	go c.run(ctx, token, pair, text)
	return nil
}

// Reset abandons the active job. Responses still in flight for it are discarded.
func (c *Client) Reset() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil && !c.job.State.Terminal() {
		close(c.done)
	}
	c.done = nil
	old := c.job.ID
	c.job = Job{State: StateIdle}
	c.mu.Unlock()

	if old != "" {
		log.Debug("translation job reset", "job", old)
	}
}

// Wait blocks until the current job is terminal, reset, or ctx is done
func (c *Client) Wait(ctx context.Context) (Job, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return c.Current(), ctx.Err()
		}
	}
	return c.Current(), nil
}

func withDeadline(parent context.Context, cancelParent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, d)
	return ctx, func() {
		cancel()
		cancelParent()
	}
}

func (c *Client) run(ctx context.Context, token string, pair LanguagePair, text string) {
	rctx, cancel := c.request(ctx)
	key, err := c.service.GetKey(rctx, pair)
	cancel()
	if err != nil {
		c.fail(ctx, token, fmt.Errorf("acquire key: %w", err))
		return
	}
	if !c.update(token, func(j *Job) {
		j.Key = key
		j.State = StateJobCreated
	}) {
		return
	}

	rctx, cancel = c.request(ctx)
	status, err := c.service.AddJob(rctx, pair, key, text)
	cancel()
	if err != nil {
		c.fail(ctx, token, fmt.Errorf("create job: %w", err))
		return
	}
	if status == StatusError {
		c.fail(ctx, token, fmt.Errorf("%w: service rejected the job", ErrJobFailed))
		return
	}

	for {
		if !c.sleep(ctx) {
			c.fail(ctx, token, ctx.Err())
			return
		}

		rctx, cancel = c.request(ctx)
		reply, err := c.service.Status(rctx, pair, key)
		cancel()
		if err != nil {
			c.fail(ctx, token, fmt.Errorf("poll status: %w", err))
			return
		}
		if reply.Status == StatusError {
			c.fail(ctx, token, fmt.Errorf("%w: service reported an error", ErrJobFailed))
			return
		}

		switch reply.Message {
		case StatusWaiting, StatusProcessing:
			if !c.update(token, func(j *Job) {
				j.State = StatePolling
				j.ServiceStatus = reply.Message
				j.Polls++
			}) {
				return
			}
			continue
		case StatusProcessed:
			if !c.update(token, func(j *Job) {
				j.State = StateFetching
				j.ServiceStatus = reply.Message
				j.Polls++
			}) {
				return
			}
		case StatusFailed:
			c.fail(ctx, token, fmt.Errorf("%w: service reported status failed", ErrJobFailed))
			return
		default:
			c.fail(ctx, token, fmt.Errorf("%w: unexpected job status %q", ErrJobFailed, reply.Message))
			return
		}
		break
	}

	rctx, cancel = c.request(ctx)
	fetched, err := c.service.Fetch(rctx, pair, key)
	cancel()
	if err != nil {
		c.fail(ctx, token, fmt.Errorf("fetch result: %w", err))
		return
	}

	switch fetched.Status {
	case FetchSuccess:
		c.finish(token, StateDone, fetched.Message, nil)
	case FetchError:
		c.fail(ctx, token, fmt.Errorf("%w: %s", ErrJobFailed, fetched.Message))
	default:
		c.fail(ctx, token, fmt.Errorf("%w: unexpected result status %q", ErrJobFailed, string(fetched.Status)))
	}
}

func (c *Client) request(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// sleep waits one poll interval; false means the job context ended
func (c *Client) sleep(ctx context.Context) bool {
	timer := time.NewTimer(c.opts.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fail ends the job unless it was superseded. An expired job context means
// the job exceeded MaxWait.
func (c *Client) fail(ctx context.Context, token string, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			c.finish(token, StateTimedOut, "", fmt.Errorf("%w after %s", ErrTimedOut, c.opts.MaxWait))
			return
		}
		log.Debug("translation job cancelled", "job", token)
		return
	}
	c.finish(token, StateFailed, "", err)
}

// update applies fn to the job if token still names it and it is not terminal
func (c *Client) update(token string, fn func(*Job)) bool {
	c.mu.Lock()
	if c.job.ID != token || c.job.State.Terminal() {
		c.mu.Unlock()
		log.Debug("discarding stale translation response", "job", token)
		return false
	}
	fn(&c.job)
	snapshot := c.job
	c.mu.Unlock()

	c.publish(snapshot)
	log.Debug("translation job transition", "job", token, "state", snapshot.State, "status", snapshot.ServiceStatus)
	return true
}

func (c *Client) finish(token string, state State, result string, err error) {
	c.mu.Lock()
	if c.job.ID != token || c.job.State.Terminal() {
		c.mu.Unlock()
		log.Debug("discarding stale translation outcome", "job", token)
		return
	}
	c.job.State = state
	c.job.Result = result
	c.job.Err = err
	c.job.FinishedAt = time.Now()
	if c.done != nil {
		close(c.done)
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	snapshot := c.job
	cb := c.onOutcome
	c.mu.Unlock()

	c.publish(snapshot)
	if err != nil {
		log.Warn("translation job ended", "job", token, "state", state, "error", err)
	} else {
		log.Info("translation job done", "job", token, "polls", snapshot.Polls)
	}
	if cb != nil {
		cb(snapshot)
	}
}

func (c *Client) publish(job Job) {
	if c.opts.Bus == nil {
		return
	}
	event := events.Event{
		Type:    events.TypeJob,
		JobID:   job.ID,
		State:   job.State.String(),
		Message: job.ServiceStatus,
		Text:    job.Result,
	}
	if job.Err != nil {
		event.Message = job.Err.Error()
	}
	c.opts.Bus.Publish(event)
}
