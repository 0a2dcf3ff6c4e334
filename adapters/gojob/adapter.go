package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-oauth1/adapters/gologger"
	oauthcommand "github.com/goliatone/go-oauth1/command"
)

const (
	JobIDWipe      = "oauth1.wipe"
	JobIDSeedSites = "oauth1.site.seed"
)

const (
	paramUserID   = "user_id"
	paramSiteName = "site_name"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, MaxDelay: time.Minute, DeadLetterOnMax: true}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// backoff grows linearly with the attempt number; NormalizeAttempt caps it.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * time.Second
}

// NewWipeJob builds the execution message for an asynchronous wipe. The
// idempotency key collapses repeated wipes of the same user and site.
func NewWipeJob(userID string, siteName string) *job.ExecutionMessage {
	userID = strings.TrimSpace(userID)
	siteName = strings.TrimSpace(siteName)
	return &job.ExecutionMessage{
		JobID:      JobIDWipe,
		ScriptPath: JobIDWipe,
		Parameters: map[string]any{
			paramUserID:   userID,
			paramSiteName: siteName,
		},
		IdempotencyKey: JobIDWipe + ":" + userID + ":" + strings.ToLower(siteName),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

func NewSeedSitesJob() *job.ExecutionMessage {
	return &job.ExecutionMessage{
		JobID:          JobIDSeedSites,
		ScriptPath:     JobIDSeedSites,
		Parameters:     map[string]any{},
		IdempotencyKey: JobIDSeedSites,
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

type Enqueuer struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuer(enqueuer queue.Enqueuer) *Enqueuer {
	return &Enqueuer{enqueuer: enqueuer}
}

func (e *Enqueuer) EnqueueWipe(ctx context.Context, userID string, siteName string) error {
	msg := oauthcommand.WipeMessage{UserID: userID, SiteName: siteName}
	if err := msg.Validate(); err != nil {
		return err
	}
	return e.enqueue(ctx, NewWipeJob(userID, siteName))
}

func (e *Enqueuer) EnqueueSeedSites(ctx context.Context) error {
	return e.enqueue(ctx, NewSeedSitesJob())
}

func (e *Enqueuer) enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

type WorkerOption func(*Worker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *Worker) {
		w.hook = hook
	}
}

func WithLogger(logger glog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) WorkerOption {
	return func(w *Worker) {
		w.loggerProvider = provider
	}
}

// Worker drains oauth1 jobs from a go-job queue and runs them through the
// command handlers. Attempts are counted per idempotency key so a requeued
// delivery eventually dead-letters.
type Worker struct {
	dequeuer       queue.Dequeuer
	wipe           *oauthcommand.WipeCommand
	seed           *oauthcommand.SeedSitesCommand
	policy         RetryPolicy
	hook           worker.Hook
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
	now            func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewWorker(dequeuer queue.Dequeuer, service oauthcommand.MutatingService, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if service == nil {
		return nil, fmt.Errorf("gojob: oauth1 service is required")
	}
	w := &Worker{
		dequeuer: dequeuer,
		wipe:     oauthcommand.NewWipeCommand(service),
		seed:     oauthcommand.NewSeedSitesCommand(service),
		policy:   DefaultRetryPolicy(),
		now:      time.Now,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(w)
	}
	_, w.logger = gologger.Resolve(gologger.DefaultName, w.loggerProvider, w.logger)
	return w, nil
}

// ProcessNext dequeues one delivery and acks or nacks it. The returned error
// is the queue error; job failures are reported through nack and the hook.
func (w *Worker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}
	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)

	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: w.now(),
	}
	w.onStart(ctx, event)

	runErr := w.run(ctx, msg)
	event.Duration = w.now().Sub(event.StartedAt)
	if runErr == nil {
		w.resetAttempts(key)
		w.onSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = runErr
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:      w.policy.backoff(attempt),
		Requeue:    !isPermanent(runErr),
		DeadLetter: isPermanent(runErr),
		Reason:     runErr.Error(),
	}, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		w.onRetry(ctx, event)
	} else {
		w.resetAttempts(key)
		w.onFailure(ctx, event)
	}
	w.logger.Error("oauth1 job failed",
		"job_id", jobID(msg),
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"error", runErr.Error(),
	)
	return delivery.Nack(ctx, opts)
}

func (w *Worker) run(ctx context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return permanentError{fmt.Errorf("gojob: delivery has no message")}
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDWipe:
		wipe := oauthcommand.WipeMessage{
			UserID:   stringParam(msg.Parameters, paramUserID),
			SiteName: stringParam(msg.Parameters, paramSiteName),
		}
		if err := wipe.Validate(); err != nil {
			return permanentError{err}
		}
		return w.wipe.Execute(ctx, wipe)
	case JobIDSeedSites:
		return w.seed.Execute(ctx, oauthcommand.SeedSitesMessage{})
	default:
		return permanentError{fmt.Errorf("gojob: unknown job id %q", msg.JobID)}
	}
}

func (w *Worker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *Worker) resetAttempts(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *Worker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *Worker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *Worker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *Worker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

// permanentError marks failures that a retry cannot fix.
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() error { return e.err }

func isPermanent(err error) bool {
	_, ok := err.(permanentError)
	return ok
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

func jobID(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}
