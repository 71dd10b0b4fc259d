// Package jobs tracks long-running backend operations: it submits a job,
// polls its status until a terminal state, and reconciles the polling path
// with terminal signals arriving over the push channel. Either path may
// observe the terminal state first; applying it twice is a no-op.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
)

// Kind identifies a triggerable background operation.
type Kind string

const (
	KindGetQuotes  Kind = "get_quotes"
	KindPlaceOrder Kind = "place_order"
)

// ControlState is the display state of a job's triggering control.
type ControlState string

const (
	// ControlArmed means the control accepts a new submission.
	ControlArmed ControlState = "armed"
	// ControlBusy means a job is in flight and the control is disabled.
	ControlBusy ControlState = "busy"
	// ControlExecuted latches a completed place_order control: re-submitting
	// executed orders is dangerous, so it never re-arms.
	ControlExecuted ControlState = "executed"
)

// API is the slice of the backend the tracker depends on.
type API interface {
	SubmitGetQuotes(ctx context.Context) (*model.JobSubmission, error)
	SubmitExecuteOrders(ctx context.Context) (*model.JobSubmission, error)
	JobStatus(ctx context.Context, jobID string) (*model.BackgroundJob, error)
}

// StatusUpdate is the published per-kind job display state.
type StatusUpdate struct {
	Kind     Kind         `json:"kind"`
	Level    string       `json:"level"`
	Message  string       `json:"message"`
	Progress int          `json:"progress,omitempty"`
	Control  ControlState `json:"control"`
}

type trackedJob struct {
	id       string
	kind     Kind
	terminal bool
	cancel   context.CancelFunc
}

// Tracker submits jobs and reconciles their terminal state across the
// polling and push paths.
type Tracker struct {
	api      API
	surface  realtime.Surface
	notifier *notify.Notifier

	pollInterval time.Duration
	// maxAttempts bounds each job's polling loop; 0 means unlimited.
	maxAttempts int

	mu       sync.Mutex
	jobs     map[string]*trackedJob
	controls map[Kind]ControlState
}

// NewTracker creates a job tracker.
func NewTracker(api API, surface realtime.Surface, notifier *notify.Notifier, pollInterval time.Duration, maxAttempts int) *Tracker {
	return &Tracker{
		api:          api,
		surface:      surface,
		notifier:     notifier,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		jobs:         make(map[string]*trackedJob),
		controls: map[Kind]ControlState{
			KindGetQuotes:  ControlArmed,
			KindPlaceOrder: ControlArmed,
		},
	}
}

// ControlStateFor returns the display state of a kind's triggering control.
func (t *Tracker) ControlStateFor(kind Kind) ControlState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.controls[kind]
}

// Submit starts a background job of the given kind. The triggering control is
// disabled for the duration; submission failure re-enables it immediately and
// starts no polling.
func (t *Tracker) Submit(ctx context.Context, kind Kind) (string, error) {
	t.mu.Lock()
	if t.controls[kind] != ControlArmed {
		state := t.controls[kind]
		t.mu.Unlock()
		return "", fmt.Errorf("%s control is not armed (state %s)", kind, state)
	}
	t.controls[kind] = ControlBusy
	t.mu.Unlock()

	t.publish(kind, "loading", startMessage(kind), 0)

	sub, err := t.submitKind(ctx, kind)
	if err != nil {
		t.mu.Lock()
		t.controls[kind] = ControlArmed
		t.mu.Unlock()
		t.publish(kind, "error", err.Error(), 0)
		return "", err
	}

	log.Printf("🚀 %s job started: %s", kind, sub.JobID)
	t.publish(kind, "loading", fmt.Sprintf("%s (%s)", progressMessage(kind), sub.EstimatedTime), 0)

	// The caller's ctx governs only the submit call; it is typically a
	// request context that dies when the handler returns. Polling outlives
	// it, stopped only by a terminal status, the attempt bound, or Shutdown.
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.mu.Lock()
	t.jobs[sub.JobID] = &trackedJob{id: sub.JobID, kind: kind, cancel: cancel}
	t.mu.Unlock()

	go t.poll(pollCtx, sub.JobID, kind)
	return sub.JobID, nil
}

func (t *Tracker) submitKind(ctx context.Context, kind Kind) (*model.JobSubmission, error) {
	switch kind {
	case KindGetQuotes:
		return t.api.SubmitGetQuotes(ctx)
	case KindPlaceOrder:
		return t.api.SubmitExecuteOrders(ctx)
	default:
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
}

// poll drives the status loop for one job. Individual poll failures are
// logged and tolerated until the next tick; only a terminal status or the
// attempt bound stops the loop.
func (t *Tracker) poll(ctx context.Context, jobID string, kind Kind) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attempts++

			job, err := t.api.JobStatus(ctx, jobID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("Error polling job %s: %v", jobID, err)
			} else if job.Status.Terminal() {
				t.finish(jobID, kind, job)
				return
			} else {
				t.publish(kind, "loading", fmt.Sprintf("%s (Progress: %d%%)", job.Message, job.Progress), job.Progress)
			}

			if t.maxAttempts > 0 && attempts >= t.maxAttempts {
				t.finish(jobID, kind, &model.BackgroundJob{
					ID:     jobID,
					Kind:   string(kind),
					Status: model.JobFailed,
					Error:  fmt.Sprintf("no terminal status after %d polls, giving up", attempts),
				})
				return
			}
		}
	}
}

// HandleCompleted applies a job_completed push frame. It is safe against the
// polling path having already observed the terminal state.
func (t *Tracker) HandleCompleted(job model.BackgroundJob) {
	job.Status = model.JobCompleted
	t.finish(job.ID, Kind(job.Kind), &job)
}

// HandleFailed applies a job_failed push frame.
func (t *Tracker) HandleFailed(job model.BackgroundJob) {
	job.Status = model.JobFailed
	t.finish(job.ID, Kind(job.Kind), &job)
}

// finish applies a terminal state exactly once. The first writer wins;
// duplicate terminal signals from either the push or the polling path are
// no-ops against already-terminal local state.
func (t *Tracker) finish(jobID string, kind Kind, job *model.BackgroundJob) {
	t.mu.Lock()
	tracked, known := t.jobs[jobID]
	if known {
		if tracked.terminal {
			t.mu.Unlock()
			return
		}
		tracked.terminal = true
		tracked.cancel()
		kind = tracked.kind
	}

	switch {
	case job.Status == model.JobCompleted && kind == KindPlaceOrder:
		t.controls[kind] = ControlExecuted
	default:
		// get_quotes re-arms on success; every kind re-arms on failure so
		// the user may retry.
		t.controls[kind] = ControlArmed
	}
	t.mu.Unlock()

	if job.Status == model.JobCompleted {
		msg := job.Message
		if msg == "" {
			msg = completedMessage(kind)
		}
		log.Printf("✅ %s job %s completed", kind, jobID)
		t.publish(kind, "success", msg, 100)
		t.notifier.Push(notify.CategorySuccess, msg)
		return
	}

	msg := job.Error
	if msg == "" {
		msg = job.Message
	}
	if msg == "" {
		msg = failedMessage(kind)
	}
	log.Printf("❌ %s job %s failed: %s", kind, jobID, msg)
	t.publish(kind, "error", msg, 0)
	t.notifier.Push(notify.CategoryError, msg)
}

// Shutdown cancels every in-flight polling loop.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, job := range t.jobs {
		if !job.terminal {
			job.cancel()
		}
	}
}

func (t *Tracker) publish(kind Kind, level, message string, progress int) {
	t.mu.Lock()
	control := t.controls[kind]
	t.mu.Unlock()

	t.surface.Publish(realtime.EventJobStatus, StatusUpdate{
		Kind:     kind,
		Level:    level,
		Message:  message,
		Progress: progress,
		Control:  control,
	})
}

func startMessage(kind Kind) string {
	if kind == KindPlaceOrder {
		return "Starting order execution..."
	}
	return "Starting quote fetch..."
}

func progressMessage(kind Kind) string {
	if kind == KindPlaceOrder {
		return "Executing orders in background..."
	}
	return "Quote fetching in progress..."
}

func completedMessage(kind Kind) string {
	if kind == KindPlaceOrder {
		return "All orders executed successfully!"
	}
	return "Quotes fetched and updated successfully!"
}

func failedMessage(kind Kind) string {
	if kind == KindPlaceOrder {
		return "Order execution failed"
	}
	return "Failed to fetch quotes"
}
