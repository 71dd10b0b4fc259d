package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
)

type mockAPI struct {
	mu         sync.Mutex
	submitErr  error
	statuses   []model.BackgroundJob
	statusErr  error
	statusCall int
}

func (m *mockAPI) SubmitGetQuotes(ctx context.Context) (*model.JobSubmission, error) {
	return m.submit()
}

func (m *mockAPI) SubmitExecuteOrders(ctx context.Context) (*model.JobSubmission, error) {
	return m.submit()
}

func (m *mockAPI) submit() (*model.JobSubmission, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &model.JobSubmission{JobID: "job-1", EstimatedTime: "1-2 minutes"}, nil
}

func (m *mockAPI) JobStatus(ctx context.Context, jobID string) (*model.BackgroundJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return nil, m.statusErr
	}
	idx := m.statusCall
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	m.statusCall++
	job := m.statuses[idx]
	job.ID = jobID
	return &job, nil
}

type recordingSurface struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSurface) Publish(event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func newTestTracker(api API) *Tracker {
	surface := &recordingSurface{}
	return NewTracker(api, surface, notify.New(realtime.NopSurface{}), time.Millisecond, 0)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSubmitPollsToCompletion(t *testing.T) {
	api := &mockAPI{
		statuses: []model.BackgroundJob{
			{Status: model.JobProgress, Progress: 30, Message: "working"},
			{Status: model.JobProgress, Progress: 60, Message: "working"},
			{Status: model.JobProgress, Progress: 90, Message: "working"},
			{Status: model.JobCompleted, Message: "done"},
		},
	}
	tracker := newTestTracker(api)

	jobID, err := tracker.Submit(context.Background(), KindGetQuotes)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("job id: got %s", jobID)
	}

	// get_quotes re-arms once the job completes.
	waitFor(t, func() bool {
		return tracker.ControlStateFor(KindGetQuotes) == ControlArmed
	})
}

func TestPollingOutlivesSubmitContext(t *testing.T) {
	api := &mockAPI{
		statuses: []model.BackgroundJob{
			{Status: model.JobRunning},
			{Status: model.JobRunning},
			{Status: model.JobCompleted, Message: "done"},
		},
	}
	tracker := newTestTracker(api)

	// Submissions arrive on request contexts that die as soon as the
	// handler returns. Cancelling right after Submit must not stop the
	// polling loop.
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := tracker.Submit(ctx, KindGetQuotes); err != nil {
		t.Fatalf("submit: %v", err)
	}
	cancel()

	waitFor(t, func() bool {
		return tracker.ControlStateFor(KindGetQuotes) == ControlArmed
	})

	api.mu.Lock()
	polls := api.statusCall
	api.mu.Unlock()
	if polls < 3 {
		t.Errorf("status polls after context cancel: got %d, want at least 3", polls)
	}
}

func TestSubmitRejectedReArmsControl(t *testing.T) {
	api := &mockAPI{submitErr: errors.New("server busy")}
	tracker := newTestTracker(api)

	if _, err := tracker.Submit(context.Background(), KindGetQuotes); err == nil {
		t.Fatal("expected submission error")
	}
	if got := tracker.ControlStateFor(KindGetQuotes); got != ControlArmed {
		t.Errorf("control after rejected submit: got %s, want armed", got)
	}
}

func TestDoubleSubmitWhileBusy(t *testing.T) {
	api := &mockAPI{statuses: []model.BackgroundJob{{Status: model.JobRunning}}}
	tracker := newTestTracker(api)

	if _, err := tracker.Submit(context.Background(), KindGetQuotes); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := tracker.Submit(context.Background(), KindGetQuotes); err == nil {
		t.Error("second submit while busy should fail")
	}
	tracker.Shutdown()
}

func TestPlaceOrderLatchesOnCompletion(t *testing.T) {
	api := &mockAPI{statuses: []model.BackgroundJob{{Status: model.JobCompleted}}}
	tracker := newTestTracker(api)

	if _, err := tracker.Submit(context.Background(), KindPlaceOrder); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFor(t, func() bool {
		return tracker.ControlStateFor(KindPlaceOrder) == ControlExecuted
	})

	// The latch never re-arms: re-submitting executed orders is refused.
	if _, err := tracker.Submit(context.Background(), KindPlaceOrder); err == nil {
		t.Error("submit after executed latch should fail")
	}
}

func TestPushTerminalBeatsPolling(t *testing.T) {
	api := &mockAPI{statuses: []model.BackgroundJob{{Status: model.JobRunning}}}
	tracker := newTestTracker(api)

	jobID, err := tracker.Submit(context.Background(), KindPlaceOrder)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	tracker.HandleFailed(model.BackgroundJob{ID: jobID, Kind: string(KindPlaceOrder), Error: "boom"})

	if got := tracker.ControlStateFor(KindPlaceOrder); got != ControlArmed {
		t.Errorf("control after failure: got %s, want armed", got)
	}

	// A late completion signal for the same job must not flip the outcome.
	tracker.HandleCompleted(model.BackgroundJob{ID: jobID, Kind: string(KindPlaceOrder)})
	if got := tracker.ControlStateFor(KindPlaceOrder); got != ControlArmed {
		t.Errorf("control after stale completion: got %s, want armed", got)
	}
}

func TestPollAttemptBound(t *testing.T) {
	api := &mockAPI{statuses: []model.BackgroundJob{{Status: model.JobRunning}}}
	surface := &recordingSurface{}
	tracker := NewTracker(api, surface, notify.New(realtime.NopSurface{}), time.Millisecond, 3)

	if _, err := tracker.Submit(context.Background(), KindGetQuotes); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The bound fails the job and re-arms the control.
	waitFor(t, func() bool {
		return tracker.ControlStateFor(KindGetQuotes) == ControlArmed
	})
}

func TestPollErrorsAreTolerated(t *testing.T) {
	api := &mockAPI{
		statuses: []model.BackgroundJob{{Status: model.JobCompleted}},
	}
	api.statusErr = errors.New("transient")
	tracker := newTestTracker(api)

	if _, err := tracker.Submit(context.Background(), KindGetQuotes); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Clear the error after a few failed polls; the loop must still reach
	// the terminal status.
	time.Sleep(5 * time.Millisecond)
	api.mu.Lock()
	api.statusErr = nil
	api.mu.Unlock()

	waitFor(t, func() bool {
		return tracker.ControlStateFor(KindGetQuotes) == ControlArmed
	})
}
