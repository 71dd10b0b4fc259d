// Package schedtask records the status of the backend's scheduled task and
// keeps a persistent daily record of it, surviving restarts within the same
// calendar day and resetting at midnight.
package schedtask

import (
	"context"
	"log"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
)

const statusKey = "dashboard:scheduled_task_status"

// Store is the persistence the recorder needs: a JSON value under a fixed
// key. Get reports absence as (false, nil).
type Store interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Banner is the published status-area display state for the tracked task.
type Banner struct {
	Level    string `json:"level"`
	Message  string `json:"message"`
	Progress int    `json:"progress,omitempty"`
	Time     string `json:"time,omitempty"`
}

// Recorder turns scheduled_task push events into a status banner and a
// persisted daily record for one tracked task.
type Recorder struct {
	store    Store
	surface  realtime.Surface
	notifier *notify.Notifier
	taskName string
	now      func() time.Time
}

// NewRecorder creates a recorder for the named task.
func NewRecorder(store Store, surface realtime.Surface, notifier *notify.Notifier, taskName string) *Recorder {
	return &Recorder{
		store:    store,
		surface:  surface,
		notifier: notifier,
		taskName: taskName,
		now:      time.Now,
	}
}

// HandleEvent processes one scheduled_task push frame. Every event raises a
// toast; only events for the tracked task update the banner and the
// persisted record.
func (r *Recorder) HandleEvent(ctx context.Context, ev model.ScheduledTaskEvent) {
	r.notifier.PushStatus(ev.Status, ev.Message)

	if ev.Task != r.taskName {
		return
	}

	now := r.now()
	rec := model.ScheduledTaskRecord{
		Status:   ev.Status,
		Message:  ev.Message,
		Progress: ev.Progress,
		Time:     now.Format("15:04:05"),
		Date:     now.Format("2006-01-02"),
	}
	r.publish(rec)

	if err := r.store.Set(ctx, statusKey, rec, 0); err != nil {
		log.Printf("Failed to persist scheduled task status: %v", err)
	}
}

// Restore rebuilds the banner from the persisted record. A record from a
// previous day is discarded and cleared so every day starts fresh. Same-day
// terminal statuses are restored; a persisted "started" or "progress" is
// stale by definition after a restart and is not restored.
func (r *Recorder) Restore(ctx context.Context) {
	var rec model.ScheduledTaskRecord
	found, err := r.store.Get(ctx, statusKey, &rec)
	if err != nil {
		log.Printf("Failed to load scheduled task status: %v", err)
	}

	today := r.now().Format("2006-01-02")
	if found && rec.Date == today {
		switch rec.Status {
		case "completed", "success", "failed", "error", "skipped", "warning":
			r.publish(rec)
			return
		}
	}

	if found {
		if err := r.store.Delete(ctx, statusKey); err != nil {
			log.Printf("Failed to clear scheduled task status: %v", err)
		}
	}
	r.publishWaiting()
}

// publish projects a record onto the banner surface.
func (r *Recorder) publish(rec model.ScheduledTaskRecord) {
	banner := Banner{
		Level:    string(notify.Classify(rec.Status)),
		Progress: rec.Progress,
		Time:     rec.Time,
	}
	if rec.Message != "" {
		banner.Message = rec.Message
	} else {
		banner.Message = "Scheduled task: " + rec.Status
	}
	r.surface.Publish(realtime.EventTaskBanner, banner)
}

func (r *Recorder) publishWaiting() {
	r.surface.Publish(realtime.EventTaskBanner, Banner{
		Level:   string(notify.CategoryInfo),
		Message: "Waiting for scheduled task...",
	})
}
