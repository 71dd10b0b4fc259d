// Package notify implements the ephemeral toast queue. Each toast carries its
// own auto-dismiss deadline; there is no cap and no deduplication.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nse-alerts-dashboard/realtime"
)

// Category is the coarse styling key for a toast.
type Category string

const (
	CategorySuccess  Category = "success"
	CategoryError    Category = "error"
	CategoryWarning  Category = "warning"
	CategoryProgress Category = "progress"
	CategoryInfo     Category = "info"
)

// Classify maps a raw status string onto a coarse category.
func Classify(status string) Category {
	switch status {
	case "completed", "success":
		return CategorySuccess
	case "failed", "error":
		return CategoryError
	case "warning", "skipped":
		return CategoryWarning
	case "started", "progress":
		return CategoryProgress
	default:
		return CategoryInfo
	}
}

// Icon returns the display marker for the category.
func (c Category) Icon() string {
	switch c {
	case CategorySuccess:
		return "✅"
	case CategoryError:
		return "❌"
	case CategoryWarning:
		return "⚠️"
	case CategoryProgress:
		return "🔄"
	default:
		return "ℹ️"
	}
}

// Toast is one transient notification.
type Toast struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Icon      string    `json:"icon"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Notifier owns the toast queue and publishes lifecycle events to the surface.
type Notifier struct {
	surface realtime.Surface

	// Terminal (completed/failed) toasts linger longer than transient ones.
	terminalTTL  time.Duration
	transientTTL time.Duration

	mu     sync.Mutex
	toasts []Toast
	now    func() time.Time
}

// New creates a Notifier with the default display durations.
func New(surface realtime.Surface) *Notifier {
	return &Notifier{
		surface:      surface,
		terminalTTL:  15 * time.Second,
		transientTTL: 8 * time.Second,
		now:          time.Now,
	}
}

// Push enqueues one toast and returns it.
func (n *Notifier) Push(category Category, message string) Toast {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	ttl := n.transientTTL
	if category == CategorySuccess || category == CategoryError {
		ttl = n.terminalTTL
	}

	toast := Toast{
		ID:        uuid.NewString(),
		Category:  category,
		Icon:      category.Icon(),
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	n.toasts = append(n.toasts, toast)
	n.surface.Publish(realtime.EventToast, toast)
	return toast
}

// PushStatus classifies a raw status and enqueues the toast.
func (n *Notifier) PushStatus(status, message string) Toast {
	return n.Push(Classify(status), message)
}

// Dismiss removes a toast early by direct user interaction.
func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i, t := range n.toasts {
		if t.ID == id {
			n.toasts = append(n.toasts[:i], n.toasts[i+1:]...)
			n.surface.Publish(realtime.EventToastDismissed, map[string]string{"id": id})
			return true
		}
	}
	return false
}

// Active returns the toasts that have not yet expired.
func (n *Notifier) Active() []Toast {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	out := make([]Toast, 0, len(n.toasts))
	for _, t := range n.toasts {
		if t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out
}

// Sweep drops expired toasts and publishes their dismissal.
func (n *Notifier) Sweep() {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	kept := n.toasts[:0]
	for _, t := range n.toasts {
		if t.ExpiresAt.After(now) {
			kept = append(kept, t)
			continue
		}
		n.surface.Publish(realtime.EventToastDismissed, map[string]string{"id": t.ID})
	}
	n.toasts = kept
}

// Run sweeps expired toasts periodically until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.Sweep()
		}
	}
}
