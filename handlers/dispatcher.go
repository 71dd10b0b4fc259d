// Package handlers routes push frames to the domain components. Frames are a
// tagged union: a JSON object whose "type" field selects the handler.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"sync"
)

// Push frame tags emitted by the backend.
const (
	TagNewMessage         = "new_message"
	TagMessagesList       = "messages_list"
	TagFinancialMetrics   = "financial_metrics"
	TagAIAnalysisStatus   = "ai_analysis_status"
	TagAIAnalysisComplete = "ai_analysis_complete"
	TagScheduledTask      = "scheduled_task"
	TagJobCompleted       = "job_completed"
	TagJobFailed          = "job_failed"
)

// HandlerFunc processes the raw body of one frame of a known tag.
type HandlerFunc func(ctx context.Context, frame json.RawMessage)

// Dispatcher routes frames to registered handlers by tag. Frames with an
// unknown tag are ignored; a frame that fails to decode is logged and
// dropped, never letting one bad frame take the channel down.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register installs a handler for a frame tag, replacing any previous one.
func (d *Dispatcher) Register(tag string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = fn
}

// Dispatch decodes a frame's envelope and routes it. It never returns an
// error: the push stream must keep flowing regardless of frame content.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		log.Printf("Failed to decode push frame: %v", err)
		return
	}

	d.mu.RLock()
	fn, ok := d.handlers[envelope.Type]
	d.mu.RUnlock()
	if !ok {
		// Unknown tags are expected when the backend is newer than us.
		return
	}

	fn(ctx, frame)
}
