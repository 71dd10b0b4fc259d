// Package realtime fans dashboard updates out to attached display surfaces
// over Server-Sent Events. Every component renders by publishing typed events
// here; the browser (or any SSE consumer) is the actual drawing surface.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
)

// Surface receives display updates. The SSE broker is the production
// implementation; tests substitute an in-memory recorder.
type Surface interface {
	Publish(event string, payload interface{})
}

// Event names pushed to display surfaces.
const (
	EventConnectionStatus = "connection_status"
	EventMessages         = "messages"
	EventMessageStats     = "message_stats"
	EventFinancialMetrics = "financial_metrics"
	EventAnalysisResults  = "analysis_results"
	EventAnalysisStatus   = "analysis_status"
	EventViewSelection    = "view_selection"
	EventOrderSheet       = "order_sheet"
	EventJobStatus        = "job_status"
	EventTOTPStatus       = "totp_status"
	EventTaskBanner       = "task_banner"
	EventToast            = "toast"
	EventToastDismissed   = "toast_dismissed"
	EventSessionNotice    = "session_notice"
)

// Broker handles Server-Sent Events (SSE) clients and broadcasting
type Broker struct {
	clients    map[chan []byte]bool
	register   chan chan []byte
	unregister chan chan []byte
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
}

// NewBroker creates a new SSE broker
func NewBroker() *Broker {
	return &Broker{
		clients:    make(map[chan []byte]bool),
		register:   make(chan chan []byte),
		unregister: make(chan chan []byte),
		broadcast:  make(chan []byte, 1000),
		done:       make(chan struct{}),
	}
}

// Run starts the broker loop until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client)
			}
			b.mu.Unlock()
			close(b.done)
			return

		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
			log.Printf("SSE client connected. Total: %d", len(b.clients))

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
				log.Printf("SSE client disconnected. Total: %d", len(b.clients))
			}
			b.mu.Unlock()

		case msg := <-b.broadcast:
			b.mu.RLock()
			for client := range b.clients {
				select {
				case client <- msg:
				default:
					// Skip if client buffer is full to prevent blocking
				}
			}
			b.mu.RUnlock()
		}
	}
}

// ServeHTTP handles the SSE endpoint
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	clientChan := make(chan []byte, 10)
	// The run loop may already be gone; never block on a dead broker.
	select {
	case b.register <- clientChan:
	case <-b.done:
		return
	}

	notify := r.Context().Done()

	for {
		select {
		case <-notify:
			select {
			case b.unregister <- clientChan:
			case <-b.done:
			}
			return
		case msg, ok := <-clientChan:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			w.(http.Flusher).Flush()
		}
	}
}

// Publish sends a display update to all connected clients
func (b *Broker) Publish(event string, payload interface{}) {
	data := map[string]interface{}{
		"event":   event,
		"payload": payload,
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshalling broadcast message: %v", err)
		return
	}

	select {
	case b.broadcast <- jsonBytes:
	default:
		// Drop if broadcast buffer full
	}
}

// NopSurface discards all updates. Useful for headless runs and tests.
type NopSurface struct{}

// Publish implements Surface.
func (NopSurface) Publish(string, interface{}) {}
