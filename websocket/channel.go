package websocket

import (
	"context"
	"log"
	"sync"
	"time"

	"nse-alerts-dashboard/model"
	"nse-alerts-dashboard/realtime"
)

// FrameHandler consumes one raw push frame. The channel calls it from a
// single goroutine, in arrival order, and waits for it to return before
// reading the next frame.
type FrameHandler func(ctx context.Context, frame []byte)

// TokenSource supplies the current session token at dial time, so a
// reconnect after token refresh picks up the fresh value.
type TokenSource func() string

// Channel owns the push connection lifecycle: connect, read until the
// connection drops, wait a fixed delay, reconnect. It retries forever; only
// context cancellation stops it.
type Channel struct {
	url     string
	token   TokenSource
	handler FrameHandler
	surface realtime.Surface
	delay   time.Duration

	mu    sync.Mutex
	state model.ConnectionState
}

// StatusUpdate is the published connection display state.
type StatusUpdate struct {
	State     model.ConnectionState `json:"state"`
	Connected bool                  `json:"connected"`
	Detail    string                `json:"detail,omitempty"`
}

// NewChannel creates a push channel.
func NewChannel(url string, token TokenSource, handler FrameHandler, surface realtime.Surface, reconnectDelay time.Duration) *Channel {
	return &Channel{
		url:     url,
		token:   token,
		handler: handler,
		surface: surface,
		delay:   reconnectDelay,
		state:   model.StateConnecting,
	}
}

// State returns the channel's last published connection state.
func (ch *Channel) State() model.ConnectionState {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Run drives the connect/read/reconnect loop until ctx is cancelled. Dial
// failures and connection drops are handled identically: publish the
// disconnected state, wait the fixed delay, try again.
func (ch *Channel) Run(ctx context.Context) {
	for {
		ch.setState(model.StateConnecting, "")
		log.Printf("🔌 Connecting to push channel %s...", ch.url)

		client := NewClient(ch.url, ch.token())
		if err := client.Connect(); err != nil {
			log.Printf("❌ Push channel connection failed: %v", err)
			ch.setState(model.StateErrored, err.Error())
			if !ch.wait(ctx) {
				return
			}
			continue
		}

		log.Println("✅ Push channel connected")
		ch.setState(model.StateConnected, "")

		err := ch.readLoop(ctx, client)
		_ = client.Close()
		if ctx.Err() != nil {
			ch.setState(model.StateDisconnected, "")
			return
		}

		log.Printf("⚠️  Push channel dropped: %v", err)
		ch.setState(model.StateDisconnected, "")
		if !ch.wait(ctx) {
			return
		}
	}
}

// readLoop reads frames until the connection fails, dispatching each frame
// synchronously so stores observe events in arrival order.
func (ch *Channel) readLoop(ctx context.Context, client *Client) error {
	// Unblock the pending read when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-done:
		}
	}()

	for {
		frame, err := client.ReadFrame()
		if err != nil {
			return err
		}
		ch.handler(ctx, frame)
	}
}

// wait sleeps the reconnect delay, reporting false if ctx was cancelled.
func (ch *Channel) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(ch.delay):
		return true
	}
}

func (ch *Channel) setState(state model.ConnectionState, detail string) {
	ch.mu.Lock()
	ch.state = state
	ch.mu.Unlock()
	ch.surface.Publish(realtime.EventConnectionStatus, StatusUpdate{
		State:     state,
		Connected: state.Connected(),
		Detail:    detail,
	})
}
