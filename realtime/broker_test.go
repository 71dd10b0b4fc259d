package realtime

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestServeHTTPAfterBrokerStopped(t *testing.T) {
	b := NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// A subscriber arriving after shutdown must not block on the dead run
	// loop; the graceful-shutdown timeout depends on handlers draining.
	served := make(chan struct{})
	go func() {
		req := httptest.NewRequest("GET", "/events", nil)
		b.ServeHTTP(httptest.NewRecorder(), req)
		close(served)
	}()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("SSE handler hung on a stopped broker")
	}
}

func TestServeHTTPUnregisterAfterBrokerStopped(t *testing.T) {
	b := NewBroker()

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)

	// Register a subscriber whose request is already cancelled, then stop
	// the broker; the unregister send must not hang.
	reqCtx, reqCancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events", nil).WithContext(reqCtx)

	served := make(chan struct{})
	go func() {
		b.ServeHTTP(httptest.NewRecorder(), req)
		close(served)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	reqCancel()

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("SSE handler hung unregistering from a stopped broker")
	}
}
