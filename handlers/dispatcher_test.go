package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatchRoutesByTag(t *testing.T) {
	d := NewDispatcher()

	var got []string
	d.Register("alpha", func(ctx context.Context, frame json.RawMessage) {
		got = append(got, "alpha")
	})
	d.Register("beta", func(ctx context.Context, frame json.RawMessage) {
		got = append(got, "beta")
	})

	frames := []string{
		`{"type":"beta"}`,
		`{"type":"alpha"}`,
		`{"type":"beta"}`,
	}
	for _, f := range frames {
		d.Dispatch(context.Background(), []byte(f))
	}

	want := []string{"beta", "alpha", "beta"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatchIgnoresUnknownTag(t *testing.T) {
	d := NewDispatcher()

	called := false
	d.Register("known", func(ctx context.Context, frame json.RawMessage) {
		called = true
	})

	d.Dispatch(context.Background(), []byte(`{"type":"mystery","data":1}`))
	if called {
		t.Error("unknown tag must not invoke other handlers")
	}
}

func TestDispatchSurvivesMalformedFrame(t *testing.T) {
	d := NewDispatcher()
	d.Register("known", func(ctx context.Context, frame json.RawMessage) {})

	// Must not panic or propagate.
	d.Dispatch(context.Background(), []byte(`{not json`))
	d.Dispatch(context.Background(), nil)
}

func TestDispatchConcurrentRegister(t *testing.T) {
	d := NewDispatcher()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Register("a", func(ctx context.Context, frame json.RawMessage) {})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Dispatch(context.Background(), []byte(`{"type":"a"}`))
		}
	}()
	wg.Wait()
}
