package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/garyjia/erp-approvals/internal/domain/event"
)

// mockLogger implements Logger for testing
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprint(append([]interface{}{msg}, keysAndValues...)...))
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func requested() *event.Event {
	return event.NewEvent(event.TypeApprovalRequested, event.Subject{
		RequestID:    "req-1",
		DocumentType: "purchaseOrder",
		DocumentID:   "po-1",
		CompanyID:    "c1",
		ActorID:      "u1",
	}, nil)
}

func TestSubscribe(t *testing.T) {
	t.Run("calls every handler for the event type in order", func(t *testing.T) {
		d := NewDispatcher()
		var order []string

		d.Subscribe(event.TypeApprovalRequested, func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.Subscribe(event.TypeApprovalRequested, func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})
		d.Subscribe(event.TypeApprovalApproved, func(ctx context.Context, evt *event.Event) error {
			order = append(order, "other")
			return nil
		})

		if err := d.Dispatch(context.Background(), requested()); err != nil {
			t.Fatalf("dispatch failed: %v", err)
		}

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected call order: %v", order)
		}
	})

	t.Run("auto-generated names are unique per type", func(t *testing.T) {
		d := NewDispatcher()
		noop := func(ctx context.Context, evt *event.Event) error { return nil }
		d.Subscribe(event.TypeApprovalRequested, noop)
		d.Subscribe(event.TypeApprovalRequested, noop)

		handlers := d.ListHandlers(event.TypeApprovalRequested)
		if len(handlers) != 2 || handlers[0].Name == handlers[1].Name {
			t.Errorf("expected two distinct names, got %+v", handlers)
		}
	})
}

func TestSubscribeMany(t *testing.T) {
	d := NewDispatcher()
	var calls atomic.Int32

	d.SubscribeMany(event.ApprovalTypes, "notifier", func(ctx context.Context, evt *event.Event) error {
		calls.Add(1)
		return nil
	})

	for _, eventType := range event.ApprovalTypes {
		evt := event.NewEvent(eventType, event.Subject{}, nil)
		if err := d.Dispatch(context.Background(), evt); err != nil {
			t.Fatalf("dispatch %s failed: %v", eventType, err)
		}
	}

	if int(calls.Load()) != len(event.ApprovalTypes) {
		t.Errorf("expected %d calls, got %d", len(event.ApprovalTypes), calls.Load())
	}
	if handlers := d.ListHandlers(event.TypeStatusChanged); len(handlers) != 0 {
		t.Errorf("status_changed should have no handlers, got %d", len(handlers))
	}
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	d := NewDispatcher(WithLogger(&mockLogger{}))
	boom := errors.New("boom")
	secondCalled := false

	d.SubscribeNamed(event.TypeApprovalRequested, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.SubscribeNamed(event.TypeApprovalRequested, "after", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), requested())
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped boom, got %v", err)
	}
	if secondCalled {
		t.Error("handlers after a failure should not run")
	}
}

func TestDispatch_RecoversPanics(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))

	d.Subscribe(event.TypeApprovalRequested, func(ctx context.Context, evt *event.Event) error {
		panic("nil map")
	})

	err := d.Dispatch(context.Background(), requested())
	if err == nil {
		t.Fatal("expected panic to surface as error")
	}
	if logger.ErrorCount() == 0 {
		t.Error("expected panic to be logged")
	}
}

func TestDispatchAsync(t *testing.T) {
	t.Run("handlers outlive a cancelled request context", func(t *testing.T) {
		d := NewDispatcher()
		var ctxErr atomic.Value
		done := make(chan struct{})

		d.Subscribe(event.TypeApprovalApproved, func(ctx context.Context, evt *event.Event) error {
			defer close(done)
			time.Sleep(10 * time.Millisecond)
			ctxErr.Store(fmt.Sprint(ctx.Err()))
			return nil
		})

		reqCtx, cancel := context.WithCancel(context.Background())
		d.DispatchAsync(reqCtx, event.NewEvent(event.TypeApprovalApproved, event.Subject{}, nil))
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("async handler did not run")
		}

		if got := ctxErr.Load(); got != "<nil>" {
			t.Errorf("handler context should not be cancelled, got %v", got)
		}
	})

	t.Run("errors are logged and never returned", func(t *testing.T) {
		logger := &mockLogger{}
		d := NewDispatcher(WithLogger(logger))

		d.Subscribe(event.TypeApprovalRejected, func(ctx context.Context, evt *event.Event) error {
			return errors.New("chat unavailable")
		})

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeApprovalRejected, event.Subject{}, nil))
		if err := d.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}

		if logger.ErrorCount() != 1 {
			t.Errorf("expected one logged error, got %d", logger.ErrorCount())
		}
	})

	t.Run("timeout applies to each handler", func(t *testing.T) {
		d := NewDispatcher(WithAsyncTimeout(5 * time.Millisecond))
		deadlineSeen := make(chan bool, 1)

		d.Subscribe(event.TypeApprovalReopened, func(ctx context.Context, evt *event.Event) error {
			_, ok := ctx.Deadline()
			deadlineSeen <- ok
			<-ctx.Done()
			return ctx.Err()
		})

		d.DispatchAsync(context.Background(), event.NewEvent(event.TypeApprovalReopened, event.Subject{}, nil))
		_ = d.Close()

		if !<-deadlineSeen {
			t.Error("expected handler context to carry a deadline")
		}
	})
}

func TestClose(t *testing.T) {
	d := NewDispatcher()
	var finished atomic.Bool

	d.Subscribe(event.TypeApprovalRequested, func(ctx context.Context, evt *event.Event) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	d.DispatchAsync(context.Background(), requested())

	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !finished.Load() {
		t.Error("Close should wait for async handlers")
	}

	if err := d.Close(); err == nil {
		t.Error("second Close should fail")
	}
	if err := d.Dispatch(context.Background(), requested()); err == nil {
		t.Error("Dispatch after Close should fail")
	}
}
