package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestShutdownRunsHooksInReverseOnce(t *testing.T) {
	m := New(time.Second, nil)
	var order []string
	m.Register("storage", func(context.Context) error { order = append(order, "storage"); return nil })
	m.Register("validator", func(context.Context) error { order = append(order, "validator"); return nil })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })
	m.Register("nil", nil)

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
	if want := []string{"http", "validator", "storage"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestShutdownJoinsErrorsAndContinues(t *testing.T) {
	m := New(time.Second, nil)
	errA := errors.New("a")
	ran := false
	m.Register("last", func(context.Context) error { ran = true; return nil })
	m.Register("first", func(context.Context) error { return errA })

	if err := m.Shutdown(context.Background()); !errors.Is(err, errA) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ran {
		t.Fatalf("remaining hooks must still run")
	}
}

func TestShutdownHooksSeeDeadline(t *testing.T) {
	m := New(50*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestListenStop(t *testing.T) {
	ctx, stop := New(0, nil).Listen(context.Background())
	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("context not cancelled by stop")
	}
}
