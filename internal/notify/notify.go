// Package notify is the console's toast surface. Delivery is fire-and-forget:
// nothing awaits a toast and a full queue drops the oldest entry.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Level is the toast severity.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warn"
	LevelError   Level = "error"
)

// Toast is a single user-facing message.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"severity"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier accepts toasts.
type Notifier interface {
	Notify(t Toast)
}

// Queue keeps the most recent toasts until a client drains them.
type Queue struct {
	mu    sync.Mutex
	items []Toast
	size  int
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 100
	}
	return &Queue{size: size}
}

func (q *Queue) Notify(t Toast) {
	t = stamp(t)
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.size {
		q.items = q.items[1:]
	}
	q.items = append(q.items, t)
}

// Drain returns and removes all queued toasts, oldest first.
func (q *Queue) Drain() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []Toast{}
	}
	return out
}

// Len reports the number of queued toasts.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Log writes toasts to a zap logger.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(t Toast) {
	fields := []zap.Field{
		zap.String("severity", string(t.Level)),
		zap.String("summary", t.Summary),
		zap.String("detail", t.Detail),
	}
	switch t.Level {
	case LevelError:
		l.logger.Error("toast", fields...)
	case LevelWarning:
		l.logger.Warn("toast", fields...)
	default:
		l.logger.Info("toast", fields...)
	}
}

// Multi fans a toast out to every notifier.
type Multi []Notifier

func (m Multi) Notify(t Toast) {
	t = stamp(t)
	for _, n := range m {
		if n != nil {
			n.Notify(t)
		}
	}
}

// Discard drops every toast.
type Discard struct{}

func (Discard) Notify(Toast) {}

func stamp(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	return t
}

// Error is a shorthand for an error toast.
func Error(n Notifier, summary, detail string) {
	if n == nil {
		return
	}
	n.Notify(Toast{Level: LevelError, Summary: summary, Detail: detail})
}

// Warn is a shorthand for a warning toast.
func Warn(n Notifier, summary, detail string) {
	if n == nil {
		return
	}
	n.Notify(Toast{Level: LevelWarning, Summary: summary, Detail: detail})
}
