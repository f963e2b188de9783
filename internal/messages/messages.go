// Package messages is the per-request queue of user-facing notices. Handlers
// return the queued messages alongside their payload.
package messages

import (
	"context"
	"net/http"
	"sync"
)

// Message types.
const (
	TypeError   = "error"
	TypeWarning = "warning"
	TypeInfo    = "info"
)

// Message is a single notice for the user.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Queue collects messages raised while serving one request.
type Queue struct {
	mu       sync.Mutex
	messages []Message
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a message of the given type.
func (q *Queue) Enqueue(typ, text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, Message{Type: typ, Text: text})
}

// Error adds an error message.
func (q *Queue) Error(text string) { q.Enqueue(TypeError, text) }

// Warning adds a warning message.
func (q *Queue) Warning(text string) { q.Enqueue(TypeWarning, text) }

// Info adds an informational message.
func (q *Queue) Info(text string) { q.Enqueue(TypeInfo, text) }

// Messages returns a copy of the queued messages.
func (q *Queue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, len(q.messages))
	copy(out, q.messages)
	return out
}

// HasErrors reports whether an error message was queued.
func (q *Queue) HasErrors() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range q.messages {
		if m.Type == TypeError {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithQueue returns a context carrying q.
func WithQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, contextKey{}, q)
}

// FromContext returns the queue carried by ctx. Without one, a fresh queue
// is returned so callers can always enqueue; its messages are dropped.
func FromContext(ctx context.Context) *Queue {
	if q, ok := ctx.Value(contextKey{}).(*Queue); ok {
		return q
	}
	return NewQueue()
}

// Middleware attaches a fresh queue to every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithQueue(r.Context(), NewQueue())))
	})
}
