package messages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestQueueOrderAndTypes(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	q.Info("first")
	q.Warning("second")
	q.Error("third")

	got := q.Messages()
	want := []Message{
		{Type: TypeInfo, Text: "first"},
		{Type: TypeWarning, Text: "second"},
		{Type: TypeError, Text: "third"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !q.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	q.Info("a")
	msgs := q.Messages()
	msgs[0].Text = "changed"

	if q.Messages()[0].Text != "a" {
		t.Error("Messages() exposed internal slice")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx := WithQueue(context.Background(), q)
	FromContext(ctx).Warning("w")

	if len(q.Messages()) != 1 {
		t.Error("message not delivered to the context queue")
	}

	orphan := FromContext(context.Background())
	orphan.Error("dropped")
	if orphan.HasErrors() != true {
		t.Error("fallback queue should still accept messages")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Info("x")
		}()
	}
	wg.Wait()

	if n := len(q.Messages()); n != 50 {
		t.Errorf("got %d messages, want 50", n)
	}
}

func TestMiddlewareAttachesQueue(t *testing.T) {
	t.Parallel()

	var seen *Queue
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		seen.Info("hello")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if seen == nil || len(seen.Messages()) != 1 {
		t.Error("middleware did not attach a queue")
	}
}
