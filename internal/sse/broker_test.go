package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeSceneChanged, Path: "a.flow.json", Data: map[string]string{"op": "add_node"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: scene.changed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"op":"add_node"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishScopedToFlow(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	mine := b.Subscribe("a.flow.json")
	other := b.Subscribe("b.flow.json")
	all := b.Subscribe("")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(other)
	defer b.Unsubscribe(all)

	b.Publish(Event{Type: TypeSceneChanged, Path: "a.flow.json", Data: map[string]string{}})
	b.Publish(Event{Type: TypeCatalogChanged, Data: map[string]string{}})

	if got := drain(mine); len(got) != 2 {
		t.Errorf("scoped client got %d events, want 2", len(got))
	}
	got := drain(other)
	if len(got) != 1 || !strings.Contains(got[0], TypeCatalogChanged) {
		t.Errorf("other flow client got %q", got)
	}
	if got := drain(all); len(got) != 2 {
		t.Errorf("unscoped client got %d events, want 2", len(got))
	}
}

func TestPublishFlowEvent_WorkspaceThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	b.PublishFlowEvent("created", "a.flow.json")
	b.PublishFlowEvent("updated", "b.flow.json")
	b.PublishFlowEvent("renamed", "c.flow.json")

	workspace, flows := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, TypeWorkspaceUpdated) {
			workspace++
		} else {
			flows++
		}
	}
	if flows != 2 {
		t.Errorf("flow events = %d, want 2", flows)
	}
	if workspace != 1 {
		t.Errorf("workspace events = %d, want 1 (throttled)", workspace)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/events?flow=x.flow.json", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: TypeFlowUpdated, Path: "x.flow.json", Data: map[string]string{"path": "x.flow.json"}})
	b.Publish(Event{Type: TypeFlowUpdated, Path: "y.flow.json", Data: map[string]string{"path": "y.flow.json"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, `"path":"x.flow.json"`) {
		t.Errorf("handler output missing event: %q", body)
	}
	if strings.Contains(body, "y.flow.json") {
		t.Errorf("handler leaked another flow's event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}
	b.Publish(Event{Type: TypeFlowUpdated, Data: map[string]string{"path": "x.flow.json"}})
	b.PublishFlowEvent("updated", "x.flow.json")
}
