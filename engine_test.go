package gustavio

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tiago-bitten/gustavio/store"
)

func waitForEvent(t *testing.T, e *Engine, name string, timeout time.Duration) *Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-e.Events():
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", name)
			return nil
		}
	}
}

func TestOpenEmitsConfigLoadedWithoutUsername(t *testing.T) {
	e, err := openAt(t.TempDir() + "/engine-test-1.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ev := waitForEvent(t, e, EventConfigLoaded, time.Second)
	payload := ev.Payload.(ConfigLoadedPayload)
	if payload.PeerID == "" || payload.Username != "" {
		t.Fatalf("unexpected config_loaded payload: %+v", payload)
	}
}

func TestSetUsernameReannouncesConfig(t *testing.T) {
	e, err := openAt(t.TempDir() + "/engine-test-2.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	waitForEvent(t, e, EventConfigLoaded, time.Second)

	body, _ := json.Marshal(map[string]string{"cmd": "set_username", "username": "Alice"})
	e.Dispatch(string(body))

	ev := waitForEvent(t, e, EventConfigLoaded, time.Second)
	payload := ev.Payload.(ConfigLoadedPayload)
	if payload.Username != "Alice" {
		t.Fatalf("expected username Alice, got %+v", payload)
	}
}

func TestDispatchInvalidCommandEmitsError(t *testing.T) {
	e, err := openAt(t.TempDir() + "/engine-test-3.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	waitForEvent(t, e, EventConfigLoaded, time.Second)

	e.Dispatch("not json")
	waitForEvent(t, e, EventError, time.Second)
}

func TestLoadHistoryOnEmptyConversationEmitsEmptyHistory(t *testing.T) {
	e, err := openAt(t.TempDir() + "/engine-test-4.db")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	waitForEvent(t, e, EventConfigLoaded, time.Second)

	body, _ := json.Marshal(map[string]string{"cmd": "load_history", "conversation_id": "nobody"})
	e.Dispatch(string(body))
	ev := waitForEvent(t, e, EventHistory, time.Second)
	if rows, ok := ev.Payload.([]store.MessageRow); !ok || len(rows) != 0 {
		t.Fatalf("expected empty history, got %+v", ev.Payload)
	}
}
