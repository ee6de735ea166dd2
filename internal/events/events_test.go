package events

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewEvent(t *testing.T) {
	ev := New(TransactionsDeleted, "space-1", "uid-1", "t1", "t2")

	if ev.ID == "" || ev.OccurredAt.IsZero() {
		t.Fatalf("expected id and timestamp: %+v", ev)
	}
	if ev.Type != TransactionsDeleted || ev.SpaceID != "space-1" || ev.ActorUID != "uid-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "transactions.deleted" {
		t.Fatalf("type = %v", decoded["type"])
	}
	if ids, ok := decoded["subjectIds"].([]any); !ok || len(ids) != 2 {
		t.Fatalf("subjectIds = %v", decoded["subjectIds"])
	}
}

func TestNoopPublisher(t *testing.T) {
	if err := (Noop{}).Publish(context.Background(), New(SpaceCleared, "s", "u")); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
}
