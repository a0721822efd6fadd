package status

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessage(t *testing.T) {
	now := time.Now()
	present := Instance{Present: true, LastSeen: &now}
	cases := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"empty", Snapshot{}, "Waiting for detection..."},
		{"single", Snapshot{Instances: []Instance{present}, PresentCount: 1}, "Object detected ✓"},
		{"all", Snapshot{Instances: []Instance{present, present}, PresentCount: 2}, "All 2 objects present ✓"},
		{"missing", Snapshot{Instances: []Instance{present, {}}, PresentCount: 1, MissingCount: 1}, "⚠️ 1 of 2 missing"},
		{"moved", Snapshot{Instances: []Instance{present}, PresentCount: 1, MovementDetected: true}, "⚠️ Movement detected"},
		{"occluded", Snapshot{Instances: []Instance{present, {}}, PresentCount: 1}, "1 of 2 visible"},
	}
	for _, c := range cases {
		if got := Message(c.snap); got != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func TestPlaceholderJSON(t *testing.T) {
	b, err := json.Marshal(Placeholder("bottle"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["last_seen"] != nil {
		t.Errorf("expected null last_seen, got %v", m["last_seen"])
	}
	if inst, ok := m["instances"].([]any); !ok || len(inst) != 0 {
		t.Errorf("expected empty instances array, got %v", m["instances"])
	}
	if m["status_message"] != "Waiting for detection script..." {
		t.Errorf("unexpected message %v", m["status_message"])
	}
}
