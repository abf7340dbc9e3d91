package agent

import (
	"encoding/json"
	"testing"
	"time"
)

func ev(id string) ActivityEvent {
	return ActivityEvent{AgentID: id, AgentName: "agent " + id, Type: "task_started", Timestamp: time.Now()}
}

func TestFeed_DefaultKeepsOnlyNewest(t *testing.T) {
	f := NewFeed(0)
	f.Push(ev("a"))
	f.Push(ev("b"))

	if f.Len() != 1 {
		t.Fatalf("Len = %d, want 1", f.Len())
	}
	got, ok := f.Latest()
	if !ok || got.AgentID != "b" {
		t.Errorf("Latest = %+v, want b", got)
	}
}

func TestFeed_RingOrder(t *testing.T) {
	f := NewFeed(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.Push(ev(id))
	}
	evs := f.Events()
	if len(evs) != 3 {
		t.Fatalf("len = %d, want 3", len(evs))
	}
	for i, want := range []string{"c", "d", "e"} {
		if evs[i].AgentID != want {
			t.Errorf("Events[%d] = %s, want %s", i, evs[i].AgentID, want)
		}
	}
	f.Reset()
	if _, ok := f.Latest(); ok {
		t.Error("Latest after Reset should be empty")
	}
}

func TestRoster_AuthoritativeWins(t *testing.T) {
	f := NewFeed(1)
	f.Push(ev("x"))
	list := []Agent{{ID: "a1", Name: "Planner", Status: StatusBusy}}

	got, degraded := Roster(list, true, f)
	if degraded {
		t.Error("degraded = true with authoritative list")
	}
	if len(got) != 1 || got[0].ID != "a1" {
		t.Errorf("Roster = %+v", got)
	}
}

func TestRoster_EmptyAuthoritativeListIsStillAuthoritative(t *testing.T) {
	f := NewFeed(1)
	f.Push(ev("x"))
	got, degraded := Roster(nil, true, f)
	if degraded || len(got) != 0 {
		t.Errorf("Roster = %+v degraded=%v, want empty, not degraded", got, degraded)
	}
}

func TestRoster_SynthesizedFromLatestEvent(t *testing.T) {
	f := NewFeed(1)
	f.Push(ActivityEvent{AgentID: "x", TaskID: "t9", Status: "WORKING"})

	got, degraded := Roster(nil, false, f)
	if !degraded {
		t.Error("degraded = false, want true")
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Name != "x" || got[0].Status != StatusBusy || got[0].CurrentTaskID != "t9" {
		t.Errorf("synthesized agent = %+v", got[0])
	}

	empty, degraded := Roster(nil, false, NewFeed(1))
	if empty != nil || degraded {
		t.Errorf("empty feed roster = %+v degraded=%v", empty, degraded)
	}
}

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]Status{
		"ACTIVE":  StatusActive,
		"working": StatusBusy,
		"BUSY":    StatusBusy,
		"failed":  StatusError,
		"idle":    StatusIdle,
		"":        StatusIdle,
	}
	for raw, want := range cases {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRecord_FractionalCounters(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id":"a1","status":"idle","tasksCompleted":4.6,"successRate":87.5}`), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	a := r.Agent()
	if a.TasksCompleted != 5 || a.Name != "a1" {
		t.Errorf("agent = %+v", a)
	}
	if got := (Record{TasksCompleted: -3}).Agent().TasksCompleted; got != 0 {
		t.Errorf("negative count -> %d", got)
	}
}
