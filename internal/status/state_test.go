package status

import (
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Booting {
		t.Errorf("initial state = %s, want BOOTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Ready}},
		{[]State{Error}},
		{[]State{Ready, Degraded, Ready}},
		{[]State{Ready, Stopping}},
		{[]State{Ready, Degraded, Stopping}},
		{[]State{Error, Booting, Ready}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, to := range tt.path {
			if err := m.Transition(to); err != nil {
				t.Fatalf("path %v: Transition(%s) error = %v", tt.path, to, err)
			}
		}
		if want := tt.path[len(tt.path)-1]; m.Current() != want {
			t.Errorf("state = %s, want %s", m.Current(), want)
		}
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Degraded); err == nil {
		t.Error("Transition(BOOTING -> DEGRADED) should fail")
	}
	_ = m.Transition(Stopping)
	if err := m.Transition(Ready); err == nil {
		t.Error("Transition(STOPPING -> READY) should fail")
	}
}

func TestSameStateUpdatesReasonOnly(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	_ = m.Transition(Ready)
	<-ch
	if err := m.TransitionWithReason(Ready, "still fine"); err != nil {
		t.Fatal(err)
	}
	if _, reason, _ := m.Snapshot(); reason != "still fine" {
		t.Errorf("reason = %q", reason)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTransitionPublishesEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	_ = m.Transition(Ready)
	_ = m.TransitionWithReason(Degraded, "presence backend unreachable")

	var got []StatusChange
	for range 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.Payload.(StatusChange))
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for status event")
		}
	}
	if got[0].From != Booting || got[0].To != Ready {
		t.Errorf("first change = %+v", got[0])
	}
	if got[1].To != Degraded || got[1].Reason != "presence backend unreachable" {
		t.Errorf("second change = %+v", got[1])
	}
}
