package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func runeEvent(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestPageBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.Rune(Global, 'q', "Quit", func() { got = "global" })
	r.Rune("thread", 'q', "Back", func() { got = "thread" })

	if !r.HandleEvent("thread", runeEvent('q')) || got != "thread" {
		t.Fatalf("thread scope: got %q", got)
	}
	if !r.HandleEvent("conversations", runeEvent('q')) || got != "global" {
		t.Fatalf("other scope: got %q", got)
	}
	if r.HandleEvent("thread", runeEvent('x')) {
		t.Fatal("unbound rune handled")
	}
}

func TestSpecialKeys(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Key(Global, tcell.KeyCtrlR, "Reload", func() { called = true })

	if !r.HandleEvent("any", tcell.NewEventKey(tcell.KeyCtrlR, 0, tcell.ModCtrl)) || !called {
		t.Fatal("ctrl-r not handled")
	}
	if b := r.Bindings("any"); len(b) != 1 || b[0].Name() != "Ctrl-R" {
		t.Fatalf("bindings = %+v", b)
	}
}

func TestBindingsOrderAndLabels(t *testing.T) {
	r := NewRegistry()
	r.Rune(Global, '?', "Help", func() {})
	r.Rune(Global, 'q', "Quit", func() {})
	r.Rune("thread", 'i', "Compose", func() {})
	r.Rune("thread", 'q', "Back", func() {})
	r.Rune("thread", 'j', "", func() {})

	var names []string
	for _, b := range r.Bindings("thread") {
		names = append(names, b.Name()+":"+b.Label)
	}
	want := []string{"i:Compose", "q:Back", "?:Help"}
	if len(names) != len(want) {
		t.Fatalf("bindings = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("bindings = %v, want %v", names, want)
		}
	}
}

func TestRebindReplaces(t *testing.T) {
	r := NewRegistry()
	n := 0
	r.Rune(Global, 'r', "Retry", func() { n = 1 })
	r.Rune(Global, 'r', "Retry", func() { n = 2 })
	r.HandleEvent(Global, runeEvent('r'))
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	if len(r.Bindings(Global)) != 1 {
		t.Fatal("duplicate binding kept")
	}
}
