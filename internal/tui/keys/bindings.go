// Package keys maps key events to actions, per page and globally.
package keys

import "github.com/gdamore/tcell/v2"

// Global is the scope consulted after the page scope.
const Global = ""

// Binding ties a key (or a rune when Key is tcell.KeyRune) to a handler.
type Binding struct {
	Key     tcell.Key
	Rune    rune
	Label   string // empty hides the binding from hints
	Handler func()
}

// Matches reports whether ev triggers b.
func (b Binding) Matches(ev *tcell.EventKey) bool {
	if b.Key != tcell.KeyRune {
		return ev.Key() == b.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == b.Rune
}

// Name renders the key for hints, e.g. "q" or "Ctrl-R".
func (b Binding) Name() string {
	if b.Key == tcell.KeyRune {
		return string(b.Rune)
	}
	return tcell.KeyNames[b.Key]
}

// Registry holds bindings in registration order, grouped by scope.
type Registry struct {
	scopes map[string][]Binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string][]Binding)}
}

// Rune binds r in scope.
func (r *Registry) Rune(scope string, ch rune, label string, fn func()) {
	r.add(scope, Binding{Key: tcell.KeyRune, Rune: ch, Label: label, Handler: fn})
}

// Key binds a special key in scope.
func (r *Registry) Key(scope string, key tcell.Key, label string, fn func()) {
	r.add(scope, Binding{Key: key, Label: label, Handler: fn})
}

// add replaces an existing binding for the same key in scope.
func (r *Registry) add(scope string, b Binding) {
	list := r.scopes[scope]
	for i := range list {
		if list[i].Key == b.Key && list[i].Rune == b.Rune {
			list[i] = b
			return
		}
	}
	r.scopes[scope] = append(list, b)
}

// Bindings returns the labelled bindings active on page: the page's own
// first, then global ones not shadowed by them.
func (r *Registry) Bindings(page string) []Binding {
	var out []Binding
	type key struct {
		k tcell.Key
		r rune
	}
	seen := make(map[key]bool)
	for _, scope := range []string{page, Global} {
		for _, b := range r.scopes[scope] {
			k := key{b.Key, b.Rune}
			if seen[k] {
				continue
			}
			seen[k] = true
			if b.Label != "" {
				out = append(out, b)
			}
		}
		if page == Global {
			break
		}
	}
	return out
}

// HandleEvent runs the first binding matching ev on page, falling back to
// global bindings. It reports whether one ran.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	for _, scope := range []string{page, Global} {
		for _, b := range r.scopes[scope] {
			if b.Matches(ev) {
				b.Handler()
				return true
			}
		}
	}
	return false
}
