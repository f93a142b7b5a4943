package ui

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
}

// Component is implemented by every page of the TUI. Title names the page in
// the breadcrumb trail.
type Component interface {
	Title() string
	Hints() []MenuHint
}
