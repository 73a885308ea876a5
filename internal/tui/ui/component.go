package ui

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
}

// Component is a page the app can push. Its name labels the page in the
// crumbs.
type Component interface {
	Name() string
}
