// Package router picks the navigation tree for a session status.
package router

import (
	"fmt"

	"github.com/me/libra/pkg/model"
)

// Tree is a navigation tree.
type Tree string

const (
	TreeLoading Tree = "loading" // session still initializing; render nothing interactive
	TreeAuth    Tree = "auth"    // login, register, password reset
	TreeMain    Tree = "main"    // everything behind a session
	TreeAny     Tree = "any"     // reachable from either tree (help, version, logout)
)

// Select maps a session status to the tree that may be shown.
func Select(status model.SessionStatus) Tree {
	switch status {
	case model.SessionAuthenticated:
		return TreeMain
	case model.SessionAnonymous:
		return TreeAuth
	default:
		return TreeLoading
	}
}

// UnreachableError is returned when a screen is requested outside the tree
// the session allows.
type UnreachableError struct {
	Want    Tree
	Current Tree
}

func (e *UnreachableError) Error() string {
	switch {
	case e.Want == TreeMain && e.Current == TreeAuth:
		return "not logged in: run 'libra login' first"
	case e.Want == TreeAuth && e.Current == TreeMain:
		return "already logged in: run 'libra logout' first"
	default:
		return fmt.Sprintf("%s screens are not available while the session is %s", e.Want, e.Current)
	}
}

// Check returns nil if a screen belonging to want may be shown for status.
func Check(want Tree, status model.SessionStatus) error {
	current := Select(status)
	if want == TreeAny || want == "" || want == current {
		return nil
	}
	return &UnreachableError{Want: want, Current: current}
}
