// Package guard decides whether a view may be shown for the current session.
// It keeps no state between evaluations: the session is read fresh every time.
package guard

import (
	"strings"

	"fintrack/internal/core"
)

const (
	Unauthenticated State = iota
	Authenticated
)

const (
	LoginRoute    = "/login"
	RegisterRoute = "/register"
)

// State is the guard's view of the session at evaluation time.
type State int

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// SessionSource reports the live session; nil means logged out.
type SessionSource interface {
	Current() *core.Session
}

// Decision is the outcome of one navigation attempt.
type Decision struct {
	State State
	Allow bool
	// RedirectTo is set when Allow is false.
	RedirectTo string
}

var publicRoutes = map[string]struct{}{
	LoginRoute:    {},
	RegisterRoute: {},
}

// IsPublic reports whether route may be visited without a session.
func IsPublic(route string) bool {
	_, ok := publicRoutes[normalize(route)]
	return ok
}

// StateOf reads the session source once.
func StateOf(src SessionSource) State {
	if src != nil && src.Current() != nil {
		return Authenticated
	}
	return Unauthenticated
}

// Evaluate decides a navigation to route. Protected routes without a session redirect
// to the login view; everything else passes, including signed-in visits to login.
func Evaluate(route string, src SessionSource) Decision {
	state := StateOf(src)
	if state == Authenticated || IsPublic(route) {
		return Decision{State: state, Allow: true}
	}
	return Decision{State: state, Allow: false, RedirectTo: LoginRoute}
}

func normalize(route string) string {
	route = strings.TrimSpace(route)
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return strings.ToLower(route)
}
