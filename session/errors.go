package session

import "errors"

var (
	ErrListenerActive = errors.New("session: script parsed listener already active")
	ErrNoListener     = errors.New("session: no parsed sources, add the script parsed listener and enable the debugger first")
	ErrNoScripts      = errors.New("session: no scripts were parsed")
	ErrAttached       = errors.New("session: tab already attached")
	ErrNotAttached    = errors.New("session: tab not attached")
	ErrClosed         = errors.New("session: closed")
)
