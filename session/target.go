// Package session drives one DevTools-attached tab: domain enabling, the
// script-parsed listener that fills the source store, and the profiler's
// precise coverage calls.
package session

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Event is one item of a target's event stream. Exactly one of
// ScriptParsed or Navigated is set.
type Event struct {
	ScriptParsed *proto.DebuggerScriptParsed
	// Navigated is set when the main frame starts loading a new document.
	Navigated bool
}

// Target is a tab covwatch can drive.
type Target interface {
	// Client returns a CDP client whose calls are bound to ctx.
	Client(ctx context.Context) proto.Client
	// Events streams parsed scripts and main-frame navigations until ctx
	// is done, then closes the channel.
	Events(ctx context.Context) <-chan Event
}

// RodTarget adapts a rod page.
type RodTarget struct {
	Page *rod.Page
}

func (t RodTarget) Client(ctx context.Context) proto.Client {
	return t.Page.Context(ctx)
}

// Events subscribes through rod's EachEvent, which enables the Debugger
// domain itself when the subscription starts and disables it when ctx ends.
// Scripts therefore start arriving as soon as the listener is added,
// whatever the order of the explicit enableDebugger and disableDebugger
// steps.
func (t RodTarget) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event, 256)
	send := func(ev Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	wait := t.Page.Context(ctx).EachEvent(
		func(e *proto.DebuggerScriptParsed) {
			send(Event{ScriptParsed: e})
		},
		func(e *proto.PageFrameStartedLoading) {
			if e.FrameID == t.Page.FrameID {
				send(Event{Navigated: true})
			}
		},
	)

	go func() {
		defer close(ch)
		wait()
	}()
	return ch
}
