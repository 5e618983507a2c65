package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-rod/rod/lib/proto"
)

// fakeTarget answers CDP calls from canned responses and lets tests push
// events into the stream.
type fakeTarget struct {
	mu      sync.Mutex
	calls   []string
	replies map[string]any
	sources map[proto.RuntimeScriptID]string
	fail    map[string]error

	events chan Event
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		replies: make(map[string]any),
		sources: make(map[proto.RuntimeScriptID]string),
		fail:    make(map[string]error),
		events:  make(chan Event),
	}
}

func (f *fakeTarget) Client(ctx context.Context) proto.Client { return fakeClient{f: f, ctx: ctx} }

func (f *fakeTarget) Events(ctx context.Context) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (f *fakeTarget) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeClient struct {
	f   *fakeTarget
	ctx context.Context
}

func (c fakeClient) GetContext() context.Context { return c.ctx }

func (c fakeClient) Call(ctx context.Context, _, method string, params any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f := c.f
	f.mu.Lock()
	f.calls = append(f.calls, method)
	err := f.fail[method]
	reply, ok := f.replies[method]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if req, isSrc := params.(proto.DebuggerGetScriptSource); isSrc {
		f.mu.Lock()
		src, found := f.sources[req.ScriptID]
		f.mu.Unlock()
		if !found {
			return nil, errors.New("No script for id: " + string(req.ScriptID))
		}
		return json.Marshal(proto.DebuggerGetScriptSourceResult{ScriptSource: src})
	}
	if !ok {
		return []byte(`{}`), nil
	}
	return json.Marshal(reply)
}
