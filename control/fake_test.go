package control

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/covwatch/session"
)

// fakeTab is a scripted tab: it serves sources by script ID and a fixed
// coverage snapshot, and lets the test push parsed-script events.
type fakeTab struct {
	mu       sync.Mutex
	calls    []string
	sources  map[proto.RuntimeScriptID]string
	coverage []*proto.ProfilerScriptCoverage
	events   chan session.Event
}

func newFakeTab() *fakeTab {
	return &fakeTab{
		sources: make(map[proto.RuntimeScriptID]string),
		events:  make(chan session.Event, 8),
	}
}

func (f *fakeTab) Client(ctx context.Context) proto.Client { return fakeClient{f} }

func (f *fakeTab) Events(ctx context.Context) <-chan session.Event {
	out := make(chan session.Event)
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

func (f *fakeTab) parse(id, url, src string) {
	f.mu.Lock()
	f.sources[proto.RuntimeScriptID(id)] = src
	f.mu.Unlock()
	f.events <- session.Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: proto.RuntimeScriptID(id), URL: url}}
}

type fakeClient struct{ f *fakeTab }

func (c fakeClient) Call(_ context.Context, _, method string, params any) ([]byte, error) {
	f := c.f
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)

	switch method {
	case "Debugger.getScriptSource":
		req := params.(proto.DebuggerGetScriptSource)
		src, ok := f.sources[req.ScriptID]
		if !ok {
			return nil, errors.New("no such script")
		}
		return json.Marshal(proto.DebuggerGetScriptSourceResult{ScriptSource: src})
	case "Profiler.takePreciseCoverage":
		return json.Marshal(proto.ProfilerTakePreciseCoverageResult{Result: f.coverage})
	}
	return []byte(`{}`), nil
}

type fakeAttacher struct {
	tabs map[string]*fakeTab
}

func (a fakeAttacher) Attach(_ context.Context, tabID string) (session.Target, error) {
	t, ok := a.tabs[tabID]
	if !ok {
		return nil, errors.New("no such tab")
	}
	return t, nil
}
