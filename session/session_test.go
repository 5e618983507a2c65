package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/idgen"
	"github.com/hazyhaar/covwatch/sourcestore"
)

func newTestSession(t *testing.T) (*Session, *fakeTarget, *sourcestore.Memory) {
	t.Helper()
	ft := newFakeTarget()
	store := sourcestore.NewMemory(0)
	s := New(context.Background(), Config{ID: "ses_1", TabID: "tab-1", Target: ft, Store: store, Options: DefaultOptions()})
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, ft, store
}

func TestSession_DomainCalls(t *testing.T) {
	s, ft, _ := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.EnableNetwork(ctx))
	require.NoError(t, s.SetCacheDisabled(ctx))
	require.NoError(t, s.EnableDebugger(ctx))
	require.NoError(t, s.EnableProfiler(ctx))
	require.NoError(t, s.StartPreciseCoverage(ctx))
	require.NoError(t, s.StopPreciseCoverage(ctx))
	require.NoError(t, s.DisableProfiler(ctx))
	require.NoError(t, s.DisableDebugger(ctx))
	require.NoError(t, s.DisableNetwork(ctx))

	assert.Equal(t, []string{
		"Network.enable",
		"Network.setCacheDisabled",
		"Debugger.enable",
		"Profiler.enable",
		"Profiler.startPreciseCoverage",
		"Profiler.stopPreciseCoverage",
		"Profiler.disable",
		"Debugger.disable",
		"Network.disable",
	}, ft.Calls())
}

func TestSession_CallErrorIsWrapped(t *testing.T) {
	s, ft, _ := newTestSession(t)
	boom := errors.New("boom")
	ft.fail["Profiler.enable"] = boom

	err := s.EnableProfiler(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Profiler.enable")
}

func TestSession_Navigate(t *testing.T) {
	s, ft, _ := newTestSession(t)
	require.NoError(t, s.Navigate(context.Background(), "https://example.com/"))
	assert.Equal(t, []string{"Page.navigate"}, ft.Calls())

	ft.replies["Page.navigate"] = proto.PageNavigateResult{ErrorText: "net::ERR_NAME_NOT_RESOLVED"}
	err := s.Navigate(context.Background(), "https://nowhere.invalid/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
}

func TestSession_TakePreciseCoverage(t *testing.T) {
	s, ft, _ := newTestSession(t)
	ft.replies["Profiler.takePreciseCoverage"] = proto.ProfilerTakePreciseCoverageResult{
		Result: []*proto.ProfilerScriptCoverage{{
			ScriptID: "17",
			URL:      "https://example.com/app.js",
			Functions: []*proto.ProfilerFunctionCoverage{{
				FunctionName:    "main",
				IsBlockCoverage: true,
				Ranges: []*proto.ProfilerCoverageRange{
					{StartOffset: 0, EndOffset: 100, Count: 1},
					{StartOffset: 10, EndOffset: 20, Count: 0},
				},
			}},
		}},
	}

	scripts, err := s.TakePreciseCoverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []coverage.ScriptCoverage{{
		ScriptID: "17",
		URL:      "https://example.com/app.js",
		Functions: []coverage.FunctionCoverage{{
			FunctionName:    "main",
			IsBlockCoverage: true,
			Ranges:          []coverage.Range{{StartOffset: 0, EndOffset: 100, Count: 1}, {StartOffset: 10, EndOffset: 20, Count: 0}},
		}},
	}}, scripts)
}

func TestSession_ListenerStoresSources(t *testing.T) {
	s, ft, store := newTestSession(t)
	ctx := context.Background()
	ft.sources["1"] = "console.log('a')"
	ft.sources["2"] = "eval('b')"

	_, err := s.ParsedScriptURLs(ctx)
	require.ErrorIs(t, err, ErrNoListener)

	require.NoError(t, s.AddScriptParsedListener(ctx))
	require.ErrorIs(t, s.AddScriptParsedListener(ctx), ErrListenerActive)

	_, err = s.ParsedScriptURLs(ctx)
	require.ErrorIs(t, err, ErrNoScripts)

	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "1", URL: "https://example.com/a.js"}}
	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "2", URL: ""}}

	require.Eventually(t, func() bool {
		urls, err := s.ParsedScriptURLs(ctx)
		return err == nil && len(urls) == 1
	}, time.Second, 5*time.Millisecond)

	text, err := s.Lookup()(ctx, "https://example.com/a.js", "1")
	require.NoError(t, err)
	assert.Equal(t, "console.log('a')", text)

	urls, err := store.URLs(ctx, "ses_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a.js"}, urls)

	require.NoError(t, s.RemoveScriptParsedListener(ctx))
	require.ErrorIs(t, s.RemoveScriptParsedListener(ctx), ErrNoListener)
}

func TestSession_NavigationClearsSources(t *testing.T) {
	s, ft, store := newTestSession(t)
	ctx := context.Background()
	ft.sources["1"] = "x"

	require.NoError(t, s.AddScriptParsedListener(ctx))
	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "1", URL: "a.js"}}
	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	ft.events <- Event{Navigated: true}
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSession_MissingSourceIsSkipped(t *testing.T) {
	s, ft, store := newTestSession(t)
	ctx := context.Background()
	ft.sources["2"] = "ok"

	require.NoError(t, s.AddScriptParsedListener(ctx))
	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "1", URL: "gone.js"}}
	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "2", URL: "ok.js"}}

	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
	_, err := store.Lookup(ctx, "ses_1", "gone.js", "1")
	assert.ErrorIs(t, err, sourcestore.ErrNotFound)
}

func TestSession_TargetScriptURL(t *testing.T) {
	s, _, _ := newTestSession(t)
	assert.Empty(t, s.TargetScriptURL())
	s.SetTargetScriptURL("https://example.com/a.js")
	assert.Equal(t, "https://example.com/a.js", s.TargetScriptURL())
}

func TestSession_CloseClearsSources(t *testing.T) {
	s, ft, store := newTestSession(t)
	ctx := context.Background()
	ft.sources["1"] = "x"

	require.NoError(t, s.AddScriptParsedListener(ctx))
	ft.events <- Event{ScriptParsed: &proto.DebuggerScriptParsed{ScriptID: "1", URL: "a.js"}}
	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, s.AddScriptParsedListener(ctx), ErrClosed)
}

func TestRegistry_AttachDetach(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(ctx, sourcestore.NewMemory(0), WithIDGenerator(idgen.Sequence("ses_")))

	s, err := r.Attach("tab-b", newFakeTarget())
	require.NoError(t, err)
	assert.Equal(t, "ses_1", s.ID)

	_, err = r.Attach("tab-b", newFakeTarget())
	require.ErrorIs(t, err, ErrAttached)

	_, err = r.Attach("tab-a", newFakeTarget())
	require.NoError(t, err)

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "tab-a", infos[0].TabID)
	assert.Equal(t, "ses_2", infos[0].SessionID)

	got, err := r.Get("tab-b")
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, r.Detach(ctx, "tab-b"))
	require.ErrorIs(t, r.Detach(ctx, "tab-b"), ErrNotAttached)
	_, err = r.Get("tab-b")
	require.ErrorIs(t, err, ErrNotAttached)

	require.NoError(t, r.Close(ctx))
	assert.Empty(t, r.List())
}
