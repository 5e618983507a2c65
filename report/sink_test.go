package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/covwatch/coverage"
	"github.com/hazyhaar/covwatch/kit"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	scripts := []coverage.ScriptCoverage{
		script("7", "https://example.com/app.js", coverage.Range{StartOffset: 0, EndOffset: 12, Count: 1}, coverage.Range{StartOffset: 4, EndOffset: 8, Count: 0}),
		script("8", "https://example.com/gone.js", coverage.Range{StartOffset: 0, EndOffset: 1, Count: 1}),
	}
	opts := testOptions()
	opts.KeepRaw = true
	rep, err := Build(context.Background(), scripts, lookupFrom(map[string]string{"https://example.com/app.js#7": "let a = 1;\n"}), opts)
	require.NoError(t, err)
	return rep
}

func TestText_Format(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	sink := NewText(&buf, WithRawCoverage())
	require.NoError(t, sink.Send(context.Background(), sampleReport(t)))

	out := buf.String()
	assert.Contains(t, out, "https://example.com/app.js scriptId: 7")
	assert.Contains(t, out, "let a = 1;\n")
	assert.Contains(t, out, "RAW COVERAGE\n")
	assert.Contains(t, out, "source_unavailable: source for script 8 not found")
}

func TestHTML_Page(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHTML(&buf).Send(context.Background(), sampleReport(t)))

	out := buf.String()
	assert.Contains(t, out, `<span class="url">https://example.com/app.js</span>`)
	assert.Contains(t, out, `<pre class="coverage">`)
	assert.Contains(t, out, `<span class="not-covered">`)
	assert.Contains(t, out, `<p class="failed">source_unavailable:`)
}

func TestJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSON(&buf).Send(context.Background(), sampleReport(t)))

	var env struct {
		Type string `json:"type"`
		Data struct {
			ID      string `json:"id"`
			Scripts []struct {
				Status    string `json:"status"`
				Annotated *struct {
					Tokens []struct {
						Style string `json:"style"`
					} `json:"tokens"`
				} `json:"annotated"`
			} `json:"scripts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, "report", env.Type)
	assert.Equal(t, "rep_1", env.Data.ID)
	require.Len(t, env.Data.Scripts, 2)
	assert.Equal(t, "not-covered", env.Data.Scripts[0].Annotated.Tokens[2].Style)
}

func TestRouter_FanOutContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	var got atomic.Int32
	r := NewRouter(nil,
		NewCallback(func(context.Context, *Report) error { return boom }),
		NewCallback(func(context.Context, *Report) error { got.Add(1); return nil }),
	)
	r.Add(NewCallback(nil))

	err := r.Send(context.Background(), &Report{ID: "rep_x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), got.Load())
	assert.NoError(t, r.Close())
}

func TestWebhook_RetriesUntilSuccess(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"type":"report"`)
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	require.NoError(t, wh.Send(context.Background(), &Report{ID: "rep_1"}))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWebhook_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	err := wh.Send(context.Background(), &Report{ID: "rep_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestWebhook_ClientErrorIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		assert.Equal(t, "rep_1", r.Header.Get("X-Covwatch-Report"))
		assert.Equal(t, "trc_abc", r.Header.Get("X-Trace-ID"))
		http.Error(w, "unknown hook", http.StatusNotFound)
	}))
	defer srv.Close()

	ctx := kit.WithTraceID(context.Background(), "trc_abc")
	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	err := wh.Send(ctx, &Report{ID: "rep_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404: unknown hook")
	assert.Equal(t, int32(1), attempts.Load())
}
