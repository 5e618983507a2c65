package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/hazyhaar/covwatch/annotate"
)

var (
	urlStyle    = color.New(color.FgBlue, color.Bold)
	scriptStyle = color.New(color.FgGreen)
	warnStyle   = color.New(color.FgYellow)
	errStyle    = color.New(color.FgRed)
)

// Text prints each script's annotated source for a terminal.
type Text struct {
	mu      sync.Mutex
	w       io.Writer
	palette annotate.Palette
	raw     bool
	plain   bool
}

// TextOption configures a Text sink.
type TextOption func(*Text)

// WithRawCoverage appends the raw function ranges after each script.
// The report must have been built with KeepRaw.
func WithRawCoverage() TextOption { return func(t *Text) { t.raw = true } }

// WithoutColor prints plain source regardless of color.NoColor.
func WithoutColor() TextOption { return func(t *Text) { t.plain = true } }

// WithPalette overrides the highlight colors.
func WithPalette(p annotate.Palette) TextOption { return func(t *Text) { t.palette = p } }

// NewText creates a Text sink. If w is nil, os.Stdout is used.
func NewText(w io.Writer, opts ...TextOption) *Text {
	if w == nil {
		w = os.Stdout
	}
	t := &Text{w: w, palette: annotate.DefaultPalette()}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Text) Send(_ context.Context, rep *Report) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.w, t.format(rep))
	return err
}

func (t *Text) Close() error { return nil }

func (t *Text) format(rep *Report) string {
	var b strings.Builder
	for _, w := range rep.Warnings {
		if w.Code == WarnSourceUnavailable {
			continue // printed in place below
		}
		msg := w.Message
		if w.URL != "" {
			msg += " " + w.URL
		}
		b.WriteString(t.paint(warnStyle, msg))
		b.WriteByte('\n')
	}

	for _, s := range rep.Scripts {
		if s.Status != StatusOK {
			style := warnStyle
			if s.Status != StatusSourceUnavailable {
				style = errStyle
			}
			fmt.Fprintf(&b, "%s %s\n", t.paint(style, string(s.Status)+":"), s.Error)
			continue
		}

		fmt.Fprintf(&b, "%s %s  %.1f%% covered\n",
			t.paint(urlStyle, s.URL),
			t.paint(scriptStyle, "scriptId: "+s.ScriptID),
			s.Summary.Percent)
		if t.plain {
			b.WriteString(annotate.Strip(s.Annotated.Text))
		} else {
			b.WriteString(annotate.ANSI(*s.Annotated, t.palette))
		}
		if !strings.HasSuffix(s.Annotated.Text, "\n") {
			b.WriteByte('\n')
		}

		if t.raw && len(s.Functions) > 0 {
			b.WriteString("RAW COVERAGE\n")
			for i, fn := range s.Functions {
				fmt.Fprintf(&b, "fn #%d name: %q %v\n", i, fn.FunctionName, fn.Ranges)
			}
			b.WriteString("RAW COVERAGE END\n")
		}
	}
	return b.String()
}

func (t *Text) paint(c *color.Color, s string) string {
	if t.plain {
		return s
	}
	return c.Sprint(s)
}
