package annotate

import (
	"html"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"github.com/microcosm-cc/bluemonday"
)

// Palette holds the terminal styles for executed and unexecuted text.
type Palette struct {
	Covered    *color.Color
	NotCovered *color.Color
}

// DefaultPalette mirrors the DevTools coverage tint: green for executed
// code, red for code that never ran.
func DefaultPalette() Palette {
	return Palette{
		Covered:    color.New(color.BgGreen, color.FgBlack),
		NotCovered: color.New(color.BgRed, color.FgHiWhite),
	}
}

// ANSI renders annotated source for a terminal. Colors follow the global
// color.NoColor switch. Each line of a styled slice is colored on its own
// so a background never bleeds past a newline.
func ANSI(a Annotated, p Palette) string {
	var b strings.Builder
	for _, s := range a.Slices {
		var c *color.Color
		switch s.Style {
		case StyleCovered:
			c = p.Covered
		case StyleNotCovered:
			c = p.NotCovered
		}
		if c == nil {
			b.WriteString(s.Text)
			continue
		}
		lines := strings.Split(s.Text, "\n")
		for i, line := range lines {
			if i > 0 {
				b.WriteByte('\n')
			}
			if line != "" {
				b.WriteString(c.Sprint(line))
			}
		}
	}
	return b.String()
}

// CSS for the console renderer, one per style.
const (
	cssNeutral    = "background-color: unset;"
	cssCovered    = "background-color: rgba(0, 255, 0, 0.1);"
	cssNotCovered = "background-color: rgba(255, 0, 0, 0.12);"
)

// CSS returns the console style string for s.
func (s Style) CSS() string {
	switch s {
	case StyleCovered:
		return cssCovered
	case StyleNotCovered:
		return cssNotCovered
	default:
		return cssNeutral
	}
}

// Console returns the arguments for a DevTools console.log call: the
// marked-up text and one CSS string per marker, in order.
func Console(a Annotated) (format string, styles []string) {
	styles = make([]string, len(a.Tokens))
	for i, tok := range a.Tokens {
		styles[i] = tok.Style.CSS()
	}
	return a.Text, styles
}

var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("pre", "span")
	p.AllowAttrs("class").
		Matching(regexp.MustCompile(`^(coverage|covered|not-covered)$`)).
		OnElements("pre", "span")
	return p
}()

// HTML renders annotated source as a <pre> block with one span per styled
// slice. The markup is sanitized before it is returned.
func HTML(a Annotated) string {
	var b strings.Builder
	b.WriteString(`<pre class="coverage">`)
	for _, s := range a.Slices {
		if s.Style == StyleNeutral {
			b.WriteString(html.EscapeString(s.Text))
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(s.Style.String())
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(s.Text))
		b.WriteString(`</span>`)
	}
	b.WriteString(`</pre>`)
	return htmlPolicy.Sanitize(b.String())
}
