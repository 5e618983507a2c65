package report

import (
	"context"
	"html/template"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/covwatch/annotate"
)

var pageTmpl = template.Must(template.New("report").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>covwatch {{.ID}}</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
h2 { font-size: 1rem; }
h2 .url { color: blue; font-weight: 600; }
h2 .script { color: green; }
pre.coverage { font-family: monospace; white-space: pre-wrap; border: 1px solid #ddd; padding: .5rem; }
.covered { {{.Covered}} }
.not-covered { {{.NotCovered}} }
.warning { color: #a60; }
.failed { color: #c00; }
</style>
</head>
<body>
<h1>Coverage report {{.ID}}</h1>
{{range .Warnings}}{{if ne .Code "source_unavailable"}}<p class="warning">{{.Message}} {{.URL}}</p>
{{end}}{{end}}
{{range .Scripts}}<section>
<h2><span class="url">{{.URL}}</span> <span class="script">scriptId: {{.ScriptID}}</span>{{if .HTML}} {{printf "%.1f" .Summary.Percent}}% covered{{end}}</h2>
{{if .HTML}}{{.HTML}}{{else}}<p class="failed">{{.Status}}: {{.Error}}</p>{{end}}
</section>
{{end}}
</body>
</html>
`))

type pageScript struct {
	Script
	HTML template.HTML
}

type pageData struct {
	*Report
	Scripts    []pageScript
	Covered    template.CSS
	NotCovered template.CSS
}

// WriteHTML renders a report as a standalone HTML page.
func WriteHTML(w io.Writer, rep *Report) error {
	data := pageData{
		Report:     rep,
		Covered:    template.CSS(annotate.StyleCovered.CSS()),
		NotCovered: template.CSS(annotate.StyleNotCovered.CSS()),
	}
	for _, s := range rep.Scripts {
		ps := pageScript{Script: s}
		if s.Annotated != nil {
			// annotate.HTML escapes and sanitizes its output.
			ps.HTML = template.HTML(annotate.HTML(*s.Annotated))
		}
		data.Scripts = append(data.Scripts, ps)
	}
	return pageTmpl.Execute(w, data)
}

// HTML writes each report as a standalone page.
type HTML struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHTML creates an HTML sink. If w is nil, os.Stdout is used.
func NewHTML(w io.Writer) *HTML {
	if w == nil {
		w = os.Stdout
	}
	return &HTML{w: w}
}

func (h *HTML) Send(_ context.Context, rep *Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return WriteHTML(h.w, rep)
}

func (h *HTML) Close() error { return nil }
