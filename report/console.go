package report

import "github.com/hazyhaar/covwatch/annotate"

// ConsoleCall holds the arguments of one DevTools console.log call that
// prints an annotated script with its coverage tint.
type ConsoleCall struct {
	ScriptID string   `json:"script_id"`
	URL      string   `json:"url"`
	Format   string   `json:"format"`
	Styles   []string `json:"styles"`
}

// ConsoleCalls returns one call per annotated script, in report order.
func ConsoleCalls(rep *Report) []ConsoleCall {
	calls := make([]ConsoleCall, 0, len(rep.Scripts))
	for _, s := range rep.Scripts {
		if s.Annotated == nil {
			continue
		}
		format, styles := annotate.Console(*s.Annotated)
		calls = append(calls, ConsoleCall{ScriptID: s.ScriptID, URL: s.URL, Format: format, Styles: styles})
	}
	return calls
}
