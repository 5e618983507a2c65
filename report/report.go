// Package report turns a coverage snapshot into annotated per-script
// results and delivers them to output sinks.
package report

import (
	"time"

	"github.com/hazyhaar/covwatch/annotate"
	"github.com/hazyhaar/covwatch/coverage"
)

// Status is the outcome for one script.
type Status string

const (
	StatusOK                Status = "ok"
	StatusSourceUnavailable Status = "source_unavailable"
	StatusMalformed         Status = "malformed"
	StatusInvariant         Status = "invariant"
)

// WarningCode classifies a report warning.
type WarningCode string

const (
	WarnEmptySnapshot     WarningCode = "empty_snapshot"
	WarnNoTargetCoverage  WarningCode = "no_target_coverage"
	WarnSourceUnavailable WarningCode = "source_unavailable"
)

// Warning is a non-fatal condition. The batch continues past all of them.
type Warning struct {
	Code     WarningCode `json:"code"`
	Message  string      `json:"message"`
	URL      string      `json:"url,omitempty"`
	ScriptID string      `json:"script_id,omitempty"`
}

// Script is the result for one script of the snapshot.
type Script struct {
	ScriptID  string                      `json:"script_id"`
	URL       string                      `json:"url"`
	Status    Status                      `json:"status"`
	Error     string                      `json:"error,omitempty"`
	Segments  []coverage.Segment          `json:"segments,omitempty"`
	Summary   coverage.Summary            `json:"summary"`
	Annotated *annotate.Annotated         `json:"annotated,omitempty"`
	Functions []coverage.FunctionCoverage `json:"functions,omitempty"`
}

// Report is the result of one takePreciseCoverage.
type Report struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	TargetURL string    `json:"target_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Scripts   []Script  `json:"scripts"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// Failed counts scripts that did not render.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Scripts {
		if s.Status != StatusOK {
			n++
		}
	}
	return n
}
