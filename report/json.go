package report

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
)

// JSON writes one envelope per report as a JSON line.
type JSON struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSON creates a JSON sink. If w is nil, os.Stdout is used.
func NewJSON(w io.Writer) *JSON {
	if w == nil {
		w = os.Stdout
	}
	return &JSON{enc: json.NewEncoder(w)}
}

func (j *JSON) Send(_ context.Context, rep *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(Envelope{Type: "report", Data: rep})
}

func (j *JSON) Close() error { return nil }

// Envelope wraps a report on every serialised transport.
type Envelope struct {
	Type string  `json:"type"`
	Data *Report `json:"data"`
}
