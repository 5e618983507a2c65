package coverage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeSnapshot reads a Profiler.takePreciseCoverage payload. Both the
// protocol envelope ({"result": [...], "timestamp": ...}) and a bare array
// of script entries are accepted. An empty payload decodes to no scripts.
func DecodeSnapshot(r io.Reader) ([]ScriptCoverage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("coverage: read snapshot: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var scripts []ScriptCoverage
		if err := json.Unmarshal(data, &scripts); err != nil {
			return nil, fmt.Errorf("coverage: decode snapshot: %w", err)
		}
		return scripts, nil
	}

	var env struct {
		Result []ScriptCoverage `json:"result"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("coverage: decode snapshot: %w", err)
	}
	return env.Result, nil
}

// EncodeSnapshot writes scripts in the protocol envelope understood by
// DecodeSnapshot.
func EncodeSnapshot(w io.Writer, scripts []ScriptCoverage) error {
	if scripts == nil {
		scripts = []ScriptCoverage{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Result []ScriptCoverage `json:"result"`
	}{scripts})
}
