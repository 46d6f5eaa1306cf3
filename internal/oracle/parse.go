package oracle

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
)

// parseClaude extracts the "result" field of claude's JSON output. Output
// that is not JSON, or has no result, is returned trimmed.
func parseClaude(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	var payload struct {
		Result *string `json:"result"`
	}
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil || payload.Result == nil {
		return trimmed
	}
	return *payload.Result
}

// parseCodex returns the text of the last completed agent_message in
// codex's JSONL event stream, or the trimmed output when there is none.
func parseCodex(raw string) string {
	type event struct {
		Type string `json:"type"`
		Item struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"item"`
	}

	var (
		last  string
		found bool
	)
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type == "item.completed" && ev.Item.Type == "agent_message" {
			last = ev.Item.Text
			found = true
		}
	}
	if !found {
		return strings.TrimSpace(raw)
	}
	return last
}

// prettyJSON indents raw when it is a single JSON document.
func prettyJSON(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(strings.TrimSpace(raw)), "", " "); err != nil {
		return raw
	}
	return buf.String()
}
