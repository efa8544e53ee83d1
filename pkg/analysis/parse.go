package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is a completion response reduced to a summary and flags
type Parsed struct {
	Summary string
	Flags   []Flag
	// Raw is the response text as received
	Raw string
	// Fallback is set when no JSON object could be recovered
	Fallback bool
}

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// ParseResponse extracts a summary and flags from a completion response. It
// tries strict JSON, then JSON inside code fences, then the outermost brace
// span, and finally treats the whole text as the summary.
func ParseResponse(raw string) Parsed {
	text := strings.TrimSpace(raw)

	candidates := []string{text}
	if strings.HasPrefix(text, "```") {
		candidates = append(candidates, stripFences(text))
	}
	for _, c := range candidates {
		if p, ok := decode(c); ok {
			p.Raw = raw
			return p
		}
	}

	unfenced := candidates[len(candidates)-1]
	if m := jsonObjectRe.FindString(unfenced); m != "" {
		if p, ok := decode(m); ok {
			p.Raw = raw
			return p
		}
	}

	return Parsed{Summary: unfenced, Flags: []Flag{}, Raw: raw, Fallback: true}
}

// stripFences drops markdown code fence lines
func stripFences(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func decode(s string) (Parsed, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Parsed{}, false
	}

	// A bare list is taken as flags
	if strings.HasPrefix(s, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(s), &list); err != nil {
			return Parsed{}, false
		}
		return Parsed{Flags: parseFlagList(list)}, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return Parsed{}, false
	}

	p := Parsed{Flags: []Flag{}}
	if raw, ok := obj["summary"]; ok {
		var summary string
		if json.Unmarshal(raw, &summary) == nil {
			p.Summary = summary
		}
	}
	for _, key := range []string{"flagged", "flagged_indices", "highlighted_tweets"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) != nil {
			continue
		}
		p.Flags = append(p.Flags, parseFlagList(list)...)
	}
	return p, true
}

// parseFlagList accepts entries that are objects with index and reason, or
// bare indices as numbers or numeric strings.
func parseFlagList(list []json.RawMessage) []Flag {
	flags := make([]Flag, 0, len(list))
	for _, entry := range list {
		entry = bytes.TrimSpace(entry)
		if len(entry) > 0 && entry[0] == '{' {
			var obj struct {
				Index  json.RawMessage `json:"index"`
				Reason string          `json:"reason"`
			}
			if json.Unmarshal(entry, &obj) != nil {
				continue
			}
			idx, ok := parseIndex(obj.Index)
			if !ok {
				continue
			}
			flags = append(flags, Flag{Index: idx, Reason: obj.Reason})
			continue
		}
		if idx, ok := parseIndex(entry); ok {
			flags = append(flags, Flag{Index: idx})
		}
	}
	return flags
}

// parseIndex reads an integral JSON number or a numeric string
func parseIndex(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		return n, err == nil
	}
	var f float64
	if json.Unmarshal(raw, &f) != nil {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
