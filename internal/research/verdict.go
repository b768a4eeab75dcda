package research

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Verdict is the structured relevance judgement returned by the model.
type Verdict struct {
	Summary    string
	IsRelevant bool
	Insights   string
}

// ParseError reports a model reply that did not contain a valid verdict.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "malformed research verdict: " + e.Reason
}

// ParseVerdict extracts the first balanced JSON object from text, tolerating
// surrounding prose, and validates its fields.
func ParseVerdict(text string) (Verdict, error) {
	obj, ok := findJSONObject(text)
	if !ok {
		return Verdict{}, &ParseError{Reason: "no JSON object in response", Raw: text}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return Verdict{}, &ParseError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: text}
	}

	var v Verdict
	raw, ok := fields["summary"]
	if !ok || isNull(raw) || json.Unmarshal(raw, &v.Summary) != nil {
		return Verdict{}, &ParseError{Reason: "summary must be a string", Raw: text}
	}
	raw, ok = fields["isRelevant"]
	if !ok || isNull(raw) || json.Unmarshal(raw, &v.IsRelevant) != nil {
		return Verdict{}, &ParseError{Reason: "isRelevant must be a boolean", Raw: text}
	}
	if raw, ok := fields["insights"]; ok && !isNull(raw) {
		insights, err := decodeInsights(raw)
		if err != nil {
			return Verdict{}, &ParseError{Reason: "insights must be a string", Raw: text}
		}
		v.Insights = insights
	}
	return v, nil
}

// decodeInsights accepts a string or a list of strings.
func decodeInsights(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	return strings.Join(list, "\n"), nil
}

// json.Unmarshal leaves the target untouched on null, so null has to be
// rejected explicitly.
func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

// findJSONObject returns the first balanced {...} in input. Braces inside
// string literals, including escaped quotes, are ignored.
func findJSONObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			if depth > 0 {
				inString = !inString
			}
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}
