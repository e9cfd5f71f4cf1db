package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonFenceRegex = regexp.MustCompile("```(?:json)?\\s*")

// common wrapper keys, tried before any other key
var wrapperKeys = []string{"results", "translations", "data", "items"}

// removes markdown formatting from the response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = jsonFenceRegex.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// fixes invalid JSON escape sequences such as \N by escaping the
// backslash, so the literal sequence survives decoding
func fixInvalidEscapes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i == len(s)-1 {
			sb.WriteByte(s[i])
			continue
		}
		switch next := s[i+1]; next {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
			sb.WriteByte('\\')
			sb.WriteByte(next)
		default:
			sb.WriteString(`\\`)
			sb.WriteByte(next)
		}
		i++
	}

	return sb.String()
}

// parses a raw model reply into results
func parseResponseText(text string) ([]TranslationResult, error) {
	if text == "" {
		return nil, fmt.Errorf("no text in response")
	}

	text = cleanJSONResponse(text)
	results, err := extractTranslationResults(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w (response: %s)", err, truncateString(text, 200))
	}
	return results, nil
}

func extractTranslationResults(text string) ([]TranslationResult, error) {
	text = fixInvalidEscapes(text)

	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		decoder := json.NewDecoder(strings.NewReader(text[i:]))
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			continue
		}
		if results, ok := tryExtractResults(raw); ok {
			return results, nil
		}
	}
	return nil, fmt.Errorf("no valid translation JSON found in response")
}

func tryExtractResults(raw json.RawMessage) ([]TranslationResult, bool) {
	var results []TranslationResult
	if err := json.Unmarshal(raw, &results); err == nil && validateResults(results) {
		return results, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	for _, key := range wrapperKeys {
		if field, ok := wrapper[key]; ok {
			if err := json.Unmarshal(field, &results); err == nil && validateResults(results) {
				return results, true
			}
		}
	}

	for _, field := range wrapper {
		if err := json.Unmarshal(field, &results); err == nil && validateResults(results) {
			return results, true
		}
	}

	return nil, false
}

// true when at least one result carries text
func validateResults(results []TranslationResult) bool {
	for _, r := range results {
		if r.Text != "" {
			return true
		}
	}
	return false
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
