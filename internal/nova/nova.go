// Package nova parses Nova-style JSON responses with a single repair attempt
// for trailing commas.
package nova

import (
	"encoding/json"
	"fmt"
	"regexp"
)

var trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

// Parse decodes a Nova JSON response. On a decode failure it strips trailing
// commas before closing braces and brackets and retries once.
func Parse(s string) (map[string]any, error) {
	var res map[string]any
	err := json.Unmarshal([]byte(s), &res)
	if err == nil {
		return res, nil
	}
	cleaned := trailingComma.ReplaceAllString(s, "$1")
	if retryErr := json.Unmarshal([]byte(cleaned), &res); retryErr != nil {
		return nil, fmt.Errorf("parse nova json: %w", err)
	}
	return res, nil
}

// ExtractContent returns the text of the first content element, or the empty
// string when the response has no such shape.
func ExtractContent(response map[string]any) string {
	content, ok := response["content"].([]any)
	if !ok || len(content) == 0 {
		return ""
	}
	first, ok := content[0].(map[string]any)
	if !ok {
		return ""
	}
	text, _ := first["text"].(string)
	return text
}
