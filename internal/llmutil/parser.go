// internal/llmutil/parser.go
package llmutil

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decision replies must be a single JSON object, but models routinely wrap
// them in markdown fences or conversational text. The regex uses \x60 for
// backticks because Go raw strings cannot contain them.
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseJSONResponse extracts and unmarshals a JSON object from a model
// response into the target type. It tolerates markdown code fences and
// surrounding prose, but the payload itself must be well-formed; a response
// with no parsable object is an error the caller maps to its retry policy.
func ParseJSONResponse[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	if response == "" {
		return nil, fmt.Errorf("empty model response")
	}

	payload := response

	if strings.HasPrefix(response, "```") {
		if m := fencedObjectRegex.FindStringSubmatch(response); len(m) > 1 {
			payload = m[1]
		}
	} else if !strings.HasPrefix(response, "{") {
		// Conversational wrapping: take the outermost object boundaries.
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first == -1 || last <= first {
			return nil, fmt.Errorf("model response contains no JSON object")
		}
		payload = response[first : last+1]
	}

	var result T
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(payload, 500))
	}
	return &result, nil
}

// truncateString truncates a string to a maximum length for error messages.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte truncation is fine for error logging.
	return s[:maxLen] + "..."
}
