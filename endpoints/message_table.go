package endpoints

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// MessageRule maps one (status code, message substring) pair onto a named
// error. An empty Substring matches any message at that status.
type MessageRule struct {
	Status    int
	Substring string
	Err       error
}

// MessageTable is the per-endpoint error classifier. Rows are evaluated
// top to bottom; providers return overlapping substrings for different
// semantic errors at the same status code, so order matters and the table
// stays data rather than control flow.
type MessageTable []MessageRule

// Classify resolves a non-success response. A recognized status whose
// message matches no row maps to ErrUnknownMessage; an unrecognized status
// maps to ErrUnexpectedStatusCode.
func (t MessageTable) Classify(statusCode int, message string) error {
	statusKnown := false
	for _, rule := range t {
		if rule.Status != statusCode {
			continue
		}
		statusKnown = true
		if rule.Substring == "" || strings.Contains(message, rule.Substring) {
			return fmt.Errorf("%w: status %d", rule.Err, statusCode)
		}
	}
	if statusKnown {
		return fmt.Errorf("%w: status %d", core.ErrUnknownMessage, statusCode)
	}
	return fmt.Errorf("%w: status %d", core.ErrUnexpectedStatusCode, statusCode)
}

// ParseMessageBody extracts the "message" field from a provider error
// body. Malformed bodies yield an empty message, not a parse failure; the
// table default then applies.
func ParseMessageBody(body []byte) string {
	var decoded struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	return decoded.Message
}
