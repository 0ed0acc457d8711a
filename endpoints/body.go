package endpoints

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-rewards/core"
)

// ParseBody decodes a success payload. Malformed JSON or a top-level type
// mismatch yields core.ErrFailedToParseBody, never a zero-value success.
func ParseBody[T any](body []byte) (T, error) {
	var decoded T
	if len(strings.TrimSpace(string(body))) == 0 {
		return decoded, fmt.Errorf("%w: empty body", core.ErrFailedToParseBody)
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return decoded, fmt.Errorf("%w: %v", core.ErrFailedToParseBody, err)
	}
	return decoded, nil
}

// RequireField guards required keys after decoding; missing required
// values are a parse failure, not a silent default.
func RequireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: missing %s", core.ErrFailedToParseBody, name)
	}
	return nil
}
