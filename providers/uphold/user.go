package uphold

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// User is the subset of GET /v0/me the linking flow inspects.
type User struct {
	Name       string   `json:"name"`
	MemberID   string   `json:"id"`
	Status     string   `json:"status"`
	MemberAt   string   `json:"memberAt"`
	Currencies []string `json:"currencies"`
}

// Validate enforces the member gates: the account must be in good
// standing, a registered member, and allowed to hold BAT.
func (u User) Validate() error {
	switch u.Status {
	case "ok":
	case "pending":
		return fmt.Errorf("%w: uphold account is pending", core.ErrAccountNotVerified)
	case "blocked", "restricted":
		return fmt.Errorf("%w: uphold account is %s", core.ErrAccountRestricted, u.Status)
	default:
		return fmt.Errorf("%w: uphold account status %q", core.ErrAccountRestricted, u.Status)
	}
	if strings.TrimSpace(u.MemberAt) == "" {
		return fmt.Errorf("%w: uphold account has no member date", core.ErrAccountNotVerified)
	}
	for _, currency := range u.Currencies {
		if currency == cardCurrency {
			return nil
		}
	}
	return fmt.Errorf("%w: BAT not available for account", core.ErrRegionNotSupported)
}

// GetMe fetches the authenticated member record.
type GetMe struct {
	env   core.Environment
	token string
}

func NewGetMe(env core.Environment, token string) (*GetMe, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &GetMe{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *GetMe) Path() string {
	return Host(e.env) + "/v0/me"
}

func (*GetMe) Method() string {
	return http.MethodGet
}

func (e *GetMe) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetMe) Content() ([]byte, error) {
	return nil, nil
}

func (*GetMe) ProcessResponse(statusCode int, body []byte, _ map[string]string) (User, error) {
	switch statusCode {
	case http.StatusOK:
		return endpoints.ParseBody[User](body)
	case http.StatusUnauthorized:
		return User{}, fmt.Errorf("uphold: me: %w", core.ErrAccessTokenExpired)
	default:
		return User{}, fmt.Errorf("uphold: me: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[User] = (*GetMe)(nil)

type capabilityEntry struct {
	Key          string `json:"key"`
	Enabled      bool   `json:"enabled"`
	Requirements []any  `json:"requirements"`
}

// GetCapabilities fetches GET /v0/me/capabilities and reduces it to the
// receive/send pair the status machine cares about. A capability is only
// granted when enabled with no outstanding requirements; a key absent
// from the response stays nil, not false.
type GetCapabilities struct {
	env   core.Environment
	token string
}

func NewGetCapabilities(env core.Environment, token string) (*GetCapabilities, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &GetCapabilities{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *GetCapabilities) Path() string {
	return Host(e.env) + "/v0/me/capabilities"
}

func (*GetCapabilities) Method() string {
	return http.MethodGet
}

func (e *GetCapabilities) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetCapabilities) Content() ([]byte, error) {
	return nil, nil
}

func (*GetCapabilities) ProcessResponse(statusCode int, body []byte, _ map[string]string) (core.Capabilities, error) {
	switch statusCode {
	case http.StatusOK:
		entries, err := endpoints.ParseBody[[]capabilityEntry](body)
		if err != nil {
			return core.Capabilities{}, err
		}
		caps := core.Capabilities{}
		for _, entry := range entries {
			granted := entry.Enabled && len(entry.Requirements) == 0
			switch entry.Key {
			case "receives":
				value := granted
				caps.CanReceive = &value
			case "sends":
				value := granted
				caps.CanSend = &value
			}
		}
		return caps, nil
	case http.StatusUnauthorized:
		return core.Capabilities{}, fmt.Errorf("uphold: capabilities: %w", core.ErrAccessTokenExpired)
	default:
		return core.Capabilities{}, fmt.Errorf("uphold: capabilities: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[core.Capabilities] = (*GetCapabilities)(nil)
