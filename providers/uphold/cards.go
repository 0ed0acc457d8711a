package uphold

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
)

// Card is an Uphold card record. Available arrives as a decimal string on
// the wire and is parsed into a float here, once.
type Card struct {
	ID        string
	Label     string
	Currency  string
	Available float64
}

type cardPayload struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

func (p cardPayload) toCard() (Card, error) {
	card := Card{
		ID:       p.ID,
		Label:    p.Label,
		Currency: p.Currency,
	}
	if strings.TrimSpace(p.Available) != "" {
		available, err := strconv.ParseFloat(p.Available, 64)
		if err != nil {
			return Card{}, fmt.Errorf("uphold: card available %q: %w", p.Available, core.ErrFailedToParseBody)
		}
		card.Available = available
	}
	return card, nil
}

// GetCards lists the member's BAT cards so the linking flow can reuse an
// existing rewards card instead of creating duplicates.
type GetCards struct {
	env   core.Environment
	token string
}

func NewGetCards(env core.Environment, token string) (*GetCards, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &GetCards{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *GetCards) Path() string {
	query := url.Values{}
	query.Set("q", "currency:"+cardCurrency)
	return Host(e.env) + "/v0/me/cards?" + query.Encode()
}

func (*GetCards) Method() string {
	return http.MethodGet
}

func (e *GetCards) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetCards) Content() ([]byte, error) {
	return nil, nil
}

func (*GetCards) ProcessResponse(statusCode int, body []byte, _ map[string]string) ([]Card, error) {
	switch statusCode {
	case http.StatusOK:
		payloads, err := endpoints.ParseBody[[]cardPayload](body)
		if err != nil {
			return nil, err
		}
		cards := make([]Card, 0, len(payloads))
		for _, payload := range payloads {
			card, err := payload.toCard()
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
		}
		return cards, nil
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("uphold: list cards: %w", core.ErrAccessTokenExpired)
	default:
		return nil, fmt.Errorf("uphold: list cards: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[[]Card] = (*GetCards)(nil)

// PostCards creates the rewards BAT card.
type PostCards struct {
	env   core.Environment
	token string
}

func NewPostCards(env core.Environment, token string) (*PostCards, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	return &PostCards{env: env, token: strings.TrimSpace(token)}, nil
}

func (e *PostCards) Path() string {
	return Host(e.env) + "/v0/me/cards"
}

func (*PostCards) Method() string {
	return http.MethodPost
}

func (e *PostCards) Headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + e.token,
		"Content-Type":  "application/json",
	}
}

func (*PostCards) Content() ([]byte, error) {
	body, err := json.Marshal(map[string]string{
		"label":    cardLabel,
		"currency": cardCurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("uphold: encode card body: %w", err)
	}
	return body, nil
}

func (*PostCards) ProcessResponse(statusCode int, body []byte, _ map[string]string) (Card, error) {
	switch statusCode {
	case http.StatusOK, http.StatusCreated:
		payload, err := endpoints.ParseBody[cardPayload](body)
		if err != nil {
			return Card{}, err
		}
		if strings.TrimSpace(payload.ID) == "" {
			return Card{}, fmt.Errorf("uphold: created card has no id: %w", core.ErrFailedToParseBody)
		}
		return payload.toCard()
	case http.StatusUnauthorized:
		return Card{}, fmt.Errorf("uphold: create card: %w", core.ErrAccessTokenExpired)
	default:
		return Card{}, fmt.Errorf("uphold: create card: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[Card] = (*PostCards)(nil)

// GetCard fetches one card for its balance.
type GetCard struct {
	env    core.Environment
	token  string
	cardID string
}

func NewGetCard(env core.Environment, token, cardID string) (*GetCard, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: access token is required", core.ErrFailedToCreateRequest)
	}
	if strings.TrimSpace(cardID) == "" {
		return nil, fmt.Errorf("%w: card id is required", core.ErrFailedToCreateRequest)
	}
	return &GetCard{env: env, token: strings.TrimSpace(token), cardID: strings.TrimSpace(cardID)}, nil
}

func (e *GetCard) Path() string {
	return Host(e.env) + "/v0/me/cards/" + e.cardID
}

func (*GetCard) Method() string {
	return http.MethodGet
}

func (e *GetCard) Headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.token}
}

func (*GetCard) Content() ([]byte, error) {
	return nil, nil
}

func (*GetCard) ProcessResponse(statusCode int, body []byte, _ map[string]string) (Card, error) {
	switch statusCode {
	case http.StatusOK:
		payload, err := endpoints.ParseBody[cardPayload](body)
		if err != nil {
			return Card{}, err
		}
		return payload.toCard()
	case http.StatusUnauthorized:
		return Card{}, fmt.Errorf("uphold: card: %w", core.ErrAccessTokenExpired)
	default:
		return Card{}, fmt.Errorf("uphold: card: %w", core.ErrUnexpectedStatusCode)
	}
}

var _ endpoints.Endpoint[Card] = (*GetCard)(nil)
