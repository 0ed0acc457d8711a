package credentials

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-rewards/core"
	"github.com/goliatone/go-rewards/endpoints"
	"github.com/goliatone/go-rewards/payment"
)

type Service struct {
	env     core.Environment
	logger  core.Logger
	client  *endpoints.Client
	batches core.CredsBatchStore
	tokens  core.TokenStore
	signer  Signer
	now     func() time.Time
}

type Dependencies struct {
	Environment    core.Environment
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Client         *endpoints.Client
	Batches        core.CredsBatchStore
	Tokens         core.TokenStore
	Signer         Signer
	Now            func() time.Time
}

func NewService(deps Dependencies) (*Service, error) {
	if err := deps.Environment.Validate(); err != nil {
		return nil, err
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("credentials: endpoint client is required")
	}
	if deps.Batches == nil {
		return nil, fmt.Errorf("credentials: creds batch store is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("credentials: token store is required")
	}
	if deps.Signer == nil {
		return nil, fmt.Errorf("credentials: signer is required")
	}

	_, logger := glog.Resolve("rewards.credentials", deps.LoggerProvider, deps.Logger)
	logger = glog.Ensure(logger)

	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		env:     deps.Environment,
		logger:  logger,
		client:  deps.Client,
		batches: deps.Batches,
		tokens:  deps.Tokens,
		signer:  deps.Signer,
		now:     now,
	}, nil
}

type RequestBatchInput struct {
	OrderID    string
	IssuerID   string
	Count      int
	TokenValue float64
	ExpiresAt  time.Time
}

// RequestBatch blinds a fresh set of creds, persists the batch, then
// submits it for signing. The batch record lands before the network call
// so an interrupted submission can be resumed by the poll loop.
func (s *Service) RequestBatch(ctx context.Context, in RequestBatchInput) (core.CredsBatch, error) {
	if s == nil {
		return core.CredsBatch{}, fmt.Errorf("credentials: service is nil")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return core.CredsBatch{}, fmt.Errorf("credentials: order id is required")
	}
	if strings.TrimSpace(in.IssuerID) == "" {
		return core.CredsBatch{}, fmt.Errorf("credentials: issuer id is required")
	}
	if in.Count <= 0 {
		return core.CredsBatch{}, fmt.Errorf("credentials: count must be positive")
	}
	if in.TokenValue <= 0 {
		return core.CredsBatch{}, fmt.Errorf("credentials: token value must be positive")
	}

	creds, blinded, err := s.signer.GenerateCreds(in.Count)
	if err != nil {
		return core.CredsBatch{}, fmt.Errorf("credentials: generate creds: %w", err)
	}
	if len(creds) != in.Count || len(blinded) != in.Count {
		return core.CredsBatch{}, fmt.Errorf("credentials: signer returned %d/%d creds for count %d", len(creds), len(blinded), in.Count)
	}

	batch, err := s.batches.Create(ctx, core.CredsBatch{
		ID:           uuid.NewString(),
		OrderID:      strings.TrimSpace(in.OrderID),
		IssuerID:     strings.TrimSpace(in.IssuerID),
		Creds:        creds,
		BlindedCreds: blinded,
		TokenValue:   in.TokenValue,
		ExpiresAt:    in.ExpiresAt,
		Status:       core.CredsBatchStatusBlinded,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return core.CredsBatch{}, err
	}

	post, err := payment.NewPostCredentials(s.env, batch.OrderID, batch.ID, blinded)
	if err != nil {
		return core.CredsBatch{}, err
	}
	if _, err := endpoints.Send[struct{}](ctx, s.client, post); err != nil {
		return core.CredsBatch{}, err
	}
	return batch, nil
}

// Poll checks one blinded batch for its signature. The returned signal is
// none together with a nil error once the batch is finished; retry
// signals ask the scheduler to come back.
func (s *Service) Poll(ctx context.Context, batchID string) (core.RetrySignal, error) {
	if s == nil {
		return core.RetrySignalNone, fmt.Errorf("credentials: service is nil")
	}
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return core.RetrySignalNone, err
	}
	if batch.Status != core.CredsBatchStatusBlinded {
		return core.RetrySignalNone, nil
	}

	get, err := payment.NewGetSignedCreds(s.env, batch.OrderID, batch.ID)
	if err != nil {
		return core.RetrySignalNone, err
	}
	signed, err := endpoints.Send[payment.SignedCreds](ctx, s.client, get)
	if err != nil {
		if signal := core.RetrySignalFor(err); signal != core.RetrySignalNone {
			return signal, nil
		}
		return core.RetrySignalNone, err
	}

	if len(batch.Creds) == 0 {
		return core.RetrySignalNone, fmt.Errorf("credentials: no local creds for batch %s", batch.ID)
	}
	unblinded, err := s.signer.UnblindCreds(batch.Creds, signed.SignedCreds, signed.BatchProof, signed.PublicKey)
	if err != nil {
		return core.RetrySignalNone, fmt.Errorf("credentials: unblind batch %s: %w", batch.ID, err)
	}

	if err := s.batches.MarkSigned(ctx, batch.ID, signed.SignedCreds, signed.BatchProof, signed.PublicKey); err != nil {
		return core.RetrySignalNone, err
	}

	tokens := make([]core.UnblindedToken, 0, len(unblinded))
	createdAt := s.now()
	for _, value := range unblinded {
		tokens = append(tokens, core.UnblindedToken{
			ID:         uuid.NewString(),
			BatchID:    batch.ID,
			TokenValue: value,
			PublicKey:  signed.PublicKey,
			Value:      batch.TokenValue,
			ExpiresAt:  batch.ExpiresAt,
			CreatedAt:  createdAt,
		})
	}
	if err := s.tokens.Save(ctx, core.SaveTokensInput{BatchID: batch.ID, Tokens: tokens}); err != nil {
		return core.RetrySignalNone, err
	}
	if err := s.batches.MarkFinished(ctx, batch.ID); err != nil {
		return core.RetrySignalNone, err
	}

	s.logger.Info("credential batch finished", "batch_id", batch.ID, "tokens", len(tokens))
	return core.RetrySignalNone, nil
}

// Redeem spends tokens covering amount against the suggestions route.
// The token store reserves the set before the network call; a failed
// round trip releases the reservation, a successful one finalizes it.
func (s *Service) Redeem(ctx context.Context, contributionID string, amount float64, suggestion string) error {
	if s == nil {
		return fmt.Errorf("credentials: service is nil")
	}
	if strings.TrimSpace(contributionID) == "" {
		return fmt.Errorf("credentials: contribution id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("credentials: amount must be positive")
	}

	reserved, err := s.tokens.ReserveForRedemption(ctx, contributionID, amount, s.now())
	if err != nil {
		return err
	}

	creds := make([]payment.SuggestionCredential, 0, len(reserved))
	for _, token := range reserved {
		creds = append(creds, payment.SuggestionCredential{
			TokenPreimage: token.TokenValue,
			Signature:     token.TokenValue,
			PublicKey:     token.PublicKey,
		})
	}
	post, err := payment.NewPostSuggestions(s.env, suggestion, creds)
	if err != nil {
		s.release(ctx, contributionID)
		return err
	}
	if _, err := endpoints.Send[struct{}](ctx, s.client, post); err != nil {
		s.release(ctx, contributionID)
		return err
	}
	return s.tokens.FinalizeRedemption(ctx, contributionID)
}

func (s *Service) release(ctx context.Context, contributionID string) {
	if err := s.tokens.ReleaseReservation(ctx, contributionID); err != nil {
		s.logger.Error("failed to release token reservation", "contribution_id", contributionID, "error", err)
	}
}
