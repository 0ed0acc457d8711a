// Package contribution settles contributions through a linked custodian:
// record the transaction, submit it to the provider, then poll its status
// until it lands or fails.
package contribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-rewards/core"
)

var ErrProviderCannotSettle = errors.New("contribution: provider does not support transactions")

type Service struct {
	logger       core.Logger
	wallets      core.WalletStore
	registry     core.Registry
	transactions core.TransactionStore
	now          func() time.Time
}

type Dependencies struct {
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Wallets        core.WalletStore
	Registry       core.Registry
	Transactions   core.TransactionStore
	Now            func() time.Time
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Wallets == nil {
		return nil, fmt.Errorf("contribution: wallet store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("contribution: provider registry is required")
	}
	if deps.Transactions == nil {
		return nil, fmt.Errorf("contribution: transaction store is required")
	}

	_, logger := glog.Resolve("rewards.contribution", deps.LoggerProvider, deps.Logger)
	logger = glog.Ensure(logger)

	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		logger:       logger,
		wallets:      deps.Wallets,
		registry:     deps.Registry,
		transactions: deps.Transactions,
		now:          now,
	}, nil
}

type SettleInput struct {
	ContributionID string
	ProviderID     string
	Destination    string
	Amount         float64
}

// Settle submits one contribution through the linked wallet. The wallet
// must be VERIFIED; a contribution that already has a transaction returns
// that record instead of submitting twice.
func (s *Service) Settle(ctx context.Context, in SettleInput) (core.ExternalTransaction, error) {
	if s == nil {
		return core.ExternalTransaction{}, fmt.Errorf("contribution: service is nil")
	}
	providerID := strings.TrimSpace(strings.ToLower(in.ProviderID))
	if strings.TrimSpace(in.ContributionID) == "" {
		return core.ExternalTransaction{}, fmt.Errorf("contribution: contribution id is required")
	}
	if providerID == "" {
		return core.ExternalTransaction{}, fmt.Errorf("contribution: provider id is required")
	}
	if strings.TrimSpace(in.Destination) == "" {
		return core.ExternalTransaction{}, fmt.Errorf("contribution: destination is required")
	}
	if in.Amount <= 0 {
		return core.ExternalTransaction{}, fmt.Errorf("contribution: amount must be positive")
	}

	if existing, err := s.transactions.GetByContribution(ctx, in.ContributionID); err == nil {
		return existing, nil
	}

	wallet, err := s.wallets.Get(ctx, providerID)
	if err != nil {
		return core.ExternalTransaction{}, err
	}
	if wallet.Status != core.WalletStatusVerified {
		return core.ExternalTransaction{}, fmt.Errorf(
			"%w: cannot settle through wallet in status %q", core.ErrWalletStatusConflict, wallet.Status)
	}

	settler, err := s.settler(providerID)
	if err != nil {
		return core.ExternalTransaction{}, err
	}

	createdAt := s.now()
	tx, err := s.transactions.Insert(ctx, core.ExternalTransaction{
		TransactionID:  uuid.NewString(),
		ContributionID: strings.TrimSpace(in.ContributionID),
		Provider:       providerID,
		Destination:    strings.TrimSpace(in.Destination),
		Amount:         in.Amount,
		Status:         core.TransactionStatusCreated,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	})
	if err != nil {
		return core.ExternalTransaction{}, err
	}

	providerTxID, err := settler.SubmitTransaction(ctx, wallet, tx)
	if err != nil {
		if statusErr := s.transactions.UpdateStatus(ctx, tx.TransactionID, core.TransactionStatusFailed); statusErr != nil {
			s.logger.Error("failed to mark transaction failed", "transaction_id", tx.TransactionID, "error", statusErr)
		}
		return core.ExternalTransaction{}, err
	}
	if err := s.transactions.MarkSubmitted(ctx, tx.TransactionID, providerTxID); err != nil {
		return core.ExternalTransaction{}, err
	}
	tx.ProviderTxID = providerTxID
	tx.Status = core.TransactionStatusSubmitted

	s.logger.Info("contribution submitted",
		"contribution_id", tx.ContributionID, "provider_id", providerID, "provider_tx_id", providerTxID)
	return tx, nil
}

// PollStatus checks a submitted transaction against the provider.
// Settled and failed are terminal; an in-flight transaction returns a
// retry signal for the scheduler.
func (s *Service) PollStatus(ctx context.Context, transactionID string) (core.RetrySignal, error) {
	if s == nil {
		return core.RetrySignalNone, fmt.Errorf("contribution: service is nil")
	}
	tx, err := s.transactions.Get(ctx, transactionID)
	if err != nil {
		return core.RetrySignalNone, err
	}
	if tx.Status == core.TransactionStatusCompleted || tx.Status == core.TransactionStatusFailed {
		return core.RetrySignalNone, nil
	}
	if tx.Status != core.TransactionStatusSubmitted {
		return core.RetrySignalNone, fmt.Errorf("contribution: transaction %s was never submitted", transactionID)
	}

	wallet, err := s.wallets.Get(ctx, tx.Provider)
	if err != nil {
		return core.RetrySignalNone, err
	}
	settler, err := s.settler(tx.Provider)
	if err != nil {
		return core.RetrySignalNone, err
	}

	settled, err := settler.TransactionStatus(ctx, wallet, tx.ProviderTxID)
	if err != nil {
		if signal := core.RetrySignalFor(err); signal != core.RetrySignalNone {
			return signal, nil
		}
		return core.RetrySignalNone, err
	}

	status := core.TransactionStatusFailed
	if settled {
		status = core.TransactionStatusCompleted
	}
	if err := s.transactions.UpdateStatus(ctx, tx.TransactionID, status); err != nil {
		return core.RetrySignalNone, err
	}
	s.logger.Info("contribution settled", "transaction_id", tx.TransactionID, "status", string(status))
	return core.RetrySignalNone, nil
}

func (s *Service) settler(providerID string) (core.TransactionProvider, error) {
	provider, ok := s.registry.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("contribution: provider %q is not registered", providerID)
	}
	settler, ok := provider.(core.TransactionProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderCannotSettle, providerID)
	}
	return settler, nil
}
