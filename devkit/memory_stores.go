package devkit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-rewards/core"
)

// MemoryCredsBatchStore is a map-backed core.CredsBatchStore.
type MemoryCredsBatchStore struct {
	mu      sync.Mutex
	batches map[string]core.CredsBatch
}

func NewMemoryCredsBatchStore() *MemoryCredsBatchStore {
	return &MemoryCredsBatchStore{batches: map[string]core.CredsBatch{}}
}

func (s *MemoryCredsBatchStore) Create(_ context.Context, batch core.CredsBatch) (core.CredsBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[batch.ID]; exists {
		return core.CredsBatch{}, fmt.Errorf("devkit: batch %s already exists", batch.ID)
	}
	s.batches[batch.ID] = batch
	return batch, nil
}

func (s *MemoryCredsBatchStore) Get(_ context.Context, id string) (core.CredsBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return core.CredsBatch{}, fmt.Errorf("devkit: batch %s not found", id)
	}
	return batch, nil
}

func (s *MemoryCredsBatchStore) ListByStatus(_ context.Context, status core.CredsBatchStatus) ([]core.CredsBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.CredsBatch{}
	for _, batch := range s.batches {
		if batch.Status == status {
			out = append(out, batch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryCredsBatchStore) MarkSigned(_ context.Context, id string, signedCreds []string, batchProof, publicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("devkit: batch %s not found", id)
	}
	batch.SignedCreds = append([]string(nil), signedCreds...)
	batch.BatchProof = batchProof
	batch.PublicKey = publicKey
	batch.Status = core.CredsBatchStatusSigned
	s.batches[id] = batch
	return nil
}

func (s *MemoryCredsBatchStore) MarkFinished(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.batches[id]
	if !ok {
		return fmt.Errorf("devkit: batch %s not found", id)
	}
	batch.Status = core.CredsBatchStatusFinished
	s.batches[id] = batch
	return nil
}

var _ core.CredsBatchStore = (*MemoryCredsBatchStore)(nil)

// MemoryTokenStore is a map-backed core.TokenStore with the same
// reservation semantics as the SQL store: one transaction sweeps expired
// tokens, checks sufficiency, and reserves the selected set.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]core.UnblindedToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: map[string]core.UnblindedToken{}}
}

func (s *MemoryTokenStore) Save(_ context.Context, in core.SaveTokensInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, token := range in.Tokens {
		if _, exists := s.tokens[token.ID]; exists {
			return fmt.Errorf("devkit: token %s already exists", token.ID)
		}
	}
	for _, token := range in.Tokens {
		s.tokens[token.ID] = token
	}
	return nil
}

func (s *MemoryTokenStore) ListLive(_ context.Context, now time.Time) ([]core.UnblindedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.UnblindedToken{}
	for _, token := range s.tokens {
		if token.Expired(now) || token.ReservedBy != "" {
			continue
		}
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryTokenStore) ReserveForRedemption(_ context.Context, contributionID string, amount float64, now time.Time) ([]core.UnblindedToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, token := range s.tokens {
		if token.Expired(now) {
			delete(s.tokens, id)
		}
	}

	live := []core.UnblindedToken{}
	for _, token := range s.tokens {
		if token.ReservedBy == "" {
			live = append(live, token)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].ID < live[j].ID })

	total := 0.0
	selected := []core.UnblindedToken{}
	for _, token := range live {
		if total >= amount {
			break
		}
		total += token.Value
		selected = append(selected, token)
	}
	if total < amount {
		return nil, fmt.Errorf("devkit: have %v of %v: %w", total, amount, core.ErrNotEnoughFunds)
	}

	for i, token := range selected {
		token.ReservedBy = contributionID
		s.tokens[token.ID] = token
		selected[i] = token
	}
	return selected, nil
}

func (s *MemoryTokenStore) ReleaseReservation(_ context.Context, contributionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, token := range s.tokens {
		if token.ReservedBy == contributionID {
			token.ReservedBy = ""
			s.tokens[id] = token
		}
	}
	return nil
}

func (s *MemoryTokenStore) FinalizeRedemption(_ context.Context, contributionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, token := range s.tokens {
		if token.ReservedBy == contributionID {
			delete(s.tokens, id)
		}
	}
	return nil
}

// Count reports how many tokens remain, reserved or not.
func (s *MemoryTokenStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

var _ core.TokenStore = (*MemoryTokenStore)(nil)

// MemoryTransactionStore is a map-backed core.TransactionStore that
// refuses duplicate ids and duplicate contribution links.
type MemoryTransactionStore struct {
	mu           sync.Mutex
	transactions map[string]core.ExternalTransaction
}

func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{transactions: map[string]core.ExternalTransaction{}}
}

func (s *MemoryTransactionStore) Insert(_ context.Context, tx core.ExternalTransaction) (core.ExternalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.TransactionID]; exists {
		return core.ExternalTransaction{}, fmt.Errorf("devkit: transaction %s: %w", tx.TransactionID, core.ErrDuplicateTransaction)
	}
	for _, existing := range s.transactions {
		if existing.ContributionID == tx.ContributionID {
			return core.ExternalTransaction{}, fmt.Errorf("devkit: contribution %s: %w", tx.ContributionID, core.ErrDuplicateTransaction)
		}
	}
	s.transactions[tx.TransactionID] = tx
	return tx, nil
}

func (s *MemoryTransactionStore) Get(_ context.Context, transactionID string) (core.ExternalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return core.ExternalTransaction{}, fmt.Errorf("devkit: transaction %s not found", transactionID)
	}
	return tx, nil
}

func (s *MemoryTransactionStore) GetByContribution(_ context.Context, contributionID string) (core.ExternalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ContributionID == contributionID {
			return tx, nil
		}
	}
	return core.ExternalTransaction{}, fmt.Errorf("devkit: contribution %s has no transaction", contributionID)
}

func (s *MemoryTransactionStore) ListByStatus(_ context.Context, status core.TransactionStatus) ([]core.ExternalTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ExternalTransaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		if tx.Status == status {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

func (s *MemoryTransactionStore) MarkSubmitted(_ context.Context, transactionID string, providerTxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("devkit: transaction %s not found", transactionID)
	}
	tx.ProviderTxID = providerTxID
	tx.Status = core.TransactionStatusSubmitted
	s.transactions[transactionID] = tx
	return nil
}

func (s *MemoryTransactionStore) UpdateStatus(_ context.Context, transactionID string, status core.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return fmt.Errorf("devkit: transaction %s not found", transactionID)
	}
	tx.Status = status
	s.transactions[transactionID] = tx
	return nil
}

var _ core.TransactionStore = (*MemoryTransactionStore)(nil)
