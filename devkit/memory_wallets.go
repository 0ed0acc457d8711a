package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-rewards/core"
)

// MemoryWalletStore is a map-backed core.WalletStore with the same
// CompareAndSet contract as the encrypted store: a write only lands when
// the persisted status still matches expected.
type MemoryWalletStore struct {
	mu      sync.Mutex
	wallets map[string]core.ExternalWallet
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{wallets: map[string]core.ExternalWallet{}}
}

func (s *MemoryWalletStore) Get(_ context.Context, provider string) (core.ExternalWallet, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	s.mu.Lock()
	defer s.mu.Unlock()
	wallet, ok := s.wallets[provider]
	if !ok {
		return core.ExternalWallet{}, fmt.Errorf("devkit: %s: %w", provider, core.ErrWalletNotFound)
	}
	return wallet, nil
}

func (s *MemoryWalletStore) Create(_ context.Context, provider string) (core.ExternalWallet, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return core.ExternalWallet{}, fmt.Errorf("devkit: provider is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[provider]; exists {
		return core.ExternalWallet{}, fmt.Errorf("devkit: wallet %s already exists", provider)
	}
	nonce, err := core.GenerateOneTimeString()
	if err != nil {
		return core.ExternalWallet{}, err
	}
	now := time.Now().UTC()
	wallet := core.ExternalWallet{
		Provider:      provider,
		Status:        core.WalletStatusNotConnected,
		OneTimeString: nonce,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.wallets[provider] = wallet
	return wallet, nil
}

func (s *MemoryWalletStore) CompareAndSet(_ context.Context, provider string, expected core.WalletStatus, wallet core.ExternalWallet) (bool, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if err := wallet.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.wallets[provider]
	if !ok {
		return false, fmt.Errorf("devkit: %s: %w", provider, core.ErrWalletNotFound)
	}
	if current.Status != expected {
		return false, nil
	}
	s.wallets[provider] = wallet
	return true, nil
}

// Seed installs a wallet bypassing the state machine, fixtures only.
func (s *MemoryWalletStore) Seed(wallet core.ExternalWallet) {
	s.mu.Lock()
	s.wallets[strings.TrimSpace(strings.ToLower(wallet.Provider))] = wallet
	s.mu.Unlock()
}

var _ core.WalletStore = (*MemoryWalletStore)(nil)
