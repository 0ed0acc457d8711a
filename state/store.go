// Package state persists the ExternalWallet record as an encrypted,
// versioned blob in the host's string key/value state. CompareAndSet is
// the sole mutation gate for every wallet status transition.
package state

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-rewards/core"
)

const (
	walletKeyPrefix     = "wallets."
	walletRecordVersion = 1
)

type Store struct {
	kv      core.StringStateStore
	secrets core.SecretProvider
	logger  core.Logger

	// Serializes read-modify-write cycles; the host event loop is
	// cooperative but callbacks may land on different goroutines.
	mu sync.Mutex
}

type Dependencies struct {
	KV      core.StringStateStore
	Secrets core.SecretProvider
	Logger  core.Logger
}

func New(deps Dependencies) (*Store, error) {
	if deps.KV == nil {
		return nil, fmt.Errorf("state: string state store is required")
	}
	if deps.Secrets == nil {
		return nil, fmt.Errorf("state: secret provider is required")
	}
	return &Store{
		kv:      deps.KV,
		secrets: deps.Secrets,
		logger:  glog.Ensure(deps.Logger),
	}, nil
}

type walletRecord struct {
	Version       int                `json:"version"`
	Provider      string             `json:"provider"`
	Status        string             `json:"status"`
	Token         string             `json:"token,omitempty"`
	Address       string             `json:"address,omitempty"`
	UserName      string             `json:"user_name,omitempty"`
	MemberID      string             `json:"member_id,omitempty"`
	OneTimeString string             `json:"one_time_string,omitempty"`
	Fees          map[string]float64 `json:"fees,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (s *Store) Get(ctx context.Context, provider string) (core.ExternalWallet, error) {
	if s == nil {
		return core.ExternalWallet{}, fmt.Errorf("state: store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return core.ExternalWallet{}, fmt.Errorf("state: provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(ctx, provider)
}

// Create mints a NOT_CONNECTED wallet with a fresh one-time string. It
// refuses to overwrite an existing record.
func (s *Store) Create(ctx context.Context, provider string) (core.ExternalWallet, error) {
	if s == nil {
		return core.ExternalWallet{}, fmt.Errorf("state: store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return core.ExternalWallet{}, fmt.Errorf("state: provider is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getLocked(ctx, provider); err == nil {
		return core.ExternalWallet{}, fmt.Errorf("state: wallet already exists for provider %q", provider)
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
		Fees:          map[string]float64{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.putLocked(ctx, provider, wallet); err != nil {
		return core.ExternalWallet{}, err
	}
	return wallet, nil
}

// CompareAndSet applies wallet only when the persisted status still equals
// expected. Callbacks resolving against a stale snapshot no-op with
// applied=false instead of clobbering state.
func (s *Store) CompareAndSet(ctx context.Context, provider string, expected core.WalletStatus, wallet core.ExternalWallet) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("state: store is not configured")
	}
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return false, fmt.Errorf("state: provider is required")
	}
	wallet.Provider = provider
	if err := wallet.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getLocked(ctx, provider)
	if err != nil {
		return false, err
	}
	if current.Status != expected {
		s.logger.Debug("wallet compare-and-set rejected",
			"provider_id", provider,
			"expected_status", string(expected),
			"current_status", string(current.Status),
		)
		return false, nil
	}
	if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = current.CreatedAt
	}
	if wallet.UpdatedAt.IsZero() {
		wallet.UpdatedAt = time.Now().UTC()
	}
	if err := s.putLocked(ctx, provider, wallet); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) getLocked(ctx context.Context, provider string) (core.ExternalWallet, error) {
	encoded, err := s.kv.GetString(ctx, walletKeyPrefix+provider)
	if err != nil {
		return core.ExternalWallet{}, fmt.Errorf("state: read wallet state: %w", err)
	}
	if strings.TrimSpace(encoded) == "" {
		return core.ExternalWallet{}, fmt.Errorf("%w: provider %q", core.ErrWalletNotFound, provider)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return core.ExternalWallet{}, fmt.Errorf("%w: decode wallet blob: %v", core.ErrInvalidWalletRecord, err)
	}
	plaintext, err := s.secrets.Decrypt(ctx, ciphertext)
	if err != nil {
		return core.ExternalWallet{}, fmt.Errorf("%w: decrypt wallet blob: %v", core.ErrInvalidWalletRecord, err)
	}

	var record walletRecord
	if err := json.Unmarshal(plaintext, &record); err != nil {
		return core.ExternalWallet{}, fmt.Errorf("%w: decode wallet record: %v", core.ErrInvalidWalletRecord, err)
	}
	if record.Version != walletRecordVersion {
		return core.ExternalWallet{}, fmt.Errorf("%w: unsupported record version %d", core.ErrInvalidWalletRecord, record.Version)
	}

	wallet := core.ExternalWallet{
		Provider:      provider,
		Status:        core.WalletStatus(record.Status),
		Token:         record.Token,
		Address:       record.Address,
		UserName:      record.UserName,
		MemberID:      record.MemberID,
		OneTimeString: record.OneTimeString,
		Fees:          record.Fees,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
	if wallet.Fees == nil {
		wallet.Fees = map[string]float64{}
	}
	if err := wallet.Validate(); err != nil {
		return core.ExternalWallet{}, err
	}
	return wallet, nil
}

func (s *Store) putLocked(ctx context.Context, provider string, wallet core.ExternalWallet) error {
	record := walletRecord{
		Version:       walletRecordVersion,
		Provider:      provider,
		Status:        string(wallet.Status),
		Token:         wallet.Token,
		Address:       wallet.Address,
		UserName:      wallet.UserName,
		MemberID:      wallet.MemberID,
		OneTimeString: wallet.OneTimeString,
		Fees:          wallet.Fees,
		CreatedAt:     wallet.CreatedAt,
		UpdatedAt:     wallet.UpdatedAt,
	}
	plaintext, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode wallet record: %w", err)
	}
	ciphertext, err := s.secrets.Encrypt(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("state: encrypt wallet record: %w", err)
	}
	if err := s.kv.SetString(ctx, walletKeyPrefix+provider, base64.StdEncoding.EncodeToString(ciphertext)); err != nil {
		return fmt.Errorf("state: write wallet state: %w", err)
	}
	return nil
}

var _ core.WalletStore = (*Store)(nil)
