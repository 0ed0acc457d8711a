package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var (
	ErrProviderNotFound  = errors.New("core: provider not found")
	ErrOperationInFlight = errors.New("core: wallet operation already in flight")
)

// connectableStatuses gates ConnectExternalWallet. Authorize from VERIFIED
// is rejected outright without touching token or address.
var connectableStatuses = map[WalletStatus]struct{}{
	WalletStatusNotConnected:            {},
	WalletStatusPending:                 {},
	WalletStatusDisconnectedNotVerified: {},
	WalletStatusDisconnectedVerified:    {},
}

// errorDescriptionRules classify the untrusted error_description query
// parameter before any network call. Ordered, first match wins.
var errorDescriptionRules = []struct {
	Substring string
	Err       error
}{
	{"User does not meet minimum requirements", ErrKYCRequired},
	{"not available for user geolocation", ErrRegionNotSupported},
}

type Service struct {
	config   Config
	logger   Logger
	metrics  MetricsRecorder
	wallets  WalletStore
	registry Registry
	members  MemberVerifier

	mu       sync.Mutex
	inflight map[string]struct{}
}

type ServiceDependencies struct {
	Logger         Logger
	LoggerProvider LoggerProvider
	Metrics        MetricsRecorder
	Wallets        WalletStore
	Registry       Registry
	// Members re-checks the custodian member on re-link; nil skips the
	// check and only the authorize result's member id is compared.
	Members MemberVerifier
}

func NewService(cfg Config, deps ServiceDependencies) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Wallets == nil {
		return nil, fmt.Errorf("core: wallet store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("core: provider registry is required")
	}

	_, logger := glog.Resolve(cfg.ServiceName, deps.LoggerProvider, deps.Logger)
	logger = glog.Ensure(logger)

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NopMetricsRecorder{}
	}

	return &Service{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		wallets:  deps.Wallets,
		registry: deps.Registry,
		members:  deps.Members,
		inflight: map[string]struct{}{},
	}, nil
}

func (s *Service) Environment() Environment {
	if s == nil {
		return EnvironmentProduction
	}
	return s.config.ResolvedEnvironment()
}

// ConnectExternalWallet drives one OAuth callback through authorize, claim
// and the status transition. The one-time string is consumed on every
// attempt, pass or fail, so a replayed callback always misses the nonce.
func (s *Service) ConnectExternalWallet(ctx context.Context, providerID string, query map[string]string) (ExternalWallet, error) {
	startedAt := time.Now().UTC()
	providerID = strings.TrimSpace(strings.ToLower(providerID))

	wallet, err := s.connectExternalWallet(ctx, providerID, query)
	s.observeOperation(ctx, startedAt, "connect_external_wallet", err, map[string]any{
		"provider_id": providerID,
	})
	if err != nil {
		return ExternalWallet{}, MapConnectError(err)
	}
	return wallet, nil
}

func (s *Service) connectExternalWallet(ctx context.Context, providerID string, query map[string]string) (ExternalWallet, error) {
	if s == nil {
		return ExternalWallet{}, fmt.Errorf("core: service is nil")
	}
	if providerID == "" {
		return ExternalWallet{}, fmt.Errorf("core: provider id is required")
	}
	release, err := s.acquire(providerID)
	if err != nil {
		return ExternalWallet{}, err
	}
	defer release()

	wallet, err := s.walletForConnect(ctx, providerID)
	if err != nil {
		return ExternalWallet{}, err
	}
	if _, ok := connectableStatuses[wallet.Status]; !ok {
		return ExternalWallet{}, fmt.Errorf(
			"%w: authorize attempted in status %q", ErrWalletStatusConflict, string(wallet.Status),
		)
	}

	redirect := OAuthRedirect{
		Code:             strings.TrimSpace(query["code"]),
		State:            strings.TrimSpace(query["state"]),
		ErrorDescription: strings.TrimSpace(query["error_description"]),
	}

	// The provider reported a failure on its own redirect; classify and
	// abort before any network call.
	if redirect.ErrorDescription != "" {
		if _, rotateErr := s.rotateOneTimeString(ctx, wallet); rotateErr != nil {
			return ExternalWallet{}, rotateErr
		}
		return ExternalWallet{}, classifyErrorDescription(redirect.ErrorDescription)
	}

	// CSRF guard: consume the nonce first so it is single-use, then verify
	// the state parameter against the copy we just consumed.
	storedNonce := wallet.OneTimeString
	wallet, err = s.rotateOneTimeString(ctx, wallet)
	if err != nil {
		return ExternalWallet{}, err
	}
	if redirect.Code == "" || redirect.State == "" {
		return ExternalWallet{}, goerrors.New(
			"oauth callback missing code or state", goerrors.CategoryAuth,
		).WithTextCode(RewardsErrorUnexpected)
	}
	if !OneTimeStringMatches(storedNonce, redirect.State) {
		return ExternalWallet{}, goerrors.New(
			"oauth callback state does not match one-time string", goerrors.CategoryAuth,
		).WithTextCode(RewardsErrorUnexpected)
	}

	provider, ok := s.registry.Get(providerID)
	if !ok {
		return ExternalWallet{}, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}

	result, authErr := provider.Authorize(ctx, wallet, redirect)
	if authErr != nil {
		// A token that was issued before the failure keeps the wallet
		// PENDING; a token-less failure leaves the stored status alone.
		if strings.TrimSpace(result.Token) != "" && wallet.Status != WalletStatusPending {
			pending := wallet
			pending.Token = result.Token
			if transitionErr := pending.TransitionTo(WalletStatusPending, time.Now().UTC()); transitionErr == nil {
				if _, casErr := s.wallets.CompareAndSet(ctx, providerID, wallet.Status, pending); casErr != nil {
					s.logError(ctx, "persist pending wallet failed", map[string]any{
						"provider_id": providerID, "error": casErr.Error(),
					})
				}
			}
		}
		return ExternalWallet{}, authErr
	}

	if err := s.verifyRelinkedMember(ctx, wallet, result); err != nil {
		return ExternalWallet{}, err
	}

	return s.persistVerifiedWallet(ctx, providerID, wallet, result)
}

// verifyRelinkedMember guards re-link: the account behind the fresh token
// must be the member the wallet was linked to. The stored member id is
// compared against the authorize result, then the configured verifier
// re-checks against the custodian's own user info.
func (s *Service) verifyRelinkedMember(ctx context.Context, wallet ExternalWallet, result AuthorizeResult) error {
	linked := strings.TrimSpace(wallet.MemberID)
	reported := strings.TrimSpace(result.MemberID)
	if linked != "" && reported != "" && !strings.EqualFold(linked, reported) {
		return fmt.Errorf("%w: wallet linked to member %q, authorize returned %q",
			ErrMismatchedProviderAccounts, linked, reported)
	}
	if s.members == nil {
		return nil
	}
	check := wallet
	check.Token = result.Token
	if strings.TrimSpace(check.MemberID) == "" {
		check.MemberID = result.MemberID
	}
	return s.members.VerifyMember(ctx, check)
}

// persistVerifiedWallet commits the PENDING hop and the VERIFIED record.
// Persistence failure surfaces as an error, never a silent partial success.
func (s *Service) persistVerifiedWallet(ctx context.Context, providerID string, wallet ExternalWallet, result AuthorizeResult) (ExternalWallet, error) {
	now := time.Now().UTC()

	if wallet.Status == WalletStatusNotConnected || wallet.Status == WalletStatusDisconnectedNotVerified {
		pending := wallet
		pending.Token = result.Token
		if err := pending.TransitionTo(WalletStatusPending, now); err != nil {
			return ExternalWallet{}, err
		}
		applied, err := s.wallets.CompareAndSet(ctx, providerID, wallet.Status, pending)
		if err != nil {
			return ExternalWallet{}, err
		}
		if !applied {
			return ExternalWallet{}, fmt.Errorf("%w: wallet changed during authorize", ErrWalletStatusConflict)
		}
		wallet = pending
	}

	verified := wallet
	verified.Token = result.Token
	verified.UserName = result.UserName
	verified.MemberID = result.MemberID
	if err := verified.TransitionTo(WalletStatusVerified, now); err != nil {
		return ExternalWallet{}, err
	}
	verified.Address = result.Address
	if err := verified.Validate(); err != nil {
		return ExternalWallet{}, err
	}

	applied, err := s.wallets.CompareAndSet(ctx, providerID, wallet.Status, verified)
	if err != nil {
		return ExternalWallet{}, err
	}
	if !applied {
		return ExternalWallet{}, fmt.Errorf("%w: wallet changed during claim", ErrWalletStatusConflict)
	}
	return verified, nil
}

// DisconnectWallet tears the link down. A wallet that was ever linked
// server-side lands in DISCONNECTED_VERIFIED and can re-link; a pre-KYC
// wallet lands in DISCONNECTED_NOT_VERIFIED.
func (s *Service) DisconnectWallet(ctx context.Context, providerID string, reason string) error {
	startedAt := time.Now().UTC()
	providerID = strings.TrimSpace(strings.ToLower(providerID))

	err := s.disconnectWallet(ctx, providerID, reason)
	s.observeOperation(ctx, startedAt, "disconnect_wallet", err, map[string]any{
		"provider_id": providerID,
	})
	if err != nil {
		return MapConnectError(err)
	}
	return nil
}

func (s *Service) disconnectWallet(ctx context.Context, providerID string, reason string) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	release, err := s.acquire(providerID)
	if err != nil {
		return err
	}
	defer release()

	wallet, err := s.wallets.Get(ctx, providerID)
	if err != nil {
		return err
	}
	if wallet.Status == WalletStatusNotConnected {
		return nil
	}

	provider, ok := s.registry.Get(providerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	if err := provider.DisconnectWallet(ctx, wallet, reason); err != nil {
		return err
	}

	next := wallet
	now := time.Now().UTC()
	switch {
	case wallet.Status == WalletStatusVerified && strings.TrimSpace(wallet.Address) != "":
		if err := next.TransitionTo(WalletStatusDisconnectedVerified, now); err != nil {
			return err
		}
	case wallet.Status == WalletStatusVerified || wallet.Status == WalletStatusDisconnectedVerified:
		next.Address = ""
		next.Token = ""
		if err := next.TransitionTo(WalletStatusNotConnected, now); err != nil {
			return err
		}
	default:
		next.Address = ""
		if err := next.TransitionTo(WalletStatusDisconnectedNotVerified, now); err != nil {
			return err
		}
	}

	applied, err := s.wallets.CompareAndSet(ctx, providerID, wallet.Status, next)
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("%w: wallet changed during disconnect", ErrWalletStatusConflict)
	}
	return nil
}

// FetchBalance requires a VERIFIED wallet; it never mutates state.
func (s *Service) FetchBalance(ctx context.Context, providerID string) (float64, error) {
	if s == nil {
		return 0, fmt.Errorf("core: service is nil")
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	startedAt := time.Now().UTC()

	balance, err := s.fetchBalance(ctx, providerID)
	s.observeOperation(ctx, startedAt, "fetch_balance", err, map[string]any{
		"provider_id": providerID,
	})
	if err != nil {
		return 0, MapConnectError(err)
	}
	return balance, nil
}

func (s *Service) fetchBalance(ctx context.Context, providerID string) (float64, error) {
	wallet, err := s.wallets.Get(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if wallet.Status != WalletStatusVerified {
		return 0, fmt.Errorf("%w: balance requires verified wallet, have %q",
			ErrWalletStatusConflict, string(wallet.Status))
	}
	provider, ok := s.registry.Get(providerID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	return provider.FetchBalance(ctx, wallet)
}

// GetExternalWallet creates the record lazily with a fresh one-time string
// so the first authorize attempt has a nonce to bind to.
func (s *Service) GetExternalWallet(ctx context.Context, providerID string) (ExternalWallet, error) {
	if s == nil {
		return ExternalWallet{}, fmt.Errorf("core: service is nil")
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	wallet, err := s.wallets.Get(ctx, providerID)
	if errors.Is(err, ErrWalletNotFound) {
		return s.wallets.Create(ctx, providerID)
	}
	return wallet, err
}

// BeginAuthorization rotates the nonce and hands back the wallet whose
// one_time_string the caller should embed in the provider authorize URL.
func (s *Service) BeginAuthorization(ctx context.Context, providerID string) (ExternalWallet, error) {
	if s == nil {
		return ExternalWallet{}, fmt.Errorf("core: service is nil")
	}
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	wallet, err := s.GetExternalWallet(ctx, providerID)
	if err != nil {
		return ExternalWallet{}, err
	}
	if wallet.Status == WalletStatusVerified {
		return ExternalWallet{}, MapConnectError(fmt.Errorf(
			"%w: authorize attempted in status %q", ErrWalletStatusConflict, string(wallet.Status),
		))
	}
	return s.rotateOneTimeString(ctx, wallet)
}

func (s *Service) walletForConnect(ctx context.Context, providerID string) (ExternalWallet, error) {
	wallet, err := s.wallets.Get(ctx, providerID)
	if errors.Is(err, ErrWalletNotFound) {
		return s.wallets.Create(ctx, providerID)
	}
	return wallet, err
}

func (s *Service) rotateOneTimeString(ctx context.Context, wallet ExternalWallet) (ExternalWallet, error) {
	nonce, err := GenerateOneTimeString()
	if err != nil {
		return ExternalWallet{}, err
	}
	rotated := wallet
	rotated.OneTimeString = nonce
	rotated.UpdatedAt = time.Now().UTC()
	applied, err := s.wallets.CompareAndSet(ctx, wallet.Provider, wallet.Status, rotated)
	if err != nil {
		return ExternalWallet{}, err
	}
	if !applied {
		return ExternalWallet{}, fmt.Errorf("%w: wallet changed during nonce rotation", ErrWalletStatusConflict)
	}
	return rotated, nil
}

func classifyErrorDescription(description string) error {
	for _, rule := range errorDescriptionRules {
		if strings.Contains(description, rule.Substring) {
			return rule.Err
		}
	}
	return goerrors.New(
		"provider reported an authorization error", goerrors.CategoryAuth,
	).WithTextCode(RewardsErrorUnexpected)
}

// acquire enforces one outstanding state-mutating request per provider.
func (s *Service) acquire(providerID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[providerID]; busy {
		return nil, fmt.Errorf("%w: %s", ErrOperationInFlight, providerID)
	}
	s.inflight[providerID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, providerID)
		s.mu.Unlock()
	}, nil
}
