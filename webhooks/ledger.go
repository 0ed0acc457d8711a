package webhooks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDeliveryNotFound = errors.New("webhooks: delivery not found")
	ErrClaimNotFound    = errors.New("webhooks: claim not found")
)

// MemoryDeliveryLedger keeps delivery claims in process memory. A
// delivery is claimable when it is new, when its retry window opened, or
// when a processing lease expired without completion.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*DeliveryRecord
	claims  map[string]string
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		now:     func() time.Time { return time.Now().UTC() },
		records: map[string]*DeliveryRecord{},
		claims:  map[string]string{},
	}
}

// WithClock overrides the ledger clock. Test hook.
func (l *MemoryDeliveryLedger) WithClock(now func() time.Time) *MemoryDeliveryLedger {
	if l != nil && now != nil {
		l.now = now
	}
	return l
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()
	key := ledgerKey(providerID, deliveryID)
	record, exists := l.records[key]
	if !exists {
		record = &DeliveryRecord{
			ID:         uuid.NewString(),
			ProviderID: strings.TrimSpace(strings.ToLower(providerID)),
			DeliveryID: strings.TrimSpace(deliveryID),
			Status:     DeliveryStatusPending,
			CreatedAt:  now,
		}
		l.records[key] = record
	}

	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return *record, false, nil
	case DeliveryStatusProcessing:
		// Claimable again only when the lease ran out.
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return *record, false, nil
		}
	case DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return *record, false, nil
		}
	}

	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.ClaimID = uuid.NewString()
	leaseUntil := now.Add(lease)
	record.NextAttemptAt = &leaseUntil
	record.UpdatedAt = now
	l.claims[record.ClaimID] = key
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID string, deliveryID string) (DeliveryRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[ledgerKey(providerID, deliveryID)]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.byClaim(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now().UTC()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, _ error, nextAttemptAt time.Time, maxAttempts int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, err := l.byClaim(claimID)
	if err != nil {
		return err
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = DeliveryStatusRetryReady
		next := nextAttemptAt.UTC()
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now().UTC()
	return nil
}

func (l *MemoryDeliveryLedger) byClaim(claimID string) (*DeliveryRecord, error) {
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil, ErrClaimNotFound
	}
	record, ok := l.records[key]
	if !ok || record.ClaimID != strings.TrimSpace(claimID) {
		return nil, ErrClaimNotFound
	}
	return record, nil
}

func ledgerKey(providerID, deliveryID string) string {
	return strings.TrimSpace(strings.ToLower(providerID)) + ":" + strings.TrimSpace(deliveryID)
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
