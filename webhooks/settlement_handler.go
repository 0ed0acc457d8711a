package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-rewards/core"
)

type settlementEvent struct {
	TxRef  string `json:"tx_ref"`
	Status string `json:"status"`
}

// SettlementHandler applies custodian settlement callbacks to the
// transaction ledger. Completed and failed events are terminal; any
// other status leaves the transaction submitted for the reconciler to
// poll.
type SettlementHandler struct {
	transactions core.TransactionStore
	logger       core.Logger
}

func NewSettlementHandler(transactions core.TransactionStore, logger core.Logger) (*SettlementHandler, error) {
	if transactions == nil {
		return nil, fmt.Errorf("webhooks: transaction store is required")
	}
	return &SettlementHandler{
		transactions: transactions,
		logger:       glog.Ensure(logger),
	}, nil
}

func (h *SettlementHandler) Handle(ctx context.Context, notification Notification) (Receipt, error) {
	if h == nil || h.transactions == nil {
		return Receipt{}, fmt.Errorf("webhooks: settlement handler is not configured")
	}

	var event settlementEvent
	if err := json.Unmarshal(notification.Body, &event); err != nil {
		return Receipt{Accepted: false, StatusCode: http.StatusBadRequest}, fmt.Errorf("webhooks: decode settlement event: %w", err)
	}
	txRef := strings.TrimSpace(event.TxRef)
	if txRef == "" {
		return Receipt{Accepted: false, StatusCode: http.StatusBadRequest}, fmt.Errorf("webhooks: settlement event has no tx ref")
	}

	var status core.TransactionStatus
	switch strings.ToLower(strings.TrimSpace(event.Status)) {
	case "completed", "settled":
		status = core.TransactionStatusCompleted
	case "failed", "error":
		status = core.TransactionStatusFailed
	default:
		h.logger.Debug("settlement event still in flight",
			"provider", notification.ProviderID,
			"tx_ref", txRef,
			"status", event.Status,
		)
		return Receipt{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"pending": true}}, nil
	}

	tx, err := h.transactions.Get(ctx, txRef)
	if err != nil {
		return Receipt{Accepted: false, StatusCode: http.StatusNotFound}, fmt.Errorf("webhooks: unknown transaction %q: %w", txRef, err)
	}
	if tx.Status == core.TransactionStatusCompleted || tx.Status == core.TransactionStatusFailed {
		// Terminal already: the callback is a resend.
		return Receipt{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"already_terminal": true}}, nil
	}

	if err := h.transactions.UpdateStatus(ctx, txRef, status); err != nil {
		return Receipt{Accepted: false, StatusCode: http.StatusInternalServerError}, fmt.Errorf("webhooks: update transaction status: %w", err)
	}

	h.logger.Info("settlement event applied",
		"provider", notification.ProviderID,
		"tx_ref", txRef,
		"status", string(status),
	)
	return Receipt{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"status": string(status)}}, nil
}

var _ Handler = (*SettlementHandler)(nil)
