package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func credsBatchHandlers() repository.ModelHandlers[*credsBatchRecord] {
	return repository.ModelHandlers[*credsBatchRecord]{
		NewRecord: func() *credsBatchRecord {
			return &credsBatchRecord{}
		},
		GetID: func(record *credsBatchRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *credsBatchRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *credsBatchRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func unblindedTokenHandlers() repository.ModelHandlers[*unblindedTokenRecord] {
	return repository.ModelHandlers[*unblindedTokenRecord]{
		NewRecord: func() *unblindedTokenRecord {
			return &unblindedTokenRecord{}
		},
		GetID: func(record *unblindedTokenRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *unblindedTokenRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *unblindedTokenRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func externalTransactionHandlers() repository.ModelHandlers[*externalTransactionRecord] {
	return repository.ModelHandlers[*externalTransactionRecord]{
		NewRecord: func() *externalTransactionRecord {
			return &externalTransactionRecord{}
		},
		GetID: func(record *externalTransactionRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.TransactionID)
		},
		SetID: func(record *externalTransactionRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.TransactionID = id.String()
		},
		GetIdentifier: func() string {
			return "transaction_id"
		},
		GetIdentifierValue: func(record *externalTransactionRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.TransactionID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
