package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-rewards/core"
)

var (
	_ gocmd.Querier[GetWalletMessage, core.ExternalWallet]                       = (*GetWalletQuery)(nil)
	_ gocmd.Querier[GetBalanceMessage, float64]                                  = (*GetBalanceQuery)(nil)
	_ gocmd.Querier[ListLiveTokensMessage, []core.UnblindedToken]                = (*ListLiveTokensQuery)(nil)
	_ gocmd.Querier[GetTransactionMessage, core.ExternalTransaction]             = (*GetTransactionQuery)(nil)
	_ gocmd.Querier[GetContributionTransactionMessage, core.ExternalTransaction] = (*GetContributionTransactionQuery)(nil)
)
