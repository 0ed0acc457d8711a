package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectWalletMessage]      = (*ConnectWalletCommand)(nil)
	_ gocmd.Commander[DisconnectWalletMessage]   = (*DisconnectWalletCommand)(nil)
	_ gocmd.Commander[RequestCredentialsMessage] = (*RequestCredentialsCommand)(nil)
	_ gocmd.Commander[PollCredentialsMessage]    = (*PollCredentialsCommand)(nil)
	_ gocmd.Commander[RedeemContributionMessage] = (*RedeemContributionCommand)(nil)
	_ gocmd.Commander[SettleContributionMessage] = (*SettleContributionCommand)(nil)
	_ gocmd.Commander[PollSettlementMessage]     = (*PollSettlementCommand)(nil)
)
