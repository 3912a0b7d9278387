package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"walletbridge/internal/domain"
)

func (b *Bridge) requestAccounts(ctx context.Context, log *slog.Logger, req domain.RequestMessage) (domain.ResponseMessage, domain.Outcome) {
	if !b.allowPrompt() {
		log.Warn("prompt rate exceeded")
		return domain.Reject(req.ID, MsgRateExceeded), domain.OutcomeRejected
	}

	release, err := b.acquireAccountsGate(ctx, log)
	if err != nil {
		log.Warn("account prompt not shown", "error", err)
		return domain.Reject(req.ID, MsgPromptUnavailable), domain.OutcomeFailed
	}
	defer release()

	ok, err := b.prompter.Confirm(ctx, b.connectPrompt(req))
	if err != nil {
		log.Error("account prompt failed", "error", err, "code", domain.ErrorCodeOf(err))
		return domain.Reject(req.ID, MsgPromptUnavailable), domain.OutcomeFailed
	}
	if !ok {
		return domain.Reject(req.ID, MsgUserRejected), domain.OutcomeRejected
	}
	return domain.Resolve(req.ID, []string{b.cfg.Address}), domain.OutcomeApproved
}

func (b *Bridge) sendTransaction(ctx context.Context, log *slog.Logger, req domain.RequestMessage) (domain.ResponseMessage, domain.Outcome) {
	tx, err := parseTransaction(req.Params)
	if err != nil {
		log.Warn("unreadable transaction params", "error", err)
		return domain.Reject(req.ID, MsgInvalidTransaction), domain.OutcomeRejected
	}
	if !b.allowPrompt() {
		log.Warn("prompt rate exceeded")
		return domain.Reject(req.ID, MsgRateExceeded), domain.OutcomeRejected
	}

	ok, err := b.prompter.Confirm(ctx, b.transactionPrompt(req, tx))
	if err != nil {
		log.Error("transaction prompt failed", "error", err, "code", domain.ErrorCodeOf(err))
		return domain.Reject(req.ID, MsgPromptUnavailable), domain.OutcomeFailed
	}
	if !ok {
		return domain.Reject(req.ID, MsgUserRejectedTx), domain.OutcomeRejected
	}
	return domain.Resolve(req.ID, b.cfg.PlaceholderTxHash), domain.OutcomeApproved
}

func (b *Bridge) connectPrompt(req domain.RequestMessage) domain.Prompt {
	return domain.Prompt{
		Kind:         domain.PromptConnect,
		RequestID:    req.ID,
		Method:       req.Method,
		Title:        "Connect Wallet",
		Message:      fmt.Sprintf("Would you like to connect your wallet to %s?", b.cfg.DAppName),
		ConfirmLabel: "Connect",
		CancelLabel:  "Cancel",
	}
}

func (b *Bridge) transactionPrompt(req domain.RequestMessage, tx *domain.Transaction) domain.Prompt {
	return domain.Prompt{
		Kind:      domain.PromptTransaction,
		RequestID: req.ID,
		Method:    req.Method,
		Title:     "Confirm Transaction",
		Message: fmt.Sprintf("Would you like to confirm this transaction?\n\nTo: %s\nValue: %s ETH",
			tx.To, tx.Value),
		ConfirmLabel: "Confirm",
		CancelLabel:  "Reject",
		Tx:           tx,
	}
}
