package domain

import "context"

// PromptKind identifies which confirmation the user is asked for.
type PromptKind string

const (
	PromptConnect     PromptKind = "connect"
	PromptTransaction PromptKind = "transaction"
)

// Transaction holds the fields of an eth_sendTransaction call shown to the user.
// Values are displayed as received; nothing is validated or signed.
type Transaction struct {
	To    string `json:"to"`
	Value string `json:"value"`
}

// Prompt is a binary confirm/cancel question shown to the user.
type Prompt struct {
	Kind         PromptKind
	RequestID    int64
	Method       string
	Title        string
	Message      string
	ConfirmLabel string
	CancelLabel  string
	Tx           *Transaction // set for PromptTransaction
}

// Prompter asks the user to confirm or cancel a prompt.
type Prompter interface {
	// Confirm blocks until the user decides. A non-nil error means no
	// decision was made (UI failure or context cancellation).
	Confirm(ctx context.Context, p Prompt) (bool, error)
}
