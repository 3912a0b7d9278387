package usecase

import (
	"context"
	"fmt"

	"walletbridge/internal/domain"
)

// PolicyPrompter answers prompts from allow/deny lists keyed by provider
// method, and hands everything else to an interactive prompter.
//
//   - Methods in alwaysApprove: confirmed without user interaction
//   - Methods in alwaysDeny: cancelled without user interaction
//   - Other methods: asked through next; cancelled when next is nil
//
// Example usage:
//
//	prompter := NewPolicyPrompter(
//	    []string{"eth_accounts"},        // answer account lookups silently
//	    []string{"eth_sendTransaction"}, // never confirm transactions
//	    tuiPrompter,
//	)
type PolicyPrompter struct {
	alwaysApprove map[string]bool
	alwaysDeny    map[string]bool
	next          domain.Prompter
}

// NewPolicyPrompter creates a PolicyPrompter from allow/deny lists.
// next may be nil, in which case unlisted methods are cancelled.
func NewPolicyPrompter(approve, deny []string, next domain.Prompter) *PolicyPrompter {
	p := &PolicyPrompter{
		alwaysApprove: make(map[string]bool, len(approve)),
		alwaysDeny:    make(map[string]bool, len(deny)),
		next:          next,
	}
	for _, m := range approve {
		p.alwaysApprove[m] = true
	}
	for _, m := range deny {
		p.alwaysDeny[m] = true
	}
	return p
}

// NeedsUser reports whether a prompt for method would reach the user.
func (p *PolicyPrompter) NeedsUser(method string) bool {
	if p.alwaysApprove[method] || p.alwaysDeny[method] {
		return false
	}
	return p.next != nil
}

// Confirm implements domain.Prompter.
//
// Decision Flow:
//  1. method in alwaysDeny → cancel
//  2. method in alwaysApprove → confirm
//  3. otherwise → ask next, or cancel when there is no one to ask
func (p *PolicyPrompter) Confirm(ctx context.Context, prompt domain.Prompt) (bool, error) {
	if p.alwaysDeny[prompt.Method] {
		return false, nil
	}
	if p.alwaysApprove[prompt.Method] {
		return true, nil
	}
	if p.next == nil {
		return false, nil
	}
	ok, err := p.next.Confirm(ctx, prompt)
	if err != nil {
		return false, domain.NewDomainError("PolicyPrompter.Confirm", domain.ErrPromptUnavailable,
			fmt.Sprintf("%s #%d: %v", prompt.Method, prompt.RequestID, err))
	}
	return ok, nil
}

// StaticPrompter gives the same answer to every prompt.
type StaticPrompter bool

// Confirm implements domain.Prompter.
func (s StaticPrompter) Confirm(ctx context.Context, _ domain.Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return bool(s), nil
}
