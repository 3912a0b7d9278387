package provider

import (
	"context"
	"fmt"

	"walletbridge/internal/domain"
)

// ScriptInjector runs a script inside the page context.
type ScriptInjector interface {
	Inject(ctx context.Context, script string) error
}

// Responder delivers responses by injecting settle scripts.
type Responder struct {
	injector ScriptInjector
}

// NewResponder creates a Responder that injects through inj.
func NewResponder(inj ScriptInjector) *Responder {
	return &Responder{injector: inj}
}

// Respond implements domain.Responder.
func (r *Responder) Respond(ctx context.Context, resp domain.ResponseMessage) error {
	script, err := ResponseScript(resp)
	if err != nil {
		return err
	}
	if err := r.injector.Inject(ctx, script); err != nil {
		return fmt.Errorf("Responder.Respond: %w: %w", domain.ErrInjectFailed, err)
	}
	return nil
}
