// Package bridge implements the host side of the wallet provider protocol:
// it turns messages posted by the injected provider into confirmation
// prompts and pushes exactly one response back for each accepted request.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"walletbridge/internal/domain"
	"walletbridge/internal/infra/tracer"
)

// Error strings surfaced to the page. Rejections carry free text only.
const (
	MsgUserRejected        = "User rejected"
	MsgUserRejectedTx      = "User rejected transaction"
	MsgInvalidTransaction  = "Invalid transaction parameters"
	MsgRateExceeded        = "Request rate exceeded"
	MsgPromptUnavailable   = "Wallet prompt unavailable"
	defaultDAppDisplayName = "this site"
)

// Config holds the fixed values the bridge answers with.
type Config struct {
	Address           string
	PlaceholderTxHash string
	DAppName          string
	// PromptRatePerMin caps prompts per minute; 0 disables the limit.
	PromptRatePerMin int
	PromptBurst      int
}

// Bridge dispatches provider requests. It is safe for concurrent use; each
// inbound message may be handled on its own goroutine.
type Bridge struct {
	cfg       Config
	prompter  domain.Prompter
	responder domain.Responder
	recorder  domain.OutcomeRecorder
	audit     domain.AuditLogger
	logger    *slog.Logger
	sessionID string
	schema    *jsonschema.Schema
	limiter   *rate.Limiter // nil = unlimited

	// accountsGate admits one account-access prompt at a time.
	accountsGate chan struct{}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRecorder reports one outcome per handled message to r.
func WithRecorder(r domain.OutcomeRecorder) Option {
	return func(b *Bridge) { b.recorder = r }
}

// WithAuditLog writes every connect and transaction decision to a.
func WithAuditLog(a domain.AuditLogger) Option {
	return func(b *Bridge) { b.audit = a }
}

// WithSessionID tags logs and spans with the page session id.
func WithSessionID(id string) Option {
	return func(b *Bridge) {
		b.sessionID = id
		b.logger = b.logger.With("session_id", id)
	}
}

// New creates a Bridge.
func New(cfg Config, prompter domain.Prompter, responder domain.Responder, logger *slog.Logger, opts ...Option) (*Bridge, error) {
	if prompter == nil || responder == nil {
		return nil, domain.NewDomainError("Bridge.New", domain.ErrInvalidInput, "prompter and responder are required")
	}
	if cfg.DAppName == "" {
		cfg.DAppName = defaultDAppDisplayName
	}
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:          cfg,
		prompter:     prompter,
		responder:    responder,
		logger:       logger,
		schema:       schema,
		accountsGate: make(chan struct{}, 1),
	}
	if cfg.PromptRatePerMin > 0 {
		burst := cfg.PromptBurst
		if burst <= 0 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(float64(cfg.PromptRatePerMin)/60.0), burst)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// HandleMessage processes one raw message from the page. Messages that fail
// to decode are logged and dropped without a response. Every decoded request
// gets exactly one response. The returned error is informational; it has
// already been logged.
func (b *Bridge) HandleMessage(ctx context.Context, raw string) error {
	if b.sessionID != "" {
		ctx = domain.ContextWithSessionID(ctx, b.sessionID)
	}
	ctx, span := tracer.StartSpan(ctx, "bridge.handle",
		trace.WithAttributes(tracer.StringAttr(tracer.AttrSessionID, b.sessionID)))
	defer span.End()

	req, err := b.decode(raw)
	if err != nil {
		b.logger.Warn("dropping provider message",
			"error", err, "code", domain.ErrorCodeOf(err), "bytes", len(raw))
		b.record(domain.OutcomeDropped)
		tracer.RecordError(span, err)
		return err
	}
	span.SetAttributes(
		tracer.StringAttr(tracer.AttrMethod, req.Method),
		tracer.Int64Attr(tracer.AttrRequestID, req.ID),
	)
	log := b.logger.With("request_id", req.ID, "method", req.Method)
	log.Debug("provider request received")

	resp, outcome := b.dispatch(ctx, log, req)
	span.SetAttributes(tracer.StringAttr(tracer.AttrOutcome, string(outcome)))

	if err := b.responder.Respond(ctx, resp); err != nil {
		log.Error("deliver response", "error", err, "code", domain.ErrorCodeOf(err))
		b.record(domain.OutcomeFailed)
		tracer.RecordError(span, err)
		return domain.WrapOp("Bridge.HandleMessage", err)
	}

	log.Info("provider request settled", "outcome", outcome, "rejected", resp.IsError())
	b.writeAudit(ctx, log, req, resp, outcome)
	b.record(outcome)
	tracer.SetOK(span)
	return nil
}

// Handler adapts the bridge to domain.MessageHandler.
func (b *Bridge) Handler() domain.MessageHandler {
	return func(ctx context.Context, raw string) {
		_ = b.HandleMessage(ctx, raw)
	}
}

func (b *Bridge) dispatch(ctx context.Context, log *slog.Logger, req domain.RequestMessage) (domain.ResponseMessage, domain.Outcome) {
	switch req.Method {
	case domain.MethodRequestAccounts, domain.MethodAccounts:
		return b.requestAccounts(ctx, log, req)
	case domain.MethodSendTransaction:
		return b.sendTransaction(ctx, log, req)
	default:
		return domain.Resolve(req.ID, nil), domain.OutcomeDefaulted
	}
}

func (b *Bridge) record(o domain.Outcome) {
	if b.recorder != nil {
		b.recorder.Record(o)
	}
}

// writeAudit logs the decision for methods that involve the wallet. Audit
// failures never change the response.
func (b *Bridge) writeAudit(ctx context.Context, log *slog.Logger, req domain.RequestMessage,
	resp domain.ResponseMessage, outcome domain.Outcome) {
	if b.audit == nil {
		return
	}
	event := domain.AuditEvent{
		Actor:    b.sessionID,
		Resource: b.cfg.DAppName,
		Action:   req.Method,
		Outcome:  string(outcome),
		Detail:   map[string]string{"request_id": strconv.FormatInt(req.ID, 10)},
	}
	if resp.IsError() {
		event.Detail["error"] = resp.Error
	}
	switch req.Method {
	case domain.MethodRequestAccounts, domain.MethodAccounts:
		event.Type = domain.AuditWalletConnect
	case domain.MethodSendTransaction:
		event.Type = domain.AuditWalletTransaction
		if tx, err := parseTransaction(req.Params); err == nil {
			event.Detail["to"] = tx.To
			event.Detail["value"] = tx.Value
		}
	default:
		return
	}
	if err := b.audit.Log(ctx, event); err != nil {
		log.Warn("audit write failed", "error", err, "code", domain.ErrorCodeOf(err))
	}
}

// allowPrompt consumes one token from the prompt budget.
func (b *Bridge) allowPrompt() bool {
	return b.limiter == nil || b.limiter.Allow()
}

// acquireAccountsGate blocks until no other account prompt is showing.
func (b *Bridge) acquireAccountsGate(ctx context.Context, log *slog.Logger) (func(), error) {
	release := func() { <-b.accountsGate }
	select {
	case b.accountsGate <- struct{}{}:
		return release, nil
	default:
	}

	log.Debug("account prompt already active, waiting")
	select {
	case b.accountsGate <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for account prompt: %w", ctx.Err())
	}
}
