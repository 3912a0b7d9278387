package domain

import (
	"context"
	"encoding/json"
)

// MessageTypeProviderRequest tags envelopes sent by the injected provider.
const MessageTypeProviderRequest = "provider_request"

// Provider methods the bridge recognizes. Anything else gets a null result.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodSendTransaction = "eth_sendTransaction"
)

// Envelope is the outer JSON object posted by the page.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RequestMessage is one provider call forwarded out of the page.
type RequestMessage struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     int64           `json:"id"`
}

// ResponseMessage settles exactly one pending page call.
// Exactly one of Result or Error is meaningful: a non-empty Error rejects,
// otherwise Result (possibly nil, i.e. JSON null) resolves.
type ResponseMessage struct {
	ID     int64
	Result any
	Error  string
}

// IsError reports whether the response rejects the pending call.
func (r ResponseMessage) IsError() bool { return r.Error != "" }

// Resolve builds a successful response.
func Resolve(id int64, result any) ResponseMessage {
	return ResponseMessage{ID: id, Result: result}
}

// Reject builds an error response. An empty message is replaced so the
// response can never be mistaken for a null result.
func Reject(id int64, message string) ResponseMessage {
	if message == "" {
		message = "Request rejected"
	}
	return ResponseMessage{ID: id, Error: message}
}

// MessageHandler consumes one raw message posted by the page.
type MessageHandler func(ctx context.Context, raw string)

// Responder delivers a response back into the page context.
type Responder interface {
	Respond(ctx context.Context, resp ResponseMessage) error
}
