package domain

import (
	"context"
	"time"
)

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditWalletConnect     AuditEventType = "wallet_connect"
	AuditWalletTransaction AuditEventType = "wallet_transaction"
)

// AuditEvent is one wallet decision.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Detail    map[string]string `json:"detail,omitempty"`

	Actor    string `json:"actor,omitempty"`    // session id
	Resource string `json:"resource,omitempty"` // dApp
	Action   string `json:"action,omitempty"`   // provider method
	Outcome  string `json:"outcome,omitempty"`
}

// AuditLogger writes audit events to a persistent log.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Close() error
}
