package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"walletbridge/internal/domain"
)

// envelopeSchema describes what a provider message must look like before
// the bridge will act on it. params is method-specific and left open.
const envelopeSchema = `{
  "type": "object",
  "required": ["type", "payload"],
  "properties": {
    "type": {"type": "string"},
    "payload": {
      "type": "object",
      "required": ["method", "id"],
      "properties": {
        "method": {"type": "string"},
        "id": {"type": "integer", "minimum": 0},
        "params": {}
      }
    }
  }
}`

func compileEnvelopeSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(envelopeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile envelope schema: %w", err)
	}
	return schema, nil
}

// decode parses and validates one raw page message.
func (b *Bridge) decode(raw string) (domain.RequestMessage, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.RequestMessage{}, domain.NewDomainError("Bridge.Decode", domain.ErrMalformedMessage, err.Error())
	}

	if obj, ok := doc.(map[string]any); ok {
		if typ, ok := obj["type"].(string); ok && typ != domain.MessageTypeProviderRequest {
			return domain.RequestMessage{}, domain.NewDomainError("Bridge.Decode", domain.ErrUnsupportedMessage, typ)
		}
	}

	if result := b.schema.Validate(doc); !result.IsValid() {
		return domain.RequestMessage{}, domain.NewDomainError("Bridge.Decode", domain.ErrInvalidEnvelope, fmt.Sprint(result.Error()))
	}

	var env domain.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return domain.RequestMessage{}, domain.NewDomainError("Bridge.Decode", domain.ErrMalformedMessage, err.Error())
	}
	var req domain.RequestMessage
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return domain.RequestMessage{}, domain.NewDomainError("Bridge.Decode", domain.ErrMalformedMessage, err.Error())
	}
	return req, nil
}

// parseTransaction reads to and value from the first eth_sendTransaction
// param. The values are not checked for shape; a missing value reads as "0".
func parseTransaction(params json.RawMessage) (*domain.Transaction, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no params", domain.ErrInvalidInput)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(params, &list); err != nil {
		return nil, fmt.Errorf("%w: params is not a list: %v", domain.ErrInvalidInput, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: empty params", domain.ErrInvalidInput)
	}
	var fields map[string]any
	if err := json.Unmarshal(list[0], &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: first param is not an object", domain.ErrInvalidInput)
	}

	tx := &domain.Transaction{
		To:    displayValue(fields["to"]),
		Value: displayValue(fields["value"]),
	}
	if tx.Value == "" {
		tx.Value = "0"
	}
	return tx, nil
}

func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
