// Package provider renders the wallet provider injected into the dApp page
// and the scripts that settle its pending calls.
package provider

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"walletbridge/internal/domain"
)

//go:embed provider.js
var providerSource string

var providerTemplate = template.Must(template.New("provider").Parse(providerSource))

var bindingRe = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

// Options are the values baked into the injected provider.
type Options struct {
	Binding        string
	Address        string
	ChainID        string
	NetworkVersion string
	// RequestTimeout rejects page calls without a response; zero waits forever.
	RequestTimeout time.Duration
}

// scriptOptions is the JSON object handed to the provider factory.
type scriptOptions struct {
	Binding        string `json:"binding"`
	Address        string `json:"address"`
	ChainID        string `json:"chainId"`
	NetworkVersion string `json:"networkVersion"`
	TimeoutMs      int64  `json:"timeoutMs"`
}

// Script renders the provider stub for injection before page scripts run.
func Script(opts Options) (string, error) {
	if !bindingRe.MatchString(opts.Binding) {
		return "", domain.NewDomainError("Provider.Script", domain.ErrInvalidInput,
			fmt.Sprintf("binding %q is not a JavaScript identifier", opts.Binding))
	}
	raw, err := json.Marshal(scriptOptions{
		Binding:        opts.Binding,
		Address:        opts.Address,
		ChainID:        opts.ChainID,
		NetworkVersion: opts.NetworkVersion,
		TimeoutMs:      opts.RequestTimeout.Milliseconds(),
	})
	if err != nil {
		return "", domain.WrapOp("Provider.Script", err)
	}

	var b strings.Builder
	if err := providerTemplate.Execute(&b, struct{ Options string }{string(raw)}); err != nil {
		return "", domain.WrapOp("Provider.Script", err)
	}
	return b.String(), nil
}

// ResponseScript renders the script that settles one pending call.
// It evaluates to true when the call was found and settled, false otherwise.
// Values are JSON-encoded, which also escapes characters that would break
// out of a script context.
func ResponseScript(resp domain.ResponseMessage) (string, error) {
	var settle string
	if resp.IsError() {
		msg, err := json.Marshal(resp.Error)
		if err != nil {
			return "", domain.WrapOp("Provider.ResponseScript", err)
		}
		settle = "call.reject(" + string(msg) + ");"
	} else {
		result, err := json.Marshal(resp.Result)
		if err != nil {
			return "", domain.NewDomainError("Provider.ResponseScript", domain.ErrInvalidInput, err.Error())
		}
		settle = "call.resolve(" + string(result) + ");"
	}

	return fmt.Sprintf(`(function () {
  var provider = window.ethereum;
  var pending = provider && provider._pending;
  if (!pending || !pending.has(%[1]d)) {
    return false;
  }
  var call = pending.get(%[1]d);
  pending.delete(%[1]d);
  if (call.timer !== null) {
    clearTimeout(call.timer);
  }
  %[2]s
  return true;
})();`, resp.ID, settle), nil
}
