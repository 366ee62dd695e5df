package proxy

import (
	"net/http"
)

// HookAction is the disposition an OnRequestHook returns for one request.
type HookAction int

const (
	// ActionAllow forwards the request upstream unmodified.
	ActionAllow HookAction = iota
	// ActionBlock synthesizes a denial response and never reaches upstream.
	ActionBlock
	// ActionMock returns a response built from MockStatus, MockHeaders and
	// MockBody instead of contacting upstream.
	ActionMock
)

// HookDecision is what an OnRequestHook returns.
type HookDecision struct {
	Action       HookAction
	Reason       string
	MockStatus   int
	MockHeaders  map[string]string
	MockBody     []byte
}

// OnRequestHook is invoked for every plain-HTTP request (not CONNECT tunnels,
// which are policy-checked at the domain level only) before it is forwarded.
// A hook that panics or returns an error is caught, logged as a WARN, and
// treated as ActionAllow — a misbehaving hook must never crash the proxy.
type OnRequestHook func(r *http.Request) (HookDecision, error)

// OnResponseHook observes a completed upstream response before it is
// relayed. A panic is recovered and logged as a WARN. Changes it makes to
// resp's status or headers are recorded in the audit entry and relayed to
// the client.
type OnResponseHook func(r *http.Request, resp *http.Response)

// runOnRequestHook invokes hook defensively: a panic or error is logged and
// treated as "no hook" (ActionAllow), per the proxy's hook-robustness
// invariant.
func (p *Proxy) runOnRequestHook(r *http.Request) HookDecision {
	if p.onRequest == nil {
		return HookDecision{Action: ActionAllow}
	}

	decision := HookDecision{Action: ActionAllow}
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Warn("onRequest hook panicked, allowing request", "recover", rec)
				decision = HookDecision{Action: ActionAllow}
			}
		}()
		d, err := p.onRequest(r)
		if err != nil {
			p.logger.Warn("onRequest hook returned an error, allowing request", "error", err.Error())
			return
		}
		decision = d
	}()
	return decision
}

func (p *Proxy) runOnResponseHook(r *http.Request, resp *http.Response) {
	if p.onResponse == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("onResponse hook panicked", "recover", rec)
		}
	}()
	p.onResponse(r, resp)
}
