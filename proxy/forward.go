package proxy

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/avb-is-me/codespace-executor/policy"
)

// handleHTTP implements the plain-HTTP protocol (§4.2): parse, create a
// pending AuditEntry, run the onRequest hook, forward if allowed, run the
// onResponse hook, fill in the AuditEntry, respond.
func (p *Proxy) handleHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.URL.Hostname()
	reqHeadersForAudit := p.filterHeadersForAudit(r.Header)
	entry := nowAuditEntry(r.Method, r.URL.String(), host, reqHeadersForAudit)

	if d := p.evaluatePolicy(host, r.Method, r.URL.Path); !d.Allowed {
		entry.Blocked = true
		entry.Reason = d.Reason
		entry.StatusCode = http.StatusForbidden
		p.audit.Append(entry)
		p.writeBlockedResponse(w, d.Reason)
		return
	}

	decision := p.runOnRequestHook(r)
	switch decision.Action {
	case ActionBlock:
		entry.Blocked = true
		entry.Reason = decision.Reason
		entry.StatusCode = http.StatusForbidden
		p.audit.Append(entry)
		p.writeBlockedResponse(w, decision.Reason)
		return
	case ActionMock:
		entry.StatusCode = decision.MockStatus
		p.audit.Append(entry)
		p.writeMockResponse(w, decision)
		return
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL.String(), r.Body)
	if err != nil {
		entry.Error = err.Error()
		p.audit.Append(entry)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			outReq.Header.Add(k, v)
		}
	}
	outReq.Header.Del("Proxy-Connection")
	outReq.Header.Del("Proxy-Authorization")

	resp, err := http.DefaultTransport.RoundTrip(outReq)
	if err != nil {
		entry.Error = err.Error()
		p.audit.Append(entry)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	p.runOnResponseHook(r, resp)

	entry.StatusCode = resp.StatusCode
	entry.ResponseHeaders = p.filterHeadersForAudit(resp.Header)
	p.audit.Append(entry)

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func (p *Proxy) evaluatePolicy(host, method, path string) policy.Decision {
	return policy.Decide(p.currentPolicy(), host, method, path)
}

// blockedResponseBody is the default denial body (§4.2 step 3): JSON with
// error/reason/blocked_by_policy, never text/plain.
type blockedResponseBody struct {
	Error           string `json:"error"`
	Reason          string `json:"reason"`
	BlockedByPolicy bool   `json:"blocked_by_policy"`
}

func (p *Proxy) writeBlockedResponse(w http.ResponseWriter, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(blockedResponseBody{
		Error:           "blocked_by_policy",
		Reason:          reason,
		BlockedByPolicy: true,
	})
}

func (p *Proxy) writeMockResponse(w http.ResponseWriter, d HookDecision) {
	for k, v := range d.MockHeaders {
		w.Header().Set(k, v)
	}
	status := d.MockStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(d.MockBody) > 0 {
		_, _ = w.Write(d.MockBody)
	}
}
