package proxy

import (
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/avb-is-me/codespace-executor/policy"
)

// handleConnect implements the CONNECT protocol (§4.2): extract host:port,
// run the domain-only policy check, then either deny with a single audit
// entry or establish the tunnel and splice bidirectionally, again recording
// exactly one audit entry for the whole tunnel's lifetime.
func (p *Proxy) handleConnect(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
	}

	entry := nowAuditEntry(http.MethodConnect, r.Host, host, nil)

	d := policy.DecideDomainOnly(p.currentPolicy(), host)
	if !d.Allowed {
		entry.Blocked = true
		entry.Reason = d.Reason
		entry.StatusCode = http.StatusForbidden
		p.audit.Append(entry)
		p.writeBlockedResponse(w, d.Reason)
		return
	}

	targetConn, err := net.Dial("tcp", r.Host)
	if err != nil {
		entry.Error = err.Error()
		p.audit.Append(entry)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		targetConn.Close()
		entry.Error = "hijacking not supported"
		p.audit.Append(entry)
		http.Error(w, "hijacking not supported", http.StatusInternalServerError)
		return
	}

	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		targetConn.Close()
		entry.Error = err.Error()
		p.audit.Append(entry)
		return
	}

	entry.StatusCode = http.StatusOK
	p.audit.Append(entry)

	_, _ = clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))

	var closeOnce sync.Once
	closeConns := func() {
		closeOnce.Do(func() {
			clientConn.Close()
			targetConn.Close()
		})
	}

	go func() {
		_, _ = io.Copy(targetConn, clientConn)
		closeConns()
	}()
	go func() {
		_, _ = io.Copy(clientConn, targetConn)
		closeConns()
	}()
}
