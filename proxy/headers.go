package proxy

import (
	"net/http"
	"strings"
)

const redacted = "[REDACTED]"

// filterHeadersForAudit produces the map recorded in an AuditEntry's
// RequestHeaders/ResponseHeaders. It never touches the real http.Header
// sent upstream — redaction only ever affects what gets audited.
func (p *Proxy) filterHeadersForAudit(h http.Header) map[string]string {
	if h == nil {
		return nil
	}
	result := make(map[string]string, len(h))
	for key, values := range h {
		joined := strings.Join(values, ", ")
		if p.isSensitiveHeader(key) {
			result[key] = redacted
			continue
		}
		result[key] = joined
	}
	return result
}

// isSensitiveHeader reports whether key must be redacted in recorded audit
// entries. Per the configuration surface, FILTER_SENSITIVE_HEADERS (default
// true) gates this entirely: when disabled, audited headers are recorded
// verbatim, including the fixed minimum set.
func (p *Proxy) isSensitiveHeader(key string) bool {
	if !p.filterSensitiveHeaders {
		return false
	}
	if sensitiveHeaders[strings.ToLower(key)] {
		return true
	}
	if p.tokenPrefix != "" && strings.HasPrefix(strings.ToLower(key), strings.ToLower(p.tokenPrefix)) {
		return true
	}
	return false
}
