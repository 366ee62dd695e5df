package proxy

import (
	"sync"

	executor "github.com/avb-is-me/codespace-executor"
)

// AuditLog records one AuditEntry per attempted outbound request in arrival
// order. Append is the only mutation; entries are never reordered or
// removed, honoring the "exactly one entry per attempted request in arrival
// order" invariant.
type AuditLog struct {
	mu      sync.Mutex
	entries []executor.AuditEntry
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (a *AuditLog) Append(e executor.AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

// Snapshot returns a defensive copy so callers can range over it without
// racing a concurrent Append.
func (a *AuditLog) Snapshot() []executor.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]executor.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Reset clears the log. The orchestrator does not call it: it starts a
// fresh Proxy, and so a fresh AuditLog, for every execution.
func (a *AuditLog) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = nil
}
