package orchestrator

import (
	"encoding/json"
	"strings"
)

// sensitiveHeaderPrefix marks caller-credential-bearing headers so phase-2's
// environment never contains them (§8: "phase-2 env never contains
// caller-credential-prefixed keys").
const sensitiveHeaderPrefix = "HDR_"

// sanitizeEnv strips every caller-credential-prefixed key from env before it
// is handed to the credential-free phase-2 Sandbox.
func sanitizeEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if strings.HasPrefix(k, sensitiveHeaderPrefix) {
			continue
		}
		out[k] = v
	}
	return out
}

// sensitiveResultHeaders is the fixed minimum set of headers dropped from a
// phase-1 fetch's sanitized result.
var sensitiveResultHeaders = map[string]bool{
	"authorization": true,
	"set-cookie":    true,
	"cookie":        true,
}

// FetchOutcome is the sanitized, phase-2-visible result of one phase-1
// fetch. A non-empty Error means the fetch itself could not be completed
// (transport/timeout failure); it is not set for a plain non-2xx HTTP
// status, which is a normal outcome phase-2 code inspects via Status.
type FetchOutcome struct {
	Status  int
	Headers map[string]string
	Body    any
	Error   string
}

// sanitize drops credential-bearing response headers and, when
// projectFields is non-empty, restricts the body to only those top-level
// JSON fields.
func sanitize(status int, headers map[string]string, extraSensitive map[string]bool, rawBody []byte, projectFields []string) FetchOutcome {
	out := FetchOutcome{Status: status, Headers: make(map[string]string, len(headers))}
	for k, v := range headers {
		lk := strings.ToLower(k)
		if sensitiveResultHeaders[lk] || extraSensitive[lk] {
			continue
		}
		out.Headers[k] = v
	}

	if len(rawBody) == 0 {
		return out
	}

	var decoded any
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		out.Body = string(rawBody)
		return out
	}

	if len(projectFields) == 0 {
		out.Body = decoded
		return out
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		out.Body = decoded
		return out
	}
	projected := make(map[string]any, len(projectFields))
	for _, f := range projectFields {
		if v, ok := obj[f]; ok {
			projected[f] = v
		}
	}
	out.Body = projected
	return out
}
