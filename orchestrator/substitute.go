package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	executor "github.com/avb-is-me/codespace-executor"
	"github.com/avb-is-me/codespace-executor/sandbox"
)

// fetchTimeoutMs bounds one phase-1 fetch sub-execution.
const fetchTimeoutMs = 30000

// placeholderPattern matches ${env.NAME} and ${vars.KEY} placeholders.
// Substitution is restricted to header values only — URLs and bodies are
// never substituted.
var placeholderPattern = regexp.MustCompile(`\$\{(env|vars)\.([A-Za-z0-9_]+)\}`)

// substituteHeaders resolves ${env.NAME} against phase1Env and ${vars.KEY}
// against the PassedVariables binding of an earlier fetch's sanitized
// result.
func substituteHeaders(headers map[string]string, phase1Env map[string]string, passedVariables map[string]string, earlier map[string]FetchOutcome) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = placeholderPattern.ReplaceAllStringFunc(v, func(m string) string {
			parts := placeholderPattern.FindStringSubmatch(m)
			kind, name := parts[1], parts[2]
			switch kind {
			case "env":
				return phase1Env[name]
			case "vars":
				return resolvePassedVariable(name, passedVariables, earlier)
			}
			return m
		})
	}
	return out
}

// resolvePassedVariable resolves ${vars.KEY} via passedVariables[KEY] =
// "<earlierFetchName>.<field>".
func resolvePassedVariable(key string, passedVariables map[string]string, earlier map[string]FetchOutcome) string {
	binding, ok := passedVariables[key]
	if !ok {
		return ""
	}
	fetchName, field, ok := strings.Cut(binding, ".")
	if !ok {
		return ""
	}
	outcome, ok := earlier[fetchName]
	if !ok {
		return ""
	}
	body, ok := outcome.Body.(map[string]any)
	if !ok {
		return ""
	}
	if v, ok := body[field]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// fetchProgramConfig is the JSON blob embedded into a generated phase-1
// fetch program; fetchProgramResult is what that program prints to stdout.
// Field names carry no json tags — encoding/json's default case-insensitive
// match is enough since both ends are generated by this file.
type fetchProgramConfig struct {
	Method  string
	URL     string
	Headers map[string]string
	Proxy   string
}

type fetchProgramResult struct {
	Status  int
	Headers map[string]string
	Body    string
	Error   string
}

// fetchProgramTemplate is a self-contained package main performing exactly
// one HTTP request. It already declares "package main" and "func main()",
// so sandbox.wrapPayload (direct mode) passes it through unchanged and the
// Runner's returned Stdout is exactly the single JSON line this program
// prints — this sub-execution's own stdout never reaches phase-2 or the
// caller, so there's no marker protocol to worry about here.
const fetchProgramTemplate = `package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

func main() {
	var cfg struct {
		Method  string
		URL     string
		Headers map[string]string
		Proxy   string
	}
	json.Unmarshal([]byte(%s), &cfg)

	result := map[string]any{}
	req, err := http.NewRequest(cfg.Method, cfg.URL, nil)
	if err != nil {
		result["error"] = err.Error()
		emitFetchResult(result)
		return
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	if cfg.Proxy != "" {
		if u, perr := url.Parse(cfg.Proxy); perr == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		result["error"] = err.Error()
		emitFetchResult(result)
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	headers := map[string]string{}
	for k, vs := range resp.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	result["status"] = resp.StatusCode
	result["headers"] = headers
	result["body"] = string(body)
	emitFetchResult(result)
}

func emitFetchResult(v map[string]any) {
	b, _ := json.Marshal(v)
	fmt.Fprintln(os.Stdout, string(b))
}
`

// buildFetchProgram generates the self-contained Go program one phase-1
// fetch sub-execution runs, with its method/url/headers baked in and its
// upstream request routed through proxyEndpoint whenever one is set — the
// same egress path phase-2 traffic uses for this execution.
func buildFetchProgram(method, rawURL string, headers map[string]string, proxyEndpoint string) (string, error) {
	cfg := fetchProgramConfig{Method: method, URL: rawURL, Headers: headers}
	if proxyEndpoint != "" {
		cfg.Proxy = "http://" + proxyEndpoint
	}
	blob, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(fetchProgramTemplate, strconv.Quote(string(blob))), nil
}

// runFetch performs one phase-1 credentialed fetch as its own sandbox
// sub-execution — run through the same Runner and mode as phase-2, so its
// traffic is isolated and audited exactly like phase-2's (§4.5 step 2).
// Credentials are baked directly into the generated program rather than
// passed through the execution's env, so they never leak into
// phase2Env/NetworkLog.
func (o *Orchestrator) runFetch(ctx context.Context, fs executor.FetchSpec, phase1Env map[string]string, earlier map[string]FetchOutcome, runner sandbox.Runner, mode executor.ExecutionMode, proxyEndpoint string) FetchOutcome {
	method := fs.Method
	if method == "" {
		method = http.MethodGet
	}
	headers := substituteHeaders(fs.Headers, phase1Env, fs.PassedVariables, earlier)

	program, err := buildFetchProgram(method, fs.URL, headers, proxyEndpoint)
	if err != nil {
		return FetchOutcome{Error: err.Error()}
	}

	res, err := runner.Execute(ctx, program, nil, mode, sandbox.Limits{WallClockMs: fetchTimeoutMs}, proxyEndpoint)
	if err != nil {
		return FetchOutcome{Error: err.Error()}
	}

	var result fetchProgramResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &result); err != nil {
		return FetchOutcome{Error: fmt.Sprintf("phase-1 sub-execution produced no usable result: %v", err)}
	}
	if result.Error != "" {
		return FetchOutcome{Error: result.Error}
	}
	return sanitize(result.Status, result.Headers, o.sensitiveResp, []byte(result.Body), fs.ProjectFields)
}

// identPattern matches the fetch names this is safe to emit as a bare Go
// identifier. A name that doesn't match is skipped — it gets no stub rather
// than producing invalid generated source.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// stubPreamble is emitted as ordinary statements, not top-level
// declarations, so it can be injected directly into the function body
// sandbox.wrapPayload builds around a raw payload (which already imports
// "encoding/json" for its own __out marker).
const stubPreamble = `var __fetchResults map[string]map[string]any
json.Unmarshal([]byte(%s), &__fetchResults)
`

// stubDecl declares one named, zero-argument closure per phase-1 fetch —
// "the payload invokes name()" — returning its sanitized outcome as a
// map[string]any, or the fetch's Error under the "error" key when the fetch
// itself failed. Credentials never appear here — only sanitized results
// cross into phase-2.
const stubDecl = `%s := func() map[string]any { return __fetchResults[%s] }
_ = %s
`

// buildStubs serializes namedResults into the JSON blob embedded in
// stubPreamble, then declares one named stub closure per fetch so phase-2
// code can call name() for each declared phase-1 fetch without ever seeing
// phase-1 credentials. The blob is embedded via strconv.Quote rather than a
// raw string literal so a fetched value containing a backtick can never
// break the generated source.
func buildStubs(namedResults map[string]FetchOutcome) string {
	if len(namedResults) == 0 {
		return ""
	}
	encoded := make(map[string]map[string]any, len(namedResults))
	names := make([]string, 0, len(namedResults))
	for name, outcome := range namedResults {
		entry := map[string]any{"status": outcome.Status, "headers": outcome.Headers, "body": outcome.Body}
		if outcome.Error != "" {
			entry["error"] = outcome.Error
		}
		encoded[name] = entry
		names = append(names, name)
	}
	sort.Strings(names)

	raw, err := json.Marshal(encoded)
	if err != nil {
		raw = []byte("{}")
	}

	var b strings.Builder
	fmt.Fprintf(&b, stubPreamble, strconv.Quote(string(raw)))
	for _, name := range names {
		if !identPattern.MatchString(name) {
			continue
		}
		quoted := strconv.Quote(name)
		fmt.Fprintf(&b, stubDecl, name, quoted, name)
	}
	return b.String()
}

// injectStubs prepends the fetch-result stub statements to payload. When
// payload is an already-complete program (declares its own package and
// func main), sandbox.wrapPayload passes it through unchanged and this
// injection has no enclosing function to live in; the two-phase protocol
// is intended for the common case of a raw statement payload, so that case
// is left to the caller's payload to handle on its own.
func injectStubs(payload string, stubs string) string {
	if stubs == "" {
		return payload
	}
	if strings.Contains(payload, "package ") && strings.Contains(payload, "func main()") {
		return payload
	}
	return stubs + "\n" + payload
}
