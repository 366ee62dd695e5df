package proxy

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avb-is-me/codespace-executor/policy"
)

func TestConnectTunnelDeniedByDomainPolicy(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	_, endpoint := startTestProxy(t, Config{}) // deny-all default

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(mustParseURL("http://" + endpoint)),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	_, err := client.Get(upstream.URL)
	if err == nil {
		t.Fatal("expected the CONNECT tunnel to be denied by the deny-all default policy")
	}
}

func TestConnectTunnelAllowedSplicesTraffic(t *testing.T) {
	upstream := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tls-ok"))
	}))
	defer upstream.Close()

	hostOnly, _, _ := splitHostPortForTest(upstream.Listener.Addr().String())
	p, endpoint := startTestProxy(t, Config{Policy: &policy.Policy{AllowedDomains: []string{hostOnly}}})

	client := &http.Client{
		Transport: &http.Transport{
			Proxy:           http.ProxyURL(mustParseURL("http://" + endpoint)),
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Get(upstream.URL)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "tls-ok" {
		t.Errorf("body = %q, want %q", body, "tls-ok")
	}

	entries := p.AuditSnapshot()
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 audit entry for the CONNECT tunnel, got %d", len(entries))
	}
	if entries[0].Blocked {
		t.Error("allowed tunnel should not be marked Blocked")
	}
}
