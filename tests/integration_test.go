// Package tests holds cross-package integration and tamper scenarios that
// exercise the ash core together with its stateful collaborators
// (internal/contextstore, internal/httpapi, internal/worker): scoped and
// chained (E5, E6) proofs through the demo server end to end. E1-E4 are
// covered by the root package's unit tests.
package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/slyt3/ash"
	"github.com/slyt3/ash/internal/audit"
	"github.com/slyt3/ash/internal/config"
	"github.com/slyt3/ash/internal/contextstore"
	"github.com/slyt3/ash/internal/httpapi"
	"github.com/slyt3/ash/internal/worker"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Defaults.Mode = "balanced"
	cfg.Defaults.RequireChain = false
	engine := config.NewEngineForTest(cfg)

	store := contextstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	history, err := audit.NewVerificationRing(32)
	if err != nil {
		t.Fatalf("creating verification history: %v", err)
	}

	sweeper, err := worker.NewSweeper(store, time.Hour)
	if err != nil {
		t.Fatalf("creating sweeper: %v", err)
	}
	sweeper.Start()
	t.Cleanup(func() { sweeper.Shutdown(time.Second) })

	signer, err := audit.NewSigner(filepath.Join(t.TempDir(), "chain-anchor-key.hex"))
	if err != nil {
		t.Fatalf("creating chain anchor signer: %v", err)
	}

	handlers := httpapi.NewHandlers(store, history, engine, sweeper, signer)
	srv := httptest.NewServer(httpapi.NewMux(handlers))
	t.Cleanup(srv.Close)
	return srv
}

type contextHandle struct {
	ContextID    string `json:"context_id"`
	Binding      string `json:"binding"`
	Mode         string `json:"mode"`
	Nonce        string `json:"nonce"`
	ClientSecret string `json:"client_secret"`
	ExpiresAt    int64  `json:"expires_at"`
}

func issueContext(t *testing.T, srv *httptest.Server, binding string) contextHandle {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"binding": binding, "ttl_ms": 300000})
	resp, err := http.Post(srv.URL+"/v1/contexts", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("issuing context: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("issuing context: got status %d", resp.StatusCode)
	}

	var h contextHandle
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decoding context response: %v", err)
	}
	return h
}

func submitVerify(t *testing.T, srv *httptest.Server, req map[string]any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(srv.URL+"/v1/verify", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submitting verify: %v", err)
	}
	return resp
}

// TestEndToEnd_UnifiedProofRoundTrip exercises scenario E5: issue a
// context, build a scoped unified proof, submit it, and confirm the server
// accepts it and then rejects a replay of the same proof.
func TestEndToEnd_UnifiedProofRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	h := issueContext(t, srv, "POST /transfer")

	payload := `{"amount":1000,"recipient":"acct-1","notes":"hello"}`
	scope := []string{"amount", "recipient"}
	timestamp := "1700000000000"

	up, err := ash.BuildProofUnified(h.ClientSecret, timestamp, h.Binding, payload, scope, "")
	if err != nil {
		t.Fatalf("building proof: %v", err)
	}

	req := map[string]any{
		"context_id":    h.ContextID,
		"proof_version": "v2.3",
		"timestamp":     timestamp,
		"payload":       payload,
		"proof":         up.Proof,
		"scope":         scope,
		"scope_hash":    up.ScopeHash,
	}

	resp := submitVerify(t, srv, req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first submission to verify, got status %d", resp.StatusCode)
	}

	resp2 := submitVerify(t, srv, req)
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Fatalf("expected replay to be rejected with 409, got %d", resp2.StatusCode)
	}
}

// TestEndToEnd_ChainedRequests exercises scenario E6: a second request
// carrying the first request's proof as previous_proof verifies, while a
// substituted previous_proof is rejected.
func TestEndToEnd_ChainedRequests(t *testing.T) {
	srv := newTestServer(t)

	h1 := issueContext(t, srv, "POST /step")
	up1, err := ash.BuildProofUnified(h1.ClientSecret, "100", h1.Binding, `{"step":1}`, nil, "")
	if err != nil {
		t.Fatalf("building proof 1: %v", err)
	}
	resp1 := submitVerify(t, srv, map[string]any{
		"context_id":    h1.ContextID,
		"proof_version": "v2.3",
		"timestamp":     "100",
		"payload":       `{"step":1}`,
		"proof":         up1.Proof,
	})
	resp1.Body.Close()
	if resp1.StatusCode != http.StatusOK {
		t.Fatalf("request 1 should verify, got %d", resp1.StatusCode)
	}

	h2 := issueContext(t, srv, "POST /step")
	up2, err := ash.BuildProofUnified(h2.ClientSecret, "200", h2.Binding, `{"step":2}`, nil, up1.Proof)
	if err != nil {
		t.Fatalf("building proof 2: %v", err)
	}
	resp2 := submitVerify(t, srv, map[string]any{
		"context_id":     h2.ContextID,
		"proof_version":  "v2.3",
		"timestamp":      "200",
		"payload":        `{"step":2}`,
		"proof":          up2.Proof,
		"previous_proof": up1.Proof,
		"chain_hash":     up2.ChainHash,
	})
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("request 2 should chain-verify, got %d", resp2.StatusCode)
	}

	statusResp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("fetching status: %v", err)
	}
	var status struct {
		ChainAnchorKey     string `json:"chain_anchor_public_key"`
		LastChainHash      string `json:"last_chain_hash"`
		LastChainSignature string `json:"last_chain_signature"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	statusResp.Body.Close()

	if status.LastChainHash != up2.ChainHash {
		t.Fatalf("expected status to report the verified chain hash %q, got %q", up2.ChainHash, status.LastChainHash)
	}
	if !audit.VerifyDetached(status.ChainAnchorKey, status.LastChainHash, status.LastChainSignature) {
		t.Fatal("expected the status endpoint's chain anchor signature to verify under its own public key")
	}

	h3 := issueContext(t, srv, "POST /step")
	up3, err := ash.BuildProofUnified(h3.ClientSecret, "300", h3.Binding, `{"step":3}`, nil, "not-the-real-predecessor")
	if err != nil {
		t.Fatalf("building proof 3: %v", err)
	}
	resp3 := submitVerify(t, srv, map[string]any{
		"context_id":     h3.ContextID,
		"proof_version":  "v2.3",
		"timestamp":      "300",
		"payload":        `{"step":3}`,
		"proof":          up3.Proof,
		"previous_proof": "some-other-actual-proof",
		"chain_hash":     up3.ChainHash,
	})
	resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Fatalf("request with substituted previous_proof should be rejected, got %d", resp3.StatusCode)
	}
}

// TestEndToEnd_ExpiredContextRejected confirms a context issued with a
// short-lived TTL is rejected once its expiry has passed.
func TestEndToEnd_ExpiredContextRejected(t *testing.T) {
	srv := newTestServer(t)

	body, _ := json.Marshal(map[string]any{"binding": "POST /x", "ttl_ms": 1})
	resp, err := http.Post(srv.URL+"/v1/contexts", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("issuing context: %v", err)
	}
	var h contextHandle
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decoding context response: %v", err)
	}
	resp.Body.Close()

	time.Sleep(5 * time.Millisecond)

	up, err := ash.BuildProofUnified(h.ClientSecret, "1", h.Binding, `{}`, nil, "")
	if err != nil {
		t.Fatalf("building proof: %v", err)
	}

	verifyResp := submitVerify(t, srv, map[string]any{
		"context_id":    h.ContextID,
		"proof_version": "v2.3",
		"timestamp":     "1",
		"payload":       `{}`,
		"proof":         up.Proof,
	})
	defer verifyResp.Body.Close()
	if verifyResp.StatusCode != http.StatusGone {
		t.Fatalf("expected expired context to be rejected with 410, got %d", verifyResp.StatusCode)
	}
}

// TestEndToEnd_V21ProofUsesCanonicalBody confirms the demo server hashes
// the canonical form of the payload for v2.1 verification, not its raw
// bytes, so a client-submitted payload with insignificant whitespace or
// key order still verifies against a proof built over its canonical form.
func TestEndToEnd_V21ProofUsesCanonicalBody(t *testing.T) {
	srv := newTestServer(t)
	h := issueContext(t, srv, "POST /orders")

	canonicalPayload := `{"item":"widget","qty":3}`
	rawPayload := "{\n  \"qty\": 3,\n  \"item\": \"widget\"\n}"
	timestamp := "1700000000000"

	canonical, err := ash.CanonicalizeJSON(canonicalPayload)
	if err != nil {
		t.Fatalf("canonicalizing payload: %v", err)
	}
	bodyHash := ash.HashBody(canonical)
	proof, err := ash.BuildProofV21(h.ClientSecret, timestamp, h.Binding, bodyHash)
	if err != nil {
		t.Fatalf("building v2.1 proof: %v", err)
	}

	resp := submitVerify(t, srv, map[string]any{
		"context_id":    h.ContextID,
		"proof_version": "v2.1",
		"timestamp":     timestamp,
		"payload":       rawPayload,
		"proof":         proof,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected v2.1 verification against a differently-formatted but canonically-equal body to succeed, got %d", resp.StatusCode)
	}
}

// TestEndToEnd_StatusEndpointReflectsHistory confirms /v1/status surfaces
// the verification outcomes recorded by previous requests.
func TestEndToEnd_StatusEndpointReflectsHistory(t *testing.T) {
	srv := newTestServer(t)
	h := issueContext(t, srv, "GET /health")

	up, err := ash.BuildProofUnified(h.ClientSecret, "1", h.Binding, `{}`, nil, "")
	if err != nil {
		t.Fatalf("building proof: %v", err)
	}
	resp := submitVerify(t, srv, map[string]any{
		"context_id":    h.ContextID,
		"proof_version": "v2.3",
		"timestamp":     "1",
		"payload":       `{}`,
		"proof":         up.Proof,
	})
	resp.Body.Close()

	statusResp, err := http.Get(srv.URL + "/v1/status")
	if err != nil {
		t.Fatalf("fetching status: %v", err)
	}
	defer statusResp.Body.Close()

	var status struct {
		RecentChecks []struct {
			Pass bool `json:"Pass"`
		} `json:"recent_checks"`
	}
	if err := json.NewDecoder(statusResp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if len(status.RecentChecks) == 0 {
		t.Fatal("expected at least one recorded verification outcome")
	}
	if !status.RecentChecks[len(status.RecentChecks)-1].Pass {
		t.Fatal("expected the most recent check to have passed")
	}
}
