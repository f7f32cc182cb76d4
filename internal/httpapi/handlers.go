package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/slyt3/ash"
	"github.com/slyt3/ash/internal/audit"
	"github.com/slyt3/ash/internal/config"
	"github.com/slyt3/ash/internal/contextstore"
	"github.com/slyt3/ash/internal/logging"
	"github.com/slyt3/ash/internal/pool"
	"github.com/slyt3/ash/internal/worker"
)

const defaultNonceBytes = 16

// Handlers holds the dependencies the demo server's endpoints need: a
// context store, the recent-verification history, a policy engine, the
// background sweeper, and the chain-anchor signer, mirroring the
// teacher's Handlers{Core *core.Engine} shape but composed from this
// repo's own collaborators instead of one monolithic engine.
type Handlers struct {
	Store   contextstore.Store
	History *audit.VerificationRing
	Policy  *config.Engine
	Sweeper *worker.Sweeper
	Signer  *audit.Signer

	anchorMu      sync.Mutex
	lastChainHash string
	lastAnchorSig string
}

// NewHandlers wires the demo server's dependencies together.
func NewHandlers(store contextstore.Store, history *audit.VerificationRing, policy *config.Engine, sweeper *worker.Sweeper, signer *audit.Signer) *Handlers {
	return &Handlers{Store: store, History: history, Policy: policy, Sweeper: sweeper, Signer: signer}
}

type issueContextRequest struct {
	Binding string `json:"binding"`
	TTLMs   int64  `json:"ttl_ms"`
}

type issueContextResponse struct {
	ContextID    string `json:"context_id"`
	Binding      string `json:"binding"`
	Mode         string `json:"mode"`
	Nonce        string `json:"nonce"`
	ClientSecret string `json:"client_secret"`
	ExpiresAt    int64  `json:"expires_at"`
}

// HandleIssueContext creates a new context for a (method, path) binding.
// The nonce is returned exactly once here — spec's DATA MODEL calls this
// the handshake — and never again by any other endpoint.
func (h *Handlers) HandleIssueContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apiError{Code: "ASH_MALFORMED_REQUEST", Message: "method not allowed"})
		return
	}

	var req issueContextRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apiError{Code: "ASH_MALFORMED_REQUEST", Message: "invalid JSON body"})
		return
	}

	binding, err := ash.NormalizeBinding(methodFromBinding(req.Binding), pathFromBinding(req.Binding))
	if err != nil {
		writeASHError(w, err)
		return
	}

	minMode, requireChain, matchedRule := h.Policy.RequirementsFor(binding)
	_ = requireChain
	_ = matchedRule

	ttl := req.TTLMs
	if ttl <= 0 {
		ttl = 5 * 60 * 1000
	}

	nonce, err := ash.GenerateNonce(defaultNonceBytes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, apiError{Code: "ASH_INTERNAL", Message: "nonce generation failed"})
		return
	}

	now := time.Now().UnixMilli()
	sc, err := h.Store.Issue(binding, minMode, nonce, now, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, apiError{Code: "ASH_INTERNAL", Message: "context issuance failed"})
		return
	}

	clientSecret, err := ash.DeriveClientSecret(nonce, sc.ContextID, binding)
	if err != nil {
		writeError(w, http.StatusInternalServerError, apiError{Code: "ASH_INTERNAL", Message: "client secret derivation failed"})
		return
	}

	logging.Info("context issued", logging.Fields{ContextID: sc.ContextID, Binding: binding, Mode: sc.Mode.String(), Component: "httpapi"})

	writeJSON(w, http.StatusCreated, issueContextResponse{
		ContextID:    sc.ContextID,
		Binding:      sc.Binding,
		Mode:         sc.Mode.String(),
		Nonce:        nonce,
		ClientSecret: clientSecret,
		ExpiresAt:    sc.ExpiresAt,
	})
}

type verifyRequest struct {
	ContextID     string   `json:"context_id"`
	ProofVersion  string   `json:"proof_version"`
	Timestamp     string   `json:"timestamp"`
	Payload       string   `json:"payload"`
	Proof         string   `json:"proof"`
	Scope         []string `json:"scope,omitempty"`
	ScopeHash     string   `json:"scope_hash,omitempty"`
	PreviousProof string   `json:"previous_proof,omitempty"`
	ChainHash     string   `json:"chain_hash,omitempty"`
}

type verifyResponse struct {
	Verified bool `json:"verified"`
}

// HandleVerify checks a submitted proof against the stored context and
// consumes the context on success, so a replayed request is rejected on
// its second attempt regardless of whether the proof itself still matches.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, apiError{Code: "ASH_MALFORMED_REQUEST", Message: "method not allowed"})
		return
	}

	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apiError{Code: "ASH_MALFORMED_REQUEST", Message: "invalid JSON body"})
		return
	}

	sc, err := h.Store.Get(req.ContextID)
	if err != nil {
		writeError(w, http.StatusNotFound, apiError{Code: codeInvalidContext, Message: "unknown context"})
		return
	}

	now := time.Now().UnixMilli()
	pass := h.checkProof(sc, req)

	outcome := audit.VerificationOutcome{
		ContextID:    sc.ContextID,
		Binding:      sc.Binding,
		Mode:         sc.Mode,
		ProofVersion: req.ProofVersion,
		Pass:         pass,
		TimestampMs:  now,
	}
	h.History.Record(outcome)

	if !pass {
		writeError(w, http.StatusBadRequest, apiError{Code: codeProofRejected, Message: "proof verification failed"})
		return
	}

	if err := h.Store.Consume(sc.ContextID, now); err != nil {
		switch err {
		case contextstore.ErrAlreadyConsumed:
			writeError(w, http.StatusConflict, apiError{Code: codeReplayDetected, Message: "context already consumed"})
		case contextstore.ErrExpired:
			writeError(w, http.StatusGone, apiError{Code: codeContextExpired, Message: "context expired"})
		default:
			writeError(w, http.StatusInternalServerError, apiError{Code: "ASH_INTERNAL", Message: "consume failed"})
		}
		return
	}

	if req.ChainHash != "" {
		h.anchorChainHash(req.ChainHash)
	}

	writeJSON(w, http.StatusOK, verifyResponse{Verified: true})
}

// anchorChainHash signs the head of a verified proof chain with the
// server's Ed25519 signer so an external auditor can later confirm, via
// ashctl chain verify, that this chain hash was witnessed by this server
// at some point — independent of trusting the context store.
func (h *Handlers) anchorChainHash(chainHash string) {
	if h.Signer == nil {
		return
	}
	signature := h.Signer.SignChainHash(chainHash)

	h.anchorMu.Lock()
	h.lastChainHash = chainHash
	h.lastAnchorSig = signature
	h.anchorMu.Unlock()
}

func (h *Handlers) checkProof(sc *contextstore.StoredContext, req verifyRequest) bool {
	switch req.ProofVersion {
	case "v1":
		return ash.VerifyProofV1(sc.Mode, sc.Binding, sc.ContextID, nil, req.Payload, req.Proof)
	case "v2.1":
		canonical, err := ash.CanonicalizeJSON(req.Payload)
		if err != nil {
			return false
		}
		bodyHash := ash.HashBody(canonical)
		return ash.VerifyProofV21(sc.Nonce, sc.ContextID, sc.Binding, req.Timestamp, bodyHash, req.Proof)
	case "v2.3", "unified":
		return ash.VerifyProofUnified(sc.Nonce, sc.ContextID, sc.Binding, req.Timestamp, req.Payload, req.Proof, req.Scope, req.ScopeHash, req.PreviousProof, req.ChainHash)
	default:
		return false
	}
}

type statusResponse struct {
	SweepRuns          uint64                      `json:"sweep_runs"`
	ContextsSwept      uint64                      `json:"contexts_swept"`
	RecentChecks       []audit.VerificationOutcome `json:"recent_checks"`
	FailureCount       int                         `json:"recent_failure_count"`
	PolicyVersion      string                      `json:"policy_version"`
	PolicyRules        int                         `json:"policy_rule_count"`
	ChainAnchorKey     string                      `json:"chain_anchor_public_key,omitempty"`
	LastChainHash      string                      `json:"last_chain_hash,omitempty"`
	LastChainSignature string                      `json:"last_chain_signature,omitempty"`
}

// HandleStatus exposes recent verification history, sweeper counters, and
// the most recent chain anchor signature — the read-only operational
// window into the demo server, analogous to the teacher's HandleStats
// endpoint.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runs, swept := h.Sweeper.Stats()

	var publicKey, chainHash, signature string
	if h.Signer != nil {
		publicKey = h.Signer.PublicKey()
		h.anchorMu.Lock()
		chainHash, signature = h.lastChainHash, h.lastAnchorSig
		h.anchorMu.Unlock()
	}

	writeJSON(w, http.StatusOK, statusResponse{
		SweepRuns:          runs,
		ContextsSwept:      swept,
		RecentChecks:       h.History.Recent(),
		FailureCount:       h.History.FailureCount(),
		PolicyVersion:      h.Policy.Version(),
		PolicyRules:        h.Policy.RuleCount(),
		ChainAnchorKey:     publicKey,
		LastChainHash:      chainHash,
		LastChainSignature: signature,
	})
}

// HandleHealth is a liveness probe: always 200 if the process can respond.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// decodeBody reads the request body through the shared buffer pool —
// spec's domain stack calls for request-body reads to reuse pooled
// buffers rather than allocate fresh ones per request — then unmarshals
// it into v.
func decodeBody(r *http.Request, v any) error {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := buf.ReadFrom(r.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("response encode failed", logging.Fields{Component: "httpapi", Error: err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, apiErr apiError) {
	writeJSON(w, status, apiErr)
}

func writeASHError(w http.ResponseWriter, err error) {
	if ashErr, ok := err.(*ash.Error); ok {
		writeError(w, ashErr.HTTPStatus(), apiError{Code: ashErr.Code(), Message: ashErr.Error()})
		return
	}
	writeError(w, http.StatusBadRequest, apiError{Code: "ASH_MALFORMED_REQUEST", Message: err.Error()})
}
