// Command ashctl is the operator CLI for the ASH demo server, adapted from
// the teacher's cmd/vouch-cli flag-subcommand dispatch.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/slyt3/ash"
	"github.com/slyt3/ash/internal/audit"
	"github.com/slyt3/ash/internal/config"
	"github.com/slyt3/ash/internal/contextstore"
	"github.com/slyt3/ash/internal/httpapi"
	"github.com/slyt3/ash/internal/worker"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "canonicalize":
		canonicalizeCommand()
	case "bind":
		bindCommand()
	case "context":
		contextCommand()
	case "proof":
		proofCommand()
	case "chain":
		chainCommand()
	case "tail":
		tailCommand()
	case "serve":
		serveCommand()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("ashctl - ASH protocol command line tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ashctl canonicalize <json-file>       Print canonical JSON for a file")
	fmt.Println("  ashctl bind <method> <path>            Print a normalized binding string")
	fmt.Println("  ashctl context issue <method> <path>    Issue a context against a running server")
	fmt.Println("  ashctl proof build v1 ...               Build a v1 proof")
	fmt.Println("  ashctl proof verify v1 ...               Verify a v1 proof")
	fmt.Println("  ashctl chain verify <hash> <sig> <pubkey>  Verify a chain anchor signature")
	fmt.Println("  ashctl tail [--addr http://localhost:8443]  Poll /v1/status and print recent checks")
	fmt.Println("  ashctl serve [--addr :8443] [--policy ash-policy.yaml] [--db ash-contexts.db]")
}

func canonicalizeCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ashctl canonicalize <json-file>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[2])
	if err != nil {
		log.Fatalf("reading file: %v", err)
	}
	out, err := ash.CanonicalizeJSON(string(data))
	if err != nil {
		log.Fatalf("canonicalization failed: %v", err)
	}
	fmt.Println(out)
}

func bindCommand() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: ashctl bind <method> <path>")
		os.Exit(1)
	}
	out, err := ash.NormalizeBinding(os.Args[2], os.Args[3])
	if err != nil {
		log.Fatalf("binding normalization failed: %v", err)
	}
	fmt.Println(out)
}

func contextCommand() {
	if len(os.Args) < 3 || os.Args[2] != "issue" {
		fmt.Println("Usage: ashctl context issue <method> <path> [--addr http://localhost:8443]")
		os.Exit(1)
	}
	if len(os.Args) < 5 {
		fmt.Println("Usage: ashctl context issue <method> <path> [--addr http://localhost:8443]")
		os.Exit(1)
	}
	flags := flag.NewFlagSet("context issue", flag.ExitOnError)
	addr := flags.String("addr", "http://localhost:8443", "demo server base URL")
	_ = flags.Parse(os.Args[5:])

	binding := os.Args[3] + " " + os.Args[4]
	body, _ := json.Marshal(map[string]any{"binding": binding, "ttl_ms": 300000})
	resp, err := http.Post(*addr+"/v1/contexts", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("failed to contact demo server: %v", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("reading response: %v", err)
	}
	fmt.Println(string(out))
}

func proofCommand() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: ashctl proof build|verify v1 ...")
		os.Exit(1)
	}
	switch os.Args[2] {
	case "build":
		proofBuildCommand()
	case "verify":
		proofVerifyCommand()
	default:
		fmt.Printf("Unknown proof subcommand: %s\n", os.Args[2])
		os.Exit(1)
	}
}

func proofBuildCommand() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: ashctl proof build v1 --binding ... --context-id ... --payload ...")
		os.Exit(1)
	}

	flags := flag.NewFlagSet("proof build", flag.ExitOnError)
	mode := flags.String("mode", "balanced", "ASH mode")
	binding := flags.String("binding", "", "normalized binding")
	contextID := flags.String("context-id", "", "context id")
	payload := flags.String("payload", "{}", "JSON payload")
	_ = flags.Parse(os.Args[4:])

	switch os.Args[3] {
	case "v1":
		m, err := ash.ParseMode(*mode)
		if err != nil {
			log.Fatalf("invalid mode: %v", err)
		}
		canonical, err := ash.CanonicalizeJSON(*payload)
		if err != nil {
			log.Fatalf("canonicalization failed: %v", err)
		}
		proof, err := ash.BuildProofV1(m, *binding, *contextID, nil, canonical)
		if err != nil {
			log.Fatalf("proof build failed: %v", err)
		}
		fmt.Println(proof)
	default:
		fmt.Printf("Unsupported proof version for build: %s\n", os.Args[3])
		os.Exit(1)
	}
}

func proofVerifyCommand() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: ashctl proof verify v1 --binding ... --context-id ... --payload ... --proof ...")
		os.Exit(1)
	}

	flags := flag.NewFlagSet("proof verify", flag.ExitOnError)
	mode := flags.String("mode", "balanced", "ASH mode")
	binding := flags.String("binding", "", "normalized binding")
	contextID := flags.String("context-id", "", "context id")
	payload := flags.String("payload", "{}", "JSON payload")
	proof := flags.String("proof", "", "proof to verify")
	_ = flags.Parse(os.Args[4:])

	switch os.Args[3] {
	case "v1":
		m, err := ash.ParseMode(*mode)
		if err != nil {
			log.Fatalf("invalid mode: %v", err)
		}
		canonical, err := ash.CanonicalizeJSON(*payload)
		if err != nil {
			log.Fatalf("canonicalization failed: %v", err)
		}
		ok := ash.VerifyProofV1(m, *binding, *contextID, nil, canonical, *proof)
		if ok {
			fmt.Println("valid")
		} else {
			fmt.Println("invalid")
			os.Exit(1)
		}
	default:
		fmt.Printf("Unsupported proof version for verify: %s\n", os.Args[3])
		os.Exit(1)
	}
}

func chainCommand() {
	if len(os.Args) < 3 || os.Args[2] != "verify" {
		fmt.Println("Usage: ashctl chain verify <hash> <sig> <pubkey>")
		os.Exit(1)
	}
	if len(os.Args) < 6 {
		fmt.Println("Usage: ashctl chain verify <hash> <sig> <pubkey>")
		os.Exit(1)
	}

	hash, sig, pubKey := os.Args[3], os.Args[4], os.Args[5]
	if audit.VerifyDetached(pubKey, hash, sig) {
		fmt.Println("valid")
	} else {
		fmt.Println("invalid")
		os.Exit(1)
	}
}

type statusView struct {
	SweepRuns     uint64 `json:"sweep_runs"`
	ContextsSwept uint64 `json:"contexts_swept"`
	RecentChecks  []struct {
		ContextID    string `json:"ContextID"`
		Binding      string `json:"Binding"`
		ProofVersion string `json:"ProofVersion"`
		Pass         bool   `json:"Pass"`
		TimestampMs  int64  `json:"TimestampMs"`
	} `json:"recent_checks"`
	FailureCount       int    `json:"recent_failure_count"`
	PolicyVersion      string `json:"policy_version"`
	PolicyRules        int    `json:"policy_rule_count"`
	ChainAnchorKey     string `json:"chain_anchor_public_key"`
	LastChainHash      string `json:"last_chain_hash"`
	LastChainSignature string `json:"last_chain_signature"`
}

func tailCommand() {
	flags := flag.NewFlagSet("tail", flag.ExitOnError)
	addr := flags.String("addr", "http://localhost:8443", "demo server base URL")
	_ = flags.Parse(os.Args[2:])

	resp, err := http.Get(*addr + "/v1/status")
	if err != nil {
		log.Fatalf("failed to contact demo server: %v", err)
	}
	defer resp.Body.Close()

	var status statusView
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		log.Fatalf("decoding status: %v", err)
	}

	fmt.Printf("policy %s (%d rules) — %d sweep runs, %d contexts swept, %d/%d recent checks failed\n",
		status.PolicyVersion, status.PolicyRules, status.SweepRuns, status.ContextsSwept,
		status.FailureCount, len(status.RecentChecks))
	if status.LastChainHash != "" {
		fmt.Printf("chain anchor %s: %s signed %s\n", status.ChainAnchorKey, status.LastChainHash, status.LastChainSignature)
	}
	for _, c := range status.RecentChecks {
		result := "PASS"
		if !c.Pass {
			result = "FAIL"
		}
		fmt.Printf("  [%s] %-20s %-10s %s\n", result, c.Binding, c.ProofVersion, c.ContextID)
	}
}

func serveCommand() {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", ":8443", "listen address")
	policyPath := flags.String("policy", "ash-policy.yaml", "policy file path")
	dbPath := flags.String("db", "ash-contexts.db", "sqlite context store path")
	historySize := flags.Int("history", 256, "recent verification history size")
	sweepInterval := flags.Duration("sweep-interval", time.Minute, "context sweep interval")
	keyPath := flags.String("key", "ash-signing-key.hex", "chain anchor Ed25519 private key path")
	_ = flags.Parse(os.Args[2:])

	engine, err := config.NewEngine(*policyPath)
	if err != nil {
		log.Fatalf("loading policy: %v", err)
	}

	store, err := contextstore.NewSQLiteStore(*dbPath)
	if err != nil {
		log.Fatalf("opening context store: %v", err)
	}

	history, err := audit.NewVerificationRing(*historySize)
	if err != nil {
		log.Fatalf("creating verification history: %v", err)
	}

	sweeper, err := worker.NewSweeper(store, *sweepInterval)
	if err != nil {
		log.Fatalf("creating sweeper: %v", err)
	}
	sweeper.Start()

	signer, err := audit.NewSigner(*keyPath)
	if err != nil {
		log.Fatalf("loading chain anchor key: %v", err)
	}

	handlers := httpapi.NewHandlers(store, history, engine, sweeper, signer)
	mux := httpapi.NewMux(handlers)

	log.Printf("ashctl serve listening on %s (policy version %s, %d rules, chain anchor key %s)", *addr, engine.Version(), engine.RuleCount(), signer.PublicKey())
	if err := http.ListenAndServe(*addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
