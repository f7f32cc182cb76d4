// Package audit holds supplemental, explicitly non-core features: a chain
// anchor signer and a recent-verification ring buffer for the demo server's
// /status endpoint and the CLI's tail command. Neither is part of the ASH
// protocol itself — spec.md excludes authentication and signing from the
// core — they exist only so an external auditor can attest "this proof
// chain existed at time T" independent of trusting the context store.
package audit

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

// Signer holds an Ed25519 keypair used to anchor the head of a proof
// chain. It signs ChainHash values only, never request payloads, so it
// cannot be mistaken for the ASH protocol's own integrity mechanism.
// Adapted from the teacher's internal/crypto.Signer.
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner loads an existing key from keyPath, or generates and persists
// a new Ed25519 keypair (hex-encoded, 0600 permissions) if none exists.
func NewSigner(keyPath string) (*Signer, error) {
	privateKey, err := loadPrivateKey(keyPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading private key: %w", err)
		}
		publicKey, privateKey, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, fmt.Errorf("generating keypair: %w", genErr)
		}
		if err := savePrivateKey(keyPath, privateKey); err != nil {
			return nil, fmt.Errorf("saving private key: %w", err)
		}
		return &Signer{privateKey: privateKey, publicKey: publicKey}, nil
	}

	publicKey := privateKey.Public().(ed25519.PublicKey)
	return &Signer{privateKey: privateKey, publicKey: publicKey}, nil
}

// SignChainHash signs a ChainHash (or any other hex hash) and returns the
// hex-encoded Ed25519 signature.
func (s *Signer) SignChainHash(hash string) string {
	signature := ed25519.Sign(s.privateKey, []byte(hash))
	return hex.EncodeToString(signature)
}

// PublicKey returns the signer's public key, hex-encoded.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.publicKey)
}

// RotateKey generates a fresh keypair, persists it to keyPath, and updates
// the signer in place. Returns the old and new public keys, hex-encoded.
func (s *Signer) RotateKey(keyPath string) (oldPublicKey, newPublicKey string, err error) {
	oldPublicKey = s.PublicKey()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating new keypair: %w", err)
	}
	if err := savePrivateKey(keyPath, priv); err != nil {
		return "", "", fmt.Errorf("saving rotated key: %w", err)
	}

	s.privateKey = priv
	s.publicKey = pub
	return oldPublicKey, s.PublicKey(), nil
}

// VerifyChainHashSignature reports whether signatureHex is a valid
// Ed25519 signature over hash under this signer's public key.
func (s *Signer) VerifyChainHashSignature(hash, signatureHex string) bool {
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.publicKey, []byte(hash), signature)
}

// VerifyDetached verifies an Ed25519 signature over hash using a raw,
// hex-encoded public key, for callers such as ashctl's "chain verify"
// subcommand that have only the public key on hand, not a live Signer.
func VerifyDetached(publicKeyHex, hash, signatureHex string) bool {
	pubKeyBytes, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pubKeyBytes) != ed25519.PublicKeySize {
		return false
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(hash), signature)
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	keyBytes, err := hex.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: expected %d, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}

func savePrivateKey(path string, key ed25519.PrivateKey) error {
	return os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600)
}
