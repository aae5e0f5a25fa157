package courier

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Signer holds the node's Ed25519 keypair used to sign event records.
// Signatures make the log independently verifiable: anyone holding the
// node's public key can check that an event was emitted by this node
// and not altered after the fact.
type Signer struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

// NewSigner generates a fresh keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	return &Signer{pub: pub, priv: priv}, nil
}

// LoadSigner derives a keypair from a base64-encoded 32-byte seed so a
// node keeps its identity across restarts.
func LoadSigner(seedB64 string) (*Signer, error) {
	seed, err := base64.StdEncoding.DecodeString(seedB64)
	if err != nil {
		return nil, fmt.Errorf("decode signing seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed length: got %d bytes, expected %d", len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{pub: priv.Public().(ed25519.PublicKey), priv: priv}, nil
}

// Sign returns the base64 signature over the canonical content string.
func (s *Signer) Sign(content string) string {
	sig := ed25519.Sign(s.priv, []byte(content))
	return base64.StdEncoding.EncodeToString(sig)
}

// PublicKeyB64 returns the public key in base64 for publication.
func (s *Signer) PublicKeyB64() string {
	return base64.StdEncoding.EncodeToString(s.pub)
}

// VerifyEventSignature checks an event's signature against a base64
// public key. Events without a signature never verify.
func VerifyEventSignature(e Event, pubB64 string) bool {
	if e.Signature == "" {
		return false
	}
	pub, err := base64.StdEncoding.DecodeString(pubB64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(e.ContentString()), sig)
}
