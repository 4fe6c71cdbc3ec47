// Package signing implements policy-bundle integrity verification: a
// SHA-256 hash of the policy file plus a detached Ed25519 signature over
// the same bytes (spec §4.8). No ecosystem repo in the retrieval pack uses
// a non-stdlib Ed25519 implementation, so crypto/ed25519 is used directly
// (see DESIGN.md).
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
)

// Bundle is the signed manifest document (spec §6 bundle.json).
type Bundle struct {
	Version      int       `json:"version"`
	PolicyFile   string    `json:"policy_file"`
	PolicySHA256 string    `json:"policy_sha256"`
	Signature    Signature `json:"signature"`
}

// Signature carries the detached signature over the policy file bytes.
type Signature struct {
	Algorithm string `json:"algorithm"`
	SigB64    string `json:"sig_b64"`
}

// SigningError distinguishes a structural/crypto failure (missing
// signature, wrong key type, unreadable key) from an ordinary "signature
// does not verify" false result.
type SigningError struct {
	msg string
}

func (e *SigningError) Error() string { return e.msg }

func signingErrf(format string, args ...any) error {
	return &SigningError{msg: fmt.Sprintf(format, args...)}
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func loadBundle(bundlePath string) (Bundle, error) {
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading bundle %s: %w", bundlePath, err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return Bundle{}, fmt.Errorf("parsing bundle %s: %w", bundlePath, err)
	}
	return b, nil
}

// BuildBundle computes a bundle document for policyPath without a
// signature attached (the caller signs and sets Signature separately, or
// this is used purely for hash verification).
func BuildBundle(policyPath, policyFileName string) (Bundle, error) {
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("reading policy %s: %w", policyPath, err)
	}
	return Bundle{
		Version:      1,
		PolicyFile:   policyFileName,
		PolicySHA256: sha256Hex(data),
	}, nil
}

// WriteBundle writes bundle as JSON to path.
func WriteBundle(path string, bundle Bundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bundle: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// VerifyBundleHash recomputes the SHA-256 of policyPath and compares it to
// the bundle's recorded hash.
func VerifyBundleHash(policyPath, bundlePath string) (bool, error) {
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return false, fmt.Errorf("reading policy %s: %w", policyPath, err)
	}
	bundle, err := loadBundle(bundlePath)
	if err != nil {
		return false, err
	}
	return sha256Hex(data) == bundle.PolicySHA256, nil
}

// VerifyBundleSignature verifies the bundle's detached Ed25519 signature
// over the raw policy file bytes using the PEM-encoded public key. A
// missing signature or a PEM block that does not decode to an Ed25519 key
// is a SigningError; a well-formed but invalid signature returns
// (false, nil).
func VerifyBundleSignature(policyPath, bundlePath string, publicKeyPEM []byte) (bool, error) {
	data, err := os.ReadFile(policyPath)
	if err != nil {
		return false, fmt.Errorf("reading policy %s: %w", policyPath, err)
	}
	bundle, err := loadBundle(bundlePath)
	if err != nil {
		return false, err
	}
	if bundle.Signature.SigB64 == "" {
		return false, signingErrf("bundle %s has no signature", bundlePath)
	}
	if bundle.Signature.Algorithm != "" && bundle.Signature.Algorithm != "ed25519" {
		return false, signingErrf("unsupported signature algorithm: %s", bundle.Signature.Algorithm)
	}

	sig, err := base64.StdEncoding.DecodeString(bundle.Signature.SigB64)
	if err != nil {
		return false, signingErrf("decoding signature base64: %v", err)
	}

	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return false, signingErrf("no PEM block found in public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false, signingErrf("parsing public key: %v", err)
	}
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		return false, signingErrf("public key is not an Ed25519 key")
	}

	return ed25519.Verify(edPub, data, sig), nil
}
