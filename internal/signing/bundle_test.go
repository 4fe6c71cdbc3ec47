package signing

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func writePolicy(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing policy: %v", err)
	}
	return path
}

func TestVerifyBundleHash(t *testing.T) {
	dir := t.TempDir()
	policyPath := writePolicy(t, dir, "policy_id: demo\n")

	bundle, err := BuildBundle(policyPath, "policy.yaml")
	if err != nil {
		t.Fatalf("BuildBundle: %v", err)
	}
	bundlePath := filepath.Join(dir, "bundle.json")
	if err := WriteBundle(bundlePath, bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	ok, err := VerifyBundleHash(policyPath, bundlePath)
	if err != nil {
		t.Fatalf("VerifyBundleHash: %v", err)
	}
	if !ok {
		t.Fatalf("expected hash to verify for unmodified policy")
	}

	if err := os.WriteFile(policyPath, []byte("policy_id: demoX\n"), 0o644); err != nil {
		t.Fatalf("modifying policy: %v", err)
	}
	ok, err = VerifyBundleHash(policyPath, bundlePath)
	if err != nil {
		t.Fatalf("VerifyBundleHash: %v", err)
	}
	if ok {
		t.Fatalf("expected hash mismatch after modifying policy")
	}
}

func TestVerifyBundleSignature(t *testing.T) {
	dir := t.TempDir()
	policyPath := writePolicy(t, dir, "policy_id: demo\n")
	data, _ := os.ReadFile(policyPath)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	sig := ed25519.Sign(priv, data)

	bundle, err := BuildBundle(policyPath, "policy.yaml")
	if err != nil {
		t.Fatalf("BuildBundle: %v", err)
	}
	bundle.Signature = Signature{Algorithm: "ed25519", SigB64: base64.StdEncoding.EncodeToString(sig)}
	bundlePath := filepath.Join(dir, "bundle.json")
	if err := WriteBundle(bundlePath, bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	pkixBytes, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("MarshalPKIXPublicKey: %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkixBytes})

	ok, err := VerifyBundleSignature(policyPath, bundlePath, pubPEM)
	if err != nil {
		t.Fatalf("VerifyBundleSignature: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid signature to verify")
	}

	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	otherPKIX, _ := x509.MarshalPKIXPublicKey(otherPub)
	otherPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: otherPKIX})
	ok, err = VerifyBundleSignature(policyPath, bundlePath, otherPEM)
	if err != nil {
		t.Fatalf("VerifyBundleSignature with wrong key: %v", err)
	}
	if ok {
		t.Fatalf("expected signature verification to fail with the wrong public key")
	}
}

func TestVerifyBundleSignatureMissing(t *testing.T) {
	dir := t.TempDir()
	policyPath := writePolicy(t, dir, "policy_id: demo\n")

	bundle, err := BuildBundle(policyPath, "policy.yaml")
	if err != nil {
		t.Fatalf("BuildBundle: %v", err)
	}
	bundlePath := filepath.Join(dir, "bundle.json")
	if err := WriteBundle(bundlePath, bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}

	pub, _, _ := ed25519.GenerateKey(nil)
	pkixBytes, _ := x509.MarshalPKIXPublicKey(pub)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkixBytes})

	if _, err := VerifyBundleSignature(policyPath, bundlePath, pubPEM); err == nil {
		t.Fatalf("expected SigningError for missing signature")
	}
}
