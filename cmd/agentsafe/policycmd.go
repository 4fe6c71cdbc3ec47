package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentsafe/agentsafe/internal/signing"
)

func newPolicyCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "policy",
		Short: "Build and verify signed policy bundles",
	}

	bundle := &cobra.Command{
		Use:   "bundle <policy-file> <bundle-out>",
		Short: "Build a bundle manifest (hash, no signature) for a policy file",
		Args:  cobra.ExactArgs(2),
		RunE:  runPolicyBundle,
	}

	verify := &cobra.Command{
		Use:   "verify <policy-file> <bundle-file>",
		Short: "Verify a policy file against its bundle hash (and signature, if --public-key is set)",
		Args:  cobra.ExactArgs(2),
		RunE:  runPolicyVerify,
	}
	verify.Flags().String("public-key", "", "PEM-encoded Ed25519 public key to verify the detached signature")

	root.AddCommand(bundle, verify)
	return root
}

func runPolicyBundle(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	policyPath, bundlePath := args[0], args[1]

	b, err := signing.BuildBundle(policyPath, filepath.Base(policyPath))
	if err != nil {
		return fmt.Errorf("building bundle: %w", err)
	}
	if err := signing.WriteBundle(bundlePath, b); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	fmt.Printf("wrote %s (sha256=%s)\n", bundlePath, b.PolicySHA256)
	return nil
}

func runPolicyVerify(cmd *cobra.Command, args []string) error {
	configureLogging(debugFlag(cmd))
	policyPath, bundlePath := args[0], args[1]

	ok, err := signing.VerifyBundleHash(policyPath, bundlePath)
	if err != nil {
		return fmt.Errorf("verifying hash: %w", err)
	}
	if !ok {
		fmt.Fprintln(os.Stderr, "hash mismatch")
		os.Exit(exitBlocked)
	}
	fmt.Println("hash ok")

	if pubKeyPath, _ := cmd.Flags().GetString("public-key"); pubKeyPath != "" {
		pemBytes, err := os.ReadFile(pubKeyPath)
		if err != nil {
			return fmt.Errorf("reading public key: %w", err)
		}
		ok, err := signing.VerifyBundleSignature(policyPath, bundlePath, pemBytes)
		if err != nil {
			return fmt.Errorf("verifying signature: %w", err)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "signature invalid")
			os.Exit(exitBlocked)
		}
		fmt.Println("signature ok")
	}
	return nil
}
