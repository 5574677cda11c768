package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	var (
		prefix      string
		secretBytes int
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new caller id and shared secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, secret, err := generateCredential(prefix, secretBytes)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id: %s\n", id)
			fmt.Fprintf(out, "secret: %s\n", secret)
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "gk_", "caller id prefix")
	cmd.Flags().IntVar(&secretBytes, "secret-bytes", 32, "random bytes in the secret")
	return cmd
}

// generateCredential gera um id no alfabeto aceito pelo gatekeeper
// ([A-Za-z0-9_-]) e um segredo base64 url-safe.
func generateCredential(prefix string, secretBytes int) (string, string, error) {
	if secretBytes < 16 {
		return "", "", fmt.Errorf("secret-bytes must be >= 16, got %d", secretBytes)
	}
	idRaw := make([]byte, 16)
	if _, err := rand.Read(idRaw); err != nil {
		return "", "", err
	}
	secretRaw := make([]byte, secretBytes)
	if _, err := rand.Read(secretRaw); err != nil {
		return "", "", err
	}
	return prefix + hex.EncodeToString(idRaw), base64.RawURLEncoding.EncodeToString(secretRaw), nil
}
