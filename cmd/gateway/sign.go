package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"request-gatekeeper/middleware/gatekeeper"
	"request-gatekeeper/middleware/gatekeeper/application"

	"github.com/spf13/cobra"
)

func newSignCmd() *cobra.Command {
	var (
		method    string
		path      string
		body      string
		bodyFile  string
		callerID  string
		secret    string
		timestamp int64
		encoding  string
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the signing headers for a request (client-side helper)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if callerID == "" || secret == "" {
				return errors.New("--key and --secret are required")
			}
			payload := []byte(body)
			if bodyFile != "" {
				// #nosec G304 -- arquivo informado pelo operador
				b, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read body file: %w", err)
				}
				payload = b
			}
			if timestamp == 0 {
				timestamp = time.Now().Unix()
			}

			enc := application.SignatureEncoding(strings.ToLower(encoding))
			if enc != application.EncodingBase64 && enc != application.EncodingHex {
				return fmt.Errorf("unknown encoding %q", encoding)
			}
			sig := application.SignatureVerifier{Encoding: enc}.
				ExpectedSignature(method, path, payload, timestamp, callerID, []byte(secret))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", gatekeeper.HeaderAPIKey, callerID)
			fmt.Fprintf(out, "%s: %d\n", gatekeeper.HeaderTimestamp, timestamp)
			fmt.Fprintf(out, "%s: %s\n", gatekeeper.HeaderSignature, sig)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&method, "method", "X", "GET", "HTTP method")
	f.StringVarP(&path, "path", "p", "/", "request path including query string")
	f.StringVarP(&body, "data", "d", "", "request body")
	f.StringVar(&bodyFile, "data-file", "", "read request body from file")
	f.StringVarP(&callerID, "key", "k", "", "caller id (API key)")
	f.StringVarP(&secret, "secret", "s", "", "shared secret")
	f.Int64Var(&timestamp, "timestamp", 0, "unix seconds; defaults to now")
	f.StringVar(&encoding, "encoding", string(application.EncodingBase64), "signature encoding: base64 or hex")
	return cmd
}
