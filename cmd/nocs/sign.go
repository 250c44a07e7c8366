package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"nocs-settlement/internal/services/ondc"
	"nocs-settlement/pkg/errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type signOptions struct {
	file       string
	role       string
	subscriber string
	created    int64
	compact    bool
	verbose    bool
}

func newSignCmd(root *rootOptions) *cobra.Command {
	opts := &signOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the Authorization header for a request body",
		Long: `Sign reads a request body from --file (or stdin) and prints the
Authorization header value for it, signed with the collector key or, with
--as receiver, the receiver key. The body is signed byte for byte; pass
--compact to strip insignificant whitespace first and print the body that
was signed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSign(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "request body file, - for stdin")
	cmd.Flags().StringVar(&opts.role, "as", "collector", "signing identity: collector or receiver")
	cmd.Flags().StringVar(&opts.subscriber, "subscriber", "", "advertise a different subscriber id in keyId")
	cmd.Flags().Int64Var(&opts.created, "created", 0, "unix (created) time (default now)")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "compact the JSON body before signing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "also print the digest and signing string")
	return cmd
}

func runSign(cmd *cobra.Command, root *rootOptions, opts *signOptions) error {
	body, err := readBody(cmd, opts.file)
	if err != nil {
		return err
	}
	if opts.compact {
		var buf bytes.Buffer
		if err := json.Compact(&buf, body); err != nil {
			return errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid body", "body is not JSON")
		}
		body = buf.Bytes()
	}

	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.close()

	signers, err := a.signers()
	if err != nil {
		return err
	}

	var signer *ondc.RequestSigner
	switch opts.role {
	case "collector":
		signer = signers.Collector
	case "receiver":
		if signers.Receiver == nil {
			return errors.NewConfigurationError("receiver signing key is not configured")
		}
		signer = signers.Receiver
	default:
		return errors.NewConfigurationError(fmt.Sprintf("unknown signing identity %q", opts.role))
	}
	if opts.subscriber != "" {
		if signer, err = signer.WithSubscriberID(opts.subscriber); err != nil {
			return err
		}
	}

	now := time.Now()
	if opts.created > 0 {
		now = time.Unix(opts.created, 0)
	}
	header := signer.SignHeader(body, now)
	a.metrics.RecordSignatureGeneration()
	a.logger.Debug("body signed",
		zap.String("key_id", header.KeyID.String()),
		zap.Int64("created", header.Created),
		zap.Int("body_bytes", len(body)),
	)

	out := cmd.OutOrStdout()
	if opts.verbose {
		fmt.Fprintf(out, "digest: %s=%s\n", ondc.DigestAlgorithm, header.Digest)
		fmt.Fprintf(out, "signing string:\n%s\n", ondc.SigningString(header.Created, header.Expires, header.Digest))
	}
	if opts.compact {
		fmt.Fprintf(out, "body: %s\n", body)
	}
	fmt.Fprintln(out, header.String())
	return nil
}

type verifyOptions struct {
	file      string
	header    string
	publicKey string
}

func newVerifyCmd(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an Authorization header against a request body",
		Long: `Verify checks --header against the body read from --file (or stdin).
With --public-key the given key is used directly; otherwise the key is
looked up among the configured participants and SANDBOX_TRUSTED_KEYS, and
the created/expires window is enforced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runVerify(cmd.Context(), cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "request body file, - for stdin")
	cmd.Flags().StringVar(&opts.header, "header", "", "Authorization header value")
	cmd.Flags().StringVar(&opts.publicKey, "public-key", "", "base64 Ed25519 public key")
	_ = cmd.MarkFlagRequired("header")
	return cmd
}

func runVerify(ctx context.Context, cmd *cobra.Command, root *rootOptions, opts *verifyOptions) error {
	body, err := readBody(cmd, opts.file)
	if err != nil {
		return err
	}

	var params *ondc.SignatureParams
	if opts.publicKey != "" {
		pub, err := ondc.DecodePublicKey(opts.publicKey)
		if err != nil {
			return errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "invalid --public-key")
		}
		params, err = ondc.VerifyWithPublicKey(pub, opts.header, body)
		if err != nil {
			return err
		}
	} else {
		a, err := newApp(root)
		if err != nil {
			return err
		}
		defer a.close()

		signers, err := a.signers()
		if err != nil {
			return err
		}
		registry, err := a.trustedRegistry(signers)
		if err != nil {
			return err
		}
		verifier := ondc.NewVerifier(registry, a.cfg.Sandbox.ClockSkew, a.logger)
		params, err = verifier.Verify(ctx, opts.header, body, time.Now())
		a.metrics.RecordSignatureVerification(verificationLabel(err))
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "valid: keyId=%s created=%s expires=%s\n",
		params.KeyID.String(),
		time.Unix(params.Created, 0).UTC().Format(time.RFC3339),
		time.Unix(params.Expires, 0).UTC().Format(time.RFC3339),
	)
	return nil
}

func verificationLabel(err error) string {
	if err != nil {
		return "invalid"
	}
	return "valid"
}

func newKeygenCmd() *cobra.Command {
	var subscriber, ukID string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair",
		Long: `Keygen prints a new base64 extended signing key (seed followed by public
key, the registry format) and its public key. With --subscriber and --uk-id
it also prints the matching SANDBOX_TRUSTED_KEYS entry.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "private_key=%s\n", base64.StdEncoding.EncodeToString(priv))
			fmt.Fprintf(out, "public_key=%s\n", ondc.EncodePublicKey(pub))
			if subscriber != "" && ukID != "" {
				fmt.Fprintf(out, "trusted_key=%s|%s=%s\n", subscriber, ukID, ondc.EncodePublicKey(pub))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subscriber, "subscriber", "", "subscriber id for the trusted key entry")
	cmd.Flags().StringVar(&ukID, "uk-id", "", "unique key id for the trusted key entry")
	return cmd
}

func readBody(cmd *cobra.Command, file string) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	if file == "" || file == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "failed to read request body")
	}
	return body, nil
}
