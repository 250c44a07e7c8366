package ondc

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"nocs-settlement/pkg/errors"

	"go.uber.org/zap"
)

// RegistryClient looks up a participant's public key in the network registry.
type RegistryClient interface {
	LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error)
}

// SignatureParams is an Authorization header split into its parameters.
type SignatureParams struct {
	KeyID     KeyID
	Algorithm string
	Created   int64
	Expires   int64
	Headers   string
	Signature string
}

// ParseAuthorizationHeader parses `Signature k="v",...`. The scheme prefix
// is optional. keyId, signature, created and expires are required.
func ParseAuthorizationHeader(header string) (*SignatureParams, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("empty authorization header")
	}
	header = strings.TrimSpace(strings.TrimPrefix(header, "Signature "))

	fields := make(map[string]string)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		idx := strings.Index(part, "=")
		if idx == -1 {
			continue
		}

		key := strings.TrimSpace(part[:idx])
		value := strings.Trim(strings.TrimSpace(part[idx+1:]), `"`)
		if key != "" && value != "" {
			fields[key] = value
		}
	}

	for _, required := range []string{"keyId", "signature", "created", "expires"} {
		if fields[required] == "" {
			return nil, fmt.Errorf("missing required %s", required)
		}
	}

	subscriberID, ukID, algorithm, err := parseKeyID(fields["keyId"])
	if err != nil {
		return nil, err
	}

	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created: %w", err)
	}
	expires, err := strconv.ParseInt(fields["expires"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid expires: %w", err)
	}

	params := &SignatureParams{
		KeyID:     KeyID{SubscriberID: subscriberID, UniqueKeyID: ukID},
		Algorithm: fields["algorithm"],
		Created:   created,
		Expires:   expires,
		Headers:   fields["headers"],
		Signature: fields["signature"],
	}
	if params.Algorithm == "" {
		params.Algorithm = algorithm
	}
	if params.Headers == "" {
		params.Headers = SignedHeaders
	}

	return params, nil
}

func parseKeyID(keyID string) (subscriberID, ukID, algorithm string, err error) {
	parts := strings.Split(keyID, "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid keyId format")
	}
	return parts[0], parts[1], parts[2], nil
}

// VerifyWithPublicKey rebuilds the signing string from body and the
// header's window and checks the signature against pub. It does not look
// at the clock.
func VerifyWithPublicKey(pub ed25519.PublicKey, header string, body []byte) (*SignatureParams, error) {
	params, err := ParseAuthorizationHeader(header)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeAuthFailed, "authentication failed", "invalid auth header")
	}
	if err := verifyParams(pub, params, body); err != nil {
		return nil, err
	}
	return params, nil
}

func verifyParams(pub ed25519.PublicKey, params *SignatureParams, body []byte) error {
	if params.Algorithm != Algorithm {
		return errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "unsupported algorithm")
	}
	if params.Headers != SignedHeaders {
		return errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "unsupported signed headers")
	}

	// Strict rejects non-zero padding bits, so every character counts.
	signature, err := base64.StdEncoding.Strict().DecodeString(params.Signature)
	if err != nil {
		return errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "invalid signature format")
	}

	signingString := SigningString(params.Created, params.Expires, DigestBase64(body))
	if !ed25519.Verify(pub, []byte(signingString), signature) {
		return errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "signature verification failed")
	}
	return nil
}

// Verifier checks inbound signatures against registry keys.
type Verifier struct {
	registry  RegistryClient
	clockSkew time.Duration
	logger    *zap.Logger
}

func NewVerifier(registry RegistryClient, clockSkew time.Duration, logger *zap.Logger) *Verifier {
	return &Verifier{
		registry:  registry,
		clockSkew: clockSkew,
		logger:    logger,
	}
}

// Verify authenticates body against header at time now.
// NOTE: body must be the exact raw bytes as received. Re-marshalling
// changes the digest.
func (v *Verifier) Verify(ctx context.Context, header string, body []byte, now time.Time) (*SignatureParams, error) {
	if strings.TrimSpace(header) == "" {
		return nil, errors.NewDomainError(errors.CodeAuthFailed, "authentication failed", "empty authorization header")
	}

	params, err := ParseAuthorizationHeader(header)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeAuthFailed, "authentication failed", "invalid auth header")
	}

	if err := v.verifyWindow(params, now); err != nil {
		return nil, err
	}

	publicKeyBase64, err := v.registry.LookupPublicKey(ctx, params.KeyID.SubscriberID, params.KeyID.UniqueKeyID)
	if err != nil {
		v.logger.Debug("registry lookup failed",
			zap.String("subscriber_id", params.KeyID.SubscriberID),
			zap.String("uk_id", params.KeyID.UniqueKeyID),
			zap.Error(err),
		)
		return nil, errors.WrapDomainError(err, errors.CodeAuthFailed, "authentication failed", "unknown subscriber")
	}

	pub, err := DecodePublicKey(publicKeyBase64)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeAuthFailed, "authentication failed", "invalid registry public key")
	}

	if err := verifyParams(pub, params, body); err != nil {
		return nil, err
	}

	return params, nil
}

func (v *Verifier) verifyWindow(params *SignatureParams, now time.Time) error {
	if params.Expires < params.Created {
		return errors.NewDomainError(errors.CodeStaleSignature, "stale signature", "expires precedes created")
	}

	ts := now.Unix()
	skew := int64(v.clockSkew / time.Second)
	if ts+skew < params.Created {
		return errors.NewDomainError(errors.CodeStaleSignature, "stale signature", "created is in the future")
	}
	if ts-skew > params.Expires {
		return errors.NewDomainError(errors.CodeStaleSignature, "stale signature", "signature expired")
	}
	return nil
}
