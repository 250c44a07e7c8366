package ondc

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"nocs-settlement/pkg/errors"

	"golang.org/x/crypto/blake2b"
)

const (
	Algorithm       = "ed25519"
	DigestAlgorithm = "BLAKE-512"
	SignedHeaders   = "(created) (expires) digest"

	// SignatureValidity is the distance between (created) and (expires).
	SignatureValidity = time.Hour
)

// KeyID identifies the signing key in the network registry.
type KeyID struct {
	SubscriberID string
	UniqueKeyID  string
}

// String renders the keyId header parameter: subscriber|ukId|ed25519.
func (k KeyID) String() string {
	return fmt.Sprintf("%s|%s|%s", k.SubscriberID, k.UniqueKeyID, Algorithm)
}

func (k KeyID) validate() error {
	if k.SubscriberID == "" {
		return errors.NewConfigurationError("subscriber id is required")
	}
	if k.UniqueKeyID == "" {
		return errors.NewConfigurationError("unique key id is required")
	}
	if strings.ContainsAny(k.SubscriberID+k.UniqueKeyID, `|",`) {
		return errors.NewConfigurationError("key id parts must not contain '|', '\"' or ','")
	}
	return nil
}

// SigningMaterial is everything one signature is computed from. It lives
// for the duration of a single request.
type SigningMaterial struct {
	Body       []byte
	KeyID      KeyID
	PrivateKey []byte
	CreatedAt  int64
	ExpiresAt  int64
}

// NewSigningMaterial fixes the validity window at now and now+1h.
func NewSigningMaterial(body []byte, keyID KeyID, privateKey []byte, now time.Time) SigningMaterial {
	created := now.Unix()
	return SigningMaterial{
		Body:       body,
		KeyID:      keyID,
		PrivateKey: privateKey,
		CreatedAt:  created,
		ExpiresAt:  created + int64(SignatureValidity/time.Second),
	}
}

// SignedHeader is the parsed form of an Authorization header value.
type SignedHeader struct {
	KeyID     KeyID
	Algorithm string
	Created   int64
	Expires   int64
	Headers   string
	Digest    string
	Signature string
}

// String formats the header value. Parameter order and quoting are fixed;
// the remote verifier compares them literally.
func (h *SignedHeader) String() string {
	return fmt.Sprintf(`Signature keyId="%s",algorithm="%s",created="%d",expires="%d",headers="%s",signature="%s"`,
		h.KeyID.String(),
		h.Algorithm,
		h.Created,
		h.Expires,
		h.Headers,
		h.Signature,
	)
}

// DigestBase64 returns the standard base64 of the 64-byte BLAKE2b digest of body.
func DigestBase64(body []byte) string {
	sum := blake2b.Sum512(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SigningString builds the canonical text that gets signed. Lines are
// joined by a single newline and the last line has no terminator.
func SigningString(created, expires int64, digestB64 string) string {
	return fmt.Sprintf("(created): %d\n(expires): %d\ndigest: %s=%s", created, expires, DigestAlgorithm, digestB64)
}

// SignMaterial signs m and returns the structured header.
func SignMaterial(m SigningMaterial) (*SignedHeader, error) {
	if err := m.KeyID.validate(); err != nil {
		return nil, err
	}
	key, err := SigningKeyFromExtended(m.PrivateKey)
	if err != nil {
		return nil, err
	}
	return signWithKey(key, m.KeyID, m.Body, m.CreatedAt, m.ExpiresAt), nil
}

// Sign is the one-shot form: sign body as keyID with rawPrivateKey, valid
// from now for one hour.
func Sign(body []byte, keyID KeyID, rawPrivateKey []byte, now time.Time) (string, error) {
	header, err := SignMaterial(NewSigningMaterial(body, keyID, rawPrivateKey, now))
	if err != nil {
		return "", err
	}
	return header.String(), nil
}

func signWithKey(key ed25519.PrivateKey, keyID KeyID, body []byte, created, expires int64) *SignedHeader {
	digest := DigestBase64(body)
	signingString := SigningString(created, expires, digest)
	signature := ed25519.Sign(key, []byte(signingString))

	return &SignedHeader{
		KeyID:     keyID,
		Algorithm: Algorithm,
		Created:   created,
		Expires:   expires,
		Headers:   SignedHeaders,
		Digest:    digest,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}
}

// SignerConfig carries one participant's credentials.
type SignerConfig struct {
	SubscriberID string
	UniqueKeyID  string
	PrivateKey   []byte
}

// RequestSigner signs request bodies for one participant. It holds no
// mutable state and is safe for concurrent use.
type RequestSigner struct {
	keyID      KeyID
	signingKey ed25519.PrivateKey
}

// NewRequestSigner validates cfg and derives the signing key once.
func NewRequestSigner(cfg SignerConfig) (*RequestSigner, error) {
	keyID := KeyID{SubscriberID: cfg.SubscriberID, UniqueKeyID: cfg.UniqueKeyID}
	if err := keyID.validate(); err != nil {
		return nil, err
	}

	key, err := SigningKeyFromExtended(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &RequestSigner{
		keyID:      keyID,
		signingKey: key,
	}, nil
}

// Sign returns the Authorization header value for body.
func (s *RequestSigner) Sign(body []byte, now time.Time) (string, error) {
	return s.SignHeader(body, now).String(), nil
}

// SignHeader returns the structured header for body.
func (s *RequestSigner) SignHeader(body []byte, now time.Time) *SignedHeader {
	created := now.Unix()
	return signWithKey(s.signingKey, s.keyID, body, created, created+int64(SignatureValidity/time.Second))
}

func (s *RequestSigner) KeyID() KeyID {
	return s.keyID
}

func (s *RequestSigner) PublicKey() ed25519.PublicKey {
	return s.signingKey.Public().(ed25519.PublicKey)
}

// WithSubscriberID returns a signer that keeps the key but advertises a
// different subscriber in keyId. Used to probe the remote registry check.
func (s *RequestSigner) WithSubscriberID(subscriberID string) (*RequestSigner, error) {
	keyID := KeyID{SubscriberID: subscriberID, UniqueKeyID: s.keyID.UniqueKeyID}
	if err := keyID.validate(); err != nil {
		return nil, err
	}
	return &RequestSigner{keyID: keyID, signingKey: s.signingKey}, nil
}
