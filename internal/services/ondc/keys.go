package ondc

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"nocs-settlement/pkg/errors"
)

// ExtendedKeySize is the size of a registry-issued signing key: a 32-byte
// seed followed by the 32-byte public key.
const ExtendedKeySize = ed25519.PrivateKeySize

// DecodePrivateKey decodes a base64 extended secret key. Anything that does
// not decode to exactly 64 bytes is a configuration error.
func DecodePrivateKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.NewConfigurationError("private key is empty")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "private key is not valid base64")
	}

	if len(raw) != ExtendedKeySize {
		return nil, errors.NewConfigurationError(fmt.Sprintf("invalid private key size: expected %d, got %d", ExtendedKeySize, len(raw)))
	}

	return raw, nil
}

// LoadPrivateKey returns the decoded key from the inline value, or from the
// file at path when no inline value is set.
func LoadPrivateKey(inline, path string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return DecodePrivateKey(inline)
	}
	if path == "" {
		return nil, errors.NewConfigurationError("neither private key nor private key path is set")
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeConfiguration, "configuration error", "failed to read private key file")
	}

	return DecodePrivateKey(string(contents))
}

// SeedFromExtendedKey returns the first 32 bytes of the extended key.
func SeedFromExtendedKey(raw []byte) ([]byte, error) {
	if len(raw) != ExtendedKeySize {
		return nil, errors.NewConfigurationError(fmt.Sprintf("invalid private key size: expected %d, got %d", ExtendedKeySize, len(raw)))
	}
	seed := make([]byte, ed25519.SeedSize)
	copy(seed, raw[:ed25519.SeedSize])
	return seed, nil
}

// SigningKeyFromExtended rebuilds the Ed25519 key from the seed half. The
// trailing public half of raw is ignored.
func SigningKeyFromExtended(raw []byte) (ed25519.PrivateKey, error) {
	seed, err := SeedFromExtendedKey(raw)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// PublicKeyFromExtended derives the public key that verifies signatures
// made with raw.
func PublicKeyFromExtended(raw []byte) (ed25519.PublicKey, error) {
	key, err := SigningKeyFromExtended(raw)
	if err != nil {
		return nil, err
	}
	return key.Public().(ed25519.PublicKey), nil
}

func EncodePublicKey(pub ed25519.PublicKey) string {
	return base64.StdEncoding.EncodeToString(pub)
}

// DecodePublicKey decodes a base64 Ed25519 public key as published in the
// network registry.
func DecodePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("invalid public key format: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: expected %d, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
