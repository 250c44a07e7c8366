package ondc

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nocs-settlement/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRegistryClient is a mock for the network registry
type MockRegistryClient struct {
	mock.Mock
}

func (m *MockRegistryClient) LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error) {
	args := m.Called(ctx, subscriberID, ukID)
	return args.String(0), args.Error(1)
}

func assertAuthCode(t *testing.T, err error, code int, details string) {
	t.Helper()
	require.Error(t, err)
	domainErr, ok := errors.AsDomainError(err)
	require.True(t, ok, "expected DomainError, got %T", err)
	assert.Equal(t, code, domainErr.Code)
	if details != "" {
		assert.Contains(t, domainErr.Details, details)
	}
}

func TestParseAuthorizationHeader_Golden(t *testing.T) {
	params, err := ParseAuthorizationHeader(goldenHeader)

	require.NoError(t, err)
	assert.Equal(t, testKeyID, params.KeyID)
	assert.Equal(t, "ed25519", params.Algorithm)
	assert.Equal(t, goldenCreated, params.Created)
	assert.Equal(t, goldenExpires, params.Expires)
	assert.Equal(t, SignedHeaders, params.Headers)
	assert.Equal(t, "VS8tVHeA4nwFz/Atl9Wjjhro0JADyvWYHrhIsquZYMFEQEtZfSJuDX4VhqHQLouHFLnypkQz4gW9ZMYj4I3xDQ==", params.Signature)
}

func TestParseAuthorizationHeader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		header string
		errMsg string
	}{
		{"empty", "   ", "empty authorization header"},
		{"no pairs", "invalid_header_format", "missing required keyId"},
		{"missing signature", `Signature keyId="a|b|ed25519",created="1",expires="2"`, "missing required signature"},
		{"missing created", `keyId="a|b|ed25519",expires="2",signature="x"`, "missing required created"},
		{"bad keyId", `keyId="a|ed25519",created="1",expires="2",signature="x"`, "invalid keyId format"},
		{"non numeric created", `keyId="a|b|ed25519",created="soon",expires="2",signature="x"`, "invalid created"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := ParseAuthorizationHeader(tt.header)

			assert.Nil(t, params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseAuthorizationHeader_ToleratesSpacing(t *testing.T) {
	header := `Signature keyId="a|b|ed25519", algorithm="ed25519", created="1", expires="3601", headers="(created) (expires) digest", signature="c2ln", extra="ignored"`

	params, err := ParseAuthorizationHeader(header)

	require.NoError(t, err)
	assert.Equal(t, "a", params.KeyID.SubscriberID)
	assert.Equal(t, int64(3601), params.Expires)
	assert.Equal(t, "c2ln", params.Signature)
}

func newTestVerifier(registry RegistryClient) *Verifier {
	return NewVerifier(registry, 5*time.Second, zap.NewNop())
}

func TestVerifier_Verify_Success(t *testing.T) {
	registry := new(MockRegistryClient)
	registry.On("LookupPublicKey", mock.Anything, "test.subscriber.example", "UKID-1").Return(testPublicKeyB64, nil)

	params, err := newTestVerifier(registry).Verify(context.Background(), goldenHeader, []byte(`{"a":1}`), goldenTime().Add(time.Minute))

	require.NoError(t, err)
	assert.Equal(t, testKeyID, params.KeyID)
	registry.AssertExpectations(t)
}

func TestVerifier_Verify_EmptyHeader(t *testing.T) {
	registry := new(MockRegistryClient)

	_, err := newTestVerifier(registry).Verify(context.Background(), " \t", []byte(`{}`), goldenTime())

	assertAuthCode(t, err, errors.CodeAuthFailed, "empty authorization header")
	registry.AssertNotCalled(t, "LookupPublicKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifier_Verify_UnknownSubscriber(t *testing.T) {
	registry := new(MockRegistryClient)
	registry.On("LookupPublicKey", mock.Anything, "test.subscriber.example", "UKID-1").Return("", fmt.Errorf("not found"))

	_, err := newTestVerifier(registry).Verify(context.Background(), goldenHeader, []byte(`{"a":1}`), goldenTime())

	assertAuthCode(t, err, errors.CodeAuthFailed, "unknown subscriber")
}

func TestVerifier_Verify_WrongKey(t *testing.T) {
	other, err := PublicKeyFromExtended(make([]byte, 64))
	require.NoError(t, err)

	registry := NewStaticRegistry()
	registry.Register("test.subscriber.example", "UKID-1", other)

	_, err = newTestVerifier(registry).Verify(context.Background(), goldenHeader, []byte(`{"a":1}`), goldenTime())

	assertAuthCode(t, err, errors.CodeAuthFailed, "signature verification failed")
}

func TestVerifier_Verify_InvalidRegistryKey(t *testing.T) {
	registry := new(MockRegistryClient)
	registry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).Return("c2hvcnQ=", nil)

	_, err := newTestVerifier(registry).Verify(context.Background(), goldenHeader, []byte(`{"a":1}`), goldenTime())

	assertAuthCode(t, err, errors.CodeAuthFailed, "invalid registry public key")
}

func TestVerifier_Verify_Window(t *testing.T) {
	registry := new(MockRegistryClient)
	registry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).Return(testPublicKeyB64, nil)
	verifier := newTestVerifier(registry)
	body := []byte(`{"a":1}`)

	_, err := verifier.Verify(context.Background(), goldenHeader, body, goldenTime().Add(-time.Minute))
	assertAuthCode(t, err, errors.CodeStaleSignature, "created is in the future")

	_, err = verifier.Verify(context.Background(), goldenHeader, body, time.Unix(goldenExpires, 0).Add(time.Minute))
	assertAuthCode(t, err, errors.CodeStaleSignature, "signature expired")

	_, err = verifier.Verify(context.Background(), goldenHeader, body, goldenTime().Add(-3*time.Second))
	assert.NoError(t, err)
}

func TestVerifier_Verify_UnsupportedAlgorithm(t *testing.T) {
	registry := new(MockRegistryClient)
	registry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).Return(testPublicKeyB64, nil)
	header := `Signature keyId="test.subscriber.example|UKID-1|rsa",algorithm="rsa",created="1700000000",expires="1700003600",headers="(created) (expires) digest",signature="VS8t"`

	_, err := newTestVerifier(registry).Verify(context.Background(), header, []byte(`{"a":1}`), goldenTime())

	assertAuthCode(t, err, errors.CodeAuthFailed, "unsupported algorithm")
}
