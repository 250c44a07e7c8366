package ondc

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
)

// StaticRegistry is an in-memory RegistryClient. The sandbox seeds it with
// the configured participants' keys.
type StaticRegistry struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{keys: make(map[string]string)}
}

func registryKey(subscriberID, ukID string) string {
	return subscriberID + "|" + ukID
}

// Register stores pub for subscriberID/ukID, replacing any previous key.
func (r *StaticRegistry) Register(subscriberID, ukID string, pub ed25519.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[registryKey(subscriberID, ukID)] = EncodePublicKey(pub)
}

func (r *StaticRegistry) LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.keys[registryKey(subscriberID, ukID)]
	if !ok {
		return "", fmt.Errorf("subscriber %s with key %s not registered", subscriberID, ukID)
	}
	return key, nil
}

func (r *StaticRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// ParseTrustedKeys parses "subscriber|ukId=base64pub" entries separated by
// commas or semicolons into r.
func (r *StaticRegistry) ParseTrustedKeys(spec string) error {
	for _, entry := range strings.FieldsFunc(spec, func(c rune) bool { return c == ',' || c == ';' }) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		idx := strings.Index(entry, "=")
		if idx == -1 {
			return fmt.Errorf("trusted key %q: expected subscriber|ukId=publicKey", entry)
		}

		ids := strings.Split(entry[:idx], "|")
		if len(ids) != 2 || ids[0] == "" || ids[1] == "" {
			return fmt.Errorf("trusted key %q: expected subscriber|ukId", entry)
		}

		pub, err := DecodePublicKey(entry[idx+1:])
		if err != nil {
			return fmt.Errorf("trusted key %q: %w", entry, err)
		}
		r.Register(ids[0], ids[1], pub)
	}
	return nil
}
