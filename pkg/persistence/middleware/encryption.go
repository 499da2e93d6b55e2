package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/ports"
)

// EnvelopeRole is the role of the single message that carries the ciphertext.
const EnvelopeRole = "__encrypted__"

// ErrInvalidKey is returned for keys that are not 32 bytes long.
var ErrInvalidKey = errors.New("active key must be 32 bytes (AES-256)")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.SessionStore
	cipher *Cipher
}

// NewEncryptionMiddleware creates a middleware that stores each session as an
// opaque AES-GCM envelope. Only the ID and UpdatedAt stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	c, err := NewCipher(config)
	if err != nil {
		return nil, err
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			next:   next,
			cipher: c,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, s *domain.Session) error {
	plainText, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	sealed, err := m.cipher.Seal(plainText)
	if err != nil {
		return fmt.Errorf("failed to encrypt session: %w", err)
	}

	envelope := &domain.Session{
		ID:        s.ID,
		UpdatedAt: s.UpdatedAt,
		Messages: []domain.SessionMessage{{
			Role:    EnvelopeRole,
			Content: sealed,
		}},
	}
	return m.next.Save(ctx, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (*domain.Session, error) {
	envelope, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	// Fail closed: a configured key means every session must be an envelope.
	if len(envelope.Messages) != 1 || envelope.Messages[0].Role != EnvelopeRole {
		return nil, errors.New("session is missing encrypted data envelope")
	}

	plainText, err := m.cipher.Open(envelope.Messages[0].Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(plainText, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted session: %w", err)
	}
	return &s, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
