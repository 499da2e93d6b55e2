package datasource

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KeyFile is the name of the generated key file inside the data directory.
const KeyFile = ".data_key"

// RandomKey returns a fresh AES-256 key.
func RandomKey() []byte {
	key := make([]byte, 32)
	_, _ = rand.Read(key)
	return key
}

// LoadOrCreateKey reads the base64 key stored at path, or generates one and
// writes it with owner-only permissions when the file does not exist yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode key file %s: %w", path, err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("key file %s holds %d bytes, want 32", path, len(key))
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	key := RandomKey()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure key directory: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return key, nil
}
