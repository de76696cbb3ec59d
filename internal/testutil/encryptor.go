package testutil

import (
	"path/filepath"
	"testing"

	"adopt-go/internal/config"
	"adopt-go/internal/encryption"
)

// TestPassphrase unlocks keys created by NewTestEncryptor.
const TestPassphrase = "test-passphrase"

// NewTestEncryptor creates an age key pair in a temp directory, protected by
// TestPassphrase with a cheap scrypt work factor.
func NewTestEncryptor(t *testing.T) *encryption.AgeEncryptor {
	t.Helper()

	dir := t.TempDir()
	enc := encryption.NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "adopt.pub"),
		PrivateKeyPath: filepath.Join(dir, "adopt.key"),
	}).WithWorkFactor(10)

	if err := enc.Setup(TestPassphrase); err != nil {
		t.Fatalf("failed to set up test keys: %v", err)
	}
	return enc
}
