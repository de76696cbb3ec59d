package encryption

import (
	"fmt"

	"adopt-go/internal/config"
)

// NewFromConfig creates the KeyManager selected by cfg.Type.
func NewFromConfig(cfg config.EncryptionConfig) (KeyManager, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("public_key_path and private_key_path required for age encryption")
		}
		return NewAgeEncryptor(cfg), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
