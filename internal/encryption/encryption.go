// Package encryption protects archived journal documents at rest.
package encryption

import "io"

// Encryptor encrypts documents for the configured recipient. It needs only
// the public half of the key pair, so archive sinks never hold a secret.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
}

// Decryptor reverses Encrypt. Obtained by unlocking the private key.
type Decryptor interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// KeyManager creates and unlocks the key pair behind an Encryptor.
type KeyManager interface {
	Encryptor
	Setup(passphrase string) error
	Unlock(passphrase string) (Decryptor, error)
	IsConfigured() bool
}
