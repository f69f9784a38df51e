// Package cryptoprovider defines the narrow crypto interface the core
// consumes: sign, verify, encrypt, decrypt, and key-fingerprint operations
// over an asymmetric keypair. The concrete backend is opaque to the core;
// internal/cryptoprovider/noisebox is the default binding.
package cryptoprovider

// PublicKey is an opaque wrapper around a peer's raw public key bytes.
type PublicKey struct {
	Raw []byte
}

// Provider is implemented by a concrete crypto backend. A Provider always
// acts on behalf of one local keypair; Encrypt/Decrypt/Verify take the
// counterparty's public key explicitly since the core never assumes a
// shared keyring.
type Provider interface {
	// LocalPublicKey returns the local node's own public key.
	LocalPublicKey() PublicKey

	// Fingerprint derives the stable fingerprint string for a public key.
	Fingerprint(pub PublicKey) string

	// Sign signs data with the local private key.
	Sign(data []byte) ([]byte, error)

	// Verify reports whether sig is a valid signature over data by pub.
	Verify(pub PublicKey, data, sig []byte) bool

	// Encrypt encrypts plaintext so only the holder of recipient's
	// private key can decrypt it.
	Encrypt(recipient PublicKey, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt, using the local private key and the
	// declared sender's public key.
	Decrypt(sender PublicKey, ciphertext []byte) ([]byte, error)
}
