// Package noisebox is the default cryptoprovider.Provider binding: Ed25519
// for sign/verify, and an X25519 Diffie-Hellman shared secret sealed with
// XChaCha20-Poly1305 for encrypt/decrypt. The DH primitive reuses the same
// curve the teacher repo's Noise_XX handshake negotiates over
// (github.com/flynn/noise's DH25519), and the AEAD is the teacher's
// internal/crypto/channel construction, repurposed here as the Private-mode
// envelope's single-shot seal rather than a running handshake cipher.
package noisebox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/flynn/noise"
	"golang.org/x/crypto/chacha20poly1305"

	"kipa/internal/cryptoprovider"
)

var dh = noise.DH25519

// Provider is a cryptoprovider.Provider backed by an Ed25519 signing keypair
// and an X25519 sealing keypair, generated together and never persisted
// separately from one another.
type Provider struct {
	signPub  ed25519.PublicKey
	signPriv ed25519.PrivateKey

	dhKey noise.DHKey
}

// Generate creates a fresh random keypair.
func Generate() (*Provider, error) {
	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("noisebox: generate signing key: %w", err)
	}
	dhKey, err := dh.GenerateKeypair(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("noisebox: generate dh key: %w", err)
	}
	return &Provider{signPub: signPub, signPriv: signPriv, dhKey: dhKey}, nil
}

// FromSeed deterministically derives a keypair from a 32-byte seed, so a
// node can keep the same identity across restarts once the seed is loaded
// from the config/persistence layer named in internal/config.
func FromSeed(seed [32]byte) (*Provider, error) {
	signPriv := ed25519.NewKeyFromSeed(seed[:])
	signPub := signPriv.Public().(ed25519.PublicKey)

	h := sha256.Sum256(append([]byte("kipa-noisebox-dh-seed"), seed[:]...))
	dhKey, err := dh.GenerateKeypair(deterministicReader{h})
	if err != nil {
		return nil, fmt.Errorf("noisebox: derive dh key: %w", err)
	}
	return &Provider{signPub: signPub, signPriv: signPriv, dhKey: dhKey}, nil
}

// publicKeyBlob packs the long-lived public material (sign key + DH key)
// into the single opaque blob that travels over the wire as a
// cryptoprovider.PublicKey.
func (p *Provider) publicKeyBlob() []byte {
	var dhPub [32]byte
	copy(dhPub[:], p.dhKey.Public)
	out := make([]byte, 0, ed25519.PublicKeySize+32)
	out = append(out, p.signPub...)
	out = append(out, dhPub[:]...)
	return out
}

func splitPublicKey(raw []byte) (signPub ed25519.PublicKey, dhPub [32]byte, err error) {
	if len(raw) != ed25519.PublicKeySize+32 {
		return nil, dhPub, fmt.Errorf("noisebox: malformed public key (%d bytes)", len(raw))
	}
	signPub = ed25519.PublicKey(raw[:ed25519.PublicKeySize])
	copy(dhPub[:], raw[ed25519.PublicKeySize:])
	return signPub, dhPub, nil
}

// LocalPublicKey implements cryptoprovider.Provider.
func (p *Provider) LocalPublicKey() cryptoprovider.PublicKey {
	return cryptoprovider.PublicKey{Raw: p.publicKeyBlob()}
}

// Fingerprint implements cryptoprovider.Provider: a lowercase-hex SHA-256 of
// the Ed25519 signing key, which is the node's stable identity.
func (p *Provider) Fingerprint(pub cryptoprovider.PublicKey) string {
	signPub, _, err := splitPublicKey(pub.Raw)
	if err != nil {
		sum := sha256.Sum256(pub.Raw)
		return hex.EncodeToString(sum[:])
	}
	sum := sha256.Sum256(signPub)
	return hex.EncodeToString(sum[:])
}

// Sign implements cryptoprovider.Provider.
func (p *Provider) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(p.signPriv, data), nil
}

// Verify implements cryptoprovider.Provider.
func (p *Provider) Verify(pub cryptoprovider.PublicKey, data, sig []byte) bool {
	signPub, _, err := splitPublicKey(pub.Raw)
	if err != nil {
		return false
	}
	return ed25519.Verify(signPub, data, sig)
}

// Encrypt implements cryptoprovider.Provider: derive an X25519 shared secret
// with the recipient's DH key, then seal with XChaCha20-Poly1305 under a
// fresh random nonce, which is prepended to the ciphertext.
func (p *Provider) Encrypt(recipient cryptoprovider.PublicKey, plaintext []byte) ([]byte, error) {
	_, recipientDH, err := splitPublicKey(recipient.Raw)
	if err != nil {
		return nil, err
	}
	shared, err := dh.DH(p.dhKey.Private, recipientDH[:])
	if err != nil {
		return nil, fmt.Errorf("noisebox: dh: %w", err)
	}
	aead, err := chacha20poly1305.NewX(sealKey(shared))
	if err != nil {
		return nil, fmt.Errorf("noisebox: new aead: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("noisebox: nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return append(nonce, ct...), nil
}

// Decrypt implements cryptoprovider.Provider, inverting Encrypt.
func (p *Provider) Decrypt(sender cryptoprovider.PublicKey, ciphertext []byte) ([]byte, error) {
	_, senderDH, err := splitPublicKey(sender.Raw)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("noisebox: ciphertext too short")
	}
	nonce, ct := ciphertext[:chacha20poly1305.NonceSizeX], ciphertext[chacha20poly1305.NonceSizeX:]

	shared, err := dh.DH(p.dhKey.Private, senderDH[:])
	if err != nil {
		return nil, fmt.Errorf("noisebox: dh: %w", err)
	}
	aead, err := chacha20poly1305.NewX(sealKey(shared))
	if err != nil {
		return nil, fmt.Errorf("noisebox: new aead: %w", err)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("noisebox: open: %w", err)
	}
	return pt, nil
}

func sealKey(shared []byte) []byte {
	sum := sha256.Sum256(append([]byte("kipa-noisebox-seal-key"), shared...))
	return sum[:]
}

type deterministicReader struct {
	seed [32]byte
}

func (d deterministicReader) Read(p []byte) (int, error) {
	n := copy(p, d.seed[:])
	for i := n; i < len(p); i++ {
		h := sha256.Sum256(append([]byte{byte(i)}, d.seed[:]...))
		p[i] = h[0]
	}
	return len(p), nil
}
