package core

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// aeadBackend is the built-in, always-compiled default crypto backend
// (registry name "chacha20poly1305"). It wraps golang.org/x/crypto's
// XChaCha20-Poly1305 AEAD, laying out each blob as nonce || ciphertext ||
// tag, and additionally signs the ciphertext with an Ed25519 key derived
// from the configured private key so Crypt produces a self-describing,
// detached-signed blob.
type aeadBackend struct{}

func newAEADBackend() Backend { return &aeadBackend{} }

func (b *aeadBackend) AbiVer() int { return CryptoModelABI }

type aeadState struct {
	aeadKey  [chacha20poly1305.KeySize]byte
	signPriv ed25519.PrivateKey
	signPub  ed25519.PublicKey
}

// deriveKeys splits the configured private key into an AEAD key and an
// Ed25519 seed via two independent SHA-256 labels — a minimal HKDF-Extract
// substitute sufficient for a single-use, single-purpose split.
func deriveKeys(key []byte) (aeadKey [chacha20poly1305.KeySize]byte, signSeed [ed25519.SeedSize]byte) {
	aeadKey = sha256.Sum256(append([]byte("kmesh-aead-key|"), key...))
	signSeed = sha256.Sum256(append([]byte("kmesh-sign-seed|"), key...))
	return
}

func (b *aeadBackend) Init(_ context.Context, cfg CryptoConfig) (BackendState, Sizes, error) {
	if len(cfg.PrivateKey) == 0 {
		return nil, Sizes{}, errors.New("aead: private key required")
	}
	aeadKey, signSeed := deriveKeys(cfg.PrivateKey)
	priv := ed25519.NewKeyFromSeed(signSeed[:])
	st := &aeadState{
		aeadKey:  aeadKey,
		signPriv: priv,
		signPub:  priv.Public().(ed25519.PublicKey),
	}
	return st, Sizes{
		Block: 1, // stream cipher: no block alignment requirement
		Hash:  ed25519.SignatureSize,
		Salt:  chacha20poly1305.NonceSizeX,
	}, nil
}

func (b *aeadBackend) seal(st *aeadState, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(st.aeadKey[:])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ct := aead.Seal(nil, nonce, plaintext, nil)
	blob := append(nonce, ct...)
	sig := ed25519.Sign(st.signPriv, blob)
	return append(blob, sig...), nil
}

func (b *aeadBackend) Crypt(state BackendState, plaintext []byte) ([]byte, error) {
	st := state.(*aeadState)
	return b.seal(st, plaintext)
}

func (b *aeadBackend) CryptV(state BackendState, iov [][]byte) ([]byte, error) {
	st := state.(*aeadState)
	total := 0
	for _, v := range iov {
		total += len(v)
	}
	flat := make([]byte, 0, total)
	for _, v := range iov {
		flat = append(flat, v...)
	}
	return b.seal(st, flat)
}

func (b *aeadBackend) Decrypt(state BackendState, ciphertext []byte, level LogLevel) ([]byte, error) {
	st := state.(*aeadState)
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead + ed25519.SignatureSize
	if len(ciphertext) < minLen {
		return nil, logDecryptErr(level, fmt.Errorf("aead: ciphertext too short"))
	}
	sigStart := len(ciphertext) - ed25519.SignatureSize
	blob, sig := ciphertext[:sigStart], ciphertext[sigStart:]
	if !ed25519.Verify(st.signPub, blob, sig) {
		return nil, logDecryptErr(level, fmt.Errorf("aead: signature verification failed"))
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(st.aeadKey[:])
	if err != nil {
		return nil, logDecryptErr(level, err)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, logDecryptErr(level, fmt.Errorf("aead: open failed: %w", err))
	}
	return pt, nil
}
