package core

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// seededDRBG is a minimal deterministic byte stream derived from a fixed
// seed via counter-mode SHA-256 expansion. It exists only so that
// GenerateKey, which otherwise wants a fresh io.Reader of real entropy, can
// be driven reproducibly from a CryptoConfig's private key, so the same
// config always yields the same keypair across process restarts.
type seededDRBG struct {
	seed    []byte
	counter uint64
	buf     []byte
}

func newSeededDRBG(seed []byte) *seededDRBG {
	return &seededDRBG{seed: seed}
}

func (d *seededDRBG) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.buf) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], d.counter)
			d.counter++
			h := sha256.Sum256(append(append([]byte{}, d.seed...), ctr[:]...))
			d.buf = h[:]
		}
		c := copy(p[n:], d.buf)
		d.buf = d.buf[c:]
		n += c
	}
	return n, nil
}

var _ io.Reader = (*seededDRBG)(nil)

// dilithiumABIVer is out of step with CryptoModelABI on purpose: this
// backend exists to give the registry's ABI-mismatch rejection path
// something real to reject, standing in for a module whose compiled ABI
// has drifted from the core's. A vendor that rebuilds this backend against
// a matching core simply bumps this constant to CryptoModelABI.
const dilithiumABIVer = CryptoModelABI - 1

// dilithiumBackend is a third installable backend (registry name
// "dilithium3") wrapping a post-quantum signature scheme instead of an
// AEAD — it signs rather than encrypts, so Decrypt's "decryption" step is
// a signature check over an AEAD-sealed payload exactly like the other two
// backends, keeping the Backend contract uniform across cipher families.
type dilithiumBackend struct{}

func newDilithiumBackend() Backend { return &dilithiumBackend{} }

func (b *dilithiumBackend) AbiVer() int { return dilithiumABIVer }

type dilithiumState struct {
	aeadKey [chacha20poly1305.KeySize]byte
	priv    mode3.PrivateKey
	pub     mode3.PublicKey
}

func (b *dilithiumBackend) Init(_ context.Context, cfg CryptoConfig) (BackendState, Sizes, error) {
	if len(cfg.PrivateKey) == 0 {
		return nil, Sizes{}, errors.New("dilithium3: private key required")
	}
	aeadKey := sha256.Sum256(append([]byte("kmesh-dilithium-aead|"), cfg.PrivateKey...))
	seed := sha256.Sum256(append([]byte("kmesh-dilithium-seed|"), cfg.PrivateKey...))

	pub, priv, err := mode3.GenerateKey(newSeededDRBG(seed[:]))
	if err != nil {
		return nil, Sizes{}, err
	}

	return &dilithiumState{aeadKey: aeadKey, priv: *priv, pub: *pub}, Sizes{
		Block: 1,
		Hash:  uint32(mode3.SignatureSize),
		Salt:  chacha20poly1305.NonceSizeX,
	}, nil
}

func (b *dilithiumBackend) seal(st *dilithiumState, plaintext []byte) ([]byte, error) {
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
	sig, err := st.priv.Sign(rand.Reader, blob, crypto.Hash(0))
	if err != nil {
		return nil, err
	}
	return append(blob, sig...), nil
}

func (b *dilithiumBackend) Crypt(state BackendState, plaintext []byte) ([]byte, error) {
	return b.seal(state.(*dilithiumState), plaintext)
}

func (b *dilithiumBackend) CryptV(state BackendState, iov [][]byte) ([]byte, error) {
	st := state.(*dilithiumState)
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

func (b *dilithiumBackend) Decrypt(state BackendState, ciphertext []byte, level LogLevel) ([]byte, error) {
	st := state.(*dilithiumState)
	sigSize := mode3.SignatureSize
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead + sigSize
	if len(ciphertext) < minLen {
		return nil, logDecryptErr(level, errors.New("dilithium3: ciphertext too short"))
	}
	sigStart := len(ciphertext) - sigSize
	blob, sig := ciphertext[:sigStart], ciphertext[sigStart:]
	if !mode3.Verify(&st.pub, blob, sig) {
		return nil, logDecryptErr(level, errors.New("dilithium3: signature verification failed"))
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(st.aeadKey[:])
	if err != nil {
		return nil, logDecryptErr(level, err)
	}
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, logDecryptErr(level, err)
	}
	return pt, nil
}
