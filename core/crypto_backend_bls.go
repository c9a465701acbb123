package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	bls "github.com/herumi/bls-eth-go-binary/bls"
)

// blsInitOnce guards bls.Init, which must run exactly once against the
// BLS12-381 curve before any key derivation or signing happens.
var blsInitOnce sync.Once
var blsInitErr error

func ensureBLSInit() error {
	blsInitOnce.Do(func() {
		blsInitErr = bls.Init(bls.BLS12_381)
	})
	return blsInitErr
}

// blsBackend is a second installable backend (registry name "bls") that
// lets an operator stage a BLS-keyed slot alongside the default AEAD slot,
// for example while rotating keys without a decrypt gap. It derives both a
// BLS secret key (for a detached signature) and an AEAD session key from
// the configured private key, then seals with AEAD and appends the BLS
// signature over the ciphertext the same way aeadBackend appends an
// Ed25519 signature.
type blsBackend struct{}

func newBLSBackend() Backend { return &blsBackend{} }

func (b *blsBackend) AbiVer() int { return CryptoModelABI }

type blsState struct {
	aeadKey [chacha20poly1305.KeySize]byte
	sk      bls.SecretKey
	pk      bls.PublicKey
}

const blsSigSize = 96 // compressed G1 signature in the eth-bls variant

func (b *blsBackend) Init(_ context.Context, cfg CryptoConfig) (BackendState, Sizes, error) {
	if err := ensureBLSInit(); err != nil {
		return nil, Sizes{}, err
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, Sizes{}, errors.New("bls: private key required")
	}
	aeadKey := sha256.Sum256(append([]byte("kmesh-bls-aead|"), cfg.PrivateKey...))
	seed := sha256.Sum256(append([]byte("kmesh-bls-seed|"), cfg.PrivateKey...))

	// Derive the secret key deterministically from the configured key so
	// the same CryptoConfig always yields the same keypair, letting a
	// decrypted-then-reencrypted round trip match across process restarts.
	var sk bls.SecretKey
	if err := sk.SetLittleEndian(seed[:]); err != nil {
		return nil, Sizes{}, err
	}
	pk := *sk.GetPublicKey()

	st := &blsState{aeadKey: aeadKey, sk: sk, pk: pk}
	return st, Sizes{
		Block: 1,
		Hash:  blsSigSize,
		Salt:  chacha20poly1305.NonceSizeX,
	}, nil
}

func (b *blsBackend) seal(st *blsState, plaintext []byte) ([]byte, error) {
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
	sig := st.sk.SignByte(blob)
	return append(blob, sig.Serialize()...), nil
}

func (b *blsBackend) Crypt(state BackendState, plaintext []byte) ([]byte, error) {
	return b.seal(state.(*blsState), plaintext)
}

func (b *blsBackend) CryptV(state BackendState, iov [][]byte) ([]byte, error) {
	st := state.(*blsState)
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

func (b *blsBackend) Decrypt(state BackendState, ciphertext []byte, level LogLevel) ([]byte, error) {
	st := state.(*blsState)
	minLen := chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead + blsSigSize
	if len(ciphertext) < minLen {
		return nil, logDecryptErr(level, errors.New("bls: ciphertext too short"))
	}
	sigStart := len(ciphertext) - blsSigSize
	blob, sigBytes := ciphertext[:sigStart], ciphertext[sigStart:]

	var sig bls.Sign
	if err := sig.Deserialize(sigBytes); err != nil {
		return nil, logDecryptErr(level, err)
	}
	if !sig.VerifyByte(&st.pk, blob) {
		return nil, logDecryptErr(level, errors.New("bls: signature verification failed"))
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
