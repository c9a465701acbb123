package core

import "context"

// CryptoModelABI is the compiled-in ABI version every backend must report.
// A registered backend whose AbiVer() disagrees fails to load, so a backend
// built against a stale vtable layout is rejected at registration time
// rather than crashing or corrupting state at first use.
const CryptoModelABI = 2

// MaxKeyLen bounds CryptoConfig.PrivateKey, mirroring the wire record's
// private_key_len <= MAX_KEY_LEN constraint.
const MaxKeyLen = 4096

// MaxInstances is the size of the crypto slot table, slots 1..MaxInstances.
const MaxInstances = 8

// LogLevel mirrors the log_level passed down to Decrypt so the backend (or
// the caller) can demote "wrong key" noise during a speculative retry.
type LogLevel uint8

const (
	LogDebug LogLevel = iota
	LogErr
)

// CryptoConfig selects a backend by model name and hands it cipher/hash
// hints plus a private key.
type CryptoConfig struct {
	Model      string
	CipherType string
	HashType   string
	PrivateKey []byte
}

// Sizes are the three values every backend must report back after Init:
// block size, hash (MAC/signature) size and salt/nonce size. The handle
// republishes these from whichever instance is currently in use.
type Sizes struct {
	Block uint32
	Hash  uint32
	Salt  uint32
}

// Backend is the vtable every crypto implementation honours. Finalisation
// is optional and handled through the separate Finalizer interface below,
// so a backend with nothing to release simply doesn't implement it instead
// of carrying a nullable teardown method.
type Backend interface {
	// AbiVer reports the ABI version this backend compiled against.
	AbiVer() int

	// Init allocates backend-private state for one instance and returns the
	// derived sizes. On error the backend must have already cleaned up any
	// partial state of its own; the manager will not call Fini afterwards.
	Init(ctx context.Context, cfg CryptoConfig) (BackendState, Sizes, error)

	// Crypt encrypts and signs a single buffer using state produced by Init.
	Crypt(state BackendState, plaintext []byte) (ciphertext []byte, err error)

	// CryptV is the vectored/gather form of Crypt, used when the caller
	// already holds the message as discontiguous buffers.
	CryptV(state BackendState, iov [][]byte) (ciphertext []byte, err error)

	// Decrypt authenticates and decrypts a buffer. level lets the caller
	// demote logging when it is speculatively trying an alternate slot.
	Decrypt(state BackendState, ciphertext []byte, level LogLevel) (plaintext []byte, err error)
}

// BackendState is the opaque, backend-private instance state. The core
// never reaches into it — only the owning backend's methods touch it.
type BackendState interface{}

// Finalizer is implemented by backends that need to release
// backend-private state. The manager checks for the interface instead of
// requiring every backend to carry a no-op teardown method.
type Finalizer interface {
	Fini(state BackendState)
}

// finiBackend calls backend's Fini hook if it implements Finalizer.
func finiBackend(backend Backend, state BackendState) {
	if f, ok := backend.(Finalizer); ok {
		f.Fini(state)
	}
}
