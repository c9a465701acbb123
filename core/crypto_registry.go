package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// builtinFlag records whether a model was compiled into this binary. A
// model absent at compile time still has a registry row (for enumeration)
// but fails every load attempt with ErrNotBuiltIn.
type builtinFlag bool

// backendDescriptor is one row of the registry: a name, whether the backend
// was compiled in, whether it has been loaded yet, and (once loaded) its
// ops table. Descriptors are immutable post-load.
type backendDescriptor struct {
	name    string
	builtIn builtinFlag
	// newBackend constructs the backend implementation — the "module" is
	// simply the constructor registered at init time.
	newBackend func() Backend

	loaded bool
	ops    Backend
}

// registry is the static, compile-time ordered table. Order is not
// semantically significant but is kept stable for enumeration.
type registry struct {
	mu   sync.RWMutex
	rows []*backendDescriptor
}

var cryptoRegistry = newRegistry()

func newRegistry() *registry {
	return &registry{
		rows: []*backendDescriptor{
			{name: "chacha20poly1305", builtIn: true, newBackend: newAEADBackend},
			{name: "bls", builtIn: true, newBackend: newBLSBackend},
			{name: "dilithium3", builtIn: true, newBackend: newDilithiumBackend},
		},
	}
}

// getModel is a linear string lookup; order is not significant but is
// kept stable.
func (r *registry) getModel(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, row := range r.rows {
		if row.name == name {
			return i
		}
	}
	return -1
}

// load resolves (lazily, at most once) the backend at index idx and
// ABI-checks it against CryptoModelABI.
func (r *registry) load(idx int) (Backend, error) {
	r.mu.RLock()
	row := r.rows[idx]
	if row.loaded {
		ops := row.ops
		r.mu.RUnlock()
		return ops, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// re-check: another writer may have loaded it while we waited for the lock.
	if row.loaded {
		return row.ops, nil
	}
	if !bool(row.builtIn) {
		return nil, codedErr(ErrConfiguration, "crypto_init", ErrNotBuiltIn)
	}
	ops := row.newBackend()
	if ops.AbiVer() != CryptoModelABI {
		logrus.WithFields(logrus.Fields{
			"subsystem": "crypto",
			"model":     row.name,
			"core_abi":  CryptoModelABI,
			"mod_abi":   ops.AbiVer(),
		}).Error("ABI mismatch loading crypto module")
		return nil, codedErr(ErrConfiguration, "crypto_init", ErrABIMismatch)
	}
	row.ops = ops
	row.loaded = true
	logrus.WithFields(logrus.Fields{"subsystem": "crypto", "model": row.name}).Debug("crypto module loaded")
	return ops, nil
}

// listCrypto enumerates the names of built-in backends; callers that only
// want a count can just take len(result).
func (r *registry) listCrypto() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rows))
	for _, row := range r.rows {
		if bool(row.builtIn) {
			out = append(out, row.name)
		}
	}
	return out
}

// ListCrypto enumerates built-in backend names. Passing a nil buf returns
// only the count, without allocating or copying any names.
func ListCrypto(buf []string) (names []string, entries int) {
	all := cryptoRegistry.listCrypto()
	if buf == nil {
		return nil, len(all)
	}
	n := copy(buf, all)
	return buf[:n], len(all)
}
