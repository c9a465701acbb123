package core

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// instance is an immutable-once-installed crypto instance: backend id,
// opaque backend-private state, and the three derived sizes.
type instance struct {
	backendIdx int
	backend    Backend
	state      BackendState
	sizes      Sizes
}

// cryptoManager holds the slot table: a dense mapping from slot id in
// [1, MaxInstances] to an optional instance, plus the distinguished in-use
// slot id (0 == none) and the handle-wide derived sizes that always mirror
// the in-use instance.
type cryptoManager struct {
	mu    sync.RWMutex // write-exclusive reconfiguration lock, scoped per handle
	slots [MaxInstances + 1]*instance
	inUse uint8
	sizes Sizes
}

func newCryptoManager() *cryptoManager {
	return &cryptoManager{}
}

// Sizes returns the handle-wide derived sizes, reflecting the in-use
// instance or the zero value when nothing is installed.
func (m *cryptoManager) Sizes() Sizes {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sizes
}

// InUse returns the currently in-use slot id, 0 meaning none.
func (m *cryptoManager) InUse() uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inUse
}

// count returns how many slots are occupied; callers must hold at least
// the read lock.
func (m *cryptoManager) countLocked() int {
	n := 0
	for i := 1; i <= MaxInstances; i++ {
		if m.slots[i] != nil {
			n++
		}
	}
	return n
}

// UseConfig switches the in-use slot. The slot must already be occupied.
// Calling it twice with the same slot leaves state unchanged.
func (m *cryptoManager) UseConfig(slot uint8) error {
	if slot == 0 || slot > MaxInstances {
		return codedErr(ErrConfiguration, "use_config", ErrSlotRange)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.slots[slot]
	if inst == nil {
		return codedErr(ErrConfiguration, "use_config", ErrEmptySlot)
	}
	m.inUse = slot
	m.sizes = inst.sizes
	return nil
}

// Init installs a new instance into slot, resolving and (if needed) loading
// the backend named by cfg.Model. The sequence is: resolve model, acquire
// the write lock, lazy-load and ABI-check the backend, run the backend's
// own Init, and only on success splice the new instance in and retire the
// old one. On failure the slot is left untouched.
func (m *cryptoManager) Init(ctx context.Context, cfg CryptoConfig, slot uint8) error {
	if slot == 0 || slot > MaxInstances {
		return codedErr(ErrConfiguration, "crypto_init", ErrSlotRange)
	}
	if len(cfg.PrivateKey) > MaxKeyLen {
		return codedErr(ErrConfiguration, "crypto_init", ErrSlotRange)
	}

	idx := cryptoRegistry.getModel(cfg.Model)
	if idx < 0 {
		return codedErr(ErrConfiguration, "crypto_init", ErrUnknownModel)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	backend, err := cryptoRegistry.load(idx)
	if err != nil {
		// registry.load already returns a CodedError.
		return err
	}

	logrus.WithFields(logrus.Fields{
		"subsystem": "crypto",
		"model":     cfg.Model,
		"cipher":    cfg.CipherType,
		"hash":      cfg.HashType,
		"slot":      slot,
	}).Debug("initializing crypto module")

	state, sizes, err := backend.Init(ctx, cfg)
	if err != nil {
		// Backend owns cleanup of its own partial state; we never call Fini
		// on an instance whose Init failed.
		return codedErr(ErrBackend, "crypto_init", err)
	}

	newInst := &instance{backendIdx: idx, backend: backend, state: state, sizes: sizes}
	old := m.slots[slot]

	m.slots[slot] = newInst
	if m.inUse == 0 || m.inUse == slot {
		m.sizes = sizes
	}
	// First install ever becomes the default in-use slot — a check kept
	// independent of the "adopt sizes" branch above; collapsing the two
	// would break the case where slot 2 is installed before slot 1.
	if m.inUse == 0 {
		m.inUse = slot
	}

	logrus.WithFields(logrus.Fields{
		"subsystem":  "crypto",
		"block_size": sizes.Block,
		"hash_size":  sizes.Hash,
		"salt_size":  sizes.Salt,
	}).Debug("crypto module initialized")

	if old != nil {
		finiBackend(old.backend, old.state)
	}
	return nil
}

// Fini tears down a slot. slot==0 means "all slots": each is cleared in
// turn and in-use resets to 0.
func (m *cryptoManager) Fini(slot uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot == 0 {
		for i := uint8(1); i <= MaxInstances; i++ {
			m.finiSlotLocked(i)
		}
		m.inUse = 0
		m.sizes = Sizes{}
		return
	}
	m.finiSlotLocked(slot)
}

func (m *cryptoManager) finiSlotLocked(slot uint8) {
	inst := m.slots[slot]
	if inst == nil {
		return
	}
	finiBackend(inst.backend, inst.state)
	m.slots[slot] = nil
	if m.inUse == slot {
		m.inUse = 0
		m.sizes = Sizes{}
	}
}

// instanceAt returns the instance installed at slot (nil if empty); callers
// must hold at least the read lock, taken internally here for convenience
// in the send/receive paths which only need a brief atomic snapshot.
func (m *cryptoManager) instanceAt(slot uint8) *instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if slot == 0 || slot > MaxInstances {
		return nil
	}
	return m.slots[slot]
}
