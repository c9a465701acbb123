package core

import "github.com/sirupsen/logrus"

// RecvError is returned by AuthenticateAndDecrypt when every installed
// instance fails. It carries the plain wrapped error for callers that only
// check `err != nil`, plus the slot whose attempt produced it, for callers
// that want to know more than just "it failed".
type RecvError struct {
	FailedSlot uint8
	Err        error
}

func (e *RecvError) Error() string { return e.Err.Error() }
func (e *RecvError) Unwrap() error { return e.Err }

// AuthenticateAndDecrypt tries the in-use instance first; on failure, it
// sequentially tries every other installed instance. Only the first
// (in-use) attempt's logging is demoted to DEBUG when more than one
// instance is installed, since a wrong key there is the statistically
// expected outcome of a rekey window rather than an attack; every
// alternate-slot attempt still logs at its ordinary level regardless of how
// many instances are installed.
func (m *cryptoManager) AuthenticateAndDecrypt(ciphertext []byte) ([]byte, error) {
	m.mu.RLock()
	inUse := m.inUse
	if inUse == 0 {
		m.mu.RUnlock()
		return nil, codedErr(ErrConfiguration, "authenticate_and_decrypt", ErrNoInstances)
	}

	multi := m.countLocked() > 1
	level := LogErr
	if multi {
		level = LogDebug
	}

	type attempt struct {
		slot uint8
		inst *instance
	}
	var ordered []attempt
	ordered = append(ordered, attempt{inUse, m.slots[inUse]})
	for i := uint8(1); i <= MaxInstances; i++ {
		if i == inUse {
			continue
		}
		if m.slots[i] != nil {
			ordered = append(ordered, attempt{i, m.slots[i]})
		}
	}
	m.mu.RUnlock()

	var lastErr error
	var lastSlot uint8
	for n, a := range ordered {
		lvl := LogErr
		if n == 0 {
			lvl = level
		} else {
			logrus.WithFields(logrus.Fields{
				"subsystem": "crypto",
				"slot":      a.slot,
			}).Debug("alternative crypto configuration found, attempting to decrypt")
		}
		plaintext, err := a.inst.backend.Decrypt(a.inst.state, ciphertext, lvl)
		if err == nil {
			return plaintext, nil
		}
		lastErr = err
		lastSlot = a.slot
		if n > 0 {
			logrus.WithFields(logrus.Fields{
				"subsystem": "crypto",
				"slot":      a.slot,
			}).Debug("packet failed to decrypt with alternate crypto config")
		}
	}

	return nil, codedErr(ErrBackend, "authenticate_and_decrypt", &RecvError{FailedSlot: lastSlot, Err: lastErr})
}
